package schema

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fieldserve/balance-ledger/internal/domain"
)

// BalanceOperation represents the balance_operations table - one immutable
// row per attempted balance-changing operation, capturing intent, outcome
// and approval metadata. Written in the same transaction as the
// company_balances update it accompanies.
type BalanceOperation struct {
	// ID is the operation identifier
	ID string `gorm:"column:id;primaryKey;type:uuid"`
	// CompanyID is the tenant the operation belongs to
	CompanyID string `gorm:"column:company_id;not null;type:text;index:idx_balance_operations_company"`
	// DocumentID links to an external financial document when applicable
	DocumentID *string `gorm:"column:document_id;type:text"`
	// OperationType classifies the operation (ADD, SUBTRACT, CASH_TO_SAFE, ...)
	OperationType domain.OperationType `gorm:"column:operation_type;not null;type:text"`
	// BalanceType identifies the balance the operation targets (CASH or BANK)
	BalanceType domain.BalanceType `gorm:"column:balance_type;not null;type:text"`
	// Amount is the operation amount as entered by the caller
	Amount decimal.Decimal `gorm:"column:amount;not null;type:numeric(19,4)"`
	// PreviousBalance is the balance observed before the operation
	PreviousBalance decimal.Decimal `gorm:"column:previous_balance;not null;type:numeric(19,4)"`
	// NewBalance is the balance after the operation committed
	NewBalance decimal.Decimal `gorm:"column:new_balance;not null;type:numeric(19,4)"`
	// UserID is the authenticated user who performed the operation
	UserID string `gorm:"column:user_id;not null;type:text"`
	// UserName is the display name of the user at operation time
	UserName string `gorm:"column:user_name;not null;type:text"`
	// Description is the mandatory human-readable reason for the operation
	Description string `gorm:"column:description;not null;type:text"`
	// ApprovedBy is the second approver, when an approval policy requires one
	ApprovedBy *string `gorm:"column:approved_by;type:text"`
	// ApprovalDate is when the second approver confirmed the operation
	ApprovalDate *time.Time `gorm:"column:approval_date;type:timestamptz"`
	// IsApproved defaults to true; a non-default approval policy may mark
	// an operation pending instead
	IsApproved bool `gorm:"column:is_approved;not null;default:true"`
	// CreatedAt is the timestamp when the operation was recorded
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// IPAddress is the caller's address when resolvable
	IPAddress *string `gorm:"column:ip_address;type:text"`
}

// TableName specifies the table name for the BalanceOperation model
func (BalanceOperation) TableName() string {
	return "balance_operations"
}
