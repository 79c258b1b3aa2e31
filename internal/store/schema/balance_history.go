package schema

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/fieldserve/balance-ledger/internal/domain"
)

// BalanceHistory represents the balance_history table - append-only audit
// log with one row per successful balance transition. Rows are written
// best-effort in a transaction scope independent of the operation that
// caused them, and are never mutated or deleted.
type BalanceHistory struct {
	// ID is the history entry identifier
	ID string `gorm:"column:id;primaryKey;type:uuid"`
	// CompanyID is the tenant the transition belongs to
	CompanyID string `gorm:"column:company_id;not null;type:text;index:idx_balance_history_company"`
	// BalanceType identifies which balance changed (CASH or BANK)
	BalanceType domain.BalanceType `gorm:"column:balance_type;not null;type:text"`
	// BalanceBefore is the balance before the transition
	BalanceBefore decimal.Decimal `gorm:"column:balance_before;not null;type:numeric(19,4)"`
	// BalanceAfter is the balance after the transition
	BalanceAfter decimal.Decimal `gorm:"column:balance_after;not null;type:numeric(19,4)"`
	// AmountChanged equals balance_after - balance_before and may be negative
	AmountChanged decimal.Decimal `gorm:"column:amount_changed;not null;type:numeric(19,4)"`
	// OperationType classifies the operation that caused the transition
	OperationType domain.OperationType `gorm:"column:operation_type;not null;type:text"`
	// Description is the reason carried over from the operation
	Description string `gorm:"column:description;not null;type:text"`
	// DocumentID links to an external financial document when applicable
	DocumentID *string `gorm:"column:document_id;type:text"`
	// OperationID back-references the balance_operations row that caused this entry
	OperationID *string `gorm:"column:operation_id;type:uuid"`
	// UserID is the user who performed the operation
	UserID string `gorm:"column:user_id;not null;type:text"`
	// Timestamp is when the transition was recorded
	Timestamp time.Time `gorm:"column:timestamp;not null;default:now();type:timestamptz;index:idx_balance_history_timestamp"`
	// IPAddress is the caller's address when resolvable
	IPAddress *string `gorm:"column:ip_address;type:text"`
	// Metadata contains additional structured context about the change as JSON
	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb"`
}

// TableName specifies the table name for the BalanceHistory model
func (BalanceHistory) TableName() string {
	return "balance_history"
}
