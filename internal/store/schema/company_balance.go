package schema

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fieldserve/balance-ledger/internal/domain"
)

// CompanyBalance represents the company_balances table - one row per tenant
// holding the current cash and bank balances plus the optimistic-concurrency
// version token. Rows are created when a tenant is provisioned and never
// deleted.
type CompanyBalance struct {
	// CompanyID is the tenant identifier and primary key
	CompanyID string `gorm:"column:company_id;primaryKey;type:text"`
	// CashBalance is the current physical cash balance
	CashBalance decimal.Decimal `gorm:"column:cash_balance;not null;type:numeric(19,4)"`
	// BankBalance is the current bank account balance
	BankBalance decimal.Decimal `gorm:"column:bank_balance;not null;type:numeric(19,4)"`
	// LastUpdated is the timestamp of the last committed mutation
	LastUpdated time.Time `gorm:"column:last_updated;not null;default:now();type:timestamptz"`
	// Version increases by exactly 1 per committed mutation; every write
	// must present the version observed at read time
	Version int64 `gorm:"column:version;not null;default:1"`
}

// TableName specifies the table name for the CompanyBalance model
func (CompanyBalance) TableName() string {
	return "company_balances"
}

// Balance returns the current balance of the requested type.
func (b *CompanyBalance) Balance(balanceType domain.BalanceType) decimal.Decimal {
	if balanceType == domain.BalanceTypeBank {
		return b.BankBalance
	}
	return b.CashBalance
}
