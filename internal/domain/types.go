package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceType identifies which of a company's tracked balances an
// operation targets. New balance kinds (e.g. a dedicated safe ledger)
// only require a new constant here plus a column in company_balances.
type BalanceType string

const (
	BalanceTypeCash BalanceType = "CASH"
	BalanceTypeBank BalanceType = "BANK"
)

// IsValidBalanceType checks if a balance type is valid
func IsValidBalanceType(t BalanceType) bool {
	return t == BalanceTypeCash || t == BalanceTypeBank
}

// OperationType classifies a balance-changing operation
type OperationType string

const (
	OperationTypeAdd                 OperationType = "ADD"
	OperationTypeSubtract            OperationType = "SUBTRACT"
	OperationTypeCorrection          OperationType = "CORRECTION"
	OperationTypeManualOverride      OperationType = "MANUAL_OVERRIDE"
	OperationTypeCashWithdrawal      OperationType = "CASH_WITHDRAWAL"
	OperationTypeCashDeposit         OperationType = "CASH_DEPOSIT"
	OperationTypeBankReconciliation  OperationType = "BANK_RECONCILIATION"
	OperationTypeInventoryAdjustment OperationType = "INVENTORY_ADJUSTMENT"
	OperationTypeCashToSafe          OperationType = "CASH_TO_SAFE"
	OperationTypeCashFromSafe        OperationType = "CASH_FROM_SAFE"
)

// IsValidOperationType checks if an operation type is valid
func IsValidOperationType(t OperationType) bool {
	switch t {
	case OperationTypeAdd,
		OperationTypeSubtract,
		OperationTypeCorrection,
		OperationTypeManualOverride,
		OperationTypeCashWithdrawal,
		OperationTypeCashDeposit,
		OperationTypeBankReconciliation,
		OperationTypeInventoryAdjustment,
		OperationTypeCashToSafe,
		OperationTypeCashFromSafe:
		return true
	}
	return false
}

// ChangeMetadata is the structured payload attached to a history entry.
// It is serialized to the metadata JSONB column; free-form context goes
// into Extra.
type ChangeMetadata struct {
	Source    string            `json:"source,omitempty"`     // originating subsystem, e.g. "override_api"
	RequestID string            `json:"request_id,omitempty"` // correlation id from the API layer
	Notes     string            `json:"notes,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// BalanceChangedEvent is the normalized event published after a balance
// mutation has committed. Publishing is best-effort and never affects
// the outcome of the operation that produced it.
type BalanceChangedEvent struct {
	CompanyID     string          `json:"company_id"`
	BalanceType   BalanceType     `json:"balance_type"`
	OperationType OperationType   `json:"operation_type"`
	OperationID   string          `json:"operation_id"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	AmountChanged decimal.Decimal `json:"amount_changed"`
	UserID        string          `json:"user_id"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Valid reports whether the event carries the fields consumers rely on.
func (e *BalanceChangedEvent) Valid() bool {
	if e.CompanyID == "" || e.OperationID == "" {
		return false
	}
	if !IsValidBalanceType(e.BalanceType) || !IsValidOperationType(e.OperationType) {
		return false
	}
	// amount_changed must reconcile with before/after
	return e.BalanceAfter.Sub(e.BalanceBefore).Equal(e.AmountChanged)
}
