package rest

import (
	"github.com/shopspring/decimal"
)

// moveCashRequest is the body for the to-safe and from-safe endpoints
type moveCashRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// reconcileRequest is the body for the bank reconciliation endpoint
type reconcileRequest struct {
	StatementBalance decimal.Decimal `json:"statement_balance"`
	Description      string          `json:"description"`
}

// inventoryRequest is the body for the cash inventory endpoint
type inventoryRequest struct {
	CountedAmount decimal.Decimal `json:"counted_amount"`
	Notes         string          `json:"notes"`
}

// manualOverrideRequest is the body for the manual override endpoint.
// Older clients send the justification as description instead of reason.
type manualOverrideRequest struct {
	BalanceType string          `json:"balance_type"`
	NewBalance  decimal.Decimal `json:"new_balance"`
	Reason      string          `json:"reason"`
	Description string          `json:"description"`
	ApprovedBy  *string         `json:"approved_by,omitempty"`
}

// reasonOrDescription prefers reason and falls back to description
func (r *manualOverrideRequest) reasonOrDescription() string {
	if r.Reason != "" {
		return r.Reason
	}
	return r.Description
}

// balanceResponse is the current state of a company's balance account
type balanceResponse struct {
	CompanyID   string          `json:"company_id"`
	CashBalance decimal.Decimal `json:"cash_balance"`
	BankBalance decimal.Decimal `json:"bank_balance"`
	Version     int64           `json:"version"`
	LastUpdated string          `json:"last_updated"`
}

// historyListResponse wraps a paginated history page
type historyListResponse struct {
	Items  interface{} `json:"items"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}
