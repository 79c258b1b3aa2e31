package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fieldserve/balance-ledger/internal/domain"
	"github.com/fieldserve/balance-ledger/internal/store/schema"
)

// Page holds limit/offset pagination parameters
type Page struct {
	Limit  int
	Offset int
}

// OperationRecord is the operation-log portion of a balance mutation.
// The before/after balances are filled in by the caller from the row it
// loaded; the store persists them verbatim.
type OperationRecord struct {
	OperationType   domain.OperationType
	Amount          decimal.Decimal
	PreviousBalance decimal.Decimal
	NewBalance      decimal.Decimal
	UserID          string
	UserName        string
	Description     string
	DocumentID      *string
	ApprovedBy      *string
	ApprovalDate    *time.Time
	IsApproved      bool
	IPAddress       *string
}

// ApplyBalanceMutationInput describes one version-guarded balance write
// plus the operation-log row committed with it.
type ApplyBalanceMutationInput struct {
	CompanyID       string
	BalanceType     domain.BalanceType
	ExpectedVersion int64
	NewBalance      decimal.Decimal
	Operation       OperationRecord
}

// CreateHistoryEntryInput describes one append-only audit row for a
// successful balance transition.
type CreateHistoryEntryInput struct {
	CompanyID     string
	BalanceType   domain.BalanceType
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	OperationType domain.OperationType
	Description   string
	DocumentID    *string
	OperationID   *string
	UserID        string
	IPAddress     *string
	Metadata      *domain.ChangeMetadata
}

// HistorySearchFilter is the explicit filter set for the dynamic history
// query. CompanyID is always mandatory; everything else is optional.
type HistorySearchFilter struct {
	CompanyID     string
	BalanceType   *domain.BalanceType
	OperationType *domain.OperationType
	UserID        *string
	DocumentID    *string
	StartDate     *time.Time
	EndDate       *time.Time
	SearchText    *string
	Page          Page
}

// Store defines the interface for database operations
type Store interface {
	// EnsureAccount creates the balance row for a company if it does not
	// exist yet and returns the current row either way
	EnsureAccount(ctx context.Context, companyID string) (*schema.CompanyBalance, error)
	// GetCompanyBalance retrieves the balance row for a company, including
	// the version that must accompany any subsequent write
	GetCompanyBalance(ctx context.Context, companyID string) (*schema.CompanyBalance, error)
	// ApplyBalanceMutation performs the version-guarded balance update and
	// appends the operation-log row in a single transaction. Returns
	// domain.ErrVersionConflict when the presented version is stale.
	ApplyBalanceMutation(ctx context.Context, input ApplyBalanceMutationInput) (*schema.BalanceOperation, error)
	// CreateHistoryEntry appends one audit row. It runs on the root
	// database session so it commits independently of any caller transaction.
	CreateHistoryEntry(ctx context.Context, input CreateHistoryEntryInput) (*schema.BalanceHistory, error)
	// SearchHistory runs the dynamic multi-predicate history query
	SearchHistory(ctx context.Context, filter HistorySearchFilter) ([]schema.BalanceHistory, int64, error)
	// ListHistoryByBalanceType is the canned type-filtered fallback query
	ListHistoryByBalanceType(ctx context.Context, companyID string, balanceType domain.BalanceType, page Page) ([]schema.BalanceHistory, int64, error)
	// ListHistoryByUser is the canned user-filtered fallback query
	ListHistoryByUser(ctx context.Context, companyID, userID string, page Page) ([]schema.BalanceHistory, int64, error)
	// ListHistoryByDateRange is the canned date-range fallback query
	ListHistoryByDateRange(ctx context.Context, companyID string, start, end time.Time, page Page) ([]schema.BalanceHistory, int64, error)
	// ListHistory returns the unfiltered, paginated history for a company
	ListHistory(ctx context.Context, companyID string, page Page) ([]schema.BalanceHistory, int64, error)
	// GetHistoryRange fetches every entry for one balance type inside a
	// time range, used by the statistics aggregation
	GetHistoryRange(ctx context.Context, companyID string, balanceType domain.BalanceType, start, end time.Time) ([]schema.BalanceHistory, error)
	// Ping verifies database connectivity
	Ping(ctx context.Context) error
}
