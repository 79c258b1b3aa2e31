package history

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fieldserve/balance-ledger/internal/domain"
	"github.com/fieldserve/balance-ledger/internal/logger"
	"github.com/fieldserve/balance-ledger/internal/store"
	"github.com/fieldserve/balance-ledger/internal/store/schema"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Service is the read/write facade over the balance history log.
// Writes are best-effort; reads degrade gracefully when the dynamic query
// path fails.
type Service struct {
	store store.Store
}

// NewService creates a new history service
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// RecordInput describes one balance transition to record
type RecordInput struct {
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

// Record appends one history entry in an independent transaction scope.
// History is explicitly best-effort: a failure here is logged at error
// level and swallowed so the primary balance mutation is never affected.
// The returned entry is nil when recording failed.
func (s *Service) Record(ctx context.Context, input RecordInput) *schema.BalanceHistory {
	entry, err := s.store.CreateHistoryEntry(ctx, store.CreateHistoryEntryInput{
		CompanyID:     input.CompanyID,
		BalanceType:   input.BalanceType,
		BalanceBefore: input.BalanceBefore,
		BalanceAfter:  input.BalanceAfter,
		OperationType: input.OperationType,
		Description:   input.Description,
		DocumentID:    input.DocumentID,
		OperationID:   input.OperationID,
		UserID:        input.UserID,
		IPAddress:     input.IPAddress,
		Metadata:      input.Metadata,
	})
	if err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to record balance history: %w", err),
			zap.String("company_id", input.CompanyID),
			zap.String("balance_type", string(input.BalanceType)),
			zap.String("operation_type", string(input.OperationType)),
		)
		return nil
	}
	return entry
}

// SearchQuery holds the optional filters for a history search.
// CompanyID is always mandatory.
type SearchQuery struct {
	CompanyID     string
	BalanceType   *domain.BalanceType
	OperationType *domain.OperationType
	UserID        *string
	DocumentID    *string
	StartDate     *time.Time
	EndDate       *time.Time
	SearchText    *string
	Page          store.Page
}

// Search runs the dynamic multi-predicate history query. If the dynamic
// path errors, it falls back in order: type-only filter, user-only filter,
// date-range-only filter, then the unfiltered paginated history. The
// fallback chain trades filter precision for availability.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]schema.BalanceHistory, int64, error) {
	if q.CompanyID == "" {
		return nil, 0, fmt.Errorf("company id is required")
	}
	q.Page = normalizePage(q.Page)

	entries, total, err := s.store.SearchHistory(ctx, store.HistorySearchFilter{
		CompanyID:     q.CompanyID,
		BalanceType:   q.BalanceType,
		OperationType: q.OperationType,
		UserID:        q.UserID,
		DocumentID:    q.DocumentID,
		StartDate:     q.StartDate,
		EndDate:       q.EndDate,
		SearchText:    q.SearchText,
		Page:          q.Page,
	})
	if err == nil {
		return entries, total, nil
	}

	logger.WarnCtx(ctx, "Dynamic history search failed, falling back to canned query",
		zap.Error(err),
		zap.String("company_id", q.CompanyID),
	)

	switch {
	case q.BalanceType != nil && onlyBalanceTypeSet(q):
		return s.store.ListHistoryByBalanceType(ctx, q.CompanyID, *q.BalanceType, q.Page)
	case q.UserID != nil && onlyUserSet(q):
		return s.store.ListHistoryByUser(ctx, q.CompanyID, *q.UserID, q.Page)
	case q.StartDate != nil && q.EndDate != nil && onlyDateRangeSet(q):
		return s.store.ListHistoryByDateRange(ctx, q.CompanyID, *q.StartDate, *q.EndDate, q.Page)
	default:
		return s.store.ListHistory(ctx, q.CompanyID, q.Page)
	}
}

// Statistics aggregates balance history for one balance type in a range
type Statistics struct {
	CompanyID       string             `json:"company_id"`
	BalanceType     domain.BalanceType `json:"balance_type"`
	StartDate       time.Time          `json:"start_date"`
	EndDate         time.Time          `json:"end_date"`
	TotalOperations int                `json:"total_operations"`
	TotalChanged    decimal.Decimal    `json:"total_changed"` // sum of absolute deltas
	PositiveChanges int                `json:"positive_changes"`
	NegativeChanges int                `json:"negative_changes"`
	FirstBalance    decimal.Decimal    `json:"first_balance"`
	LastBalance     decimal.Decimal    `json:"last_balance"`
	NetChange       decimal.Decimal    `json:"net_change"`
}

// GetStatistics aggregates over the full fetched range in memory. This is
// a known scalability limit at high history volume: the range query is
// unbounded and every row is materialized before aggregation.
func (s *Service) GetStatistics(ctx context.Context, companyID string, balanceType domain.BalanceType, start, end time.Time) (*Statistics, error) {
	if companyID == "" {
		return nil, fmt.Errorf("company id is required")
	}
	if !domain.IsValidBalanceType(balanceType) {
		return nil, fmt.Errorf("unknown balance type: %s", balanceType)
	}

	entries, err := s.store.GetHistoryRange(ctx, companyID, balanceType, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history range: %w", err)
	}

	stats := &Statistics{
		CompanyID:   companyID,
		BalanceType: balanceType,
		StartDate:   start,
		EndDate:     end,
	}

	for i, entry := range entries {
		stats.TotalOperations++
		stats.TotalChanged = stats.TotalChanged.Add(entry.AmountChanged.Abs())
		if entry.AmountChanged.IsPositive() {
			stats.PositiveChanges++
		} else if entry.AmountChanged.IsNegative() {
			stats.NegativeChanges++
		}
		if i == 0 {
			stats.FirstBalance = entry.BalanceBefore
		}
		stats.LastBalance = entry.BalanceAfter
	}

	stats.NetChange = stats.LastBalance.Sub(stats.FirstBalance)

	return stats, nil
}

// normalizePage applies the default page size and caps oversized requests
func normalizePage(page store.Page) store.Page {
	if page.Limit <= 0 {
		page.Limit = defaultPageSize
	}
	if page.Limit > maxPageSize {
		page.Limit = maxPageSize
	}
	if page.Offset < 0 {
		page.Offset = 0
	}
	return page
}

// onlyBalanceTypeSet reports whether balance type is the sole optional filter
func onlyBalanceTypeSet(q SearchQuery) bool {
	return q.OperationType == nil && q.UserID == nil && q.DocumentID == nil &&
		q.StartDate == nil && q.EndDate == nil && q.SearchText == nil
}

// onlyUserSet reports whether user id is the sole optional filter
func onlyUserSet(q SearchQuery) bool {
	return q.BalanceType == nil && q.OperationType == nil && q.DocumentID == nil &&
		q.StartDate == nil && q.EndDate == nil && q.SearchText == nil
}

// onlyDateRangeSet reports whether the date range is the sole optional filter
func onlyDateRangeSet(q SearchQuery) bool {
	return q.BalanceType == nil && q.OperationType == nil && q.UserID == nil &&
		q.DocumentID == nil && q.SearchText == nil
}
