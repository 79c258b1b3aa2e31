package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fieldserve/balance-ledger/internal/domain"
	"github.com/fieldserve/balance-ledger/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to defaults:
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// balanceColumn maps a balance type to its company_balances column
func balanceColumn(balanceType domain.BalanceType) (string, error) {
	switch balanceType {
	case domain.BalanceTypeCash:
		return "cash_balance", nil
	case domain.BalanceTypeBank:
		return "bank_balance", nil
	default:
		return "", fmt.Errorf("unknown balance type: %s", balanceType)
	}
}

// EnsureAccount creates the balance row for a company if it does not exist
// yet and returns the current row either way
func (s *pgStore) EnsureAccount(ctx context.Context, companyID string) (*schema.CompanyBalance, error) {
	account := schema.CompanyBalance{
		CompanyID:   companyID,
		LastUpdated: time.Now().UTC(),
		Version:     1,
	}

	// ON CONFLICT DO NOTHING keeps concurrent provisioning idempotent
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&account).Error
	if err != nil {
		return nil, fmt.Errorf("failed to provision balance account: %w", err)
	}

	return s.GetCompanyBalance(ctx, companyID)
}

// GetCompanyBalance retrieves the balance row for a company
func (s *pgStore) GetCompanyBalance(ctx context.Context, companyID string) (*schema.CompanyBalance, error) {
	var account schema.CompanyBalance
	err := s.db.WithContext(ctx).Where("company_id = ?", companyID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get company balance: %w", err)
	}
	return &account, nil
}

// ApplyBalanceMutation performs the version-guarded balance update and
// appends the operation-log row in a single transaction. The update is an
// explicit conditional write: it only matches when the presented version is
// still current, and an affected-row count of zero is translated into a
// typed conflict (or not-found) outcome.
func (s *pgStore) ApplyBalanceMutation(ctx context.Context, input ApplyBalanceMutationInput) (*schema.BalanceOperation, error) {
	column, err := balanceColumn(input.BalanceType)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	operation := schema.BalanceOperation{
		ID:              uuid.NewString(),
		CompanyID:       input.CompanyID,
		DocumentID:      input.Operation.DocumentID,
		OperationType:   input.Operation.OperationType,
		BalanceType:     input.BalanceType,
		Amount:          input.Operation.Amount,
		PreviousBalance: input.Operation.PreviousBalance,
		NewBalance:      input.Operation.NewBalance,
		UserID:          input.Operation.UserID,
		UserName:        input.Operation.UserName,
		Description:     input.Operation.Description,
		ApprovedBy:      input.Operation.ApprovedBy,
		ApprovalDate:    input.Operation.ApprovalDate,
		IsApproved:      input.Operation.IsApproved,
		CreatedAt:       now,
		IPAddress:       input.Operation.IPAddress,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&schema.CompanyBalance{}).
			Where("company_id = ? AND version = ?", input.CompanyID, input.ExpectedVersion).
			Updates(map[string]interface{}{
				column:         input.NewBalance,
				"version":      gorm.Expr("version + 1"),
				"last_updated": now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update company balance: %w", result.Error)
		}

		if result.RowsAffected == 0 {
			// Distinguish a missing account from a stale version
			var count int64
			if err := tx.Model(&schema.CompanyBalance{}).
				Where("company_id = ?", input.CompanyID).
				Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check company balance existence: %w", err)
			}
			if count == 0 {
				return domain.ErrAccountNotFound
			}
			return domain.ErrVersionConflict
		}

		if err := tx.Create(&operation).Error; err != nil {
			return fmt.Errorf("failed to append balance operation: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &operation, nil
}

// CreateHistoryEntry appends one audit row on the root database session.
// It must never be called with a transaction-scoped *gorm.DB: history
// commits independently of the mutation that triggered it.
func (s *pgStore) CreateHistoryEntry(ctx context.Context, input CreateHistoryEntryInput) (*schema.BalanceHistory, error) {
	entry := schema.BalanceHistory{
		ID:            uuid.NewString(),
		CompanyID:     input.CompanyID,
		BalanceType:   input.BalanceType,
		BalanceBefore: input.BalanceBefore,
		BalanceAfter:  input.BalanceAfter,
		AmountChanged: input.BalanceAfter.Sub(input.BalanceBefore),
		OperationType: input.OperationType,
		Description:   input.Description,
		DocumentID:    input.DocumentID,
		OperationID:   input.OperationID,
		UserID:        input.UserID,
		Timestamp:     time.Now().UTC(),
		IPAddress:     input.IPAddress,
	}

	if input.Metadata != nil {
		data, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal history metadata: %w", err)
		}
		entry.Metadata = data
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to append history entry: %w", err)
	}

	return &entry, nil
}

// SearchHistory runs the dynamic multi-predicate history query. CompanyID
// is always applied; every other predicate is optional.
func (s *pgStore) SearchHistory(ctx context.Context, filter HistorySearchFilter) ([]schema.BalanceHistory, int64, error) {
	if filter.CompanyID == "" {
		return nil, 0, fmt.Errorf("company id is required")
	}

	query := s.db.WithContext(ctx).
		Model(&schema.BalanceHistory{}).
		Where("company_id = ?", filter.CompanyID)

	if filter.BalanceType != nil {
		query = query.Where("balance_type = ?", *filter.BalanceType)
	}
	if filter.OperationType != nil {
		query = query.Where("operation_type = ?", *filter.OperationType)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.DocumentID != nil {
		query = query.Where("document_id = ?", *filter.DocumentID)
	}
	if filter.StartDate != nil {
		query = query.Where("timestamp >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("timestamp <= ?", *filter.EndDate)
	}
	if filter.SearchText != nil && *filter.SearchText != "" {
		query = query.Where("description ILIKE ?", "%"+*filter.SearchText+"%")
	}

	return paginateHistory(query, filter.Page)
}

// ListHistoryByBalanceType is the canned type-filtered fallback query
func (s *pgStore) ListHistoryByBalanceType(ctx context.Context, companyID string, balanceType domain.BalanceType, page Page) ([]schema.BalanceHistory, int64, error) {
	query := s.db.WithContext(ctx).
		Model(&schema.BalanceHistory{}).
		Where("company_id = ? AND balance_type = ?", companyID, balanceType)
	return paginateHistory(query, page)
}

// ListHistoryByUser is the canned user-filtered fallback query
func (s *pgStore) ListHistoryByUser(ctx context.Context, companyID, userID string, page Page) ([]schema.BalanceHistory, int64, error) {
	query := s.db.WithContext(ctx).
		Model(&schema.BalanceHistory{}).
		Where("company_id = ? AND user_id = ?", companyID, userID)
	return paginateHistory(query, page)
}

// ListHistoryByDateRange is the canned date-range fallback query
func (s *pgStore) ListHistoryByDateRange(ctx context.Context, companyID string, start, end time.Time, page Page) ([]schema.BalanceHistory, int64, error) {
	query := s.db.WithContext(ctx).
		Model(&schema.BalanceHistory{}).
		Where("company_id = ? AND timestamp >= ? AND timestamp <= ?", companyID, start, end)
	return paginateHistory(query, page)
}

// ListHistory returns the unfiltered, paginated history for a company
func (s *pgStore) ListHistory(ctx context.Context, companyID string, page Page) ([]schema.BalanceHistory, int64, error) {
	query := s.db.WithContext(ctx).
		Model(&schema.BalanceHistory{}).
		Where("company_id = ?", companyID)
	return paginateHistory(query, page)
}

// GetHistoryRange fetches every entry for one balance type inside a time
// range, ordered oldest first for the statistics aggregation. The result
// set is unbounded; aggregation over very large ranges is a known limit.
func (s *pgStore) GetHistoryRange(ctx context.Context, companyID string, balanceType domain.BalanceType, start, end time.Time) ([]schema.BalanceHistory, error) {
	var entries []schema.BalanceHistory
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND balance_type = ? AND timestamp >= ? AND timestamp <= ?",
			companyID, balanceType, start, end).
		Order("timestamp ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get history range: %w", err)
	}
	return entries, nil
}

// Ping verifies database connectivity
func (s *pgStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// paginateHistory counts the filtered set, then applies ordering and
// pagination. Newest entries come first.
func paginateHistory(query *gorm.DB, page Page) ([]schema.BalanceHistory, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count history entries: %w", err)
	}

	query = query.Order("timestamp DESC, id DESC")
	if page.Limit > 0 {
		query = query.Limit(page.Limit)
	}
	if page.Offset > 0 {
		query = query.Offset(page.Offset)
	}

	var entries []schema.BalanceHistory
	err := query.Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get history entries: %w", err)
	}

	return entries, total, nil
}
