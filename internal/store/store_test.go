package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/balance-ledger/internal/domain"
	"github.com/fieldserve/balance-ledger/internal/store/schema"
)

// =============================================================================
// Test Data Builders
// =============================================================================

// buildTestMutation creates a version-guarded mutation input for a company
func buildTestMutation(companyID string, balanceType domain.BalanceType, expectedVersion int64, previous, next decimal.Decimal) ApplyBalanceMutationInput {
	return ApplyBalanceMutationInput{
		CompanyID:       companyID,
		BalanceType:     balanceType,
		ExpectedVersion: expectedVersion,
		NewBalance:      next,
		Operation: OperationRecord{
			OperationType:   domain.OperationTypeManualOverride,
			Amount:          next.Sub(previous).Abs(),
			PreviousBalance: previous,
			NewBalance:      next,
			UserID:          "user-1",
			UserName:        "Test User",
			Description:     "test mutation",
			IsApproved:      true,
		},
	}
}

// buildTestHistoryEntry creates a history entry input
func buildTestHistoryEntry(companyID string, balanceType domain.BalanceType, before, after decimal.Decimal) CreateHistoryEntryInput {
	return CreateHistoryEntryInput{
		CompanyID:     companyID,
		BalanceType:   balanceType,
		BalanceBefore: before,
		BalanceAfter:  after,
		OperationType: domain.OperationTypeManualOverride,
		Description:   "test history entry",
		UserID:        "user-1",
	}
}

// seedAccount provisions a balance account and returns its current state
func seedAccount(t *testing.T, store Store, companyID string) *schema.CompanyBalance {
	account, err := store.EnsureAccount(context.Background(), companyID)
	require.NoError(t, err)
	require.NotNil(t, account)
	return account
}

// =============================================================================
// Test: EnsureAccount
// =============================================================================

func testEnsureAccount(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("provisions a fresh account with zero balances and version 1", func(t *testing.T) {
		account, err := store.EnsureAccount(ctx, "company-fresh")
		require.NoError(t, err)

		assert.Equal(t, "company-fresh", account.CompanyID)
		assert.True(t, account.CashBalance.IsZero())
		assert.True(t, account.BankBalance.IsZero())
		assert.Equal(t, int64(1), account.Version)
	})

	t.Run("is idempotent and preserves existing state", func(t *testing.T) {
		first := seedAccount(t, store, "company-idempotent")

		op, err := store.ApplyBalanceMutation(ctx, buildTestMutation(
			"company-idempotent", domain.BalanceTypeCash, first.Version,
			decimal.Zero, decimal.NewFromInt(500)))
		require.NoError(t, err)
		require.NotNil(t, op)

		again, err := store.EnsureAccount(ctx, "company-idempotent")
		require.NoError(t, err)
		assert.True(t, again.CashBalance.Equal(decimal.NewFromInt(500)),
			"existing balance must survive re-provisioning, got %s", again.CashBalance)
		assert.Equal(t, int64(2), again.Version)
	})
}

// =============================================================================
// Test: GetCompanyBalance
// =============================================================================

func testGetCompanyBalance(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("returns the current row with its version", func(t *testing.T) {
		seedAccount(t, store, "company-get")

		account, err := store.GetCompanyBalance(ctx, "company-get")
		require.NoError(t, err)
		assert.Equal(t, "company-get", account.CompanyID)
		assert.Equal(t, int64(1), account.Version)
	})

	t.Run("returns ErrAccountNotFound for an unknown company", func(t *testing.T) {
		_, err := store.GetCompanyBalance(ctx, "company-missing")
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	})
}

// =============================================================================
// Test: ApplyBalanceMutation
// =============================================================================

func testApplyBalanceMutation(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("updates the balance, bumps the version and logs the operation", func(t *testing.T) {
		account := seedAccount(t, store, "company-mutate")

		input := buildTestMutation("company-mutate", domain.BalanceTypeCash,
			account.Version, decimal.Zero, decimal.NewFromFloat(1234.56))
		op, err := store.ApplyBalanceMutation(ctx, input)
		require.NoError(t, err)
		require.NotNil(t, op)

		assert.NotEmpty(t, op.ID)
		assert.Equal(t, "company-mutate", op.CompanyID)
		assert.Equal(t, domain.OperationTypeManualOverride, op.OperationType)
		assert.True(t, op.NewBalance.Equal(decimal.NewFromFloat(1234.56)))
		assert.True(t, op.IsApproved)

		updated, err := store.GetCompanyBalance(ctx, "company-mutate")
		require.NoError(t, err)
		assert.True(t, updated.CashBalance.Equal(decimal.NewFromFloat(1234.56)))
		assert.Equal(t, account.Version+1, updated.Version)
	})

	t.Run("leaves the other balance column untouched", func(t *testing.T) {
		account := seedAccount(t, store, "company-columns")

		_, err := store.ApplyBalanceMutation(ctx, buildTestMutation(
			"company-columns", domain.BalanceTypeBank, account.Version,
			decimal.Zero, decimal.NewFromInt(900)))
		require.NoError(t, err)

		updated, err := store.GetCompanyBalance(ctx, "company-columns")
		require.NoError(t, err)
		assert.True(t, updated.CashBalance.IsZero())
		assert.True(t, updated.BankBalance.Equal(decimal.NewFromInt(900)))
	})

	t.Run("returns ErrVersionConflict when the presented version is stale", func(t *testing.T) {
		account := seedAccount(t, store, "company-conflict")

		// First writer wins
		_, err := store.ApplyBalanceMutation(ctx, buildTestMutation(
			"company-conflict", domain.BalanceTypeCash, account.Version,
			decimal.Zero, decimal.NewFromInt(100)))
		require.NoError(t, err)

		// Second writer still presents the original version
		_, err = store.ApplyBalanceMutation(ctx, buildTestMutation(
			"company-conflict", domain.BalanceTypeCash, account.Version,
			decimal.Zero, decimal.NewFromInt(200)))
		assert.ErrorIs(t, err, domain.ErrVersionConflict)

		// Losing write must not have changed anything
		current, err := store.GetCompanyBalance(ctx, "company-conflict")
		require.NoError(t, err)
		assert.True(t, current.CashBalance.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, account.Version+1, current.Version)
	})

	t.Run("returns ErrAccountNotFound for an unknown company", func(t *testing.T) {
		_, err := store.ApplyBalanceMutation(ctx, buildTestMutation(
			"company-nonexistent", domain.BalanceTypeCash, 1,
			decimal.Zero, decimal.NewFromInt(100)))
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	})

	t.Run("rejects an unknown balance type", func(t *testing.T) {
		input := buildTestMutation("company-mutate", "GOLD", 1,
			decimal.Zero, decimal.NewFromInt(1))
		_, err := store.ApplyBalanceMutation(ctx, input)
		assert.Error(t, err)
	})
}

// =============================================================================
// Test: CreateHistoryEntry
// =============================================================================

func testCreateHistoryEntry(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("computes amount_changed from before and after", func(t *testing.T) {
		input := buildTestHistoryEntry("company-history",
			domain.BalanceTypeCash, decimal.NewFromInt(1000), decimal.NewFromInt(700))
		entry, err := store.CreateHistoryEntry(ctx, input)
		require.NoError(t, err)

		assert.NotEmpty(t, entry.ID)
		assert.True(t, entry.AmountChanged.Equal(decimal.NewFromInt(-300)),
			"amount_changed must be after minus before, got %s", entry.AmountChanged)
		assert.False(t, entry.Timestamp.IsZero())
	})

	t.Run("serializes structured metadata to JSON", func(t *testing.T) {
		input := buildTestHistoryEntry("company-history",
			domain.BalanceTypeBank, decimal.Zero, decimal.NewFromInt(50))
		input.Metadata = &domain.ChangeMetadata{
			Source:    "override_api",
			RequestID: "req-123",
			Extra:     map[string]string{"statement_ref": "2026-08"},
		}

		entry, err := store.CreateHistoryEntry(ctx, input)
		require.NoError(t, err)
		require.NotEmpty(t, entry.Metadata)

		var decoded domain.ChangeMetadata
		require.NoError(t, json.Unmarshal(entry.Metadata, &decoded))
		assert.Equal(t, "override_api", decoded.Source)
		assert.Equal(t, "req-123", decoded.RequestID)
		assert.Equal(t, "2026-08", decoded.Extra["statement_ref"])
	})

	t.Run("accepts entries without metadata", func(t *testing.T) {
		input := buildTestHistoryEntry("company-history",
			domain.BalanceTypeCash, decimal.Zero, decimal.Zero)
		entry, err := store.CreateHistoryEntry(ctx, input)
		require.NoError(t, err)
		assert.Empty(t, entry.Metadata)
	})
}

// =============================================================================
// Test: SearchHistory
// =============================================================================

func testSearchHistory(t *testing.T, store Store) {
	ctx := context.Background()

	// Seed a mixed set of entries for one company plus one foreign entry
	seed := []CreateHistoryEntryInput{
		{
			CompanyID: "company-search", BalanceType: domain.BalanceTypeCash,
			BalanceBefore: decimal.Zero, BalanceAfter: decimal.NewFromInt(100),
			OperationType: domain.OperationTypeCashToSafe,
			Description:   "moved morning takings to safe", UserID: "alice",
		},
		{
			CompanyID: "company-search", BalanceType: domain.BalanceTypeCash,
			BalanceBefore: decimal.NewFromInt(100), BalanceAfter: decimal.NewFromInt(80),
			OperationType: domain.OperationTypeCashFromSafe,
			Description:   "change for register", UserID: "bob",
		},
		{
			CompanyID: "company-search", BalanceType: domain.BalanceTypeBank,
			BalanceBefore: decimal.Zero, BalanceAfter: decimal.NewFromInt(500),
			OperationType: domain.OperationTypeBankReconciliation,
			Description:   "monthly statement reconciliation", UserID: "alice",
			DocumentID:    ptr("doc-42"),
		},
		{
			CompanyID: "company-other", BalanceType: domain.BalanceTypeCash,
			BalanceBefore: decimal.Zero, BalanceAfter: decimal.NewFromInt(9),
			OperationType: domain.OperationTypeManualOverride,
			Description:   "unrelated tenant", UserID: "mallory",
		},
	}
	for _, input := range seed {
		_, err := store.CreateHistoryEntry(ctx, input)
		require.NoError(t, err)
	}

	t.Run("requires a company id", func(t *testing.T) {
		_, _, err := store.SearchHistory(ctx, HistorySearchFilter{})
		assert.Error(t, err)
	})

	t.Run("scopes results to the company", func(t *testing.T) {
		entries, total, err := store.SearchHistory(ctx, HistorySearchFilter{CompanyID: "company-search"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		for _, e := range entries {
			assert.Equal(t, "company-search", e.CompanyID)
		}
	})

	t.Run("filters by balance type", func(t *testing.T) {
		balanceType := domain.BalanceTypeBank
		entries, total, err := store.SearchHistory(ctx, HistorySearchFilter{
			CompanyID:   "company-search",
			BalanceType: &balanceType,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, entries, 1)
		assert.Equal(t, domain.OperationTypeBankReconciliation, entries[0].OperationType)
	})

	t.Run("combines user, operation type and document filters", func(t *testing.T) {
		opType := domain.OperationTypeBankReconciliation
		entries, total, err := store.SearchHistory(ctx, HistorySearchFilter{
			CompanyID:     "company-search",
			OperationType: &opType,
			UserID:        ptr("alice"),
			DocumentID:    ptr("doc-42"),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, entries, 1)
		assert.Equal(t, "alice", entries[0].UserID)
	})

	t.Run("matches description text case-insensitively", func(t *testing.T) {
		_, total, err := store.SearchHistory(ctx, HistorySearchFilter{
			CompanyID:  "company-search",
			SearchText: ptr("STATEMENT"),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("applies the date range", func(t *testing.T) {
		past := time.Now().UTC().Add(-2 * time.Hour)
		cutoff := time.Now().UTC().Add(-1 * time.Hour)
		_, total, err := store.SearchHistory(ctx, HistorySearchFilter{
			CompanyID: "company-search",
			StartDate: &past,
			EndDate:   &cutoff,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total, "entries created now must fall outside a past-only range")
	})

	t.Run("paginates while reporting the full total", func(t *testing.T) {
		entries, total, err := store.SearchHistory(ctx, HistorySearchFilter{
			CompanyID: "company-search",
			Page:      Page{Limit: 2, Offset: 0},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, entries, 2)

		rest, _, err := store.SearchHistory(ctx, HistorySearchFilter{
			CompanyID: "company-search",
			Page:      Page{Limit: 2, Offset: 2},
		})
		require.NoError(t, err)
		assert.Len(t, rest, 1)
	})
}

// =============================================================================
// Test: canned fallback queries
// =============================================================================

func testListHistoryFallbacks(t *testing.T, store Store) {
	ctx := context.Background()

	for i, balanceType := range []domain.BalanceType{
		domain.BalanceTypeCash, domain.BalanceTypeCash, domain.BalanceTypeBank,
	} {
		input := buildTestHistoryEntry("company-list", balanceType,
			decimal.NewFromInt(int64(i)), decimal.NewFromInt(int64(i+1)))
		if i == 0 {
			input.UserID = "carol"
		}
		_, err := store.CreateHistoryEntry(ctx, input)
		require.NoError(t, err)
	}

	t.Run("by balance type", func(t *testing.T) {
		entries, total, err := store.ListHistoryByBalanceType(ctx, "company-list",
			domain.BalanceTypeCash, Page{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, entries, 2)
	})

	t.Run("by user", func(t *testing.T) {
		entries, total, err := store.ListHistoryByUser(ctx, "company-list", "carol", Page{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, entries, 1)
		assert.Equal(t, "carol", entries[0].UserID)
	})

	t.Run("by date range", func(t *testing.T) {
		start := time.Now().UTC().Add(-time.Hour)
		end := time.Now().UTC().Add(time.Hour)
		_, total, err := store.ListHistoryByDateRange(ctx, "company-list", start, end, Page{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})

	t.Run("unfiltered with newest entries first", func(t *testing.T) {
		entries, total, err := store.ListHistory(ctx, "company-list", Page{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, entries, 3)
		for i := 1; i < len(entries); i++ {
			assert.False(t, entries[i].Timestamp.After(entries[i-1].Timestamp),
				"entries must be ordered newest first")
		}
	})
}

// =============================================================================
// Test: GetHistoryRange
// =============================================================================

func testGetHistoryRange(t *testing.T, store Store) {
	ctx := context.Background()

	balances := []int64{0, 100, 250, 175}
	for i := 1; i < len(balances); i++ {
		_, err := store.CreateHistoryEntry(ctx, buildTestHistoryEntry("company-range",
			domain.BalanceTypeCash,
			decimal.NewFromInt(balances[i-1]), decimal.NewFromInt(balances[i])))
		require.NoError(t, err)
	}
	// Entry of another type must not appear in the range
	_, err := store.CreateHistoryEntry(ctx, buildTestHistoryEntry("company-range",
		domain.BalanceTypeBank, decimal.Zero, decimal.NewFromInt(1)))
	require.NoError(t, err)

	start := time.Now().UTC().Add(-time.Hour)
	end := time.Now().UTC().Add(time.Hour)

	entries, err := store.GetHistoryRange(ctx, "company-range", domain.BalanceTypeCash, start, end)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	for i, entry := range entries {
		assert.Equal(t, domain.BalanceTypeCash, entry.BalanceType)
		if i > 0 {
			assert.False(t, entry.Timestamp.Before(entries[i-1].Timestamp),
				"range entries must be ordered oldest first")
		}
	}

	empty, err := store.GetHistoryRange(ctx, "company-range", domain.BalanceTypeCash,
		start.Add(-2*time.Hour), start)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// ptr is a test helper for optional string filters
func ptr(s string) *string {
	return &s
}

// RunStoreTests runs all store tests against the given implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"EnsureAccount", testEnsureAccount},
		{"GetCompanyBalance", testGetCompanyBalance},
		{"ApplyBalanceMutation", testApplyBalanceMutation},
		{"CreateHistoryEntry", testCreateHistoryEntry},
		{"SearchHistory", testSearchHistory},
		{"ListHistoryFallbacks", testListHistoryFallbacks},
		{"GetHistoryRange", testGetHistoryRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, store)
		})
	}
}
