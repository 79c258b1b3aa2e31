package rest

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/balance-ledger/internal/domain"
)

func testContext(t *testing.T, rawQuery string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req, err := http.NewRequest(http.MethodGet, "/api/v1/history?"+rawQuery, nil)
	require.NoError(t, err)
	c.Request = req
	return c
}

func TestParseHistoryQuery(t *testing.T) {
	t.Run("company id always comes from the identity", func(t *testing.T) {
		c := testContext(t, "company_id=attacker-co")

		query, err := ParseHistoryQuery(c, "company-1")
		require.NoError(t, err)
		assert.Equal(t, "company-1", query.CompanyID)
	})

	t.Run("parses all supported filters", func(t *testing.T) {
		c := testContext(t, "balance_type=CASH&operation_type=CASH_TO_SAFE&user_id=alice"+
			"&document_id=doc-1&start_date=2026-08-01T00:00:00Z&end_date=2026-08-31T00:00:00Z"+
			"&q=safe&limit=25&offset=50")

		query, err := ParseHistoryQuery(c, "company-1")
		require.NoError(t, err)

		require.NotNil(t, query.BalanceType)
		assert.Equal(t, domain.BalanceTypeCash, *query.BalanceType)
		require.NotNil(t, query.OperationType)
		assert.Equal(t, domain.OperationTypeCashToSafe, *query.OperationType)
		assert.Equal(t, "alice", *query.UserID)
		assert.Equal(t, "doc-1", *query.DocumentID)
		assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), query.StartDate.UTC())
		assert.Equal(t, "safe", *query.SearchText)
		assert.Equal(t, 25, query.Page.Limit)
		assert.Equal(t, 50, query.Page.Offset)
	})

	t.Run("omitted filters stay nil", func(t *testing.T) {
		c := testContext(t, "")

		query, err := ParseHistoryQuery(c, "company-1")
		require.NoError(t, err)
		assert.Nil(t, query.BalanceType)
		assert.Nil(t, query.OperationType)
		assert.Nil(t, query.UserID)
		assert.Nil(t, query.StartDate)
		assert.Nil(t, query.SearchText)
	})

	tests := []struct {
		name     string
		rawQuery string
	}{
		{"invalid balance type", "balance_type=GOLD"},
		{"invalid operation type", "operation_type=TRANSFER"},
		{"invalid start date", "start_date=yesterday"},
		{"invalid end date", "end_date=31-08-2026"},
		{"non-numeric limit", "limit=ten"},
		{"negative limit", "limit=-1"},
		{"negative offset", "offset=-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testContext(t, tt.rawQuery)
			_, err := ParseHistoryQuery(c, "company-1")
			assert.Error(t, err)
		})
	}
}

func TestParseStatisticsQuery(t *testing.T) {
	t.Run("requires a valid balance type", func(t *testing.T) {
		c := testContext(t, "")
		_, err := ParseStatisticsQuery(c)
		assert.Error(t, err)
	})

	t.Run("defaults to the last 30 days", func(t *testing.T) {
		c := testContext(t, "balance_type=BANK")

		params, err := ParseStatisticsQuery(c)
		require.NoError(t, err)
		assert.Equal(t, domain.BalanceTypeBank, params.BalanceType)
		assert.WithinDuration(t, time.Now().UTC(), params.End, time.Minute)
		assert.WithinDuration(t, params.End.AddDate(0, 0, -30), params.Start, time.Minute)
	})

	t.Run("accepts an explicit range", func(t *testing.T) {
		c := testContext(t, "balance_type=CASH&start_date=2026-08-01T00:00:00Z&end_date=2026-08-31T00:00:00Z")

		params, err := ParseStatisticsQuery(c)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), params.Start.UTC())
		assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), params.End.UTC())
	})

	t.Run("rejects a range ending before it starts", func(t *testing.T) {
		c := testContext(t, "balance_type=CASH&start_date=2026-08-31T00:00:00Z&end_date=2026-08-01T00:00:00Z")

		_, err := ParseStatisticsQuery(c)
		assert.Error(t, err)
	})
}
