package rest

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldserve/balance-ledger/internal/domain"
	"github.com/fieldserve/balance-ledger/internal/history"
	"github.com/fieldserve/balance-ledger/internal/store"
)

// ParseHistoryQuery builds a history search query from request parameters.
// The company id comes from the authenticated identity, never from the
// query string.
func ParseHistoryQuery(c *gin.Context, companyID string) (history.SearchQuery, error) {
	q := history.SearchQuery{CompanyID: companyID}

	if raw := c.Query("balance_type"); raw != "" {
		balanceType := domain.BalanceType(raw)
		if !domain.IsValidBalanceType(balanceType) {
			return q, fmt.Errorf("invalid balance_type: %s", raw)
		}
		q.BalanceType = &balanceType
	}

	if raw := c.Query("operation_type"); raw != "" {
		operationType := domain.OperationType(raw)
		if !domain.IsValidOperationType(operationType) {
			return q, fmt.Errorf("invalid operation_type: %s", raw)
		}
		q.OperationType = &operationType
	}

	if raw := c.Query("user_id"); raw != "" {
		q.UserID = &raw
	}

	if raw := c.Query("document_id"); raw != "" {
		q.DocumentID = &raw
	}

	if raw := c.Query("start_date"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, fmt.Errorf("invalid start_date: %s", raw)
		}
		q.StartDate = &start
	}

	if raw := c.Query("end_date"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, fmt.Errorf("invalid end_date: %s", raw)
		}
		q.EndDate = &end
	}

	if raw := c.Query("q"); raw != "" {
		q.SearchText = &raw
	}

	page, err := parsePage(c)
	if err != nil {
		return q, err
	}
	q.Page = page

	return q, nil
}

// statisticsParams holds the parsed statistics query parameters
type statisticsParams struct {
	BalanceType domain.BalanceType
	Start       time.Time
	End         time.Time
}

// ParseStatisticsQuery parses the statistics parameters. The range
// defaults to the last 30 days when not given.
func ParseStatisticsQuery(c *gin.Context) (statisticsParams, error) {
	var params statisticsParams

	params.BalanceType = domain.BalanceType(c.Query("balance_type"))
	if !domain.IsValidBalanceType(params.BalanceType) {
		return params, fmt.Errorf("invalid balance_type: %s", c.Query("balance_type"))
	}

	params.End = time.Now().UTC()
	params.Start = params.End.AddDate(0, 0, -30)

	if raw := c.Query("start_date"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return params, fmt.Errorf("invalid start_date: %s", raw)
		}
		params.Start = start
	}

	if raw := c.Query("end_date"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return params, fmt.Errorf("invalid end_date: %s", raw)
		}
		params.End = end
	}

	if params.End.Before(params.Start) {
		return params, fmt.Errorf("end_date is before start_date")
	}

	return params, nil
}

// parsePage parses limit/offset pagination parameters
func parsePage(c *gin.Context) (store.Page, error) {
	var page store.Page

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return page, fmt.Errorf("invalid limit: %s", raw)
		}
		page.Limit = limit
	}

	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return page, fmt.Errorf("invalid offset: %s", raw)
		}
		page.Offset = offset
	}

	return page, nil
}
