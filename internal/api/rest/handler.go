package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldserve/balance-ledger/internal/api/middleware"
	"github.com/fieldserve/balance-ledger/internal/domain"
	"github.com/fieldserve/balance-ledger/internal/history"
	"github.com/fieldserve/balance-ledger/internal/override"
	"github.com/fieldserve/balance-ledger/internal/store"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// MoveCashToSafe moves cash into the safe
	// POST /api/v1/cash/to-safe
	MoveCashToSafe(c *gin.Context)

	// MoveCashFromSafe moves cash out of the safe
	// POST /api/v1/cash/from-safe
	MoveCashFromSafe(c *gin.Context)

	// ReconcileBank sets the bank balance to a statement value
	// POST /api/v1/bank/reconcile
	ReconcileBank(c *gin.Context)

	// CashInventory sets the cash balance to a physical count
	// POST /api/v1/cash/inventory
	CashInventory(c *gin.Context)

	// ManualOverride sets a chosen balance to an arbitrary value
	// POST /api/v1/manual
	ManualOverride(c *gin.Context)

	// ProvisionAccount creates the balance account for the caller's company
	// POST /api/v1/account
	ProvisionAccount(c *gin.Context)

	// GetBalance returns the current balance account state
	// GET /api/v1/balance
	GetBalance(c *gin.Context)

	// SearchHistory retrieves filtered, paginated balance history
	// GET /api/v1/history?balance_type=&operation_type=&user_id=&document_id=&start_date=&end_date=&q=&limit=&offset=
	SearchHistory(c *gin.Context)

	// GetStatistics aggregates balance history over a date range
	// GET /api/v1/history/statistics?balance_type=&start_date=&end_date=
	GetStatistics(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	override *override.Service
	history  *history.Service
	store    store.Store
}

// NewHandler creates a new REST API handler
func NewHandler(overrideSvc *override.Service, historySvc *history.Service, st store.Store) Handler {
	return &handler{
		override: overrideSvc,
		history:  historySvc,
		store:    st,
	}
}

// actor resolves the authenticated caller into a service-level actor
func (h *handler) actor(c *gin.Context) (override.Actor, bool) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		return override.Actor{}, false
	}

	ip := c.ClientIP()
	actor := override.Actor{
		CompanyID: identity.CompanyID,
		UserID:    identity.UserID,
		UserName:  identity.UserName,
	}
	if ip != "" {
		actor.IPAddress = &ip
	}
	return actor, true
}

// MoveCashToSafe moves cash into the safe
func (h *handler) MoveCashToSafe(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	var req moveCashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	result := h.override.MoveCashToSafe(c.Request.Context(), actor, req.Amount, req.Description)
	c.JSON(http.StatusOK, result)
}

// MoveCashFromSafe moves cash out of the safe
func (h *handler) MoveCashFromSafe(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	var req moveCashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	result := h.override.MoveCashFromSafe(c.Request.Context(), actor, req.Amount, req.Description)
	c.JSON(http.StatusOK, result)
}

// ReconcileBank sets the bank balance to a statement value
func (h *handler) ReconcileBank(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	result := h.override.ReconcileWithBankStatement(c.Request.Context(), actor, req.StatementBalance, req.Description)
	c.JSON(http.StatusOK, result)
}

// CashInventory sets the cash balance to a physical count
func (h *handler) CashInventory(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	var req inventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	result := h.override.PerformCashInventory(c.Request.Context(), actor, req.CountedAmount, req.Notes)
	c.JSON(http.StatusOK, result)
}

// ManualOverride sets a chosen balance to an arbitrary value
func (h *handler) ManualOverride(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	var req manualOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	result := h.override.OverrideBalance(c.Request.Context(), actor,
		domain.BalanceType(req.BalanceType), req.NewBalance, req.reasonOrDescription(), req.ApprovedBy)
	c.JSON(http.StatusOK, result)
}

// ProvisionAccount creates the balance account for the caller's company.
// Provisioning is idempotent: re-provisioning an existing company returns
// its current state untouched.
func (h *handler) ProvisionAccount(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	account, err := h.store.EnsureAccount(c.Request.Context(), identity.CompanyID)
	if err != nil {
		respondInternalError(c, err, "Failed to provision balance account")
		return
	}

	c.JSON(http.StatusOK, balanceResponse{
		CompanyID:   account.CompanyID,
		CashBalance: account.CashBalance,
		BankBalance: account.BankBalance,
		Version:     account.Version,
		LastUpdated: account.LastUpdated.UTC().Format(time.RFC3339),
	})
}

// GetBalance returns the current balance account state
func (h *handler) GetBalance(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	account, err := h.store.GetCompanyBalance(c.Request.Context(), identity.CompanyID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			respondWithError(c, http.StatusNotFound, errCodeNotFound,
				"No balance account exists for this company")
			return
		}
		respondInternalError(c, err, "Failed to load balance account")
		return
	}

	c.JSON(http.StatusOK, balanceResponse{
		CompanyID:   account.CompanyID,
		CashBalance: account.CashBalance,
		BankBalance: account.BankBalance,
		Version:     account.Version,
		LastUpdated: account.LastUpdated.UTC().Format(time.RFC3339),
	})
}

// SearchHistory retrieves filtered, paginated balance history
func (h *handler) SearchHistory(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	query, err := ParseHistoryQuery(c, identity.CompanyID)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	entries, total, err := h.history.Search(c.Request.Context(), query)
	if err != nil {
		respondInternalError(c, err, "Failed to search balance history")
		return
	}

	c.JSON(http.StatusOK, historyListResponse{
		Items:  entries,
		Total:  total,
		Limit:  query.Page.Limit,
		Offset: query.Page.Offset,
	})
}

// GetStatistics aggregates balance history over a date range
func (h *handler) GetStatistics(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	params, err := ParseStatisticsQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	stats, err := h.history.GetStatistics(c.Request.Context(), identity.CompanyID,
		params.BalanceType, params.Start, params.End)
	if err != nil {
		respondInternalError(c, err, "Failed to compute balance statistics")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}
