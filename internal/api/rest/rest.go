package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/fieldserve/balance-ledger/internal/api/middleware"
)

// SetupRoutes configures all REST API routes. Every ledger endpoint
// requires a resolvable authenticated identity.
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1", middleware.Auth(authCfg))
	{
		// Account lifecycle
		v1.POST("/account", handler.ProvisionAccount)
		v1.GET("/balance", handler.GetBalance)

		// Override operations
		v1.POST("/cash/to-safe", handler.MoveCashToSafe)
		v1.POST("/cash/from-safe", handler.MoveCashFromSafe)
		v1.POST("/cash/inventory", handler.CashInventory)
		v1.POST("/bank/reconcile", handler.ReconcileBank)
		v1.POST("/manual", handler.ManualOverride)

		// History query API
		v1.GET("/history", handler.SearchHistory)
		v1.GET("/history/statistics", handler.GetStatistics)
	}
}
