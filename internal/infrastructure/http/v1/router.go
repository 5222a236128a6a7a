// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"payables/internal/core/numerator"
	"payables/internal/domain/expense"
	"payables/internal/domain/invoice"
	"payables/internal/domain/ledger"
	"payables/internal/domain/liability"
	"payables/internal/infrastructure/http/v1/handlers"
	"payables/internal/infrastructure/http/v1/middleware"
	"payables/internal/infrastructure/storage/postgres"
	"payables/internal/infrastructure/storage/postgres/ledger_repo"
	"payables/internal/infrastructure/storage/postgres/payable_repo"
	"payables/internal/infrastructure/storage/postgres/refdata_repo"
	"payables/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks).
	Pool *postgres.Pool

	// TxManager runs all repository work.
	TxManager *postgres.TxManager

	// Logger for request logging.
	Logger *logger.Logger

	// Numerator generates document numbers.
	Numerator numerator.Generator

	// Audit records document mutations. Optional.
	Audit *postgres.AuditService
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// Repositories
	readers := refdata_repo.NewReader(cfg.TxManager)
	ledgerRepo := ledger_repo.NewLedgerRepo(cfg.TxManager)
	liabilityRepo := payable_repo.NewLiabilityRepo(cfg.TxManager)
	invoiceRepo := payable_repo.NewInvoiceRepo(cfg.TxManager)
	expenseRepo := payable_repo.NewExpenseRepo(cfg.TxManager)

	// Services
	ledgerService := ledger.NewService(ledgerRepo, readers, cfg.TxManager)
	liabilityService := liability.NewService(liabilityRepo, readers, cfg.Numerator, cfg.TxManager)
	invoiceService := invoice.NewService(invoiceRepo, readers, ledgerService, cfg.Numerator, cfg.TxManager)
	expenseService := expense.NewService(expenseRepo, readers, invoiceService, cfg.Numerator, cfg.TxManager)

	// API v1
	base := handlers.NewBaseHandler()
	api := router.Group("/api/v1")
	{
		handlers.NewAccountHandler(base, ledgerService).RegisterRoutes(api)
		handlers.NewLiabilityHandler(base, liabilityService, cfg.Audit).RegisterRoutes(api)
		handlers.NewInvoiceHandler(base, invoiceService, cfg.Audit).RegisterRoutes(api)
		handlers.NewExpenseHandler(base, expenseService, cfg.Audit).RegisterRoutes(api)
	}

	return router
}
