package v1

import (
	"time"

	"github.com/gin-gonic/gin"

	"tpv/internal/domain/auth"
	"tpv/internal/domain/cashsession"
	"tpv/internal/domain/catalog/customer"
	"tpv/internal/domain/catalog/product"
	"tpv/internal/domain/ledger"
	"tpv/internal/domain/purchase"
	"tpv/internal/domain/sales"
	"tpv/internal/infrastructure/http/v1/handlers"
	"tpv/internal/infrastructure/http/v1/middleware"
	"tpv/internal/infrastructure/storage/postgres"
	"tpv/pkg/logger"
)

// RouterConfig holds the router dependencies. Services are wired once
// at startup; the router only maps them onto routes.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks).
	Pool *postgres.Pool

	// TxManager backs the idempotency store.
	TxManager *postgres.TxManager

	// Audit records operator actions. Optional.
	Audit *postgres.AuditService

	// Logger for request logging.
	Logger *logger.Logger

	// JWTValidator for token validation.
	JWTValidator middleware.JWTValidator

	// Domain services.
	AuthService     *auth.Service
	ProductService  *product.Service
	CustomerService *customer.Service
	LedgerService   *ledger.Service
	SalesService    *sales.Service
	SessionService  *cashsession.Service
	PurchaseService *purchase.Service

	// IdempotencyEnabled enables idempotency middleware.
	IdempotencyEnabled bool

	// IdempotencyTTL controls how long completed keys replay.
	IdempotencyTTL time.Duration
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

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1
	apiV1 := router.Group("/api/v1")
	{
		registerAuthRoutes(apiV1, cfg)

		// Protected endpoints
		protected := apiV1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		if cfg.IdempotencyEnabled {
			ttl := cfg.IdempotencyTTL
			if ttl <= 0 {
				ttl = 10 * time.Minute
			}
			store := postgres.NewIdempotencyStore(cfg.TxManager, ttl)
			protected.Use(middleware.Idempotency(store))
		}

		registerCatalogRoutes(protected, cfg)
		registerSalesRoutes(protected, cfg)
		registerStockRoutes(protected, cfg)
		registerCashSessionRoutes(protected, cfg)
		registerPurchaseRoutes(protected, cfg)
	}

	return router
}

// registerAuthRoutes registers authentication endpoints.
func registerAuthRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.AuthService == nil {
		return
	}

	baseHandler := handlers.NewBaseHandler()
	authHandler := handlers.NewAuthHandler(baseHandler, cfg.AuthService)

	// Public auth endpoints (no JWT required)
	publicAuth := rg.Group("/auth")

	// Protected auth endpoints (JWT required)
	protectedAuth := rg.Group("/auth")
	protectedAuth.Use(middleware.Auth(cfg.JWTValidator))

	authHandler.RegisterRoutes(publicAuth, protectedAuth)
}

// registerCatalogRoutes registers catalog endpoints.
func registerCatalogRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	catalogs := rg.Group("/catalog")
	baseHandler := handlers.NewBaseHandler()

	// --- PRODUCTS ---
	{
		handler := handlers.NewProductHandler(baseHandler, cfg.ProductService)
		group := catalogs.Group("/products")
		RegisterCatalogRoutes(group, handler, "catalog:product")
		group.GET("/sku/:sku", middleware.RequirePermission("catalog:product:read"), handler.GetBySKU)
	}

	// --- CUSTOMERS ---
	{
		handler := handlers.NewCustomerHandler(baseHandler, cfg.CustomerService)
		group := catalogs.Group("/customers")
		RegisterCatalogRoutes(group, handler, "catalog:customer")
		group.GET("/default", middleware.RequirePermission("catalog:customer:read"), handler.GetDefault)
	}
}

// registerSalesRoutes registers sale endpoints.
func registerSalesRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewSalesHandler(baseHandler, cfg.SalesService)

	group := rg.Group("/sales")
	group.POST("", middleware.RequirePermission("sales:create"), handler.Sell)
	group.POST("/drafts", middleware.RequirePermission("sales:create"), handler.CreateDraft)
	group.GET("", middleware.RequirePermission("sales:read"), handler.List)
	group.GET("/:id", middleware.RequirePermission("sales:read"), handler.Get)
	group.GET("/number/:number", middleware.RequirePermission("sales:read"), handler.GetByNumber)
	group.POST("/:id/confirm", middleware.RequirePermission("sales:confirm"), handler.Confirm)
	group.POST("/:id/deliver", middleware.RequirePermission("sales:deliver"), handler.Deliver)
	group.POST("/:id/cancel", middleware.RequirePermission("sales:cancel"), handler.Cancel)
}

// registerStockRoutes registers stock ledger endpoints.
func registerStockRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewStockHandler(baseHandler, cfg.LedgerService, cfg.ProductService, cfg.Audit)

	products := rg.Group("/catalog/products")
	products.POST("/:id/stock/adjust", middleware.RequirePermission("stock:adjust"), handler.Adjust)
	products.GET("/:id/stock/movements", middleware.RequirePermission("stock:read"), handler.Movements)
	products.GET("/:id/stock/verify", middleware.RequirePermission("stock:read"), handler.Verify)

	stock := rg.Group("/stock")
	stock.PATCH("/movements/:id/note", middleware.RequirePermission("stock:adjust"), handler.AnnotateMovement)
}

// registerCashSessionRoutes registers cash drawer session endpoints.
func registerCashSessionRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewCashSessionHandler(baseHandler, cfg.SessionService, cfg.Audit)

	group := rg.Group("/cash-sessions")
	group.POST("", middleware.RequirePermission("cash:open"), handler.Open)
	group.GET("", middleware.RequirePermission("cash:read"), handler.List)
	group.GET("/current", middleware.RequirePermission("cash:read"), handler.Current)
	group.POST("/adjustments", middleware.RequirePermission("cash:adjust"), handler.Adjust)
	group.GET("/:id", middleware.RequirePermission("cash:read"), handler.Get)
	group.POST("/:id/close", middleware.RequirePermission("cash:close"), handler.Close)
	group.GET("/:id/report", middleware.RequirePermission("cash:read"), handler.Report)
}

// registerPurchaseRoutes registers purchase order endpoints.
func registerPurchaseRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewPurchaseOrderHandler(baseHandler, cfg.PurchaseService)

	group := rg.Group("/purchase-orders")
	group.POST("", middleware.RequirePermission("purchase:create"), handler.Create)
	group.GET("", middleware.RequirePermission("purchase:read"), handler.List)
	group.GET("/:id", middleware.RequirePermission("purchase:read"), handler.Get)
	group.POST("/:id/receive", middleware.RequirePermission("purchase:receive"), handler.Receive)
	group.POST("/:id/cancel", middleware.RequirePermission("purchase:cancel"), handler.Cancel)
}
