// Package main is the entry point for the tpv API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tpv/internal/core/types"
	"tpv/internal/domain/auth"
	"tpv/internal/domain/cashsession"
	"tpv/internal/domain/catalog/customer"
	"tpv/internal/domain/catalog/product"
	"tpv/internal/domain/ledger"
	"tpv/internal/domain/purchase"
	"tpv/internal/domain/sales"
	v1 "tpv/internal/infrastructure/http/v1"
	"tpv/internal/infrastructure/storage/postgres"
	"tpv/internal/infrastructure/storage/postgres/auth_repo"
	"tpv/internal/infrastructure/storage/postgres/catalog_repo"
	"tpv/internal/infrastructure/storage/postgres/ledger_repo"
	"tpv/internal/infrastructure/storage/postgres/purchase_repo"
	"tpv/internal/infrastructure/storage/postgres/sales_repo"
	"tpv/internal/infrastructure/storage/postgres/session_repo"
	"tpv/pkg/logger"
	"tpv/pkg/numerator"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting tpv server")

	// --- Database ---
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// Numbers are allocated against the pool, outside business
	// transactions, so aborted sales leave gaps instead of reused numbers.
	numbers := numerator.New(pool.Unwrap())

	// --- Repositories ---
	productRepo := catalog_repo.NewProductRepo(txManager)
	customerRepo := catalog_repo.NewCustomerRepo(txManager)
	stockRepo := ledger_repo.NewStockRepo(txManager)
	saleRepo := sales_repo.NewSaleRepo(txManager)
	sessionRepo := session_repo.NewSessionRepo(txManager)
	orderRepo := purchase_repo.NewOrderRepo(txManager)
	userRepo := auth_repo.NewUserRepo(txManager)
	tokenRepo := auth_repo.NewTokenRepo(txManager)

	// --- Domain services ---
	productService := product.NewService(productRepo, txManager)
	customerService := customer.NewService(customerRepo, txManager)
	ledgerService := ledger.NewService(stockRepo, txManager)
	sessionService := cashsession.NewService(sessionRepo, txManager, numbers)
	purchaseService := purchase.NewService(orderRepo, ledgerService, numbers, txManager)

	taxRate, err := types.NewMoneyFromString(getEnv("TAX_RATE", "0.16"))
	if err != nil {
		log.Fatalw("invalid TAX_RATE", "error", err)
	}

	salesEvents := sales_repo.NewEventPublisher(postgres.NewOutboxPublisher(txManager))
	salesService := sales.NewService(
		saleRepo,
		ledgerService,
		sessionService,
		productRepo,
		customerService,
		numbers,
		salesEvents,
		txManager,
		sales.Config{TaxRate: taxRate},
	)

	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	// --- Auth ---
	jwtSecret := getEnv("JWT_SECRET", "your-secret-key-change-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))
	authService := auth.NewService(userRepo, tokenRepo, txManager, jwtService, auth.DefaultServiceConfig())

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:               pool,
		TxManager:          txManager,
		Audit:              auditService,
		Logger:             log,
		JWTValidator:       jwtService,
		AuthService:        authService,
		ProductService:     productService,
		CustomerService:    customerService,
		LedgerService:      ledgerService,
		SalesService:       salesService,
		SessionService:     sessionService,
		PurchaseService:    purchaseService,
		IdempotencyEnabled: getEnv("IDEMPOTENCY_ENABLED", "true") == "true",
		IdempotencyTTL:     getEnvDuration("IDEMPOTENCY_TTL", 10*time.Minute),
	})

	// --- HTTP server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
