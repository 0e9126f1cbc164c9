// Package main is the entry point for the tpv background worker.
// It relays the transactional outbox and runs periodic cleanup.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tpv/internal/core/id"
	"tpv/internal/domain/cashsession"
	"tpv/internal/domain/sales"
	"tpv/internal/infrastructure/storage/postgres"
	"tpv/internal/infrastructure/storage/postgres/auth_repo"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting tpv worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)

	sessionRepo := session_repo.NewSessionRepo(txManager)
	sessionService := cashsession.NewService(sessionRepo, txManager, numerator.New(pool.Unwrap()))

	handler := &eventHandler{sessions: sessionService, log: log.WithComponent("outbox")}
	relay := postgres.NewOutboxRelay(pool.Unwrap(), getEnvInt("OUTBOX_BATCH_SIZE", 100), handler)

	tokenRepo := auth_repo.NewTokenRepo(txManager)
	idempotencyStore := postgres.NewIdempotencyStore(txManager, getEnvDuration("IDEMPOTENCY_TTL", 10*time.Minute))

	worker := &Worker{
		relay:       relay,
		tokens:      tokenRepo,
		idempotency: idempotencyStore,
		log:         log.WithComponent("worker"),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker drives the outbox relay and hourly cleanup.
type Worker struct {
	relay       *postgres.OutboxRelay
	tokens      *auth_repo.TokenRepo
	idempotency *postgres.IdempotencyStore
	log         *logger.Logger
}

// Run polls the outbox until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(getEnvDuration("OUTBOX_POLL_INTERVAL", 500*time.Millisecond))
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processOutbox(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *Worker) processOutbox(ctx context.Context) {
	processed, err := w.relay.ProcessBatch(ctx)
	if err != nil {
		w.log.Errorw("outbox batch failed", "error", err)
		return
	}
	if processed > 0 {
		w.log.Debugw("processed outbox batch", "count", processed)
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	if n, err := w.tokens.DeleteExpired(ctx); err != nil {
		w.log.Errorw("token cleanup failed", "error", err)
	} else if n > 0 {
		w.log.Infow("cleaned up expired refresh tokens", "count", n)
	}

	if n, err := w.idempotency.CleanupExpired(ctx); err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
	} else if n > 0 {
		w.log.Infow("cleaned up expired idempotency keys", "count", n)
	}

	if n, err := w.relay.MoveToDLQ(ctx); err != nil {
		w.log.Errorw("DLQ move failed", "error", err)
	} else if n > 0 {
		w.log.Warnw("moved exhausted outbox messages to DLQ", "count", n)
	}
}

// eventHandler consumes relayed domain events.
type eventHandler struct {
	sessions *cashsession.Service
	log      *logger.Logger
}

// Handle dispatches one outbox message. Delivery is at-least-once, so
// every branch must tolerate replays.
func (h *eventHandler) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	switch msg.EventType {
	case sales.EventSaleCompleted:
		return h.handleSaleCompleted(ctx, msg)
	case sales.EventSaleCancelled:
		h.log.Infow("sale cancelled", "sale_id", msg.AggregateID)
		return nil
	default:
		h.log.Warnw("unknown outbox event", "event_type", msg.EventType, "message_id", msg.ID)
		return nil
	}
}

// handleSaleCompleted attaches completed cash sales to their session.
// Idempotent by sale id: replays become no-ops in the repository.
func (h *eventHandler) handleSaleCompleted(ctx context.Context, msg *postgres.OutboxMessage) error {
	var payload sales.SaleCompletedPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("decode sale.completed payload: %w", err)
	}

	// Non-cash tenders never touch the drawer.
	if !payload.Cash || payload.SessionID == nil || id.IsNil(*payload.SessionID) {
		return nil
	}

	if err := h.sessions.AttachSale(ctx, *payload.SessionID, payload.SaleID, payload.Total); err != nil {
		return fmt.Errorf("attach sale %s to session %s: %w", payload.SaleID, *payload.SessionID, err)
	}

	h.log.Infow("attached sale to session",
		"sale_id", payload.SaleID,
		"session_id", *payload.SessionID,
		"number", payload.Number,
	)
	return nil
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
