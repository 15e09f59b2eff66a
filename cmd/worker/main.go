package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/therealutkarshpriyadarshi/ark/internal/config"
	"github.com/therealutkarshpriyadarshi/ark/internal/database"
	"github.com/therealutkarshpriyadarshi/ark/internal/logging"
	"github.com/therealutkarshpriyadarshi/ark/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ark/internal/queue"
	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logging.NewWithWriter(os.Stderr, "info").Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		logging.NewWithWriter(os.Stderr, "info").Fatalf("Failed to initialize logger: %v", err)
	}
	logger = logger.WithComponent("worker")

	// Initialize database
	db, err := database.New(cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	// Initialize queue
	q, err := queue.New(cfg.Queue, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.ErrorWithErr("Metrics server stopped", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker gracefully...")
		cancel()
	}()

	// Event handler
	eventHandler := func(ctx context.Context, evt *models.SessionEvent) error {
		start := time.Now()
		err := repo.Record(ctx, evt)
		logger.WithSessionID(evt.SessionID).LogDatabaseOperation("record_"+evt.Type, time.Since(start), err)
		return err
	}

	logger.Info("Worker started, waiting for practice events...")
	if err := q.ConsumeEvents(ctx, eventHandler); err != nil {
		logger.Fatalf("Failed to consume events: %v", err)
	}

	if cfg.Queue.ReplayDLQ {
		replay := func(evt *models.SessionEvent, reason string) error {
			logger.WithSessionID(evt.SessionID).Infof("Replaying %s event %s (%s)", evt.Type, evt.ID, reason)
			return q.RetryFromDLQ(ctx, evt)
		}
		if err := q.ConsumeDLQ(ctx, replay); err != nil {
			logger.Fatalf("Failed to consume dead letter queue: %v", err)
		}
	}

	go reportDepth(ctx, q, logger)

	// Wait for shutdown
	<-ctx.Done()

	if metricsServer != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		metricsServer.Shutdown(shutdownCtx)
		done()
	}
	logger.Info("Worker stopped")
}

// reportDepth logs queue backlog while events are failing
func reportDepth(ctx context.Context, q *queue.Queue, logger *logging.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth, err := q.GetQueueDepth()
			if err != nil {
				logger.WarnWithErr("Failed to inspect events queue", err)
				continue
			}
			dlq, err := q.GetDLQDepth()
			if err != nil {
				logger.WarnWithErr("Failed to inspect dead letter queue", err)
				continue
			}
			if dlq > 0 {
				logger.WithFields(map[string]interface{}{
					"queue_depth": depth,
					"dlq_depth":   dlq,
				}).Warn("Practice events are dead-lettered")
			}
		}
	}
}
