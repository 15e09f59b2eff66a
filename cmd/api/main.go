package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/therealutkarshpriyadarshi/ark/internal/blob"
	"github.com/therealutkarshpriyadarshi/ark/internal/cache"
	"github.com/therealutkarshpriyadarshi/ark/internal/camera"
	"github.com/therealutkarshpriyadarshi/ark/internal/catalog"
	"github.com/therealutkarshpriyadarshi/ark/internal/config"
	"github.com/therealutkarshpriyadarshi/ark/internal/database"
	"github.com/therealutkarshpriyadarshi/ark/internal/logging"
	"github.com/therealutkarshpriyadarshi/ark/internal/media"
	"github.com/therealutkarshpriyadarshi/ark/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ark/internal/middleware"
	"github.com/therealutkarshpriyadarshi/ark/internal/pose"
	"github.com/therealutkarshpriyadarshi/ark/internal/probe"
	"github.com/therealutkarshpriyadarshi/ark/internal/queue"
	"github.com/therealutkarshpriyadarshi/ark/internal/selector"
	"github.com/therealutkarshpriyadarshi/ark/internal/session"
	"github.com/therealutkarshpriyadarshi/ark/internal/storage"
	"github.com/therealutkarshpriyadarshi/ark/internal/tracing"
	"github.com/therealutkarshpriyadarshi/ark/internal/webhook"
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

	tracer, err := tracing.Setup(cfg.Tracing.Enabled, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
	if err != nil {
		logger.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer tracer.Close()

	api := &API{
		catalog: catalog.Default(),
		checks:  map[string]func(context.Context) error{},
		logger:  logger.WithComponent("api"),
	}

	var sinks session.Sinks

	// Initialize database
	if cfg.Database.Enabled {
		db, err := database.New(cfg.Database, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		repo := database.NewRepository(db)
		api.history = repo
		api.checks["database"] = repo.Health
		if !cfg.Queue.Enabled {
			sinks = append(sinks, repo)
		}
	}

	// Initialize queue; the worker persists what it publishes
	if cfg.Queue.Enabled {
		q, err := queue.New(cfg.Queue, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to queue: %v", err)
		}
		defer q.Close()
		sinks = append(sinks, q)
	}

	// Session event webhooks
	if len(cfg.Webhooks.Endpoints) > 0 {
		endpoints := make([]webhook.Endpoint, 0, len(cfg.Webhooks.Endpoints))
		for _, ep := range cfg.Webhooks.Endpoints {
			endpoints = append(endpoints, webhook.Endpoint{URL: ep.URL, Secret: ep.Secret, Events: ep.Events})
		}
		notifier := webhook.NewNotifier(webhook.Config{
			Endpoints: endpoints,
			Timeout:   cfg.Webhooks.Timeout,
			QueueSize: cfg.Webhooks.QueueSize,
		}, logger)
		defer notifier.Close()
		sinks = append(sinks, notifier)
	}

	// Initialize storage
	var blobBackend blob.Backend = blob.NewMemoryBackend()
	var weights pose.Downloader = pose.Dir(cfg.Pose.WeightDir)
	if cfg.Storage.Enabled {
		stor, err := storage.New(cfg.Storage)
		if err != nil {
			logger.Fatalf("Failed to initialize storage: %v", err)
		}
		blobBackend = stor
		weights = stor
		api.checks["storage"] = stor.Health

		sweepCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if n, err := blob.Sweep(sweepCtx, stor); err != nil {
			logger.WarnWithErr("Failed to sweep orphaned blobs", err)
		} else if n > 0 {
			logger.Infof("Removed %d orphaned blobs", n)
		}
		cancel()
	}

	// Initialize probe cache
	var probeCache catalog.ProbeCache
	if cfg.Redis.Enabled {
		c, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer c.Close()
		probeCache = c
		api.checks["redis"] = c.Ping
	}

	api.blobs = blob.NewRegistry(cfg.Server.PublicOrigin, blobBackend, logger)
	prober := probe.New(cfg.Media.FFprobePath, cfg.Media.ProbeTimeout)
	pickerCfg := catalog.PickerConfig{
		MediaRoot:    cfg.Catalog.MediaRoot,
		MediaBaseURL: cfg.Catalog.MediaBaseURL,
		CacheTTL:     cfg.Catalog.ProbeCacheTTL,
	}
	uploadCfg := media.Config{
		TempDir:     cfg.Media.TempDir,
		MaxFileSize: cfg.Media.MaxFileSize,
	}

	// Each selection flow gets its own style filter and upload attempt state
	newSelector := func(l selector.Listener) *selector.Coordinator {
		picker := catalog.NewPicker(api.catalog, prober, probeCache, pickerCfg, logger)
		uploader := media.NewUploader(api.blobs, prober, uploadCfg, logger)
		return selector.New(picker, uploader, l, logger)
	}

	cam := camera.NewDevice(camera.Config{
		FFmpegPath:  cfg.Camera.FFmpegPath,
		FrontDevice: cfg.Camera.FrontDevice,
		RearDevice:  cfg.Camera.RearDevice,
		Width:       cfg.Camera.Width,
		Height:      cfg.Camera.Height,
		FrameRate:   cfg.Camera.FrameRate,
	}, logger)
	engine := pose.NewEngine(weights, cfg.Pose.WeightPrefix, cfg.Pose.CacheDir, logger)

	var events session.EventSink
	if len(sinks) > 0 {
		events = sinks
	}
	api.sessions = session.NewManager(cam, engine, events, newSelector, session.Config{
		ModelName:        cfg.Pose.ModelName,
		CountdownSeconds: cfg.Session.CountdownSeconds,
	}, cfg.Session.MaxSessions, logger)

	// Metrics server
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.ErrorWithErr("Metrics server stopped", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsServer.Shutdown(ctx)
		}()
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	stopCleanup := make(chan struct{})
	go limiter.Cleanup(5*time.Minute, stopCleanup)
	defer close(stopCleanup)

	router := setupRouter(api, limiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithErr("Server forced to shutdown", err)
	}

	api.sessions.CloseAll()
	if err := api.blobs.ReleaseAll(); err != nil {
		logger.WarnWithErr("Failed to release blobs", err)
	}

	logger.Info("Server stopped")
}
