package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/astralcore/haven/internal/api"
	"github.com/astralcore/haven/internal/auth"
	"github.com/astralcore/haven/internal/classify"
	"github.com/astralcore/haven/internal/config"
	"github.com/astralcore/haven/internal/crisis"
	"github.com/astralcore/haven/internal/db"
	"github.com/astralcore/haven/internal/hub"
	"github.com/astralcore/haven/internal/models"
	"github.com/astralcore/haven/internal/notify"
	"github.com/astralcore/haven/internal/observ"
	"github.com/astralcore/haven/internal/presence"
	"github.com/astralcore/haven/internal/queue"
	"github.com/astralcore/haven/internal/ratelimit"
	"github.com/astralcore/haven/internal/repository"
	"github.com/astralcore/haven/internal/repository/postgres"
	"github.com/astralcore/haven/internal/room"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	if err := models.ValidatePermissionTable(); err != nil {
		return fmt.Errorf("permission table: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observ.NewMetrics(registry)

	// Persistence is async and best-effort; the hub runs fully in memory
	// when the database is unreachable at boot.
	var recorder *repository.Recorder
	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Warn("database unavailable, running without persistence", zap.Error(err))
		recorder = repository.NewRecorder(nil, nil, nil, nil, logger)
	} else {
		defer database.Close()
		pool := database.Pool()
		recorder = repository.NewRecorder(
			postgres.NewMessageStore(pool),
			postgres.NewRoomStore(pool),
			postgres.NewAlertStore(pool),
			postgres.NewAuditStore(pool),
			logger,
		)
	}

	notifier, err := notify.New(cfg.RedisURL, logger)
	if err != nil {
		return fmt.Errorf("create notifier: %w", err)
	}

	tracker := presence.NewTracker(logger)
	messageQueue := queue.New(cfg.QueueCapPerUser, cfg.QueueTTL, logger, metrics.QueueDepth)
	limiter := ratelimit.New(map[ratelimit.Category]ratelimit.Limit{
		ratelimit.CategoryMessage:     {Max: cfg.MessageLimit, Window: cfg.MessageWindow},
		ratelimit.CategoryCrisisAlert: {Max: cfg.CrisisAlertLimit, Window: cfg.CrisisAlertWindow},
		ratelimit.CategoryRoomOp:      {Max: cfg.RoomOpLimit, Window: cfg.RoomOpWindow},
	})

	connectionHub := hub.New(hub.Deps{
		Config:     cfg,
		Resolver:   auth.NewResolver(cfg.JWTSecret),
		Rooms:      room.NewRegistry(),
		Presence:   tracker,
		Queue:      messageQueue,
		Limiter:    limiter,
		Classifier: classify.NewKeywordClassifier(),
		Recorder:   recorder,
		Notifier:   notifier,
		Metrics:    metrics,
		Logger:     logger,
	})

	coordinator := crisis.NewCoordinator(crisis.Config{
		CounselorLoadCap:   cfg.CounselorLoadCap,
		MaxEscalationLevel: cfg.MaxEscalationLevel,
		ConfidenceFloor:    cfg.CrisisConfidenceFloor,
		EscalationDelays: map[models.Severity]time.Duration{
			models.SeverityCritical: cfg.EscalateCritical,
			models.SeverityHigh:     cfg.EscalateHigh,
			models.SeverityMedium:   cfg.EscalateMedium,
			models.SeverityLow:      cfg.EscalateLow,
		},
	}, connectionHub, tracker, notifier, recorder, metrics, logger)
	connectionHub.SetCoordinator(coordinator)

	go tracker.Run(ctx, cfg.PresenceSweep, cfg.AwayAfter, cfg.PresencePurgeAfter)
	go messageQueue.Run(ctx, cfg.QueueSweep)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()

	server := api.NewServer(connectionHub, tracker, coordinator, registry, cfg.JWTSecret, logger)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting haven",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
