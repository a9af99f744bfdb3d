package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dlu/market-intel/internal/auth"
	"github.com/dlu/market-intel/internal/bus"
	"github.com/dlu/market-intel/internal/config"
	"github.com/dlu/market-intel/internal/database"
	"github.com/dlu/market-intel/internal/engine"
	"github.com/dlu/market-intel/internal/gateway"
	"github.com/dlu/market-intel/internal/instrument"
	"github.com/dlu/market-intel/internal/model"
	"github.com/dlu/market-intel/internal/normalize"
	"github.com/dlu/market-intel/internal/recorder"
	"github.com/dlu/market-intel/internal/router"
	"github.com/dlu/market-intel/internal/session"
	"github.com/dlu/market-intel/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/engine.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting engine",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration. A bad config is the only fatal condition.
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"venues", len(cfg.Venues),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger.Info("database connected")

	// Raw event bus: sessions publish, the normalizer consumes. Drop-oldest
	// under overload.
	rawBus := bus.New(cfg.Pipeline.RawBufferSize)

	// Operator alerts (session dormancy) are logged; buffered so a burst of
	// failures never blocks a supervisor.
	alerts := make(chan session.Alert, 16)
	go func() {
		for a := range alerts {
			logger.Error("operator alert: session dormant",
				"venue", a.Venue,
				"session", a.SessionID,
				"at", a.At,
				"error", a.Err,
			)
		}
	}()

	// Session managers, one per venue, one session per credential.
	managers := make([]*session.Manager, 0, len(cfg.Venues))
	for _, vc := range cfg.Venues {
		auths, err := buildAuthenticators(vc, logger)
		if err != nil {
			logger.Error("failed to build venue credentials", "venue", vc.Name, "error", err)
			os.Exit(1)
		}
		if len(auths) == 0 {
			// Validation guarantees required venues carry credentials, but
			// key files can still be unreadable at startup.
			if vc.Required {
				logger.Error("no valid credentials for required venue", "venue", vc.Name)
				os.Exit(1)
			}
			logger.Warn("skipping venue with no valid credentials", "venue", vc.Name)
			continue
		}

		mgrCfg := session.DefaultManagerConfig()
		mgrCfg.Venue = vc.Name
		mgrCfg.WSURL = vc.WSURL
		mgrCfg.WSPath = vc.WSPath
		mgrCfg.Channels = vc.Channels
		mgrCfg.ReconnectBaseDelay = vc.ReconnectBaseDelay
		mgrCfg.ReconnectMaxDelay = vc.ReconnectMaxDelay
		mgrCfg.MaxAuthFailures = vc.MaxAuthFailures
		mgrCfg.SubscribeTimeout = vc.SubscribeTimeout
		mgrCfg.PingTimeout = vc.PingTimeout
		mgrCfg.WriteTimeout = vc.WriteTimeout

		managers = append(managers, session.NewManager(mgrCfg, auths, rawBus, alerts, logger))
	}

	// Pipeline stages. Shutdown propagates by channel closure: bus ->
	// normalizer -> router -> engine -> coordinator -> gateway -> recorder.
	resolver := instrument.NewResolver(instrument.NewPGStore(pool), logger)

	routerIn := make(chan model.CanonicalTick, cfg.Pipeline.TickBufferSize)
	recorderTicks := make(chan model.CanonicalTick, cfg.Pipeline.TickBufferSize)

	normalizer := normalize.New(rawBus, resolver, []chan model.CanonicalTick{routerIn, recorderTicks}, logger)
	rtr := router.New(routerIn, cfg.Pipeline.ShardCount, cfg.Pipeline.ShardBufferSize, logger)
	engGroup := engine.NewGroup(rtr.Shards(), engine.NewSMACrossover(), cfg.Pipeline.TickBufferSize, logger)
	coord := gateway.NewCoordinator(engGroup.Decisions(), cfg.Pipeline.TickBufferSize, logger)
	simGateway := gateway.NewSimGateway(coord.Intents(), cfg.Pipeline.TickBufferSize, logger)

	rec := recorder.New(recorder.Config{
		BatchSize:     cfg.Recorder.BatchSize,
		FlushInterval: cfg.Recorder.FlushInterval,
		MaxRetries:    cfg.Recorder.MaxRetries,
		RetryBaseWait: cfg.Recorder.RetryBaseWait,
		RetryMaxWait:  cfg.Recorder.RetryMaxWait,
	}, recorder.NewPGStore(pool), recorder.Inputs{
		Ticks:      recorderTicks,
		Decisions:  coord.RecordedDecisions(),
		Intents:    coord.RecordedIntents(),
		Executions: simGateway.Executions(),
	}, logger)

	go normalizer.Run(ctx)
	go rtr.Run()
	go func() {
		if err := engGroup.Run(); err != nil {
			logger.Error("engine group error", "error", err)
		}
	}()
	go coord.Run()
	go simGateway.Run()

	// The recorder outlives the signal context so its final flush can
	// still retry against storage.
	recorderDone := make(chan struct{})
	go func() {
		rec.Run(context.Background())
		close(recorderDone)
	}()

	// Start venue sessions.
	for _, m := range managers {
		if err := m.Start(ctx); err != nil {
			logger.Error("failed to start session manager", "error", err)
			os.Exit(1)
		}
	}

	// Health endpoint.
	healthServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(cfg.Health.Path, pool, healthSources{
			managers:   managers,
			bus:        rawBus,
			normalizer: normalizer,
			recorder:   rec,
		}),
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port, "path", cfg.Health.Path)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	logger.Info("engine running",
		"instance_id", cfg.Instance.ID,
		"venues", len(managers),
		"shards", cfg.Pipeline.ShardCount,
	)

	// Wait for shutdown.
	<-ctx.Done()

	logger.Info("shutting down...")

	// Stop ingestion first, then close the bus: the normalizer drains what
	// is buffered and the closure ripples down to the recorder, which
	// performs its final flush before recorderDone closes.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	for _, m := range managers {
		m.Stop(stopCtx)
	}
	stopCancel()

	rawBus.Close()

	select {
	case <-recorderDone:
		logger.Info("pipeline drained")
	case <-time.After(60 * time.Second):
		logger.Error("timed out waiting for pipeline drain")
	}

	close(alerts)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("engine stopped")
}

// buildAuthenticators loads one authenticator per configured credential.
// Unreadable credentials for optional venues are skipped with a warning.
func buildAuthenticators(vc config.VenueConfig, logger *slog.Logger) ([]auth.Authenticator, error) {
	auths := make([]auth.Authenticator, 0, len(vc.Credentials))
	for i, cred := range vc.Credentials {
		switch vc.AuthScheme {
		case "signed":
			creds, err := auth.LoadCredentials(cred.KeyID, cred.PrivateKeyPath)
			if err != nil {
				if vc.Required {
					return nil, fmt.Errorf("credential %d: %w", i+1, err)
				}
				logger.Warn("skipping unreadable credential",
					"venue", vc.Name,
					"credential", i+1,
					"error", err,
				)
				continue
			}
			auths = append(auths, creds)
		case "static":
			auths = append(auths, &auth.StaticKey{Key: cred.APIKey})
		default:
			return nil, fmt.Errorf("unknown auth scheme %q", vc.AuthScheme)
		}
	}
	return auths, nil
}

// healthSources collects the stats providers the health endpoint reports on.
type healthSources struct {
	managers   []*session.Manager
	bus        *bus.Bus
	normalizer *normalize.Normalizer
	recorder   *recorder.Recorder
}

// createHealthHandler builds the liveness/readiness handler: storage
// connectivity, per-venue session counts, pipeline counters, and the last
// flush timestamp.
func createHealthHandler(path string, pool *pgxpool.Pool, src healthSources) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		// Storage connectivity
		if err := pool.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["storage"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["storage"] = "connected"
		}

		// Per-venue sessions
		venues := make(map[string]interface{})
		for _, m := range src.managers {
			stats := m.Stats()
			venues[stats.Venue] = map[string]interface{}{
				"sessions":  stats.SessionCount,
				"connected": stats.ConnectedCount,
				"ready":     stats.ReadyCount,
				"dormant":   stats.DormantCount,
			}
			if stats.ReadyCount == 0 {
				health.Status = "degraded"
			}
		}
		health.Components["venues"] = venues

		busStats := src.bus.Stats()
		health.Components["raw_bus"] = map[string]interface{}{
			"buffered":  busStats.Count,
			"published": busStats.Published,
			"dropped":   busStats.Dropped,
		}

		normStats := src.normalizer.Stats()
		health.Components["normalizer"] = map[string]interface{}{
			"normalized":  normStats.Normalized,
			"unparseable": normStats.Unparseable,
		}

		recStats := src.recorder.Stats()
		rec := map[string]interface{}{
			"flushes":         recStats.Flushes,
			"flushed_ticks":   recStats.FlushedTicks,
			"dropped_batches": recStats.DroppedBatches,
		}
		if !recStats.LastFlushAt.IsZero() {
			rec["last_flush_at"] = recStats.LastFlushAt.UTC().Format(time.RFC3339)
		}
		health.Components["recorder"] = rec

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
