package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trinity/internal/adapters/ai"
	"trinity/internal/adapters/config"
	"trinity/internal/adapters/errors/noop"
	"trinity/internal/adapters/errors/sentry"
	"trinity/internal/adapters/postgres"
	"trinity/internal/adapters/redis"
	"trinity/internal/adapters/search"
	"trinity/internal/adapters/web"
	"trinity/internal/agents"
	"trinity/internal/api"
	"trinity/internal/memory"
	"trinity/internal/metrics"
	repo "trinity/internal/repository/postgres"
	"trinity/internal/tasks"
	"trinity/internal/workers"
	"trinity/internal/workspace"
	"trinity/pkg/errors"
	"trinity/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Init()

	ws, err := workspace.Init(cfg.Workspace.Root)
	if err != nil {
		log.Fatalf("Failed to initialize workspace: %v", err)
	}

	// Optional Redis mirror for long-term memory
	var redisClient *redis.Client
	if cfg.Memory.RedisEnabled {
		redisClient, err = redis.NewClient(cfg.Memory.Redis)
		if err != nil {
			log.Warnf("Redis unavailable, memory mirror disabled: %v", err)
		} else {
			defer redisClient.Close()
		}
	}

	var mirror memory.Mirror
	if redisClient != nil {
		mirror = redisClient
	}
	mem := memory.NewManager(ws.MemoryDir(), cfg.Memory.ShortTermLimit, mirror)

	// Optional Postgres archive for dispatch records
	var pgClient *postgres.Client
	var archive *repo.InvocationArchive
	if cfg.Archive.Enabled {
		pgClient, err = postgres.NewClient(cfg.Archive)
		if err != nil {
			log.Warnf("Postgres unavailable, invocation archive disabled: %v", err)
		} else {
			defer pgClient.Close()
			archive = repo.NewInvocationArchive(pgClient.DB())
			if err := archive.EnsureSchema(context.Background()); err != nil {
				log.Warnf("Archive schema setup failed, archive disabled: %v", err)
				archive = nil
			}
		}
	}

	// LLM providers; agents run degraded without any
	providers, err := ai.BuildRegistry(cfg.AI)
	if err != nil {
		if !errors.Is(err, errors.ErrProviderUnavailable) {
			log.Fatalf("Failed to build AI providers: %v", err)
		}
		log.Warn("No AI provider configured, agents run in degraded mode")
		providers = nil
	}

	deps := agents.Deps{
		Providers: providers,
		Memory:    mem,
		Workspace: ws,
		Searcher:  search.NewClient(cfg.Search),
		Fetcher:   web.NewFetcher(cfg.Web),
	}
	if archive != nil {
		deps.Archive = archive
	}

	agentRegistry, err := agents.Build(cfg, deps)
	if err != nil {
		log.Fatalf("Failed to build agents: %v", err)
	}
	log.Infow("Agents registered", "agents", agentRegistry.Names())

	engine := tasks.NewEngine(agentRegistry, cfg.Tasks.MaxConcurrent, cfg.Tasks.Timeout)

	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(workers.NewMemoryConsolidator(mem, cfg.Memory.ConsolidateInterval))
	scheduler.RegisterWorker(workers.NewHistoryPruner(agentRegistry, cfg.History.MaxThoughts, cfg.History.PruneInterval))
	if archive != nil {
		scheduler.RegisterWorker(workers.NewArchivePurger(archive, cfg.Archive.Retention, cfg.Archive.PurgeInterval))
	}

	healthHandler := api.NewHealthHandler(agentRegistry, cfg.App.Name, cfg.App.Version)
	if redisClient != nil {
		healthHandler.AddChecker("redis", redisClient)
	}
	if pgClient != nil {
		healthHandler.AddChecker("postgres", pgClient)
	}

	handlers := api.NewHandlers(agentRegistry, engine, healthHandler, cfg.App.Name, cfg.App.Version)
	handlers.SetScheduler(scheduler)
	server := api.NewServer(cfg.Server, handlers.Routes())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Errorf("HTTP server error: %v", err)
			cancel()
		}
	}()

	log.Info("System initialized successfully")

	waitForShutdown(ctx, cancel, server, scheduler, errorTracker, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// waitForShutdown blocks until a signal or component failure, then performs
// graceful shutdown.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, server *api.Server, scheduler *workers.Scheduler, errorTracker errors.Tracker, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case <-ctx.Done():
	}
	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP server shutdown: %v", err)
	}

	cancel()
	if err := scheduler.Stop(); err != nil {
		log.Warnf("Worker shutdown: %v", err)
	}

	if errorTracker != nil {
		if err := errorTracker.Flush(shutdownCtx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
