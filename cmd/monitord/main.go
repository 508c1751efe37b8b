package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/querystream/percolator/internal/alerting"
	"github.com/querystream/percolator/internal/ingest"
	"github.com/querystream/percolator/internal/monitor"
	"github.com/querystream/percolator/internal/query"
	"github.com/querystream/percolator/internal/registry"
	"github.com/querystream/percolator/internal/server"
	"github.com/querystream/percolator/pkg/config"
	"github.com/querystream/percolator/pkg/health"
	"github.com/querystream/percolator/pkg/kafka"
	"github.com/querystream/percolator/pkg/logger"
	"github.com/querystream/percolator/pkg/metrics"
	"github.com/querystream/percolator/pkg/middleware"
	"github.com/querystream/percolator/pkg/postgres"
	pkgredis "github.com/querystream/percolator/pkg/redis"
	"github.com/querystream/percolator/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting percolator", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			if err := shutdownMetrics(context.Background()); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	mon := monitor.New(monitor.WithMaxConcurrent(cfg.Matcher.MaxConcurrent))
	defer mon.Close()

	var store registry.Store
	var pgClient *postgres.Client
	pgClient, err = postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, registry will not be durable", "error", err)
	} else {
		defer pgClient.Close()
		pgStore := registry.NewPostgresStore(pgClient)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			slog.Error("ensuring query store schema failed", "error", err)
			os.Exit(1)
		}
		var stored []*query.MonitorQuery
		err = resilience.WithTimeout(ctx, 30*time.Second, "registry-restore", func(ctx context.Context) error {
			var loadErr error
			stored, loadErr = pgStore.LoadAll(ctx)
			return loadErr
		})
		if err != nil {
			slog.Error("restoring queries failed", "error", err)
			os.Exit(1)
		}
		if len(stored) > 0 {
			if err := mon.Register(stored...); err != nil {
				slog.Error("re-registering stored queries failed", "error", err)
				os.Exit(1)
			}
		}
		store = pgStore
		slog.Info("registry restored", "queries", mon.Count())
	}

	if cfg.Registry.QueryDir != "" {
		watcher := registry.NewWatcher(cfg.Registry.QueryDir, mon)
		if err := watcher.LoadOnce(); err != nil {
			slog.Error("loading query directory failed", "dir", cfg.Registry.QueryDir, "error", err)
			os.Exit(1)
		}
		if cfg.Registry.Watch {
			go func() {
				if err := watcher.Start(ctx); err != nil {
					slog.Error("query watcher error", "error", err)
				}
			}()
		}
	}
	m.RegisteredQueries.Set(float64(mon.Count()))

	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, alert de-duplication disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	alertProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Alerts)
	defer alertProducer.Close()
	lookup := func(queryID string) map[string]string {
		q, err := mon.Get(queryID)
		if err != nil {
			return nil
		}
		return q.Metadata
	}
	publisher := alerting.NewPublisher(alertProducer, redisClient, cfg.Redis.SuppressTTL, lookup, m)

	docConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Documents,
		ingest.Handler(mon, publisher, m, cfg.Matcher))
	go func() {
		if err := docConsumer.Start(ctx); err != nil {
			slog.Error("document consumer error", "error", err)
		}
	}()
	slog.Info("document consumer started", "topic", cfg.Kafka.Topics.Documents)

	checker := health.NewChecker()
	checker.Register("registry", func(ctx context.Context) health.ComponentHealth {
		if n := mon.Count(); n > 0 {
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d queries registered", n)}
		}
		return health.ComponentHealth{Status: health.StatusDegraded, Message: "no queries registered"}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if pgClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := pgClient.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		if err := kafka.Ping(ctx, cfg.Kafka); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := server.New(mon, store, m, cfg.Matcher)
	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("percolator listening", "addr", httpServer.Addr, "queries", mon.Count())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("percolator stopped")
}
