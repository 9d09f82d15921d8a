// searchd is the legal-document search service: it indexes prepared
// documents arriving over HTTP or Kafka and answers full-text, semantic,
// entity, and hybrid queries against the in-memory corpus.
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

	"github.com/attestor-labs/lexsearch/internal/analytics"
	"github.com/attestor-labs/lexsearch/internal/api"
	"github.com/attestor-labs/lexsearch/internal/catalog"
	"github.com/attestor-labs/lexsearch/internal/engine"
	"github.com/attestor-labs/lexsearch/internal/ingest"
	"github.com/attestor-labs/lexsearch/internal/search"
	"github.com/attestor-labs/lexsearch/pkg/config"
	"github.com/attestor-labs/lexsearch/pkg/health"
	"github.com/attestor-labs/lexsearch/pkg/kafka"
	"github.com/attestor-labs/lexsearch/pkg/logger"
	"github.com/attestor-labs/lexsearch/pkg/metrics"
	"github.com/attestor-labs/lexsearch/pkg/middleware"
	"github.com/attestor-labs/lexsearch/pkg/postgres"
	pkgredis "github.com/attestor-labs/lexsearch/pkg/redis"
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
	slog.Info("starting search service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	var cat *catalog.Catalog
	pgClient, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, document catalog disabled", "error", err)
	} else {
		defer pgClient.Close()
		cat = catalog.New(pgClient)
		if err := cat.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure catalog schema", "error", err)
			os.Exit(1)
		}
		slog.Info("document catalog enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	searchProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
	indexProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexEvents)
	defer searchProducer.Close()
	defer indexProducer.Close()

	searchCollector := analytics.NewCollector(searchProducer, 10000)
	indexCollector := analytics.NewCollector(indexProducer, 1000)
	searchCollector.Start(ctx)
	indexCollector.Start(ctx)
	defer searchCollector.Close()
	defer indexCollector.Close()

	notifier := engine.MultiNotifier{
		engine.LogNotifier{},
		analytics.MetricsNotifier{M: m},
		analytics.Notifier{Searches: searchCollector, Batches: indexCollector},
	}

	eng, err := engine.New(cfg.Index, engine.WithNotifier(notifier))
	if err != nil {
		slog.Error("failed to create index engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	var queryCache *search.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, query caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = search.NewQueryCache(redisClient, cfg.Redis.CacheTTL, m)
		slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	executor := search.NewExecutor(eng, queryCache, cfg.Search)

	ingestConsumer := ingest.New(kafka.NewConsumer(
		cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, ingest.HandleMessage(eng, cat)))
	go func() {
		if err := ingestConsumer.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("ingest consumer error", "error", err)
		}
	}()

	aggregator := analytics.NewAggregator()
	aggregator.AddConsumers(
		kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents, analytics.HandleEvent(aggregator)),
		kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexEvents, analytics.HandleEvent(aggregator)),
	)
	go func() {
		if err := aggregator.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("analytics aggregator error", "error", err)
		}
	}()
	analyticsHandler := analytics.NewHandler(aggregator)

	checker := health.NewChecker()
	checker.Register("index_engine", func(ctx context.Context) health.ComponentHealth {
		state := eng.State()
		if state == engine.StateIndexing {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "indexing"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: state.String()}
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
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if pgClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := pgClient.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := api.New(eng, executor, queryCache, cat)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/documents", h.IndexDocuments)
	mux.HandleFunc("POST /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.GetDocument)
	mux.HandleFunc("GET /api/v1/corpus/stats", h.CorpusStats)
	mux.HandleFunc("DELETE /api/v1/index", h.ClearIndex)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
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
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
