package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/city"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer/rebuild"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/searcher/analytics"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/resilience"
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
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"source", cfg.Index.Source,
		"k", cfg.Ranking.K,
		"b", cfg.Ranking.B,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics, err := metrics.StartServer(cfg.Metrics.Port)
		if err != nil {
			slog.Error("failed to start metrics server", "error", err)
			os.Exit(1)
		}
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker(2 * time.Second)

	var db *sql.DB
	if cfg.Index.Source == config.SourcePostgres {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		db = pg.DB
		checker.Register("postgres", pg.HealthCheck())
	}
	source, err := city.NewSource(cfg.Index, db)
	if err != nil {
		slog.Error("invalid record source", "error", err)
		os.Exit(1)
	}

	engine := indexer.NewEngine(indexer.Options{
		K:             cfg.Ranking.K,
		B:             cfg.Ranking.B,
		RankAll:       cfg.Index.RankAll,
		RankerWorkers: cfg.Index.RankerWorkers,
	}, m)
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		snap, err := engine.Current()
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("version %d, %d records", snap.Version, snap.Cities.Len()),
		}
	})

	var queryCache *cache.QueryCache
	var invalidator rebuild.Invalidator
	if cfg.Redis.Addr != "" {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL)
			invalidator = queryCache
			checker.Register("redis", redisClient.HealthCheck())
			breaker := queryCache.Breaker()
			m.CircuitBreakerState.WithLabelValues(breaker.Name()).Set(float64(resilience.StateClosed))
			breaker.Notify(func(name string, _, to resilience.State) {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			})
			checker.Register("redis_breaker", func(ctx context.Context) health.ComponentHealth {
				if state := breaker.GetState(); state != resilience.StateClosed {
					return health.ComponentHealth{Status: health.StatusDegraded, Message: state.String()}
				}
				return health.ComponentHealth{Status: health.StatusUp}
			})
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var publisher rebuild.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		publisher = producer
	}
	rebuilds := rebuild.NewService(engine, source, invalidator, publisher)

	if _, err := rebuilds.Rebuild(ctx, "startup"); err != nil {
		slog.Error("initial index build failed, serving 503 until a rebuild succeeds", "error", err)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexRebuild, rebuilds.HandleMessage())
		listener := rebuild.NewListener(consumer)
		go func() {
			if err := listener.Start(ctx); err != nil {
				slog.Error("rebuild listener error", "error", err)
			}
		}()
		slog.Info("rebuild listener started", "topic", cfg.Kafka.Topics.IndexRebuild)
	}

	var collector *analytics.Collector
	if cfg.Analytics.Enabled {
		var pub analytics.Publisher
		if len(cfg.Kafka.Brokers) > 0 {
			events := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
			defer events.Close()
			pub = events
		}
		collector = analytics.NewCollector(
			analytics.NewAggregator(cfg.Analytics.TopN, cfg.Analytics.LatencySamples),
			pub,
			analytics.CollectorOptions{BufferSize: cfg.Analytics.BufferSize},
		)
		go collector.Run(ctx)
		defer collector.Wait()
	}

	h := handler.New(handler.Options{
		Executor:     executor.New(engine),
		Stats:        engine,
		Cache:        queryCache,
		Rebuilder:    rebuilds,
		Metrics:      m,
		Analytics:    tracker(collector),
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
		QueryTimeout: cfg.Search.QueryTimeout,
	})

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if collector != nil {
		mux.HandleFunc("GET /api/v1/analytics", collector.Aggregator().Handler())
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimit, time.Minute)
		go limiter.Run(ctx, 5*time.Minute)
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.Metrics(m)(chain)
	if len(cfg.Server.CORSOrigins) > 0 {
		chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins))(chain)
	}
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
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

// tracker keeps a nil collector from becoming a non-nil interface.
func tracker(c *analytics.Collector) handler.Tracker {
	if c == nil {
		return nil
	}
	return c
}
