package di

import (
	"context"
	"fmt"
	"time"

	drepo "FinScan/internal/domain/repository"
	"FinScan/internal/handler/api"
	"FinScan/internal/repository"
	"FinScan/internal/service/finnhub"
	"FinScan/internal/service/nasdaq"
	"FinScan/internal/services/gates"
	"FinScan/internal/usecase"
	"FinScan/pkg/cache"
	pkgch "FinScan/pkg/clickhouse"
	"FinScan/pkg/config"
	xhttp "FinScan/pkg/http"
	pkgkafka "FinScan/pkg/kafka"
	"FinScan/pkg/logger"
	"FinScan/pkg/metrics"
	"FinScan/pkg/server"
)

// ProvideLogger builds the application logger. When Kafka is enabled and a collect topic is
// set, repeated errors are aggregated and published there.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil && cfg.Log.CollectTopic != "" {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Log.CollectTopic,
			Publisher:      producer,
		})
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideCache returns the in-process cache, or Redis fronted by an in-process L1 when enabled.
func ProvideCache(cfg *config.Config, log *logger.Logger) (cache.Service, error) {
	if !cfg.Cache.Redis.Enabled {
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MemorySize),
			cache.WithMemoryCleanup(cfg.Cache.MemoryCleanup),
		), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Cache.Redis.Host),
		cache.WithRedisPort(cfg.Cache.Redis.Port),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		cache.WithRedisPool(cfg.Cache.Redis.PoolSize, cfg.Cache.Redis.MinIdle, cfg.Cache.Redis.PoolTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	log.Info("redis cache connected",
		logger.String("host", cfg.Cache.Redis.Host),
		logger.Int("port", cfg.Cache.Redis.Port),
	)
	return cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(cfg.Cache.MemorySize),
		cache.WithLayeredMemoryTTL(cfg.Cache.L1TTL),
	), nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithBatchBytes(cfg.Kafka.BatchBytes),
		pkgkafka.WithAsync(cfg.Kafka.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideClickHouseClient connects to ClickHouse and creates the board table, or returns nil
// when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(4, 2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, repository.BoardRowsSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideMarketData creates the Finnhub client wrapped in the read-through cache.
func ProvideMarketData(cfg *config.Config, c cache.Service, m *metrics.Recorder, log *logger.Logger) drepo.MarketData {
	client := finnhub.New(cfg.Finnhub.APIKey, cfg.Finnhub.BaseURL,
		finnhub.WithTimeout(cfg.Finnhub.Timeout),
		finnhub.WithRateLimit(cfg.Finnhub.RatePerSec, cfg.Finnhub.Burst),
		finnhub.WithBreaker(
			cfg.Finnhub.Breaker.MaxRequests,
			cfg.Finnhub.Breaker.Interval,
			cfg.Finnhub.Breaker.Timeout,
			cfg.Finnhub.Breaker.ConsecutiveFailures,
		),
		finnhub.WithMetrics(m),
	)
	return repository.NewCachedMarketData(client, c, repository.CacheTTLs{
		Profile: cfg.Cache.ProfileTTL,
		News:    cfg.Cache.NewsTTL,
		Candles: cfg.Cache.CandlesTTL,
	}, log)
}

// ProvideSymbolSource creates the nasdaq symbol directory reader.
func ProvideSymbolSource(cfg *config.Config, log *logger.Logger) drepo.SymbolSource {
	return nasdaq.NewSource(cfg.Universe.SymbolFiles, cfg.Universe.MaxCandidates, log,
		xhttp.WithTimeout(30*time.Second),
	)
}

// ProvideStateStore creates the in-process universe and board store.
func ProvideStateStore() *repository.MemoryStateStore {
	return repository.NewMemoryStateStore()
}

// ProvideEvaluator creates the gate evaluator from config thresholds.
func ProvideEvaluator(cfg *config.Config) *gates.Evaluator {
	return gates.NewEvaluator(gates.ThresholdsFromConfig(cfg))
}

// ProvideUniverseUseCase creates the universe builder.
func ProvideUniverseUseCase(
	cfg *config.Config,
	source drepo.SymbolSource,
	market drepo.MarketData,
	state *repository.MemoryStateStore,
	m *metrics.Recorder,
	log *logger.Logger,
) *usecase.UniverseUseCase {
	return usecase.NewUniverseUseCase(source, market, state, m, log.With(logger.String("component", "universe")),
		usecase.UniverseOptions{
			PriceMax:     cfg.Gates.PriceMax,
			MaxLiquid:    cfg.Universe.MaxLiquid,
			BatchSize:    cfg.Universe.BatchSize,
			LookbackDays: cfg.Universe.LookbackDays,
			Concurrency:  cfg.Scan.Concurrency,
		})
}

// ProvideBoardHub creates the websocket board feed.
func ProvideBoardHub(log *logger.Logger, state *repository.MemoryStateStore) *api.BoardHub {
	return api.NewBoardHub(log.With(logger.String("component", "ws")), state.Board)
}

// ProvideBoardSink fans each board out to the websocket hub and the optional Kafka and
// ClickHouse sinks.
func ProvideBoardSink(
	cfg *config.Config,
	log *logger.Logger,
	hub *api.BoardHub,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
) *repository.FanoutSink {
	sinks := []drepo.BoardSink{hub}
	if producer != nil {
		sinks = append(sinks, repository.NewKafkaBoardSink(producer, cfg.Kafka.Topic))
	}
	if ch != nil {
		sinks = append(sinks, repository.NewClickHouseBoardSink(ch.DB(), cfg.ClickHouse.Database))
	}
	return repository.NewFanoutSink(log, sinks...)
}

// ProvideScannerUseCase creates the scanner.
func ProvideScannerUseCase(
	cfg *config.Config,
	market drepo.MarketData,
	state *repository.MemoryStateStore,
	universe *usecase.UniverseUseCase,
	evaluator *gates.Evaluator,
	c cache.Service,
	sink *repository.FanoutSink,
	m *metrics.Recorder,
	log *logger.Logger,
) *usecase.ScannerUseCase {
	return usecase.NewScannerUseCase(market, state, universe, evaluator, c, sink, m,
		log.With(logger.String("component", "scanner")),
		usecase.ScanOptions{
			Concurrency:  cfg.Scan.Concurrency,
			LockTTL:      cfg.Scan.LockTTL,
			NewsLookback: cfg.News.Lookback,
			MaxHeadlines: cfg.News.MaxHeadlines,
			MaxRows:      cfg.Board.MaxRows,
			StaleAfter:   cfg.Board.StaleAfter,
		})
}

// ProvideScheduler creates the periodic scan and universe jobs.
func ProvideScheduler(
	cfg *config.Config,
	scanner *usecase.ScannerUseCase,
	universe *usecase.UniverseUseCase,
	log *logger.Logger,
) (*usecase.Scheduler, error) {
	return usecase.NewScheduler(scanner, universe, log.With(logger.String("component", "scheduler")),
		usecase.ScheduleOptions{
			ScanInterval:     cfg.Schedule.ScanInterval,
			UniverseInterval: cfg.Schedule.UniverseInterval,
			ScanOnStart:      cfg.Schedule.ScanOnStart,
		})
}

// ProvideHandler creates the HTTP handler.
func ProvideHandler(
	log *logger.Logger,
	scanner *usecase.ScannerUseCase,
	universe *usecase.UniverseUseCase,
	hub *api.BoardHub,
) *api.ScannerEchoHandler {
	return api.NewScannerEchoHandler(log, scanner, universe, hub)
}

// ProvideHTTPServer creates the echo server.
func ProvideHTTPServer(cfg *config.Config, h *api.ScannerEchoHandler, log *logger.Logger) *xhttp.Server {
	return xhttp.NewServer(h, log,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithCORS(cfg.Server.CORS),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	log *logger.Logger,
	httpServer *xhttp.Server,
	scheduler *usecase.Scheduler,
	sink *repository.FanoutSink,
	c cache.Service,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
) *server.App {
	resources := []server.Resource{{Name: "cache", Closer: c}}
	if producer != nil {
		resources = append(resources, server.Resource{Name: "kafka", Closer: producer})
	}
	if ch != nil {
		resources = append(resources, server.Resource{Name: "clickhouse", Closer: ch})
	}
	return server.New(log, httpServer, scheduler, sink, resources...)
}
