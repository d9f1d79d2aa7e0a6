package di

import (
	"context"
	"fmt"
	"time"

	"ChartPulse/internal/domain/repository"
	domsvc "ChartPulse/internal/domain/service"
	"ChartPulse/internal/handler/api"
	internalrepo "ChartPulse/internal/repository"
	"ChartPulse/internal/services/backtest"
	"ChartPulse/internal/services/formatter"
	"ChartPulse/internal/services/marketdata"
	"ChartPulse/internal/services/parallel"
	"ChartPulse/internal/services/progress"
	"ChartPulse/internal/services/ratelimit"
	"ChartPulse/internal/services/synthefy"
	"ChartPulse/internal/usecase"
	"ChartPulse/pkg/cache"
	pkgch "ChartPulse/pkg/clickhouse"
	"ChartPulse/pkg/config"
	pkgkafka "ChartPulse/pkg/kafka"
	applogger "ChartPulse/pkg/logger"
	"ChartPulse/pkg/metrics"
	"ChartPulse/pkg/queue"
	"ChartPulse/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideStorage creates ClickHouse storage and migrates the schema.
func ProvideStorage(client *pkgch.Client, cfg *config.Config, log *applogger.Logger) (repository.Storage, error) {
	store := internalrepo.NewClickHouseStore(client, cfg.ClickHouse.Database, log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideRedisClient connects to Redis. The connection is shared by the
// response cache and the backtest queue.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// ProvideCache builds the upstream response cache: memory over Redis when
// Redis caching is enabled, in-process only otherwise.
func ProvideCache(cfg *config.Config, client *redis.Client) (cache.Service, error) {
	if !cfg.Cache.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisClient(client),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc), nil
}

// ProvideKafkaProducer creates a Kafka producer on the kafka backend.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Backend.Type != "kafka" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher creates the Kafka price sink on the kafka backend.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPriceSink(producer, cfg.Kafka.Topic)
}

// ProvideKafkaConsumer creates the ingest consumer on the kafka backend.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger, m repository.Metrics) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerHooks(usecase.NewIngestHook(m, log)),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaPricesHandler registers the handler for the prices topic.
func ProvideKafkaPricesHandler(store repository.Storage, m repository.Metrics, cfg *config.Config) pkgkafka.MessageHandler {
	if cfg.Backend.Type != "kafka" {
		return nil
	}
	return usecase.NewKafkaPricesHandler(cfg.Kafka.Topic, store, m)
}

// ProvideYahoo creates the Yahoo chart API client.
func ProvideYahoo(cfg *config.Config, log *applogger.Logger, c cache.Service, m repository.Metrics) *marketdata.Yahoo {
	return marketdata.NewYahoo(cfg, log, c, m)
}

// ProvideCrypto creates the crypto series service.
func ProvideCrypto(yahoo *marketdata.Yahoo) *marketdata.Crypto {
	return marketdata.NewCrypto(yahoo)
}

// ProvideForex creates the forex series service.
func ProvideForex(yahoo *marketdata.Yahoo) *marketdata.Forex {
	return marketdata.NewForex(yahoo)
}

// ProvideWorldBank creates the macro series service.
func ProvideWorldBank(cfg *config.Config, log *applogger.Logger, m repository.Metrics) *marketdata.WorldBank {
	return marketdata.NewWorldBank(cfg, log, m)
}

// ProvideHaver creates the Haver API client.
func ProvideHaver(cfg *config.Config, log *applogger.Logger, c cache.Service, m repository.Metrics) *marketdata.Haver {
	return marketdata.NewHaver(cfg, log, c, m)
}

// ProvideForecaster creates the Synthefy forecast client.
func ProvideForecaster(cfg *config.Config, log *applogger.Logger, m repository.Metrics) domsvc.Forecaster {
	return synthefy.NewClient(cfg, log, ratelimit.New(), m)
}

// ProvideEngine creates the backtest engine.
func ProvideEngine(cfg *config.Config, log *applogger.Logger, f domsvc.Forecaster, m repository.Metrics) *backtest.Engine {
	return backtest.NewEngine(cfg, log, f, m)
}

// ProvideFormatter creates the OpenAI text formatter.
func ProvideFormatter(cfg *config.Config, log *applogger.Logger) domsvc.TextFormatter {
	return formatter.NewOpenAI(cfg, log)
}

// ProvideParallelClient creates the Parallel task API client.
func ProvideParallelClient(cfg *config.Config, log *applogger.Logger, m repository.Metrics) *parallel.Client {
	return parallel.NewClient(cfg, log, m)
}

// ProvideSearcher creates the movement search service.
func ProvideSearcher(client *parallel.Client, f domsvc.TextFormatter) domsvc.MovementExplainer {
	return parallel.NewSearcher(client, f)
}

// ProvideEventsFinder creates the critical events service.
func ProvideEventsFinder(client *parallel.Client) domsvc.CriticalEventsFinder {
	return parallel.NewEventsFinder(client)
}

// ProvideHub creates the websocket progress hub.
func ProvideHub(log *applogger.Logger) *progress.Hub {
	return progress.NewHub(log)
}

// ProvidePriceProcessor creates the price batch processor.
func ProvidePriceProcessor(pub repository.Publisher, store repository.Storage, m repository.Metrics, cfg *config.Config) *usecase.PriceProcessor {
	return usecase.NewPriceProcessor(pub, store, m, cfg.Backend.Type, cfg.Backend.BatchSize)
}

// ProvideDownloader creates the historical download use case.
func ProvideDownloader(
	cfg *config.Config,
	log *applogger.Logger,
	yahoo *marketdata.Yahoo,
	crypto *marketdata.Crypto,
	forex *marketdata.Forex,
	worldbank *marketdata.WorldBank,
	store repository.Storage,
	proc *usecase.PriceProcessor,
) *usecase.Downloader {
	return usecase.NewDownloader(cfg, log, yahoo, crypto, forex, worldbank, store, proc)
}

// ProvideBacktestRunner creates the interactive backtest use case.
func ProvideBacktestRunner(engine *backtest.Engine, hub *progress.Hub) *usecase.BacktestRunner {
	return usecase.NewBacktestRunner(engine, hub)
}

// ProvideBacktestJob creates the queued backtest executor.
func ProvideBacktestJob(
	store repository.Storage,
	engine *backtest.Engine,
	hub *progress.Hub,
	m repository.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) *usecase.BacktestRunJob {
	return usecase.NewBacktestRunJob(store, engine, hub, m, log, cfg.Queue.Name, cfg.Refresh.MinPoints)
}

// ProvideQueue creates the Redis job queue in consumer mode. The same
// instance publishes refresh jobs and runs them.
func ProvideQueue(cfg *config.Config, log *applogger.Logger, client *redis.Client, job *usecase.BacktestRunJob) *queue.RedisQueue {
	qcfg := &queue.QueueConfig{
		Workers:    cfg.Queue.Concurrency,
		RetryLimit: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
	}
	return queue.NewRedisConsumer(log, qcfg, client, []queue.Job{job}, queue.WithKeyPrefix(cfg.Queue.Prefix))
}

// ProvideRefresher creates the weekly refresh orchestrator.
func ProvideRefresher(
	cfg *config.Config,
	log *applogger.Logger,
	downloader *usecase.Downloader,
	q *queue.RedisQueue,
	store repository.Storage,
	c cache.Service,
) *usecase.Refresher {
	return usecase.NewRefresher(cfg, log, downloader, q, store, c)
}

// ProvideAPIHandler assembles the dashboard REST handler.
func ProvideAPIHandler(
	log *applogger.Logger,
	yahoo *marketdata.Yahoo,
	crypto *marketdata.Crypto,
	forex *marketdata.Forex,
	worldbank *marketdata.WorldBank,
	haver *marketdata.Haver,
	searcher domsvc.MovementExplainer,
	events domsvc.CriticalEventsFinder,
	runner *usecase.BacktestRunner,
	refresher *usecase.Refresher,
	store repository.Storage,
	hub *progress.Hub,
) *api.Handler {
	return api.NewHandler(log, &api.Services{
		Yahoo:     yahoo,
		Crypto:    crypto,
		Forex:     forex,
		WorldBank: worldbank,
		Haver:     haver,
		Searcher:  searcher,
		Events:    events,
		Runner:    runner,
		Refresher: refresher,
		Store:     store,
		Hub:       hub,
	})
}

// ProvideApp creates the application server. On the kafka backend,
// error logs are aggregated and shipped to the logs topic.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	handler *api.Handler,
	hub *progress.Hub,
	worker *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	store repository.Storage,
	publisher repository.Publisher,
	producer *pkgkafka.Producer,
	redisClient *redis.Client,
) *server.App {
	if producer != nil && cfg.Kafka.LogsTopic != "" {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      producer,
		})
	}
	return server.New(cfg, log, handler, hub, worker, consumer, kh, store, publisher, redisClient)
}
