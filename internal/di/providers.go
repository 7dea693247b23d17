package di

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"SessionPulse/internal/domain/repository"
	"SessionPulse/internal/handler/api"
	mid "SessionPulse/internal/middleware"
	internalrepo "SessionPulse/internal/repository"
	"SessionPulse/internal/scheduler"
	"SessionPulse/internal/service/broker"
	"SessionPulse/internal/service/news"
	"SessionPulse/internal/simulator"
	"SessionPulse/internal/usecase"
	"SessionPulse/pkg/cache"
	pkgch "SessionPulse/pkg/clickhouse"
	"SessionPulse/pkg/config"
	xhttp "SessionPulse/pkg/http"
	pkgkafka "SessionPulse/pkg/kafka"
	applogger "SessionPulse/pkg/logger"
	"SessionPulse/pkg/metrics"
	"SessionPulse/pkg/queue"
	"SessionPulse/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache creates the shared cache: Redis when enabled, in-process
// memory otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	opts := []cache.RedisOption{
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	}
	if cfg.Redis.Prefix != "" {
		opts = append(opts, cache.WithRedisPrefix(cfg.Redis.Prefix))
	}
	rc, err := cache.NewRedisCache(opts...)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideClickHouseClient creates a ClickHouse client, nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideStorage creates the ClickHouse-backed storage repository. Nil
// storage means the engine runs purely in memory.
func ProvideStorage(chClient *pkgch.Client, l *applogger.Logger) repository.Storage {
	if chClient == nil {
		return nil
	}
	return internalrepo.NewCHStorage(chClient, l)
}

// ProvideKafkaProducer creates a Kafka producer, nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher creates the signal/breakout publisher: Kafka when a
// producer exists, the Redis job queue as fallback, nil when neither is up.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config, cacheSvc cache.Service, l *applogger.Logger) repository.Publisher {
	if producer != nil {
		return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic, l)
	}
	if rc, ok := cacheSvc.(*cache.RedisCache); ok {
		q := queue.NewRedisQueue(l, &queue.QueueConfig{}, rc.Client(), queue.ModeProducerOnly)
		return internalrepo.NewQueuePublisher(q)
	}
	return nil
}

// ProvideNewsProvider creates the economic calendar client, or a noop when
// no calendar URL is configured.
func ProvideNewsProvider(cfg *config.Config, l *applogger.Logger) repository.NewsProvider {
	if cfg.News.URL == "" {
		return news.Noop{}
	}
	return news.NewClient(cfg.News.URL, cfg.News.Timeout, l)
}

// ProvideEngine creates the core candle pipeline.
func ProvideEngine(
	cfg *config.Config,
	storage repository.Storage,
	publisher repository.Publisher,
	newsProvider repository.NewsProvider,
	m repository.Metrics,
	cacheSvc cache.Service,
	l *applogger.Logger,
) *usecase.Engine {
	return usecase.NewEngine(cfg, storage, publisher, newsProvider, m, cacheSvc, l)
}

// ProvideScheduler creates the simulator-driven feed loop. Nil in live mode.
func ProvideScheduler(
	cfg *config.Config,
	engine *usecase.Engine,
	storage repository.Storage,
	l *applogger.Logger,
) *scheduler.Scheduler {
	if cfg.Feed.Mode != "simulator" {
		return nil
	}
	feed := simulator.New(cfg.Instruments, cfg.Feed.Seed, l)
	return scheduler.New(cfg, feed, engine, storage, l)
}

// ProvideCollector creates the live broker stream collector. Nil in
// simulator mode.
func ProvideCollector(
	cfg *config.Config,
	engine *usecase.Engine,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Collector {
	if cfg.Feed.Mode != "live" {
		return nil
	}
	stream := broker.New(
		cfg.Broker.APIKey,
		cfg.Broker.WebSocketURL,
		cfg.Symbols(),
		cfg.Broker.ReconnectDelay,
		cfg.Broker.PingInterval,
		l,
	)
	// throttle and buffer between WebSocket and engine
	pipe := mid.NewCandlePipeline(engine, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewCollector(stream, engine, m, pipe, l)
}

// ProvideKafkaConsumer creates the Kafka candle intake consumer. Nil unless
// a candles topic is configured.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.Consumer.CandlesTopic == "" {
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
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideCandlesHandler registers the handler for the candles topic.
func ProvideCandlesHandler(cfg *config.Config, engine *usecase.Engine, m repository.Metrics) *usecase.KafkaCandlesHandler {
	if cfg.Kafka.Consumer.CandlesTopic == "" {
		return nil
	}
	return usecase.NewKafkaCandlesHandler(cfg.Kafka.Consumer.CandlesTopic, engine, m)
}

// ProvideHTTPHandler creates the Echo read API handler.
func ProvideHTTPHandler(l *applogger.Logger, engine *usecase.Engine) xhttp.Handler {
	return api.NewMarketHandler(l, engine)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	engine *usecase.Engine,
	sched *scheduler.Scheduler,
	collector *usecase.Collector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaCandlesHandler,
	storage repository.Storage,
	publisher repository.Publisher,
	httpHandler xhttp.Handler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NewHookChain(tracingHook(), pkgkafka.NoopHook{}))
	}
	// a nil *KafkaCandlesHandler must stay a nil interface inside App
	var handler pkgkafka.MessageHandler
	if kh != nil {
		handler = kh
	}
	return server.New(cfg, l, engine, sched, collector, consumer, handler, storage, publisher, httpHandler)
}

// tracingHook stamps start time and trace id onto the handler context.
func tracingHook() pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{
		Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			ctx = pkgkafka.WithStartTime(ctx, time.Now())
			ctx = pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km))
			return ctx, km, data, nil
		},
	}
}
