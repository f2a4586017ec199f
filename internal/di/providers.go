package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"MarkWatch/internal/domain/models"
	"MarkWatch/internal/domain/repository"
	domsvc "MarkWatch/internal/domain/service"
	"MarkWatch/internal/handler/api"
	mid "MarkWatch/internal/middleware"
	internalrepo "MarkWatch/internal/repository"
	svcache "MarkWatch/internal/service/cache"
	"MarkWatch/internal/service/exchange"
	"MarkWatch/internal/service/news"
	"MarkWatch/internal/service/pipeline"
	"MarkWatch/internal/service/pricefeed"
	"MarkWatch/internal/service/ratelimit"
	"MarkWatch/internal/services/briefing"
	"MarkWatch/internal/usecase"
	pkgcache "MarkWatch/pkg/cache"
	pkgch "MarkWatch/pkg/clickhouse"
	"MarkWatch/pkg/config"
	xhttp "MarkWatch/pkg/http"
	pkgkafka "MarkWatch/pkg/kafka"
	applogger "MarkWatch/pkg/logger"
	"MarkWatch/pkg/metrics"
	"MarkWatch/pkg/queue"
	"MarkWatch/pkg/server"
)

// ProvideLogger creates the application logger from file config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
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

// ProvideClickHouseClient creates a ClickHouse client and applies the schema.
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideRedisCache creates the shared Redis connection used for scheduler
// state, the work queue, and rendered-response caching.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideRedisClient exposes the raw client for hash and queue operations.
func ProvideRedisClient(rc *pkgcache.RedisCache) *redis.Client {
	return rc.Client()
}

// ProvideKafkaProducer creates the Kafka producer shared by the tick and
// round publishers.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
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

// ProvideKafkaConsumer creates the Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config, lgr *applogger.Logger) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.AutoOffsetReset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(lgr),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideStateStore creates the Redis-backed scheduler state store.
func ProvideStateStore(rc *pkgcache.RedisCache, cfg *config.Config) *internalrepo.RedisStateStore {
	return internalrepo.NewRedisStateStore(rc, rc.Client(), cfg.Redis.Prefix)
}

// ProvideBandStore exposes the state store as the alert-band store.
func ProvideBandStore(s *internalrepo.RedisStateStore) repository.BandStore { return s }

// ProvideStampStore exposes the state store as the analysis stamp store.
func ProvideStampStore(s *internalrepo.RedisStateStore) repository.AnalysisStampStore { return s }

// ProvideJobStateStore exposes the state store as the job bookkeeping store.
func ProvideJobStateStore(s *internalrepo.RedisStateStore) repository.JobStateStore { return s }

// ProvideKlineStore creates the ClickHouse kline store.
func ProvideKlineStore(ch *pkgch.Client, cfg *config.Config) repository.KlineStore {
	return internalrepo.NewCHKlineStore(ch, cfg.ClickHouse.Database)
}

// ProvideNewsStore creates the ClickHouse news store.
func ProvideNewsStore(ch *pkgch.Client, cfg *config.Config) repository.NewsStore {
	return internalrepo.NewCHNewsStore(ch, cfg.ClickHouse.Database)
}

// ProvideRoundStore creates the ClickHouse round store.
func ProvideRoundStore(ch *pkgch.Client, cfg *config.Config) repository.RoundStore {
	return internalrepo.NewCHRoundStore(ch, cfg.ClickHouse.Database)
}

// ProvideTickHistory creates the ClickHouse tick archive.
func ProvideTickHistory(ch *pkgch.Client, cfg *config.Config) repository.TickHistory {
	return internalrepo.NewCHTickHistory(ch, cfg.ClickHouse.Database)
}

// ProvideTickPublisher creates the Kafka publisher for mark-price ticks.
func ProvideTickPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.TickPublisher {
	return internalrepo.NewKafkaTickPublisher(producer, cfg.Kafka.Topics.MarkPrices)
}

// ProvideRoundPublisher creates the Kafka publisher for round records.
func ProvideRoundPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.RoundPublisher {
	return internalrepo.NewKafkaRoundPublisher(producer, cfg.Kafka.Topics.Rounds)
}

// ProvideExchange creates the Binance futures client.
func ProvideExchange(cfg *config.Config, lgr *applogger.Logger) *exchange.Binance {
	return exchange.NewBinance(exchange.Config{
		APIKey:         cfg.Exchange.APIKey,
		SecretKey:      cfg.Exchange.SecretKey,
		BaseURL:        cfg.Exchange.BaseURL,
		UseTestnet:     cfg.Exchange.UseTestnet,
		RequestsPerSec: cfg.Exchange.RequestsPerSec,
		Burst:          float64(cfg.Exchange.Burst),
	}, lgr)
}

// ProvideExchangeIface narrows the Binance client to the domain interface.
func ProvideExchangeIface(b *exchange.Binance) repository.Exchange { return b }

// ProvidePriceStream creates the mark-price WebSocket stream.
func ProvidePriceStream(cfg *config.Config, lgr *applogger.Logger) repository.PriceStream {
	return pricefeed.New(
		cfg.Exchange.WebSocketURL,
		cfg.Scheduler.Assets,
		cfg.Exchange.ReconnectDelay,
		cfg.Exchange.PingInterval,
		lgr,
	)
}

// ProvidePriceCache creates the in-memory last-price cache fed by the stream.
// Entries older than the freshness window fall through to the REST source.
func ProvidePriceCache() *pricefeed.PriceCache {
	return pricefeed.NewPriceCache(15 * time.Second)
}

// ProvidePriceSource layers the stream cache over the exchange REST API.
func ProvidePriceSource(cache *pricefeed.PriceCache, ex *exchange.Binance, m repository.Metrics) repository.PriceSource {
	return pricefeed.NewLayeredSource(cache, ex, m)
}

// ProvideTickProcessor creates the tick fan-out processor.
func ProvideTickProcessor(pub repository.TickPublisher, cache *pricefeed.PriceCache, m repository.Metrics) *usecase.TickProcessor {
	return usecase.NewTickProcessor(pub, cache, m)
}

// ProvideTickCollector creates the stream consumer with its middleware
// pipeline between the WebSocket and downstream fan-out.
func ProvideTickCollector(stream repository.PriceStream, proc *usecase.TickProcessor, m repository.Metrics) *usecase.TickCollector {
	pipe := mid.NewTickPipeline(proc, m,
		mid.WithMaxRPS(2),
		mid.WithBufferSize(1000),
	)
	return usecase.NewTickCollector(stream, proc, m, pipe)
}

// ProvidePriceTicksHandler registers the Kafka handler archiving ticks.
func ProvidePriceTicksHandler(history repository.TickHistory, m repository.Metrics, cfg *config.Config) *usecase.PriceTicksHandler {
	return usecase.NewPriceTicksHandler(cfg.Kafka.Topics.MarkPrices, history, m)
}

// ProvideEventFeed creates the in-memory diagnostics ring.
func ProvideEventFeed() *mid.EventFeed {
	return mid.NewEventFeed(256)
}

// ProvideBytesCache creates the byte cache for rendered responses and the
// longform report.
func ProvideBytesCache(rc *pkgcache.RedisCache, cfg *config.Config) svcache.BytesCache {
	return svcache.NewRedisCache(rc.Client(), cfg.Redis.Prefix)
}

// ProvideNewsFetcher creates the RSS feed client.
func ProvideNewsFetcher(cfg *config.Config, lgr *applogger.Logger) domsvc.NewsFetcher {
	return news.NewClient(news.Config{
		BaseURL:  cfg.News.BaseURL,
		Timeout:  cfg.News.Timeout,
		PageSize: cfg.News.PageSize,
	}, lgr)
}

// ProvideAnalysisPipeline creates the HTTP client for the analysis service.
func ProvideAnalysisPipeline(cfg *config.Config, lgr *applogger.Logger) domsvc.AnalysisPipeline {
	return pipeline.NewClient(pipeline.Config{
		BaseURL: cfg.Pipeline.BaseURL,
		APIKey:  cfg.Pipeline.APIKey,
		Timeout: cfg.Pipeline.Timeout,
	}, lgr)
}

// ProvideKlineFetchJob creates the queue worker pulling klines.
func ProvideKlineFetchJob(ex repository.Exchange, store repository.KlineStore, lgr *applogger.Logger, m repository.Metrics) *usecase.KlineFetchJob {
	return usecase.NewKlineFetchJob(ex, store, lgr, m)
}

// ProvideWorkQueue creates the Redis work queue with the kline fetch job
// registered. One queue serves both the enqueue and the worker side.
func ProvideWorkQueue(cfg *config.Config, lgr *applogger.Logger, client *redis.Client, job *usecase.KlineFetchJob) *queue.RedisQueue {
	q := queue.NewRedisQueue(lgr, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.QueueSize,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, client, queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Queue.Name))
	q.RegisterJob(job)
	return q
}

// ProvideMarketSync creates the market_data_sync job.
func ProvideMarketSync(q *queue.RedisQueue, cfg *config.Config, lgr *applogger.Logger, m repository.Metrics) *usecase.MarketSync {
	return usecase.NewMarketSync(q, cfg.Scheduler.KlineIntervals, cfg.Scheduler.KlineLimit, lgr, m)
}

// ProvideNewsSync creates the news sync job shared by both feeds.
func ProvideNewsSync(fetcher domsvc.NewsFetcher, store repository.NewsStore, lgr *applogger.Logger, m repository.Metrics) *usecase.NewsSync {
	return usecase.NewNewsSync(fetcher, store, lgr, m)
}

// ProvideLongformRefresher creates the longform_refresh job. The cached
// report outlives one missed refresh before it expires.
func ProvideLongformRefresher(pipe domsvc.AnalysisPipeline, bc svcache.BytesCache, cfg *config.Config, lgr *applogger.Logger, m repository.Metrics) *usecase.LongformRefresher {
	return usecase.NewLongformRefresher(pipe, bc, 2*cfg.Scheduler.Jobs.Longform, lgr, m)
}

// ProvideBriefingBuilder creates the round-context assembler.
func ProvideBriefingBuilder(
	klines repository.KlineStore,
	newsStore repository.NewsStore,
	bands repository.BandStore,
	prices repository.PriceSource,
	ex *exchange.Binance,
	longform *usecase.LongformRefresher,
	cfg *config.Config,
	lgr *applogger.Logger,
	m repository.Metrics,
) *briefing.Builder {
	return briefing.NewBuilder(klines, newsStore, bands, prices, ex, longform, cfg.Scheduler.KlineIntervals, 0, lgr, m)
}

// ProvideTradeExecutor creates the plan applier.
func ProvideTradeExecutor(ex repository.Exchange, bands repository.BandStore, lgr *applogger.Logger, m repository.Metrics) *usecase.TradeExecutor {
	return usecase.NewTradeExecutor(ex, bands, lgr, m)
}

// ProvideRoundRunner creates the end-to-end round executor.
func ProvideRoundRunner(
	b *briefing.Builder,
	pipe domsvc.AnalysisPipeline,
	executor *usecase.TradeExecutor,
	rounds repository.RoundStore,
	events repository.RoundPublisher,
	lgr *applogger.Logger,
	m repository.Metrics,
) *usecase.RoundRunner {
	return usecase.NewRoundRunner(b, pipe, executor, rounds, events, lgr, m)
}

// ProvideAnalysisGuard creates the single-flight round guard.
func ProvideAnalysisGuard(runner *usecase.RoundRunner, stamp repository.AnalysisStampStore, feed *mid.EventFeed, lgr *applogger.Logger, m repository.Metrics) *usecase.AnalysisGuard {
	return usecase.NewAnalysisGuard(runner, stamp, feed, lgr, m)
}

// ProvideMarketMonitor creates the alert-band monitor job.
func ProvideMarketMonitor(bands repository.BandStore, prices repository.PriceSource, guard *usecase.AnalysisGuard, feed *mid.EventFeed, lgr *applogger.Logger, m repository.Metrics) *usecase.MarketMonitor {
	return usecase.NewMarketMonitor(bands, prices, guard, feed, lgr, m)
}

// ProvideRegistry creates the interval job registry.
func ProvideRegistry(state repository.JobStateStore, lgr *applogger.Logger, m repository.Metrics) *usecase.Registry {
	return usecase.NewRegistry(state, lgr, m)
}

// ProvideScheduler creates the lifecycle controller with file-config
// defaults and job periods.
func ProvideScheduler(
	registry *usecase.Registry,
	guard *usecase.AnalysisGuard,
	monitor *usecase.MarketMonitor,
	market *usecase.MarketSync,
	newsJob *usecase.NewsSync,
	longform *usecase.LongformRefresher,
	cfg *config.Config,
	feed *mid.EventFeed,
	lgr *applogger.Logger,
	m repository.Metrics,
) *usecase.Scheduler {
	conf := usecase.SchedulerConfig{
		Defaults: models.RunConfig{
			Assets:           cfg.Scheduler.Assets,
			Capital:          cfg.Scheduler.Capital,
			LeverageMin:      cfg.Scheduler.LeverageMin,
			LeverageMax:      cfg.Scheduler.LeverageMax,
			NearThresholdPct: cfg.Scheduler.Monitor.NearThresholdPct,
			Cooldown:         cfg.Scheduler.Monitor.Cooldown,
			Staleness:        cfg.Scheduler.Monitor.Staleness,
		},

		MonitorPeriod:    cfg.Scheduler.Monitor.TickPeriod,
		MarketDataPeriod: cfg.Scheduler.Jobs.MarketData,
		NewsflashPeriod:  cfg.Scheduler.Jobs.Newsflash,
		ArticlePeriod:    cfg.Scheduler.Jobs.Articles,
		LongformPeriod:   cfg.Scheduler.Jobs.Longform,
	}
	return usecase.NewScheduler(registry, guard, monitor, market, newsJob, longform, conf, feed, lgr, m)
}

// ProvideMarketQuery creates the read-side query use case. Kline responses
// go through a layered cache, memory in front of Redis.
func ProvideMarketQuery(klines repository.KlineStore, newsStore repository.NewsStore, rounds repository.RoundStore, bands repository.BandStore, rc *pkgcache.RedisCache) *usecase.MarketQuery {
	layered := pkgcache.NewLayeredCache(rc, pkgcache.WithLayeredMemorySize(512))
	return usecase.NewMarketQuery(klines, newsStore, rounds, bands, layered)
}

// ProvideSchedulerHandler creates the control-plane HTTP handler.
func ProvideSchedulerHandler(lgr *applogger.Logger, sched *usecase.Scheduler, feed *mid.EventFeed) *api.SchedulerHandler {
	return api.NewSchedulerHandler(lgr, sched, feed)
}

// ProvideMarketHandler creates the read-plane HTTP handler.
func ProvideMarketHandler(lgr *applogger.Logger, query *usecase.MarketQuery, sched *usecase.Scheduler, bc svcache.BytesCache, cfg *config.Config) *api.MarketHandler {
	return api.NewMarketHandler(lgr, query, sched, ratelimit.New(), bc, cfg.Scheduler.Assets)
}

// ProvideRouter combines the handlers into the server's route registrar.
func ProvideRouter(sh *api.SchedulerHandler, mh *api.MarketHandler) xhttp.Handler {
	return api.NewRouter(sh, mh)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	ticks *usecase.PriceTicksHandler,
	workQueue *queue.RedisQueue,
	sched *usecase.Scheduler,
	registry *usecase.Registry,
	guard *usecase.AnalysisGuard,
	handler xhttp.Handler,
	chClient *pkgch.Client,
	redisCache *pkgcache.RedisCache,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NewLoggingHook(lgr))
	}
	// Repeated error lines collapse into aggregated records on the logs topic.
	if producer != nil && cfg.Kafka.Topics.Logs != "" {
		lgr.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.Topics.Logs,
			Publisher:      producer,
		})
	}
	app := server.New(cfg, lgr, collector, consumer, ticks, workQueue, sched, registry, guard, handler, chClient, redisCache)
	if collector != nil {
		app.TickProc = collector.Processor()
	}
	return app
}
