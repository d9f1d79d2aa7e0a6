package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ChartPulse/internal/di"
	"ChartPulse/internal/usecase"
	"ChartPulse/pkg/config"
	"ChartPulse/pkg/logger"
	"ChartPulse/pkg/queue"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config.yaml", "config file path")
	assetClass := flag.String("asset-class", usecase.ClassAll, "equities, crypto, forex, macro or all")
	maxAssets := flag.Int("max-assets", 0, "cap assets per class (0 = no cap)")
	startDate := flag.String("start-date", "", "history start date YYYY-MM-DD (default from config)")
	endDate := flag.String("end-date", "", "history end date YYYY-MM-DD (default from config)")
	backtestStart := flag.String("backtest-start-date", "", "evaluation start date YYYY-MM-DD (default: history start)")
	window := flag.Int("window", 0, "forecast window in rows (0 = engine default)")
	stride := flag.Int("stride", 0, "stride between cutoffs in rows (0 = engine default)")
	concurrency := flag.Int("concurrency", 0, "parallel downloads (0 = config default)")
	retainWeeks := flag.Int("retain-weeks", 0, "prune runs older than this many weeks (0 = config default)")
	dryRun := flag.Bool("dry-run", false, "print the plan and exit")
	skipDownload := flag.Bool("skip-download", false, "skip the price download step")
	skipBacktests := flag.Bool("skip-backtests", false, "skip enqueueing backtest jobs")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, relying on actual environment variables")
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *concurrency > 0 {
		cfg.Refresh.Concurrency = *concurrency
	}

	lgr, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	m := di.ProvideMetrics()

	chClient, err := di.ProvideClickHouseClient(cfg)
	if err != nil {
		log.Fatalf("clickhouse: %v", err)
	}
	store, err := di.ProvideStorage(chClient, cfg, lgr)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.Close()

	redisClient, err := di.ProvideRedisClient(cfg)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()

	cacheSvc, err := di.ProvideCache(cfg, redisClient)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}

	producer, err := di.ProvideKafkaProducer(cfg)
	if err != nil {
		log.Fatalf("kafka: %v", err)
	}
	publisher := di.ProvidePublisher(producer, cfg)
	if publisher != nil {
		defer publisher.Close()
	}

	yahoo := di.ProvideYahoo(cfg, lgr, cacheSvc, m)
	crypto := di.ProvideCrypto(yahoo)
	forex := di.ProvideForex(yahoo)
	worldBank := di.ProvideWorldBank(cfg, lgr, m)

	proc := di.ProvidePriceProcessor(publisher, store, m, cfg)
	downloader := di.ProvideDownloader(cfg, lgr, yahoo, crypto, forex, worldBank, store, proc)

	// Producer-only queue: jobs enqueued here run on the server workers.
	q := queue.NewRedisPublisher(lgr, redisClient, queue.WithKeyPrefix(cfg.Queue.Prefix))

	refresher := usecase.NewRefresher(cfg, lgr, downloader, q, store, cacheSvc)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := usecase.RefreshOptions{
		AssetClass:        *assetClass,
		MaxAssets:         *maxAssets,
		StartDate:         *startDate,
		EndDate:           *endDate,
		BacktestStartDate: *backtestStart,
		WindowRows:        *window,
		StrideRows:        *stride,
		SkipDownload:      *skipDownload,
		SkipBacktests:     *skipBacktests,
		RetainWeeks:       *retainWeeks,
		DryRun:            *dryRun,
	}
	if err := refresher.Run(ctx, opts); err != nil {
		lgr.Error("refresh failed", logger.Error(err))
		os.Exit(1)
	}
}
