package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	drepo "ChartPulse/internal/domain/repository"
	"ChartPulse/internal/services/progress"
	"ChartPulse/pkg/config"
	xhttp "ChartPulse/pkg/http"
	pkgkafka "ChartPulse/pkg/kafka"
	applogger "ChartPulse/pkg/logger"
	"ChartPulse/pkg/queue"

	"github.com/redis/go-redis/v9"
)

// App encapsulates the dashboard backend lifecycle: the HTTP API, the
// websocket progress hub, the backtest queue workers and, on the kafka
// backend, the price ingest consumer.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	handler     xhttp.Handler
	hub         *progress.Hub
	worker      *queue.RedisQueue
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	store       drepo.Storage
	publisher   drepo.Publisher
	redisClient *redis.Client
	httpServer  *xhttp.Server
}

// New creates a new App instance with all dependencies. Consumer, kh,
// publisher and redisClient may be nil depending on the configured
// backend.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	hub *progress.Hub,
	worker *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	store drepo.Storage,
	publisher drepo.Publisher,
	redisClient *redis.Client,
) *App {
	return &App{
		cfg:         cfg,
		logger:      log,
		handler:     handler,
		hub:         hub,
		worker:      worker,
		consumer:    consumer,
		kh:          kh,
		store:       store,
		publisher:   publisher,
		redisClient: redisClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.hub != nil {
		go a.hub.Run(ctx)
	}

	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(a.cfg.Server.CORSOrigins),
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithRequestMetrics(a.logger, 2*time.Second))
	}
	a.httpServer = xhttp.NewServer(a.handler, opts...)

	if a.worker != nil {
		if err := a.worker.Start(); err != nil {
			a.logger.Error("backtest queue start error", applogger.Error(err))
			return err
		}
		a.logger.Info("backtest queue started", applogger.String("queue", a.cfg.Queue.Name))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.logger.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.logger.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("api listening",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("backend", a.cfg.Backend.Type),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.worker != nil {
		if err := a.worker.Stop(shutdownCtx); err != nil {
			a.logger.Warn("queue stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// flush aggregated logs while the producer is still open
	a.logger.RemoveCollector()

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("publisher close error", applogger.Error(err))
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("storage close error", applogger.Error(err))
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("redis close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
