package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"SessionPulse/internal/domain/repository"
	"SessionPulse/internal/scheduler"
	"SessionPulse/internal/usecase"
	"SessionPulse/pkg/config"
	xhttp "SessionPulse/pkg/http"
	pkgkafka "SessionPulse/pkg/kafka"
	applogger "SessionPulse/pkg/logger"
)

// App encapsulates the entire application lifecycle: one feed (scheduler in
// simulator mode, collector in live mode), the engine, the read API, and
// optional Kafka intake.
type App struct {
	cfg       *config.Config
	logger    *applogger.Logger
	engine    *usecase.Engine
	sched     *scheduler.Scheduler
	collector *usecase.Collector
	consumer  *pkgkafka.Consumer
	kh        pkgkafka.MessageHandler
	storage   repository.Storage
	publisher repository.Publisher

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies. Scheduler and
// collector are mutually exclusive; the one matching feed.mode is non-nil.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	engine *usecase.Engine,
	sched *scheduler.Scheduler,
	collector *usecase.Collector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	storage repository.Storage,
	publisher repository.Publisher,
	httpHandler xhttp.Handler,
) *App {
	return &App{
		cfg:         cfg,
		logger:      logger,
		engine:      engine,
		sched:       sched,
		collector:   collector,
		consumer:    consumer,
		kh:          kh,
		storage:     storage,
		publisher:   publisher,
		httpHandler: httpHandler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger
	if l == nil {
		var err error
		l, err = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
		if err != nil {
			log.Printf("failed to create logger: %v", err)
			return err
		}
		a.logger = l
	}

	// Prepare durable storage before any candle flows
	if a.storage != nil {
		if err := a.storage.Init(ctx); err != nil {
			l.Error("storage init failed", applogger.Error(err))
			return err
		}
		l.Info("storage schema ready")
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start the candle feed
	switch {
	case a.sched != nil:
		a.sched.Start(ctx)
		l.Info("simulator feed started", applogger.Strings("symbols", a.engine.Symbols()))
	case a.collector != nil:
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("live feed started", applogger.Strings("symbols", a.engine.Symbols()))
	}

	// Start Kafka candle intake if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services: feed first so nothing new enters,
// then the API, then infrastructure.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger

	if a.sched != nil {
		a.sched.Stop()
	}
	if a.collector != nil {
		if err := a.collector.Stop(); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			l.Warn("publisher close error", applogger.Error(err))
		}
	}

	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			l.Warn("storage close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
