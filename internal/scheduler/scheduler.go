// Package scheduler drives the pull-based candle feed on fixed intervals and
// runs daily storage retention.
package scheduler

import (
	"context"
	"sync"
	"time"

	"SessionPulse/internal/domain/repository"
	"SessionPulse/internal/usecase"
	"SessionPulse/pkg/config"
	"SessionPulse/pkg/logger"
)

// Scheduler ticks the feed once per minute per symbol and purges old rows
// once a day. Start and Stop are idempotent.
type Scheduler struct {
	cfg     *config.Config
	feed    repository.CandleFeed
	engine  *usecase.Engine
	storage repository.Storage
	log     *logger.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(cfg *config.Config, feed repository.CandleFeed, engine *usecase.Engine, storage repository.Storage, log *logger.Logger) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		feed:    feed,
		engine:  engine,
		storage: storage,
		log:     log,
	}
}

// Start launches the tick and retention loops. A second call while running
// is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.run(ctx)
	}()
	s.log.Info("scheduler started",
		logger.Duration("m1_interval", s.cfg.Scheduler.M1Interval),
		logger.Int("retention_days", s.cfg.Scheduler.RetentionDays))
}

// Stop halts the loops and waits for the current tick to finish. Safe to
// call multiple times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.cancel()
	<-s.done
	s.log.Info("scheduler stopped")
}

// Running reports whether the loops are active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Scheduler.M1Interval)
	defer ticker.Stop()
	retention := time.NewTicker(24 * time.Hour)
	defer retention.Stop()

	// First tick immediately so a fresh process produces data without
	// waiting a full interval.
	s.Tick(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Tick(ctx, now)
		case <-retention.C:
			s.purge(ctx)
		}
	}
}

// Tick pulls one candle per configured symbol and ingests it. Exported so
// tests and the live collector can drive the pipeline without the ticker.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	for _, symbol := range s.engine.Symbols() {
		c, err := s.feed.Next(ctx, symbol, now)
		if err != nil {
			s.log.Error("feed failed", logger.String("symbol", symbol), logger.Error(err))
			continue
		}
		if c == nil {
			continue // market closed
		}
		if err := s.engine.Ingest(ctx, c); err != nil {
			s.log.Warn("candle rejected", logger.String("symbol", symbol), logger.Error(err))
		}
	}
}

func (s *Scheduler) purge(ctx context.Context) {
	if s.storage == nil {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -s.cfg.Scheduler.RetentionDays)
	pctx, cancel := context.WithTimeout(ctx, s.cfg.Scheduler.StorageTimeout)
	defer cancel()
	if err := s.storage.PurgeBefore(pctx, cutoff); err != nil {
		s.log.Error("retention purge failed", logger.Error(err))
		return
	}
	s.log.Info("retention purge complete", logger.Any("cutoff", cutoff))
}
