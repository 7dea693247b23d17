package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"SessionPulse/internal/domain/models"
	"SessionPulse/internal/usecase"
	"SessionPulse/pkg/config"
	"SessionPulse/pkg/logger"
)

type countingFeed struct {
	mu    sync.Mutex
	calls int
	last  time.Time
}

func (f *countingFeed) Next(_ context.Context, symbol string, now time.Time) (*models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	ts := now.UTC().Truncate(time.Minute)
	if !ts.After(f.last) {
		ts = f.last.Add(time.Minute)
	}
	f.last = ts
	return &models.Candle{
		Symbol:     symbol,
		Timeframe:  models.M1,
		Timestamp:  ts,
		Open:       1.0850,
		High:       1.0860,
		Low:        1.0845,
		Close:      1.0855,
		Volume:     100,
		DataSource: models.SourceSimulator,
	}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Environment = "test"
	cfg.Feed.Mode = "simulator"
	cfg.Instruments = []config.Instrument{{
		Symbol:             "EURUSD",
		BasePrice:          1.0850,
		DailyRangePips:     80,
		PipSize:            0.0001,
		BreakThresholdPips: 8,
		TouchTolerancePips: 3,
	}}
	cfg.Scheduler.M1Interval = 10 * time.Millisecond
	cfg.Scheduler.RetentionDays = 30
	cfg.Scheduler.StorageTimeout = time.Second
	cfg.Signals.Target1RR = 1.5
	cfg.Signals.Target2RR = 2.5
	cfg.Signals.MinMomentum = 0.6
	cfg.Signals.StopBufferPips = 5
	return cfg
}

func newScheduler(t *testing.T) (*Scheduler, *countingFeed, *usecase.Engine) {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	cfg := testConfig()
	engine := usecase.NewEngine(cfg, nil, nil, nil, nil, nil, log)
	feed := &countingFeed{}
	return New(cfg, feed, engine, nil, log), feed, engine
}

func TestTickIngestsPerSymbol(t *testing.T) {
	s, feed, engine := newScheduler(t)

	now := time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)
	s.Tick(context.Background(), now)
	s.Tick(context.Background(), now.Add(time.Minute))

	feed.mu.Lock()
	calls := feed.calls
	feed.mu.Unlock()
	if calls != 2 {
		t.Fatalf("feed calls = %d, want 2", calls)
	}
	if got := engine.Stats().CandlesIngested; got != 2 {
		t.Fatalf("ingested = %d, want 2", got)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	s, _, _ := newScheduler(t)
	ctx := context.Background()

	s.Start(ctx)
	s.Start(ctx) // second start must not spawn another loop
	if !s.Running() {
		t.Fatalf("expected running")
	}

	time.Sleep(30 * time.Millisecond)

	s.Stop()
	if s.Running() {
		t.Fatalf("expected stopped")
	}
	s.Stop() // second stop must not panic or block
}

func TestStopWaitsForLoop(t *testing.T) {
	s, feed, _ := newScheduler(t)
	s.Start(context.Background())
	time.Sleep(25 * time.Millisecond)
	s.Stop()

	feed.mu.Lock()
	after := feed.calls
	feed.mu.Unlock()
	time.Sleep(25 * time.Millisecond)
	feed.mu.Lock()
	later := feed.calls
	feed.mu.Unlock()
	if later != after {
		t.Fatalf("feed still ticking after stop: %d -> %d", after, later)
	}
}
