package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SessionPulse/internal/domain/models"
	"SessionPulse/pkg/config"
)

type memStorage struct {
	mu        sync.Mutex
	fail      bool
	candles   int
	sessions  int
	levels    int
	breakouts int
	signals   int
}

func (m *memStorage) bump(n *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("storage down")
	}
	*n++
	return nil
}

func (m *memStorage) Init(context.Context) error { return nil }
func (m *memStorage) StoreCandle(_ context.Context, _ *models.Candle) error {
	return m.bump(&m.candles)
}
func (m *memStorage) StoreCandleBatch(_ context.Context, cs []*models.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("storage down")
	}
	m.candles += len(cs)
	return nil
}
func (m *memStorage) Candles(context.Context, string, models.Timeframe, time.Time, time.Time) ([]*models.Candle, error) {
	return nil, nil
}
func (m *memStorage) StoreSession(_ context.Context, _ *models.Session) error {
	return m.bump(&m.sessions)
}
func (m *memStorage) StoreLevel(_ context.Context, _ *models.Level) error {
	return m.bump(&m.levels)
}
func (m *memStorage) StoreBreakout(_ context.Context, _ *models.Breakout) error {
	return m.bump(&m.breakouts)
}
func (m *memStorage) StoreSignal(_ context.Context, _ *models.Signal) error {
	return m.bump(&m.signals)
}
func (m *memStorage) PurgeBefore(context.Context, time.Time) error { return nil }
func (m *memStorage) Health(context.Context) error                 { return nil }
func (m *memStorage) Close() error                                 { return nil }

type memPublisher struct {
	mu        sync.Mutex
	signals   int
	breakouts int
}

func (p *memPublisher) PublishSignal(context.Context, *models.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals++
	return nil
}
func (p *memPublisher) PublishBreakout(context.Context, *models.Breakout) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakouts++
	return nil
}
func (p *memPublisher) Close() error { return nil }

func engineConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Environment = "test"
	cfg.Feed.Mode = "simulator"
	cfg.Instruments = []config.Instrument{eurusd()}
	cfg.Scheduler.StorageTimeout = time.Second
	cfg.Signals.StopBufferPips = 5
	cfg.Signals.Target1RR = 1.5
	cfg.Signals.Target2RR = 2.5
	cfg.Signals.MinMomentum = 0.6
	cfg.News.WithinMinutes = 120
	return cfg
}

func newEngine(t *testing.T, store *memStorage, pub *memPublisher) *Engine {
	t.Helper()
	e := NewEngine(engineConfig(), store, nil, nil, nil, nil, testLogger(t))
	if pub != nil {
		e.publisher = pub
	}
	return e
}

func TestIngestDuplicateIdempotent(t *testing.T) {
	e := newEngine(t, &memStorage{}, nil)
	c := sessionCandle(models.SessionAsia, 1, 0, 1.0850, 1.0860, 1.0845, 1.0858)

	if err := e.Ingest(context.Background(), c); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	dup := *c
	err := e.Ingest(context.Background(), &dup)
	if !errors.Is(err, models.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	stats := e.Stats()
	if stats.CandlesIngested != 1 || stats.Duplicates != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	candles, _ := e.LatestCandles("EURUSD", models.M1, 10)
	if len(candles) != 1 {
		t.Fatalf("recent candles = %d", len(candles))
	}
}

func TestIngestOutOfOrderRejected(t *testing.T) {
	e := newEngine(t, &memStorage{}, nil)
	c1 := sessionCandle(models.SessionAsia, 2, 0, 1.0850, 1.0860, 1.0845, 1.0858)
	c2 := sessionCandle(models.SessionAsia, 1, 0, 1.0858, 1.0862, 1.0855, 1.0860)

	if err := e.Ingest(context.Background(), c1); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := e.Ingest(context.Background(), c2); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestIngestUnknownSymbolRejected(t *testing.T) {
	e := newEngine(t, &memStorage{}, nil)
	c := sessionCandle(models.SessionAsia, 1, 0, 1.0850, 1.0860, 1.0845, 1.0858)
	c.Symbol = "GBPJPY"
	if err := e.Ingest(context.Background(), c); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestIngestBrokenOHLCRejected(t *testing.T) {
	e := newEngine(t, &memStorage{}, nil)
	c := sessionCandle(models.SessionAsia, 1, 0, 1.0850, 1.0840, 1.0845, 1.0858) // high below open
	if err := e.Ingest(context.Background(), c); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if got := e.Stats().CandlesIngested; got != 0 {
		t.Fatalf("invalid candle counted: %d", got)
	}
}

func TestDedupWindowBounded(t *testing.T) {
	e := newEngine(t, &memStorage{}, nil)
	base := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	var last *models.Candle
	for i := 0; i < seenKeep+50; i++ {
		c := sessionCandle(models.SessionAsia, 0, 0, 1.0850, 1.0860, 1.0845, 1.0855)
		c.Timestamp = base.Add(time.Duration(i) * time.Minute)
		c.SessionName = "" // classified per minute during ingestion
		if err := e.Ingest(context.Background(), c); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
		last = c
	}

	sym := e.symbolState("EURUSD")
	sym.mu.Lock()
	n := len(sym.seen)
	sym.mu.Unlock()
	if n > seenKeep {
		t.Fatalf("dedup window = %d, exceeds %d", n, seenKeep)
	}

	// Recent keys still dedupe.
	dup := *last
	if err := e.Ingest(context.Background(), &dup); !errors.Is(err, models.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestAggregationTiers(t *testing.T) {
	e := newEngine(t, &memStorage{}, nil)
	base := time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 30; i++ {
		c := sessionCandle(models.SessionLondon, 8, 0, 1.0850, 1.0860, 1.0845, 1.0855)
		c.Timestamp = base.Add(time.Duration(i) * time.Minute)
		if err := e.Ingest(context.Background(), c); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}

	m5, err := e.LatestCandles("EURUSD", models.M5, 100)
	if err != nil {
		t.Fatalf("m5: %v", err)
	}
	if len(m5) != 6 {
		t.Fatalf("m5 candles = %d, want 6", len(m5))
	}
	if m5[0].Volume != 500 {
		t.Fatalf("m5 volume = %d, want 500", m5[0].Volume)
	}

	m30, err := e.LatestCandles("EURUSD", models.M30, 100)
	if err != nil {
		t.Fatalf("m30: %v", err)
	}
	if len(m30) != 1 {
		t.Fatalf("m30 candles = %d, want 1", len(m30))
	}
	if m30[0].Volume != 3000 {
		t.Fatalf("m30 volume = %d, want 3000", m30[0].Volume)
	}
}

// feedBreakoutDay pushes an Asia range followed by a confirmed London break.
func feedBreakoutDay(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()
	candles := []*models.Candle{
		sessionCandle(models.SessionAsia, 1, 0, 1.0850, 1.0860, 1.0845, 1.0858),
		sessionCandle(models.SessionAsia, 3, 0, 1.0858, 1.0875, 1.0852, 1.0870),
		sessionCandle(models.SessionAsia, 5, 0, 1.0870, 1.0872, 1.0840, 1.0855),
		sessionCandle(models.SessionOverlap, 6, 30, 1.0855, 1.0860, 1.0853, 1.0858),
	}
	breakCandle := sessionCandle(models.SessionLondon, 7, 30, 1.0870, 1.0885, 1.0868, 1.0883)
	breakCandle.Volume = 300
	candles = append(candles, breakCandle)

	for _, c := range candles {
		if err := e.Ingest(ctx, c); err != nil {
			t.Fatalf("ingest %v: %v", c.Timestamp, err)
		}
	}
}

func TestEndToEndBreakoutAndSignal(t *testing.T) {
	store := &memStorage{}
	pub := &memPublisher{}
	e := newEngine(t, store, pub)
	feedBreakoutDay(t, e)

	// The London surge breaks both the Asia high and the Asia VWAP it
	// traded through, so every tier below sees two events.
	breakouts, err := e.RecentBreakouts("EURUSD")
	if err != nil {
		t.Fatalf("breakouts: %v", err)
	}
	if len(breakouts) != 2 {
		t.Fatalf("breakouts = %d, want 2", len(breakouts))
	}
	var b *models.Breakout
	for _, cand := range breakouts {
		if cand.Level.Type == models.AsiaHigh {
			b = cand
		}
	}
	if b == nil || b.Direction != models.Long {
		t.Fatalf("asia high breakout missing: %+v", breakouts)
	}
	if !b.VolumeConfirmation {
		t.Fatalf("3x volume must confirm, ratio %v", b.VolumeRatio)
	}

	signals, err := e.ActiveSignals("EURUSD")
	if err != nil {
		t.Fatalf("signals: %v", err)
	}
	if len(signals) != 2 {
		t.Fatalf("signals = %d, want 2", len(signals))
	}
	var s *models.Signal
	for _, cand := range signals {
		if cand.LevelID == b.LevelID {
			s = cand
		}
	}
	if s == nil {
		t.Fatalf("no signal for the asia high breakout: %+v", signals)
	}
	if s.SetupType != "ASIA_BREAKOUT_AT_LONDON" || s.Direction != models.Long {
		t.Fatalf("signal = %s %s", s.SetupType, s.Direction)
	}
	if s.Entry != 1.0883 {
		t.Fatalf("entry = %v", s.Entry)
	}

	levels, _ := e.ActiveLevels("EURUSD")
	var foundBroken bool
	for _, l := range levels {
		if l.Type == models.AsiaHigh && l.Status == models.LevelBroken {
			foundBroken = true
		}
	}
	if !foundBroken {
		t.Fatalf("broken asia high not in levels")
	}

	sessions, _ := e.RecentSessions("EURUSD")
	if len(sessions) != 1 || sessions[0].Name != models.SessionAsia {
		t.Fatalf("sessions = %+v", sessions)
	}

	stats := e.Stats()
	if stats.Breakouts != 2 || stats.Signals != 2 {
		t.Fatalf("stats = %+v", stats)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.breakouts != 2 || store.signals != 2 || store.sessions != 1 {
		t.Fatalf("storage writes = %d/%d/%d", store.breakouts, store.signals, store.sessions)
	}
	if store.levels == 0 || store.candles == 0 {
		t.Fatalf("levels/candles not stored: %d/%d", store.levels, store.candles)
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.breakouts != 2 || pub.signals != 2 {
		t.Fatalf("published = %d/%d", pub.breakouts, pub.signals)
	}
}

func TestStorageFailureAbsorbed(t *testing.T) {
	store := &memStorage{fail: true}
	e := newEngine(t, store, nil)
	feedBreakoutDay(t, e)

	// The pipeline keeps working from in-memory state.
	breakouts, err := e.RecentBreakouts("EURUSD")
	if err != nil || len(breakouts) != 2 {
		t.Fatalf("breakouts with failing storage = %d, %v", len(breakouts), err)
	}
	if got := e.Stats().CandlesIngested; got != 5 {
		t.Fatalf("ingested = %d, want 5", got)
	}
}

func TestReadSnapshotsAreCopies(t *testing.T) {
	e := newEngine(t, &memStorage{}, nil)
	feedBreakoutDay(t, e)

	levels, _ := e.ActiveLevels("EURUSD")
	if len(levels) == 0 {
		t.Fatalf("no levels")
	}
	levels[0].Price = 0

	again, _ := e.ActiveLevels("EURUSD")
	for _, l := range again {
		if l.Price == 0 {
			t.Fatalf("reader mutation leaked into engine state")
		}
	}
}
