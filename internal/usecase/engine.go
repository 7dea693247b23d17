package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"SessionPulse/internal/domain/models"
	"SessionPulse/internal/domain/repository"
	"SessionPulse/internal/session"
	"SessionPulse/pkg/cache"
	"SessionPulse/pkg/config"
	"SessionPulse/pkg/logger"
)

const (
	m5WindowSize  = 5
	m30WindowSize = 6
	recentKeep    = 500
	seenKeep      = 4096
	latestPriceTTL = 10 * time.Minute
)

var validate = validator.New()

// Engine is the market context core: it ingests candles per symbol, drives
// level tracking, breakout detection, and signal generation, and serves
// snapshot reads. Each symbol has its own lock, so symbols never contend
// with each other.
type Engine struct {
	cfg       *config.Config
	log       *logger.Logger
	storage   repository.Storage
	publisher repository.Publisher
	metrics   repository.Metrics
	cache     cache.Service
	gen       *SignalGenerator

	mu      sync.RWMutex
	symbols map[string]*symbolState

	statsMu sync.Mutex
	stats   EngineStats
}

type symbolState struct {
	mu       sync.Mutex
	inst     config.Instrument
	tracker  *LevelTracker
	detector *BreakoutDetector

	seen      map[string]struct{}
	seenOrder []string
	lastTS    map[models.Timeframe]time.Time

	pendingM1 []*models.Candle
	pendingM5 []*models.Candle

	recent   map[models.Timeframe][]*models.Candle
	signals  []*models.Signal
	sessions []*models.Session
}

// EngineStats is a snapshot of ingest counters.
type EngineStats struct {
	CandlesIngested int64 `json:"candles_ingested"`
	CandlesRejected int64 `json:"candles_rejected"`
	Duplicates      int64 `json:"duplicates"`
	Breakouts       int64 `json:"breakouts"`
	Signals         int64 `json:"signals"`
	Symbols         int   `json:"symbols"`
}

func NewEngine(
	cfg *config.Config,
	storage repository.Storage,
	publisher repository.Publisher,
	news repository.NewsProvider,
	metrics repository.Metrics,
	cacheSvc cache.Service,
	log *logger.Logger,
) *Engine {
	e := &Engine{
		cfg:       cfg,
		log:       log,
		storage:   storage,
		publisher: publisher,
		metrics:   metrics,
		cache:     cacheSvc,
		gen:       NewSignalGenerator(cfg, log),
		symbols:   make(map[string]*symbolState),
	}
	newsWindow := time.Duration(cfg.News.WithinMinutes) * time.Minute
	for _, inst := range cfg.Instruments {
		e.symbols[inst.Symbol] = &symbolState{
			inst:     inst,
			tracker:  NewLevelTracker(inst, log),
			detector: NewBreakoutDetector(inst, news, newsWindow, log),
			seen:     make(map[string]struct{}),
			lastTS:   make(map[models.Timeframe]time.Time),
			recent:   make(map[models.Timeframe][]*models.Candle),
		}
	}
	return e
}

// Ingest runs one candle through the full pipeline. Duplicates return
// ErrDuplicate and change nothing; out-of-order candles return ErrValidation.
// Storage and publish failures are absorbed, never surfaced to the feed.
func (e *Engine) Ingest(ctx context.Context, c *models.Candle) error {
	if err := validate.Struct(c); err != nil {
		e.reject("validation")
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	if err := c.Validate(); err != nil {
		e.reject("validation")
		return err
	}
	sym := e.symbolState(c.Symbol)
	if sym == nil {
		e.reject("unknown_symbol")
		return fmt.Errorf("%w: symbol %s not configured", models.ErrValidation, c.Symbol)
	}

	sym.mu.Lock()
	defer sym.mu.Unlock()

	key := c.Key()
	if _, dup := sym.seen[key]; dup {
		e.statsMu.Lock()
		e.stats.Duplicates++
		e.statsMu.Unlock()
		return fmt.Errorf("%w: candle %s", models.ErrDuplicate, key)
	}
	if last, ok := sym.lastTS[c.Timeframe]; ok && !c.Timestamp.After(last) {
		e.reject("out_of_order")
		return fmt.Errorf("%w: %s candle %s not after %s",
			models.ErrValidation, c.Timeframe, c.Timestamp, last)
	}
	sym.markSeen(key)
	sym.lastTS[c.Timeframe] = c.Timestamp

	if c.SessionName == "" {
		c.SessionName, c.SessionProgress = session.Classify(c.Timestamp)
	}

	e.statsMu.Lock()
	e.stats.CandlesIngested++
	e.statsMu.Unlock()
	if e.metrics != nil {
		e.metrics.RecordCandle(string(c.DataSource), c.Symbol, string(c.Timeframe))
		e.metrics.RecordLastPrice(c.Symbol, c.Close)
	}
	e.cacheLatest(ctx, c)

	sym.remember(c)
	e.store("candle", func(ctx context.Context) error {
		return e.storage.StoreCandle(ctx, c)
	})

	if c.Timeframe == models.M1 {
		e.process(ctx, sym, c)
		e.aggregate(ctx, sym, c)
	}
	return nil
}

// process drives tracking, detection, and signal generation for one M1 candle.
func (e *Engine) process(ctx context.Context, sym *symbolState, c *models.Candle) {
	up := sym.tracker.OnCandle(c)

	for _, s := range up.FinalizedSessions {
		s := s
		sym.sessions = append(sym.sessions, s)
		if len(sym.sessions) > 50 {
			sym.sessions = sym.sessions[1:]
		}
		e.store("session", func(ctx context.Context) error {
			return e.storage.StoreSession(ctx, s)
		})
	}
	for _, l := range up.NewLevels {
		l := l
		e.store("level", func(ctx context.Context) error {
			return e.storage.StoreLevel(ctx, l.Clone())
		})
	}

	for _, ev := range up.Breaks {
		b := sym.detector.OnBreak(ctx, ev)
		e.statsMu.Lock()
		e.stats.Breakouts++
		e.statsMu.Unlock()
		if e.metrics != nil {
			e.metrics.RecordBreakout(b.Symbol, string(b.Direction))
		}
		e.store("breakout", func(ctx context.Context) error {
			return e.storage.StoreBreakout(ctx, b.Clone())
		})
		e.publishBreakout(ctx, b)

		sig, err := e.gen.Generate(b, sym.inst)
		if err != nil {
			e.log.Warn("signal rejected", logger.String("breakout", b.ID), logger.Error(err))
			if e.metrics != nil {
				e.metrics.RecordError("signal")
			}
			continue
		}
		if sig == nil {
			continue
		}
		sym.signals = append(sym.signals, sig)
		if len(sym.signals) > 100 {
			sym.signals = sym.signals[1:]
		}
		e.statsMu.Lock()
		e.stats.Signals++
		e.statsMu.Unlock()
		if e.metrics != nil {
			e.metrics.RecordSignal(sig.Symbol, sig.SetupType)
		}
		e.store("signal", func(ctx context.Context) error {
			return e.storage.StoreSignal(ctx, sig.Clone())
		})
		e.publishSignal(ctx, sig)
	}

	sym.detector.Update(c)
}

// aggregate rolls complete M1 windows into M5 candles and complete M5
// windows into M30. Aggregated candles are stored and readable but do not
// re-enter level tracking.
func (e *Engine) aggregate(ctx context.Context, sym *symbolState, c *models.Candle) {
	sym.pendingM1 = append(sym.pendingM1, c)
	if len(sym.pendingM1) < m5WindowSize {
		return
	}
	m5, err := AggregateCandles(sym.pendingM1, models.M5, sym.inst.PipSize)
	sym.pendingM1 = sym.pendingM1[:0]
	if err != nil {
		e.log.Error("m5 aggregation failed", logger.Error(err))
		e.reject("aggregation")
		return
	}
	sym.lastTS[models.M5] = m5.Timestamp
	sym.seen[m5.Key()] = struct{}{}
	sym.remember(m5)
	if e.metrics != nil {
		e.metrics.RecordCandle(string(m5.DataSource), m5.Symbol, string(m5.Timeframe))
	}
	e.cacheLatest(ctx, m5)
	e.store("candle", func(ctx context.Context) error {
		return e.storage.StoreCandle(ctx, m5)
	})

	sym.pendingM5 = append(sym.pendingM5, m5)
	if len(sym.pendingM5) < m30WindowSize {
		return
	}
	m30, err := AggregateCandles(sym.pendingM5, models.M30, sym.inst.PipSize)
	sym.pendingM5 = sym.pendingM5[:0]
	if err != nil {
		e.log.Error("m30 aggregation failed", logger.Error(err))
		e.reject("aggregation")
		return
	}
	sym.lastTS[models.M30] = m30.Timestamp
	sym.seen[m30.Key()] = struct{}{}
	sym.remember(m30)
	if e.metrics != nil {
		e.metrics.RecordCandle(string(m30.DataSource), m30.Symbol, string(m30.Timeframe))
	}
	e.cacheLatest(ctx, m30)
	e.store("candle", func(ctx context.Context) error {
		return e.storage.StoreCandle(ctx, m30)
	})
}

// --- reads ---

// ActiveLevels returns snapshot clones of the symbol's tracked levels.
func (e *Engine) ActiveLevels(symbol string) ([]*models.Level, error) {
	sym := e.symbolState(symbol)
	if sym == nil {
		return nil, fmt.Errorf("%w: symbol %s not configured", models.ErrValidation, symbol)
	}
	sym.mu.Lock()
	defer sym.mu.Unlock()
	levels := sym.tracker.ActiveLevels()
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price > levels[j].Price })
	return levels, nil
}

// RecentBreakouts returns snapshot clones of the still-valid breakouts.
func (e *Engine) RecentBreakouts(symbol string) ([]*models.Breakout, error) {
	sym := e.symbolState(symbol)
	if sym == nil {
		return nil, fmt.Errorf("%w: symbol %s not configured", models.ErrValidation, symbol)
	}
	sym.mu.Lock()
	defer sym.mu.Unlock()
	breakouts := sym.detector.ActiveBreakouts()
	sort.Slice(breakouts, func(i, j int) bool {
		return breakouts[i].Timestamp.After(breakouts[j].Timestamp)
	})
	return breakouts, nil
}

// ActiveSignals returns snapshot clones of the non-terminal signals.
func (e *Engine) ActiveSignals(symbol string) ([]*models.Signal, error) {
	sym := e.symbolState(symbol)
	if sym == nil {
		return nil, fmt.Errorf("%w: symbol %s not configured", models.ErrValidation, symbol)
	}
	sym.mu.Lock()
	defer sym.mu.Unlock()
	out := make([]*models.Signal, 0, len(sym.signals))
	for _, s := range sym.signals {
		if s.Status == models.SignalActive || s.Status == models.SignalTriggered {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

// LatestCandles returns up to limit most recent candles of a timeframe,
// newest last.
func (e *Engine) LatestCandles(symbol string, tf models.Timeframe, limit int) ([]*models.Candle, error) {
	sym := e.symbolState(symbol)
	if sym == nil {
		return nil, fmt.Errorf("%w: symbol %s not configured", models.ErrValidation, symbol)
	}
	if !tf.IsValid() {
		return nil, fmt.Errorf("%w: timeframe %q", models.ErrValidation, tf)
	}
	if limit <= 0 {
		limit = 100
	}
	sym.mu.Lock()
	defer sym.mu.Unlock()
	recent := sym.recent[tf]
	if len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}
	out := make([]*models.Candle, len(recent))
	for i, c := range recent {
		cp := *c
		out[i] = &cp
	}
	return out, nil
}

// CurrentSession returns a copy of the symbol's open session, nil when the
// clock is outside a tracked window.
func (e *Engine) CurrentSession(symbol string) (*models.Session, error) {
	sym := e.symbolState(symbol)
	if sym == nil {
		return nil, fmt.Errorf("%w: symbol %s not configured", models.ErrValidation, symbol)
	}
	sym.mu.Lock()
	defer sym.mu.Unlock()
	return sym.tracker.CurrentSession(), nil
}

// RecentSessions returns copies of finalized sessions, oldest first.
func (e *Engine) RecentSessions(symbol string) ([]*models.Session, error) {
	sym := e.symbolState(symbol)
	if sym == nil {
		return nil, fmt.Errorf("%w: symbol %s not configured", models.ErrValidation, symbol)
	}
	sym.mu.Lock()
	defer sym.mu.Unlock()
	out := make([]*models.Session, len(sym.sessions))
	for i, s := range sym.sessions {
		cp := *s
		out[i] = &cp
	}
	return out, nil
}

// Stats returns a snapshot of the ingest counters.
func (e *Engine) Stats() EngineStats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	s := e.stats
	s.Symbols = len(e.symbols)
	return s
}

// Symbols lists the configured symbols.
func (e *Engine) Symbols() []string {
	return e.cfg.Symbols()
}

// --- internals ---

func (e *Engine) symbolState(symbol string) *symbolState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.symbols[symbol]
}

// markSeen records a candle key for dedup, evicting the oldest beyond the
// window. Evicted keys are still rejected by the monotonic timestamp check.
func (s *symbolState) markSeen(key string) {
	s.seen[key] = struct{}{}
	s.seenOrder = append(s.seenOrder, key)
	if len(s.seenOrder) > seenKeep {
		delete(s.seen, s.seenOrder[0])
		s.seenOrder = s.seenOrder[1:]
	}
}

func (s *symbolState) remember(c *models.Candle) {
	buf := append(s.recent[c.Timeframe], c)
	if len(buf) > recentKeep {
		buf = buf[1:]
	}
	s.recent[c.Timeframe] = buf
}

// store runs one storage call synchronously with a bounded timeout. Failures
// count as upstream errors and are logged, never propagated.
func (e *Engine) store(op string, fn func(ctx context.Context) error) {
	if e.storage == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Scheduler.StorageTimeout)
	defer cancel()
	start := time.Now()
	if err := fn(ctx); err != nil {
		wrapped := fmt.Errorf("%w: store %s: %v", models.ErrUpstream, op, err)
		e.log.Error("storage write failed", logger.String("op", op), logger.Error(wrapped))
		if e.metrics != nil {
			e.metrics.RecordError("storage")
		}
		return
	}
	if e.metrics != nil {
		e.metrics.RecordLatency("store_"+op, time.Since(start).Seconds())
	}
}

func (e *Engine) publishBreakout(ctx context.Context, b *models.Breakout) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishBreakout(ctx, b.Clone()); err != nil {
		e.log.Error("breakout publish failed", logger.Error(err))
		if e.metrics != nil {
			e.metrics.RecordError("publish")
		}
	}
}

func (e *Engine) publishSignal(ctx context.Context, s *models.Signal) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishSignal(ctx, s.Clone()); err != nil {
		e.log.Error("signal publish failed", logger.Error(err))
		if e.metrics != nil {
			e.metrics.RecordError("publish")
		}
	}
}

// cacheLatest keeps the freshest candle per symbol (and per aggregate
// timeframe) in the shared cache so other consumers can read prices without
// touching the engine.
func (e *Engine) cacheLatest(ctx context.Context, c *models.Candle) {
	if e.cache == nil {
		return
	}
	key := fmt.Sprintf("market:latest:%s", c.Symbol)
	if c.Timeframe != models.M1 {
		key = fmt.Sprintf("market:latest:%s_%s", c.Symbol, c.Timeframe)
	}
	if err := e.cache.Set(ctx, key, c, latestPriceTTL); err != nil {
		e.log.Debug("latest price cache write failed", logger.Error(err))
	}
}

func (e *Engine) reject(kind string) {
	e.statsMu.Lock()
	e.stats.CandlesRejected++
	e.statsMu.Unlock()
	if e.metrics != nil {
		e.metrics.RecordError(kind)
	}
}
