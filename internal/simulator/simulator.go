// Package simulator generates realistic OHLCV candles for configured
// instruments, used when no live broker feed is attached.
package simulator

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"SessionPulse/internal/domain/models"
	"SessionPulse/internal/session"
	"SessionPulse/pkg/config"
	"SessionPulse/pkg/logger"
)

const recentWindow = 20

// Simulator implements repository.CandleFeed. State is per symbol and
// guarded by one mutex; the scheduler serializes calls per tick anyway.
type Simulator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	log     *logger.Logger
	symbols map[string]*symbolState
}

type symbolState struct {
	cfg      config.Instrument
	lastClose float64
	lastTS   time.Time
	recent   []float64
	momentum float64
}

// New builds a simulator over the configured instrument table. seed makes
// generation reproducible in tests; pass 0 for a time-based seed.
func New(instruments []config.Instrument, seed int64, log *logger.Logger) *Simulator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &Simulator{
		rng:     rand.New(rand.NewSource(seed)),
		log:     log,
		symbols: make(map[string]*symbolState, len(instruments)),
	}
	for _, in := range instruments {
		s.symbols[in.Symbol] = &symbolState{cfg: in, lastClose: in.BasePrice}
	}
	return s
}

// Next produces the next M1 candle for symbol at the given instant, or nil
// when the market is closed. Timestamps are minute-aligned and strictly
// monotonic per symbol.
func (s *Simulator) Next(_ context.Context, symbol string, now time.Time) (*models.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.symbols[symbol]
	if !ok {
		return nil, nil
	}
	if !session.MarketOpen(now) {
		return nil, nil
	}

	ts := now.UTC().Truncate(time.Minute)
	if !ts.After(st.lastTS) {
		ts = st.lastTS.Add(time.Minute)
	}

	name, progress := session.Classify(ts)

	open := st.lastClose
	close := s.nextPrice(st, name)
	high, low := s.wicks(open, close)
	volume := s.volume(st.cfg, name)

	vwap := st.vwap()
	c := &models.Candle{
		Symbol:          symbol,
		Timeframe:       models.M1,
		Timestamp:       ts,
		Open:            round5(open),
		High:            round5(high),
		Low:             round5(low),
		Close:           round5(close),
		Volume:          volume,
		SessionName:     name,
		SessionProgress: progress,
		VWAPSession:     round5(vwap),
		VWAPDistPips:    pips(close-vwap, st.cfg.PipSize),
		Volatility:      models.VolatilityFor((high - low) / st.cfg.PipSize),
		SpreadPips:      st.cfg.SpreadPips,
		DataSource:      models.SourceSimulator,
	}

	st.advance(c)
	return c, nil
}

// nextPrice applies session volatility, trend momentum, and occasional news
// shocks to a gaussian walk, clamped to ±5% of the base price.
func (s *Simulator) nextPrice(st *symbolState, name models.SessionName) float64 {
	maxMovement := float64(st.cfg.DailyRangePips) * 0.1 // at most 10% of the daily range per candle
	movement := s.rng.NormFloat64()*maxMovement*session.VolatilityMultiplier(name) +
		st.trendMomentum()*maxMovement*0.3 +
		s.newsImpact()*maxMovement*0.5

	price := st.lastClose + movement*st.cfg.PipSize

	min := st.cfg.BasePrice * 0.95
	max := st.cfg.BasePrice * 1.05
	if price < min {
		price = min
	}
	if price > max {
		price = max
	}
	return price
}

func (s *Simulator) wicks(open, close float64) (high, low float64) {
	rng := math.Abs(close - open)
	extra := rng * 1.5
	high = math.Max(open, close) + s.rng.Float64()*extra
	low = math.Min(open, close) - s.rng.Float64()*extra
	// coherence guard for the zero-range case
	high = math.Max(high, math.Max(open, close))
	low = math.Min(low, math.Min(open, close))
	return high, low
}

func (s *Simulator) volume(cfg config.Instrument, name models.SessionName) int64 {
	base := 1000.0
	if cfg.PipSize >= 0.01 {
		base = 500
	}
	mult := 0.8
	switch name {
	case models.SessionLondon:
		mult = 1.5
	case models.SessionNewYork:
		mult = 1.2
	}
	return int64(base * mult * (0.5 + s.rng.Float64()))
}

// newsImpact models a 5% chance of a significant scheduled-news shock.
func (s *Simulator) newsImpact() float64 {
	if s.rng.Float64() < 0.05 {
		return s.rng.NormFloat64() * 2.0
	}
	return 0
}

func (st *symbolState) advance(c *models.Candle) {
	st.lastClose = c.Close
	st.lastTS = c.Timestamp
	st.recent = append(st.recent, c.Close)
	if len(st.recent) > recentWindow {
		st.recent = st.recent[1:]
	}
	if n := len(st.recent); n >= 2 {
		st.momentum = (st.recent[n-1] - st.recent[n-2]) / st.cfg.PipSize
	}
}

func (st *symbolState) trendMomentum() float64 {
	return math.Tanh(st.momentum / 10.0)
}

func (st *symbolState) vwap() float64 {
	if len(st.recent) == 0 {
		return st.cfg.BasePrice
	}
	var sum float64
	for _, p := range st.recent {
		sum += p
	}
	return sum / float64(len(st.recent))
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

func pips(dist, pipSize float64) int {
	if pipSize <= 0 {
		return 0
	}
	return int(math.Round(math.Abs(dist) / pipSize))
}
