package usecase

import (
	"errors"
	"testing"
	"time"

	"SessionPulse/internal/domain/models"
)

func m1(ts time.Time, o, h, l, c float64, v int64) *models.Candle {
	return &models.Candle{
		Symbol:      "EURUSD",
		Timeframe:   models.M1,
		Timestamp:   ts,
		Open:        o,
		High:        h,
		Low:         l,
		Close:       c,
		Volume:      v,
		SessionName: models.SessionLondon,
		DataSource:  models.SourceSimulator,
	}
}

func TestAggregateCandles(t *testing.T) {
	base := time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)
	window := []*models.Candle{
		m1(base, 1.0850, 1.0860, 1.0848, 1.0855, 100),
		m1(base.Add(time.Minute), 1.0855, 1.0870, 1.0852, 1.0868, 150),
		m1(base.Add(2*time.Minute), 1.0868, 1.0869, 1.0840, 1.0845, 120),
		m1(base.Add(3*time.Minute), 1.0845, 1.0851, 1.0843, 1.0850, 90),
		m1(base.Add(4*time.Minute), 1.0850, 1.0858, 1.0849, 1.0857, 110),
	}

	agg, err := AggregateCandles(window, models.M5, 0.0001)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if agg.Open != 1.0850 || agg.Close != 1.0857 {
		t.Fatalf("open/close = %v/%v", agg.Open, agg.Close)
	}
	if agg.High != 1.0870 || agg.Low != 1.0840 {
		t.Fatalf("high/low = %v/%v", agg.High, agg.Low)
	}
	if agg.Volume != 570 {
		t.Fatalf("volume = %d", agg.Volume)
	}
	if agg.Timeframe != models.M5 {
		t.Fatalf("timeframe = %s", agg.Timeframe)
	}
	if agg.Timestamp != base {
		t.Fatalf("timestamp = %v", agg.Timestamp)
	}
	// 30 pips of range lands in the HIGH bucket.
	if agg.Volatility != models.VolatilityHigh {
		t.Fatalf("volatility = %s", agg.Volatility)
	}
	if err := agg.Validate(); err != nil {
		t.Fatalf("aggregated candle invalid: %v", err)
	}
}

func TestAggregateCandlesUnordered(t *testing.T) {
	base := time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)
	window := []*models.Candle{
		m1(base.Add(time.Minute), 1.0855, 1.0870, 1.0852, 1.0868, 150),
		m1(base, 1.0850, 1.0860, 1.0848, 1.0855, 100),
	}
	agg, err := AggregateCandles(window, models.M5, 0.0001)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if agg.Open != 1.0850 || agg.Close != 1.0868 {
		t.Fatalf("unordered window not sorted: open/close = %v/%v", agg.Open, agg.Close)
	}
}

func TestAggregateCandlesEmpty(t *testing.T) {
	_, err := AggregateCandles(nil, models.M5, 0.0001)
	if !errors.Is(err, models.ErrGap) {
		t.Fatalf("expected ErrGap, got %v", err)
	}
}

func TestAggregateCandlesMixedSymbols(t *testing.T) {
	base := time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)
	a := m1(base, 1.0850, 1.0860, 1.0848, 1.0855, 100)
	b := m1(base.Add(time.Minute), 1.0855, 1.0870, 1.0852, 1.0868, 150)
	b.Symbol = "GBPUSD"
	_, err := AggregateCandles([]*models.Candle{a, b}, models.M5, 0.0001)
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
