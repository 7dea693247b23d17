package simulator

import (
	"context"
	"testing"
	"time"

	"SessionPulse/internal/domain/models"
	"SessionPulse/pkg/config"
	"SessionPulse/pkg/logger"
)

func testInstruments() []config.Instrument {
	return []config.Instrument{
		{Symbol: "EURUSD", BasePrice: 1.0850, DailyRangePips: 80, SpreadPips: 0.5, PipSize: 0.0001},
		{Symbol: "XAUUSD", BasePrice: 1950.0, DailyRangePips: 1500, SpreadPips: 20, PipSize: 0.01},
	}
}

func testLogger() *logger.Logger {
	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		panic(err)
	}
	return log
}

// a Wednesday during London hours
var openTime = time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)

func TestNextCoherentOHLC(t *testing.T) {
	sim := New(testInstruments(), 42, testLogger())
	ctx := context.Background()

	now := openTime
	for i := 0; i < 200; i++ {
		c, err := sim.Next(ctx, "EURUSD", now)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if c == nil {
			t.Fatalf("nil candle during open market")
		}
		if err := c.Validate(); err != nil {
			t.Fatalf("candle %d invalid: %v", i, err)
		}
		if c.Timeframe != models.M1 {
			t.Fatalf("timeframe = %s", c.Timeframe)
		}
		if c.DataSource != models.SourceSimulator {
			t.Fatalf("data source = %s", c.DataSource)
		}
		if c.Volume <= 0 {
			t.Fatalf("volume = %d", c.Volume)
		}
		now = now.Add(time.Minute)
	}
}

func TestNextMonotonicTimestamps(t *testing.T) {
	sim := New(testInstruments(), 1, testLogger())
	ctx := context.Background()

	// The same wall-clock instant twice must not repeat a timestamp.
	first, err := sim.Next(ctx, "EURUSD", openTime)
	if err != nil || first == nil {
		t.Fatalf("first: %v %v", first, err)
	}
	second, err := sim.Next(ctx, "EURUSD", openTime)
	if err != nil || second == nil {
		t.Fatalf("second: %v %v", second, err)
	}
	if !second.Timestamp.After(first.Timestamp) {
		t.Fatalf("timestamps not monotonic: %v then %v", first.Timestamp, second.Timestamp)
	}
	if second.Open != first.Close {
		t.Fatalf("open %v does not continue from prior close %v", second.Open, first.Close)
	}
}

func TestNextMarketClosed(t *testing.T) {
	sim := New(testInstruments(), 1, testLogger())
	ctx := context.Background()

	saturday := time.Date(2025, 3, 8, 10, 0, 0, 0, time.UTC)
	c, err := sim.Next(ctx, "EURUSD", saturday)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil candle on weekend, got %+v", c)
	}

	pause := time.Date(2025, 3, 5, 18, 0, 0, 0, time.UTC)
	if c, _ := sim.Next(ctx, "EURUSD", pause); c != nil {
		t.Fatalf("expected nil candle during daily pause")
	}
}

func TestNextUnknownSymbol(t *testing.T) {
	sim := New(testInstruments(), 1, testLogger())
	c, err := sim.Next(context.Background(), "GBPJPY", openTime)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil for unconfigured symbol")
	}
}

func TestNextPriceClamped(t *testing.T) {
	sim := New(testInstruments(), 7, testLogger())
	ctx := context.Background()

	base := 1.0850
	now := openTime
	for i := 0; i < 500; i++ {
		c, err := sim.Next(ctx, "EURUSD", now)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if c == nil {
			now = now.Add(time.Minute)
			continue
		}
		if c.Close < base*0.95-1e-9 || c.Close > base*1.05+1e-9 {
			t.Fatalf("close %v escaped clamp band", c.Close)
		}
		now = now.Add(time.Minute)
	}
}

func TestDeterministicWithSeed(t *testing.T) {
	a := New(testInstruments(), 99, testLogger())
	b := New(testInstruments(), 99, testLogger())
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		now := openTime.Add(time.Duration(i) * time.Minute)
		ca, _ := a.Next(ctx, "XAUUSD", now)
		cb, _ := b.Next(ctx, "XAUUSD", now)
		if ca.Close != cb.Close || ca.Volume != cb.Volume {
			t.Fatalf("candle %d diverged: %v/%d vs %v/%d", i, ca.Close, ca.Volume, cb.Close, cb.Volume)
		}
	}
}
