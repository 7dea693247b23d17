package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"SessionPulse/internal/domain/models"
)

type captureSink struct {
	ch chan *models.Candle
}

func (s *captureSink) Ingest(_ context.Context, c *models.Candle) error {
	s.ch <- c
	return nil
}

func pipelineCandle(min int) *models.Candle {
	return &models.Candle{
		Symbol:    "EURUSD",
		Timeframe: models.M1,
		Timestamp: time.Date(2025, 3, 5, 8, min, 0, 0, time.UTC),
		Open:      1.0850,
		High:      1.0860,
		Low:       1.0845,
		Close:     1.0855,
		Volume:    100,
	}
}

func waitFor(t *testing.T, ch chan *models.Candle) *models.Candle {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("candle never reached the sink")
		return nil
	}
}

func TestPipelineDeliversToSink(t *testing.T) {
	sink := &captureSink{ch: make(chan *models.Candle, 1)}
	p := NewCandlePipeline(sink, nil, WithMaxRPS(1000))
	p.Start(context.Background())
	defer p.Stop()

	if err := p.Ingest(context.Background(), pipelineCandle(0)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if got := waitFor(t, sink.ch); got.Symbol != "EURUSD" {
		t.Fatalf("delivered candle = %+v", got)
	}
}

func TestPipelineRejectsInvalid(t *testing.T) {
	sink := &captureSink{ch: make(chan *models.Candle, 1)}
	p := NewCandlePipeline(sink, nil)

	if err := p.Ingest(context.Background(), nil); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("nil candle: %v", err)
	}
	bad := pipelineCandle(0)
	bad.High = bad.Low - 0.0010
	if err := p.Ingest(context.Background(), bad); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("malformed candle: %v", err)
	}
}

func TestPipelineRestart(t *testing.T) {
	sink := &captureSink{ch: make(chan *models.Candle, 1)}
	p := NewCandlePipeline(sink, nil, WithMaxRPS(1000))
	ctx := context.Background()

	p.Start(ctx)
	if err := p.Ingest(ctx, pipelineCandle(0)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	waitFor(t, sink.ch)
	p.Stop()
	p.Stop() // second stop is a no-op

	// After a restart the drain must pick candles up again.
	p.Start(ctx)
	defer p.Stop()
	if err := p.Ingest(ctx, pipelineCandle(1)); err != nil {
		t.Fatalf("ingest after restart: %v", err)
	}
	waitFor(t, sink.ch)
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	sink := &captureSink{ch: make(chan *models.Candle, 4)}
	p := NewCandlePipeline(sink, nil, WithMaxRPS(1))

	if err := p.Ingest(context.Background(), pipelineCandle(0)); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	// Second candle inside the same second is dropped silently.
	if err := p.Ingest(context.Background(), pipelineCandle(1)); err != nil {
		t.Fatalf("throttled ingest: %v", err)
	}
	if got := len(p.bufCh); got != 1 {
		t.Fatalf("buffered candles = %d, want 1", got)
	}
}
