package usecase

import (
	"context"
	"errors"

	"SessionPulse/internal/domain/models"
	"SessionPulse/internal/domain/repository"
	mid "SessionPulse/internal/middleware"
	"SessionPulse/pkg/logger"
)

// Collector pumps live candles from a broker stream into the engine. Used in
// live mode instead of the scheduler-driven simulator feed. When a pipeline
// is attached, candles pass through its throttle and buffer first.
type Collector struct {
	stream  repository.CandleStream
	engine  *Engine
	metrics repository.Metrics
	pipe    *mid.CandlePipeline
	log     *logger.Logger
}

func NewCollector(stream repository.CandleStream, engine *Engine, metrics repository.Metrics, pipe *mid.CandlePipeline, log *logger.Logger) *Collector {
	return &Collector{stream: stream, engine: engine, metrics: metrics, pipe: pipe, log: log}
}

// IsConnected reports whether the broker stream is up.
func (c *Collector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes, and launches the consume loop.
func (c *Collector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	candles, errs := c.stream.Read(ctx)
	go c.consume(ctx, candles, errs)
	return nil
}

func (c *Collector) consume(ctx context.Context, candles <-chan *models.Candle, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errs:
			if err != nil {
				if c.metrics != nil {
					c.metrics.RecordError("stream")
				}
				c.log.Warn("stream error, reconnecting", logger.Error(err))
				_ = c.stream.Reconnect(ctx)
			}
		case candle := <-candles:
			if candle == nil {
				continue
			}
			if err := c.ingest(ctx, candle); err != nil {
				// duplicates are routine on reconnect replay
				if errors.Is(err, models.ErrDuplicate) {
					continue
				}
				c.log.Warn("live candle rejected", logger.Error(err))
			}
		}
	}
}

func (c *Collector) ingest(ctx context.Context, candle *models.Candle) error {
	if c.pipe != nil {
		return c.pipe.Ingest(ctx, candle)
	}
	return c.engine.Ingest(ctx, candle)
}

// Stop stops the pipeline and closes the stream.
func (c *Collector) Stop() error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
