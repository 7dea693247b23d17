package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"SessionPulse/internal/domain/models"
	domrepo "SessionPulse/internal/domain/repository"
)

// Sink is the minimal ingestion interface the pipeline needs.
type Sink interface {
	Ingest(ctx context.Context, c *models.Candle) error
}

// CandlePipeline sits between the live broker stream and the engine. It
// validates, throttles runaway per-symbol feeds, and decouples the WebSocket
// read loop from engine processing through a buffered channel.
type CandlePipeline struct {
	sink     Sink
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.Candle
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted time
}

type PipelineOption func(*CandlePipeline)

// WithMaxRPS sets the max candles per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *CandlePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the channel buffer between reader and engine.
func WithBufferSize(n int) PipelineOption {
	return func(p *CandlePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewCandlePipeline creates a new pipeline.
func NewCandlePipeline(sink Sink, metrics domrepo.Metrics, opts ...PipelineOption) *CandlePipeline {
	p := &CandlePipeline{
		sink:     sink,
		metrics:  metrics,
		maxRPS:   20,   // default throttle per symbol
		bufSize:  1000, // default buffer
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Candle, p.bufSize)
	return p
}

// Start launches the background drain into the sink. A stopped pipeline can
// be started again.
func (p *CandlePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	go func() {
		for {
			select {
			case <-stopCh:
				return
			case c := <-p.bufCh:
				if c == nil {
					continue
				}
				start := time.Now()
				err := p.sink.Ingest(ctx, c)
				switch {
				case err == nil:
					p.record("pipeline_ingest", time.Since(start).Seconds())
				case errors.Is(err, models.ErrDuplicate):
					// reconnect replay, not a fault
				default:
					p.recordError("pipeline_ingest")
				}
			}
		}
	}()
}

// Stop stops the background drain. Idempotent.
func (p *CandlePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	stopCh := p.stopCh
	p.mu.Unlock()
	close(stopCh)
}

// Ingest validates and throttles one candle, then queues it for the sink.
// Never blocks the stream read loop; a full buffer drops the candle.
func (p *CandlePipeline) Ingest(ctx context.Context, c *models.Candle) error {
	now := time.Now()
	if c == nil {
		p.recordError("pipeline_validate")
		return fmt.Errorf("%w: nil candle", models.ErrValidation)
	}
	if err := c.Validate(); err != nil {
		p.recordError("pipeline_validate")
		return err
	}
	if !p.allow(c.Symbol, now) {
		// throttled; record and drop silently
		p.recordError("pipeline_throttle")
		return nil
	}

	select {
	case p.bufCh <- c:
		p.record("pipeline_buffer_depth", float64(len(p.bufCh)))
	default:
		p.recordError("pipeline_buffer_full")
	}
	return nil
}

func (p *CandlePipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[symbol]
	if last.IsZero() || now.Sub(last) >= time.Second/time.Duration(p.maxRPS) {
		p.lastSeen[symbol] = now
		return true
	}
	return false
}

func (p *CandlePipeline) record(op string, v float64) {
	if p.metrics != nil {
		p.metrics.RecordLatency(op, v)
	}
}

func (p *CandlePipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}
