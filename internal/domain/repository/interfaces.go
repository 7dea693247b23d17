package repository

import (
	"context"
	"time"

	"SessionPulse/internal/domain/models"
)

// CandleFeed is a pull-based candle source driven by the scheduler, one
// candle per (symbol, tick). A nil candle with nil error means the market is
// closed and nothing was produced.
type CandleFeed interface {
	Next(ctx context.Context, symbol string, now time.Time) (*models.Candle, error)
}

// CandleStream is a push-based live candle source (broker WebSocket).
type CandleStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Candle, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Storage is the durable persistence collaborator. The core calls it with
// bounded-timeout contexts and treats every failure as retryable; in-memory
// state never depends on a successful write.
type Storage interface {
	Init(ctx context.Context) error
	StoreCandle(ctx context.Context, c *models.Candle) error
	StoreCandleBatch(ctx context.Context, candles []*models.Candle) error
	Candles(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time) ([]*models.Candle, error)
	StoreSession(ctx context.Context, s *models.Session) error
	StoreLevel(ctx context.Context, l *models.Level) error
	StoreBreakout(ctx context.Context, b *models.Breakout) error
	StoreSignal(ctx context.Context, s *models.Signal) error
	PurgeBefore(ctx context.Context, cutoff time.Time) error
	Health(ctx context.Context) error
	Close() error
}

// Publisher emits signal and breakout records for downstream notification.
type Publisher interface {
	PublishSignal(ctx context.Context, s *models.Signal) error
	PublishBreakout(ctx context.Context, b *models.Breakout) error
	Close() error
}

// NewsProvider looks up upcoming high-impact scheduled events. Used only as
// an optional signal-quality input; failures degrade to "no news".
type NewsProvider interface {
	UpcomingHighImpact(ctx context.Context, within time.Duration) ([]models.NewsEvent, error)
}

// Metrics records operational counters and gauges.
type Metrics interface {
	RecordCandle(source, symbol, timeframe string)
	RecordBreakout(symbol, direction string)
	RecordSignal(symbol, setupType string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
