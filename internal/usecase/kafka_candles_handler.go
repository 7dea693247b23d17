package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"SessionPulse/internal/domain/models"
	domrepo "SessionPulse/internal/domain/repository"
	pkgkafka "SessionPulse/pkg/kafka"
)

// KafkaCandlesHandler consumes M1 candles from a Kafka topic and feeds them
// into the engine. Lets an external producer (another collector instance, a
// replay job) drive the pipeline without a broker connection.
type KafkaCandlesHandler struct {
	topic   string
	engine  *Engine
	metrics domrepo.Metrics
}

func NewKafkaCandlesHandler(topic string, engine *Engine, metrics domrepo.Metrics) *KafkaCandlesHandler {
	return &KafkaCandlesHandler{topic: topic, engine: engine, metrics: metrics}
}

func (h *KafkaCandlesHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, t, o, h, l, c, v}; t in unix seconds or ms
func (h *KafkaCandlesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		O      float64 `json:"o"`
		H      float64 `json:"h"`
		L      float64 `json:"l"`
		C      float64 `json:"c"`
		V      int64   `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		if h.metrics != nil {
			h.metrics.RecordError("consumer_unmarshal")
		}
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	if h.metrics != nil {
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())
	}

	err := h.engine.Ingest(ctx, &models.Candle{
		Symbol:     m.Symbol,
		Timeframe:  models.M1,
		Timestamp:  time.Unix(m.T, 0).UTC(),
		Open:       m.O,
		High:       m.H,
		Low:        m.L,
		Close:      m.C,
		Volume:     m.V,
		DataSource: models.SourceLive,
	})
	// replays redeliver committed offsets; duplicates are expected there
	if err != nil && !errors.Is(err, models.ErrDuplicate) {
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaCandlesHandler)(nil)
