package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	candlesTotal   *prometheus.CounterVec
	breakoutsTotal *prometheus.CounterVec
	signalsTotal   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		candlesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionpulse_candles_ingested_total",
				Help: "Total number of candles ingested",
			},
			[]string{"source", "symbol", "timeframe"},
		),
		breakoutsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionpulse_breakouts_total",
				Help: "Total number of level breakouts detected",
			},
			[]string{"symbol", "direction"},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionpulse_signals_total",
				Help: "Total number of trading signals generated",
			},
			[]string{"symbol", "setup_type"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sessionpulse_last_price",
				Help: "Last recorded close price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordCandle records a candle ingested from a source.
func (r *Recorder) RecordCandle(source, symbol, timeframe string) {
	r.candlesTotal.WithLabelValues(source, symbol, timeframe).Inc()
}

// RecordBreakout records a detected breakout.
func (r *Recorder) RecordBreakout(symbol, direction string) {
	r.breakoutsTotal.WithLabelValues(symbol, direction).Inc()
}

// RecordSignal records a generated signal.
func (r *Recorder) RecordSignal(symbol, setupType string) {
	r.signalsTotal.WithLabelValues(symbol, setupType).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
