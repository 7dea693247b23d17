package usecase

import (
	"fmt"
	"sort"

	"SessionPulse/internal/domain/models"
)

// AggregateCandles folds a window of lower-timeframe candles into one candle
// of the target timeframe. Input candles must share a symbol; they are sorted
// by timestamp here, so callers may pass them in arrival order.
//
// The result carries the open of the first candle, the close of the last, the
// extremes across the window, the summed volume, and the session fields of
// the last candle. pipSize converts the aggregated range to a volatility
// bucket.
func AggregateCandles(candles []*models.Candle, target models.Timeframe, pipSize float64) (*models.Candle, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: empty aggregation window for %s", models.ErrGap, target)
	}
	if !target.IsValid() {
		return nil, fmt.Errorf("%w: unknown timeframe %q", models.ErrValidation, target)
	}

	sorted := make([]*models.Candle, len(candles))
	copy(sorted, candles)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	first := sorted[0]
	last := sorted[len(sorted)-1]

	out := &models.Candle{
		Symbol:    first.Symbol,
		Timeframe: target,
		Timestamp: first.Timestamp,
		Open:      first.Open,
		High:      first.High,
		Low:       first.Low,
		Close:     last.Close,

		SessionName:     last.SessionName,
		SessionProgress: last.SessionProgress,
		VWAPSession:     last.VWAPSession,
		SpreadPips:      last.SpreadPips,
		DataSource:      first.DataSource,
	}
	for _, c := range sorted {
		if c.Symbol != first.Symbol {
			return nil, fmt.Errorf("%w: mixed symbols %s and %s in window", models.ErrValidation, first.Symbol, c.Symbol)
		}
		if c.High > out.High {
			out.High = c.High
		}
		if c.Low < out.Low {
			out.Low = c.Low
		}
		out.Volume += c.Volume
	}

	if pipSize > 0 {
		out.Volatility = models.VolatilityFor(out.Range() / pipSize)
	}
	return out, nil
}
