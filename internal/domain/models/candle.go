package models

import (
	"fmt"
	"time"
)

// Timeframe identifies the candle period.
type Timeframe string

const (
	M1  Timeframe = "M1"
	M5  Timeframe = "M5"
	M30 Timeframe = "M30"
)

// Minutes returns the timeframe length in minutes.
func (tf Timeframe) Minutes() int {
	switch tf {
	case M1:
		return 1
	case M5:
		return 5
	case M30:
		return 30
	default:
		return 0
	}
}

// IsValid returns true if tf is a supported timeframe.
func (tf Timeframe) IsValid() bool {
	switch tf {
	case M1, M5, M30:
		return true
	default:
		return false
	}
}

// DataSource tags where a candle came from.
type DataSource string

const (
	SourceSimulator  DataSource = "SIMULATOR"
	SourceLive       DataSource = "LIVE"
	SourceHistorical DataSource = "HISTORICAL"
)

// VolatilityLevel buckets a candle range.
type VolatilityLevel string

const (
	VolatilityLow     VolatilityLevel = "LOW"
	VolatilityNormal  VolatilityLevel = "NORMAL"
	VolatilityHigh    VolatilityLevel = "HIGH"
	VolatilityExtreme VolatilityLevel = "EXTREME"
)

// VolatilityFor buckets a candle range expressed in pips. Thresholds are in
// pips so the same table holds for 0.0001-pip and 0.01-pip instruments.
func VolatilityFor(rangePips float64) VolatilityLevel {
	switch {
	case rangePips < 5:
		return VolatilityLow
	case rangePips < 20:
		return VolatilityNormal
	case rangePips < 50:
		return VolatilityHigh
	default:
		return VolatilityExtreme
	}
}

// Candle is a single OHLCV record. Immutable once ingested; a candle with an
// already-seen (symbol, timeframe, timestamp) is skipped, never overwritten.
type Candle struct {
	Symbol          string      `json:"symbol" validate:"required,max=10"`
	Timeframe       Timeframe   `json:"timeframe" validate:"required,oneof=M1 M5 M30"`
	Timestamp       time.Time   `json:"timestamp" validate:"required"`
	Open            float64     `json:"open" validate:"gt=0"`
	High            float64     `json:"high" validate:"gt=0"`
	Low             float64     `json:"low" validate:"gt=0"`
	Close           float64     `json:"close" validate:"gt=0"`
	Volume          int64       `json:"volume" validate:"gte=0"`
	SessionName     SessionName `json:"session_name"`
	SessionProgress float64     `json:"session_progress"`
	VWAPSession     float64     `json:"vwap_session,omitempty"`
	VWAPDistPips    int         `json:"vwap_distance_pips,omitempty"`
	Volatility      VolatilityLevel `json:"volatility_level,omitempty"`
	NewsProximityMin int        `json:"news_proximity_minutes,omitempty"`
	SpreadPips      float64     `json:"spread_pips,omitempty"`
	DataSource      DataSource  `json:"data_source"`
}

// Validate checks the OHLC ordering invariant on top of the field tags.
func (c *Candle) Validate() error {
	if c.High < c.Open || c.High < c.Close {
		return fmt.Errorf("%w: high %.5f below open/close", ErrValidation, c.High)
	}
	if c.Low > c.Open || c.Low > c.Close {
		return fmt.Errorf("%w: low %.5f above open/close", ErrValidation, c.Low)
	}
	if c.Low > c.High {
		return fmt.Errorf("%w: low %.5f above high %.5f", ErrValidation, c.Low, c.High)
	}
	if c.Volume < 0 {
		return fmt.Errorf("%w: negative volume %d", ErrValidation, c.Volume)
	}
	return nil
}

// Range returns high minus low.
func (c *Candle) Range() float64 { return c.High - c.Low }

// Body returns the absolute open-to-close distance.
func (c *Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Bullish reports whether the candle closed above its open.
func (c *Candle) Bullish() bool { return c.Close > c.Open }

// Key uniquely identifies a candle within a symbol stream.
func (c *Candle) Key() string {
	return fmt.Sprintf("%s|%s|%d", c.Symbol, c.Timeframe, c.Timestamp.UTC().Unix())
}
