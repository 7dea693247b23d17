package models

import (
	"fmt"
	"math"
	"time"
)

// SessionName identifies a recurring UTC trading window.
type SessionName string

const (
	SessionAsia    SessionName = "ASIA"
	SessionLondon  SessionName = "LONDON"
	SessionNewYork SessionName = "NEWYORK"
	// SessionOverlap covers every hour outside the three named windows.
	// Overlap candles are classified but never open a Session record.
	SessionOverlap SessionName = "OVERLAP"
)

// Tracked reports whether a session of this name owns a Session record.
func (n SessionName) Tracked() bool {
	return n == SessionAsia || n == SessionLondon || n == SessionNewYork
}

// SessionQuality buckets how lively a session was.
type SessionQuality string

const (
	QualityQuiet    SessionQuality = "QUIET"
	QualityNormal   SessionQuality = "NORMAL"
	QualityActive   SessionQuality = "ACTIVE"
	QualityVolatile SessionQuality = "VOLATILE"
)

// Direction of a breakout or signal.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Session is one trading window of one instrument on one calendar date.
// Created when the window's first candle arrives, finalized when it closes.
type Session struct {
	Symbol    string      `json:"symbol"`
	Name      SessionName `json:"session_name"`
	Date      time.Time   `json:"session_date"`
	Start     time.Time   `json:"session_start"`
	End       time.Time   `json:"session_end"`
	Open      float64     `json:"session_open"`
	High      float64     `json:"session_high"`
	Low       float64     `json:"session_low"`
	Close     float64     `json:"session_close"`

	RangeSizePips   int            `json:"range_size_pips"`
	VolumeTotal     int64          `json:"volume_total"`
	VolatilityScore float64        `json:"volatility_score"`
	Quality         SessionQuality `json:"session_quality"`

	BreakoutOccurred  bool      `json:"breakout_occurred"`
	BreakoutDirection Direction `json:"breakout_direction,omitempty"`

	VWAP        float64 `json:"vwap_price,omitempty"`
	Pivot       float64 `json:"pivot_point,omitempty"`
	Support1    float64 `json:"support_1,omitempty"`
	Resistance1 float64 `json:"resistance_1,omitempty"`

	Finalized bool `json:"finalized"`

	// VWAP accumulators, maintained while the session is open.
	vwapPriceVolume float64
	vwapVolume      float64
}

// Key uniquely identifies a session record per (symbol, name, date).
func (s *Session) Key() string {
	return fmt.Sprintf("%s|%s|%s", s.Symbol, s.Name, s.Date.UTC().Format("2006-01-02"))
}

// ApplyCandle folds one candle into the running OHLCV. No-op once finalized.
func (s *Session) ApplyCandle(c *Candle) {
	if s.Finalized {
		return
	}
	if s.Open == 0 {
		s.Open = c.Open
		s.High = c.High
		s.Low = c.Low
	}
	if c.High > s.High {
		s.High = c.High
	}
	if s.Low == 0 || c.Low < s.Low {
		s.Low = c.Low
	}
	s.Close = c.Close
	s.VolumeTotal += c.Volume
	typical := (c.High + c.Low + c.Close) / 3
	vol := float64(c.Volume)
	if vol <= 0 {
		vol = 1
	}
	s.vwapPriceVolume += typical * vol
	s.vwapVolume += vol
	if s.vwapVolume > 0 {
		s.VWAP = s.vwapPriceVolume / s.vwapVolume
	}
}

// Finalize locks the session and derives range, pivot family, volatility
// score, and quality. pipSize converts price distance to pips.
func (s *Session) Finalize(pipSize float64) {
	if s.Finalized || pipSize <= 0 {
		s.Finalized = true
		return
	}
	s.RangeSizePips = int(math.Round((s.High - s.Low) / pipSize))
	s.Pivot = (s.High + s.Low + s.Close) / 3
	s.Support1 = 2*s.Pivot - s.High
	s.Resistance1 = 2*s.Pivot - s.Low

	// Volatility score: 0 at no range, 1 at 100+ pips.
	score := float64(s.RangeSizePips) / 100
	if score > 1 {
		score = 1
	}
	s.VolatilityScore = score

	switch {
	case s.RangeSizePips < 15:
		s.Quality = QualityQuiet
	case s.RangeSizePips < 40:
		s.Quality = QualityNormal
	case s.RangeSizePips < 80:
		s.Quality = QualityActive
	default:
		s.Quality = QualityVolatile
	}
	s.Finalized = true
}

// Midpoint returns the middle of the session range.
func (s *Session) Midpoint() float64 { return (s.High + s.Low) / 2 }

// HasValidRange reports whether the range is wide enough to be worth breaking
// but not already exhausted.
func (s *Session) HasValidRange() bool {
	return s.RangeSizePips >= 15 && s.RangeSizePips <= 100
}
