package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// PerformanceCategory buckets a breakout strength score.
type PerformanceCategory string

const (
	HighProbability   PerformanceCategory = "HIGH_PROBABILITY"
	MediumProbability PerformanceCategory = "MEDIUM_PROBABILITY"
	LowProbability    PerformanceCategory = "LOW_PROBABILITY"
)

// Breakout strength weights. Each term is independently zero-able; the sum is
// clamped to [0,1].
const (
	weightVolume   = 0.30
	weightMomentum = 0.40
	weightNews     = 0.20
	weightTiming   = 0.10
)

// newsCatalystWindowMin is how close a scheduled event must be (in minutes)
// for a breakout without an explicit news reference to count as news-driven.
const newsCatalystWindowMin = 60

// Breakout records price closing beyond a tracked level across sessions.
// Created exactly once per level break; only retest and follow-through fields
// mutate afterward.
type Breakout struct {
	ID      string  `json:"id"`
	Symbol  string  `json:"symbol"`
	Level   *Level  `json:"-"`
	LevelID string  `json:"broken_level_id"`

	OriginSession   SessionName `json:"origin_session"`
	BreakoutSession SessionName `json:"breakout_session"`
	Timestamp       time.Time   `json:"breakout_timestamp"`
	Price           float64     `json:"breakout_price"`
	Direction       Direction   `json:"breakout_direction"`

	VolumeConfirmation bool    `json:"volume_confirmation"`
	VolumeRatio        float64 `json:"volume_ratio"`
	MomentumStrength   float64 `json:"momentum_strength"`

	News          *NewsEvent `json:"news_catalyst,omitempty"`
	TimeToNewsMin int        `json:"time_to_news_minutes"` // -1 when unknown

	RetestOccurred bool      `json:"retest_occurred"`
	RetestAt       time.Time `json:"retest_timestamp,omitempty"`
	RetestPrice    float64   `json:"retest_price,omitempty"`
	RetestHeld     bool      `json:"retest_held"`

	MaxFollowThroughPips int       `json:"max_follow_through_pips"`
	MaxFollowThroughAt   time.Time `json:"max_follow_through_time,omitempty"`

	SignalGenerated bool `json:"signal_generated"`
}

// TechnicallyConfirmed reports volume confirmation plus momentum at or above
// the 0.6 threshold.
func (b *Breakout) TechnicallyConfirmed() bool {
	return b.VolumeConfirmation && b.MomentumStrength >= 0.6
}

// HasNewsCatalyst reports an attached news event or a break within the
// catalyst window of a scheduled one.
func (b *Breakout) HasNewsCatalyst() bool {
	if b.News != nil {
		return true
	}
	return b.TimeToNewsMin >= 0 && b.TimeToNewsMin <= newsCatalystWindowMin
}

// OptimalSessionTiming reports whether the break landed in the early portion
// of its session: London 07-09 UTC, New York 12-14 UTC.
func (b *Breakout) OptimalSessionTiming() bool {
	hour := b.Timestamp.UTC().Hour()
	switch b.BreakoutSession {
	case SessionLondon:
		return hour >= 7 && hour <= 9
	case SessionNewYork:
		return hour >= 12 && hour <= 14
	default:
		return false
	}
}

// Strength derives the composite breakout score. Recomputed on read, never
// stored as ground truth.
func (b *Breakout) Strength() float64 {
	var s float64
	if b.VolumeConfirmation {
		s += weightVolume
	}
	if b.MomentumStrength > 0 {
		m := b.MomentumStrength
		if m > 1 {
			m = 1
		}
		s += m * weightMomentum
	}
	if b.HasNewsCatalyst() {
		s += weightNews
	}
	if b.OptimalSessionTiming() {
		s += weightTiming
	}
	if s > 1 {
		s = 1
	}
	return s
}

// PerformanceCategory buckets Strength at the 0.8 and 0.6 thresholds.
func (b *Breakout) PerformanceCategory() PerformanceCategory {
	s := b.Strength()
	switch {
	case s >= 0.8:
		return HighProbability
	case s >= 0.6:
		return MediumProbability
	default:
		return LowProbability
	}
}

// RecordRetest marks the first return of price to the broken level. held is
// true when price did not re-cross against the breakout direction.
func (b *Breakout) RecordRetest(price float64, at time.Time, held bool) {
	b.RetestOccurred = true
	b.RetestAt = at
	b.RetestPrice = price
	b.RetestHeld = held
}

// UpdateFollowThrough raises the maximum favorable excursion. Monotonically
// non-decreasing.
func (b *Breakout) UpdateFollowThrough(price, pipSize float64, at time.Time) {
	if pipSize <= 0 {
		return
	}
	movement := price - b.Price
	if b.Direction == Short {
		movement = b.Price - price
	}
	pips := int(math.Round(movement / pipSize))
	if pips > b.MaxFollowThroughPips {
		b.MaxFollowThroughPips = pips
		b.MaxFollowThroughAt = at
	}
}

// StillValid reports that the breakout has not been negated by a failed
// retest.
func (b *Breakout) StillValid() bool {
	return !b.RetestOccurred || b.RetestHeld
}

// SetupType derives the canonical setup identifier, e.g.
// ASIA_BREAKOUT_AT_LONDON.
func (b *Breakout) SetupType() string {
	return fmt.Sprintf("%s_BREAKOUT_AT_%s", b.OriginSession, b.BreakoutSession)
}

// SetupDescription renders a short setup summary.
func (b *Breakout) SetupDescription() string {
	var d strings.Builder
	fmt.Fprintf(&d, "%s %s breakout at %s session",
		b.Symbol, strings.ToLower(string(b.Direction)), b.BreakoutSession)
	if b.Level != nil {
		fmt.Fprintf(&d, " (broke %s from %s session)", b.Level.Type, b.OriginSession)
	}
	if b.VolumeConfirmation {
		d.WriteString(" with volume confirmation")
	}
	if b.HasNewsCatalyst() {
		d.WriteString(" near news event")
	}
	return d.String()
}

// Clone returns a copy safe to hand to readers.
func (b *Breakout) Clone() *Breakout {
	cp := *b
	if b.Level != nil {
		cp.Level = b.Level.Clone()
	}
	if b.News != nil {
		n := *b.News
		cp.News = &n
	}
	return &cp
}
