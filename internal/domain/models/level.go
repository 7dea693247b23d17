package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// LevelType tags the kind of intraday price level.
type LevelType string

const (
	AsiaHigh    LevelType = "ASIA_HIGH"
	AsiaLow     LevelType = "ASIA_LOW"
	LondonHigh  LevelType = "LONDON_HIGH"
	LondonLow   LevelType = "LONDON_LOW"
	NYHigh      LevelType = "NY_HIGH"
	NYLow       LevelType = "NY_LOW"
	VWAPAsia    LevelType = "VWAP_ASIA"
	VWAPLondon  LevelType = "VWAP_LONDON"
	VWAPNY      LevelType = "VWAP_NY"
	PivotDaily  LevelType = "PIVOT_DAILY"
	RoundNumber LevelType = "ROUND_NUMBER"
	PrevDayHigh LevelType = "PREVIOUS_DAY_HIGH"
	PrevDayLow  LevelType = "PREVIOUS_DAY_LOW"
	WeeklyHigh  LevelType = "WEEKLY_HIGH"
	WeeklyLow   LevelType = "WEEKLY_LOW"
)

// BreakDirection returns the direction implied by the level type and whether
// the type is directional at all. High-type levels break upward, low-type
// downward; VWAP, pivot, and round levels break in whichever direction price
// crosses them.
func (t LevelType) BreakDirection() (Direction, bool) {
	switch t {
	case AsiaHigh, LondonHigh, NYHigh, PrevDayHigh, WeeklyHigh:
		return Long, true
	case AsiaLow, LondonLow, NYLow, PrevDayLow, WeeklyLow:
		return Short, true
	default:
		return "", false
	}
}

// LevelStatus is the level lifecycle state.
//
//	ACTIVE -> BROKEN -> RETESTED -> {WEAKENED | INACTIVE}
//	ACTIVE -> RETESTED (touch without break)
type LevelStatus string

const (
	LevelActive   LevelStatus = "ACTIVE"
	LevelBroken   LevelStatus = "BROKEN"
	LevelRetested LevelStatus = "RETESTED"
	LevelWeakened LevelStatus = "WEAKENED"
	LevelInactive LevelStatus = "INACTIVE"
)

// Level is a significant intraday price with touch and break tracking.
// At most one level exists per (symbol, type, owning session).
type Level struct {
	ID              string      `json:"id"`
	Symbol          string      `json:"symbol"`
	Type            LevelType   `json:"level_type"`
	Price           float64     `json:"price"`
	SessionKey      string      `json:"session_key"`
	OriginSession   SessionName `json:"origin_session"`
	EstablishedAt   time.Time   `json:"establishment_time"`
	ImportanceScore float64     `json:"importance_score"`
	TouchCount      int         `json:"touch_count"`
	MaxRejectionPips int        `json:"max_rejection_pips"`
	VolumeAtEstablishment int64 `json:"volume_at_establishment"`
	Status          LevelStatus `json:"status"`

	BrokenAt        time.Time   `json:"broken_at,omitempty"`
	BrokenBySession SessionName `json:"broken_by_session,omitempty"`
	BrokenPrice     float64     `json:"broken_price,omitempty"`

	RetestCount  int       `json:"retest_count"`
	LastRetestAt time.Time `json:"last_retest_time,omitempty"`
}

// LevelID builds the canonical identity for a (symbol, type, session) triple.
func LevelID(symbol string, t LevelType, sessionKey string) string {
	return fmt.Sprintf("%s|%s|%s", symbol, t, sessionKey)
}

// NewLevel creates an ACTIVE level with the default importance and one touch.
func NewLevel(symbol string, t LevelType, price float64, sessionKey string, origin SessionName, at time.Time) *Level {
	return &Level{
		ID:              LevelID(symbol, t, sessionKey),
		Symbol:          symbol,
		Type:            t,
		Price:           price,
		SessionKey:      sessionKey,
		OriginSession:   origin,
		EstablishedAt:   at,
		ImportanceScore: 0.5,
		TouchCount:      1,
		Status:          LevelActive,
	}
}

// Strength derives the level's reliability score: base importance plus a
// capped touch bonus plus a capped rejection bonus, clamped to [0,1].
func (l *Level) Strength() float64 {
	testBonus := float64(l.TouchCount) * 0.05
	if testBonus > 0.2 {
		testBonus = 0.2
	}
	rejectionBonus := float64(l.MaxRejectionPips) * 0.001
	if rejectionBonus > 0.1 {
		rejectionBonus = 0.1
	}
	s := l.ImportanceScore + testBonus + rejectionBonus
	if s > 1 {
		s = 1
	}
	if s < 0 {
		s = 0
	}
	return s
}

// IsPriceNear reports whether price is within tolerancePips of the level.
func (l *Level) IsPriceNear(price, pipSize float64, tolerancePips int) bool {
	if pipSize <= 0 {
		return false
	}
	diff := price - l.Price
	if diff < 0 {
		diff = -diff
	}
	return diff <= float64(tolerancePips)*pipSize
}

// DistancePips returns the absolute distance from price to the level in pips.
func (l *Level) DistancePips(price, pipSize float64) int {
	if pipSize <= 0 {
		return 0
	}
	diff := price - l.Price
	if diff < 0 {
		diff = -diff
	}
	return int(math.Round(diff / pipSize))
}

// RecordTouch increments the touch count and raises the max rejection if the
// wick pushed further beyond the level than before.
func (l *Level) RecordTouch(rejectionPips int) {
	l.TouchCount++
	if rejectionPips > l.MaxRejectionPips {
		l.MaxRejectionPips = rejectionPips
	}
}

// MarkBroken transitions ACTIVE -> BROKEN exactly once; further calls return
// false without touching state.
func (l *Level) MarkBroken(price float64, session SessionName, at time.Time) bool {
	if l.Status != LevelActive {
		return false
	}
	l.Status = LevelBroken
	l.BrokenPrice = price
	l.BrokenBySession = session
	l.BrokenAt = at
	return true
}

// AddRetest records a retest; allowed from ACTIVE or BROKEN.
func (l *Level) AddRetest(at time.Time) {
	if l.Status != LevelActive && l.Status != LevelBroken && l.Status != LevelRetested {
		return
	}
	l.RetestCount++
	l.LastRetestAt = at
	l.Status = LevelRetested
}

// Weaken transitions a RETESTED level to WEAKENED.
func (l *Level) Weaken() {
	if l.Status == LevelRetested {
		l.Status = LevelWeakened
	}
}

// Deactivate transitions a RETESTED or WEAKENED level to INACTIVE.
func (l *Level) Deactivate() {
	if l.Status == LevelRetested || l.Status == LevelWeakened {
		l.Status = LevelInactive
	}
}

// ContextDescription renders a short human-readable summary of the level.
func (l *Level) ContextDescription() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s level at %.5f (%d touches, importance: %.2f)",
		strings.ReplaceAll(string(l.Type), "_", " "), l.Price, l.TouchCount, l.ImportanceScore)
	if l.RetestCount > 0 {
		fmt.Fprintf(&b, ", retested %d times", l.RetestCount)
	}
	if l.Status == LevelBroken {
		fmt.Fprintf(&b, ", BROKEN by %s session", l.BrokenBySession)
	}
	return b.String()
}

// Clone returns a copy safe to hand to readers.
func (l *Level) Clone() *Level {
	cp := *l
	return &cp
}
