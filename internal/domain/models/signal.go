package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// SetupCategory classifies the kind of trade setup.
type SetupCategory string

const (
	SetupBreakout     SetupCategory = "BREAKOUT"
	SetupRetest       SetupCategory = "RETEST"
	SetupBounce       SetupCategory = "BOUNCE"
	SetupContinuation SetupCategory = "CONTINUATION"
)

// SignalStatus is the signal lifecycle state.
//
//	ACTIVE -> TRIGGERED -> {COMPLETED | EXPIRED | CANCELLED}
//
// Transitions beyond ACTIVE are driven by external price-following logic.
type SignalStatus string

const (
	SignalActive    SignalStatus = "ACTIVE"
	SignalTriggered SignalStatus = "TRIGGERED"
	SignalCompleted SignalStatus = "COMPLETED"
	SignalExpired   SignalStatus = "EXPIRED"
	SignalCancelled SignalStatus = "CANCELLED"
)

// Canonical factor map keys. Values are numbers, strings, or bools only —
// no nested structures.
const (
	FactorVolumeConfirmation = "volume_confirmation"
	FactorMomentumStrength   = "momentum_strength"
	FactorBreakoutStrength   = "breakout_strength"
	FactorLevelStrength      = "level_strength"
	FactorLevelTouches       = "level_touches"
	FactorSessionTiming      = "session_timing_optimal"
	FactorNewsWithinMinutes  = "news_within_minutes"
	FactorRetestHeld         = "retest_held"
	FactorRangeSizePips      = "range_size_pips"
)

// Signal is a classified trading setup synthesized from a scored breakout.
type Signal struct {
	ID        string        `json:"id"`
	Symbol    string        `json:"symbol"`
	SetupType string        `json:"setup_type"`
	Category  SetupCategory `json:"setup_category"`
	Direction Direction     `json:"signal_direction"`

	Entry   float64 `json:"entry_price"`
	Stop    float64 `json:"stop_loss"`
	Target1 float64 `json:"take_profit_1"`
	Target2 float64 `json:"take_profit_2,omitempty"`

	RiskRewardRatio float64 `json:"risk_reward_ratio"`

	PrimarySession SessionName `json:"primary_session"`
	OriginSession  SessionName `json:"origin_session"`
	SessionContext string      `json:"session_context,omitempty"`

	Level    *Level    `json:"-"`
	Breakout *Breakout `json:"-"`
	LevelID  string    `json:"related_level_id,omitempty"`

	NewsContext      string          `json:"news_context,omitempty"`
	MarketVolatility VolatilityLevel `json:"market_volatility,omitempty"`

	ConfidenceScore    float64 `json:"confidence_score"`
	ProbabilitySuccess float64 `json:"probability_success"`

	KeyFactors  map[string]any `json:"key_factors,omitempty"`
	RiskFactors map[string]any `json:"risk_factors,omitempty"`
	Explanation string         `json:"explanation"`

	Status    SignalStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// StopDistancePips returns the entry-to-stop distance in pips.
func (s *Signal) StopDistancePips(pipSize float64) int {
	return pipDistance(s.Entry, s.Stop, pipSize)
}

// Target1DistancePips returns the entry-to-target1 distance in pips.
func (s *Signal) Target1DistancePips(pipSize float64) int {
	return pipDistance(s.Entry, s.Target1, pipSize)
}

func pipDistance(a, b, pipSize float64) int {
	if pipSize <= 0 {
		return 0
	}
	d := a - b
	if d < 0 {
		d = -d
	}
	return int(math.Round(d / pipSize))
}

// HighQuality reports confidence >= 0.8 and risk-reward >= 1.5.
func (s *Signal) HighQuality() bool {
	return s.ConfidenceScore >= 0.8 && s.RiskRewardRatio >= 1.5
}

// HasSecondTarget reports whether target2 is set.
func (s *Signal) HasSecondTarget() bool { return s.Target2 > 0 }

// UpdateStatus applies a lifecycle transition. COMPLETED, EXPIRED, and
// CANCELLED are terminal.
func (s *Signal) UpdateStatus(next SignalStatus) error {
	switch s.Status {
	case SignalActive:
		switch next {
		case SignalTriggered, SignalExpired, SignalCancelled:
			s.Status = next
			return nil
		}
	case SignalTriggered:
		switch next {
		case SignalCompleted, SignalExpired, SignalCancelled:
			s.Status = next
			return nil
		}
	case SignalCompleted, SignalExpired, SignalCancelled:
		// terminal
	}
	return fmt.Errorf("%w: signal status %s -> %s", ErrInvariant, s.Status, next)
}

// AddKeyFactor records a success factor under a canonical key.
func (s *Signal) AddKeyFactor(key string, value any) {
	if s.KeyFactors == nil {
		s.KeyFactors = make(map[string]any)
	}
	s.KeyFactors[key] = value
}

// AddRiskFactor records a risk factor under a canonical key.
func (s *Signal) AddRiskFactor(key string, value any) {
	if s.RiskFactors == nil {
		s.RiskFactors = make(map[string]any)
	}
	s.RiskFactors[key] = value
}

// SignalID derives a stable tracking identifier.
func (s *Signal) SignalID() string {
	return fmt.Sprintf("%s_%s_%s",
		s.Symbol,
		strings.ReplaceAll(s.SetupType, "_", ""),
		s.CreatedAt.UTC().Format("20060102_150405"))
}

// Clone returns a copy safe to hand to readers. Factor maps are shallow
// copied; values are scalars by contract.
func (s *Signal) Clone() *Signal {
	cp := *s
	if s.Level != nil {
		cp.Level = s.Level.Clone()
	}
	if s.Breakout != nil {
		cp.Breakout = s.Breakout.Clone()
	}
	if s.KeyFactors != nil {
		cp.KeyFactors = make(map[string]any, len(s.KeyFactors))
		for k, v := range s.KeyFactors {
			cp.KeyFactors[k] = v
		}
	}
	if s.RiskFactors != nil {
		cp.RiskFactors = make(map[string]any, len(s.RiskFactors))
		for k, v := range s.RiskFactors {
			cp.RiskFactors[k] = v
		}
	}
	return &cp
}
