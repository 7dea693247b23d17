package models

import "time"

// NewsImpact classifies a scheduled economic event.
type NewsImpact string

const (
	ImpactLow    NewsImpact = "LOW"
	ImpactMedium NewsImpact = "MEDIUM"
	ImpactHigh   NewsImpact = "HIGH"
)

// NewsEvent is an upcoming scheduled economic release, consumed only as an
// optional signal-quality input.
type NewsEvent struct {
	Currency  string     `json:"currency"`
	Title     string     `json:"title,omitempty"`
	EventTime time.Time  `json:"event_time"`
	Impact    NewsImpact `json:"impact_level"`
}

// MinutesUntil returns whole minutes from now until the event, negative if
// the event is in the past.
func (e *NewsEvent) MinutesUntil(now time.Time) int {
	return int(e.EventTime.Sub(now).Minutes())
}
