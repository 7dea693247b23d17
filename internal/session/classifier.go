// Package session maps UTC instants to trading sessions.
//
// Canonical session table (single source of truth for the whole module):
//
//	ASIA     00:00-06:00 UTC
//	LONDON   07:00-11:00 UTC
//	NEWYORK  12:00-16:00 UTC
//	OVERLAP  every other hour (progress fixed at 0.5 by convention)
package session

import (
	"time"

	"SessionPulse/internal/domain/models"
)

type window struct {
	name      models.SessionName
	startHour int
	endHour   int // exclusive
}

var table = []window{
	{models.SessionAsia, 0, 6},
	{models.SessionLondon, 7, 11},
	{models.SessionNewYork, 12, 16},
}

// Classify maps an instant to its session name and progress fraction in
// [0,1]. Pure and total: every hour of the day maps to exactly one session.
func Classify(t time.Time) (models.SessionName, float64) {
	u := t.UTC()
	totalMin := float64(u.Hour()*60 + u.Minute())
	for _, w := range table {
		if u.Hour() >= w.startHour && u.Hour() < w.endHour {
			length := float64((w.endHour - w.startHour) * 60)
			p := (totalMin - float64(w.startHour*60)) / length
			if p < 0 {
				p = 0
			}
			if p > 1 {
				p = 1
			}
			return w.name, p
		}
	}
	return models.SessionOverlap, 0.5
}

// Window returns the UTC start and end instants of a named session on the
// given date. ok is false for OVERLAP, which has no single window.
func Window(name models.SessionName, date time.Time) (start, end time.Time, ok bool) {
	d := date.UTC()
	midnight := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	for _, w := range table {
		if w.name == name {
			return midnight.Add(time.Duration(w.startHour) * time.Hour),
				midnight.Add(time.Duration(w.endHour) * time.Hour), true
		}
	}
	return time.Time{}, time.Time{}, false
}

// MarketOpen reports whether trading is simulated as open: weekdays,
// excluding the 17:00-23:00 UTC pause between the New York close and the
// Asia open.
func MarketOpen(t time.Time) bool {
	u := t.UTC()
	switch u.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := u.Hour()
	return !(h >= 17 && h < 23)
}

// VolatilityMultiplier returns the relative volatility of a session, used by
// the simulated feed.
func VolatilityMultiplier(name models.SessionName) float64 {
	switch name {
	case models.SessionAsia:
		return 0.7
	case models.SessionLondon:
		return 1.2
	case models.SessionNewYork:
		return 1.0
	default:
		return 0.9
	}
}
