package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"SessionPulse/internal/domain/models"
)

type fakeNews struct {
	events []models.NewsEvent
	err    error
}

func (f *fakeNews) UpcomingHighImpact(_ context.Context, _ time.Duration) ([]models.NewsEvent, error) {
	return f.events, f.err
}

func newDetector(t *testing.T, news *fakeNews) *BreakoutDetector {
	t.Helper()
	if news == nil {
		return NewBreakoutDetector(eurusd(), nil, 2*time.Hour, testLogger(t))
	}
	return NewBreakoutDetector(eurusd(), news, 2*time.Hour, testLogger(t))
}

func asiaHighLevel(at time.Time) *models.Level {
	return models.NewLevel("EURUSD", models.AsiaHigh, 1.0875, "EURUSD|ASIA|2025-03-05", models.SessionAsia, at)
}

func breakAt(hour, min int, volume int64) *BreakEvent {
	ts := time.Date(2025, 3, 5, hour, min, 0, 0, time.UTC)
	c := sessionCandle(models.SessionLondon, hour, min, 1.0870, 1.0885, 1.0868, 1.0883)
	c.Volume = volume
	return &BreakEvent{
		Level:     asiaHighLevel(ts.Add(-time.Hour)),
		Candle:    c,
		Direction: models.Long,
		At:        ts,
	}
}

// warmUp feeds baseline candles so volume and direction windows are full.
func warmUp(d *BreakoutDetector, bullish bool) {
	o, c := 1.0850, 1.0855
	if !bullish {
		o, c = 1.0855, 1.0850
	}
	for i := 0; i < volumeWindow; i++ {
		candle := sessionCandle(models.SessionLondon, 7, i, o, 1.0860, 1.0845, c)
		candle.Volume = 100
		d.Update(candle)
	}
}

func TestOnBreakVolumeConfirmation(t *testing.T) {
	d := newDetector(t, nil)
	warmUp(d, true)

	b := d.OnBreak(context.Background(), breakAt(7, 30, 200))
	if b.VolumeRatio < 1.99 || b.VolumeRatio > 2.01 {
		t.Fatalf("volume ratio = %v", b.VolumeRatio)
	}
	if !b.VolumeConfirmation {
		t.Fatalf("expected volume confirmation at 2x average")
	}

	d2 := newDetector(t, nil)
	warmUp(d2, true)
	weak := d2.OnBreak(context.Background(), breakAt(7, 30, 120))
	if weak.VolumeConfirmation {
		t.Fatalf("1.2x average must not confirm")
	}
}

func TestOnBreakMomentum(t *testing.T) {
	d := newDetector(t, nil)
	warmUp(d, true) // five bullish candles behind a long break

	b := d.OnBreak(context.Background(), breakAt(7, 30, 200))
	// Body 13 pips of a 17-pip range plus full directional consistency.
	if b.MomentumStrength < 0.6 {
		t.Fatalf("momentum = %v, want >= 0.6", b.MomentumStrength)
	}
	if !b.TechnicallyConfirmed() {
		t.Fatalf("expected technical confirmation")
	}

	against := newDetector(t, nil)
	warmUp(against, false) // bearish tape against a long break
	weak := against.OnBreak(context.Background(), breakAt(7, 30, 200))
	if weak.MomentumStrength >= b.MomentumStrength {
		t.Fatalf("counter-trend momentum %v not below %v", weak.MomentumStrength, b.MomentumStrength)
	}
}

func TestOnBreakNewsCatalyst(t *testing.T) {
	at := time.Date(2025, 3, 5, 7, 30, 0, 0, time.UTC)
	news := &fakeNews{events: []models.NewsEvent{
		{Currency: "USD", Title: "NFP", EventTime: at.Add(30 * time.Minute), Impact: models.ImpactHigh},
		{Currency: "EUR", Title: "CPI", EventTime: at.Add(90 * time.Minute), Impact: models.ImpactHigh},
	}}
	d := newDetector(t, news)
	warmUp(d, true)

	b := d.OnBreak(context.Background(), breakAt(7, 30, 200))
	if b.TimeToNewsMin != 30 {
		t.Fatalf("time to news = %d", b.TimeToNewsMin)
	}
	if b.News == nil || b.News.Title != "NFP" {
		t.Fatalf("nearest event not attached: %+v", b.News)
	}
	if !b.HasNewsCatalyst() {
		t.Fatalf("expected news catalyst")
	}
}

func TestOnBreakNewsFailureDegrades(t *testing.T) {
	d := newDetector(t, &fakeNews{err: errors.New("upstream down")})
	warmUp(d, true)

	b := d.OnBreak(context.Background(), breakAt(7, 30, 200))
	if b.News != nil || b.TimeToNewsMin != -1 {
		t.Fatalf("news failure must degrade to no catalyst")
	}
	if b.HasNewsCatalyst() {
		t.Fatalf("no catalyst expected")
	}
}

func TestStrengthComposition(t *testing.T) {
	b := &models.Breakout{
		BreakoutSession:    models.SessionLondon,
		Timestamp:          time.Date(2025, 3, 5, 7, 30, 0, 0, time.UTC),
		VolumeConfirmation: true,
		MomentumStrength:   0.65,
		TimeToNewsMin:      -1,
	}
	// 0.30 volume + 0.26 momentum + 0.10 timing.
	if s := b.Strength(); s < 0.659 || s > 0.661 {
		t.Fatalf("strength = %v, want 0.66", s)
	}
	if b.PerformanceCategory() != models.MediumProbability {
		t.Fatalf("category = %s", b.PerformanceCategory())
	}

	b.News = &models.NewsEvent{Title: "ECB", EventTime: b.Timestamp.Add(20 * time.Minute), Impact: models.ImpactHigh}
	if s := b.Strength(); s < 0.859 || s > 0.861 {
		t.Fatalf("strength with news = %v, want 0.86", s)
	}
	if b.PerformanceCategory() != models.HighProbability {
		t.Fatalf("category with news = %s", b.PerformanceCategory())
	}
}

func TestRetestHeld(t *testing.T) {
	d := newDetector(t, nil)
	warmUp(d, true)
	b := d.OnBreak(context.Background(), breakAt(7, 30, 200))

	// Price dips back to the level and holds above it.
	retest := sessionCandle(models.SessionLondon, 7, 45, 1.0883, 1.0884, 1.0876, 1.0880)
	d.Update(retest)

	if !b.RetestOccurred || !b.RetestHeld {
		t.Fatalf("retest = %v held = %v", b.RetestOccurred, b.RetestHeld)
	}
	if !b.StillValid() {
		t.Fatalf("held retest must keep breakout valid")
	}
	if b.Level.Status != models.LevelRetested || b.Level.RetestCount != 1 {
		t.Fatalf("level after retest = %s/%d", b.Level.Status, b.Level.RetestCount)
	}
	if len(d.ActiveBreakouts()) != 1 {
		t.Fatalf("active breakouts = %d", len(d.ActiveBreakouts()))
	}
}

func TestRetestFailedInvalidates(t *testing.T) {
	d := newDetector(t, nil)
	warmUp(d, true)
	b := d.OnBreak(context.Background(), breakAt(7, 30, 200))

	// Close back below the broken level: the breakout is negated.
	failed := sessionCandle(models.SessionLondon, 7, 45, 1.0883, 1.0884, 1.0862, 1.0865)
	d.Update(failed)

	if !b.RetestOccurred || b.RetestHeld {
		t.Fatalf("retest = %v held = %v", b.RetestOccurred, b.RetestHeld)
	}
	if b.StillValid() {
		t.Fatalf("failed retest must invalidate breakout")
	}
	if b.Level.Status != models.LevelWeakened {
		t.Fatalf("level status = %s", b.Level.Status)
	}
	if len(d.ActiveBreakouts()) != 0 {
		t.Fatalf("invalid breakout still listed")
	}
}

func TestFollowThroughMonotonic(t *testing.T) {
	d := newDetector(t, nil)
	warmUp(d, true)
	b := d.OnBreak(context.Background(), breakAt(7, 30, 200))

	d.Update(sessionCandle(models.SessionLondon, 7, 40, 1.0883, 1.0905, 1.0882, 1.0903))
	if b.MaxFollowThroughPips != 20 {
		t.Fatalf("follow-through = %d, want 20", b.MaxFollowThroughPips)
	}
	// A pullback must not shrink the maximum.
	d.Update(sessionCandle(models.SessionLondon, 7, 50, 1.0903, 1.0904, 1.0888, 1.0890))
	if b.MaxFollowThroughPips != 20 {
		t.Fatalf("follow-through regressed to %d", b.MaxFollowThroughPips)
	}
}
