package usecase

import (
	"testing"
	"time"

	"SessionPulse/internal/domain/models"
	"SessionPulse/pkg/config"
	"SessionPulse/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func eurusd() config.Instrument {
	return config.Instrument{
		Symbol:             "EURUSD",
		BasePrice:          1.0850,
		DailyRangePips:     80,
		PipSize:            0.0001,
		BreakThresholdPips: 8,
		TouchTolerancePips: 3,
	}
}

func sessionCandle(name models.SessionName, hour, min int, o, h, l, c float64) *models.Candle {
	return &models.Candle{
		Symbol:      "EURUSD",
		Timeframe:   models.M1,
		Timestamp:   time.Date(2025, 3, 5, hour, min, 0, 0, time.UTC),
		Open:        o,
		High:        h,
		Low:         l,
		Close:       c,
		Volume:      100,
		SessionName: name,
		DataSource:  models.SourceSimulator,
	}
}

// feedAsia runs an Asia session ending with high 1.0875 and low 1.0840, then
// rolls into London so the Asia levels get established.
func feedAsia(t *testing.T, tr *LevelTracker) []*models.Level {
	t.Helper()
	tr.OnCandle(sessionCandle(models.SessionAsia, 1, 0, 1.0850, 1.0860, 1.0845, 1.0858))
	tr.OnCandle(sessionCandle(models.SessionAsia, 3, 0, 1.0858, 1.0875, 1.0852, 1.0870))
	tr.OnCandle(sessionCandle(models.SessionAsia, 5, 0, 1.0870, 1.0872, 1.0840, 1.0855))

	up := tr.OnCandle(sessionCandle(models.SessionOverlap, 6, 30, 1.0855, 1.0860, 1.0853, 1.0858))
	if len(up.FinalizedSessions) != 1 {
		t.Fatalf("expected 1 finalized session, got %d", len(up.FinalizedSessions))
	}
	s := up.FinalizedSessions[0]
	if s.Name != models.SessionAsia || !s.Finalized {
		t.Fatalf("finalized session = %+v", s)
	}
	if s.High != 1.0875 || s.Low != 1.0840 {
		t.Fatalf("session extremes = %v/%v", s.High, s.Low)
	}
	if s.RangeSizePips != 35 {
		t.Fatalf("range pips = %d", s.RangeSizePips)
	}
	return up.NewLevels
}

func TestSessionRolloverEstablishesLevels(t *testing.T) {
	tr := NewLevelTracker(eurusd(), testLogger(t))
	levels := feedAsia(t, tr)

	byType := map[models.LevelType]*models.Level{}
	for _, l := range levels {
		byType[l.Type] = l
	}
	high, ok := byType[models.AsiaHigh]
	if !ok || high.Price != 1.0875 {
		t.Fatalf("asia high = %+v", high)
	}
	low, ok := byType[models.AsiaLow]
	if !ok || low.Price != 1.0840 {
		t.Fatalf("asia low = %+v", low)
	}
	if _, ok := byType[models.VWAPAsia]; !ok {
		t.Fatalf("missing asia vwap level")
	}
	if high.Status != models.LevelActive || high.TouchCount != 1 {
		t.Fatalf("new level state = %s/%d", high.Status, high.TouchCount)
	}

	// Re-feeding the same window must not duplicate identities.
	n := len(tr.ActiveLevels())
	tr.OnCandle(sessionCandle(models.SessionOverlap, 6, 31, 1.0858, 1.0859, 1.0856, 1.0857))
	if len(tr.ActiveLevels()) != n {
		t.Fatalf("level count changed on idle candle")
	}
}

func TestTouchRecordedInsideTolerance(t *testing.T) {
	tr := NewLevelTracker(eurusd(), testLogger(t))
	feedAsia(t, tr)

	// Wick to 1.0877 (2 pips past the 1.0875 high), close back below.
	tr.OnCandle(sessionCandle(models.SessionLondon, 7, 5, 1.0860, 1.0877, 1.0858, 1.0865))

	var asiaHigh *models.Level
	for _, l := range tr.ActiveLevels() {
		if l.Type == models.AsiaHigh {
			asiaHigh = l
		}
	}
	if asiaHigh == nil {
		t.Fatalf("asia high missing")
	}
	if asiaHigh.TouchCount != 2 {
		t.Fatalf("touch count = %d", asiaHigh.TouchCount)
	}
	if asiaHigh.MaxRejectionPips != 2 {
		t.Fatalf("rejection pips = %d", asiaHigh.MaxRejectionPips)
	}
	if asiaHigh.Status != models.LevelActive {
		t.Fatalf("status = %s", asiaHigh.Status)
	}
}

func TestBreakDetectedBeyondThreshold(t *testing.T) {
	tr := NewLevelTracker(eurusd(), testLogger(t))
	feedAsia(t, tr)

	// Close at 1.0883: exactly 8 pips above the 1.0875 Asia high. The same
	// surge carries price through the Asia VWAP, so that breaks too.
	up := tr.OnCandle(sessionCandle(models.SessionLondon, 7, 30, 1.0870, 1.0885, 1.0868, 1.0883))

	var ev *BreakEvent
	for _, b := range up.Breaks {
		if b.Level.Type == models.AsiaHigh {
			ev = b
		}
	}
	if ev == nil {
		t.Fatalf("asia high break not detected, got %d breaks", len(up.Breaks))
	}
	if ev.Direction != models.Long {
		t.Fatalf("direction = %s", ev.Direction)
	}
	if ev.Level.Status != models.LevelBroken {
		t.Fatalf("level status = %s", ev.Level.Status)
	}
	if ev.Level.BrokenBySession != models.SessionLondon {
		t.Fatalf("broken by = %s", ev.Level.BrokenBySession)
	}

	// The same level must not break twice.
	up = tr.OnCandle(sessionCandle(models.SessionLondon, 7, 31, 1.0883, 1.0890, 1.0882, 1.0888))
	for _, b := range up.Breaks {
		if b.Level.Type == models.AsiaHigh {
			t.Fatalf("asia high broke twice")
		}
	}
}

func TestStaircaseAdvanceBreaks(t *testing.T) {
	tr := NewLevelTracker(eurusd(), testLogger(t))
	feedAsia(t, tr)

	// 5 pips above the high: short of the threshold, the level holds.
	up := tr.OnCandle(sessionCandle(models.SessionLondon, 7, 30, 1.0874, 1.0881, 1.0873, 1.0880))
	for _, b := range up.Breaks {
		if b.Level.Type == models.AsiaHigh {
			t.Fatalf("asia high broke below threshold")
		}
	}

	// The next candle opens already beyond the level and closes 10 pips
	// past it. The close alone decides the break.
	up = tr.OnCandle(sessionCandle(models.SessionLondon, 7, 31, 1.0880, 1.0886, 1.0879, 1.0885))
	var ev *BreakEvent
	for _, b := range up.Breaks {
		if b.Level.Type == models.AsiaHigh {
			ev = b
		}
	}
	if ev == nil {
		t.Fatalf("gradual advance through the level did not break it")
	}
	if ev.Direction != models.Long || ev.Level.Status != models.LevelBroken {
		t.Fatalf("break = %s/%s", ev.Direction, ev.Level.Status)
	}
}

func TestUntouchedPivotDoesNotBreak(t *testing.T) {
	tr := NewLevelTracker(eurusd(), testLogger(t))
	tr.OnCandle(sessionCandle(models.SessionAsia, 1, 0, 1.0850, 1.0880, 1.0830, 1.0860))

	// Day rollover establishes the daily pivot near 1.0857 while price gaps
	// far above it and stays there.
	next := sessionCandle(models.SessionAsia, 1, 0, 1.0950, 1.0960, 1.0945, 1.0955)
	next.Timestamp = next.Timestamp.Add(24 * time.Hour)
	up := tr.OnCandle(next)
	for _, b := range up.Breaks {
		if b.Level.Type == models.PivotDaily {
			t.Fatalf("pivot broke without price trading through it")
		}
	}

	// Once price trades down through the pivot and closes well below,
	// the break registers.
	through := sessionCandle(models.SessionAsia, 1, 1, 1.0955, 1.0956, 1.0835, 1.0840)
	through.Timestamp = next.Timestamp.Add(time.Minute)
	up = tr.OnCandle(through)
	var found bool
	for _, b := range up.Breaks {
		if b.Level.Type == models.PivotDaily {
			found = true
			if b.Direction != models.Short {
				t.Fatalf("pivot break direction = %s", b.Direction)
			}
		}
	}
	if !found {
		t.Fatalf("traded-through pivot did not break")
	}
}

func TestBreakBelowThresholdIgnored(t *testing.T) {
	tr := NewLevelTracker(eurusd(), testLogger(t))
	feedAsia(t, tr)

	// Close 7 pips above the high: one short of the threshold.
	up := tr.OnCandle(sessionCandle(models.SessionLondon, 7, 30, 1.0870, 1.0884, 1.0868, 1.0882))
	for _, b := range up.Breaks {
		if b.Level.Type == models.AsiaHigh {
			t.Fatalf("asia high broke below threshold")
		}
	}
}

func TestAsiaLowBreaksShort(t *testing.T) {
	tr := NewLevelTracker(eurusd(), testLogger(t))
	feedAsia(t, tr)

	up := tr.OnCandle(sessionCandle(models.SessionLondon, 8, 0, 1.0845, 1.0846, 1.0828, 1.0830))
	var found bool
	for _, b := range up.Breaks {
		if b.Level.Type == models.AsiaLow {
			found = true
			if b.Direction != models.Short {
				t.Fatalf("direction = %s", b.Direction)
			}
		}
	}
	if !found {
		t.Fatalf("asia low break not detected")
	}
}

func TestDayRolloverEstablishesPrevDayLevels(t *testing.T) {
	tr := NewLevelTracker(eurusd(), testLogger(t))
	tr.OnCandle(sessionCandle(models.SessionAsia, 1, 0, 1.0850, 1.0880, 1.0830, 1.0860))

	next := sessionCandle(models.SessionAsia, 1, 0, 1.0860, 1.0865, 1.0855, 1.0862)
	next.Timestamp = next.Timestamp.Add(24 * time.Hour)
	up := tr.OnCandle(next)

	byType := map[models.LevelType]float64{}
	for _, l := range up.NewLevels {
		byType[l.Type] = l.Price
	}
	if byType[models.PrevDayHigh] != 1.0880 || byType[models.PrevDayLow] != 1.0830 {
		t.Fatalf("prev day levels = %v", byType)
	}
	wantPivot := (1.0880 + 1.0830 + 1.0860) / 3
	if p := byType[models.PivotDaily]; p < wantPivot-1e-9 || p > wantPivot+1e-9 {
		t.Fatalf("pivot = %v, want %v", p, wantPivot)
	}
}
