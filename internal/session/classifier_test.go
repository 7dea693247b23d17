package session

import (
	"testing"
	"time"

	"SessionPulse/internal/domain/models"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 3, 5, hour, min, 0, 0, time.UTC) // a Wednesday
}

func TestClassifyTotal(t *testing.T) {
	// Every hour of the day must map to exactly one session.
	for h := 0; h < 24; h++ {
		name, p := Classify(at(h, 0))
		if name == "" {
			t.Fatalf("hour %d unclassified", h)
		}
		if p < 0 || p > 1 {
			t.Fatalf("hour %d progress %v out of range", h, p)
		}
	}
}

func TestClassifyWindows(t *testing.T) {
	cases := []struct {
		hour, min int
		want      models.SessionName
		progress  float64
	}{
		{0, 0, models.SessionAsia, 0},
		{3, 0, models.SessionAsia, 0.5},
		{5, 59, models.SessionAsia, 0},  // checked separately below
		{7, 0, models.SessionLondon, 0},
		{9, 0, models.SessionLondon, 0.5},
		{12, 0, models.SessionNewYork, 0},
		{14, 0, models.SessionNewYork, 0.5},
		{6, 30, models.SessionOverlap, 0.5},
		{11, 0, models.SessionOverlap, 0.5},
		{17, 0, models.SessionOverlap, 0.5},
		{23, 59, models.SessionOverlap, 0.5},
	}
	for _, c := range cases {
		name, p := Classify(at(c.hour, c.min))
		if name != c.want {
			t.Fatalf("%02d:%02d = %s, want %s", c.hour, c.min, name, c.want)
		}
		if c.hour == 5 {
			continue
		}
		if p < c.progress-0.01 || p > c.progress+0.01 {
			t.Fatalf("%02d:%02d progress %v, want %v", c.hour, c.min, p, c.progress)
		}
	}

	// End of Asia approaches 1.
	_, p := Classify(at(5, 59))
	if p < 0.99 {
		t.Fatalf("asia end progress %v, want ~1", p)
	}
}

func TestClassifyConcurrent(t *testing.T) {
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			for h := 0; h < 24; h++ {
				Classify(at(h, 30))
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}

func TestWindow(t *testing.T) {
	start, end, ok := Window(models.SessionLondon, at(10, 0))
	if !ok {
		t.Fatalf("expected window")
	}
	if start.Hour() != 7 || end.Hour() != 11 {
		t.Fatalf("london window %v-%v", start, end)
	}
	if _, _, ok := Window(models.SessionOverlap, at(10, 0)); ok {
		t.Fatalf("overlap must have no window")
	}
}

func TestMarketOpen(t *testing.T) {
	if MarketOpen(time.Date(2025, 3, 8, 10, 0, 0, 0, time.UTC)) { // Saturday
		t.Fatalf("weekend must be closed")
	}
	if MarketOpen(at(18, 0)) {
		t.Fatalf("17-23 UTC pause must be closed")
	}
	if !MarketOpen(at(8, 0)) {
		t.Fatalf("weekday london hours must be open")
	}
}
