package usecase

import (
	"fmt"
	"math"
	"time"

	"SessionPulse/internal/domain/models"
	"SessionPulse/internal/session"
	"SessionPulse/pkg/config"
	"SessionPulse/pkg/logger"
)

// BreakEvent is emitted when a candle closes beyond an active level by at
// least the instrument's break threshold.
type BreakEvent struct {
	Level     *models.Level
	Candle    *models.Candle
	Direction models.Direction
	At        time.Time
}

// TrackerUpdate is everything one candle changed in the tracker.
type TrackerUpdate struct {
	Breaks            []*BreakEvent
	FinalizedSessions []*models.Session
	NewLevels         []*models.Level
}

// LevelTracker owns session records and intraday levels for one symbol.
// Not safe for concurrent use; the engine serializes candles per symbol.
type LevelTracker struct {
	cfg config.Instrument
	log *logger.Logger

	levels   map[string]*models.Level
	crossed  map[string]struct{}
	current  *models.Session

	day     string
	dayHigh float64
	dayLow  float64
	dayClose float64

	week     string
	weekHigh float64
	weekLow  float64
}

func NewLevelTracker(cfg config.Instrument, log *logger.Logger) *LevelTracker {
	return &LevelTracker{
		cfg:     cfg,
		log:     log,
		levels:  make(map[string]*models.Level),
		crossed: make(map[string]struct{}),
	}
}

// OnCandle folds one M1 candle into the tracker: day and week rollovers,
// session open/close, level establishment, touch recording, and break
// detection, in that order.
func (t *LevelTracker) OnCandle(c *models.Candle) *TrackerUpdate {
	up := &TrackerUpdate{}

	t.rollDay(c, up)
	t.rollSession(c, up)

	if t.current != nil && c.SessionName == t.current.Name {
		t.current.ApplyCandle(c)
	}

	t.trackDay(c)
	t.markCrossings(c)
	t.detectTouches(c)
	t.detectBreaks(c, up)

	return up
}

// rollDay establishes previous-day and weekly levels when the calendar date
// changes, then resets the running extremes.
func (t *LevelTracker) rollDay(c *models.Candle, up *TrackerUpdate) {
	date := c.Timestamp.UTC().Format("2006-01-02")
	if t.day == date {
		return
	}
	if t.day != "" && t.dayHigh > 0 {
		t.establish(models.PrevDayHigh, t.dayHigh, t.day, models.SessionOverlap, c.Timestamp, up)
		t.establish(models.PrevDayLow, t.dayLow, t.day, models.SessionOverlap, c.Timestamp, up)

		pivot := (t.dayHigh + t.dayLow + t.dayClose) / 3
		t.establish(models.PivotDaily, pivot, date, models.SessionOverlap, c.Timestamp, up)
	}
	// One round-number magnet near the current price each day.
	t.establish(models.RoundNumber, t.roundNear(c.Open), date, models.SessionOverlap, c.Timestamp, up)

	t.day = date
	t.dayHigh = 0
	t.dayLow = 0

	year, wk := c.Timestamp.UTC().ISOWeek()
	wkey := weekKey(year, wk)
	if t.week != wkey {
		if t.week != "" && t.weekHigh > 0 {
			t.establish(models.WeeklyHigh, t.weekHigh, t.week, models.SessionOverlap, c.Timestamp, up)
			t.establish(models.WeeklyLow, t.weekLow, t.week, models.SessionOverlap, c.Timestamp, up)
		}
		t.week = wkey
		t.weekHigh = 0
		t.weekLow = 0
	}
}

// rollSession finalizes the open session when the candle belongs to a
// different window, deriving the session's levels, then opens a new record
// for tracked windows.
func (t *LevelTracker) rollSession(c *models.Candle, up *TrackerUpdate) {
	if t.current != nil && c.SessionName != t.current.Name {
		t.finalizeCurrent(c.Timestamp, up)
	}
	if t.current == nil && c.SessionName.Tracked() {
		date := c.Timestamp.UTC().Truncate(24 * time.Hour)
		start, end, _ := session.Window(c.SessionName, c.Timestamp)
		t.current = &models.Session{
			Symbol: c.Symbol,
			Name:   c.SessionName,
			Date:   date,
			Start:  start,
			End:    end,
		}
	}
}

func (t *LevelTracker) finalizeCurrent(at time.Time, up *TrackerUpdate) {
	s := t.current
	t.current = nil
	s.Finalize(t.cfg.PipSize)
	up.FinalizedSessions = append(up.FinalizedSessions, s)

	highType, lowType, vwapType, ok := sessionLevelTypes(s.Name)
	if !ok {
		return
	}
	key := s.Key()
	t.establish(highType, s.High, key, s.Name, at, up)
	t.establish(lowType, s.Low, key, s.Name, at, up)
	if s.VWAP > 0 {
		t.establish(vwapType, s.VWAP, key, s.Name, at, up)
	}

	t.log.Info("session finalized",
		logger.String("symbol", s.Symbol),
		logger.String("session", string(s.Name)),
		logger.Int("range_pips", s.RangeSizePips),
		logger.String("quality", string(s.Quality)))
}

// establish creates a level once per identity; re-establishment is a no-op.
func (t *LevelTracker) establish(lt models.LevelType, price float64, key string, origin models.SessionName, at time.Time, up *TrackerUpdate) {
	if price <= 0 {
		return
	}
	id := models.LevelID(t.cfg.Symbol, lt, key)
	if _, exists := t.levels[id]; exists {
		return
	}
	l := models.NewLevel(t.cfg.Symbol, lt, price, key, origin, at)
	t.levels[id] = l
	up.NewLevels = append(up.NewLevels, l)
}

func (t *LevelTracker) trackDay(c *models.Candle) {
	if t.dayHigh == 0 || c.High > t.dayHigh {
		t.dayHigh = c.High
	}
	if t.dayLow == 0 || c.Low < t.dayLow {
		t.dayLow = c.Low
	}
	t.dayClose = c.Close
	if t.weekHigh == 0 || c.High > t.weekHigh {
		t.weekHigh = c.High
	}
	if t.weekLow == 0 || c.Low < t.weekLow {
		t.weekLow = c.Low
	}
}

// detectTouches records a touch when a wick reaches the level's tolerance
// band but the close stays on the near side.
func (t *LevelTracker) detectTouches(c *models.Candle) {
	tol := float64(t.cfg.TouchTolerancePips) * t.cfg.PipSize
	for _, l := range t.levels {
		if l.Status != models.LevelActive {
			continue
		}
		if c.Low > l.Price+tol || c.High < l.Price-tol {
			continue
		}
		if t.closedBeyond(l, c) {
			continue // handled as a break
		}
		rejection := wickRejectionPips(l, c, t.cfg.PipSize)
		l.RecordTouch(rejection)
	}
}

// detectBreaks marks levels broken when the close moves beyond them by the
// break threshold in the direction the level type implies.
func (t *LevelTracker) detectBreaks(c *models.Candle, up *TrackerUpdate) {
	for _, l := range t.levels {
		if l.Status != models.LevelActive {
			continue
		}
		if !t.closedBeyond(l, c) {
			continue
		}
		dir := t.breakDirection(l, c)
		if !l.MarkBroken(c.Close, c.SessionName, c.Timestamp) {
			continue
		}
		delete(t.crossed, l.ID)
		if t.current != nil {
			t.current.BreakoutOccurred = true
			t.current.BreakoutDirection = dir
		}
		up.Breaks = append(up.Breaks, &BreakEvent{
			Level:     l,
			Candle:    c,
			Direction: dir,
			At:        c.Timestamp,
		})
		t.log.Info("level broken",
			logger.String("symbol", l.Symbol),
			logger.String("level", string(l.Type)),
			logger.Float64("price", l.Price),
			logger.String("direction", string(dir)))
	}
}

// markCrossings arms levels whose price the candle traded through.
// Directional levels sit at a prior extreme, so price starts on their near
// side; VWAP, pivot, and round levels can be established far from price and
// only become breakable once price has actually traded at them.
func (t *LevelTracker) markCrossings(c *models.Candle) {
	for _, l := range t.levels {
		if l.Status != models.LevelActive {
			continue
		}
		if _, directional := l.Type.BreakDirection(); directional {
			continue
		}
		if c.Low <= l.Price && l.Price <= c.High {
			t.crossed[l.ID] = struct{}{}
		}
	}
}

// closedBeyond reports whether the candle closed past the level by at least
// the break threshold, on the side the level type allows. Only the close
// decides: a staircase advance that walks through a level over several
// candles still breaks it on the first close beyond the threshold.
func (t *LevelTracker) closedBeyond(l *models.Level, c *models.Candle) bool {
	if t.cfg.PipSize <= 0 {
		return false
	}
	closePips := math.Round((c.Close - l.Price) / t.cfg.PipSize)
	threshold := float64(t.cfg.BreakThresholdPips)
	dir, directional := l.Type.BreakDirection()
	switch {
	case directional && dir == models.Long:
		return closePips >= threshold
	case directional && dir == models.Short:
		return closePips <= -threshold
	default:
		if _, armed := t.crossed[l.ID]; !armed {
			return false
		}
		return closePips >= threshold || closePips <= -threshold
	}
}

func (t *LevelTracker) breakDirection(l *models.Level, c *models.Candle) models.Direction {
	if dir, ok := l.Type.BreakDirection(); ok {
		return dir
	}
	if c.Close >= l.Price {
		return models.Long
	}
	return models.Short
}

// ActiveLevels returns clones of every non-inactive level, for readers.
func (t *LevelTracker) ActiveLevels() []*models.Level {
	out := make([]*models.Level, 0, len(t.levels))
	for _, l := range t.levels {
		if l.Status == models.LevelInactive {
			continue
		}
		out = append(out, l.Clone())
	}
	return out
}

// CurrentSession returns a copy of the open session, or nil outside tracked
// windows.
func (t *LevelTracker) CurrentSession() *models.Session {
	if t.current == nil {
		return nil
	}
	cp := *t.current
	return &cp
}

// roundNear snaps a price to the nearest 100-pip figure.
func (t *LevelTracker) roundNear(price float64) float64 {
	step := 100 * t.cfg.PipSize
	if step <= 0 {
		return price
	}
	return math.Round(price/step) * step
}

func sessionLevelTypes(name models.SessionName) (high, low, vwap models.LevelType, ok bool) {
	switch name {
	case models.SessionAsia:
		return models.AsiaHigh, models.AsiaLow, models.VWAPAsia, true
	case models.SessionLondon:
		return models.LondonHigh, models.LondonLow, models.VWAPLondon, true
	case models.SessionNewYork:
		return models.NYHigh, models.NYLow, models.VWAPNY, true
	default:
		return "", "", "", false
	}
}

// wickRejectionPips measures how far the wick pushed past the level before
// the close pulled back to the near side.
func wickRejectionPips(l *models.Level, c *models.Candle, pipSize float64) int {
	if pipSize <= 0 {
		return 0
	}
	var penetration float64
	if c.Close <= l.Price && c.High > l.Price {
		penetration = c.High - l.Price
	}
	if c.Close >= l.Price && c.Low < l.Price {
		if p := l.Price - c.Low; p > penetration {
			penetration = p
		}
	}
	if penetration <= 0 {
		return 0
	}
	return int(math.Round(penetration / pipSize))
}

func weekKey(year, week int) string {
	return fmt.Sprintf("%d-w%02d", year, week)
}
