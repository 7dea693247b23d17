package usecase

import (
	"context"
	"fmt"
	"time"

	"SessionPulse/internal/domain/models"
	"SessionPulse/internal/domain/repository"
	"SessionPulse/pkg/config"
	"SessionPulse/pkg/logger"
)

const (
	volumeWindow        = 20
	volumeConfirmRatio  = 1.5
	directionWindow     = 5
	breakoutMaxAge      = 24 * time.Hour
)

// BreakoutDetector turns BreakEvents into scored Breakout records and keeps
// them updated with retests and follow-through. One instance per symbol; the
// engine serializes calls.
type BreakoutDetector struct {
	cfg  config.Instrument
	news repository.NewsProvider
	newsWindow time.Duration
	log  *logger.Logger

	volumes []int64
	bodies  []float64 // signed close-open of recent candles

	active map[string]*models.Breakout
}

func NewBreakoutDetector(cfg config.Instrument, news repository.NewsProvider, newsWindow time.Duration, log *logger.Logger) *BreakoutDetector {
	return &BreakoutDetector{
		cfg:        cfg,
		news:       news,
		newsWindow: newsWindow,
		log:        log,
		active:     make(map[string]*models.Breakout),
	}
}

// OnBreak creates the Breakout for a level break. Volume and momentum are
// judged against the candles observed before the breakout candle.
func (d *BreakoutDetector) OnBreak(ctx context.Context, ev *BreakEvent) *models.Breakout {
	c := ev.Candle
	ratio := d.volumeRatio(c.Volume)

	b := &models.Breakout{
		ID:              fmt.Sprintf("%s_%s_%d", c.Symbol, ev.Level.Type, ev.At.UTC().Unix()),
		Symbol:          c.Symbol,
		Level:           ev.Level,
		LevelID:         ev.Level.ID,
		OriginSession:   ev.Level.OriginSession,
		BreakoutSession: c.SessionName,
		Timestamp:       ev.At,
		Price:           c.Close,
		Direction:       ev.Direction,

		VolumeConfirmation: ratio >= volumeConfirmRatio,
		VolumeRatio:        ratio,
		MomentumStrength:   d.momentum(c, ev.Direction),
		TimeToNewsMin:      -1,
	}

	d.attachNews(ctx, b)
	d.active[b.ID] = b

	d.log.Info("breakout detected",
		logger.String("symbol", b.Symbol),
		logger.String("setup", b.SetupType()),
		logger.Float64("strength", b.Strength()),
		logger.String("category", string(b.PerformanceCategory())))
	return b
}

// Update folds one candle into rolling stats and advances every active
// breakout: follow-through first, then retest detection, then expiry.
func (d *BreakoutDetector) Update(c *models.Candle) {
	for id, b := range d.active {
		if c.Timestamp.Sub(b.Timestamp) > breakoutMaxAge {
			delete(d.active, id)
			continue
		}
		if c.Timestamp.After(b.Timestamp) {
			b.UpdateFollowThrough(c.Close, d.cfg.PipSize, c.Timestamp)
			d.checkRetest(b, c)
		}
	}
	d.observe(c)
}

// checkRetest records the first return of price to the broken level. The
// retest holds when the close stays on the breakout side of the level.
func (d *BreakoutDetector) checkRetest(b *models.Breakout, c *models.Candle) {
	if b.RetestOccurred || b.Level == nil {
		return
	}
	tol := float64(d.cfg.TouchTolerancePips) * d.cfg.PipSize
	if c.Low > b.Level.Price+tol || c.High < b.Level.Price-tol {
		return
	}
	held := c.Close >= b.Level.Price
	if b.Direction == models.Short {
		held = c.Close <= b.Level.Price
	}
	b.RecordRetest(c.Close, c.Timestamp, held)
	b.Level.AddRetest(c.Timestamp)
	if !held {
		b.Level.Weaken()
	}
	d.log.Info("breakout retest",
		logger.String("symbol", b.Symbol),
		logger.String("breakout", b.ID),
		logger.Bool("held", held))
}

func (d *BreakoutDetector) observe(c *models.Candle) {
	d.volumes = append(d.volumes, c.Volume)
	if len(d.volumes) > volumeWindow {
		d.volumes = d.volumes[1:]
	}
	d.bodies = append(d.bodies, c.Close-c.Open)
	if len(d.bodies) > directionWindow {
		d.bodies = d.bodies[1:]
	}
}

func (d *BreakoutDetector) volumeRatio(volume int64) float64 {
	if len(d.volumes) == 0 {
		return 1
	}
	var sum int64
	for _, v := range d.volumes {
		sum += v
	}
	avg := float64(sum) / float64(len(d.volumes))
	if avg <= 0 {
		return 1
	}
	return float64(volume) / avg
}

// momentum blends the breakout candle's body-to-range ratio with how many of
// the recent candles moved in the breakout direction. Both halves land in
// [0,1], so the blend does too.
func (d *BreakoutDetector) momentum(c *models.Candle, dir models.Direction) float64 {
	var bodyRatio float64
	if r := c.Range(); r > 0 {
		bodyRatio = c.Body() / r
	}

	consistency := 0.5
	if len(d.bodies) > 0 {
		aligned := 0
		for _, body := range d.bodies {
			if (dir == models.Long && body > 0) || (dir == models.Short && body < 0) {
				aligned++
			}
		}
		consistency = float64(aligned) / float64(len(d.bodies))
	}
	return 0.5*bodyRatio + 0.5*consistency
}

// attachNews looks up the nearest upcoming high-impact event. Provider
// failures degrade to no catalyst.
func (d *BreakoutDetector) attachNews(ctx context.Context, b *models.Breakout) {
	if d.news == nil {
		return
	}
	events, err := d.news.UpcomingHighImpact(ctx, d.newsWindow)
	if err != nil {
		d.log.Warn("news lookup failed", logger.Error(err))
		return
	}
	best := -1
	for i, ev := range events {
		mins := ev.MinutesUntil(b.Timestamp)
		if mins < 0 {
			continue
		}
		if best == -1 || mins < events[best].MinutesUntil(b.Timestamp) {
			best = i
		}
	}
	if best == -1 {
		return
	}
	ev := events[best]
	b.TimeToNewsMin = ev.MinutesUntil(b.Timestamp)
	b.News = &ev
}

// ActiveBreakouts returns clones of the still-valid breakouts.
func (d *BreakoutDetector) ActiveBreakouts() []*models.Breakout {
	out := make([]*models.Breakout, 0, len(d.active))
	for _, b := range d.active {
		if !b.StillValid() {
			continue
		}
		out = append(out, b.Clone())
	}
	return out
}
