package usecase

import (
	"fmt"

	"SessionPulse/internal/domain/models"
	"SessionPulse/pkg/config"
	"SessionPulse/pkg/logger"
)

// Confidence weights. The sum of the weights is 1 and every input lands in
// [0,1], so the score does too.
const (
	confWeightBreakout = 0.45
	confWeightLevel    = 0.35
	confWeightContext  = 0.20
)

// SignalGenerator synthesizes trade signals from scored breakouts. Stateless
// apart from configuration; one instance serves all symbols.
type SignalGenerator struct {
	stopBufferPips int
	target1RR      float64
	target2RR      float64
	minMomentum    float64
	log            *logger.Logger
}

func NewSignalGenerator(cfg *config.Config, log *logger.Logger) *SignalGenerator {
	return &SignalGenerator{
		stopBufferPips: cfg.Signals.StopBufferPips,
		target1RR:      cfg.Signals.Target1RR,
		target2RR:      cfg.Signals.Target2RR,
		minMomentum:    cfg.Signals.MinMomentum,
		log:            log,
	}
}

// Generate produces a signal for a breakout, or (nil, nil) when the breakout
// does not qualify. Qualification requires technical confirmation or a news
// catalyst. Degenerate price geometry is rejected with ErrValidation.
func (g *SignalGenerator) Generate(b *models.Breakout, inst config.Instrument) (*models.Signal, error) {
	if b.Level == nil {
		return nil, fmt.Errorf("%w: breakout %s has no level", models.ErrInvariant, b.ID)
	}
	if !b.TechnicallyConfirmed() && !b.HasNewsCatalyst() {
		return nil, nil
	}
	if !b.StillValid() {
		return nil, nil
	}

	entry := b.Price
	stop := g.stopPrice(b, inst)
	risk := entry - stop
	if b.Direction == models.Short {
		risk = stop - entry
	}
	if risk <= 0 {
		return nil, fmt.Errorf("%w: entry %.5f not beyond stop %.5f", models.ErrValidation, entry, stop)
	}

	target1 := entry + g.target1RR*risk
	target2 := entry + g.target2RR*risk
	if b.Direction == models.Short {
		target1 = entry - g.target1RR*risk
		target2 = entry - g.target2RR*risk
	}

	s := &models.Signal{
		Symbol:    b.Symbol,
		SetupType: b.SetupType(),
		Category:  g.category(b),
		Direction: b.Direction,

		Entry:   entry,
		Stop:    stop,
		Target1: target1,
		Target2: target2,

		RiskRewardRatio: g.target1RR,

		PrimarySession: b.BreakoutSession,
		OriginSession:  b.OriginSession,
		SessionContext: b.Level.ContextDescription(),

		Level:    b.Level,
		Breakout: b,
		LevelID:  b.LevelID,

		ConfidenceScore: g.confidence(b),
		Status:          models.SignalActive,
		CreatedAt:       b.Timestamp,
	}
	s.ID = s.SignalID()
	s.ProbabilitySuccess = probabilityFor(b.PerformanceCategory())
	if b.News != nil {
		s.NewsContext = fmt.Sprintf("%s %s in %d min", b.News.Currency, b.News.Title, b.TimeToNewsMin)
	}

	g.collectFactors(s, b)
	s.Explanation = g.explain(s, b)
	b.SignalGenerated = true

	g.log.Info("signal generated",
		logger.String("symbol", s.Symbol),
		logger.String("setup", s.SetupType),
		logger.Float64("confidence", s.ConfidenceScore),
		logger.Bool("high_quality", s.HighQuality()))
	return s, nil
}

// stopPrice places the stop behind the broken level by the configured buffer.
func (g *SignalGenerator) stopPrice(b *models.Breakout, inst config.Instrument) float64 {
	buffer := float64(g.stopBufferPips) * inst.PipSize
	if b.Direction == models.Short {
		return b.Level.Price + buffer
	}
	return b.Level.Price - buffer
}

func (g *SignalGenerator) category(b *models.Breakout) models.SetupCategory {
	if b.RetestOccurred && b.RetestHeld {
		return models.SetupRetest
	}
	return models.SetupBreakout
}

// confidence blends breakout strength, level strength, and session context.
func (g *SignalGenerator) confidence(b *models.Breakout) float64 {
	score := confWeightBreakout*b.Strength() +
		confWeightLevel*b.Level.Strength() +
		confWeightContext*contextScore(b)
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// contextScore rates the surroundings of the break: scheduled high-impact
// news near the entry is a conflict that halves the context. Timing quality
// already flows in through the breakout strength term.
func contextScore(b *models.Breakout) float64 {
	if b.HasNewsCatalyst() {
		return 0.5
	}
	return 1.0
}

func probabilityFor(cat models.PerformanceCategory) float64 {
	switch cat {
	case models.HighProbability:
		return 0.75
	case models.MediumProbability:
		return 0.60
	default:
		return 0.45
	}
}

func (g *SignalGenerator) collectFactors(s *models.Signal, b *models.Breakout) {
	s.AddKeyFactor(models.FactorBreakoutStrength, b.Strength())
	s.AddKeyFactor(models.FactorLevelStrength, b.Level.Strength())
	s.AddKeyFactor(models.FactorLevelTouches, b.Level.TouchCount)
	s.AddKeyFactor(models.FactorSessionTiming, b.OptimalSessionTiming())
	if b.VolumeConfirmation {
		s.AddKeyFactor(models.FactorVolumeConfirmation, b.VolumeRatio)
	} else {
		s.AddRiskFactor(models.FactorVolumeConfirmation, false)
	}
	if b.MomentumStrength >= g.minMomentum {
		s.AddKeyFactor(models.FactorMomentumStrength, b.MomentumStrength)
	} else {
		s.AddRiskFactor(models.FactorMomentumStrength, b.MomentumStrength)
	}
	if b.TimeToNewsMin >= 0 {
		if b.TimeToNewsMin <= 15 {
			// imminent release: slippage risk, not an edge
			s.AddRiskFactor(models.FactorNewsWithinMinutes, b.TimeToNewsMin)
		} else {
			s.AddKeyFactor(models.FactorNewsWithinMinutes, b.TimeToNewsMin)
		}
	}
	if b.RetestOccurred {
		s.AddKeyFactor(models.FactorRetestHeld, b.RetestHeld)
	}
}

func (g *SignalGenerator) explain(s *models.Signal, b *models.Breakout) string {
	return fmt.Sprintf("%s. Confidence %.2f, %s setup, targets %.5f / %.5f.",
		b.SetupDescription(), s.ConfidenceScore, s.Category, s.Target1, s.Target2)
}
