package api

import (
	"errors"
	"strconv"
	"time"

	models "SessionPulse/internal/domain/models"
	"SessionPulse/internal/usecase"
	xhttp "SessionPulse/pkg/http"
	xlogger "SessionPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// MarketHandler exposes the engine's read API over Echo.
type MarketHandler struct {
	logger *xlogger.Logger
	engine *usecase.Engine
}

func NewMarketHandler(logger *xlogger.Logger, engine *usecase.Engine) *MarketHandler {
	return &MarketHandler{logger: logger, engine: engine}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/levels", h.Levels)
	g.GET("/breakouts", h.Breakouts)
	g.GET("/signals", h.Signals)
	g.GET("/candles", h.Candles)
	g.GET("/session", h.Session)
	g.GET("/sessions", h.Sessions)
	g.GET("/stats", h.Stats)
	g.GET("/health", h.Health)
}

func (h *MarketHandler) Levels(c echo.Context) error {
	req := &models.LevelsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	levels, err := h.engine.ActiveLevels(req.Symbol)
	if err != nil {
		return h.usecaseError(c, "levels", err)
	}
	return xhttp.ListResponse(c, levels, int64(len(levels)))
}

func (h *MarketHandler) Breakouts(c echo.Context) error {
	req := &models.BreakoutsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	since, perr := parseSince(req.Since)
	if perr != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_FORMAT",
			Field:   "since",
			Message: "since must be RFC3339 or unix seconds",
		}})
	}

	breakouts, err := h.engine.RecentBreakouts(req.Symbol)
	if err != nil {
		return h.usecaseError(c, "breakouts", err)
	}
	out := breakouts[:0:0]
	for _, b := range breakouts {
		if b.Timestamp.Before(since) {
			continue
		}
		out = append(out, b)
	}
	return xhttp.ListResponse(c, out, int64(len(out)))
}

func (h *MarketHandler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	signals, err := h.engine.ActiveSignals(req.Symbol)
	if err != nil {
		return h.usecaseError(c, "signals", err)
	}
	return xhttp.ListResponse(c, signals, int64(len(signals)))
}

func (h *MarketHandler) Candles(c echo.Context) error {
	req := &models.LatestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	candles, err := h.engine.LatestCandles(req.Symbol, models.Timeframe(req.Timeframe), req.Limit)
	if err != nil {
		return h.usecaseError(c, "candles", err)
	}
	return xhttp.ListResponse(c, candles, int64(len(candles)))
}

func (h *MarketHandler) Session(c echo.Context) error {
	req := &models.SessionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	sess, err := h.engine.CurrentSession(req.Symbol)
	if err != nil {
		return h.usecaseError(c, "session", err)
	}
	if sess == nil {
		return xhttp.SuccessResponse(c, map[string]any{"active": false})
	}
	return xhttp.SuccessResponse(c, sess)
}

func (h *MarketHandler) Sessions(c echo.Context) error {
	req := &models.SessionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	sessions, err := h.engine.RecentSessions(req.Symbol)
	if err != nil {
		return h.usecaseError(c, "sessions", err)
	}
	return xhttp.ListResponse(c, sessions, int64(len(sessions)))
}

func (h *MarketHandler) Stats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.Stats())
}

func (h *MarketHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]any{
		"status":  "ok",
		"symbols": h.engine.Symbols(),
	})
}

func (h *MarketHandler) usecaseError(c echo.Context, op string, err error) error {
	if errors.Is(err, models.ErrValidation) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	h.logger.Error(op+" usecase error", xlogger.Error(err))
	return xhttp.AppErrorResponse(c, err)
}

// parseSince accepts RFC3339 or unix seconds; empty means last 24 hours.
func parseSince(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC().Add(-24 * time.Hour), nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	unix, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(unix, 0).UTC(), nil
}
