package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"SessionPulse/internal/usecase"
	"SessionPulse/pkg/config"
	applogger "SessionPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

func testServer(t *testing.T) *echo.Echo {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	cfg := &config.Config{
		Environment: "test",
		Instruments: []config.Instrument{{
			Symbol:             "EURUSD",
			BasePrice:          1.0850,
			DailyRangePips:     80,
			PipSize:            0.0001,
			BreakThresholdPips: 8,
			TouchTolerancePips: 3,
		}},
	}
	engine := usecase.NewEngine(cfg, nil, nil, nil, nil, nil, l)

	e := echo.New()
	NewMarketHandler(l, engine).RegisterRoutes(e)
	return e
}

func doGet(e *echo.Echo, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestLevelsRequiresSymbol(t *testing.T) {
	e := testServer(t)
	rec := doGet(e, "/api/levels")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected http code %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"status":400`) {
		t.Fatalf("expected validation error, got %s", body)
	}
	if !strings.Contains(body, "ERR_REQUIRED") {
		t.Fatalf("expected ERR_REQUIRED, got %s", body)
	}
}

func TestLevelsEmptyForFreshSymbol(t *testing.T) {
	e := testServer(t)
	rec := doGet(e, "/api/levels?symbol=EURUSD")
	body := rec.Body.String()
	if !strings.Contains(body, `"status":200`) {
		t.Fatalf("expected ok, got %s", body)
	}
	if !strings.Contains(body, `"total":0`) {
		t.Fatalf("expected empty list, got %s", body)
	}
}

func TestLevelsUnknownSymbol(t *testing.T) {
	e := testServer(t)
	rec := doGet(e, "/api/levels?symbol=ZZZUSD")
	body := rec.Body.String()
	if !strings.Contains(body, `"status":400`) {
		t.Fatalf("expected bad request, got %s", body)
	}
}

func TestBreakoutsRejectsBadSince(t *testing.T) {
	e := testServer(t)
	rec := doGet(e, "/api/breakouts?symbol=EURUSD&since=yesterday")
	body := rec.Body.String()
	if !strings.Contains(body, `"status":400`) {
		t.Fatalf("expected bad request, got %s", body)
	}
	if !strings.Contains(body, "ERR_FORMAT") {
		t.Fatalf("expected ERR_FORMAT, got %s", body)
	}
}

func TestCandlesRejectsBadTimeframe(t *testing.T) {
	e := testServer(t)
	rec := doGet(e, "/api/candles?symbol=EURUSD&timeframe=H4")
	body := rec.Body.String()
	if !strings.Contains(body, `"status":400`) {
		t.Fatalf("expected bad request, got %s", body)
	}
}

func TestStatsAndHealth(t *testing.T) {
	e := testServer(t)

	rec := doGet(e, "/api/stats")
	if !strings.Contains(rec.Body.String(), "candles_ingested") {
		t.Fatalf("expected stats payload, got %s", rec.Body.String())
	}

	rec = doGet(e, "/api/health")
	body := rec.Body.String()
	if !strings.Contains(body, `"status":"ok"`) || !strings.Contains(body, "EURUSD") {
		t.Fatalf("expected health payload, got %s", body)
	}
}

func TestSessionInactiveOutsideWindows(t *testing.T) {
	e := testServer(t)
	rec := doGet(e, "/api/session?symbol=EURUSD")
	body := rec.Body.String()
	if !strings.Contains(body, `"status":200`) {
		t.Fatalf("expected ok, got %s", body)
	}
}
