package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sample = `
environment: test
feed:
  mode: simulator
instruments:
  - symbol: EURUSD
    base_price: 1.0850
    daily_range_pips: 80
    spread_pips: 0.5
  - symbol: XAUUSD
    base_price: 1950.0
    daily_range_pips: 1500
    spread_pips: 20
    pip_size: 0.01
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	eur, ok := cfg.Instrument("EURUSD")
	if !ok {
		t.Fatalf("expected EURUSD")
	}
	if eur.PipSize != 0.0001 {
		t.Fatalf("default pip size = %v", eur.PipSize)
	}
	if eur.BreakThresholdPips != 8 || eur.TouchTolerancePips != 3 {
		t.Fatalf("default thresholds = %d/%d", eur.BreakThresholdPips, eur.TouchTolerancePips)
	}
	gold, _ := cfg.Instrument("XAUUSD")
	if gold.PipSize != 0.01 {
		t.Fatalf("explicit pip size overridden: %v", gold.PipSize)
	}
	if cfg.Signals.Target1RR != 1.5 || cfg.Signals.Target2RR != 2.5 {
		t.Fatalf("signal defaults = %v/%v", cfg.Signals.Target1RR, cfg.Signals.Target2RR)
	}
}

func TestValidateRejectsBadMode(t *testing.T) {
	bad := `
environment: test
feed:
  mode: replay
instruments:
  - symbol: EURUSD
    base_price: 1.0850
    daily_range_pips: 80
`
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatalf("expected mode validation error")
	}
}

func TestValidateRejectsMissingInstruments(t *testing.T) {
	bad := `
environment: test
feed:
  mode: simulator
`
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatalf("expected instruments validation error")
	}
}

func TestInstrumentLookup(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := cfg.Instrument("GBPUSD"); ok {
		t.Fatalf("unexpected instrument")
	}
	if got := cfg.Symbols(); len(got) != 2 || got[0] != "EURUSD" {
		t.Fatalf("symbols = %v", got)
	}
}
