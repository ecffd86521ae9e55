package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Paper.InitialBalance != 50000 || cfg.Paper.RiskPerTrade != 0.01 {
		t.Errorf("Unexpected paper defaults: %+v", cfg.Paper)
	}
	if cfg.Analysis.SwingLength != 5 || cfg.Analysis.ImpulseMultiplier != 1.5 {
		t.Errorf("Unexpected analysis defaults: %+v", cfg.Analysis)
	}
	if cfg.Stream.Symbol != "BTCUSDT" || cfg.Stream.Interval != "15m" {
		t.Errorf("Unexpected stream defaults: %+v", cfg.Stream)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := []byte(`{"server":{"port":9000},"paper":{"initial_balance":10000,"risk_per_trade":0.02}}`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")
	t.Setenv("STREAM_SYMBOL", "ETHUSDT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Env beats file, file beats defaults.
	if cfg.Server.Port != 9100 {
		t.Errorf("Expected env port 9100, got %d", cfg.Server.Port)
	}
	if cfg.Paper.InitialBalance != 10000 || cfg.Paper.RiskPerTrade != 0.02 {
		t.Errorf("Expected file paper settings, got %+v", cfg.Paper)
	}
	if cfg.Stream.Symbol != "ETHUSDT" {
		t.Errorf("Expected env stream symbol, got %s", cfg.Stream.Symbol)
	}
}

func TestLoad_RejectsBadRisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"paper":{"risk_per_trade":0.5}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Error("Risk above 10% must be rejected")
	}
}

func TestLoad_RejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Error("Malformed config file must fail loudly, not silently fall back")
	}
}
