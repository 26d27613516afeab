package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("ARB_DYDX_URL", "wss://example.test/v4/ws")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
service_name: arbitrage-test
dydx:
  transport:
    url: ${ARB_DYDX_URL}
  instrument: ETH-USD
policy: fail_fast
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dydx.Transport.URL != "wss://example.test/v4/ws" {
		t.Errorf("env not expanded: %s", cfg.Dydx.Transport.URL)
	}
	if cfg.Dydx.Instrument != "ETH-USD" {
		t.Errorf("instrument not applied: %s", cfg.Dydx.Instrument)
	}
	if cfg.Policy != "fail_fast" {
		t.Errorf("policy not applied: %s", cfg.Policy)
	}
	// untouched sections keep their defaults
	if cfg.Aevo == nil || cfg.Aevo.Instrument != "BTC-PERP" {
		t.Errorf("aevo defaults lost: %+v", cfg.Aevo)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dydx.Transport.URL == "" || cfg.Aevo.Transport.URL == "" {
		t.Error("defaults must carry both venue endpoints")
	}
}
