package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServiceName != "lendpoold" {
		t.Fatalf("service name = %q", cfg.ServiceName)
	}
	if cfg.DataDir == "" {
		t.Fatal("expected default data dir")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	raw := `
ServiceName = "pool-east"
Environment = "staging"
DataDir = "/var/lib/lendpool"
PoolAddress = "lp1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqlue9hu"

[Telemetry]
Endpoint = "collector:4318"
Insecure = true
Metrics = true

[Pool]
owner = "lp1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqlue9hu"
twap_period_seconds = 900
flash_loans_enabled = true

[Pool.interest]
base_rate_bps = 100
optimal_utilization_bps = 9000
slope1_bps = 400
slope2_bps = 6000
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServiceName != "pool-east" {
		t.Fatalf("service name = %q", cfg.ServiceName)
	}
	if cfg.Telemetry.Endpoint != "collector:4318" || !cfg.Telemetry.Insecure || !cfg.Telemetry.Metrics {
		t.Fatalf("telemetry = %+v", cfg.Telemetry)
	}
	if cfg.Pool.TWAPPeriodSeconds != 900 {
		t.Fatalf("twap period = %d", cfg.Pool.TWAPPeriodSeconds)
	}
	if cfg.Pool.Interest.OptimalUtilBps != 9000 {
		t.Fatalf("interest = %+v", cfg.Pool.Interest)
	}
}
