package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FromYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
engine:
  instance_id: exec-7
  residual_mark_seconds: 900
  pause_fulfill_post_chore_dod: true
  sweep_cron: "@every 1m"
limits:
  max_per_security_notional: "250000"
fx_rates:
  CB-ACME-2030A: "150"
  EQT-ACME-CASH: "7.25"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Engine.InstanceID != "exec-7" || cfg.Engine.ResidualMarkSeconds != 900 {
		t.Errorf("engine config = %+v", cfg.Engine)
	}
	if !cfg.Engine.PauseFulfillPostChoreDOD {
		t.Error("pause flag not read")
	}
	if cfg.Engine.SweepCron != "@every 1m" {
		t.Errorf("sweep cron = %q", cfg.Engine.SweepCron)
	}

	rates := cfg.DecimalRates()
	if len(rates) != 2 {
		t.Fatalf("expected 2 rates, got %d", len(rates))
	}
	if !rates["CB-ACME-2030A"].Equal(DecimalLimit("150")) {
		t.Errorf("rate = %s", rates["CB-ACME-2030A"])
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file must not fail: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("default port = %q", cfg.Server.Port)
	}
	if cfg.Engine.InstanceID == "" || cfg.Engine.SweepCron == "" {
		t.Errorf("defaults missing: %+v", cfg.Engine)
	}
	if cfg.Engine.ResidualMarkSeconds != 0 {
		t.Errorf("sweep must default to disabled, got %d", cfg.Engine.ResidualMarkSeconds)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
engine:
  residual_mark_seconds: 900
`)
	t.Setenv("PORT", "7000")
	t.Setenv("RESIDUAL_MARK_SECONDS", "120")
	t.Setenv("PAUSE_FULFILL_POST_CHORE_DOD", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port != "7000" {
		t.Errorf("env override lost: port = %q", cfg.Server.Port)
	}
	if cfg.Engine.ResidualMarkSeconds != 120 {
		t.Errorf("env override lost: residual = %d", cfg.Engine.ResidualMarkSeconds)
	}
	if !cfg.Engine.PauseFulfillPostChoreDOD {
		t.Error("env override lost: pause flag")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDecimalLimit(t *testing.T) {
	if !DecimalLimit("250000").Equal(DecimalLimit("250000.00")) {
		t.Error("equal decimals expected")
	}
	if !DecimalLimit("").IsZero() {
		t.Error("empty limit must disable")
	}
	if !DecimalLimit("garbage").IsZero() {
		t.Error("malformed limit must disable")
	}
}
