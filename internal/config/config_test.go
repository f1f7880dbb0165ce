package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || !cfg.Migrate || cfg.GoogleMapsQPS != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadYAMLFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fieldroute.yaml")
	body := "port: \"9090\"\nspeedKmh: 55\ndwellMinutes: 20\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("FIELDROUTE_CONFIG", path)
	t.Setenv("SPEED_KMH", "70")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("port = %s, want 9090 from file", cfg.Port)
	}
	if cfg.SpeedKmh != 70 {
		t.Fatalf("speedKmh = %v, want env override 70", cfg.SpeedKmh)
	}
	if cfg.DwellMinutes == nil || *cfg.DwellMinutes != 20 {
		t.Fatalf("dwellMinutes = %v, want 20", cfg.DwellMinutes)
	}
}

func TestLoadBadFile(t *testing.T) {
	t.Setenv("FIELDROUTE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
