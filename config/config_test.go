package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if *cfg != *DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := DefaultConfig()
	cfg.Debug = true
	cfg.MinSimilarity = 0.85
	cfg.ScanIntervalMS = 25
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *cfg {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, cfg)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if *cfg != *DefaultConfig() {
		t.Fatalf("expected defaults alongside error")
	}
}

func TestValidate_Clamps(t *testing.T) {
	cfg := &Config{
		MinSimilarity:      1.5,
		PixelDiffThreshold: 300,
		Workers:            -2,
		ScanIntervalMS:     3,
		ObserveIntervalMS:  -1,
		WaitTimeoutSec:     -1,
		ExistsTimeoutSec:   -4,
	}
	_ = cfg.Validate()
	if cfg.MinSimilarity != 0.7 || cfg.PixelDiffThreshold != 20 || cfg.Workers != 0 {
		t.Fatalf("matching fields not normalized: %+v", cfg)
	}
	if cfg.ScanInterval() != 10*time.Millisecond {
		t.Fatalf("scan interval floor: %v", cfg.ScanInterval())
	}
	if cfg.ObserveInterval() != 500*time.Millisecond {
		t.Fatalf("observe interval default: %v", cfg.ObserveInterval())
	}
	if cfg.WaitTimeout() != 3*time.Second || cfg.ExistsTimeout() != 0 {
		t.Fatalf("timeouts: %v %v", cfg.WaitTimeout(), cfg.ExistsTimeout())
	}
}
