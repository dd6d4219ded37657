package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file not written: %v", err)
	}
	if cfg.ListenAddress != ":8080" || cfg.MetricsAddress != ":9090" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Owner == "" || cfg.RewardsCollector == "" {
		t.Fatalf("expected generated addresses in default config")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	// Loading again reads the file back instead of regenerating it.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Owner != cfg.Owner {
		t.Fatalf("owner changed across reload")
	}
}

func TestLoadRejectsBadAddresses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := []byte("Owner = \"garbage\"\nRewardsCollector = \"garbage\"\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected invalid address error")
	}
}

func TestValidateCloseFactor(t *testing.T) {
	for _, ok := range []string{"0.5", "1", "0.001"} {
		if err := validateCloseFactor(ok); err != nil {
			t.Fatalf("close factor %q rejected: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "0", "-0.5", "1.5", "abc"} {
		if err := validateCloseFactor(bad); err == nil {
			t.Fatalf("close factor %q accepted", bad)
		}
	}
}
