package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"redbank/crypto"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ListenAddress    string `toml:"ListenAddress"`
	MetricsAddress   string `toml:"MetricsAddress"`
	DataDir          string `toml:"DataDir"`
	Environment      string `toml:"Environment"`
	Owner            string `toml:"Owner"`
	RewardsCollector string `toml:"RewardsCollector"`
	CloseFactor      string `toml:"CloseFactor"`
}

// Load loads the configuration from the given path, creating a default file
// on first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8080"
	}
	if strings.TrimSpace(c.MetricsAddress) == "" {
		c.MetricsAddress = ":9090"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./redbank-data"
	}
	if strings.TrimSpace(c.CloseFactor) == "" {
		c.CloseFactor = "0.5"
	}
}

// Validate checks that the addresses decode and the close factor is a
// decimal in (0, 1].
func (c *Config) Validate() error {
	if _, err := crypto.DecodeAddress(c.Owner); err != nil {
		return fmt.Errorf("invalid Owner address: %w", err)
	}
	if _, err := crypto.DecodeAddress(c.RewardsCollector); err != nil {
		return fmt.Errorf("invalid RewardsCollector address: %w", err)
	}
	return validateCloseFactor(c.CloseFactor)
}

// createDefault creates and saves a default configuration file. A fresh owner
// key is generated so the file is immediately usable for local development.
func createDefault(path string) (*Config, error) {
	ownerKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	collectorKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddress:    ":8080",
		MetricsAddress:   ":9090",
		DataDir:          "./redbank-data",
		Environment:      "local",
		Owner:            ownerKey.PubKey().Address().String(),
		RewardsCollector: collectorKey.PubKey().Address().String(),
		CloseFactor:      "0.5",
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
