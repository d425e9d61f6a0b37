package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"agora/native/marketplace"
)

// TierRule mirrors marketplace.TierRule for TOML decoding.
type TierRule struct {
	MinListings uint64 `toml:"MinListings"`
	FeeBps      uint32 `toml:"FeeBps"`
}

type Config struct {
	RPCAddress             string     `toml:"RPCAddress"`
	DataDir                string     `toml:"DataDir"`
	NetworkName            string     `toml:"NetworkName"`
	RankingHalfLifeSeconds uint64     `toml:"RankingHalfLifeSeconds"`
	TierSchedule           []TierRule `toml:"TierSchedule"`
}

func defaultConfig() *Config {
	schedule := marketplace.DefaultTierSchedule()
	rules := make([]TierRule, len(schedule))
	for i, rule := range schedule {
		rules[i] = TierRule{MinListings: rule.MinListings, FeeBps: rule.FeeBps}
	}
	return &Config{
		RPCAddress:             "0.0.0.0:8547",
		DataDir:                "./agora-data",
		NetworkName:            "agora-local",
		RankingHalfLifeSeconds: marketplace.DefaultHalfLifeSeconds,
		TierSchedule:           rules,
	}
}

// Load loads the configuration from the given path, writing a default file on
// first run.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown keys: %v", path, undecoded)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	defaults := defaultConfig()
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = defaults.RPCAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaults.DataDir
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = defaults.NetworkName
	}
	if cfg.RankingHalfLifeSeconds == 0 {
		cfg.RankingHalfLifeSeconds = defaults.RankingHalfLifeSeconds
	}
	if len(cfg.TierSchedule) == 0 {
		cfg.TierSchedule = defaults.TierSchedule
	}
}

// Validate checks the decoded configuration, including the tier schedule's
// ordering constraints.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	if err := c.MarketplaceTierSchedule().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// MarketplaceTierSchedule converts the decoded rules to the engine type.
func (c *Config) MarketplaceTierSchedule() marketplace.TierSchedule {
	schedule := make(marketplace.TierSchedule, len(c.TierSchedule))
	for i, rule := range c.TierSchedule {
		schedule[i] = marketplace.TierRule{MinListings: rule.MinListings, FeeBps: rule.FeeBps}
	}
	return schedule
}

func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
