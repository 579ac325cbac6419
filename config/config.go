package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the protocol configuration shared by silod and silo-cli.
type Config struct {
	DataDir  string        `toml:"DataDir"`
	Database string        `toml:"Database"`
	Gameday  GamedayConfig `toml:"Gameday"`
	Rewards  RewardsConfig `toml:"Rewards"`
	Tokens   []TokenConfig `toml:"Tokens"`
}

// Load loads the configuration from the given path. A default configuration
// is written when the file does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	cfg.Tokens = nil
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if len(cfg.Tokens) == 0 {
		cfg.Tokens = defaultTokens()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration written by Load for a fresh install.
func Default() *Config {
	return &Config{
		DataDir:  "./silo-data",
		Database: DatabaseLevelDB,
		Gameday: GamedayConfig{
			LengthSeconds: 3600,
			Start:         1,
		},
		Rewards: RewardsConfig{
			HordePerBDV:                RatioConfig{Num: 10_000, Den: 1},
			HordePerProspectPerGameday: RatioConfig{Num: 1, Den: 1},
		},
		Tokens: defaultTokens(),
	}
}

func defaultTokens() []TokenConfig {
	return []TokenConfig{
		{Symbol: "HOOLIGAN", Decimals: 6, ProspectsPerBDV: RatioConfig{Num: 2, Den: 1}},
		{Symbol: "HOOLIGAN3CRV", Decimals: 18, ProspectsPerBDV: RatioConfig{Num: 4, Den: 1}},
		{Symbol: "UNRIPE_HOOLIGAN", Decimals: 6, ProspectsPerBDV: RatioConfig{Num: 2, Den: 1}},
		{Symbol: "UNRIPE_HOOLIGAN3CRV", Decimals: 6, ProspectsPerBDV: RatioConfig{Num: 4, Den: 1}},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
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
