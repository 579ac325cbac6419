package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"hooliganhorde/core/epoch"
	"hooliganhorde/core/rewards"
	"hooliganhorde/native/silo"
	"hooliganhorde/storage"
)

func (r RatioConfig) ratio() rewards.Ratio {
	return rewards.NewRatio(r.Num, r.Den)
}

// EpochConfig converts the gameday section into clock parameters.
func (c Config) EpochConfig() (epoch.Config, error) {
	cfg := epoch.Config{
		Length: time.Duration(c.Gameday.LengthSeconds) * time.Second,
		Start:  c.Gameday.Start,
	}
	if genesis := strings.TrimSpace(c.Gameday.Genesis); genesis != "" {
		parsed, err := time.Parse(time.RFC3339, genesis)
		if err != nil {
			return epoch.Config{}, fmt.Errorf("invalid Gameday.Genesis: %w", err)
		}
		cfg.Genesis = parsed
	}
	if err := cfg.Validate(); err != nil {
		return epoch.Config{}, err
	}
	return cfg, nil
}

// RewardParams converts the rewards section into model parameters.
func (c Config) RewardParams() rewards.Params {
	return rewards.Params{
		HordePerBDV:                c.Rewards.HordePerBDV.ratio(),
		HordePerProspectPerGameday: c.Rewards.HordePerProspectPerGameday.ratio(),
	}
}

// SiloTokens converts the token whitelist.
func (c Config) SiloTokens() ([]silo.Token, error) {
	out := make([]silo.Token, 0, len(c.Tokens))
	for i, token := range c.Tokens {
		address := strings.TrimSpace(token.Address)
		if address != "" && !common.IsHexAddress(address) {
			return nil, fmt.Errorf("invalid Tokens[%d].Address %q", i, token.Address)
		}
		converted := silo.Token{
			Symbol:          token.Symbol,
			Decimals:        token.Decimals,
			ProspectsPerBDV: token.ProspectsPerBDV.ratio(),
		}
		if address != "" {
			converted.Address = common.HexToAddress(address)
		}
		if err := converted.Validate(); err != nil {
			return nil, fmt.Errorf("invalid Tokens[%d]: %w", i, err)
		}
		out = append(out, converted)
	}
	return out, nil
}

// NewSilo builds a silo and reward model from the configuration.
func (c Config) NewSilo() (*silo.Silo, error) {
	model, err := rewards.NewModel(c.RewardParams())
	if err != nil {
		return nil, err
	}
	tokens, err := c.SiloTokens()
	if err != nil {
		return nil, err
	}
	return silo.New(model, tokens)
}

// OpenDatabase opens the silo state database selected by Database.
func (c Config) OpenDatabase() (storage.Database, error) {
	switch strings.ToLower(strings.TrimSpace(c.Database)) {
	case DatabaseMemory:
		return storage.NewMemDB(), nil
	case "", DatabaseLevelDB:
		if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return storage.NewLevelDB(filepath.Join(c.DataDir, "silo"))
	default:
		return nil, fmt.Errorf("unsupported database %q", c.Database)
	}
}
