package config

import (
	"fmt"
	"strings"

	"hooliganhorde/native/silo"
)

// Validate checks the configuration for values the silo cannot run with.
func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Database)) {
	case DatabaseLevelDB:
		if strings.TrimSpace(c.DataDir) == "" {
			return fmt.Errorf("DataDir required for %s database", DatabaseLevelDB)
		}
	case DatabaseMemory:
	default:
		return fmt.Errorf("unsupported Database %q", c.Database)
	}
	if _, err := c.EpochConfig(); err != nil {
		return err
	}
	if err := c.RewardParams().Validate(); err != nil {
		return fmt.Errorf("rewards: %w", err)
	}
	if len(c.Tokens) == 0 {
		return fmt.Errorf("at least one token must be whitelisted")
	}
	seen := make(map[string]struct{}, len(c.Tokens))
	for _, token := range c.Tokens {
		symbol := silo.NormalizeSymbol(token.Symbol)
		if _, dup := seen[symbol]; dup {
			return fmt.Errorf("duplicate token %s", symbol)
		}
		seen[symbol] = struct{}{}
	}
	if _, err := c.SiloTokens(); err != nil {
		return err
	}
	return nil
}
