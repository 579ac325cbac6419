package config

// Supported ledger databases.
const (
	DatabaseLevelDB = "leveldb"
	DatabaseMemory  = "memory"
)

// GamedayConfig anchors the gameday clock. Genesis is an RFC 3339 timestamp;
// when empty the clock only moves when advanced explicitly.
type GamedayConfig struct {
	Genesis       string `toml:"Genesis"`
	LengthSeconds uint64 `toml:"LengthSeconds"`
	Start         uint64 `toml:"Start"`
}

// RatioConfig is a num/den fraction in raw units.
type RatioConfig struct {
	Num uint64 `toml:"Num"`
	Den uint64 `toml:"Den"`
}

// RewardsConfig sets the Horde issuance ratios.
type RewardsConfig struct {
	HordePerBDV                RatioConfig `toml:"HordePerBDV"`
	HordePerProspectPerGameday RatioConfig `toml:"HordePerProspectPerGameday"`
}

// TokenConfig whitelists a silo token.
type TokenConfig struct {
	Symbol          string      `toml:"Symbol"`
	Address         string      `toml:"Address"`
	Decimals        uint8       `toml:"Decimals"`
	ProspectsPerBDV RatioConfig `toml:"ProspectsPerBDV"`
}
