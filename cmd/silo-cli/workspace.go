package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"hooliganhorde/config"
	"hooliganhorde/core/epoch"
	"hooliganhorde/core/units"
	nativesilo "hooliganhorde/native/silo"
	statesilo "hooliganhorde/state/silo"
	"hooliganhorde/storage"
)

// workspace is the local silo state a command operates on.
type workspace struct {
	silo  *nativesilo.Silo
	store *statesilo.Store
	clock *epoch.Clock
	db    storage.Database
}

func openWorkspace(configPath string) (*workspace, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	epochCfg, err := cfg.EpochConfig()
	if err != nil {
		return nil, err
	}
	silo, err := cfg.NewSilo()
	if err != nil {
		return nil, err
	}
	db, err := cfg.OpenDatabase()
	if err != nil {
		return nil, err
	}
	store := statesilo.NewStore(db)
	if _, err := store.Load(silo); err != nil {
		_ = db.Close()
		return nil, err
	}
	start := epochCfg.Start
	if stored, ok, err := store.Gameday(); err != nil {
		_ = db.Close()
		return nil, err
	} else if ok && stored > start {
		start = stored
	}
	return &workspace{silo: silo, store: store, clock: epoch.NewClock(start), db: db}, nil
}

func (w *workspace) Close() error {
	return w.db.Close()
}

func (w *workspace) ledger(account, symbol string) (*nativesilo.Ledger, error) {
	address, err := parseAccount(account)
	if err != nil {
		return nil, err
	}
	return w.silo.Ledger(address, symbol)
}

func parseAccount(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid account %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}

func parseOptional(raw string, decimals uint8) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return units.Parse(raw, decimals)
}
