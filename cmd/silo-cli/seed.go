package main

import (
	"fmt"
	"io"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"

	"hooliganhorde/core/rewards"
	"hooliganhorde/core/units"
	nativesilo "hooliganhorde/native/silo"
)

// seedFile lists mock deposits loaded into the local silo.
type seedFile struct {
	// Gameday, when ahead of the current gameday, fast-forwards the clock
	// before the deposits are applied.
	Gameday  uint64        `yaml:"gameday"`
	Deposits []seedDeposit `yaml:"deposits"`
}

type seedDeposit struct {
	Account string `yaml:"account"`
	Token   string `yaml:"token"`
	Gameday uint64 `yaml:"gameday"`
	Amount  string `yaml:"amount"`
	BDV     string `yaml:"bdv"`
}

func loadSeed(path string) (seedFile, error) {
	var seed seedFile
	file, err := os.Open(path)
	if err != nil {
		return seed, fmt.Errorf("open seed: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return seed, fmt.Errorf("decode seed: %w", err)
	}
	return seed, nil
}

func seedEvents(silo *nativesilo.Silo, seed seedFile, current uint64) ([]nativesilo.AddDeposit, error) {
	events := make([]nativesilo.AddDeposit, 0, len(seed.Deposits))
	for i, dep := range seed.Deposits {
		account, err := parseAccount(dep.Account)
		if err != nil {
			return nil, fmt.Errorf("deposits[%d]: %w", i, err)
		}
		token, err := silo.Token(dep.Token)
		if err != nil {
			return nil, fmt.Errorf("deposits[%d]: %w", i, err)
		}
		gameday := dep.Gameday
		if gameday == 0 {
			gameday = current
		}
		if gameday > current {
			return nil, fmt.Errorf("deposits[%d]: gameday %d is ahead of current gameday %d", i, gameday, current)
		}
		amount, err := units.Parse(dep.Amount, token.Decimals)
		if err != nil {
			return nil, fmt.Errorf("deposits[%d]: %w", i, err)
		}
		bdv, err := units.Parse(dep.BDV, rewards.BDVDecimals)
		if err != nil {
			return nil, fmt.Errorf("deposits[%d]: %w", i, err)
		}
		events = append(events, nativesilo.AddDeposit{
			Account: account,
			Token:   token.Symbol,
			Gameday: gameday,
			Amount:  amount,
			BDV:     bdv,
		})
	}
	return events, nil
}

func runSeed(configPath string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("seed", stderr)
	path := fs.String("file", "", "seed YAML file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *path == "" {
		fmt.Fprintln(stderr, "Error: --file is required")
		return 1
	}
	seed, err := loadSeed(*path)
	if err != nil {
		return fail(stderr, err)
	}
	ws, err := openWorkspace(configPath)
	if err != nil {
		return fail(stderr, err)
	}
	defer ws.Close()

	if ws.clock.CatchUp(seed.Gameday) {
		if err := ws.store.PutGameday(ws.clock.Current()); err != nil {
			return fail(stderr, err)
		}
	}
	events, err := seedEvents(ws.silo, seed, ws.clock.Current())
	if err != nil {
		return fail(stderr, err)
	}
	amounts := make([]*big.Int, 0, len(events))
	for _, event := range events {
		if err := ws.silo.Apply(event); err != nil {
			return fail(stderr, err)
		}
		amounts = append(amounts, event.Amount)
	}
	if err := ws.store.Save(ws.silo); err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, map[string]interface{}{
		"gameday":  ws.clock.Current(),
		"deposits": len(events),
		"ledgers":  len(ws.silo.Ledgers()),
		"raw":      sumAmounts(amounts).String(),
	})
}
