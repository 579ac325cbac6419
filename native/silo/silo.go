package silo

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	silerrors "hooliganhorde/core/errors"
	"hooliganhorde/core/rewards"
)

type ledgerKey struct {
	account common.Address
	symbol  string
}

// Silo indexes the ledgers of every account and whitelisted token.
type Silo struct {
	model   *rewards.Model
	tokens  map[string]Token
	ledgers map[ledgerKey]*Ledger
}

// New constructs a silo over the supplied token whitelist.
func New(model *rewards.Model, tokens []Token) (*Silo, error) {
	if model == nil {
		model = rewards.MustModel(rewards.DefaultParams())
	}
	s := &Silo{
		model:   model,
		tokens:  make(map[string]Token, len(tokens)),
		ledgers: make(map[ledgerKey]*Ledger),
	}
	for _, token := range tokens {
		if err := token.Validate(); err != nil {
			return nil, err
		}
		symbol := NormalizeSymbol(token.Symbol)
		if _, exists := s.tokens[symbol]; exists {
			return nil, fmt.Errorf("duplicate token %s", symbol)
		}
		token.Symbol = symbol
		s.tokens[symbol] = token
	}
	return s, nil
}

// Model returns the reward model shared by every ledger.
func (s *Silo) Model() *rewards.Model { return s.model }

// Token resolves a whitelisted token by symbol.
func (s *Silo) Token(symbol string) (Token, error) {
	token, ok := s.tokens[NormalizeSymbol(symbol)]
	if !ok {
		return Token{}, fmt.Errorf("%w: %s", silerrors.ErrUnknownToken, symbol)
	}
	return token, nil
}

// Tokens lists whitelisted tokens ordered by symbol.
func (s *Silo) Tokens() []Token {
	out := make([]Token, 0, len(s.tokens))
	for _, token := range s.tokens {
		out = append(out, token)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Ledger returns the ledger of account for symbol, creating it on first use.
func (s *Silo) Ledger(account common.Address, symbol string) (*Ledger, error) {
	token, err := s.Token(symbol)
	if err != nil {
		return nil, err
	}
	key := ledgerKey{account: account, symbol: token.Symbol}
	if ledger, ok := s.ledgers[key]; ok {
		return ledger, nil
	}
	ledger := NewLedger(account, token, s.model)
	s.ledgers[key] = ledger
	return ledger, nil
}

// Lookup returns an existing ledger without creating one.
func (s *Silo) Lookup(account common.Address, symbol string) (*Ledger, bool) {
	ledger, ok := s.ledgers[ledgerKey{account: account, symbol: NormalizeSymbol(symbol)}]
	return ledger, ok
}

// Ledgers lists every ledger ordered by account then token.
func (s *Silo) Ledgers() []*Ledger {
	out := make([]*Ledger, 0, len(s.ledgers))
	for _, ledger := range s.ledgers {
		out = append(out, ledger)
	}
	sort.Slice(out, func(i, j int) bool {
		cmp := bytes.Compare(out[i].account.Bytes(), out[j].account.Bytes())
		if cmp == 0 {
			return out[i].token.Symbol < out[j].token.Symbol
		}
		return cmp < 0
	})
	return out
}

// Prune drops ledgers without crates and returns how many were removed.
func (s *Silo) Prune() int {
	removed := 0
	for key, ledger := range s.ledgers {
		if ledger.Len() == 0 {
			delete(s.ledgers, key)
			removed++
		}
	}
	return removed
}
