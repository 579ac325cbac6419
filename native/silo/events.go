package silo

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Event is a protocol event that mutates a single silo ledger.
type Event interface {
	EventType() string
	// Target names the ledger the event mutates.
	Target() (common.Address, string)
	apply(*Ledger) error
}

// AddDeposit records a deposit of Amount tokens worth BDV at Gameday.
type AddDeposit struct {
	Account common.Address
	Token   string
	Gameday uint64
	Amount  *big.Int
	BDV     *big.Int
}

func (AddDeposit) EventType() string { return "AddDeposit" }

func (e AddDeposit) Target() (common.Address, string) { return e.Account, e.Token }

func (e AddDeposit) apply(ledger *Ledger) error {
	_, err := ledger.Deposit(e.Gameday, e.Amount, e.BDV)
	return err
}

// RemoveDeposit records the removal of Amount from the crate at Gameday.
type RemoveDeposit struct {
	Account common.Address
	Token   string
	Gameday uint64
	Amount  *big.Int
}

func (RemoveDeposit) EventType() string { return "RemoveDeposit" }

func (e RemoveDeposit) Target() (common.Address, string) { return e.Account, e.Token }

func (e RemoveDeposit) apply(ledger *Ledger) error {
	_, err := ledger.Debit(e.Gameday, e.Amount)
	return err
}

// RemoveDeposits records a multi-crate removal emitted by a single call.
type RemoveDeposits struct {
	Account  common.Address
	Token    string
	Gamedays []uint64
	Amounts  []*big.Int
}

func (RemoveDeposits) EventType() string { return "RemoveDeposits" }

func (e RemoveDeposits) Target() (common.Address, string) { return e.Account, e.Token }

func (e RemoveDeposits) apply(ledger *Ledger) error {
	if len(e.Gamedays) != len(e.Amounts) {
		return fmt.Errorf("remove deposits: %d gamedays for %d amounts", len(e.Gamedays), len(e.Amounts))
	}
	debits := make([]Debit, len(e.Gamedays))
	for i := range e.Gamedays {
		debits[i] = Debit{Gameday: e.Gamedays[i], Amount: e.Amounts[i]}
	}
	_, err := ledger.DebitMany(debits)
	return err
}

// Apply applies the event to the silo. Failed events leave ledgers unchanged.
func (s *Silo) Apply(event Event) error {
	if event == nil {
		return fmt.Errorf("nil event")
	}
	ledger, err := s.Ledger(event.Target())
	if err == nil {
		err = event.apply(ledger)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", event.EventType(), err)
	}
	return nil
}

// Preview applies the event to a copy of its target ledger and returns the
// copy. The silo is not modified and no ledger is created.
func (s *Silo) Preview(event Event) (*Ledger, error) {
	if event == nil {
		return nil, fmt.Errorf("nil event")
	}
	account, symbol := event.Target()
	token, err := s.Token(symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", event.EventType(), err)
	}
	var working *Ledger
	if ledger, ok := s.Lookup(account, token.Symbol); ok {
		working = ledger.Clone()
	} else {
		working = NewLedger(account, token, s.model)
	}
	if err := event.apply(working); err != nil {
		return nil, fmt.Errorf("%s: %w", event.EventType(), err)
	}
	return working, nil
}
