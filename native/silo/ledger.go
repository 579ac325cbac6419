package silo

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"

	silerrors "hooliganhorde/core/errors"
	"hooliganhorde/core/rewards"
	"hooliganhorde/core/types"
)

// Debit names an amount to remove from the crate at Gameday.
type Debit struct {
	Gameday uint64
	Amount  *big.Int
}

// Balance aggregates the crates of a ledger, or the removals of a plan.
type Balance struct {
	Amount     *big.Int `json:"amount"`
	BDV        *big.Int `json:"bdv"`
	Horde      *big.Int `json:"horde"`
	GrownHorde *big.Int `json:"grownHorde"`
	Prospects  *big.Int `json:"prospects"`
}

func newBalance() Balance {
	return Balance{
		Amount:     big.NewInt(0),
		BDV:        big.NewInt(0),
		Horde:      big.NewInt(0),
		GrownHorde: big.NewInt(0),
		Prospects:  big.NewInt(0),
	}
}

func (b *Balance) add(crate types.Crate, grown *big.Int) {
	b.Amount.Add(b.Amount, zeroIfNil(crate.Amount))
	b.BDV.Add(b.BDV, zeroIfNil(crate.BDV))
	b.Horde.Add(b.Horde, zeroIfNil(crate.Horde))
	b.GrownHorde.Add(b.GrownHorde, zeroIfNil(grown))
	b.Prospects.Add(b.Prospects, zeroIfNil(crate.Prospects))
}

// TotalHorde returns base plus grown Horde.
func (b Balance) TotalHorde() *big.Int {
	return new(big.Int).Add(zeroIfNil(b.Horde), zeroIfNil(b.GrownHorde))
}

// Ledger holds the deposit crates of one account for one token, ordered by
// ascending gameday with at most one crate per gameday. A Ledger is not safe
// for concurrent use.
type Ledger struct {
	account common.Address
	token   Token
	model   *rewards.Model
	crates  []types.Crate
}

// NewLedger constructs an empty ledger.
func NewLedger(account common.Address, token Token, model *rewards.Model) *Ledger {
	if model == nil {
		model = rewards.MustModel(rewards.DefaultParams())
	}
	token.Symbol = NormalizeSymbol(token.Symbol)
	return &Ledger{account: account, token: token, model: model}
}

// Account returns the ledger owner.
func (l *Ledger) Account() common.Address { return l.account }

// Token returns the ledger token.
func (l *Ledger) Token() Token { return l.token }

// Len returns the number of crates.
func (l *Ledger) Len() int { return len(l.crates) }

// Deposit records amount tokens worth bdv deposited at gameday. A deposit in a
// gameday that already holds a crate is merged into it.
func (l *Ledger) Deposit(gameday uint64, amount, bdv *big.Int) (types.Crate, error) {
	if err := requirePositive("deposit amount", amount); err != nil {
		return types.Crate{}, err
	}
	if err := requireNonNegative("deposit bdv", bdv); err != nil {
		return types.Crate{}, err
	}
	crate := l.model.NewCrate(gameday, amount, bdv, l.token.ProspectsPerBDV)
	return l.merge(crate), nil
}

// InsertCrate adds a prebuilt crate, merging it with any crate at the same
// gameday.
func (l *Ledger) InsertCrate(crate types.Crate) (types.Crate, error) {
	if err := requirePositive("crate amount", crate.Amount); err != nil {
		return types.Crate{}, err
	}
	for name, value := range map[string]*big.Int{"crate bdv": crate.BDV, "crate horde": crate.Horde, "crate prospects": crate.Prospects} {
		if value != nil && value.Sign() < 0 {
			return types.Crate{}, fmt.Errorf("%w: %s must be non-negative", silerrors.ErrInvalidAmount, name)
		}
	}
	return l.merge(crate.Clone()), nil
}

func (l *Ledger) merge(crate types.Crate) types.Crate {
	idx, found := l.search(crate.Gameday)
	if found {
		l.crates[idx].Add(crate)
		return l.crates[idx].Clone()
	}
	l.crates = append(l.crates, types.Crate{})
	copy(l.crates[idx+1:], l.crates[idx:])
	l.crates[idx] = crate
	return crate.Clone()
}

func (l *Ledger) search(gameday uint64) (int, bool) {
	idx := sort.Search(len(l.crates), func(i int) bool {
		return l.crates[i].Gameday >= gameday
	})
	return idx, idx < len(l.crates) && l.crates[idx].Gameday == gameday
}

// Crates returns copies of the crates ordered oldest first.
func (l *Ledger) Crates() []types.Crate {
	out := make([]types.Crate, len(l.crates))
	for i := range l.crates {
		out[i] = l.crates[i].Clone()
	}
	return out
}

// Crate returns the crate deposited at gameday.
func (l *Ledger) Crate(gameday uint64) (types.Crate, bool) {
	idx, found := l.search(gameday)
	if !found {
		return types.Crate{}, false
	}
	return l.crates[idx].Clone(), true
}

// Debit removes amount from the crate at gameday and returns the removed
// portion. BDV, Horde and Prospects are reduced proportionally. The crate is
// deleted once empty. On error the ledger is unchanged.
func (l *Ledger) Debit(gameday uint64, amount *big.Int) (types.Crate, error) {
	removed, err := l.DebitMany([]Debit{{Gameday: gameday, Amount: amount}})
	if err != nil {
		return types.Crate{}, err
	}
	return removed[0], nil
}

// DebitMany applies every debit or none of them. Debits naming the same
// gameday are applied in order.
func (l *Ledger) DebitMany(debits []Debit) ([]types.Crate, error) {
	working := l.Clone()
	removed := make([]types.Crate, 0, len(debits))
	for _, debit := range debits {
		out, err := working.debit(debit.Gameday, debit.Amount)
		if err != nil {
			return nil, err
		}
		removed = append(removed, out)
	}
	l.crates = working.crates
	return removed, nil
}

func (l *Ledger) debit(gameday uint64, amount *big.Int) (types.Crate, error) {
	if err := requirePositive("debit amount", amount); err != nil {
		return types.Crate{}, err
	}
	idx, found := l.search(gameday)
	if !found {
		return types.Crate{}, fmt.Errorf("%w: %s has no %s crate at gameday %d", silerrors.ErrCrateNotFound, l.account.Hex(), l.token.Symbol, gameday)
	}
	crate := l.crates[idx]
	if amount.Cmp(crate.Amount) > 0 {
		return types.Crate{}, fmt.Errorf("%w: debit %s from crate %d holding %s", silerrors.ErrInsufficientLotBalance, amount, gameday, crate.Amount)
	}
	removed, remaining := split(crate, amount)
	if remaining.IsEmpty() {
		l.crates = append(l.crates[:idx], l.crates[idx+1:]...)
	} else {
		l.crates[idx] = remaining
	}
	return removed, nil
}

// TotalAmount returns the sum of crate amounts.
func (l *Ledger) TotalAmount() *big.Int {
	total := big.NewInt(0)
	for i := range l.crates {
		total.Add(total, zeroIfNil(l.crates[i].Amount))
	}
	return total
}

// TotalBDV returns the sum of crate BDV.
func (l *Ledger) TotalBDV() *big.Int {
	total := big.NewInt(0)
	for i := range l.crates {
		total.Add(total, zeroIfNil(l.crates[i].BDV))
	}
	return total
}

// Totals aggregates the ledger at the current gameday.
func (l *Ledger) Totals(current uint64) (Balance, error) {
	balance := newBalance()
	for i := range l.crates {
		grown, err := l.model.GrownHorde(l.crates[i], current)
		if err != nil {
			return Balance{}, err
		}
		balance.add(l.crates[i], grown)
	}
	return balance, nil
}

// Clone returns an independent copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{
		account: l.account,
		token:   l.token,
		model:   l.model,
		crates:  l.Crates(),
	}
}

// Digest identifies the ledger snapshot. Any deposit or debit changes it.
func (l *Ledger) Digest() ([32]byte, error) {
	payload, err := rlp.EncodeToBytes(struct {
		Account []byte
		Token   string
		Crates  []encodedCrate
	}{
		Account: l.account.Bytes(),
		Token:   l.token.Symbol,
		Crates:  toEncoded(l.crates),
	})
	if err != nil {
		return [32]byte{}, fmt.Errorf("encode ledger: %w", err)
	}
	return blake3.Sum256(payload), nil
}

type encodedCrate struct {
	Gameday   uint64
	Amount    []byte
	BDV       []byte
	Horde     []byte
	Prospects []byte
}

func toEncoded(crates []types.Crate) []encodedCrate {
	out := make([]encodedCrate, len(crates))
	for i, crate := range crates {
		out[i] = encodedCrate{
			Gameday:   crate.Gameday,
			Amount:    zeroIfNil(crate.Amount).Bytes(),
			BDV:       zeroIfNil(crate.BDV).Bytes(),
			Horde:     zeroIfNil(crate.Horde).Bytes(),
			Prospects: zeroIfNil(crate.Prospects).Bytes(),
		}
	}
	return out
}

// EncodeCrates serialises crates with RLP.
func EncodeCrates(crates []types.Crate) ([]byte, error) {
	return rlp.EncodeToBytes(toEncoded(crates))
}

// DecodeCrates reverses EncodeCrates.
func DecodeCrates(data []byte) ([]types.Crate, error) {
	var raw []encodedCrate
	if err := rlp.DecodeBytes(data, &raw); err != nil {
		return nil, err
	}
	out := make([]types.Crate, len(raw))
	for i, entry := range raw {
		out[i] = types.Crate{
			Gameday:   entry.Gameday,
			Amount:    new(big.Int).SetBytes(entry.Amount),
			BDV:       new(big.Int).SetBytes(entry.BDV),
			Horde:     new(big.Int).SetBytes(entry.Horde),
			Prospects: new(big.Int).SetBytes(entry.Prospects),
		}
	}
	return out, nil
}
