package silo

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	nativesilo "hooliganhorde/native/silo"
	"hooliganhorde/storage"
	statetrie "hooliganhorde/storage/trie"
)

var (
	gamedayKey     = []byte("silo/gameday")
	ledgerIndexKey = []byte("silo/ledgers")
	ledgerPrefix   = "silo/ledger/"
)

type storedLedger struct {
	Account []byte
	Token   string
	Crates  []byte
}

type indexEntry struct {
	Account []byte
	Token   string
}

// Store persists silo ledgers and the current gameday to a key-value
// database. Each ledger is stored under a key derived from its account and
// token; an index lists every stored ledger so the silo can be reloaded
// without iterating the database.
type Store struct {
	mu sync.Mutex
	db storage.Database
}

// NewStore wraps db.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func ledgerID(account common.Address, symbol string) []byte {
	return crypto.Keccak256(account.Bytes(), []byte(nativesilo.NormalizeSymbol(symbol)))
}

func ledgerKey(account common.Address, symbol string) []byte {
	return []byte(ledgerPrefix + hex.EncodeToString(ledgerID(account, symbol)))
}

// Gameday returns the persisted gameday. ok is false when none was stored.
func (s *Store) Gameday() (gameday uint64, ok bool, err error) {
	raw, err := s.db.Get(gamedayKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(raw) != 8 {
		return 0, false, fmt.Errorf("silo store: corrupt gameday record")
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

// PutGameday persists the current gameday.
func (s *Store) PutGameday(gameday uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], gameday)
	return s.db.Put(gamedayKey, buf[:])
}

func (s *Store) index() ([]indexEntry, error) {
	raw, err := s.db.Get(ledgerIndexKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []indexEntry
	if err := rlp.DecodeBytes(raw, &entries); err != nil {
		return nil, fmt.Errorf("silo store: decode index: %w", err)
	}
	return entries, nil
}

func (s *Store) putIndex(entries []indexEntry) error {
	sort.Slice(entries, func(i, j int) bool {
		if string(entries[i].Account) == string(entries[j].Account) {
			return entries[i].Token < entries[j].Token
		}
		return string(entries[i].Account) < string(entries[j].Account)
	})
	encoded, err := rlp.EncodeToBytes(entries)
	if err != nil {
		return err
	}
	return s.db.Put(ledgerIndexKey, encoded)
}

// SaveLedger persists the crates of ledger. Empty ledgers are removed from
// the store.
func (s *Store) SaveLedger(ledger *nativesilo.Ledger) error {
	if ledger == nil {
		return fmt.Errorf("silo store: nil ledger")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	account := ledger.Account()
	symbol := ledger.Token().Symbol
	entries, err := s.index()
	if err != nil {
		return err
	}
	position := -1
	for i, entry := range entries {
		if common.BytesToAddress(entry.Account) == account && entry.Token == symbol {
			position = i
			break
		}
	}

	if ledger.Len() == 0 {
		if err := s.db.Delete(ledgerKey(account, symbol)); err != nil {
			return err
		}
		if position < 0 {
			return nil
		}
		entries = append(entries[:position], entries[position+1:]...)
		return s.putIndex(entries)
	}

	crates, err := nativesilo.EncodeCrates(ledger.Crates())
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(storedLedger{Account: account.Bytes(), Token: symbol, Crates: crates})
	if err != nil {
		return err
	}
	if err := s.db.Put(ledgerKey(account, symbol), encoded); err != nil {
		return err
	}
	if position >= 0 {
		return nil
	}
	entries = append(entries, indexEntry{Account: account.Bytes(), Token: symbol})
	return s.putIndex(entries)
}

// LoadLedger restores the stored crates of account and symbol into s. It
// reports false when nothing was stored.
func (s *Store) LoadLedger(into *nativesilo.Silo, account common.Address, symbol string) (bool, error) {
	raw, err := s.db.Get(ledgerKey(account, symbol))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var record storedLedger
	if err := rlp.DecodeBytes(raw, &record); err != nil {
		return false, fmt.Errorf("silo store: decode ledger: %w", err)
	}
	crates, err := nativesilo.DecodeCrates(record.Crates)
	if err != nil {
		return false, fmt.Errorf("silo store: decode crates: %w", err)
	}
	ledger, err := into.Ledger(account, symbol)
	if err != nil {
		return false, err
	}
	if ledger.Len() > 0 {
		return false, fmt.Errorf("silo store: ledger %s %s already populated", account.Hex(), symbol)
	}
	for _, crate := range crates {
		if _, err := ledger.InsertCrate(crate); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Load restores every indexed ledger into s and returns how many were
// loaded.
func (s *Store) Load(into *nativesilo.Silo) (int, error) {
	s.mu.Lock()
	entries, err := s.index()
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, entry := range entries {
		ok, err := s.LoadLedger(into, common.BytesToAddress(entry.Account), entry.Token)
		if err != nil {
			return loaded, err
		}
		if ok {
			loaded++
		}
	}
	return loaded, nil
}

// Save persists every ledger of the silo.
func (s *Store) Save(from *nativesilo.Silo) error {
	for _, ledger := range from.Ledgers() {
		if err := s.SaveLedger(ledger); err != nil {
			return err
		}
	}
	return nil
}

// StateRoot commits to every non-empty ledger of the silo.
func StateRoot(from *nativesilo.Silo) (common.Hash, error) {
	var leaves []statetrie.Leaf
	for _, ledger := range from.Ledgers() {
		if ledger.Len() == 0 {
			continue
		}
		digest, err := ledger.Digest()
		if err != nil {
			return common.Hash{}, err
		}
		leaves = append(leaves, statetrie.Leaf{
			Key:   ledgerID(ledger.Account(), ledger.Token().Symbol),
			Value: digest[:],
		})
	}
	return statetrie.Root(leaves)
}
