package trie

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	gethtrie "github.com/ethereum/go-ethereum/trie"
)

// Leaf is a single keyed value committed into a root.
type Leaf struct {
	Key   []byte
	Value []byte
}

// Root builds a Merkle Patricia root over leaves using go-ethereum's stack
// trie. Leaves may be supplied in any order; keys must be unique and of equal
// length (callers hash them with keccak256). The empty set commits to the
// empty root hash.
//
// Nothing is persisted: the root is a commitment other nodes can recompute
// from the same leaves.
func Root(leaves []Leaf) (common.Hash, error) {
	sorted := make([]Leaf, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Key, sorted[j].Key) < 0
	})
	st := gethtrie.NewStackTrie(nil)
	for i, leaf := range sorted {
		if i > 0 && bytes.Equal(sorted[i-1].Key, leaf.Key) {
			return common.Hash{}, fmt.Errorf("trie: duplicate key %x", leaf.Key)
		}
		if len(leaf.Value) == 0 {
			return common.Hash{}, fmt.Errorf("trie: empty value for key %x", leaf.Key)
		}
		if err := st.Update(leaf.Key, leaf.Value); err != nil {
			return common.Hash{}, err
		}
	}
	return st.Hash(), nil
}
