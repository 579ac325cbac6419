package trie

import (
	"testing"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func leaf(key, value string) Leaf {
	return Leaf{Key: crypto.Keccak256([]byte(key)), Value: []byte(value)}
}

func TestRootEmpty(t *testing.T) {
	root, err := Root(nil)
	require.NoError(t, err)
	require.Equal(t, gethtypes.EmptyRootHash, root)
}

func TestRootIsOrderIndependent(t *testing.T) {
	a, err := Root([]Leaf{leaf("a", "1"), leaf("b", "2"), leaf("c", "3")})
	require.NoError(t, err)
	b, err := Root([]Leaf{leaf("c", "3"), leaf("a", "1"), leaf("b", "2")})
	require.NoError(t, err)
	require.Equal(t, a, b)

	changed, err := Root([]Leaf{leaf("a", "1"), leaf("b", "2"), leaf("c", "4")})
	require.NoError(t, err)
	require.NotEqual(t, a, changed)
}

func TestRootRejectsDuplicates(t *testing.T) {
	_, err := Root([]Leaf{leaf("a", "1"), leaf("a", "2")})
	require.Error(t, err)
}
