package proof

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/preconf-labs/gateway/encoding/ssz"
)

func testTransactions(n int) [][]byte {
	txs := make([][]byte, n)
	for i := range txs {
		tx := make([]byte, 100+i)
		for j := range tx {
			tx[j] = byte(i + j)
		}
		txs[i] = tx
	}
	return txs
}

func provenLeaves(t *testing.T, tree *TransactionsTree, txs [][]byte, indices []uint64) []Leaf {
	t.Helper()
	leaves := make([]Leaf, len(indices))
	for i, idx := range indices {
		root, err := TransactionRoot(txs[idx])
		require.NoError(t, err)
		leaves[i] = Leaf{GeneralizedIndex: LeafGeneralizedIndex(idx), Root: root}
	}
	return leaves
}

func TestTransactionsTree_RootMatchesManualMerkleization(t *testing.T) {
	txs := testTransactions(3)
	tree, err := NewTransactionsTree(txs)
	require.NoError(t, err)

	// Fold the three leaf roots up by hand, padding with zero subtrees.
	nodes := make([][32]byte, 3)
	for i, tx := range txs {
		root, err := TransactionRoot(tx)
		require.NoError(t, err)
		nodes[i] = root
	}
	a := combine(nodes[0], nodes[1])
	b := combine(nodes[2], ssz.ZeroHashes[0])
	acc := combine(a, b)
	for depth := 2; depth < 20; depth++ {
		acc = combine(acc, ssz.ZeroHashes[depth])
	}
	want := ssz.MixInLength(acc, 3)

	require.Equal(t, want, tree.HashTreeRoot())
}

func TestTransactionsTree_RootIsStable(t *testing.T) {
	tree, err := NewTransactionsTree(testTransactions(7))
	require.NoError(t, err)
	first := tree.HashTreeRoot()
	require.Equal(t, first, tree.HashTreeRoot())
}

func TestTransactionsTree_CountChangesRoot(t *testing.T) {
	txs := testTransactions(4)
	treeA, err := NewTransactionsTree(txs)
	require.NoError(t, err)
	treeB, err := NewTransactionsTree(txs[:3])
	require.NoError(t, err)
	require.NotEqual(t, treeA.HashTreeRoot(), treeB.HashTreeRoot())
}

func TestTransactionsTree_EmptyList(t *testing.T) {
	tree, err := NewTransactionsTree(nil)
	require.NoError(t, err)
	acc := ssz.ZeroHashes[20]
	require.Equal(t, ssz.MixInLength(acc, 0), tree.HashTreeRoot())
}

func TestHelperIndices_SingleLeafIncludesLengthChunk(t *testing.T) {
	helpers := HelperIndices([]uint64{LeafGeneralizedIndex(0)})
	// 20 vector siblings plus the mixed-in length chunk.
	require.Len(t, helpers, 21)
	require.Equal(t, uint64(3), helpers[len(helpers)-1])
	for i := 1; i < len(helpers); i++ {
		require.Greater(t, helpers[i-1], helpers[i])
	}
}

func TestHelperIndices_SiblingLeavesShareBranch(t *testing.T) {
	single := HelperIndices([]uint64{LeafGeneralizedIndex(2)})
	pair := HelperIndices([]uint64{LeafGeneralizedIndex(2), LeafGeneralizedIndex(3)})
	// Proving the sibling too removes exactly one helper: the sibling leaf.
	require.Len(t, pair, len(single)-1)
}

func TestProveAndVerify_SingleLeaf(t *testing.T) {
	txs := testTransactions(5)
	tree, err := NewTransactionsTree(txs)
	require.NoError(t, err)

	mp, err := tree.Prove([]uint64{2})
	require.NoError(t, err)
	require.Len(t, mp.GeneralizedIndexes, 1)

	expected := provenLeaves(t, tree, txs, []uint64{2})
	require.NoError(t, Verify(tree.HashTreeRoot(), mp, expected))
}

func TestProveAndVerify_MultipleLeaves(t *testing.T) {
	txs := testTransactions(9)
	tree, err := NewTransactionsTree(txs)
	require.NoError(t, err)

	for _, indices := range [][]uint64{
		{0},
		{0, 1},
		{1, 4},
		{0, 3, 8},
		{0, 1, 2, 3, 4, 5, 6, 7, 8},
	} {
		mp, err := tree.Prove(indices)
		require.NoError(t, err)
		expected := provenLeaves(t, tree, txs, indices)
		require.NoError(t, Verify(tree.HashTreeRoot(), mp, expected))
	}
}

func TestProve_DeduplicatesIndices(t *testing.T) {
	txs := testTransactions(4)
	tree, err := NewTransactionsTree(txs)
	require.NoError(t, err)

	mp, err := tree.Prove([]uint64{1, 1, 3})
	require.NoError(t, err)
	require.Len(t, mp.GeneralizedIndexes, 2)

	expected := provenLeaves(t, tree, txs, []uint64{1, 3})
	require.NoError(t, Verify(tree.HashTreeRoot(), mp, expected))
}

func TestProve_OutOfRange(t *testing.T) {
	tree, err := NewTransactionsTree(testTransactions(2))
	require.NoError(t, err)
	_, err = tree.Prove([]uint64{2})
	require.ErrorIs(t, err, ErrLeafOutOfRange)
}

func TestProve_NoLeaves(t *testing.T) {
	tree, err := NewTransactionsTree(testTransactions(2))
	require.NoError(t, err)
	_, err = tree.Prove(nil)
	require.ErrorIs(t, err, ErrProofIncomplete)
}

func TestVerify_TamperedSiblingHash(t *testing.T) {
	txs := testTransactions(6)
	tree, err := NewTransactionsTree(txs)
	require.NoError(t, err)

	mp, err := tree.Prove([]uint64{1, 4})
	require.NoError(t, err)
	mp.Hashes[0][5] ^= 0xff

	expected := provenLeaves(t, tree, txs, []uint64{1, 4})
	require.ErrorIs(t, Verify(tree.HashTreeRoot(), mp, expected), ErrProofInvalid)
}

func TestVerify_WrongRoot(t *testing.T) {
	txs := testTransactions(6)
	tree, err := NewTransactionsTree(txs)
	require.NoError(t, err)

	mp, err := tree.Prove([]uint64{0, 5})
	require.NoError(t, err)
	expected := provenLeaves(t, tree, txs, []uint64{0, 5})

	root := tree.HashTreeRoot()
	root[0] ^= 0x01
	require.ErrorIs(t, Verify(root, mp, expected), ErrProofInvalid)
}

func TestVerify_LeafNotCovered(t *testing.T) {
	txs := testTransactions(6)
	tree, err := NewTransactionsTree(txs)
	require.NoError(t, err)

	mp, err := tree.Prove([]uint64{1})
	require.NoError(t, err)
	expected := provenLeaves(t, tree, txs, []uint64{1, 2})
	require.ErrorIs(t, Verify(tree.HashTreeRoot(), mp, expected), ErrProofIncomplete)
}

func TestVerify_ExtraClaimedLeaf(t *testing.T) {
	txs := testTransactions(6)
	tree, err := NewTransactionsTree(txs)
	require.NoError(t, err)

	mp, err := tree.Prove([]uint64{1, 2})
	require.NoError(t, err)
	expected := provenLeaves(t, tree, txs, []uint64{1})
	require.ErrorIs(t, Verify(tree.HashTreeRoot(), mp, expected), ErrProofInvalid)
}

func TestVerify_HashCountMismatch(t *testing.T) {
	txs := testTransactions(6)
	tree, err := NewTransactionsTree(txs)
	require.NoError(t, err)

	mp, err := tree.Prove([]uint64{3})
	require.NoError(t, err)
	expected := provenLeaves(t, tree, txs, []uint64{3})

	truncated := &Multiproof{GeneralizedIndexes: mp.GeneralizedIndexes, Hashes: mp.Hashes[:len(mp.Hashes)-1]}
	require.ErrorIs(t, Verify(tree.HashTreeRoot(), truncated, expected), ErrProofIncomplete)

	padded := &Multiproof{GeneralizedIndexes: mp.GeneralizedIndexes, Hashes: append(append([][32]byte{}, mp.Hashes...), [32]byte{})}
	require.ErrorIs(t, Verify(tree.HashTreeRoot(), padded, expected), ErrProofInvalid)
}

func TestVerify_SwappedTransactionsFailAgainstNewRoot(t *testing.T) {
	txs := testTransactions(5)
	tree, err := NewTransactionsTree(txs)
	require.NoError(t, err)

	mp, err := tree.Prove([]uint64{3, 4})
	require.NoError(t, err)
	expected := provenLeaves(t, tree, txs, []uint64{3, 4})
	require.NoError(t, Verify(tree.HashTreeRoot(), mp, expected))

	// A payload that swaps the two proven transactions has a different
	// transactions root, so the old proof must not carry over.
	swapped := testTransactions(5)
	swapped[3], swapped[4] = swapped[4], swapped[3]
	swappedTree, err := NewTransactionsTree(swapped)
	require.NoError(t, err)
	require.ErrorIs(t, Verify(swappedTree.HashTreeRoot(), mp, expected), ErrProofInvalid)
}

func TestTransactionRoot_BindsContentAndLength(t *testing.T) {
	a, err := TransactionRoot([]byte{1, 2, 3})
	require.NoError(t, err)
	b, err := TransactionRoot([]byte{1, 2, 4})
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	// Zero padding is not free: the byte length is mixed into the root.
	padded, err := TransactionRoot([]byte{1, 2, 3, 0})
	require.NoError(t, err)
	require.NotEqual(t, a, padded)
}

func TestGeneralizedIndexRoundTrip(t *testing.T) {
	for _, idx := range []uint64{0, 1, 17, 1<<20 - 1} {
		g := LeafGeneralizedIndex(idx)
		back, err := TxIndexFromGeneralizedIndex(g)
		require.NoError(t, err)
		require.Equal(t, idx, back)
	}
	_, err := TxIndexFromGeneralizedIndex(3)
	require.ErrorIs(t, err, ErrLeafOutOfRange)
	_, err = TxIndexFromGeneralizedIndex(2 * LeafGeneralizedIndexBase)
	require.ErrorIs(t, err, ErrLeafOutOfRange)
}

func TestVerify_ConflictingRootsAtOneLeaf(t *testing.T) {
	txs := testTransactions(4)
	tree, err := NewTransactionsTree(txs)
	require.NoError(t, err)
	mp, err := tree.Prove([]uint64{1})
	require.NoError(t, err)

	leaves := provenLeaves(t, tree, txs, []uint64{1})
	otherRoot, err := TransactionRoot(txs[2])
	require.NoError(t, err)
	leaves = append(leaves, Leaf{GeneralizedIndex: LeafGeneralizedIndex(1), Root: otherRoot})

	err = Verify(tree.HashTreeRoot(), mp, leaves)
	require.ErrorIs(t, err, ErrProofInvalid)
}
