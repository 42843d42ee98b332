// Package proof builds and verifies Merkle multiproofs of transaction
// inclusion against an execution payload's transactions root. The tree
// mirrors the SSZ Merkleization of List[Transaction, 2^20]: transaction
// hash tree roots merkleized at a fixed depth of 20 with the list length
// mixed into the final root.
package proof

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/preconf-labs/gateway/config/params"
	"github.com/preconf-labs/gateway/encoding/ssz"
)

const (
	// listDepth is the merkle depth of the transaction list vector,
	// log2(MaxTransactionsPerPayload).
	listDepth = 20

	// LeafGeneralizedIndexBase is the generalized index of transaction 0.
	// The length mix-in adds one level above the list vector, so leaves sit
	// at depth listDepth+1 from the transactions root.
	LeafGeneralizedIndexBase = uint64(1) << (listDepth + 1)

	// lengthGeneralizedIndex addresses the mixed-in list length chunk.
	lengthGeneralizedIndex = uint64(3)
)

// ErrTooManyTransactions is returned when a transaction list exceeds the
// payload's SSZ list limit.
var ErrTooManyTransactions = errors.New("transaction list exceeds payload limit")

// ErrTransactionTooLarge is returned for a transaction larger than the SSZ
// byte list limit.
var ErrTransactionTooLarge = errors.New("transaction exceeds maximum encoded size")

// ErrLeafOutOfRange is returned when a requested leaf index does not exist
// in the tree.
var ErrLeafOutOfRange = errors.New("leaf index out of range")

// TransactionsTree is the Merkle tree over an ordered transaction list.
//
// Leaf roots are hashed exactly once, at construction, and the internal
// layers and root are computed lazily on first access and cached. Callers
// can therefore never observe a root extracted from unhashed leaves, and a
// cached tree can never be recomputed from stale state.
type TransactionsTree struct {
	leaves [][32]byte
	count  uint64

	buildOnce sync.Once
	layers    [][][32]byte
	root      [32]byte
}

// TransactionRoot computes the SSZ hash tree root of a single opaque signed
// transaction, i.e. the leaf value the transaction occupies in the tree.
func TransactionRoot(tx []byte) ([32]byte, error) {
	maxBytes := params.GatewayConfiguration().MaxBytesPerTransaction
	if uint64(len(tx)) > maxBytes {
		return [32]byte{}, ErrTransactionTooLarge
	}
	return ssz.ByteListRoot(tx, maxBytes), nil
}

// NewTransactionsTree hashes every transaction into its leaf root and
// returns the tree. The in-block transaction order is preserved: leaf i is
// transaction i.
func NewTransactionsTree(txs [][]byte) (*TransactionsTree, error) {
	if uint64(len(txs)) > params.GatewayConfiguration().MaxTransactionsPerPayload {
		return nil, ErrTooManyTransactions
	}
	leaves := make([][32]byte, len(txs))
	for i, tx := range txs {
		root, err := TransactionRoot(tx)
		if err != nil {
			return nil, errors.Wrapf(err, "transaction %d", i)
		}
		leaves[i] = root
	}
	return &TransactionsTree{leaves: leaves, count: uint64(len(txs))}, nil
}

// build materializes the internal layers bottom-up. Layer L only holds the
// nodes covering real leaves; everything to the right is a zero-subtree
// root available from ssz.ZeroHashes.
func (t *TransactionsTree) build() {
	layers := make([][][32]byte, listDepth+1)
	layers[0] = t.leaves
	for i := 0; i < listDepth; i++ {
		current := layers[i]
		if len(current)%2 == 1 {
			current = append(current, ssz.ZeroHashes[i])
		}
		next := make([][32]byte, len(current)/2)
		for j := 0; j < len(current); j += 2 {
			next[j/2] = combine(current[j], current[j+1])
		}
		layers[i+1] = next
	}
	t.layers = layers
	t.root = ssz.MixInLength(t.node(listDepth, 0), t.count)
}

// HashTreeRoot returns the length-mixed transactions root. The first call
// finalizes the tree; later calls return the cached value.
func (t *TransactionsTree) HashTreeRoot() [32]byte {
	t.buildOnce.Do(t.build)
	return t.root
}

// NumTransactions returns the number of leaves in the tree.
func (t *TransactionsTree) NumTransactions() uint64 {
	return t.count
}

// node returns the value of the tree node at the given layer (0 = leaves)
// and index, substituting the zero-subtree root past the populated range.
func (t *TransactionsTree) node(layer int, index uint64) [32]byte {
	if index < uint64(len(t.layers[layer])) {
		return t.layers[layer][index]
	}
	return ssz.ZeroHashes[layer]
}

// nodeAt resolves a generalized index into the node value it addresses.
func (t *TransactionsTree) nodeAt(gindex uint64) ([32]byte, error) {
	if gindex == lengthGeneralizedIndex {
		return ssz.Uint64Root(t.count), nil
	}
	depth := generalizedIndexDepth(gindex)
	if depth < 1 || depth > listDepth+1 {
		return [32]byte{}, errors.Wrapf(ErrLeafOutOfRange, "generalized index %d", gindex)
	}
	offset := gindex - (uint64(1) << depth)
	// Everything except the length chunk lives in the left (list vector)
	// subtree of the mixed root.
	if depth > 1 && offset >= uint64(1)<<(depth-1) {
		return [32]byte{}, errors.Wrapf(ErrLeafOutOfRange, "generalized index %d", gindex)
	}
	return t.node(listDepth+1-depth, offset), nil
}

// LeafGeneralizedIndex maps a transaction list index to its generalized
// index in the tree.
func LeafGeneralizedIndex(txIndex uint64) uint64 {
	return LeafGeneralizedIndexBase + txIndex
}

// TxIndexFromGeneralizedIndex is the inverse of LeafGeneralizedIndex.
func TxIndexFromGeneralizedIndex(gindex uint64) (uint64, error) {
	if gindex < LeafGeneralizedIndexBase || gindex >= 2*LeafGeneralizedIndexBase {
		return 0, errors.Wrapf(ErrLeafOutOfRange, "generalized index %d is not a transaction leaf", gindex)
	}
	return gindex - LeafGeneralizedIndexBase, nil
}
