package proof

import (
	"math/bits"
	"sort"

	"github.com/pkg/errors"

	"github.com/preconf-labs/gateway/crypto/hash"
)

// ErrProofInvalid is returned when a proof's recomputed root does not match
// the claimed transactions root, or when the proof is structurally
// malformed. It is terminal for the response carrying the proof.
var ErrProofInvalid = errors.New("inclusion proof did not verify against the transactions root")

// ErrProofIncomplete is returned when a proof does not cover every expected
// leaf, or supplies fewer sibling hashes than its leaf set requires.
var ErrProofIncomplete = errors.New("inclusion proof is missing required leaves or hashes")

// Multiproof is a single Merkle proof covering several leaves at once. The
// sibling hash set is minimal: internal nodes derivable from the leaves are
// never included, and hashes shared between leaf paths appear once. Hashes
// are ordered by descending generalized index, the canonical SSZ multiproof
// order.
type Multiproof struct {
	GeneralizedIndexes []uint64
	Hashes             [][32]byte
}

// Leaf pairs a generalized index with the node value claimed for it.
type Leaf struct {
	GeneralizedIndex uint64
	Root             [32]byte
}

func combine(left, right [32]byte) [32]byte {
	return hash.Combi(left, right)
}

func generalizedIndexDepth(gindex uint64) int {
	return bits.Len64(gindex) - 1
}

// HelperIndices returns the generalized indices of the sibling hashes needed
// to recompute the root from the given leaf indices, sorted by descending
// generalized index. Nodes lying on (or derivable from) a leaf path are
// excluded, which is what makes the resulting proof a deduplicated
// multiproof rather than a bundle of independent branches.
func HelperIndices(indices []uint64) []uint64 {
	branch := make(map[uint64]struct{})
	path := make(map[uint64]struct{})
	for _, g := range indices {
		for k := g; k > 1; k >>= 1 {
			branch[k^1] = struct{}{}
			path[k] = struct{}{}
		}
	}
	helpers := make([]uint64, 0, len(branch))
	for k := range branch {
		if _, onPath := path[k]; !onPath {
			helpers = append(helpers, k)
		}
	}
	sort.Slice(helpers, func(i, j int) bool { return helpers[i] > helpers[j] })
	return helpers
}

// Prove constructs the minimal multiproof covering the transactions at the
// given list indices. The tree is finalized on first use; repeated proofs
// against the same tree reuse the cached layers.
func (t *TransactionsTree) Prove(txIndices []uint64) (*Multiproof, error) {
	t.buildOnce.Do(t.build)
	if len(txIndices) == 0 {
		return nil, errors.Wrap(ErrProofIncomplete, "no leaves requested")
	}
	gindices := make([]uint64, 0, len(txIndices))
	seen := make(map[uint64]struct{}, len(txIndices))
	for _, idx := range txIndices {
		if idx >= t.count {
			return nil, errors.Wrapf(ErrLeafOutOfRange, "transaction index %d of %d", idx, t.count)
		}
		g := LeafGeneralizedIndex(idx)
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		gindices = append(gindices, g)
	}
	helpers := HelperIndices(gindices)
	hashes := make([][32]byte, len(helpers))
	for i, g := range helpers {
		node, err := t.nodeAt(g)
		if err != nil {
			return nil, err
		}
		hashes[i] = node
	}
	return &Multiproof{GeneralizedIndexes: gindices, Hashes: hashes}, nil
}

// Verify recomputes the root reachable from the expected leaves and the
// proof's sibling hashes and compares it to the claimed transactions root.
//
// The proof's leaf set and the expected leaf set must coincide: an expected
// leaf absent from the proof yields ErrProofIncomplete, while a proof index
// without an expected value is unverifiable and yields ErrProofInvalid.
// Sibling hashes are consumed in descending generalized index order, the
// same order Prove emits them.
func Verify(root [32]byte, mp *Multiproof, expected []Leaf) error {
	if mp == nil || len(expected) == 0 {
		return errors.Wrap(ErrProofIncomplete, "empty proof")
	}
	proofSet := make(map[uint64]struct{}, len(mp.GeneralizedIndexes))
	for _, g := range mp.GeneralizedIndexes {
		if g < 2 {
			return errors.Wrapf(ErrProofInvalid, "generalized index %d is not a leaf", g)
		}
		proofSet[g] = struct{}{}
	}
	nodes := make(map[uint64][32]byte, len(expected)+len(mp.Hashes))
	for _, leaf := range expected {
		if _, ok := proofSet[leaf.GeneralizedIndex]; !ok {
			return errors.Wrapf(ErrProofIncomplete, "leaf %d not covered by proof", leaf.GeneralizedIndex)
		}
		if prev, ok := nodes[leaf.GeneralizedIndex]; ok && prev != leaf.Root {
			return errors.Wrapf(ErrProofInvalid, "conflicting roots expected at leaf %d", leaf.GeneralizedIndex)
		}
		nodes[leaf.GeneralizedIndex] = leaf.Root
	}
	if len(nodes) != len(proofSet) {
		return errors.Wrap(ErrProofInvalid, "proof claims leaves with no expected value")
	}

	helpers := HelperIndices(mp.GeneralizedIndexes)
	if len(mp.Hashes) < len(helpers) {
		return errors.Wrapf(ErrProofIncomplete, "want %d sibling hashes, have %d", len(helpers), len(mp.Hashes))
	}
	if len(mp.Hashes) > len(helpers) {
		return errors.Wrapf(ErrProofInvalid, "want %d sibling hashes, have %d", len(helpers), len(mp.Hashes))
	}
	for i, g := range helpers {
		nodes[g] = mp.Hashes[i]
	}

	keys := make([]uint64, 0, len(nodes))
	for k := range nodes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })

	// Walk deepest-first, merging sibling pairs until the root is known.
	for pos := 0; pos < len(keys); pos++ {
		g := keys[pos]
		if g == 1 {
			continue
		}
		if _, done := nodes[g>>1]; done {
			continue
		}
		if _, ok := nodes[g^1]; !ok {
			continue
		}
		nodes[g>>1] = combine(nodes[(g|1)^1], nodes[g|1])
		keys = append(keys, g>>1)
	}

	computed, ok := nodes[1]
	if !ok {
		return errors.Wrap(ErrProofInvalid, "proof does not connect to the root")
	}
	if computed != root {
		return ErrProofInvalid
	}
	return nil
}
