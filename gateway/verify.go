package gateway

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/preconf-labs/gateway/api/builder"
	"github.com/preconf-labs/gateway/consensus/signing"
	"github.com/preconf-labs/gateway/proof"
)

// AcceptedBid is a bid that survived verification, reduced to the fields the
// payload stage needs to hold the relay to its word.
type AcceptedBid struct {
	Relay            RelayEntry
	Bid              *builder.VersionedSignedBuilderBid
	Version          int
	TransactionsRoot common.Hash
	BlockHash        common.Hash
	Value            *uint256.Int

	// ProvenTransactions maps each proven transaction's position in the
	// payload's transaction list to its raw bytes as committed in the
	// slot's constraints.
	ProvenTransactions map[uint64][]byte
}

// verifyBid runs the full disqualification gauntlet for one relay response:
// the bid must be signed by the relay's configured key, meet the value
// floor, and prove inclusion of every constraint committed for the slot.
// Any failure disqualifies this response only.
func verifyBid(entry RelayEntry, bwp *builder.BidWithInclusionProofs, constraints []*builder.Constraint, minValue *uint256.Int) (*AcceptedBid, error) {
	if bwp == nil || bwp.Bid == nil {
		return nil, errors.Wrap(builder.ErrNilObject, "empty bid response")
	}
	sb, err := builder.WrappedSignedBid(bwp.Bid)
	if err != nil {
		return nil, err
	}
	bid, err := sb.Message()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(bid.Pubkey(), entry.PublicKey) {
		return nil, errors.Wrapf(signing.ErrSigFailedToVerify, "bid pubkey %#x does not match relay %s", bid.Pubkey(), entry.String())
	}
	if err := builder.VerifyBidSignature(sb); err != nil {
		return nil, errors.Wrapf(err, "relay %s", entry.String())
	}
	if minValue != nil && bid.Value().Cmp(minValue) < 0 {
		return nil, errors.Wrapf(ErrValueTooLow, "bid %s below floor %s", bid.Value().Dec(), minValue.Dec())
	}
	proven, err := verifyInclusionProofs(bid.TransactionsRoot(), bwp.Proofs, constraints)
	if err != nil {
		return nil, errors.Wrapf(err, "relay %s", entry.String())
	}
	return &AcceptedBid{
		Relay:              entry,
		Bid:                bwp.Bid,
		Version:            sb.Version(),
		TransactionsRoot:   bid.TransactionsRoot(),
		BlockHash:          bid.BlockHash(),
		Value:              bid.Value().Clone(),
		ProvenTransactions: proven,
	}, nil
}

// verifyInclusionProofs checks that the wire proof covers every committed
// constraint and verifies against the bid's transactions root. It returns
// the proven transaction positions so the payload stage can demand the same
// bytes at the same indices.
func verifyInclusionProofs(root common.Hash, ip *builder.InclusionProof, constraints []*builder.Constraint) (map[uint64][]byte, error) {
	if len(constraints) == 0 {
		// Nothing was committed for the slot, so there is nothing to prove.
		return nil, nil
	}
	if ip == nil {
		return nil, errors.Wrap(proof.ErrProofIncomplete, "bid carries no inclusion proof")
	}
	if len(ip.TransactionHashes) != len(ip.GeneralizedIndexes) {
		return nil, errors.Wrapf(proof.ErrProofInvalid,
			"%d transaction hashes against %d generalized indexes",
			len(ip.TransactionHashes), len(ip.GeneralizedIndexes))
	}
	claimed := make(map[common.Hash]uint64, len(ip.TransactionHashes))
	claimedIndexes := make(map[uint64]struct{}, len(ip.GeneralizedIndexes))
	for i, h := range ip.TransactionHashes {
		g := uint64(ip.GeneralizedIndexes[i])
		// Each leaf proves at most one transaction. A proof mapping two
		// committed hashes onto one leaf would let the relay drop all but
		// one of them from the block.
		if _, dup := claimedIndexes[g]; dup {
			return nil, errors.Wrapf(proof.ErrProofInvalid, "generalized index %d claimed for more than one transaction", g)
		}
		claimedIndexes[g] = struct{}{}
		if _, dup := claimed[h]; dup {
			return nil, errors.Wrapf(proof.ErrProofInvalid, "transaction %#x claimed at more than one leaf", h)
		}
		claimed[h] = g
	}

	proven := make(map[uint64][]byte, len(constraints))
	expected := make([]proof.Leaf, 0, len(constraints))
	for _, c := range constraints {
		gindex, ok := claimed[c.Hash]
		if !ok {
			return nil, errors.Wrapf(proof.ErrProofIncomplete, "constraint %#x not covered", c.Hash)
		}
		leafRoot, err := proof.TransactionRoot(c.Transaction)
		if err != nil {
			return nil, err
		}
		expected = append(expected, proof.Leaf{GeneralizedIndex: gindex, Root: leafRoot})
		txIndex, err := proof.TxIndexFromGeneralizedIndex(gindex)
		if err != nil {
			return nil, errors.Wrap(proof.ErrProofInvalid, err.Error())
		}
		proven[txIndex] = c.Transaction
	}

	mp := &proof.Multiproof{
		GeneralizedIndexes: make([]uint64, len(ip.GeneralizedIndexes)),
		Hashes:             make([][32]byte, len(ip.MerkleHashes)),
	}
	for i, g := range ip.GeneralizedIndexes {
		mp.GeneralizedIndexes[i] = uint64(g)
	}
	for i, h := range ip.MerkleHashes {
		mp.Hashes[i] = h
	}
	if err := proof.Verify(root, mp, expected); err != nil {
		return nil, err
	}
	return proven, nil
}
