package builder

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/preconf-labs/gateway/config/params"
	"github.com/preconf-labs/gateway/consensus/signing"
	"github.com/preconf-labs/gateway/crypto/bls"
	"github.com/preconf-labs/gateway/runtime/version"
)

// BidSigningDomain returns the application-builder signing domain of the
// declared fork version. The domain is a function of the version plus the
// message kind; it is never inferred from wire content. Unknown versions
// are an error, so a bid signed under one fork can never verify under the
// domain of another.
func BidSigningDomain(v int) ([32]byte, error) {
	cfg := params.GatewayConfiguration()
	switch v {
	case version.Capella:
		return signing.ComputeDomain(cfg.DomainApplicationBuilder, cfg.CapellaForkVersion, nil), nil
	case version.Deneb:
		return signing.ComputeDomain(cfg.DomainApplicationBuilder, cfg.DenebForkVersion, nil), nil
	default:
		return [32]byte{}, errors.Wrapf(ErrUnsupportedVersion, "version %d", v)
	}
}

// ConstraintsSigningDomain returns the proposer-constraints signing domain.
// Constraint sets are not fork-tagged; they are scoped to the network by
// its genesis validators root.
func ConstraintsSigningDomain() [32]byte {
	cfg := params.GatewayConfiguration()
	return signing.ComputeDomain(cfg.DomainProposerConstraints, nil, cfg.GenesisValidatorsRoot[:])
}

// SignBid signs the bid message under the builder domain of its declared
// version.
func SignBid(sk bls.SecretKey, bid Bid) ([]byte, error) {
	if bid == nil || bid.IsNil() {
		return nil, ErrNilObject
	}
	domain, err := BidSigningDomain(bid.Version())
	if err != nil {
		return nil, err
	}
	return signing.Sign(sk, bid, domain)
}

// VerifyBidSignature checks the signed bid against the builder public key
// it declares, under the domain of its declared fork version.
func VerifyBidSignature(sb SignedBid) error {
	if sb == nil || sb.IsNil() {
		return ErrNilObject
	}
	bid, err := sb.Message()
	if err != nil {
		return err
	}
	domain, err := BidSigningDomain(sb.Version())
	if err != nil {
		return err
	}
	return signing.Verify(bid.Pubkey(), sb.Signature(), bid, domain)
}

// VerifyConstraintsSignature checks a signed constraint set against the
// proposer public key.
func VerifyConstraintsSignature(sc *SignedConstraints, pubkey []byte) error {
	if sc == nil || sc.Message == nil {
		return ErrNilObject
	}
	return signing.Verify(pubkey, sc.Signature, sc.Message, ConstraintsSigningDomain())
}

// NewConstraint builds a constraint from raw signed transaction bytes,
// deriving the transaction hash the way execution clients do.
func NewConstraint(tx []byte) *Constraint {
	return &Constraint{
		Transaction: tx,
		Hash:        crypto.Keccak256Hash(tx),
	}
}
