// Package signing implements the domain-separated signing and verification
// rules shared by the constraint and builder-bid paths. The signing root is
// always recomputed from the message type's hash tree root, never from raw
// wire bytes, so a message signed under one fork's domain can never verify
// under another.
package signing

import (
	fssz "github.com/ferranbt/fastssz"
	"github.com/pkg/errors"

	"github.com/preconf-labs/gateway/crypto/bls"
	"github.com/preconf-labs/gateway/crypto/hash"
	"github.com/preconf-labs/gateway/encoding/bytesutil"
)

// ErrSigFailedToVerify returns when a signed message (a builder bid, a
// constraint set) fails to verify.
var ErrSigFailedToVerify = errors.New("signature did not verify")

// ErrNilMessage returns when a nil message is provided to a signing routine.
var ErrNilMessage = errors.New("message to sign is nil")

// Hashable is any message that can walk its own SSZ hash tree.
type Hashable interface {
	HashTreeRootWith(hh fssz.HashWalker) error
}

// HashTreeRoot computes the SSZ hash tree root of the message using the
// shared fastssz hasher pool.
func HashTreeRoot(obj Hashable) ([32]byte, error) {
	if obj == nil {
		return [32]byte{}, ErrNilMessage
	}
	hh := fssz.DefaultHasherPool.Get()
	defer fssz.DefaultHasherPool.Put(hh)
	if err := obj.HashTreeRootWith(hh); err != nil {
		return [32]byte{}, err
	}
	return hh.HashRoot()
}

// ComputeDomain returns the domain version for BLS private key to sign and
// verify, following:
//   domain_type + fork_data_root(fork_version, genesis_validators_root)[:28]
// A nil fork version or genesis validators root defaults to zeros, matching
// the builder API's genesis-scoped domains.
func ComputeDomain(domainType [4]byte, forkVersion, genesisValidatorsRoot []byte) [32]byte {
	version := bytesutil.ToBytes4(forkVersion)
	gvr := bytesutil.ToBytes32(genesisValidatorsRoot)
	forkDataRoot := computeForkDataRoot(version, gvr)

	var domain [32]byte
	copy(domain[:4], domainType[:])
	copy(domain[4:], forkDataRoot[:28])
	return domain
}

// computeForkDataRoot derives the hash tree root of the ForkData container,
// a two-field SSZ container of the padded fork version and the genesis
// validators root.
func computeForkDataRoot(version [4]byte, root [32]byte) [32]byte {
	return hash.Combi(bytesutil.ToBytes32(version[:]), root)
}

// ComputeSigningRoot computes the root of the object by calculating the
// hash tree root of the signing data with the given domain.
//
// Spec pseudocode definition:
//	def compute_signing_root(ssz_object: SSZObject, domain: Domain) -> Root:
//	  return hash_tree_root(SigningData(object_root=hash_tree_root(ssz_object), domain=domain))
func ComputeSigningRoot(obj Hashable, domain [32]byte) ([32]byte, error) {
	objRoot, err := HashTreeRoot(obj)
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "could not hash message")
	}
	// SigningData is a two-chunk container, its root is one hash away.
	return hash.Combi(objRoot, domain), nil
}

// Sign computes the signing root of the message under the domain and signs
// it with the provided secret key, returning the compressed signature.
func Sign(sk bls.SecretKey, obj Hashable, domain [32]byte) ([]byte, error) {
	root, err := ComputeSigningRoot(obj, domain)
	if err != nil {
		return nil, err
	}
	return sk.Sign(root[:]).Marshal(), nil
}

// Verify checks the signature of the message against the public key under
// the given domain. It returns ErrSigFailedToVerify on a mismatch so callers
// can distinguish malformed inputs from a plain bad signature.
func Verify(pubKey, sig []byte, obj Hashable, domain [32]byte) error {
	root, err := ComputeSigningRoot(obj, domain)
	if err != nil {
		return err
	}
	pk, err := bls.PublicKeyFromBytes(pubKey)
	if err != nil {
		return errors.Wrap(err, "could not convert bytes to public key")
	}
	ok, err := bls.VerifySignature(sig, root, pk)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSigFailedToVerify
	}
	return nil
}
