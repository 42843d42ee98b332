// Package bls wraps the supranational/blst bindings into the key and
// signature capability objects used by the signing paths of the gateway.
// Keys are always passed explicitly; nothing in this package keeps
// process-wide signing state beyond a pubkey deserialization cache.
package bls

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"runtime"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	blst "github.com/supranational/blst/bindings/go"
)

type blstPublicKey = blst.P1Affine
type blstSignature = blst.P2Affine

// Domain separation tag for the BLS signature scheme (proof of possession).
var dst = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_")

const pubkeyCacheSize = 2048

var pubkeyCache *lru.Cache

// ErrZeroKey describes an error due to a zero secret key.
var ErrZeroKey = errors.New("received secret key is zero")

// ErrInfinitePubKey describes an error due to an infinite public key.
var ErrInfinitePubKey = errors.New("received an infinite public key")

// ErrSecretUnmarshal describes an error unmarshalling a secret key.
var ErrSecretUnmarshal = errors.New("could not unmarshal bytes into secret key")

func init() {
	// Reserve 1 core for general application work.
	maxProcs := runtime.GOMAXPROCS(0) - 1
	if maxProcs <= 0 {
		maxProcs = 1
	}
	blst.SetMaxProcs(maxProcs)
	cache, err := lru.New(pubkeyCacheSize)
	if err != nil {
		panic(fmt.Sprintf("could not initiate public key cache: %v", err))
	}
	pubkeyCache = cache
}

type blstSecretKey struct {
	p *blst.SecretKey
}

type publicKey struct {
	p *blstPublicKey
}

type signature struct {
	s *blstSignature
}

// RandKey creates a new private key using a random method provided as an io.Reader.
func RandKey() (SecretKey, error) {
	// Generate 32 bytes of randomness.
	var ikm [32]byte
	if _, err := rand.Read(ikm[:]); err != nil {
		return nil, err
	}
	// Defensive check, that we have not generated a secret key.
	secKey := &blstSecretKey{blst.KeyGen(ikm[:])}
	if IsZero(secKey.Marshal()) {
		return nil, ErrZeroKey
	}
	return secKey, nil
}

// SecretKeyFromBytes creates a BLS private key from a byte slice.
func SecretKeyFromBytes(privKey []byte) (SecretKey, error) {
	if len(privKey) != 32 {
		return nil, fmt.Errorf("secret key must be %d bytes", 32)
	}
	secKey := new(blst.SecretKey).Deserialize(privKey)
	if secKey == nil {
		return nil, ErrSecretUnmarshal
	}
	wrappedKey := &blstSecretKey{p: secKey}
	if IsZero(privKey) {
		return nil, ErrZeroKey
	}
	return wrappedKey, nil
}

// IsZero checks if the secret key is a zero key in constant time.
func IsZero(sKey []byte) bool {
	return subtle.ConstantTimeCompare(sKey, ZeroSecretKey[:]) == 1
}

// PublicKey obtains the public key corresponding to the BLS secret key.
func (s *blstSecretKey) PublicKey() PublicKey {
	return &publicKey{p: new(blstPublicKey).From(s.p)}
}

// Sign a message using a secret key.
//
// In IETF draft BLS specification:
// Sign(SK, message) -> signature: a signing algorithm that generates
//      a deterministic signature given a secret key SK and a message.
func (s *blstSecretKey) Sign(msg []byte) Signature {
	return &signature{s: new(blstSignature).Sign(s.p, msg, dst)}
}

// Marshal a secret key into a LittleEndian byte slice.
func (s *blstSecretKey) Marshal() []byte {
	return s.p.Serialize()
}

// PublicKeyFromBytes creates a BLS public key from a byte slice.
func PublicKeyFromBytes(pubKey []byte) (PublicKey, error) {
	if len(pubKey) != 48 {
		return nil, fmt.Errorf("public key must be %d bytes", 48)
	}
	if cv, ok := pubkeyCache.Get(string(pubKey)); ok {
		return cv.(*publicKey).Copy(), nil
	}
	// Subgroup check NOT done when decompressing pubkey.
	p := new(blstPublicKey).Uncompress(pubKey)
	if p == nil {
		return nil, errors.New("could not unmarshal bytes into public key")
	}
	// Subgroup and infinity check.
	if !p.KeyValidate() {
		return nil, ErrInfinitePubKey
	}
	pKey := &publicKey{p: p}
	pubkeyCache.Add(string(pubKey), pKey.Copy())
	return pKey, nil
}

// Marshal a public key into a LittleEndian byte slice.
func (p *publicKey) Marshal() []byte {
	return p.p.Compress()
}

// Copy the public key to a new pointer reference.
func (p *publicKey) Copy() PublicKey {
	np := *p.p
	return &publicKey{p: &np}
}

// Equals checks if the provided public key is equal to
// the current one.
func (p *publicKey) Equals(p2 PublicKey) bool {
	return p.p.Equals(p2.(*publicKey).p)
}

// SignatureFromBytes creates a BLS signature from a LittleEndian byte slice.
func SignatureFromBytes(sig []byte) (Signature, error) {
	if len(sig) != 96 {
		return nil, fmt.Errorf("signature must be %d bytes", 96)
	}
	s := new(blstSignature).Uncompress(sig)
	if s == nil {
		return nil, errors.New("could not unmarshal bytes into signature")
	}
	// Group check signature. Do not check for infinity since an
	// aggregated signature could be infinite.
	if !s.SigValidate(false) {
		return nil, errors.New("signature not in group")
	}
	return &signature{s: s}, nil
}

// Verify a BLS signature given a public key and a message.
//
// In IETF draft BLS specification:
// Verify(PK, message, signature) -> VALID or INVALID: a verification
//      algorithm that outputs VALID if signature is a valid signature of
//      message under public key PK, and INVALID otherwise.
func (s *signature) Verify(pubKey PublicKey, msg []byte) bool {
	return s.s.Verify(false, pubKey.(*publicKey).p, false, msg, dst)
}

// Marshal a signature into a LittleEndian byte slice.
func (s *signature) Marshal() []byte {
	return s.s.Compress()
}

// Copy returns a full deep copy of a signature.
func (s *signature) Copy() Signature {
	sign := *s.s
	return &signature{s: &sign}
}

// VerifySignature verifies a single signature using public key and message.
func VerifySignature(sig []byte, msg [32]byte, pubKey PublicKey) (bool, error) {
	rSig, err := SignatureFromBytes(sig)
	if err != nil {
		return false, err
	}
	return rSig.Verify(pubKey, msg[:]), nil
}
