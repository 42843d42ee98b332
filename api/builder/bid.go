package builder

import (
	fssz "github.com/ferranbt/fastssz"
	"github.com/holiman/uint256"

	"github.com/ethereum/go-ethereum/common"
	"github.com/preconf-labs/gateway/runtime/version"
)

// SignedBid is an interface describing the method set of a signed builder bid.
type SignedBid interface {
	Message() (Bid, error)
	Signature() []byte
	Version() int
	IsNil() bool
}

// Bid is an interface describing the method set of a builder bid.
type Bid interface {
	TransactionsRoot() common.Hash
	BlockHash() common.Hash
	Value() *uint256.Int
	Pubkey() []byte
	Version() int
	IsNil() bool
	HashTreeRoot() ([32]byte, error)
	HashTreeRootWith(hh fssz.HashWalker) error
}

// WrappedSignedBid wraps the populated arm of a versioned signed bid into
// the SignedBid interface.
func WrappedSignedBid(b *VersionedSignedBuilderBid) (SignedBid, error) {
	v, err := b.Version()
	if err != nil {
		return nil, err
	}
	switch v {
	case version.Capella:
		return wrappedSignedBidCapella{p: b.Capella}, nil
	case version.Deneb:
		return wrappedSignedBidDeneb{p: b.Deneb}, nil
	default:
		return nil, ErrUnsupportedVersion
	}
}

type wrappedSignedBidCapella struct {
	p *SignedBuilderBidCapella
}

// Message --
func (b wrappedSignedBidCapella) Message() (Bid, error) {
	if b.IsNil() || b.p.Message == nil {
		return nil, ErrNilObject
	}
	return wrappedBidCapella{p: b.p.Message}, nil
}

// Signature --
func (b wrappedSignedBidCapella) Signature() []byte {
	return b.p.Signature
}

// Version --
func (b wrappedSignedBidCapella) Version() int {
	return version.Capella
}

// IsNil --
func (b wrappedSignedBidCapella) IsNil() bool {
	return b.p == nil
}

type wrappedSignedBidDeneb struct {
	p *SignedBuilderBidDeneb
}

// Message --
func (b wrappedSignedBidDeneb) Message() (Bid, error) {
	if b.IsNil() || b.p.Message == nil {
		return nil, ErrNilObject
	}
	return wrappedBidDeneb{p: b.p.Message}, nil
}

// Signature --
func (b wrappedSignedBidDeneb) Signature() []byte {
	return b.p.Signature
}

// Version --
func (b wrappedSignedBidDeneb) Version() int {
	return version.Deneb
}

// IsNil --
func (b wrappedSignedBidDeneb) IsNil() bool {
	return b.p == nil
}

type wrappedBidCapella struct {
	p *BuilderBidCapella
}

// TransactionsRoot --
func (b wrappedBidCapella) TransactionsRoot() common.Hash {
	return b.p.Header.TransactionsRoot
}

// BlockHash --
func (b wrappedBidCapella) BlockHash() common.Hash {
	return b.p.Header.BlockHash
}

// Value --
func (b wrappedBidCapella) Value() *uint256.Int {
	return &b.p.Value.Int
}

// Pubkey --
func (b wrappedBidCapella) Pubkey() []byte {
	return b.p.Pubkey
}

// Version --
func (b wrappedBidCapella) Version() int {
	return version.Capella
}

// IsNil --
func (b wrappedBidCapella) IsNil() bool {
	return b.p == nil || b.p.Header == nil
}

// HashTreeRoot --
func (b wrappedBidCapella) HashTreeRoot() ([32]byte, error) {
	return b.p.HashTreeRoot()
}

// HashTreeRootWith --
func (b wrappedBidCapella) HashTreeRootWith(hh fssz.HashWalker) error {
	return b.p.HashTreeRootWith(hh)
}

type wrappedBidDeneb struct {
	p *BuilderBidDeneb
}

// TransactionsRoot --
func (b wrappedBidDeneb) TransactionsRoot() common.Hash {
	return b.p.Header.TransactionsRoot
}

// BlockHash --
func (b wrappedBidDeneb) BlockHash() common.Hash {
	return b.p.Header.BlockHash
}

// Value --
func (b wrappedBidDeneb) Value() *uint256.Int {
	return &b.p.Value.Int
}

// Pubkey --
func (b wrappedBidDeneb) Pubkey() []byte {
	return b.p.Pubkey
}

// Version --
func (b wrappedBidDeneb) Version() int {
	return version.Deneb
}

// IsNil --
func (b wrappedBidDeneb) IsNil() bool {
	return b.p == nil || b.p.Header == nil
}

// HashTreeRoot --
func (b wrappedBidDeneb) HashTreeRoot() ([32]byte, error) {
	return b.p.HashTreeRoot()
}

// HashTreeRootWith --
func (b wrappedBidDeneb) HashTreeRootWith(hh fssz.HashWalker) error {
	return b.p.HashTreeRootWith(hh)
}
