package builder

import (
	fssz "github.com/ferranbt/fastssz"
	"github.com/holiman/uint256"

	"github.com/preconf-labs/gateway/encoding/bytesutil"
)

// SSZ list limits of the types hashed in this file.
const (
	maxExtraDataBytes      = 32
	maxBlobCommitments     = 4096
	maxBytesPerTransaction = 1 << 30
	maxConstraintsPerSlot  = 256
)

func hashTreeRoot(v interface {
	HashTreeRootWith(hh fssz.HashWalker) error
}) ([32]byte, error) {
	hh := fssz.DefaultHasherPool.Get()
	defer fssz.DefaultHasherPool.Put(hh)
	if err := v.HashTreeRootWith(hh); err != nil {
		return [32]byte{}, err
	}
	return hh.HashRoot()
}

// uint256SSZ returns the little-endian 32-byte chunk of a uint256 value.
func uint256SSZ(v *uint256.Int) []byte {
	b := v.Bytes32()
	return bytesutil.ReverseByteOrder(b[:])
}

// HashTreeRoot of the Capella header.
func (h *ExecutionPayloadHeaderCapella) HashTreeRoot() ([32]byte, error) {
	return hashTreeRoot(h)
}

// HashTreeRootWith ssz hashes the ExecutionPayloadHeaderCapella object with a hasher.
func (h *ExecutionPayloadHeaderCapella) HashTreeRootWith(hh fssz.HashWalker) (err error) {
	indx := hh.Index()

	// Field (0) 'ParentHash'
	hh.PutBytes(h.ParentHash[:])

	// Field (1) 'FeeRecipient'
	hh.PutBytes(h.FeeRecipient[:])

	// Field (2) 'StateRoot'
	hh.PutBytes(h.StateRoot[:])

	// Field (3) 'ReceiptsRoot'
	hh.PutBytes(h.ReceiptsRoot[:])

	// Field (4) 'LogsBloom'
	if len(h.LogsBloom) != 256 {
		return fssz.ErrBytesLength
	}
	hh.PutBytes(h.LogsBloom)

	// Field (5) 'PrevRandao'
	hh.PutBytes(h.PrevRandao[:])

	// Field (6) 'BlockNumber'
	hh.PutUint64(uint64(h.BlockNumber))

	// Field (7) 'GasLimit'
	hh.PutUint64(uint64(h.GasLimit))

	// Field (8) 'GasUsed'
	hh.PutUint64(uint64(h.GasUsed))

	// Field (9) 'Timestamp'
	hh.PutUint64(uint64(h.Timestamp))

	// Field (10) 'ExtraData'
	{
		elemIndx := hh.Index()
		byteLen := uint64(len(h.ExtraData))
		if byteLen > maxExtraDataBytes {
			return fssz.ErrIncorrectListSize
		}
		hh.Append(h.ExtraData)
		hh.MerkleizeWithMixin(elemIndx, byteLen, (maxExtraDataBytes+31)/32)
	}

	// Field (11) 'BaseFeePerGas'
	hh.PutBytes(uint256SSZ(&h.BaseFeePerGas.Int))

	// Field (12) 'BlockHash'
	hh.PutBytes(h.BlockHash[:])

	// Field (13) 'TransactionsRoot'
	hh.PutBytes(h.TransactionsRoot[:])

	// Field (14) 'WithdrawalsRoot'
	hh.PutBytes(h.WithdrawalsRoot[:])

	hh.Merkleize(indx)
	return
}

// HashTreeRoot of the Deneb header.
func (h *ExecutionPayloadHeaderDeneb) HashTreeRoot() ([32]byte, error) {
	return hashTreeRoot(h)
}

// HashTreeRootWith ssz hashes the ExecutionPayloadHeaderDeneb object with a hasher.
func (h *ExecutionPayloadHeaderDeneb) HashTreeRootWith(hh fssz.HashWalker) (err error) {
	indx := hh.Index()

	// Field (0) 'ParentHash'
	hh.PutBytes(h.ParentHash[:])

	// Field (1) 'FeeRecipient'
	hh.PutBytes(h.FeeRecipient[:])

	// Field (2) 'StateRoot'
	hh.PutBytes(h.StateRoot[:])

	// Field (3) 'ReceiptsRoot'
	hh.PutBytes(h.ReceiptsRoot[:])

	// Field (4) 'LogsBloom'
	if len(h.LogsBloom) != 256 {
		return fssz.ErrBytesLength
	}
	hh.PutBytes(h.LogsBloom)

	// Field (5) 'PrevRandao'
	hh.PutBytes(h.PrevRandao[:])

	// Field (6) 'BlockNumber'
	hh.PutUint64(uint64(h.BlockNumber))

	// Field (7) 'GasLimit'
	hh.PutUint64(uint64(h.GasLimit))

	// Field (8) 'GasUsed'
	hh.PutUint64(uint64(h.GasUsed))

	// Field (9) 'Timestamp'
	hh.PutUint64(uint64(h.Timestamp))

	// Field (10) 'ExtraData'
	{
		elemIndx := hh.Index()
		byteLen := uint64(len(h.ExtraData))
		if byteLen > maxExtraDataBytes {
			return fssz.ErrIncorrectListSize
		}
		hh.Append(h.ExtraData)
		hh.MerkleizeWithMixin(elemIndx, byteLen, (maxExtraDataBytes+31)/32)
	}

	// Field (11) 'BaseFeePerGas'
	hh.PutBytes(uint256SSZ(&h.BaseFeePerGas.Int))

	// Field (12) 'BlockHash'
	hh.PutBytes(h.BlockHash[:])

	// Field (13) 'TransactionsRoot'
	hh.PutBytes(h.TransactionsRoot[:])

	// Field (14) 'WithdrawalsRoot'
	hh.PutBytes(h.WithdrawalsRoot[:])

	// Field (15) 'BlobGasUsed'
	hh.PutUint64(uint64(h.BlobGasUsed))

	// Field (16) 'ExcessBlobGas'
	hh.PutUint64(uint64(h.ExcessBlobGas))

	hh.Merkleize(indx)
	return
}

// HashTreeRoot of the Capella bid message.
func (b *BuilderBidCapella) HashTreeRoot() ([32]byte, error) {
	return hashTreeRoot(b)
}

// HashTreeRootWith ssz hashes the BuilderBidCapella object with a hasher.
func (b *BuilderBidCapella) HashTreeRootWith(hh fssz.HashWalker) (err error) {
	indx := hh.Index()

	// Field (0) 'Header'
	if b.Header == nil {
		return ErrNilObject
	}
	if err = b.Header.HashTreeRootWith(hh); err != nil {
		return
	}

	// Field (1) 'Value'
	hh.PutBytes(uint256SSZ(&b.Value.Int))

	// Field (2) 'Pubkey'
	if len(b.Pubkey) != 48 {
		return fssz.ErrBytesLength
	}
	hh.PutBytes(b.Pubkey)

	hh.Merkleize(indx)
	return
}

// HashTreeRoot of the Deneb bid message.
func (b *BuilderBidDeneb) HashTreeRoot() ([32]byte, error) {
	return hashTreeRoot(b)
}

// HashTreeRootWith ssz hashes the BuilderBidDeneb object with a hasher.
func (b *BuilderBidDeneb) HashTreeRootWith(hh fssz.HashWalker) (err error) {
	indx := hh.Index()

	// Field (0) 'Header'
	if b.Header == nil {
		return ErrNilObject
	}
	if err = b.Header.HashTreeRootWith(hh); err != nil {
		return
	}

	// Field (1) 'BlobKZGCommitments'
	{
		subIndx := hh.Index()
		num := uint64(len(b.BlobKZGCommitments))
		if num > maxBlobCommitments {
			return fssz.ErrIncorrectListSize
		}
		for _, c := range b.BlobKZGCommitments {
			if len(c) != 48 {
				return fssz.ErrBytesLength
			}
			hh.PutBytes(c)
		}
		hh.MerkleizeWithMixin(subIndx, num, maxBlobCommitments)
	}

	// Field (2) 'Value'
	hh.PutBytes(uint256SSZ(&b.Value.Int))

	// Field (3) 'Pubkey'
	if len(b.Pubkey) != 48 {
		return fssz.ErrBytesLength
	}
	hh.PutBytes(b.Pubkey)

	hh.Merkleize(indx)
	return
}

// HashTreeRoot of a single constraint.
func (c *Constraint) HashTreeRoot() ([32]byte, error) {
	return hashTreeRoot(c)
}

// HashTreeRootWith ssz hashes the Constraint object with a hasher.
func (c *Constraint) HashTreeRootWith(hh fssz.HashWalker) (err error) {
	indx := hh.Index()

	// Field (0) 'Transaction'
	{
		elemIndx := hh.Index()
		byteLen := uint64(len(c.Transaction))
		if byteLen > maxBytesPerTransaction {
			return fssz.ErrIncorrectListSize
		}
		hh.AppendBytes32(c.Transaction)
		hh.MerkleizeWithMixin(elemIndx, byteLen, (maxBytesPerTransaction+31)/32)
	}

	// Field (1) 'Hash'
	hh.PutBytes(c.Hash[:])

	hh.Merkleize(indx)
	return
}

// HashTreeRoot of the constraints message, i.e. the root the proposer signs.
func (m *ConstraintsMessage) HashTreeRoot() ([32]byte, error) {
	return hashTreeRoot(m)
}

// HashTreeRootWith ssz hashes the ConstraintsMessage object with a hasher.
func (m *ConstraintsMessage) HashTreeRootWith(hh fssz.HashWalker) (err error) {
	indx := hh.Index()

	// Field (0) 'ValidatorIndex'
	hh.PutUint64(uint64(m.ValidatorIndex))

	// Field (1) 'Slot'
	hh.PutUint64(uint64(m.Slot))

	// Field (2) 'Constraints'
	{
		subIndx := hh.Index()
		num := uint64(len(m.Constraints))
		if num > maxConstraintsPerSlot {
			return fssz.ErrIncorrectListSize
		}
		for _, c := range m.Constraints {
			if err = c.HashTreeRootWith(hh); err != nil {
				return
			}
		}
		hh.MerkleizeWithMixin(subIndx, num, maxConstraintsPerSlot)
	}

	hh.Merkleize(indx)
	return
}
