// Package builder defines the fork-tagged wire types of the extended
// builder API: signed builder bids, execution payloads, inclusion-proof
// envelopes and signed constraint sets, together with their JSON and SSZ
// encodings. All dispatch on fork version lives here; nothing outside this
// package switches on a version tag.
package builder

import (
	"encoding/json"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/preconf-labs/gateway/runtime/version"
)

// ErrDecode wraps malformed request or response bodies.
var ErrDecode = errors.New("unable to decode message body")

// ErrUnsupportedVersion is returned when an envelope declares a fork this
// gateway does not know. Unknown versions are rejected outright, never
// decoded with a best-effort fallback.
var ErrUnsupportedVersion = errors.New("unsupported fork version")

// ErrVersionMismatch is returned when two coupled objects declare different
// fork versions, e.g. a payload answering a bid of another fork.
var ErrVersionMismatch = errors.New("fork version mismatch")

// ErrNilObject is returned when a wrapped or encoded value is nil.
var ErrNilObject = errors.New("nil object")

// Uint64String is a uint64 carried as a decimal JSON string, the builder
// API's number encoding.
type Uint64String uint64

// UnmarshalText decodes a decimal string.
func (s *Uint64String) UnmarshalText(t []byte) error {
	u, err := strconv.ParseUint(string(t), 10, 64)
	*s = Uint64String(u)
	return err
}

// MarshalText encodes the value as a decimal string.
func (s Uint64String) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(s), 10)), nil
}

// Uint256String is a uint256 carried as a decimal JSON string, used for bid
// values and base fees.
type Uint256String struct {
	uint256.Int
}

// UnmarshalText decodes a decimal string.
func (u *Uint256String) UnmarshalText(t []byte) error {
	if err := u.SetFromDecimal(string(t)); err != nil {
		return errors.Wrapf(ErrDecode, "invalid uint256 %q", string(t))
	}
	return nil
}

// MarshalText encodes the value as a decimal string.
func (u *Uint256String) MarshalText() ([]byte, error) {
	return []byte(u.Dec()), nil
}

// ExecutionPayloadHeaderCapella is the Capella execution payload header.
type ExecutionPayloadHeaderCapella struct {
	ParentHash       common.Hash    `json:"parent_hash"`
	FeeRecipient     common.Address `json:"fee_recipient"`
	StateRoot        common.Hash    `json:"state_root"`
	ReceiptsRoot     common.Hash    `json:"receipts_root"`
	LogsBloom        hexutil.Bytes  `json:"logs_bloom"`
	PrevRandao       common.Hash    `json:"prev_randao"`
	BlockNumber      Uint64String   `json:"block_number"`
	GasLimit         Uint64String   `json:"gas_limit"`
	GasUsed          Uint64String   `json:"gas_used"`
	Timestamp        Uint64String   `json:"timestamp"`
	ExtraData        hexutil.Bytes  `json:"extra_data"`
	BaseFeePerGas    Uint256String  `json:"base_fee_per_gas"`
	BlockHash        common.Hash    `json:"block_hash"`
	TransactionsRoot common.Hash    `json:"transactions_root"`
	WithdrawalsRoot  common.Hash    `json:"withdrawals_root"`
}

// ExecutionPayloadHeaderDeneb is the Deneb execution payload header. It
// extends Capella with the blob gas accounting fields; earlier forks must
// not carry them, so the schema is a distinct type rather than optional
// fields on a shared one.
type ExecutionPayloadHeaderDeneb struct {
	ParentHash       common.Hash    `json:"parent_hash"`
	FeeRecipient     common.Address `json:"fee_recipient"`
	StateRoot        common.Hash    `json:"state_root"`
	ReceiptsRoot     common.Hash    `json:"receipts_root"`
	LogsBloom        hexutil.Bytes  `json:"logs_bloom"`
	PrevRandao       common.Hash    `json:"prev_randao"`
	BlockNumber      Uint64String   `json:"block_number"`
	GasLimit         Uint64String   `json:"gas_limit"`
	GasUsed          Uint64String   `json:"gas_used"`
	Timestamp        Uint64String   `json:"timestamp"`
	ExtraData        hexutil.Bytes  `json:"extra_data"`
	BaseFeePerGas    Uint256String  `json:"base_fee_per_gas"`
	BlockHash        common.Hash    `json:"block_hash"`
	TransactionsRoot common.Hash    `json:"transactions_root"`
	WithdrawalsRoot  common.Hash    `json:"withdrawals_root"`
	BlobGasUsed      Uint64String   `json:"blob_gas_used"`
	ExcessBlobGas    Uint64String   `json:"excess_blob_gas"`
}

// BuilderBidCapella is a Capella builder bid message.
type BuilderBidCapella struct {
	Header *ExecutionPayloadHeaderCapella `json:"header"`
	Value  Uint256String                  `json:"value"`
	Pubkey hexutil.Bytes                  `json:"pubkey"`
}

// BuilderBidDeneb is a Deneb builder bid message, carrying the blob KZG
// commitment list on top of the Capella shape.
type BuilderBidDeneb struct {
	Header             *ExecutionPayloadHeaderDeneb `json:"header"`
	BlobKZGCommitments []hexutil.Bytes              `json:"blob_kzg_commitments"`
	Value              Uint256String                `json:"value"`
	Pubkey             hexutil.Bytes                `json:"pubkey"`
}

// SignedBuilderBidCapella is a Capella bid plus the builder's signature.
type SignedBuilderBidCapella struct {
	Message   *BuilderBidCapella `json:"message"`
	Signature hexutil.Bytes      `json:"signature"`
}

// SignedBuilderBidDeneb is a Deneb bid plus the builder's signature.
type SignedBuilderBidDeneb struct {
	Message   *BuilderBidDeneb `json:"message"`
	Signature hexutil.Bytes    `json:"signature"`
}

// VersionedSignedBuilderBid is the fork-tagged union of signed builder
// bids. Exactly one arm is non-nil.
type VersionedSignedBuilderBid struct {
	Capella *SignedBuilderBidCapella
	Deneb   *SignedBuilderBidDeneb
}

type versionedEnvelope struct {
	Version string          `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// Version reports the fork version of the populated arm.
func (b *VersionedSignedBuilderBid) Version() (int, error) {
	switch {
	case b == nil:
		return 0, ErrNilObject
	case b.Capella != nil:
		return version.Capella, nil
	case b.Deneb != nil:
		return version.Deneb, nil
	default:
		return 0, ErrNilObject
	}
}

// IsNil reports whether no arm is populated.
func (b *VersionedSignedBuilderBid) IsNil() bool {
	return b == nil || (b.Capella == nil && b.Deneb == nil)
}

// MarshalJSON encodes the builder API envelope {"version": ..., "data": ...},
// emitting only the fields of the declared fork's schema.
func (b *VersionedSignedBuilderBid) MarshalJSON() ([]byte, error) {
	v, err := b.Version()
	if err != nil {
		return nil, err
	}
	var data interface{}
	switch v {
	case version.Capella:
		data = b.Capella
	case version.Deneb:
		data = b.Deneb
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&versionedEnvelope{Version: version.String(v), Data: raw})
}

// UnmarshalJSON decodes the envelope, rejecting unknown versions.
func (b *VersionedSignedBuilderBid) UnmarshalJSON(data []byte) error {
	var env versionedEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return errors.Wrap(ErrDecode, err.Error())
	}
	v, err := version.FromString(env.Version)
	if err != nil {
		return errors.Wrapf(ErrUnsupportedVersion, "%q", env.Version)
	}
	switch v {
	case version.Capella:
		b.Capella, b.Deneb = &SignedBuilderBidCapella{}, nil
		if err := json.Unmarshal(env.Data, b.Capella); err != nil {
			return errors.Wrap(ErrDecode, err.Error())
		}
	case version.Deneb:
		b.Capella, b.Deneb = nil, &SignedBuilderBidDeneb{}
		if err := json.Unmarshal(env.Data, b.Deneb); err != nil {
			return errors.Wrap(ErrDecode, err.Error())
		}
	}
	return nil
}

// Withdrawal is a validator withdrawal included in an execution payload.
type Withdrawal struct {
	Index          Uint64String   `json:"index"`
	ValidatorIndex Uint64String   `json:"validator_index"`
	Address        common.Address `json:"address"`
	Amount         Uint64String   `json:"amount"`
}

// ExecutionPayloadCapella is the full (unblinded) Capella payload.
type ExecutionPayloadCapella struct {
	ParentHash    common.Hash     `json:"parent_hash"`
	FeeRecipient  common.Address  `json:"fee_recipient"`
	StateRoot     common.Hash     `json:"state_root"`
	ReceiptsRoot  common.Hash     `json:"receipts_root"`
	LogsBloom     hexutil.Bytes   `json:"logs_bloom"`
	PrevRandao    common.Hash     `json:"prev_randao"`
	BlockNumber   Uint64String    `json:"block_number"`
	GasLimit      Uint64String    `json:"gas_limit"`
	GasUsed       Uint64String    `json:"gas_used"`
	Timestamp     Uint64String    `json:"timestamp"`
	ExtraData     hexutil.Bytes   `json:"extra_data"`
	BaseFeePerGas Uint256String   `json:"base_fee_per_gas"`
	BlockHash     common.Hash     `json:"block_hash"`
	Transactions  []hexutil.Bytes `json:"transactions"`
	Withdrawals   []*Withdrawal   `json:"withdrawals"`
}

// ExecutionPayloadDeneb is the full (unblinded) Deneb payload.
type ExecutionPayloadDeneb struct {
	ParentHash    common.Hash     `json:"parent_hash"`
	FeeRecipient  common.Address  `json:"fee_recipient"`
	StateRoot     common.Hash     `json:"state_root"`
	ReceiptsRoot  common.Hash     `json:"receipts_root"`
	LogsBloom     hexutil.Bytes   `json:"logs_bloom"`
	PrevRandao    common.Hash     `json:"prev_randao"`
	BlockNumber   Uint64String    `json:"block_number"`
	GasLimit      Uint64String    `json:"gas_limit"`
	GasUsed       Uint64String    `json:"gas_used"`
	Timestamp     Uint64String    `json:"timestamp"`
	ExtraData     hexutil.Bytes   `json:"extra_data"`
	BaseFeePerGas Uint256String   `json:"base_fee_per_gas"`
	BlockHash     common.Hash     `json:"block_hash"`
	Transactions  []hexutil.Bytes `json:"transactions"`
	Withdrawals   []*Withdrawal   `json:"withdrawals"`
	BlobGasUsed   Uint64String    `json:"blob_gas_used"`
	ExcessBlobGas Uint64String    `json:"excess_blob_gas"`
}

// VersionedExecutionPayload is the fork-tagged union of unblinded payloads
// returned by the blinded-blocks endpoint.
type VersionedExecutionPayload struct {
	Capella *ExecutionPayloadCapella
	Deneb   *ExecutionPayloadDeneb
}

// Version reports the fork version of the populated arm.
func (p *VersionedExecutionPayload) Version() (int, error) {
	switch {
	case p == nil:
		return 0, ErrNilObject
	case p.Capella != nil:
		return version.Capella, nil
	case p.Deneb != nil:
		return version.Deneb, nil
	default:
		return 0, ErrNilObject
	}
}

// BlockHash returns the execution block hash of the populated arm.
func (p *VersionedExecutionPayload) BlockHash() (common.Hash, error) {
	switch {
	case p == nil:
		return common.Hash{}, ErrNilObject
	case p.Capella != nil:
		return p.Capella.BlockHash, nil
	case p.Deneb != nil:
		return p.Deneb.BlockHash, nil
	default:
		return common.Hash{}, ErrNilObject
	}
}

// Transactions returns the payload's ordered transaction list as raw bytes.
func (p *VersionedExecutionPayload) Transactions() ([][]byte, error) {
	var txs []hexutil.Bytes
	switch {
	case p == nil:
		return nil, ErrNilObject
	case p.Capella != nil:
		txs = p.Capella.Transactions
	case p.Deneb != nil:
		txs = p.Deneb.Transactions
	default:
		return nil, ErrNilObject
	}
	out := make([][]byte, len(txs))
	for i, tx := range txs {
		out[i] = tx
	}
	return out, nil
}

// MarshalJSON encodes the versioned payload envelope.
func (p *VersionedExecutionPayload) MarshalJSON() ([]byte, error) {
	v, err := p.Version()
	if err != nil {
		return nil, err
	}
	var data interface{}
	switch v {
	case version.Capella:
		data = p.Capella
	case version.Deneb:
		data = p.Deneb
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&versionedEnvelope{Version: version.String(v), Data: raw})
}

// UnmarshalJSON decodes the versioned payload envelope, rejecting unknown
// versions.
func (p *VersionedExecutionPayload) UnmarshalJSON(data []byte) error {
	var env versionedEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return errors.Wrap(ErrDecode, err.Error())
	}
	v, err := version.FromString(env.Version)
	if err != nil {
		return errors.Wrapf(ErrUnsupportedVersion, "%q", env.Version)
	}
	switch v {
	case version.Capella:
		p.Capella, p.Deneb = &ExecutionPayloadCapella{}, nil
		if err := json.Unmarshal(env.Data, p.Capella); err != nil {
			return errors.Wrap(ErrDecode, err.Error())
		}
	case version.Deneb:
		p.Capella, p.Deneb = nil, &ExecutionPayloadDeneb{}
		if err := json.Unmarshal(env.Data, p.Deneb); err != nil {
			return errors.Wrap(ErrDecode, err.Error())
		}
	}
	return nil
}

// InclusionProof is the wire form of a transaction-inclusion multiproof.
// Entry i claims that the transaction with hash TransactionHashes[i] sits at
// the leaf addressed by GeneralizedIndexes[i]; MerkleHashes is the shared
// sibling set, ordered by descending generalized index. A proof is only
// meaningful against the transactions root it was built for.
type InclusionProof struct {
	TransactionHashes  []common.Hash  `json:"transaction_hashes"`
	GeneralizedIndexes []Uint64String `json:"generalized_indexes"`
	MerkleHashes       []common.Hash  `json:"merkle_hashes"`
}

// BidWithInclusionProofs couples a signed builder bid with the proof that
// its header's transaction set honors the slot's constraints.
type BidWithInclusionProofs struct {
	Bid    *VersionedSignedBuilderBid `json:"bid"`
	Proofs *InclusionProof            `json:"proofs"`
}

// Constraint is a single transaction-inclusion commitment. The hash is the
// keccak-256 digest of the raw signed transaction bytes.
type Constraint struct {
	Transaction hexutil.Bytes `json:"tx"`
	Hash        common.Hash   `json:"hash"`
}

// ConstraintsMessage is the set of constraints a proposer commits to for
// one slot.
type ConstraintsMessage struct {
	ValidatorIndex Uint64String  `json:"validator_index"`
	Slot           Uint64String  `json:"slot"`
	Constraints    []*Constraint `json:"constraints"`
}

// SignedConstraints is a constraints message plus the proposer's signature
// over its signing root under the proposer-constraints domain.
type SignedConstraints struct {
	Message   *ConstraintsMessage `json:"message"`
	Signature hexutil.Bytes       `json:"signature"`
}

// BatchedSignedConstraints is the POST body of the constraints endpoint.
type BatchedSignedConstraints []*SignedConstraints

// BlindedBlockBodyCapella references a Capella bid by its header.
type BlindedBlockBodyCapella struct {
	ExecutionPayloadHeader *ExecutionPayloadHeaderCapella `json:"execution_payload_header"`
}

// BlindedBlockBodyDeneb references a Deneb bid by its header.
type BlindedBlockBodyDeneb struct {
	ExecutionPayloadHeader *ExecutionPayloadHeaderDeneb `json:"execution_payload_header"`
}

// BlindedBlockCapella is the proposer's commitment to a Capella bid.
type BlindedBlockCapella struct {
	Slot          Uint64String             `json:"slot"`
	ProposerIndex Uint64String             `json:"proposer_index"`
	ParentRoot    common.Hash              `json:"parent_root"`
	StateRoot     common.Hash              `json:"state_root"`
	Body          *BlindedBlockBodyCapella `json:"body"`
}

// BlindedBlockDeneb is the proposer's commitment to a Deneb bid.
type BlindedBlockDeneb struct {
	Slot          Uint64String           `json:"slot"`
	ProposerIndex Uint64String           `json:"proposer_index"`
	ParentRoot    common.Hash            `json:"parent_root"`
	StateRoot     common.Hash            `json:"state_root"`
	Body          *BlindedBlockBodyDeneb `json:"body"`
}

// SignedBlindedBlockCapella is a proposer-signed Capella blinded block.
type SignedBlindedBlockCapella struct {
	Message   *BlindedBlockCapella `json:"message"`
	Signature hexutil.Bytes        `json:"signature"`
}

// SignedBlindedBlockDeneb is a proposer-signed Deneb blinded block.
type SignedBlindedBlockDeneb struct {
	Message   *BlindedBlockDeneb `json:"message"`
	Signature hexutil.Bytes      `json:"signature"`
}

// VersionedSignedBlindedBlock is the fork-tagged union POSTed to the
// blinded-blocks endpoint.
type VersionedSignedBlindedBlock struct {
	Capella *SignedBlindedBlockCapella
	Deneb   *SignedBlindedBlockDeneb
}

// Version reports the fork version of the populated arm.
func (b *VersionedSignedBlindedBlock) Version() (int, error) {
	switch {
	case b == nil:
		return 0, ErrNilObject
	case b.Capella != nil:
		return version.Capella, nil
	case b.Deneb != nil:
		return version.Deneb, nil
	default:
		return 0, ErrNilObject
	}
}

// MarshalJSON encodes the versioned blinded block envelope.
func (b *VersionedSignedBlindedBlock) MarshalJSON() ([]byte, error) {
	v, err := b.Version()
	if err != nil {
		return nil, err
	}
	var data interface{}
	switch v {
	case version.Capella:
		data = b.Capella
	case version.Deneb:
		data = b.Deneb
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&versionedEnvelope{Version: version.String(v), Data: raw})
}

// UnmarshalJSON decodes the versioned blinded block envelope.
func (b *VersionedSignedBlindedBlock) UnmarshalJSON(data []byte) error {
	var env versionedEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return errors.Wrap(ErrDecode, err.Error())
	}
	v, err := version.FromString(env.Version)
	if err != nil {
		return errors.Wrapf(ErrUnsupportedVersion, "%q", env.Version)
	}
	switch v {
	case version.Capella:
		b.Capella, b.Deneb = &SignedBlindedBlockCapella{}, nil
		if err := json.Unmarshal(env.Data, b.Capella); err != nil {
			return errors.Wrap(ErrDecode, err.Error())
		}
	case version.Deneb:
		b.Capella, b.Deneb = nil, &SignedBlindedBlockDeneb{}
		if err := json.Unmarshal(env.Data, b.Deneb); err != nil {
			return errors.Wrap(ErrDecode, err.Error())
		}
	}
	return nil
}
