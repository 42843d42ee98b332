package builder

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/preconf-labs/gateway/runtime/version"
)

func uint256FromDec(t *testing.T, s string) Uint256String {
	t.Helper()
	var u Uint256String
	require.NoError(t, u.SetFromDecimal(s))
	return u
}

func testHeaderCapella(t *testing.T) *ExecutionPayloadHeaderCapella {
	t.Helper()
	return &ExecutionPayloadHeaderCapella{
		ParentHash:       common.HexToHash("0x01"),
		FeeRecipient:     common.HexToAddress("0x02"),
		StateRoot:        common.HexToHash("0x03"),
		ReceiptsRoot:     common.HexToHash("0x04"),
		LogsBloom:        make(hexutil.Bytes, 256),
		PrevRandao:       common.HexToHash("0x05"),
		BlockNumber:      100,
		GasLimit:         30_000_000,
		GasUsed:          15_000_000,
		Timestamp:        1_700_000_000,
		ExtraData:        hexutil.Bytes{0xde, 0xad},
		BaseFeePerGas:    uint256FromDec(t, "7"),
		BlockHash:        common.HexToHash("0x06"),
		TransactionsRoot: common.HexToHash("0x07"),
		WithdrawalsRoot:  common.HexToHash("0x08"),
	}
}

func testHeaderDeneb(t *testing.T) *ExecutionPayloadHeaderDeneb {
	t.Helper()
	return &ExecutionPayloadHeaderDeneb{
		ParentHash:       common.HexToHash("0x01"),
		FeeRecipient:     common.HexToAddress("0x02"),
		StateRoot:        common.HexToHash("0x03"),
		ReceiptsRoot:     common.HexToHash("0x04"),
		LogsBloom:        make(hexutil.Bytes, 256),
		PrevRandao:       common.HexToHash("0x05"),
		BlockNumber:      100,
		GasLimit:         30_000_000,
		GasUsed:          15_000_000,
		Timestamp:        1_700_000_000,
		ExtraData:        hexutil.Bytes{0xbe, 0xef},
		BaseFeePerGas:    uint256FromDec(t, "7"),
		BlockHash:        common.HexToHash("0x06"),
		TransactionsRoot: common.HexToHash("0x07"),
		WithdrawalsRoot:  common.HexToHash("0x08"),
		BlobGasUsed:      131072,
		ExcessBlobGas:    0,
	}
}

func TestUint64String_JSON(t *testing.T) {
	type holder struct {
		V Uint64String `json:"v"`
	}
	raw, err := json.Marshal(holder{V: 18446744073709551615})
	require.NoError(t, err)
	require.JSONEq(t, `{"v":"18446744073709551615"}`, string(raw))

	var h holder
	require.NoError(t, json.Unmarshal([]byte(`{"v":"42"}`), &h))
	require.Equal(t, Uint64String(42), h.V)
	require.Error(t, json.Unmarshal([]byte(`{"v":"0x2a"}`), &h))
}

func TestUint256String_JSON(t *testing.T) {
	type holder struct {
		V Uint256String `json:"v"`
	}
	h := holder{V: uint256FromDec(t, "123456789012345678901234567890")}
	raw, err := json.Marshal(&h)
	require.NoError(t, err)
	require.JSONEq(t, `{"v":"123456789012345678901234567890"}`, string(raw))

	var back holder
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Zero(t, h.V.Cmp(&back.V.Int))

	require.Error(t, json.Unmarshal([]byte(`{"v":"not a number"}`), &back))
}

func TestVersionedSignedBuilderBid_JSONRoundTripCapella(t *testing.T) {
	bid := &VersionedSignedBuilderBid{
		Capella: &SignedBuilderBidCapella{
			Message: &BuilderBidCapella{
				Header: testHeaderCapella(t),
				Value:  uint256FromDec(t, "1000000000000000000"),
				Pubkey: make(hexutil.Bytes, 48),
			},
			Signature: make(hexutil.Bytes, 96),
		},
	}
	raw, err := json.Marshal(bid)
	require.NoError(t, err)

	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &env))
	require.JSONEq(t, `"capella"`, string(env["version"]))

	var back VersionedSignedBuilderBid
	require.NoError(t, json.Unmarshal(raw, &back))
	v, err := back.Version()
	require.NoError(t, err)
	require.Equal(t, version.Capella, v)
	require.Equal(t, bid.Capella.Message.Header.TransactionsRoot, back.Capella.Message.Header.TransactionsRoot)
	require.Zero(t, bid.Capella.Message.Value.Cmp(&back.Capella.Message.Value.Int))
}

func TestVersionedSignedBuilderBid_JSONRoundTripDeneb(t *testing.T) {
	bid := &VersionedSignedBuilderBid{
		Deneb: &SignedBuilderBidDeneb{
			Message: &BuilderBidDeneb{
				Header:             testHeaderDeneb(t),
				BlobKZGCommitments: []hexutil.Bytes{make(hexutil.Bytes, 48)},
				Value:              uint256FromDec(t, "2"),
				Pubkey:             make(hexutil.Bytes, 48),
			},
			Signature: make(hexutil.Bytes, 96),
		},
	}
	raw, err := json.Marshal(bid)
	require.NoError(t, err)

	var back VersionedSignedBuilderBid
	require.NoError(t, json.Unmarshal(raw, &back))
	v, err := back.Version()
	require.NoError(t, err)
	require.Equal(t, version.Deneb, v)
	require.Len(t, back.Deneb.Message.BlobKZGCommitments, 1)
	require.Equal(t, Uint64String(131072), back.Deneb.Message.Header.BlobGasUsed)
}

func TestVersionedSignedBuilderBid_UnknownVersion(t *testing.T) {
	var bid VersionedSignedBuilderBid
	err := json.Unmarshal([]byte(`{"version":"electra","data":{}}`), &bid)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestVersionedSignedBuilderBid_EmptyUnion(t *testing.T) {
	var bid VersionedSignedBuilderBid
	_, err := bid.Version()
	require.ErrorIs(t, err, ErrNilObject)
	_, err = bid.MarshalJSON()
	require.ErrorIs(t, err, ErrNilObject)
}

func TestVersionedExecutionPayload_JSONRoundTrip(t *testing.T) {
	payload := &VersionedExecutionPayload{
		Capella: &ExecutionPayloadCapella{
			ParentHash:    common.HexToHash("0x01"),
			FeeRecipient:  common.HexToAddress("0x02"),
			StateRoot:     common.HexToHash("0x03"),
			ReceiptsRoot:  common.HexToHash("0x04"),
			LogsBloom:     make(hexutil.Bytes, 256),
			PrevRandao:    common.HexToHash("0x05"),
			BlockNumber:   100,
			GasLimit:      30_000_000,
			GasUsed:       15_000_000,
			Timestamp:     1_700_000_000,
			ExtraData:     hexutil.Bytes{0x01},
			BaseFeePerGas: uint256FromDec(t, "7"),
			BlockHash:     common.HexToHash("0x06"),
			Transactions:  []hexutil.Bytes{{0x02, 0xf8, 0x72}},
			Withdrawals:   []*Withdrawal{},
		},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	var back VersionedExecutionPayload
	require.NoError(t, json.Unmarshal(raw, &back))
	txs, err := back.Transactions()
	require.NoError(t, err)
	require.Equal(t, [][]byte{{0x02, 0xf8, 0x72}}, txs)
	blockHash, err := back.BlockHash()
	require.NoError(t, err)
	require.Equal(t, common.HexToHash("0x06"), blockHash)
}

func TestWrappedSignedBid_Accessors(t *testing.T) {
	value := uint256.NewInt(1234)
	bid := &VersionedSignedBuilderBid{
		Capella: &SignedBuilderBidCapella{
			Message: &BuilderBidCapella{
				Header: testHeaderCapella(t),
				Value:  Uint256String{Int: *value},
				Pubkey: make(hexutil.Bytes, 48),
			},
			Signature: make(hexutil.Bytes, 96),
		},
	}
	sb, err := WrappedSignedBid(bid)
	require.NoError(t, err)
	require.Equal(t, version.Capella, sb.Version())
	msg, err := sb.Message()
	require.NoError(t, err)
	require.Equal(t, common.HexToHash("0x07"), msg.TransactionsRoot())
	require.Equal(t, common.HexToHash("0x06"), msg.BlockHash())
	require.Zero(t, value.Cmp(msg.Value()))
}

func TestInclusionProof_JSON(t *testing.T) {
	ip := &InclusionProof{
		TransactionHashes:  []common.Hash{common.HexToHash("0x0a")},
		GeneralizedIndexes: []Uint64String{2097152},
		MerkleHashes:       []common.Hash{common.HexToHash("0x0b"), common.HexToHash("0x0c")},
	}
	raw, err := json.Marshal(ip)
	require.NoError(t, err)

	var back InclusionProof
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, ip.TransactionHashes, back.TransactionHashes)
	require.Equal(t, ip.GeneralizedIndexes, back.GeneralizedIndexes)
	require.Equal(t, ip.MerkleHashes, back.MerkleHashes)
}

func TestConstraint_JSONFieldNames(t *testing.T) {
	c := NewConstraint([]byte{0x01, 0x02})
	raw, err := json.Marshal(c)
	require.NoError(t, err)
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	require.Contains(t, fields, "tx")
	require.Contains(t, fields, "hash")
}
