package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/preconf-labs/gateway/api/builder"
	"github.com/preconf-labs/gateway/crypto/bls"
	"github.com/preconf-labs/gateway/proof"
)

// mockRelay fakes one relay's builder API over httptest. Responses are
// placeholders set per test; a zero placeholder answers 204.
type mockRelay struct {
	t         *testing.T
	secretKey bls.SecretKey
	entry     RelayEntry
	server    *httptest.Server

	mu           sync.Mutex
	requestCount map[string]int

	// responseDelay stalls every handler, simulating a slow relay.
	responseDelay time.Duration

	headerResponse      *builder.BidWithInclusionProofs
	payloadResponse     *builder.VersionedExecutionPayload
	rejectConstraints   bool
	constraintsReceived builder.BatchedSignedConstraints
}

func newMockRelay(t *testing.T) *mockRelay {
	t.Helper()
	sk, err := bls.RandKey()
	require.NoError(t, err)
	m := &mockRelay{t: t, secretKey: sk, requestCount: make(map[string]int)}
	m.server = httptest.NewServer(m.router())
	t.Cleanup(m.server.Close)

	u, err := url.Parse(m.server.URL)
	require.NoError(t, err)
	withKey := fmt.Sprintf("%s://%s@%s", u.Scheme, hexutil.Encode(sk.PublicKey().Marshal()), u.Host)
	m.entry, err = NewRelayEntry(withKey)
	require.NoError(t, err)
	return m
}

func (m *mockRelay) router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(pathStatus, m.handleStatus).Methods(http.MethodGet)
	r.HandleFunc(pathSubmitConstraints, m.handleConstraints).Methods(http.MethodPost)
	r.HandleFunc("/eth/v1/builder/header/{slot}/{parent_hash}/{pubkey}", m.handleHeader).Methods(http.MethodGet)
	r.HandleFunc("/eth/v1/builder/header_with_proofs/{slot}/{parent_hash}/{pubkey}", m.handleHeaderWithProofs).Methods(http.MethodGet)
	r.HandleFunc(pathGetPayload, m.handlePayload).Methods(http.MethodPost)
	return m.countAndDelay(r)
}

func (m *mockRelay) countAndDelay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requestCount[r.URL.EscapedPath()]++
		delay := m.responseDelay
		m.mu.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}
		next.ServeHTTP(w, r)
	})
}

func (m *mockRelay) requestCountFor(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount[path]
}

func (m *mockRelay) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (m *mockRelay) handleConstraints(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	reject := m.rejectConstraints
	m.mu.Unlock()
	if reject {
		http.Error(w, "constraints rejected", http.StatusBadRequest)
		return
	}
	var batch builder.BatchedSignedConstraints
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m.mu.Lock()
	m.constraintsReceived = batch
	m.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (m *mockRelay) handleHeader(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	resp := m.headerResponse
	m.mu.Unlock()
	if resp == nil || resp.Bid == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(m.t, w, resp.Bid)
}

func (m *mockRelay) handleHeaderWithProofs(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	resp := m.headerResponse
	m.mu.Unlock()
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(m.t, w, resp)
}

func (m *mockRelay) handlePayload(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	resp := m.payloadResponse
	m.mu.Unlock()
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(m.t, w, resp)
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

// setBid installs a signed Capella bid over the given transaction list,
// proving the transactions at proveIndices, plus the matching payload.
func (m *mockRelay) setBid(t *testing.T, txs [][]byte, proveIndices []uint64, valueDec string) {
	t.Helper()
	tree, err := proof.NewTransactionsTree(txs)
	require.NoError(t, err)
	root := tree.HashTreeRoot()
	blockHash := crypto.Keccak256Hash(root[:])

	header := &builder.ExecutionPayloadHeaderCapella{
		LogsBloom:        make(hexutil.Bytes, 256),
		BaseFeePerGas:    uint256String(t, "7"),
		BlockHash:        blockHash,
		TransactionsRoot: common.Hash(root),
	}
	vb := &builder.VersionedSignedBuilderBid{
		Capella: &builder.SignedBuilderBidCapella{
			Message: &builder.BuilderBidCapella{
				Header: header,
				Value:  uint256String(t, valueDec),
				Pubkey: hexutil.Bytes(m.secretKey.PublicKey().Marshal()),
			},
		},
	}
	sb, err := builder.WrappedSignedBid(vb)
	require.NoError(t, err)
	bid, err := sb.Message()
	require.NoError(t, err)
	sig, err := builder.SignBid(m.secretKey, bid)
	require.NoError(t, err)
	vb.Capella.Signature = sig

	bwp := &builder.BidWithInclusionProofs{Bid: vb}
	if len(proveIndices) > 0 {
		mp, err := tree.Prove(proveIndices)
		require.NoError(t, err)
		ip := &builder.InclusionProof{}
		for _, idx := range proveIndices {
			ip.TransactionHashes = append(ip.TransactionHashes, crypto.Keccak256Hash(txs[idx]))
			ip.GeneralizedIndexes = append(ip.GeneralizedIndexes, builder.Uint64String(proof.LeafGeneralizedIndex(idx)))
		}
		for _, h := range mp.Hashes {
			ip.MerkleHashes = append(ip.MerkleHashes, common.Hash(h))
		}
		bwp.Proofs = ip
	}

	wireTxs := make([]hexutil.Bytes, len(txs))
	for i, tx := range txs {
		wireTxs[i] = tx
	}
	payload := &builder.VersionedExecutionPayload{
		Capella: &builder.ExecutionPayloadCapella{
			LogsBloom:     make(hexutil.Bytes, 256),
			BaseFeePerGas: uint256String(t, "7"),
			BlockHash:     blockHash,
			Transactions:  wireTxs,
			Withdrawals:   []*builder.Withdrawal{},
		},
	}

	m.mu.Lock()
	m.headerResponse = bwp
	m.payloadResponse = payload
	m.mu.Unlock()
}

func uint256String(t *testing.T, dec string) builder.Uint256String {
	t.Helper()
	var u builder.Uint256String
	require.NoError(t, u.SetFromDecimal(dec))
	return u
}
