package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/preconf-labs/gateway/api/builder"
	"github.com/preconf-labs/gateway/consensus-types/primitives"
	"github.com/preconf-labs/gateway/crypto/bls"
)

// Builder API paths the gateway consumes.
const (
	pathStatus              = "/eth/v1/builder/status"
	pathSubmitConstraints   = "/eth/v1/builder/constraints"
	pathGetHeader           = "/eth/v1/builder/header/%d/%s/%s"
	pathGetHeaderWithProofs = "/eth/v1/builder/header_with_proofs/%d/%s/%s"
	pathGetPayload          = "/eth/v1/builder/blinded_blocks"
)

// ErrMalformedRelayEntry is returned for relay URLs that do not carry a
// valid BLS public key in their user info.
var ErrMalformedRelayEntry = errors.New("invalid relay entry")

// RelayEntry is one configured relay: its endpoint plus the public key its
// bids must be signed with, parsed from scheme://0xPUBKEY@host form.
type RelayEntry struct {
	PublicKey hexutil.Bytes
	u         *url.URL
}

// NewRelayEntry parses a relay URL of the form scheme://0xPUBKEY@host:port.
func NewRelayEntry(raw string) (RelayEntry, error) {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return RelayEntry{}, errors.Wrap(ErrMalformedRelayEntry, err.Error())
	}
	if u.User == nil {
		return RelayEntry{}, errors.Wrap(ErrMalformedRelayEntry, "missing public key")
	}
	pk, err := hexutil.Decode(u.User.Username())
	if err != nil {
		return RelayEntry{}, errors.Wrap(ErrMalformedRelayEntry, err.Error())
	}
	// Reject keys that are not valid points up front rather than on the
	// first bid.
	if _, err := bls.PublicKeyFromBytes(pk); err != nil {
		return RelayEntry{}, errors.Wrap(ErrMalformedRelayEntry, err.Error())
	}
	stripped := *u
	stripped.User = nil
	return RelayEntry{PublicKey: pk, u: &stripped}, nil
}

// String returns the relay endpoint without credentials.
func (r RelayEntry) String() string {
	return r.u.String()
}

// GetURI builds a full request URI on the relay for the given path.
func (r RelayEntry) GetURI(path string) string {
	u := *r.u
	u.Path = path
	return u.String()
}

// Client is the HTTP client for a single relay's builder API.
type Client struct {
	entry RelayEntry
	hc    *http.Client
}

// NewRelayClient constructs a relay client. Timeouts are enforced per
// request through contexts, not on the underlying http.Client, so one slow
// call never shortens the budget of another.
func NewRelayClient(entry RelayEntry) *Client {
	return &Client{
		entry: entry,
		hc:    &http.Client{},
	}
}

// Entry returns the relay entry this client talks to.
func (c *Client) Entry() RelayEntry {
	return c.entry
}

// do issues a JSON request and decodes a 200 response into dst. A 204 is
// reported as (false, nil) meaning "no content"; other non-200 codes are
// errors carrying the relay's status.
func (c *Client) do(ctx context.Context, method, path string, body, dst interface{}) (bool, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return false, errors.Wrap(err, "could not encode request body")
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.entry.GetURI(path), reader)
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, errors.Wrap(ErrRelayTimeout, c.entry.String())
		}
		return false, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.WithError(err).Debug("Could not close response body")
		}
	}()
	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, errors.Errorf("relay %s answered %d: %s", c.entry.String(), resp.StatusCode, string(msg))
	}
	if dst == nil {
		return true, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return false, errors.Wrap(builder.ErrDecode, err.Error())
	}
	return true, nil
}

// Status checks the relay's status endpoint.
func (c *Client) Status(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, pathStatus, nil, nil)
	return err
}

// SubmitConstraints posts a batch of signed constraint sets to the relay.
func (c *Client) SubmitConstraints(ctx context.Context, batch builder.BatchedSignedConstraints) error {
	_, err := c.do(ctx, http.MethodPost, pathSubmitConstraints, batch, nil)
	return err
}

// GetHeader requests a plain header bid. A nil bid with nil error means the
// relay has no bid for the slot.
func (c *Client) GetHeader(ctx context.Context, slot primitives.Slot, parentHash common.Hash, pubkey []byte) (*builder.VersionedSignedBuilderBid, error) {
	path := fmt.Sprintf(pathGetHeader, slot, parentHash.Hex(), hexutil.Encode(pubkey))
	bid := &builder.VersionedSignedBuilderBid{}
	ok, err := c.do(ctx, http.MethodGet, path, nil, bid)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return bid, nil
}

// GetHeaderWithProofs requests a header bid carrying transaction inclusion
// proofs. A nil response with nil error means the relay has no bid.
func (c *Client) GetHeaderWithProofs(ctx context.Context, slot primitives.Slot, parentHash common.Hash, pubkey []byte) (*builder.BidWithInclusionProofs, error) {
	path := fmt.Sprintf(pathGetHeaderWithProofs, slot, parentHash.Hex(), hexutil.Encode(pubkey))
	bwp := &builder.BidWithInclusionProofs{}
	ok, err := c.do(ctx, http.MethodGet, path, nil, bwp)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return bwp, nil
}

// GetPayload exchanges a signed blinded block for the full execution
// payload of the bid it references.
func (c *Client) GetPayload(ctx context.Context, blk *builder.VersionedSignedBlindedBlock) (*builder.VersionedExecutionPayload, error) {
	payload := &builder.VersionedExecutionPayload{}
	ok, err := c.do(ctx, http.MethodPost, pathGetPayload, blk, payload)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Errorf("relay %s returned no payload", c.entry.String())
	}
	return payload, nil
}

// checkRelayStatuses probes every relay concurrently at startup, logging
// unreachable ones. Used by Start only; failures are not fatal.
func checkRelayStatuses(ctx context.Context, clients []*Client, timeout time.Duration) {
	for _, client := range clients {
		go func(c *Client) {
			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if err := c.Status(probeCtx); err != nil {
				log.WithError(err).WithField("relay", c.Entry().String()).Warn("Relay status check failed")
				return
			}
			log.WithField("relay", c.Entry().String()).Info("Relay is reachable")
		}(client)
	}
}
