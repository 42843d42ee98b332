// Package gateway coordinates the proposer's relay interactions for a slot:
// broadcasting constraint sets, collecting and verifying header bids with
// inclusion proofs, and holding the winning relay to its header when the
// payload is revealed.
package gateway

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/preconf-labs/gateway/api/builder"
	"github.com/preconf-labs/gateway/async"
	"github.com/preconf-labs/gateway/config/params"
	"github.com/preconf-labs/gateway/consensus-types/primitives"
	"github.com/preconf-labs/gateway/constraints"
	"github.com/preconf-labs/gateway/proof"
)

// SlotStatus is the per-slot stage of the bid lifecycle.
type SlotStatus int

const (
	// StatusIdle means no work has started for the slot.
	StatusIdle SlotStatus = iota
	// StatusAwaitingHeader means header requests are in flight.
	StatusAwaitingHeader
	// StatusAwaitingProofVerification means responses are being checked.
	StatusAwaitingProofVerification
	// StatusAwaitingPayload means a bid was accepted and the payload has
	// not been revealed yet.
	StatusAwaitingPayload
	// StatusDelivered means the revealed payload matched the accepted
	// header and was handed off.
	StatusDelivered
	// StatusRejected means the slot ended without a usable payload.
	StatusRejected
)

// String returns the human readable form of the status.
func (s SlotStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusAwaitingHeader:
		return "awaiting_header"
	case StatusAwaitingProofVerification:
		return "awaiting_proof_verification"
	case StatusAwaitingPayload:
		return "awaiting_payload"
	case StatusDelivered:
		return "delivered"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Config options for the gateway service.
type Config struct {
	RelayEntries    []RelayEntry
	Registry        *constraints.Registry
	HeaderDeadline  time.Duration
	PayloadDeadline time.Duration
	MinBidValue     *uint256.Int
}

// Service fans header and payload requests out to the configured relays and
// arbitrates their responses. One Service handles one proposer; slots are
// tracked independently so a late payload for slot N cannot race the header
// round of slot N+1.
type Service struct {
	cfg     *Config
	ctx     context.Context
	cancel  context.CancelFunc
	clients []*Client

	lock  sync.RWMutex
	slots map[primitives.Slot]*slotState
}

type slotState struct {
	status   SlotStatus
	accepted *AcceptedBid
	cancel   context.CancelFunc
}

// New creates the gateway service from validated relay entries.
func New(ctx context.Context, cfg *Config) (*Service, error) {
	if len(cfg.RelayEntries) == 0 {
		return nil, ErrNoRelays
	}
	if cfg.HeaderDeadline == 0 {
		cfg.HeaderDeadline = time.Second
	}
	if cfg.PayloadDeadline == 0 {
		cfg.PayloadDeadline = 4 * time.Second
	}
	clients := make([]*Client, len(cfg.RelayEntries))
	for i, entry := range cfg.RelayEntries {
		clients[i] = NewRelayClient(entry)
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		clients: clients,
		slots:   make(map[primitives.Slot]*slotState),
	}, nil
}

// Start probes every configured relay and begins periodic cleanup of
// finished slot state.
func (s *Service) Start() {
	log.WithField("relays", len(s.clients)).Info("Starting relay gateway")
	checkRelayStatuses(s.ctx, s.clients, s.cfg.HeaderDeadline)
	cfg := params.GatewayConfiguration()
	epoch := time.Duration(cfg.SlotsPerEpoch*cfg.SecondsPerSlot) * time.Second
	async.RunEvery(s.ctx, epoch, s.pruneStale)
}

// Stop cancels all in-flight relay requests.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status is always healthy while the service context is live.
func (s *Service) Status() error {
	if err := s.ctx.Err(); err != nil {
		return errors.Wrap(err, "gateway stopped")
	}
	return nil
}

// SlotStatus reports the lifecycle stage of a slot.
func (s *Service) SlotStatus(slot primitives.Slot) SlotStatus {
	s.lock.RLock()
	defer s.lock.RUnlock()
	st, ok := s.slots[slot]
	if !ok {
		return StatusIdle
	}
	return st.status
}

func (s *Service) setStatus(slot primitives.Slot, status SlotStatus) {
	s.lock.Lock()
	defer s.lock.Unlock()
	st, ok := s.slots[slot]
	if !ok {
		st = &slotState{}
		s.slots[slot] = st
	}
	st.status = status
}

// SubmitConstraints signs nothing itself; it broadcasts an already signed
// batch to every relay concurrently and succeeds if at least one relay
// accepted it.
func (s *Service) SubmitConstraints(ctx context.Context, batch builder.BatchedSignedConstraints) error {
	if len(batch) == 0 {
		return constraints.ErrNilMessage
	}
	var accepted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, client := range s.clients {
		client := client
		g.Go(func() error {
			reqCtx, cancel := context.WithTimeout(gctx, s.cfg.HeaderDeadline)
			defer cancel()
			if err := client.SubmitConstraints(reqCtx, batch); err != nil {
				log.WithError(err).WithField("relay", client.Entry().String()).Warn("Relay refused constraints")
				return nil
			}
			accepted.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if accepted.Load() == 0 {
		return errors.Wrap(ErrNoRelays, "no relay accepted the constraint batch")
	}
	log.WithField("relays", accepted.Load()).Debug("Constraints submitted")
	return nil
}

type headerResult struct {
	entry RelayEntry
	bid   *builder.BidWithInclusionProofs
	err   error
}

// RequestHeader asks every relay for a header bid for the slot and returns
// the best verified one. Relays are queried concurrently; each response is
// verified as it arrives and disqualified individually, so one bad relay
// never sinks the round. The highest value wins, and on equal value the bid
// that arrived first keeps the slot.
func (s *Service) RequestHeader(ctx context.Context, slot primitives.Slot, parentHash common.Hash, proposerPubkey []byte) (*AcceptedBid, error) {
	slotCtx, cancelSlot := context.WithCancel(ctx)
	s.lock.Lock()
	s.slots[slot] = &slotState{status: StatusAwaitingHeader, cancel: cancelSlot}
	s.lock.Unlock()

	committed := s.cfg.Registry.Transactions(slot)
	results := make(chan headerResult, len(s.clients))
	for _, client := range s.clients {
		go func(c *Client) {
			headerRequestsTotal.WithLabelValues(c.Entry().String()).Inc()
			reqCtx, cancel := context.WithTimeout(slotCtx, s.cfg.HeaderDeadline)
			defer cancel()
			bid, err := s.fetchHeader(reqCtx, c, slot, parentHash, proposerPubkey, len(committed) > 0)
			results <- headerResult{entry: c.Entry(), bid: bid, err: err}
		}(client)
	}

	var best *AcceptedBid
	timer := time.NewTimer(s.cfg.HeaderDeadline)
	defer timer.Stop()
	pending := len(s.clients)

collect:
	for pending > 0 {
		select {
		case res := <-results:
			pending--
			if res.err != nil {
				bidsRejectedTotal.WithLabelValues(rejectionReason(res.err)).Inc()
				log.WithError(res.err).WithField("relay", res.entry.String()).Warn("Relay header request failed")
				continue
			}
			if res.bid == nil {
				log.WithField("relay", res.entry.String()).Debug("Relay has no bid for slot")
				continue
			}
			s.setStatus(slot, StatusAwaitingProofVerification)
			accepted, err := verifyBid(res.entry, res.bid, committed, s.cfg.MinBidValue)
			if err != nil {
				bidsRejectedTotal.WithLabelValues(rejectionReason(err)).Inc()
				log.WithError(err).WithField("relay", res.entry.String()).Warn("Relay bid disqualified")
				continue
			}
			bidsVerifiedTotal.Inc()
			log.WithFields(logFieldsForBid(accepted)).Debug("Relay bid verified")
			if best == nil || accepted.Value.Cmp(best.Value) > 0 {
				best = accepted
			}
		case <-timer.C:
			break collect
		case <-slotCtx.Done():
			break collect
		}
	}

	if best == nil {
		s.setStatus(slot, StatusRejected)
		cancelSlot()
		return nil, errors.Wrapf(ErrNoBids, "slot %d", slot)
	}
	s.lock.Lock()
	st := s.slots[slot]
	st.status = StatusAwaitingPayload
	st.accepted = best
	s.lock.Unlock()
	log.WithFields(logFieldsForBid(best)).Info("Accepted relay bid")
	return best, nil
}

// fetchHeader picks the proofs variant of the header endpoint whenever the
// slot carries constraints. A plain bid is acceptable only for slots with
// nothing to prove.
func (s *Service) fetchHeader(ctx context.Context, c *Client, slot primitives.Slot, parentHash common.Hash, pubkey []byte, withProofs bool) (*builder.BidWithInclusionProofs, error) {
	if withProofs {
		return c.GetHeaderWithProofs(ctx, slot, parentHash, pubkey)
	}
	bid, err := c.GetHeader(ctx, slot, parentHash, pubkey)
	if err != nil || bid == nil {
		return nil, err
	}
	return &builder.BidWithInclusionProofs{Bid: bid}, nil
}

// RequestPayload exchanges the proposer's signed blinded block for the full
// payload from the relay whose bid won the slot, and checks the reveal
// against the accepted header before releasing it. A mismatch marks the slot
// rejected; the payload must not be used.
func (s *Service) RequestPayload(ctx context.Context, slot primitives.Slot, blk *builder.VersionedSignedBlindedBlock) (*builder.VersionedExecutionPayload, error) {
	s.lock.RLock()
	st, ok := s.slots[slot]
	s.lock.RUnlock()
	if !ok || st.status != StatusAwaitingPayload || st.accepted == nil {
		return nil, errors.Wrapf(ErrNoAcceptedBid, "slot %d", slot)
	}
	accepted := st.accepted

	var client *Client
	for _, c := range s.clients {
		if bytes.Equal(c.Entry().PublicKey, accepted.Relay.PublicKey) {
			client = c
			break
		}
	}
	if client == nil {
		return nil, errors.Wrapf(ErrNoAcceptedBid, "winning relay %s no longer configured", accepted.Relay.String())
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.PayloadDeadline)
	defer cancel()
	payload, err := client.GetPayload(reqCtx, blk)
	if err != nil {
		s.setStatus(slot, StatusRejected)
		return nil, err
	}
	if err := validatePayload(accepted, payload); err != nil {
		payloadIntegrityFailures.Inc()
		s.setStatus(slot, StatusRejected)
		return nil, errors.Wrapf(err, "relay %s", accepted.Relay.String())
	}

	payloadsDeliveredTotal.Inc()
	s.lock.Lock()
	st.status = StatusDelivered
	cancelSlot := st.cancel
	s.lock.Unlock()
	if cancelSlot != nil {
		cancelSlot()
	}
	log.WithField("slot", slot).WithField("blockHash", accepted.BlockHash.Hex()).Info("Payload delivered")
	return payload, nil
}

// validatePayload holds the revealed payload to the accepted header: same
// fork version, same block hash, a transaction list that reproduces the
// committed transactions root, and the proven transaction bytes verbatim at
// their proven positions.
func validatePayload(accepted *AcceptedBid, payload *builder.VersionedExecutionPayload) error {
	v, err := payload.Version()
	if err != nil {
		return err
	}
	if v != accepted.Version {
		return errors.Wrapf(builder.ErrVersionMismatch, "payload version %d, bid version %d", v, accepted.Version)
	}
	blockHash, err := payload.BlockHash()
	if err != nil {
		return err
	}
	if blockHash != accepted.BlockHash {
		return errors.Wrapf(ErrPayloadMismatch, "payload block hash %s, bid block hash %s", blockHash.Hex(), accepted.BlockHash.Hex())
	}
	txs, err := payload.Transactions()
	if err != nil {
		return err
	}
	tree, err := proof.NewTransactionsTree(txs)
	if err != nil {
		return err
	}
	if root := tree.HashTreeRoot(); root != [32]byte(accepted.TransactionsRoot) {
		return errors.Wrap(ErrPayloadMismatch, "transactions root differs from accepted header")
	}
	for idx, committed := range accepted.ProvenTransactions {
		if idx >= uint64(len(txs)) || !bytes.Equal(txs[idx], committed) {
			return errors.Wrapf(ErrPayloadMismatch, "proven transaction missing at index %d", idx)
		}
	}
	return nil
}

// pruneStale drops slot state two epochs behind the newest tracked slot.
// RequestHeader drives the notion of "newest"; without an external clock the
// gateway only ever learns slots it was asked to serve.
func (s *Service) pruneStale() {
	margin := 2 * params.GatewayConfiguration().SlotsPerEpoch
	s.lock.RLock()
	var newest primitives.Slot
	for slot := range s.slots {
		if slot > newest {
			newest = slot
		}
	}
	s.lock.RUnlock()
	if uint64(newest) <= margin {
		return
	}
	s.Prune(newest.Sub(margin))
}

// Prune drops slot state and constraint registry entries at or below head.
func (s *Service) Prune(head primitives.Slot) {
	s.lock.Lock()
	for slot, st := range s.slots {
		if slot <= head {
			if st.cancel != nil {
				st.cancel()
			}
			delete(s.slots, slot)
		}
	}
	s.lock.Unlock()
	s.cfg.Registry.Prune(head)
}

func logFieldsForBid(b *AcceptedBid) map[string]interface{} {
	return map[string]interface{}{
		"relay":     b.Relay.String(),
		"value":     b.Value.Dec(),
		"blockHash": b.BlockHash.Hex(),
		"proven":    len(b.ProvenTransactions),
	}
}
