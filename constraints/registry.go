// Package constraints keeps the per-slot store of signed constraint sets.
// The registry has exactly one writer, the proposer's signing path; the
// gateway's verification tasks only ever read immutable snapshots, so a
// concurrent write can never corrupt an in-progress proof check.
package constraints

import (
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/preconf-labs/gateway/api/builder"
	"github.com/preconf-labs/gateway/config/params"
	"github.com/preconf-labs/gateway/consensus-types/primitives"
	"github.com/preconf-labs/gateway/consensus/signing"
	"github.com/preconf-labs/gateway/crypto/bls"
	"github.com/preconf-labs/gateway/encoding/bytesutil"
)

// ErrNilMessage is returned when a constraint set has no message.
var ErrNilMessage = errors.New("nil constraints message")

// ErrDuplicateConstraint is returned when a transaction hash is committed
// twice for the same slot.
var ErrDuplicateConstraint = errors.New("constraint already registered for transaction")

// Registry stores signed constraint sets keyed by slot. Entries expire on
// their own once the slot is unreachable; Prune drops them eagerly when the
// head advances.
type Registry struct {
	store *gocache.Cache
}

// NewRegistry creates a registry whose entries outlive a slot by two
// epochs, enough for any in-flight verification to finish.
func NewRegistry() *Registry {
	cfg := params.GatewayConfiguration()
	ttl := time.Duration(2*cfg.SlotsPerEpoch*cfg.SecondsPerSlot) * time.Second
	return &Registry{
		store: gocache.New(ttl, ttl),
	}
}

func slotKey(slot primitives.Slot) string {
	return strconv.FormatUint(uint64(slot), 10)
}

// Add registers a signed constraint set for its slot. Only the signing path
// calls Add; it must not be called concurrently with itself.
func (r *Registry) Add(sc *builder.SignedConstraints) error {
	if sc == nil || sc.Message == nil {
		return ErrNilMessage
	}
	slot := primitives.Slot(sc.Message.Slot)
	existing := r.snapshotLocked(slot)
	seen := make(map[common.Hash]struct{})
	for _, s := range existing {
		for _, c := range s.Message.Constraints {
			seen[c.Hash] = struct{}{}
		}
	}
	for _, c := range sc.Message.Constraints {
		if _, dup := seen[c.Hash]; dup {
			return errors.Wrapf(ErrDuplicateConstraint, "%#x", c.Hash)
		}
	}
	r.store.SetDefault(slotKey(slot), append(existing, copySignedConstraints(sc)))
	return nil
}

// Snapshot returns a deep copy of every signed constraint set registered
// for the slot. The returned slice is owned by the caller.
func (r *Registry) Snapshot(slot primitives.Slot) []*builder.SignedConstraints {
	return r.snapshotLocked(slot)
}

func (r *Registry) snapshotLocked(slot primitives.Slot) []*builder.SignedConstraints {
	v, ok := r.store.Get(slotKey(slot))
	if !ok {
		return nil
	}
	stored, ok := v.([]*builder.SignedConstraints)
	if !ok {
		return nil
	}
	out := make([]*builder.SignedConstraints, len(stored))
	for i, sc := range stored {
		out[i] = copySignedConstraints(sc)
	}
	return out
}

// Transactions returns the committed transactions for a slot, deduplicated
// by hash, in registration order.
func (r *Registry) Transactions(slot primitives.Slot) []*builder.Constraint {
	var out []*builder.Constraint
	seen := make(map[common.Hash]struct{})
	for _, sc := range r.snapshotLocked(slot) {
		for _, c := range sc.Message.Constraints {
			if _, dup := seen[c.Hash]; dup {
				continue
			}
			seen[c.Hash] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// Prune drops every slot at or below the given head. Expiry would get there
// eventually; pruning keeps the store small on long runs.
func (r *Registry) Prune(head primitives.Slot) {
	for key := range r.store.Items() {
		slot, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			r.store.Delete(key)
			continue
		}
		if primitives.Slot(slot) <= head {
			r.store.Delete(key)
		}
	}
}

func copySignedConstraints(sc *builder.SignedConstraints) *builder.SignedConstraints {
	msg := &builder.ConstraintsMessage{
		ValidatorIndex: sc.Message.ValidatorIndex,
		Slot:           sc.Message.Slot,
		Constraints:    make([]*builder.Constraint, len(sc.Message.Constraints)),
	}
	for i, c := range sc.Message.Constraints {
		msg.Constraints[i] = &builder.Constraint{
			Transaction: bytesutil.SafeCopyBytes(c.Transaction),
			Hash:        c.Hash,
		}
	}
	return &builder.SignedConstraints{
		Message:   msg,
		Signature: bytesutil.SafeCopyBytes(sc.Signature),
	}
}

// NewSignedConstraints signs a constraints message under the
// proposer-constraints domain. This is the registry's single write path.
func NewSignedConstraints(sk bls.SecretKey, msg *builder.ConstraintsMessage) (*builder.SignedConstraints, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	sig, err := signing.Sign(sk, msg, builder.ConstraintsSigningDomain())
	if err != nil {
		return nil, errors.Wrap(err, "could not sign constraints message")
	}
	return &builder.SignedConstraints{Message: msg, Signature: sig}, nil
}
