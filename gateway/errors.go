package gateway

import "github.com/pkg/errors"

// ErrNoRelays is returned when the gateway is configured without relays.
var ErrNoRelays = errors.New("no relay entries configured")

// ErrNoBids is returned when no relay produced a verified bid before the
// slot's header deadline.
var ErrNoBids = errors.New("no verified bids for slot")

// ErrNoAcceptedBid is returned when a payload is requested without a
// previously accepted bid.
var ErrNoAcceptedBid = errors.New("no accepted bid for slot")

// ErrValueTooLow disqualifies a bid below the configured floor.
var ErrValueTooLow = errors.New("bid value below configured floor")

// ErrRelayTimeout marks a relay request that exceeded its deadline. It
// disqualifies that relay's response only.
var ErrRelayTimeout = errors.New("relay request exceeded deadline")

// ErrPayloadMismatch is a per-slot integrity failure: the revealed payload
// does not reproduce what was proven for the accepted header. It implies
// relay or builder misbehavior, not a losing bid, and the payload must not
// be used.
var ErrPayloadMismatch = errors.New("payload does not match accepted header")
