package gateway

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/preconf-labs/gateway/api/builder"
	"github.com/preconf-labs/gateway/consensus/signing"
	"github.com/preconf-labs/gateway/proof"
)

var (
	headerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_header_requests_total",
		Help: "Header requests issued, per relay.",
	}, []string{"relay"})
	bidsVerifiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_bids_verified_total",
		Help: "Relay bids that passed signature, proof and value checks.",
	})
	bidsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_bids_rejected_total",
		Help: "Relay bids disqualified during verification, by reason.",
	}, []string{"reason"})
	payloadsDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_payloads_delivered_total",
		Help: "Payloads validated against their accepted header and delivered.",
	})
	payloadIntegrityFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_payload_integrity_failures_total",
		Help: "Accepted bids whose revealed payload failed validation.",
	})
)

// rejectionReason maps a disqualification error onto its metric label.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, proof.ErrProofInvalid):
		return "proof_invalid"
	case errors.Is(err, proof.ErrProofIncomplete):
		return "proof_incomplete"
	case errors.Is(err, signing.ErrSigFailedToVerify):
		return "signature_invalid"
	case errors.Is(err, builder.ErrUnsupportedVersion), errors.Is(err, builder.ErrVersionMismatch):
		return "version_mismatch"
	case errors.Is(err, builder.ErrDecode):
		return "decode_error"
	case errors.Is(err, ErrValueTooLow):
		return "value_too_low"
	case errors.Is(err, ErrRelayTimeout):
		return "timeout"
	default:
		return "other"
	}
}
