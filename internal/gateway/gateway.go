// Package gateway normalizes payment-gateway webhook payloads into
// canonical payment events and builds the per-gateway acknowledgment
// each provider expects back.
package gateway

import (
	"errors"
	"net/http"
	"strings"
)

// PaymentEvent is the canonical form of a webhook notification.
type PaymentEvent struct {
	TradeNo string // external order id
	Paid    bool   // the notification reports a completed payment
}

type Outcome int

const (
	OutcomeProcessed Outcome = iota
	OutcomeRejected
)

// Ack is the gateway-specific acknowledgment response. Returning the
// wrong shape makes the gateway redeliver indefinitely; the pipeline's
// idempotency gate tolerates that, but the right shape stops it.
type Ack struct {
	StatusCode  int
	ContentType string
	Body        string
}

// ErrParse: the payload could not be decoded or carries no extractable
// trade number. No state is mutated on this path.
var ErrParse = errors.New("gateway: unintelligible payload")

type Adapter interface {
	Name() string

	// Verify checks the request origin (signature, source). Variants
	// without a real scheme return true unconditionally — a documented
	// weak default, not a silent bug.
	Verify(r *http.Request, body []byte) bool

	Normalize(body []byte) (PaymentEvent, error)
	Acknowledge(o Outcome) Ack
}

// Resolve picks the adapter for a gateway name. Dedicated variants match
// by substring, everything else falls back to the generic adapter under
// the given name.
func Resolve(name string) Adapter {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "alipay"):
		return &Alipay{}
	case strings.Contains(lower, "wechat"):
		return &Wechat{}
	default:
		return &Generic{GatewayName: name}
	}
}
