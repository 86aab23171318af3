package shop

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderSettled        = "OrderSettled"
	EventAllocationShortfall = "AllocationShortfall"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "card-shop-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // trade_no
	Payload       json.RawMessage `json:"payload"`
}

// ---- payload types per event ----

type OrderSettledPayload struct {
	TradeNo   string          `json:"trade_no"`
	Title     string          `json:"title"`
	Num       int             `json:"num"`
	Money     decimal.Decimal `json:"money"`
	Gateway   string          `json:"gateway"`
	Fulfilled bool            `json:"fulfilled"` // cards allocated (auto products only)
}

type AllocationShortfallPayload struct {
	TradeNo   string `json:"trade_no"`
	Title     string `json:"title"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}
