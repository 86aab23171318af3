package redisx

import "time"

const (
	// Settlement status cache: payment_status:{trade_no} -> {"status":"..."}
	KeyPaymentStatus = "payment_status:%s"

	// Webhook dedup fast-path: dedup:{gateway}:{trade_no}. Order existence
	// in the DB stays the idempotency truth; this only absorbs redelivery
	// storms cheaply.
	KeyDedup = "dedup:%s:%s"

	// Stock-count cache per product: stock:{prod_name} -> count
	KeyStock = "stock:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLStock       = 30 * time.Second
)
