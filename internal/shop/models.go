package shop

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID             int64
	CagName        string
	Name           string
	Info           string
	ImgURL         string
	Sort           int
	Price          decimal.Decimal
	PriceWholesale string // "10,50#9.0,8.0" — thresholds#prices, empty = no schedule
	Auto           bool
	Sales          int
	Tag            string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Reservation is a pending purchase ("temp order") awaiting gateway
// confirmation. Mutated only by the confirmation transition
// (UNSETTLED -> SETTLED), never otherwise.
type Reservation struct {
	ID         int64
	TradeNo    string // external order id, caller-supplied, unique
	ProdID     int64
	Title      string // product name
	Num        int
	UnitPrice  decimal.Decimal
	Money      decimal.Decimal // total, = UnitPrice * Num at creation time
	Status     SettleStatus
	Auto       bool
	Gateway    string // payment method chosen at checkout
	Contact    string
	ContactTxt string
	Email      string
	Remark     string
	CreatedAt  time.Time
	EndTime    time.Time // advisory expiry, not enforced by the pipeline
}

// Order is a confirmed purchase. Its existence, keyed by TradeNo, is the
// single source of idempotency truth for the confirmation pipeline.
type Order struct {
	ID         int64
	TradeNo    string
	ProdID     int64
	Title      string
	Num        int
	UnitPrice  decimal.Decimal
	Money      decimal.Decimal
	Card       *string // concatenated card payloads; nil = allocation pending or manual delivery
	Gateway    string  // gateway identity that confirmed the payment
	Contact    string
	ContactTxt string
	Email      string
	Remark     string
	Auto       bool
	CreatedAt  time.Time
	SettledAt  time.Time
}

// Card is one dispensable redemption code. A used card always has a
// non-nil OrderID; an unused card always has a nil OrderID.
type Card struct {
	ID       int64
	ProdName string
	Content  string
	Reusable bool
	Used     bool
	OrderID  *int64
}
