package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardshop/go-card-shop/internal/gateway"
	"github.com/cardshop/go-card-shop/internal/shop"
)

// ---- in-memory fakes ----

type fakeReservations struct {
	byTradeNo map[string]*shop.Reservation
}

func (f *fakeReservations) GetByTradeNo(_ context.Context, tradeNo string) (*shop.Reservation, error) {
	res, ok := f.byTradeNo[tradeNo]
	if !ok {
		return nil, shop.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

func (f *fakeReservations) MarkSettled(_ context.Context, id int64) error {
	for _, res := range f.byTradeNo {
		if res.ID == id {
			res.Status = shop.StatusSettled
		}
	}
	return nil
}

type fakeOrders struct {
	byTradeNo map[string]*shop.Order
	nextID    int64
	createErr error
}

func (f *fakeOrders) ExistsByTradeNo(_ context.Context, tradeNo string) (bool, error) {
	_, ok := f.byTradeNo[tradeNo]
	return ok, nil
}

func (f *fakeOrders) Create(_ context.Context, o *shop.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byTradeNo[o.TradeNo]; ok {
		return shop.ErrDuplicateOrder
	}
	f.nextID++
	o.ID = f.nextID
	cp := *o
	f.byTradeNo[o.TradeNo] = &cp
	return nil
}

func (f *fakeOrders) SetCard(_ context.Context, orderID int64, card string) error {
	for _, o := range f.byTradeNo {
		if o.ID == orderID {
			o.Card = &card
		}
	}
	return nil
}

func (f *fakeOrders) AppendRemark(_ context.Context, orderID int64, remark string) error {
	for _, o := range f.byTradeNo {
		if o.ID == orderID {
			if o.Remark == "" {
				o.Remark = remark
			} else {
				o.Remark = o.Remark + "; " + remark
			}
		}
	}
	return nil
}

type fakeAllocator struct {
	pool      int // unused cards remaining
	allocated int // total cards ever claimed
	calls     int
}

func (f *fakeAllocator) Allocate(_ context.Context, prodName string, orderID int64, num int) ([]shop.Card, error) {
	f.calls++
	if f.pool < num {
		return nil, &shop.InsufficientStockError{ProdName: prodName, Requested: num, Available: f.pool}
	}
	cards := make([]shop.Card, num)
	for i := range cards {
		cards[i] = shop.Card{
			ID:       int64(f.allocated + i + 1),
			ProdName: prodName,
			Content:  fmt.Sprintf("CODE-%d", f.allocated+i+1),
			Used:     true,
			OrderID:  &orderID,
		}
	}
	f.pool -= num
	f.allocated += num
	return cards, nil
}

type fakeSales struct {
	counts map[string]int
	err    error
}

func (f *fakeSales) AddSales(_ context.Context, name string, num int) error {
	if f.err != nil {
		return f.err
	}
	f.counts[name] += num
	return nil
}

// ---- helpers ----

func newReservation(tradeNo string, num int, auto bool) *shop.Reservation {
	unit := decimal.NewFromFloat(9.0)
	return &shop.Reservation{
		ID:        1,
		TradeNo:   tradeNo,
		ProdID:    7,
		Title:     "steam-key",
		Num:       num,
		UnitPrice: unit,
		Money:     unit.Mul(decimal.NewFromInt(int64(num))),
		Status:    shop.StatusUnsettled,
		Auto:      auto,
		Gateway:   "alipay",
		Contact:   "buyer@example.com",
		CreatedAt: time.Now().Add(-time.Minute),
		EndTime:   time.Now().Add(time.Hour),
	}
}

func newProcessor(res *shop.Reservation, pool int) (*Processor, *fakeReservations, *fakeOrders, *fakeAllocator, *fakeSales) {
	reservations := &fakeReservations{byTradeNo: map[string]*shop.Reservation{}}
	if res != nil {
		reservations.byTradeNo[res.TradeNo] = res
	}
	orders := &fakeOrders{byTradeNo: map[string]*shop.Order{}}
	cards := &fakeAllocator{pool: pool}
	sales := &fakeSales{counts: map[string]int{}}
	p := &Processor{
		Reservations: reservations,
		Orders:       orders,
		Cards:        cards,
		Products:     sales,
		ServiceName:  "test",
	}
	return p, reservations, orders, cards, sales
}

// ---- tests ----

func TestProcess_SettlesAndAllocates(t *testing.T) {
	res := newReservation("T100", 3, true)
	p, reservations, orders, cards, sales := newProcessor(res, 10)

	err := p.Process(context.Background(), gateway.PaymentEvent{TradeNo: "T100", Paid: true}, "alipay")
	require.NoError(t, err)

	o := orders.byTradeNo["T100"]
	require.NotNil(t, o, "order must exist after processing")
	assert.Equal(t, res.Num, o.Num)
	assert.True(t, o.Money.Equal(res.Money), "order money must equal reservation money verbatim")
	assert.True(t, o.UnitPrice.Equal(res.UnitPrice))
	assert.Equal(t, "alipay", o.Gateway)
	require.NotNil(t, o.Card)
	assert.Equal(t, "CODE-1\nCODE-2\nCODE-3", *o.Card)

	assert.Equal(t, shop.StatusSettled, reservations.byTradeNo["T100"].Status)
	assert.Equal(t, 3, cards.allocated)
	assert.Equal(t, 3, sales.counts["steam-key"])
}

func TestProcess_IdempotentOnDuplicateDelivery(t *testing.T) {
	res := newReservation("T200", 2, true)
	p, _, orders, cards, _ := newProcessor(res, 10)

	ev := gateway.PaymentEvent{TradeNo: "T200", Paid: true}
	require.NoError(t, p.Process(context.Background(), ev, "wechat"))
	require.NoError(t, p.Process(context.Background(), ev, "wechat"), "duplicate must be a no-op success")
	require.NoError(t, p.Process(context.Background(), ev, "alipay"), "duplicate via another gateway too")

	assert.Len(t, orders.byTradeNo, 1, "exactly one order")
	assert.Equal(t, 1, cards.calls, "at most one allocation")
	assert.Equal(t, 2, cards.allocated)
}

func TestProcess_DuplicateInsertRaceIsSuccess(t *testing.T) {
	// the other delivery won between our existence check and our insert
	res := newReservation("T300", 1, false)
	p, _, orders, _, _ := newProcessor(res, 0)
	orders.createErr = shop.ErrDuplicateOrder

	err := p.Process(context.Background(), gateway.PaymentEvent{TradeNo: "T300", Paid: true}, "generic")
	assert.NoError(t, err, "losing the insert race means already processed")
}

func TestProcess_ShortfallDoesNotBlockConfirmation(t *testing.T) {
	res := newReservation("T400", 5, true)
	p, _, orders, cards, sales := newProcessor(res, 3) // only 3 cards for 5 requested

	err := p.Process(context.Background(), gateway.PaymentEvent{TradeNo: "T400", Paid: true}, "alipay")
	require.NoError(t, err, "stock shortage must not fail the transition")

	o := orders.byTradeNo["T400"]
	require.NotNil(t, o, "payment is recorded even without cards")
	assert.Nil(t, o.Card, "no cards attached")
	assert.Equal(t, "Failed to allocate 5 cards. Insufficient stock.", o.Remark)
	assert.Equal(t, 0, cards.allocated, "zero cards claimed on shortfall")
	assert.Equal(t, 3, cards.pool, "pool untouched")
	assert.Equal(t, 5, sales.counts["steam-key"], "sales still counted")
}

func TestProcess_ShortfallAppendsToExistingRemark(t *testing.T) {
	res := newReservation("T410", 2, true)
	res.Remark = "gift wrap"
	p, _, orders, _, _ := newProcessor(res, 0)

	require.NoError(t, p.Process(context.Background(), gateway.PaymentEvent{TradeNo: "T410", Paid: true}, "alipay"))
	assert.Equal(t, "gift wrap; Failed to allocate 2 cards. Insufficient stock.", orders.byTradeNo["T410"].Remark)
}

func TestProcess_ManualDeliverySkipsAllocation(t *testing.T) {
	res := newReservation("T500", 4, false) // auto off
	p, _, orders, cards, _ := newProcessor(res, 10)

	require.NoError(t, p.Process(context.Background(), gateway.PaymentEvent{TradeNo: "T500", Paid: true}, "alipay"))
	assert.Equal(t, 0, cards.calls)
	assert.Nil(t, orders.byTradeNo["T500"].Card)
}

func TestProcess_MissingReservationNeedsReconciliation(t *testing.T) {
	p, _, orders, _, _ := newProcessor(nil, 0)

	err := p.Process(context.Background(), gateway.PaymentEvent{TradeNo: "GHOST", Paid: true}, "alipay")
	require.ErrorIs(t, err, ErrReconciliationRequired)
	assert.Empty(t, orders.byTradeNo, "no order created")
}

func TestProcess_SettledWithoutOrderNeedsReconciliation(t *testing.T) {
	res := newReservation("T600", 1, false)
	res.Status = shop.StatusSettled // settled, but no order row exists
	p, _, _, _, _ := newProcessor(res, 0)

	err := p.Process(context.Background(), gateway.PaymentEvent{TradeNo: "T600", Paid: true}, "alipay")
	require.ErrorIs(t, err, ErrReconciliationRequired)
}

func TestProcess_OrderInsertFailureIsCritical(t *testing.T) {
	res := newReservation("T700", 1, false)
	p, _, orders, _, _ := newProcessor(res, 0)
	orders.createErr = errors.New("connection reset")

	err := p.Process(context.Background(), gateway.PaymentEvent{TradeNo: "T700", Paid: true}, "alipay")
	require.ErrorIs(t, err, ErrOrderCreation, "non-duplicate insert failure must surface so the gateway retries")
}

func TestProcess_SalesCounterFailureIsNotFatal(t *testing.T) {
	res := newReservation("T800", 2, true)
	p, _, orders, _, sales := newProcessor(res, 10)
	sales.err = errors.New("deadlock detected")

	err := p.Process(context.Background(), gateway.PaymentEvent{TradeNo: "T800", Paid: true}, "alipay")
	assert.NoError(t, err)
	assert.NotNil(t, orders.byTradeNo["T800"])
}

func TestProcess_LateConfirmationStillHonored(t *testing.T) {
	// expiry is advisory: payment truth outranks the soft timer
	res := newReservation("T900", 1, true)
	res.EndTime = time.Now().Add(-2 * time.Hour)
	p, _, orders, _, _ := newProcessor(res, 10)

	require.NoError(t, p.Process(context.Background(), gateway.PaymentEvent{TradeNo: "T900", Paid: true}, "alipay"))
	assert.NotNil(t, orders.byTradeNo["T900"])
}
