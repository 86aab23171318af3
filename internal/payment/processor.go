// Package payment turns confirmed gateway events into settled orders:
// idempotency gate, reservation settlement, order creation, best-effort
// card allocation and sales counting.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/cardshop/go-card-shop/internal/gateway"
	kafkax "github.com/cardshop/go-card-shop/internal/kafka"
	"github.com/cardshop/go-card-shop/internal/metrics"
	"github.com/cardshop/go-card-shop/internal/shop"
)

type ReservationStore interface {
	GetByTradeNo(ctx context.Context, tradeNo string) (*shop.Reservation, error)
	MarkSettled(ctx context.Context, id int64) error
}

type OrderStore interface {
	ExistsByTradeNo(ctx context.Context, tradeNo string) (bool, error)
	Create(ctx context.Context, o *shop.Order) error
	SetCard(ctx context.Context, orderID int64, card string) error
	AppendRemark(ctx context.Context, orderID int64, remark string) error
}

type CardAllocator interface {
	Allocate(ctx context.Context, prodName string, orderID int64, num int) ([]shop.Card, error)
}

type SalesCounter interface {
	AddSales(ctx context.Context, name string, num int) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

var (
	// ErrReconciliationRequired: reservation missing, or marked settled
	// with no matching order. Never retried automatically; an operator
	// has to look.
	ErrReconciliationRequired = errors.New("reservation missing or inconsistent, manual reconciliation required")

	// ErrOrderCreation: the order insert failed for a reason other than a
	// duplicate trade number. The gateway's redelivery is the retry path;
	// that is safe because no order was persisted.
	ErrOrderCreation = errors.New("order insert failed")
)

type Processor struct {
	Reservations ReservationStore
	Orders       OrderStore
	Cards        CardAllocator
	Products     SalesCounter

	SettledProducer   Publisher     // optional, topic order.settled
	ShortfallProducer Publisher     // optional, topic order.allocation.shortfall
	Metrics           *metrics.Shop // optional
	ServiceName       string
}

// Process runs the confirmation transition for a paid event. A nil return
// means the order is settled — whether by this call or a previous one;
// duplicate deliveries are expected and harmless.
func (p *Processor) Process(ctx context.Context, ev gateway.PaymentEvent, gatewayName string) error {
	// 1) idempotency gate: order existence = already processed
	exists, err := p.Orders.ExistsByTradeNo(ctx, ev.TradeNo)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("payment: trade_no=%s already processed, ignoring duplicate from %s", ev.TradeNo, gatewayName)
		return nil
	}

	// 2) fetch the reservation; absent or settled-without-order is an
	// inconsistent state this pipeline cannot repair
	res, err := p.Reservations.GetByTradeNo(ctx, ev.TradeNo)
	if err != nil {
		if errors.Is(err, shop.ErrNotFound) {
			return fmt.Errorf("trade_no=%s gateway=%s: %w", ev.TradeNo, gatewayName, ErrReconciliationRequired)
		}
		return err
	}
	if res.Status == shop.StatusSettled {
		return fmt.Errorf("trade_no=%s gateway=%s settled without order: %w", ev.TradeNo, gatewayName, ErrReconciliationRequired)
	}

	// 3) mark settled
	if err := p.Reservations.MarkSettled(ctx, res.ID); err != nil {
		return err
	}

	// 4) create the order, copying money fields verbatim from the
	// reservation; card payload stays empty until allocation
	now := time.Now().UTC()
	order := &shop.Order{
		TradeNo:    res.TradeNo,
		ProdID:     res.ProdID,
		Title:      res.Title,
		Num:        res.Num,
		UnitPrice:  res.UnitPrice,
		Money:      res.Money,
		Gateway:    gatewayName,
		Contact:    res.Contact,
		ContactTxt: res.ContactTxt,
		Email:      res.Email,
		Remark:     res.Remark,
		Auto:       res.Auto,
		CreatedAt:  res.CreatedAt,
		SettledAt:  now,
	}
	if err := p.Orders.Create(ctx, order); err != nil {
		if errors.Is(err, shop.ErrDuplicateOrder) {
			// lost the race against a concurrent duplicate delivery
			log.Printf("payment: trade_no=%s concurrently processed, ignoring", ev.TradeNo)
			return nil
		}
		// reservation is settled but no order exists: the one genuinely
		// critical state, needs manual intervention if redelivery also fails
		log.Printf("payment: CRITICAL trade_no=%s reservation settled but order insert failed: %v", ev.TradeNo, err)
		return fmt.Errorf("trade_no=%s: %w: %v", ev.TradeNo, ErrOrderCreation, err)
	}

	// 5) best-effort fulfillment; stock shortage never blocks a confirmed
	// payment, it is recorded on the order for manual reconciliation
	fulfilled := false
	if res.Auto {
		cards, err := p.Cards.Allocate(ctx, res.Title, order.ID, res.Num)
		switch {
		case err == nil:
			contents := make([]string, len(cards))
			for i, c := range cards {
				contents[i] = c.Content
			}
			if err := p.Orders.SetCard(ctx, order.ID, strings.Join(contents, "\n")); err != nil {
				log.Printf("payment: trade_no=%s card payload write failed: %v", ev.TradeNo, err)
			} else {
				fulfilled = true
			}
			if p.Metrics != nil {
				p.Metrics.CardsAllocated.Add(float64(len(cards)))
			}
		case shop.IsInsufficientStock(err):
			remark := fmt.Sprintf("Failed to allocate %d cards. Insufficient stock.", res.Num)
			if rerr := p.Orders.AppendRemark(ctx, order.ID, remark); rerr != nil {
				log.Printf("payment: trade_no=%s shortfall remark write failed: %v", ev.TradeNo, rerr)
			}
			log.Printf("payment: trade_no=%s prod=%q shortfall: %v", ev.TradeNo, res.Title, err)
			if p.Metrics != nil {
				p.Metrics.Shortfalls.Inc()
			}
			p.publishShortfall(res, err)
		default:
			log.Printf("payment: trade_no=%s allocation error: %v", ev.TradeNo, err)
		}
	}

	// 6) best-effort sales counter
	if err := p.Products.AddSales(ctx, res.Title, res.Num); err != nil {
		log.Printf("payment: trade_no=%s sales counter failed: %v", ev.TradeNo, err)
	}

	p.publishSettled(res, gatewayName, fulfilled)
	return nil
}

func (p *Processor) publishSettled(res *shop.Reservation, gatewayName string, fulfilled bool) {
	if p.SettledProducer == nil {
		return
	}
	ev := shop.Envelope{
		EventID:       uuid.NewString(),
		EventType:     shop.EventOrderSettled,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.ServiceName,
		CorrelationID: res.TradeNo,
		Payload: kafkax.MustMarshal(shop.OrderSettledPayload{
			TradeNo:   res.TradeNo,
			Title:     res.Title,
			Num:       res.Num,
			Money:     res.Money,
			Gateway:   gatewayName,
			Fulfilled: fulfilled,
		}),
	}
	p.SettledProducer.Publish(shop.PartitionKey(res.TradeNo), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(shop.EventOrderSettled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (p *Processor) publishShortfall(res *shop.Reservation, allocErr error) {
	if p.ShortfallProducer == nil {
		return
	}
	available := 0
	var ise *shop.InsufficientStockError
	if errors.As(allocErr, &ise) {
		available = ise.Available
	}
	ev := shop.Envelope{
		EventID:       uuid.NewString(),
		EventType:     shop.EventAllocationShortfall,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.ServiceName,
		CorrelationID: res.TradeNo,
		Payload: kafkax.MustMarshal(shop.AllocationShortfallPayload{
			TradeNo:   res.TradeNo,
			Title:     res.Title,
			Requested: res.Num,
			Available: available,
		}),
	}
	p.ShortfallProducer.Publish(shop.PartitionKey(res.TradeNo), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(shop.EventAllocationShortfall)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
