// Package notifier consumes settlement events and fans them out to the
// operator-facing side: status-cache warming and shortfall alerts.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/cardshop/go-card-shop/internal/kafka"
	"github.com/cardshop/go-card-shop/internal/redisx"
	"github.com/cardshop/go-card-shop/internal/shop"
)

type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// seen dedups by event id so redelivered events stay quiet.
func (s *Service) seen(ctx context.Context, eventID string) bool {
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, eventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return true
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return false
}

// HandleOrderSettled: consumer handler for order.settled.
func (s *Service) HandleOrderSettled(ctx context.Context, m kafkago.Message) error {
	var env shop.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != shop.EventOrderSettled {
		return nil // ignore
	}
	if s.seen(ctx, env.EventID) {
		return nil
	}

	p, err := kafkax.UnwrapPayload[shop.OrderSettledPayload](env.Payload)
	if err != nil {
		return err
	}

	statusKey := fmt.Sprintf(redisx.KeyPaymentStatus, p.TradeNo)
	_ = s.Redis.Set(ctx, statusKey, `{"status":"paid"}`, redisx.TTLStatusCache).Err()

	if !p.Fulfilled {
		log.Printf("notifier: trade_no=%s prod=%q settled without cards, manual delivery pending", p.TradeNo, p.Title)
	} else {
		log.Printf("notifier: trade_no=%s prod=%q num=%d settled via %s", p.TradeNo, p.Title, p.Num, p.Gateway)
	}
	return nil
}

// HandleShortfall: consumer handler for order.allocation.shortfall. The
// order is paid but unfulfilled; this is the operator's cue to restock
// and deliver by hand.
func (s *Service) HandleShortfall(ctx context.Context, m kafkago.Message) error {
	var env shop.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != shop.EventAllocationShortfall {
		return nil
	}
	if s.seen(ctx, env.EventID) {
		return nil
	}

	p, err := kafkax.UnwrapPayload[shop.AllocationShortfallPayload](env.Payload)
	if err != nil {
		return err
	}

	log.Printf("notifier: RECONCILE trade_no=%s prod=%q requested=%d available=%d",
		p.TradeNo, p.Title, p.Requested, p.Available)
	return nil
}
