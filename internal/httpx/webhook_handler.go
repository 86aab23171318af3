package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/cardshop/go-card-shop/internal/gateway"
	"github.com/cardshop/go-card-shop/internal/metrics"
	"github.com/cardshop/go-card-shop/internal/payment"
	"github.com/cardshop/go-card-shop/internal/redisx"
)

const maxWebhookBody = 1 << 20

// WebhookHandler ingests gateway notifications on /notify/{gateway}.
type WebhookHandler struct {
	Processor *payment.Processor
	Redis     *redis.Client
	Metrics   *metrics.Shop
}

func (h *WebhookHandler) Register(r *chi.Mux) {
	r.Post("/notify/{gateway}", h.notify)
}

func (h *WebhookHandler) count(gatewayName, outcome string) {
	if h.Metrics != nil {
		h.Metrics.WebhookEvents.WithLabelValues(gatewayName, outcome).Inc()
	}
}

func writeAck(w http.ResponseWriter, ack gateway.Ack) {
	w.Header().Set("Content-Type", ack.ContentType)
	w.WriteHeader(ack.StatusCode)
	_, _ = w.Write([]byte(ack.Body))
}

func (h *WebhookHandler) notify(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "gateway")
	if name == "" {
		http.Error(w, "gateway name missing", http.StatusBadRequest)
		return
	}
	adapter := gateway.Resolve(name)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.count(adapter.Name(), "read_error")
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	if !adapter.Verify(r, body) {
		h.count(adapter.Name(), "verify_failed")
		log.Printf("webhook: gateway=%s verification failed", adapter.Name())
		http.Error(w, "webhook verification failed", http.StatusBadRequest)
		return
	}

	ev, err := adapter.Normalize(body)
	if err != nil {
		h.count(adapter.Name(), "parse_error")
		log.Printf("webhook: gateway=%s unparseable payload: %v", adapter.Name(), err)
		http.Error(w, "cannot determine order from webhook", http.StatusBadRequest)
		return
	}

	if !ev.Paid {
		// acknowledge receipt, take no fulfillment action; legitimate
		// non-payment events ("created", "cancelled") must not trigger
		// gateway retry storms
		h.count(adapter.Name(), "not_paid")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("webhook received, no action"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// Redis dedup fast-path; order existence in the DB stays the truth
	dkey := fmt.Sprintf(redisx.KeyDedup, adapter.Name(), ev.TradeNo)
	if h.Redis != nil {
		if seen, _ := redisx.Exists(ctx, h.Redis, dkey); seen {
			h.count(adapter.Name(), "duplicate")
			writeAck(w, adapter.Acknowledge(gateway.OutcomeProcessed))
			return
		}
	}

	err = h.Processor.Process(ctx, ev, adapter.Name())
	switch {
	case err == nil:
		if h.Redis != nil {
			_ = h.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
			statusKey := fmt.Sprintf(redisx.KeyPaymentStatus, ev.TradeNo)
			_ = h.Redis.Set(ctx, statusKey, `{"status":"paid"}`, redisx.TTLStatusCache).Err()
		}
		h.count(adapter.Name(), "processed")
		writeAck(w, adapter.Acknowledge(gateway.OutcomeProcessed))

	case errors.Is(err, payment.ErrReconciliationRequired):
		// unrecoverable by redelivery: ack the gateway to stop the storm,
		// leave the full context in the log for the operator
		h.count(adapter.Name(), "reconciliation_required")
		log.Printf("webhook: gateway=%s trade_no=%s payload=%q: %v", adapter.Name(), ev.TradeNo, body, err)
		writeAck(w, adapter.Acknowledge(gateway.OutcomeProcessed))

	default:
		// order not persisted; let the gateway redeliver
		h.count(adapter.Name(), "failed")
		log.Printf("webhook: gateway=%s trade_no=%s processing failed: %v", adapter.Name(), ev.TradeNo, err)
		writeAck(w, adapter.Acknowledge(gateway.OutcomeRejected))
	}
}
