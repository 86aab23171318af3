package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cardshop/go-card-shop/internal/shop"
)

type stubReservations struct{ byTradeNo map[string]*shop.Reservation }

func (s *stubReservations) Create(context.Context, *shop.Reservation) error { return nil }

func (s *stubReservations) GetByTradeNo(_ context.Context, tradeNo string) (*shop.Reservation, error) {
	if r, ok := s.byTradeNo[tradeNo]; ok {
		return r, nil
	}
	return nil, shop.ErrNotFound
}

type stubOrders struct{ byTradeNo map[string]*shop.Order }

func (s *stubOrders) GetByTradeNo(_ context.Context, tradeNo string) (*shop.Order, error) {
	if o, ok := s.byTradeNo[tradeNo]; ok {
		return o, nil
	}
	return nil, shop.ErrNotFound
}

func (s *stubOrders) LatestByContact(context.Context, string, time.Duration) (*shop.Order, error) {
	return nil, shop.ErrNotFound
}

// The status and card endpoints must work with the cache absent: a nil
// Redis client skips the cache and serves straight from the stores.
func TestPaymentStatusWithoutCache(t *testing.T) {
	h := &ShopHandler{
		Reservations: &stubReservations{byTradeNo: map[string]*shop.Reservation{
			"T-PAID": {TradeNo: "T-PAID", Status: shop.StatusSettled, EndTime: time.Now().Add(time.Hour)},
			"T-WAIT": {TradeNo: "T-WAIT", Status: shop.StatusUnsettled, EndTime: time.Now().Add(-time.Minute)},
		}},
	}

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantFrag string
	}{
		{"settled", `{"out_order_id":"T-PAID"}`, http.StatusOK, `"status":"paid"`},
		{"expired pending", `{"out_order_id":"T-WAIT"}`, http.StatusOK, `"expired":true`},
		{"unknown", `{"out_order_id":"T-NOPE"}`, http.StatusNotFound, `"not_found"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v2/payments/status", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.paymentStatus(rec, req)
			require.Equal(t, tt.wantCode, rec.Code)
			require.Contains(t, rec.Body.String(), tt.wantFrag)
		})
	}
}

func TestRetrieveCardWithoutCache(t *testing.T) {
	card := "CODE-1"
	h := &ShopHandler{
		Orders: &stubOrders{byTradeNo: map[string]*shop.Order{
			"T-1": {TradeNo: "T-1", Card: &card, SettledAt: time.Now()},
		}},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v2/orders/retrieve_card", strings.NewReader(`{"out_order_id":"T-1"}`))
	rec := httptest.NewRecorder()
	h.retrieveCard(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "CODE-1")
}
