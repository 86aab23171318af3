package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/cardshop/go-card-shop/internal/pricing"
	"github.com/cardshop/go-card-shop/internal/redisx"
	"github.com/cardshop/go-card-shop/internal/shop"
)

// orderSearchWindow: how far back the contact-based order search reaches.
const orderSearchWindow = 2 * time.Hour

type productStore interface {
	GetByID(ctx context.Context, id int64) (*shop.Product, error)
	GetByName(ctx context.Context, name string) (*shop.Product, error)
	ListActive(ctx context.Context) ([]shop.Product, error)
}

type reservationStore interface {
	Create(ctx context.Context, res *shop.Reservation) error
	GetByTradeNo(ctx context.Context, tradeNo string) (*shop.Reservation, error)
}

type orderStore interface {
	GetByTradeNo(ctx context.Context, tradeNo string) (*shop.Order, error)
	LatestByContact(ctx context.Context, contact string, window time.Duration) (*shop.Order, error)
}

type cardStore interface {
	CountUnused(ctx context.Context, prodName string) (int, error)
	SingleReusable(ctx context.Context, prodName string) (bool, error)
}

// ShopHandler serves the buyer-facing API: checkout initiation, payment
// status polling, card retrieval and product browsing. Redis is an
// optional cache; the handler works without it.
type ShopHandler struct {
	Products     productStore
	Reservations reservationStore
	Orders       orderStore
	Cards        cardStore
	Redis        *redis.Client

	ReservationTTL time.Duration
}

func (h *ShopHandler) Register(r *chi.Mux) {
	r.Route("/api/v2", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.productDetail)
		r.Post("/payments/initiate", h.initiatePayment)
		r.Post("/payments/status", h.paymentStatus)
		r.Post("/orders/retrieve_card", h.retrieveCard)
		r.Post("/orders/search", h.searchOrders)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ---- checkout ----

type InitiatePaymentReq struct {
	TradeNo    string `json:"out_order_id"`
	Name       string `json:"name"` // product name
	Gateway    string `json:"payment_method"`
	Contact    string `json:"contact"`
	ContactTxt string `json:"contact_txt"`
	Num        int    `json:"num"`
}

type InitiatePaymentResp struct {
	TradeNo   string          `json:"out_order_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Money     decimal.Decimal `json:"money"`
	EndTime   time.Time       `json:"end_time"`
}

func (h *ShopHandler) initiatePayment(w http.ResponseWriter, r *http.Request) {
	var req InitiatePaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.TradeNo == "" || req.Name == "" || req.Gateway == "" || req.Contact == "" || req.Num <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing or invalid fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	prod, err := h.Products.GetByName(ctx, req.Name)
	if err != nil {
		if errors.Is(err, shop.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	// advisory stock pre-check for auto products; allocation at
	// confirmation time is the binding check
	if prod.Auto {
		stock, err := h.stockValue(ctx, prod)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if stock < req.Num {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "insufficient stock"})
			return
		}
	}

	unit := pricing.UnitPrice(prod.Price, prod.PriceWholesale, req.Num)
	money := unit.Mul(decimal.NewFromInt(int64(req.Num)))
	now := time.Now().UTC()

	res := &shop.Reservation{
		TradeNo:    req.TradeNo,
		ProdID:     prod.ID,
		Title:      prod.Name,
		Num:        req.Num,
		UnitPrice:  unit,
		Money:      money,
		Status:     shop.StatusUnsettled,
		Auto:       prod.Auto,
		Gateway:    req.Gateway,
		Contact:    req.Contact,
		ContactTxt: req.ContactTxt,
		Email:      req.Contact,
		CreatedAt:  now,
		EndTime:    now.Add(h.ReservationTTL),
	}
	if err := h.Reservations.Create(ctx, res); err != nil {
		if errors.Is(err, shop.ErrDuplicateOrder) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order id already exists"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, InitiatePaymentResp{
		TradeNo:   res.TradeNo,
		UnitPrice: res.UnitPrice,
		Money:     res.Money,
		EndTime:   res.EndTime,
	})
}

// ---- status ----

type tradeNoReq struct {
	TradeNo string `json:"out_order_id"`
}

func (h *ShopHandler) paymentStatus(w http.ResponseWriter, r *http.Request) {
	var req tradeNoReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TradeNo == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing out_order_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyPaymentStatus, req.TradeNo)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	res, err := h.Reservations.GetByTradeNo(ctx, req.TradeNo)
	if err != nil {
		if errors.Is(err, shop.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"status": "not_found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	body := map[string]any{"status": "pending"}
	if res.Status == shop.StatusSettled {
		body["status"] = "paid"
	} else if time.Now().After(res.EndTime) {
		// advisory only; a late confirmation is still honored
		body["expired"] = true
	}
	b, _ := json.Marshal(body)
	if body["status"] == "paid" && h.Redis != nil {
		_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// ---- card retrieval ----

func (h *ShopHandler) retrieveCard(w http.ResponseWriter, r *http.Request) {
	var req tradeNoReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TradeNo == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing out_order_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.GetByTradeNo(ctx, req.TradeNo)
	if err != nil {
		if errors.Is(err, shop.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found or not paid"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"card":       o.Card, // null when allocation is pending or delivery is manual
		"updatetime": o.SettledAt.UTC().Format(time.RFC3339),
	})
}

// ---- order search ----

type orderSearchReq struct {
	Contact string `json:"contact"`
}

func (h *ShopHandler) searchOrders(w http.ResponseWriter, r *http.Request) {
	var req orderSearchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Contact == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "contact is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.LatestByContact(ctx, req.Contact, orderSearchWindow)
	if err != nil {
		if errors.Is(err, shop.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]string{"message": "not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	card := ""
	if o.Card != nil {
		card = *o.Card
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"out_order_id": o.TradeNo,
		"name":         o.Title,
		"contact":      o.Contact,
		"card":         card,
		"updatetime":   o.SettledAt.UTC().Format("2006-01-02 15:04"),
	})
}

// ---- products ----

type productView struct {
	ID          int64           `json:"id"`
	CagName     string          `json:"cag_name"`
	Name        string          `json:"name"`
	Info        string          `json:"info,omitempty"`
	ImgURL      string          `json:"img_url,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Auto        bool            `json:"auto"`
	Sales       int             `json:"sales"`
	Tag         string          `json:"tag,omitempty"`
	StockStatus string          `json:"stock_status,omitempty"`
}

type categoryView struct {
	CagName string        `json:"cag_name"`
	Shops   []productView `json:"shops"`
}

func (h *ShopHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	products, err := h.Products.ListActive(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	byCag := map[string][]productView{}
	var cagOrder []string
	for i := range products {
		p := &products[i]
		view := productView{
			ID: p.ID, CagName: p.CagName, Name: p.Name, Info: p.Info, ImgURL: p.ImgURL,
			Price: p.Price, Auto: p.Auto, Sales: p.Sales, Tag: p.Tag,
		}
		view.StockStatus = h.stockStatus(ctx, p)
		if _, ok := byCag[p.CagName]; !ok {
			cagOrder = append(cagOrder, p.CagName)
		}
		byCag[p.CagName] = append(byCag[p.CagName], view)
	}

	out := make([]categoryView, 0, len(cagOrder))
	for _, cag := range cagOrder {
		out = append(out, categoryView{CagName: cag, Shops: byCag[cag]})
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (h *ShopHandler) productDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, shop.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	stock, err := h.stockValue(ctx, p)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	resp := map[string]any{
		"id": p.ID, "cag_name": p.CagName, "name": p.Name, "info": p.Info,
		"img_url": p.ImgURL, "price": p.Price, "auto": p.Auto, "sales": p.Sales,
		"tag": p.Tag, "stock_value": stock,
	}
	if tiers := pricing.Tiers(p.Price, p.PriceWholesale); tiers != nil {
		resp["pifa"] = tiers
	}
	writeJSON(w, http.StatusOK, resp)
}

// stockValue reports available stock for display and pre-checks. Manual
// products are unlimited; a single remaining reusable card counts as
// unlimited too, though allocation still consumes concrete cards.
func (h *ShopHandler) stockValue(ctx context.Context, p *shop.Product) (int, error) {
	if !p.Auto {
		return shop.StockUnlimited, nil
	}
	count, err := h.countUnusedCached(ctx, p.Name)
	if err != nil {
		return 0, err
	}
	if count == 1 {
		reusable, err := h.Cards.SingleReusable(ctx, p.Name)
		if err != nil {
			return 0, err
		}
		if reusable {
			return shop.StockUnlimited, nil
		}
	}
	return count, nil
}

func (h *ShopHandler) stockStatus(ctx context.Context, p *shop.Product) string {
	if !p.Auto {
		return "plenty"
	}
	count, err := h.countUnusedCached(ctx, p.Name)
	if err != nil {
		return ""
	}
	switch {
	case count > 10:
		return "plenty"
	case count > 0:
		return "low"
	default:
		return "out_of_stock"
	}
}

func (h *ShopHandler) countUnusedCached(ctx context.Context, prodName string) (int, error) {
	key := fmt.Sprintf(redisx.KeyStock, prodName)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil {
			if n, err := strconv.Atoi(s); err == nil {
				return n, nil
			}
		}
	}
	count, err := h.Cards.CountUnused(ctx, prodName)
	if err != nil {
		return 0, err
	}
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, key, strconv.Itoa(count), redisx.TTLStock).Err()
	}
	return count, nil
}
