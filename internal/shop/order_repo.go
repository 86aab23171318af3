package shop

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepo struct{ DB *pgxpool.Pool }

func (r *OrderRepo) ExistsByTradeNo(ctx context.Context, tradeNo string) (bool, error) {
	var id int64
	err := r.DB.QueryRow(ctx, `SELECT id FROM orders WHERE trade_no=$1`, tradeNo).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, err
}

// Create inserts the confirmed order. The UNIQUE constraint on trade_no
// is the enforcement mechanism against concurrent duplicate deliveries:
// the losing insert gets ErrDuplicateOrder and must be treated as
// "already processed".
func (r *OrderRepo) Create(ctx context.Context, o *Order) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO orders(trade_no, prod_id, title, num, unit_price, money, card,
		                   gateway, contact, contact_txt, email, remark, auto, created_at, settled_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id`,
		o.TradeNo, o.ProdID, o.Title, o.Num, o.UnitPrice, o.Money, o.Card,
		o.Gateway, o.Contact, o.ContactTxt, o.Email, o.Remark, o.Auto,
		o.CreatedAt, o.SettledAt,
	).Scan(&o.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOrder
		}
		return err
	}
	return nil
}

func (r *OrderRepo) SetCard(ctx context.Context, orderID int64, card string) error {
	_, err := r.DB.Exec(ctx, `UPDATE orders SET card=$2 WHERE id=$1`, orderID, card)
	return err
}

// AppendRemark records an operator-visible note (e.g. a fulfillment
// shortfall) without clobbering an existing remark.
func (r *OrderRepo) AppendRemark(ctx context.Context, orderID int64, remark string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET remark = CASE WHEN remark = '' THEN $2 ELSE remark || '; ' || $2 END
		WHERE id=$1`, orderID, remark)
	return err
}

func (r *OrderRepo) GetByTradeNo(ctx context.Context, tradeNo string) (*Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, trade_no, prod_id, title, num, unit_price, money, card,
		       gateway, contact, contact_txt, email, remark, auto, created_at, settled_at
		FROM orders WHERE trade_no=$1`, tradeNo,
	).Scan(&o.ID, &o.TradeNo, &o.ProdID, &o.Title, &o.Num, &o.UnitPrice, &o.Money,
		&o.Card, &o.Gateway, &o.Contact, &o.ContactTxt, &o.Email, &o.Remark, &o.Auto,
		&o.CreatedAt, &o.SettledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// LatestByContact: most recent order for a contact, used by the buyer's
// order-search endpoint. Results older than window are withheld.
func (r *OrderRepo) LatestByContact(ctx context.Context, contact string, window time.Duration) (*Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, trade_no, prod_id, title, num, unit_price, money, card,
		       gateway, contact, contact_txt, email, remark, auto, created_at, settled_at
		FROM orders WHERE contact=$1 ORDER BY id DESC LIMIT 1`, contact,
	).Scan(&o.ID, &o.TradeNo, &o.ProdID, &o.Title, &o.Num, &o.UnitPrice, &o.Money,
		&o.Card, &o.Gateway, &o.Contact, &o.ContactTxt, &o.Email, &o.Remark, &o.Auto,
		&o.CreatedAt, &o.SettledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if time.Since(o.SettledAt) > window {
		return nil, ErrNotFound
	}
	return &o, nil
}
