package shop

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReservationRepo struct{ DB *pgxpool.Pool }

// Create inserts a new unsettled reservation. trade_no is caller-supplied
// and unique; a duplicate returns ErrDuplicateOrder.
func (r *ReservationRepo) Create(ctx context.Context, res *Reservation) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO temp_orders(trade_no, prod_id, title, num, unit_price, money, status,
		                        auto, gateway, contact, contact_txt, email, remark, created_at, end_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id`,
		res.TradeNo, res.ProdID, res.Title, res.Num, res.UnitPrice, res.Money, res.Status,
		res.Auto, res.Gateway, res.Contact, res.ContactTxt, res.Email, res.Remark,
		res.CreatedAt, res.EndTime,
	).Scan(&res.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOrder
		}
		return err
	}
	return nil
}

func (r *ReservationRepo) GetByTradeNo(ctx context.Context, tradeNo string) (*Reservation, error) {
	var res Reservation
	err := r.DB.QueryRow(ctx, `
		SELECT id, trade_no, prod_id, title, num, unit_price, money, status,
		       auto, gateway, contact, contact_txt, email, remark, created_at, end_time
		FROM temp_orders WHERE trade_no=$1`, tradeNo,
	).Scan(&res.ID, &res.TradeNo, &res.ProdID, &res.Title, &res.Num, &res.UnitPrice,
		&res.Money, &res.Status, &res.Auto, &res.Gateway, &res.Contact, &res.ContactTxt,
		&res.Email, &res.Remark, &res.CreatedAt, &res.EndTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// MarkSettled moves the reservation UNSETTLED -> SETTLED. Already-settled
// rows are left alone; the order insert is the real idempotency gate.
func (r *ReservationRepo) MarkSettled(ctx context.Context, id int64) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE temp_orders SET status=$2 WHERE id=$1 AND status=$3`,
		id, StatusSettled, StatusUnsettled)
	return err
}
