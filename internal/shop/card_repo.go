package shop

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CardRepo struct{ DB *pgxpool.Pool }

// allocRounds bounds the reselect-and-claim loop under contention.
const allocRounds = 3

// claimTx is the transactional surface the allocation loop runs on.
type claimTx interface {
	SelectUnused(ctx context.Context, prodName string, limit int) ([]Card, error)
	Claim(ctx context.Context, cardID, orderID int64) (bool, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Allocate claims exactly num unused cards for the product and binds them
// to orderID, or claims nothing and returns InsufficientStockError.
func (r *CardRepo) Allocate(ctx context.Context, prodName string, orderID int64, num int) ([]Card, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return allocate(ctx, &pgxClaimTx{tx: tx}, r.CountUnused, prodName, orderID, num)
}

// allocate runs the bounded claim loop inside tx.
//
// Each claim is a conditional write (used=FALSE at write time), so two
// concurrent allocations for the same product can never take the same
// card; a claim that loses its race is retried against the remaining
// pool. All claims live in one transaction: a shortfall rolls back, no
// partial claim is left dangling.
func allocate(ctx context.Context, tx claimTx, countUnused func(context.Context, string) (int, error), prodName string, orderID int64, num int) ([]Card, error) {
	defer tx.Rollback(ctx)

	claimed := make([]Card, 0, num)
	for round := 0; round < allocRounds && len(claimed) < num; round++ {
		candidates, err := tx.SelectUnused(ctx, prodName, num-len(claimed))
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			break
		}
		for _, c := range candidates {
			ok, err := tx.Claim(ctx, c.ID, orderID)
			if err != nil {
				return nil, err
			}
			if !ok {
				// lost the race for this card, reselect next round
				continue
			}
			c.Used = true
			c.OrderID = &orderID
			claimed = append(claimed, c)
		}
	}

	if len(claimed) < num {
		_ = tx.Rollback(ctx)
		avail, err := countUnused(ctx, prodName)
		if err != nil {
			avail = len(claimed)
		}
		return nil, &InsufficientStockError{ProdName: prodName, Requested: num, Available: avail}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return claimed, nil
}

type pgxClaimTx struct{ tx pgx.Tx }

func (t *pgxClaimTx) SelectUnused(ctx context.Context, prodName string, limit int) ([]Card, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, prod_name, content, reusable
		FROM cards WHERE prod_name=$1 AND used=FALSE
		ORDER BY id LIMIT $2`, prodName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Card
	for rows.Next() {
		var c Card
		if err := rows.Scan(&c.ID, &c.ProdName, &c.Content, &c.Reusable); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *pgxClaimTx) Claim(ctx context.Context, cardID, orderID int64) (bool, error) {
	ct, err := t.tx.Exec(ctx, `
		UPDATE cards SET used=TRUE, order_id=$1
		WHERE id=$2 AND used=FALSE`, orderID, cardID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (t *pgxClaimTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgxClaimTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func (r *CardRepo) CountUnused(ctx context.Context, prodName string) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM cards WHERE prod_name=$1 AND used=FALSE`, prodName).Scan(&n)
	return n, err
}

// SingleReusable reports whether the only unused card for the product is
// reusable. Stock reporting treats that as effectively unlimited;
// allocation still consumes a concrete card per order.
func (r *CardRepo) SingleReusable(ctx context.Context, prodName string) (bool, error) {
	var reusable bool
	err := r.DB.QueryRow(ctx, `
		SELECT reusable FROM cards WHERE prod_name=$1 AND used=FALSE LIMIT 1`, prodName).Scan(&reusable)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return reusable, nil
}
