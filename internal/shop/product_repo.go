package shop

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockUnlimited is the stock value reported for manual-delivery products
// and for the single-reusable-card case.
const StockUnlimited = 9999

type ProductRepo struct{ DB *pgxpool.Pool }

const productCols = `id, cag_name, name, info, img_url, sort, price, price_wholesale,
       auto, sales, tag, active, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.CagName, &p.Name, &p.Info, &p.ImgURL, &p.Sort, &p.Price,
		&p.PriceWholesale, &p.Auto, &p.Sales, &p.Tag, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id int64) (*Product, error) {
	return scanProduct(r.DB.QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE id=$1 AND active=TRUE`, id))
}

func (r *ProductRepo) GetByName(ctx context.Context, name string) (*Product, error) {
	return scanProduct(r.DB.QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE name=$1 AND active=TRUE`, name))
}

func (r *ProductRepo) ListActive(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+productCols+` FROM products WHERE active=TRUE ORDER BY sort ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// AddSales bumps the cumulative sales counter. Best-effort from the
// pipeline's point of view; the caller logs failures instead of failing
// the transition.
func (r *ProductRepo) AddSales(ctx context.Context, name string, num int) error {
	_, err := r.DB.Exec(ctx,
		`UPDATE products SET sales = sales + $2 WHERE name=$1`, name, num)
	return err
}
