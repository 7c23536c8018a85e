package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/salesdesk/internal/domain/product"
)

// Prices are NULL for products that were never priced; they sell at zero.
const listProductsSQL = `SELECT id, sku, name, COALESCE(price, 0), stock, min_stock, expires_at, is_active
	FROM products ORDER BY id`

const upsertProductSQL = `INSERT INTO products (id, sku, name, price, stock, min_stock, expires_at, is_active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		sku = EXCLUDED.sku, name = EXCLUDED.name, price = EXCLUDED.price,
		stock = EXCLUDED.stock, min_stock = EXCLUDED.min_stock,
		expires_at = EXCLUDED.expires_at, is_active = EXCLUDED.is_active,
		updated_at = NOW()`

// Explicit ids bypass the sequence; move it past them.
const resetProductSeqSQL = `SELECT setval(pg_get_serial_sequence('products', 'id'),
	GREATEST((SELECT COALESCE(MAX(id), 0) FROM products), 1))`

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns the whole catalog ordered by id, inactive products included.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p         product.Product
		price     decimal.Decimal
		expiresAt *time.Time
	)
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &price, &p.Stock, &p.MinStock, &expiresAt, &p.Active); err != nil {
		return product.Product{}, err
	}
	p.Price = price
	if expiresAt != nil {
		// DATE columns come back as UTC midnight; expiry is a local calendar day.
		y, m, d := expiresAt.Date()
		local := time.Date(y, m, d, 0, 0, 0, 0, time.Local)
		p.ExpiresAt = &local
	}
	return p, nil
}

// Upsert writes products by id in a single transaction.
func (r *ProductRepository) Upsert(ctx context.Context, products []product.Product) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range products {
			var expiresAt *time.Time
			if p.ExpiresAt != nil {
				y, m, d := p.ExpiresAt.Date()
				day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
				expiresAt = &day
			}
			batch.Queue(upsertProductSQL, p.ID, p.SKU, p.Name, p.Price, p.Stock, p.MinStock, expiresAt, p.Active)
		}
		batch.Queue(resetProductSeqSQL)
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "upsert products")
		}
		return nil
	})
}
