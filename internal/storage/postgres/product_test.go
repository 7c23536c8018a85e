//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/salesdesk/internal/domain/product"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "desk",
				"POSTGRES_PASSWORD": "desk",
				"POSTGRES_DB":       "catalog",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	pool, err := NewPool(ctx, fmt.Sprintf("postgres://desk:desk@%s:%s/catalog?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))
	return pool
}

func TestProductRepository_List(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)

	_, err := pool.Exec(ctx, `INSERT INTO products (id, sku, name, stock, min_stock, price, expires_at, is_active) VALUES
		(1, 'P1', 'Widget', 5, 1, 100.00, NULL, TRUE),
		(2, 'P2', 'Milk', 3, 0, 2.49, '2026-03-09', TRUE),
		(3, 'P3', 'Gift', 1, 0, NULL, NULL, FALSE)`)
	require.NoError(t, err)

	products, err := NewProductRepository(pool).List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 3)

	assert.Equal(t, "Widget", products[0].Name)
	assert.True(t, decimal.RequireFromString("100").Equal(products[0].Price))
	assert.Nil(t, products[0].ExpiresAt)

	require.NotNil(t, products[1].ExpiresAt)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.Local), *products[1].ExpiresAt)
	assert.True(t, decimal.RequireFromString("2.49").Equal(products[1].Price))

	assert.True(t, products[2].Price.IsZero())
	assert.False(t, products[2].Active)
}

func TestProductRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	repo := NewProductRepository(pool)

	expires := time.Date(2026, 4, 1, 0, 0, 0, 0, time.Local)
	require.NoError(t, repo.Upsert(ctx, []product.Product{
		{ID: 10, SKU: "A", Name: "Apple", Price: decimal.RequireFromString("1.25"), Stock: 9, Active: true, ExpiresAt: &expires},
		{ID: 11, SKU: "B", Name: "Bread", Price: decimal.RequireFromString("3"), Stock: 2, Active: true},
	}))
	require.NoError(t, repo.Upsert(ctx, []product.Product{
		{ID: 11, SKU: "B", Name: "Bread", Price: decimal.RequireFromString("3.50"), Stock: 0, Active: false},
	}))

	products, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	require.NotNil(t, products[0].ExpiresAt)
	assert.Equal(t, expires, *products[0].ExpiresAt)
	assert.True(t, decimal.RequireFromString("3.50").Equal(products[1].Price))
	assert.False(t, products[1].Active)

	// The sequence continues after the explicit ids.
	var id int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO products (sku, name) VALUES ('C', 'Cheese') RETURNING id`).Scan(&id))
	assert.Equal(t, int64(12), id)
}
