package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/salesdesk/internal/domain/product"
)

func sampleProducts() []product.Product {
	exp := time.Date(2026, 3, 9, 0, 0, 0, 0, time.Local)
	return []product.Product{
		{ID: 1, SKU: "P1", Name: "Widget", Price: decimal.RequireFromString("100.50"), Stock: 5, MinStock: 1, Active: true},
		{ID: 2, SKU: "P2", Name: "Milk", Price: decimal.RequireFromString("2.49"), Stock: 3, ExpiresAt: &exp, Active: true},
		{ID: 3, SKU: "P3", Name: "Retired", Price: decimal.Zero, Active: false},
	}
}

func TestSnapshot(t *testing.T) {
	for _, name := range []string{"catalog.jsonl", "catalog.jsonl.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, WriteSnapshot(path, sampleProducts()))

			got, err := NewProductRepository(path).List(context.Background())
			require.NoError(t, err)
			require.Len(t, got, 3)

			want := sampleProducts()
			for i := range want {
				assert.Equal(t, want[i].ID, got[i].ID)
				assert.Equal(t, want[i].Name, got[i].Name)
				assert.True(t, want[i].Price.Equal(got[i].Price), "price of %d", want[i].ID)
				assert.Equal(t, want[i].Stock, got[i].Stock)
				assert.Equal(t, want[i].Active, got[i].Active)
			}
			assert.Nil(t, got[0].ExpiresAt)
			require.NotNil(t, got[1].ExpiresAt)
			assert.True(t, want[1].ExpiresAt.Equal(*got[1].ExpiresAt))
		})
	}
}

func TestProductRepository_List(t *testing.T) {
	dir := t.TempDir()

	t.Run("skips blank lines", func(t *testing.T) {
		path := filepath.Join(dir, "blank.jsonl")
		data := "\n{\"id\":7,\"name\":\"Seven\",\"price\":\"7\",\"stock\":1,\"is_active\":true}\n\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

		got, err := NewProductRepository(path).List(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(7), got[0].ID)
	})

	t.Run("bad line", func(t *testing.T) {
		path := filepath.Join(dir, "bad.jsonl")
		require.NoError(t, os.WriteFile(path, []byte("{\"id\":1}\nnot json\n"), 0o600))

		_, err := NewProductRepository(path).List(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("bad expiry", func(t *testing.T) {
		path := filepath.Join(dir, "expiry.jsonl")
		require.NoError(t, os.WriteFile(path, []byte(`{"id":1,"expires_at":"tomorrow"}`), 0o600))

		_, err := NewProductRepository(path).List(context.Background())
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewProductRepository(filepath.Join(dir, "none.jsonl")).List(context.Background())
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("canceled", func(t *testing.T) {
		path := filepath.Join(dir, "cancel.jsonl")
		require.NoError(t, WriteSnapshot(path, sampleProducts()))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewProductRepository(path).List(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}
