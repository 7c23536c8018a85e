// Package file reads and writes catalog snapshots as JSON Lines, gzipped
// when the file name ends in ".gz".
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/salesdesk/internal/domain/product"
)

const dateLayout = "2006-01-02"

// Record is one snapshot line.
type Record struct {
	ID        int64           `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	MinStock  int             `json:"min_stock"`
	ExpiresAt string          `json:"expires_at,omitempty"`
	Active    bool            `json:"is_active"`
}

// NewRecord converts a product to its snapshot form.
func NewRecord(p product.Product) Record {
	r := Record{
		ID:       p.ID,
		SKU:      p.SKU,
		Name:     p.Name,
		Price:    p.Price,
		Stock:    p.Stock,
		MinStock: p.MinStock,
		Active:   p.Active,
	}
	if p.ExpiresAt != nil {
		r.ExpiresAt = p.ExpiresAt.Format(dateLayout)
	}
	return r
}

// Product converts the record back, reading the expiry day in loc.
func (r Record) Product(loc *time.Location) (product.Product, error) {
	p := product.Product{
		ID:       r.ID,
		SKU:      r.SKU,
		Name:     r.Name,
		Price:    r.Price,
		Stock:    r.Stock,
		MinStock: r.MinStock,
		Active:   r.Active,
	}
	if r.ExpiresAt != "" {
		t, err := time.ParseInLocation(dateLayout, r.ExpiresAt, loc)
		if err != nil {
			return product.Product{}, errors.Wrapf(err, "product %d expires_at", r.ID)
		}
		p.ExpiresAt = &t
	}
	return p, nil
}

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository serves the catalog from a snapshot file. The file is
// read on every List so a replaced snapshot is picked up by the next sale.
type ProductRepository struct {
	path string
	loc  *time.Location
}

func NewProductRepository(path string) *ProductRepository {
	return &ProductRepository{path: path, loc: time.Local}
}

func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	var out []product.Product
	err := streamFile(ctx, r.path, func(line int, data []byte) error {
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
		p, err := rec.Product(r.loc)
		if err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// streamFile calls fn for each non-blank line of path.
func streamFile(ctx context.Context, path string, fn func(line int, data []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var rd io.Reader = f
	if isGzip(path) {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		rd = gz
	}

	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		data := scanner.Bytes()
		if len(strings.TrimSpace(string(data))) == 0 {
			continue
		}
		if err := fn(line, data); err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// WriteSnapshot atomically replaces path with products.
func WriteSnapshot(path string, products []product.Product) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".catalog-*")
	if err != nil {
		return errors.Wrap(err, "create temp")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := writeRecords(tmp, isGzip(path), products); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "rename")
	}
	return nil
}

func writeRecords(w io.Writer, gzip bool, products []product.Product) error {
	var gz *pgzip.Writer
	if gzip {
		gz = pgzip.NewWriter(w)
		w = gz
	}
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, p := range products {
		if err := enc.Encode(NewRecord(p)); err != nil {
			return errors.Wrapf(err, "encode product %d", p.ID)
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "flush")
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return errors.Wrap(err, "close gzip")
		}
	}
	return nil
}

func isGzip(path string) bool {
	return strings.HasSuffix(path, ".gz")
}
