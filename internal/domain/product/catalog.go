package product

import (
	"github.com/go-faster/errors"
)

// Catalog is an immutable snapshot of products taken when an order builder
// opens. It is safe to share between rows of the same draft.
type Catalog struct {
	products []Product
	byID     map[int64]int
}

// NewCatalog builds a snapshot from products, preserving their order.
func NewCatalog(products []Product) (*Catalog, error) {
	c := &Catalog{
		products: make([]Product, len(products)),
		byID:     make(map[int64]int, len(products)),
	}
	for i, p := range products {
		if _, ok := c.byID[p.ID]; ok {
			return nil, errors.Wrapf(ErrDuplicateID, "product %d", p.ID)
		}
		c.byID[p.ID] = i
		c.products[i] = p
	}
	return c, nil
}

// Get returns the product with the given id.
func (c *Catalog) Get(id int64) (Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Product{}, false
	}
	return c.products[i], true
}

// Products returns a copy of the snapshot in catalog order.
func (c *Catalog) Products() []Product {
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// Len returns the number of products in the snapshot.
func (c *Catalog) Len() int {
	return len(c.products)
}
