package sale

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/salesdesk/internal/domain/customer"
	"github.com/xenking/salesdesk/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	products []product.Product
	err      error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return m.products, m.err
}

type mockCustomerRepo struct {
	customers   []customer.Customer
	created     *customer.Customer
	createErr   error
	createCalls int
}

func (m *mockCustomerRepo) List(_ context.Context) ([]customer.Customer, error) {
	return m.customers, nil
}

func (m *mockCustomerRepo) Create(_ context.Context, _ customer.Fields) (*customer.Customer, error) {
	m.createCalls++
	return m.created, m.createErr
}

type mockOrderCreator struct {
	receipt *Receipt
	err     error
	calls   int
	last    Payload
}

func (m *mockOrderCreator) CreateOrder(_ context.Context, p Payload) (*Receipt, error) {
	m.calls++
	m.last = p
	return m.receipt, m.err
}

// --- Helpers ---

type fixture struct {
	customers *mockCustomerRepo
	orders    *mockOrderCreator
	builder   *Builder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		customers: &mockCustomerRepo{
			customers: []customer.Customer{{ID: 11, Document: "1001", Name: "Ana"}},
		},
		orders: &mockOrderCreator{
			receipt: &Receipt{ID: 900, InvoiceNumber: "F-900", Status: "paid"},
		},
	}
	b, err := Open(context.Background(), Config{TaxPercent: DefaultTaxPercent},
		&mockProductRepo{products: testProducts()}, f.customers, f.orders)
	require.NoError(t, err)
	b.now = func() time.Time { return testNow }
	f.builder = b
	return f
}

// toLines resolves the customer with the given mode and advances.
func (f *fixture) toLines(t *testing.T, mode customer.Mode) {
	t.Helper()
	b := f.builder
	require.NoError(t, b.SetCustomerMode(mode))
	if mode == customer.ModeRegistered {
		_, err := b.SearchCustomer(context.Background(), "1001")
		require.NoError(t, err)
	}
	require.NoError(t, b.Advance())
	require.Equal(t, StepLines, b.Step())
}

// --- Tests ---

func TestOpen(t *testing.T) {
	t.Run("catalog error", func(t *testing.T) {
		loadErr := errors.New("backend down")
		_, err := Open(context.Background(), Config{TaxPercent: DefaultTaxPercent},
			&mockProductRepo{err: loadErr}, &mockCustomerRepo{}, &mockOrderCreator{})
		require.ErrorIs(t, err, loadErr)
	})

	t.Run("duplicate product ids", func(t *testing.T) {
		products := append(testProducts(), product.Product{ID: 1, Name: "Clone", Active: true})
		_, err := Open(context.Background(), Config{TaxPercent: DefaultTaxPercent},
			&mockProductRepo{products: products}, &mockCustomerRepo{}, &mockOrderCreator{})
		require.ErrorIs(t, err, product.ErrDuplicateID)
	})

	t.Run("negative tax", func(t *testing.T) {
		_, err := Open(context.Background(), Config{TaxPercent: d("-1")},
			&mockProductRepo{}, &mockCustomerRepo{}, &mockOrderCreator{})
		require.Error(t, err)
	})

	t.Run("initial state", func(t *testing.T) {
		f := newFixture(t)
		b := f.builder
		assert.Equal(t, StepCustomer, b.Step())
		assert.Equal(t, customer.ModeRegistered, b.Customer().Mode())
		assert.Equal(t, 1, b.Draft().Len())
		assert.Equal(t, 5, b.Catalog().Len())
		assert.False(t, b.Submitted())
	})
}

func TestBuilder_StepGating(t *testing.T) {
	f := newFixture(t)
	b := f.builder

	_, err := b.SelectProduct(0, 1)
	require.ErrorIs(t, err, ErrWrongStep)
	_, err = b.AddRow()
	require.ErrorIs(t, err, ErrWrongStep)
	require.ErrorIs(t, b.SetDiscount(d("1")), ErrWrongStep)
	_, err = b.Submit(context.Background())
	require.ErrorIs(t, err, ErrWrongStep)

	require.ErrorIs(t, b.Advance(), ErrNoCustomer)

	f.toLines(t, customer.ModeRegistered)
	require.ErrorIs(t, b.SetCustomerMode(customer.ModeNone), ErrWrongStep)
	_, err = b.SearchCustomer(context.Background(), "1001")
	require.ErrorIs(t, err, ErrWrongStep)
}

func TestBuilder_RegisteredCustomer(t *testing.T) {
	f := newFixture(t)
	b := f.builder

	_, err := b.SearchCustomer(context.Background(), "404")
	require.ErrorIs(t, err, customer.ErrCustomerNotFound)
	require.ErrorIs(t, b.Advance(), ErrNoCustomer)

	c, err := b.SearchCustomer(context.Background(), " 1001 ")
	require.NoError(t, err)
	assert.Equal(t, "Ana", c.Name)

	require.NoError(t, b.Advance())
	require.NotNil(t, b.Draft().CustomerID())
	assert.Equal(t, int64(11), *b.Draft().CustomerID())
}

func TestBuilder_NewCustomer(t *testing.T) {
	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t)
		b := f.builder
		require.NoError(t, b.SetCustomerMode(customer.ModeNew))

		_, err := b.CreateCustomer(context.Background(), customer.Fields{Document: "555"})
		require.ErrorIs(t, err, customer.ErrInvalidCustomer)
		var invalid *customer.InvalidFieldsError
		require.ErrorAs(t, err, &invalid)
		assert.Contains(t, invalid.Fields, "name")
		assert.Contains(t, invalid.Fields, "phone")

		assert.Equal(t, 0, f.customers.createCalls)
		assert.Equal(t, StepCustomer, b.Step())
	})

	t.Run("backend failure", func(t *testing.T) {
		f := newFixture(t)
		f.customers.createErr = errors.New("conflict")
		b := f.builder
		require.NoError(t, b.SetCustomerMode(customer.ModeNew))

		_, err := b.CreateCustomer(context.Background(), customer.Fields{
			Document: "555", Name: "Marta", Phone: "300",
		})
		require.Error(t, err)
		assert.Equal(t, StepCustomer, b.Step())
	})

	t.Run("created and advanced", func(t *testing.T) {
		f := newFixture(t)
		f.customers.created = &customer.Customer{ID: 77, Document: "555", Name: "Marta"}
		b := f.builder
		require.NoError(t, b.SetCustomerMode(customer.ModeNew))

		c, err := b.CreateCustomer(context.Background(), customer.Fields{
			Document: "555", Name: "Marta", Phone: "300",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(77), c.ID)
		assert.Equal(t, StepLines, b.Step())
		require.NotNil(t, b.Draft().CustomerID())
		assert.Equal(t, int64(77), *b.Draft().CustomerID())
	})
}

func TestBuilder_Submit(t *testing.T) {
	f := newFixture(t)
	b := f.builder
	f.toLines(t, customer.ModeRegistered)

	_, err := b.SelectProduct(0, 1)
	require.NoError(t, err)
	_, err = b.SetQuantity(0, 5, QuantityCommit)
	require.NoError(t, err)
	require.NoError(t, b.SetDiscount(d("50")))

	r, err := b.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "F-900", r.InvoiceNumber)
	assert.Equal(t, 1, f.orders.calls)

	p := f.orders.last
	require.NotNil(t, p.CustomerID)
	assert.Equal(t, int64(11), *p.CustomerID)
	require.Len(t, p.Items, 1)
	assert.Equal(t, int64(1), p.Items[0].ProductID)
	assert.Equal(t, 5, p.Items[0].Quantity)
	assert.True(t, p.Items[0].Discount.IsZero())
	assertDec(t, "50", p.Discount)
	assertDec(t, "19", p.TaxPercent)
	assert.Equal(t, testNow, p.IssuedAt)
	assert.Equal(t, testNow, b.Draft().IssuedAt())

	got, ok := b.Receipt()
	require.True(t, ok)
	assert.Same(t, r, got)

	_, err = b.Submit(context.Background())
	require.ErrorIs(t, err, ErrSubmitted)
	_, err = b.AddRow()
	require.ErrorIs(t, err, ErrSubmitted)
	assert.Equal(t, 1, f.orders.calls)
}

func TestBuilder_SubmitRejected(t *testing.T) {
	t.Run("invalid lines", func(t *testing.T) {
		f := newFixture(t)
		f.toLines(t, customer.ModeNone)
		_, err := f.builder.SelectProduct(0, 3)
		require.NoError(t, err)

		_, err = f.builder.Submit(context.Background())
		require.ErrorIs(t, err, ErrInvalidLines)
		assert.Equal(t, 0, f.orders.calls)
	})

	t.Run("backend failure keeps draft", func(t *testing.T) {
		f := newFixture(t)
		f.orders.err = errors.New("timeout")
		b := f.builder
		f.toLines(t, customer.ModeNone)
		_, err := b.SelectProduct(0, 4)
		require.NoError(t, err)
		before := b.Draft().Lines()

		_, err = b.Submit(context.Background())
		require.Error(t, err)
		assert.False(t, b.Submitted())
		assert.True(t, b.Draft().IssuedAt().IsZero())
		assert.Equal(t, before, b.Draft().Lines())

		f.orders.err = nil
		_, err = b.Submit(context.Background())
		require.NoError(t, err)
		assert.Nil(t, f.orders.last.CustomerID)
		assert.Equal(t, 2, f.orders.calls)
	})
}

func TestBuilder_Options(t *testing.T) {
	f := newFixture(t)
	b := f.builder
	f.toLines(t, customer.ModeNone)

	_, err := b.SelectProduct(0, 1)
	require.NoError(t, err)
	row, err := b.AddRow()
	require.NoError(t, err)

	opts, err := b.Options(row)
	require.NoError(t, err)
	require.Len(t, opts, 4)

	byID := make(map[int64]Option, len(opts))
	for _, o := range opts {
		byID[o.Product.ID] = o
	}
	assert.True(t, byID[1].Disabled)
	assert.False(t, byID[4].Disabled)
	assert.True(t, byID[3].Expired)
	assert.NotContains(t, byID, int64(5))

	opts, err = b.Options(0)
	require.NoError(t, err)
	for _, o := range opts {
		assert.False(t, o.Disabled, "product %d", o.Product.ID)
	}

	_, err = b.Options(9)
	require.ErrorIs(t, err, ErrRowOutOfRange)
}
