package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/xenking/salesdesk/internal/domain/customer"
	"github.com/xenking/salesdesk/internal/domain/product"
	"github.com/xenking/salesdesk/internal/domain/sale"
	"github.com/xenking/salesdesk/internal/session"
)

var (
	_ sale.OrderCreator     = (*Client)(nil)
	_ session.Authenticator = (*Client)(nil)
	_ product.Repository    = (*Products)(nil)
	_ customer.Repository   = (*Customers)(nil)
	_ sale.History          = (*Sales)(nil)
)

// Products serves the catalog from the back office.
type Products struct {
	c *Client
}

// Products returns the catalog resource.
func (c *Client) Products() *Products { return &Products{c: c} }

// List returns every product the back office knows, active or not.
func (p *Products) List(ctx context.Context) ([]product.Product, error) {
	env, _, err := p.c.do(ctx, http.MethodGet, pathProducts, nil, true)
	if err != nil {
		return nil, err
	}
	dtos, err := decodeList[productDTO](env.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	out := make([]product.Product, 0, len(dtos))
	for _, d := range dtos {
		prod, err := d.toDomain(p.c.loc)
		if err != nil {
			return nil, err
		}
		out = append(out, prod)
	}
	return out, nil
}

// Customers serves customer lookup and creation from the back office.
type Customers struct {
	c *Client
}

// Customers returns the customer resource.
func (c *Client) Customers() *Customers { return &Customers{c: c} }

// List returns all registered customers.
func (cs *Customers) List(ctx context.Context) ([]customer.Customer, error) {
	env, _, err := cs.c.do(ctx, http.MethodGet, pathCustomers, nil, true)
	if err != nil {
		return nil, err
	}
	dtos, err := decodeList[customerDTO](env.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decode customers")
	}
	out := make([]customer.Customer, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// Create registers a customer. A response without data yields nil.
func (cs *Customers) Create(ctx context.Context, f customer.Fields) (*customer.Customer, error) {
	env, _, err := cs.c.do(ctx, http.MethodPost, pathCreateCustomer, newCustomerRequest(f), true)
	if err != nil {
		return nil, err
	}
	if isNull(env.Data) {
		return nil, nil
	}
	var d customerDTO
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return nil, errors.Wrap(err, "decode customer")
	}
	c := d.toDomain()
	return &c, nil
}

// Sales reads submitted sales from the back office.
type Sales struct {
	c *Client
}

// Sales returns the sales history resource.
func (c *Client) Sales() *Sales { return &Sales{c: c} }

// List returns the submitted sales in the order the back office sends them.
func (s *Sales) List(ctx context.Context) ([]sale.Record, error) {
	env, _, err := s.c.do(ctx, http.MethodGet, pathSales, nil, true)
	if err != nil {
		return nil, err
	}
	dtos, err := decodeList[saleDTO](env.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decode sales")
	}
	out := make([]sale.Record, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toRecord(s.c.loc))
	}
	return out, nil
}

// Get returns a sale with its lines. A 404 or an empty answer is reported
// as sale.ErrSaleNotFound.
func (s *Sales) Get(ctx context.Context, id int64) (*sale.Detail, error) {
	env, _, err := s.c.do(ctx, http.MethodGet, pathSales+"/"+strconv.FormatInt(id, 10), nil, true)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, errors.Wrapf(sale.ErrSaleNotFound, "sale %d", id)
	}
	if err != nil {
		return nil, err
	}
	if isNull(env.Data) {
		return nil, errors.Wrapf(sale.ErrSaleNotFound, "sale %d", id)
	}
	var d saleDetailDTO
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return nil, errors.Wrap(err, "decode sale")
	}
	return d.toDomain(s.c.loc), nil
}

// CreateOrder submits a sale.
func (c *Client) CreateOrder(ctx context.Context, p sale.Payload) (*sale.Receipt, error) {
	env, _, err := c.do(ctx, http.MethodPost, pathCreateSale, p, true)
	if err != nil {
		return nil, err
	}
	if isNull(env.Data) {
		return &sale.Receipt{}, nil
	}
	var d saleDTO
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return nil, errors.Wrap(err, "decode sale")
	}
	return d.toDomain(c.loc), nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
}

// Login exchanges credentials for a token. The response is read either at
// the top level or inside the envelope data.
func (c *Client) Login(ctx context.Context, cr session.Credentials) (session.State, error) {
	env, raw, err := c.do(ctx, http.MethodPost, pathLogin, loginRequest{Email: cr.Email, Password: cr.Password}, false)
	if err != nil {
		return session.State{}, err
	}
	var resp loginResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return session.State{}, errors.Wrap(err, "decode login")
	}
	if resp.Token == "" && !isNull(env.Data) {
		if err := json.Unmarshal(env.Data, &resp); err != nil {
			return session.State{}, errors.Wrap(err, "decode login data")
		}
	}
	if resp.Token == "" {
		return session.State{}, errors.New("login response has no token")
	}
	return session.State{Token: resp.Token, User: resp.User}, nil
}
