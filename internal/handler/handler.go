// Package handler serves sale builder sessions over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/salesdesk/internal/domain/customer"
	"github.com/xenking/salesdesk/internal/domain/sale"
)

// Opener opens a new sale builder, loading the catalog.
type Opener func(ctx context.Context) (*sale.Builder, error)

// Handler exposes builder sessions as a REST resource.
type Handler struct {
	open     Opener
	history  sale.History
	registry *Registry
	metrics  *metrics
}

// New creates a Handler storing sessions in registry. Submitted sales are
// read from history; when it is nil the sales routes are not served.
func New(open Opener, history sale.History, registry *Registry, mp metric.MeterProvider) (*Handler, error) {
	m, err := newMetrics(mp, registry)
	if err != nil {
		return nil, errors.Wrap(err, "init metrics")
	}
	return &Handler{
		open:     open,
		history:  history,
		registry: registry,
		metrics:  m,
	}, nil
}

// Routes returns the builder routes, to be mounted under the API prefix.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/builders", func(r chi.Router) {
		r.Post("/", h.openBuilder)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.withBuilder(h.getState))
			r.Delete("/", h.closeBuilder)
			r.Get("/products", h.withBuilder(h.listOptions))

			r.Put("/customer/mode", h.withBuilder(h.setCustomerMode))
			r.Post("/customer/search", h.withBuilder(h.searchCustomer))
			r.Post("/customer/create", h.withBuilder(h.createCustomer))
			r.Post("/advance", h.withBuilder(h.advance))

			r.Post("/rows", h.withBuilder(h.addRow))
			r.Delete("/rows/{row}", h.withBuilder(h.removeRow))
			r.Put("/rows/{row}/product", h.withBuilder(h.selectProduct))
			r.Put("/rows/{row}/quantity", h.withBuilder(h.setQuantity))
			r.Put("/rows/{row}/discount", h.withBuilder(h.setLineDiscount))
			r.Put("/discount", h.withBuilder(h.setDiscount))

			r.Post("/submit", h.withBuilder(h.submit))
		})
	})
	if h.history != nil {
		r.Get("/sales", h.listSales)
		r.Get("/sales/{saleID}", h.getSale)
	}
	return r
}

type builderHandler func(w http.ResponseWriter, r *http.Request, id string, b *sale.Builder)

// withBuilder resolves and locks the session named in the path.
func (h *Handler) withBuilder(fn builderHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, ErrSessionNotFound, nil)
			return
		}
		b, release, err := h.registry.Acquire(id, deskFrom(r.Context()))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		defer release()
		fn(w, r, id.String(), b)
	}
}

func (h *Handler) openBuilder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	b, err := h.open(ctx)
	if err != nil {
		writeError(w, r, errors.Wrap(err, "open builder"), nil)
		return
	}
	id, err := h.registry.Add(b, deskFrom(ctx))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	h.metrics.opened.Add(ctx, 1)
	zctx.From(ctx).Info("Builder opened",
		zap.Stringer("builder_id", id),
		zap.Int("products", b.Catalog().Len()),
	)
	writeJSON(w, http.StatusCreated, newState(id.String(), b, nil))
}

func (h *Handler) closeBuilder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, ErrSessionNotFound, nil)
		return
	}
	if err := h.registry.Remove(id, deskFrom(r.Context())); err != nil {
		writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getState(w http.ResponseWriter, _ *http.Request, id string, b *sale.Builder) {
	writeJSON(w, http.StatusOK, newState(id, b, nil))
}

func (h *Handler) listOptions(w http.ResponseWriter, r *http.Request, _ string, b *sale.Builder) {
	row := 0
	if v := r.URL.Query().Get("row"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, badRequest("row %q is not a number", v), nil)
			return
		}
		row = n
	}
	opts, err := b.Options(row)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	out := make([]optionDTO, 0, len(opts))
	for _, o := range opts {
		out = append(out, newOption(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"row": row, "products": out})
}

func (h *Handler) setCustomerMode(w http.ResponseWriter, r *http.Request, id string, b *sale.Builder) {
	var req modeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	mode, err := customer.ParseMode(req.Mode)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	respond(w, r, id, b, nil, b.SetCustomerMode(mode))
}

func (h *Handler) searchCustomer(w http.ResponseWriter, r *http.Request, id string, b *sale.Builder) {
	var req searchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	_, err := b.SearchCustomer(r.Context(), req.Document)
	respond(w, r, id, b, nil, err)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request, id string, b *sale.Builder) {
	var req customer.Fields
	if err := decode(r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	_, err := b.CreateCustomer(r.Context(), req)
	respond(w, r, id, b, nil, err)
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request, id string, b *sale.Builder) {
	respond(w, r, id, b, nil, b.Advance())
}

func (h *Handler) addRow(w http.ResponseWriter, r *http.Request, id string, b *sale.Builder) {
	row, err := b.AddRow()
	if err != nil {
		respond(w, r, id, b, nil, err)
		return
	}
	writeJSON(w, http.StatusCreated, rowResponse{Row: row, State: newState(id, b, nil)})
}

func (h *Handler) removeRow(w http.ResponseWriter, r *http.Request, id string, b *sale.Builder) {
	row, err := rowParam(r)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	respond(w, r, id, b, nil, b.RemoveRow(row))
}

func (h *Handler) selectProduct(w http.ResponseWriter, r *http.Request, id string, b *sale.Builder) {
	row, err := rowParam(r)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	var req productRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	var productID int64
	if req.ProductID != nil {
		productID = *req.ProductID
	}
	notices, err := b.SelectProduct(row, productID)
	respond(w, r, id, b, notices, err)
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request, id string, b *sale.Builder) {
	row, err := rowParam(r)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	var req quantityRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	if req.Quantity == nil {
		writeError(w, r, badRequest("quantity is required"), nil)
		return
	}
	policy := sale.QuantityLive
	if req.Commit {
		policy = sale.QuantityCommit
	}
	notices, err := b.SetQuantity(row, *req.Quantity, policy)
	respond(w, r, id, b, notices, err)
}

func (h *Handler) setLineDiscount(w http.ResponseWriter, r *http.Request, id string, b *sale.Builder) {
	row, err := rowParam(r)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	var req discountRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	if req.Discount == nil {
		writeError(w, r, badRequest("discount is required"), nil)
		return
	}
	respond(w, r, id, b, nil, b.SetLineDiscount(row, *req.Discount))
}

func (h *Handler) setDiscount(w http.ResponseWriter, r *http.Request, id string, b *sale.Builder) {
	var req discountRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	if req.Discount == nil {
		writeError(w, r, badRequest("discount is required"), nil)
		return
	}
	respond(w, r, id, b, nil, b.SetDiscount(*req.Discount))
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, id string, b *sale.Builder) {
	ctx := r.Context()
	lg := zctx.From(ctx).With(zap.String("builder_id", id))

	receipt, err := b.Submit(ctx)
	if err != nil {
		_, code, _, _ := classify(err)
		h.metrics.submitFailed(ctx, code)
		lg.Warn("Sale not submitted", zap.String("code", code), zap.Error(err))
		respond(w, r, id, b, nil, err)
		return
	}

	h.metrics.submitted.Add(ctx, 1)
	lg.Info("Sale submitted",
		zap.Int64("sale_id", receipt.ID),
		zap.String("invoice", receipt.InvoiceNumber),
		zap.Stringer("total", b.Draft().Total()),
	)
	writeJSON(w, http.StatusCreated, newState(id, b, nil))
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	records, err := h.history.List(r.Context())
	if err != nil {
		writeError(w, r, errors.Wrap(err, "list sales"), nil)
		return
	}
	out := make([]saleDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, newSale(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": out})
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	v := chi.URLParam(r, "saleID")
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, badRequest("sale id %q is not a positive number", v), nil)
		return
	}
	d, err := h.history.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, newSaleDetail(d))
}

// respond writes the session state, or err with the state attached so the
// caller sees reverted rows.
func respond(w http.ResponseWriter, r *http.Request, id string, b *sale.Builder, notices []sale.Notice, err error) {
	if err != nil {
		st := newState(id, b, nil)
		writeError(w, r, err, &st)
		return
	}
	writeJSON(w, http.StatusOK, newState(id, b, notices))
}

func writeError(w http.ResponseWriter, r *http.Request, err error, st *stateDTO) {
	status, code, msg, details := classify(err)
	lg := zctx.From(r.Context())
	if status >= http.StatusInternalServerError {
		lg.Error("Request failed", zap.String("code", code), zap.Error(err))
	} else {
		lg.Debug("Request rejected", zap.String("code", code), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code, Details: details, State: st})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("decode body: %s", err)
	}
	return nil
}

func rowParam(r *http.Request) (int, error) {
	v := chi.URLParam(r, "row")
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("row %q is not a number", v)
	}
	return n, nil
}
