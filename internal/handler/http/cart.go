package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/martincharlesFajIT/fajtradingllc/internal/catalog"
	"github.com/martincharlesFajIT/fajtradingllc/internal/domain"
	"github.com/martincharlesFajIT/fajtradingllc/internal/store"
	apperrors "github.com/martincharlesFajIT/fajtradingllc/pkg/errors"
	"github.com/martincharlesFajIT/fajtradingllc/pkg/logger"
	"github.com/martincharlesFajIT/fajtradingllc/pkg/validator"
)

// CartHandler serves the cart API backed by the cart store.
type CartHandler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewCartHandler creates a cart HTTP handler.
func NewCartHandler(s *store.Store, logger *slog.Logger) *CartHandler {
	return &CartHandler{store: s, logger: logger}
}

// --- Request DTOs ---

// AddItemRequest is the JSON body for adding an item: the catalog product
// snapshot plus the desired quantity and which variant was selected.
type AddItemRequest struct {
	Product      catalog.Product `json:"product" validate:"required"`
	Quantity     int             `json:"quantity" validate:"required,gte=1"`
	VariantIndex int             `json:"variant_index" validate:"gte=0"`
}

// UpdateQuantityRequest is the JSON body for replacing an item's quantity.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

// --- Response envelope ---

type response struct {
	Data  any            `json:"data,omitempty"`
	Error *errorResponse `json:"error,omitempty"`
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// cartView is the cart plus its derived totals, recomputed on every read.
type cartView struct {
	Items    []domain.LineItem `json:"items"`
	Count    int               `json:"count"`
	Currency string            `json:"currency,omitempty"`
	Subtotal int64             `json:"subtotal"`
	VAT      int64             `json:"vat"`
	Total    int64             `json:"total"`
}

func newCartView(cart domain.Cart) cartView {
	return cartView{
		Items:    cart.Items,
		Count:    cart.Count(),
		Currency: cart.Currency(),
		Subtotal: cart.Subtotal(),
		VAT:      cart.VAT(),
		Total:    cart.Total(),
	}
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, response{Data: newCartView(h.store.Cart())})
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	if _, err := h.store.AddItem(r.Context(), req.Product, req.VariantIndex, req.Quantity); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: newCartView(h.store.Cart())})
}

// UpdateQuantity handles PUT /api/v1/cart/items/{itemID}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	var req UpdateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	if err := h.store.SetQuantity(r.Context(), itemID, req.Quantity); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: newCartView(h.store.Cart())})
}

// RemoveItem handles DELETE /api/v1/cart/items/{itemID}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	if err := h.store.RemoveItem(r.Context(), itemID); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: newCartView(h.store.Cart())})
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: newCartView(h.store.Cart())})
}

// --- Helpers ---

func (h *CartHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotReady) {
		writeJSON(w, http.StatusServiceUnavailable, response{
			Error: &errorResponse{Code: "NOT_READY", Message: "cart is not ready yet, retry shortly"},
		})
		return
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		writeJSON(w, apperrors.HTTPStatus(appErr), response{
			Error: &errorResponse{Code: appErr.Code, Message: appErr.Message},
		})
		return
	}

	logger.WithContext(r.Context(), h.logger).ErrorContext(r.Context(), "internal error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	internal := apperrors.Internal(err)
	writeJSON(w, internal.Status, response{
		Error: &errorResponse{Code: internal.Code, Message: internal.Message},
	})
}

func (h *CartHandler) writeValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	writeJSON(w, http.StatusBadRequest, response{
		Error: &errorResponse{Code: "INVALID_INPUT", Message: err.Error()},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}
