package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/checkout-engine/internal/cart"
	"github.com/noah-isme/checkout-engine/internal/catalog"
	"github.com/noah-isme/checkout-engine/internal/common"
	"github.com/noah-isme/checkout-engine/internal/installments"
	"github.com/noah-isme/checkout-engine/internal/ppp"
	"github.com/noah-isme/checkout-engine/internal/quote"
	"github.com/noah-isme/checkout-engine/internal/tax"
)

var validate = validator.New()

type Handler struct {
	Svc *Service
}

// QuoteRequest is the preview payload: the full cart snapshot.
type QuoteRequest struct {
	Snapshot cart.Snapshot `json:"snapshot"`
}

// CommitRequest books a previously previewed quote.
type CommitRequest struct {
	Snapshot cart.Snapshot `json:"snapshot"`
	Token    string        `json:"token" validate:"required"`
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var payload QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if payload.Snapshot.PurchaseID == uuid.Nil {
		payload.Snapshot.PurchaseID = uuid.New()
	}
	out, err := h.Svc.Preview(r.Context(), payload.Snapshot)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var payload CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "token is required", nil)
		return
	}
	out, err := h.Svc.Commit(r.Context(), payload.Snapshot, payload.Token)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

// writeError maps domain rejections onto stable codes. Business-rule
// rejections are 422s scoped to the offending field; everything unexpected
// stays opaque.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	switch {
	case errors.Is(err, cart.ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "cart has no line items", nil)
	case errors.Is(err, cart.ErrQuantityUnavailable), errors.Is(err, catalog.ErrInvalidQuantity):
		common.JSONError(w, http.StatusUnprocessableEntity, "QUANTITY_UNAVAILABLE", "requested quantity is not available", nil)
	case errors.Is(err, cart.ErrNegativeTip):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_TIP", "tip must not be negative", nil)
	case errors.Is(err, catalog.ErrPwywBelowMinimum):
		common.JSONError(w, http.StatusUnprocessableEntity, "PWYW_BELOW_MINIMUM", "entered price is below the minimum for this product", nil)
	case errors.Is(err, catalog.ErrUnknownVariant), errors.Is(err, ErrUnknownProduct):
		common.JSONError(w, http.StatusUnprocessableEntity, "PRICE_CHANGED", "the product changed, refresh and try again", nil)
	case errors.Is(err, catalog.ErrRentalUnavailable):
		common.JSONError(w, http.StatusUnprocessableEntity, "RENTAL_UNAVAILABLE", "this product cannot be rented", nil)
	case errors.Is(err, tax.ErrLocationMismatch):
		common.JSONError(w, http.StatusUnprocessableEntity, "LOCATION_MISMATCH", "selected country could not be verified", nil)
	case errors.Is(err, ppp.ErrCardCountryMismatch):
		common.JSONError(w, http.StatusUnprocessableEntity, "PPP_CARD_COUNTRY_MISMATCH", "card country does not match your location", nil)
	case errors.Is(err, installments.ErrInvalidPlan):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_INSTALLMENT_PLAN", "installment plans need at least two charges", nil)
	case errors.Is(err, tax.ErrInvalidTaxID):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_TAX_ID", "the business tax id could not be validated", nil)
	case errors.Is(err, quote.ErrTokenInvalid):
		common.JSONError(w, http.StatusUnauthorized, "QUOTE_TOKEN_INVALID", "quote token is missing, malformed or expired", nil)
	case errors.Is(err, quote.ErrTokenMismatch):
		common.JSONError(w, http.StatusConflict, "PRICE_CHANGED", "the cart changed since the quote was issued", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing failed", nil)
	}
}
