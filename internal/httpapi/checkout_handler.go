package httpapi

import (
	"errors"
	"net/http"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/session"
)

type CheckoutRequestDTO struct {
	Currency string          `json:"currency"`
	Customer domain.Customer `json:"customer"`
}

type CheckoutStatusDTO struct {
	State     domain.CheckoutState `json:"state"`
	CartItems int                  `json:"cartItems"`
}

func (s *Server) submitCheckout(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req CheckoutRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", "Missing details.")
		return
	}

	currency := domain.CurrencyINR
	if req.Currency != "" {
		c, err := domain.ParseCurrency(req.Currency)
		if err != nil {
			handleError(w, err, "Unsupported currency.")
			return
		}
		currency = c
	}

	receipt, err := sess.Checkout.Submit(r.Context(), checkout.Request{
		UserID:   sess.User().ID,
		Currency: currency,
		Customer: req.Customer,
	})
	if err != nil {
		s.Logger.Warn("checkout failed", "session_id", sess.ID, "err", err)
		handleError(w, err, checkoutMessage(err))
		return
	}

	respondOK(w, http.StatusCreated, receipt, "Order Confirmed!")
}

func checkoutMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return "Your cart is empty."
	case errors.Is(err, domain.ErrCheckoutInProgress):
		return "Checkout already in progress."
	case errors.Is(err, domain.ErrValidation):
		return "Missing details."
	default:
		return "Transaction failed."
	}
}

func (s *Server) checkoutStatus(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	respondOK(w, http.StatusOK, CheckoutStatusDTO{
		State:     sess.Checkout.State(),
		CartItems: sess.Cart.Len(),
	}, "")
}
