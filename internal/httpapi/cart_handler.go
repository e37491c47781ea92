package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/ledger"
	"github.com/fjod/storefront/internal/session"
	"github.com/go-chi/chi/v5"
)

type CatalogItemDTO struct {
	domain.CartItem
	DisplayPrice string `json:"displayPrice"`
}

type CartDTO struct {
	Items           []domain.CartItem `json:"items"`
	Quote           ledger.Quote      `json:"quote"`
	DisplaySubtotal string            `json:"displaySubtotal"`
	DisplayTotal    string            `json:"displayTotal"`
}

type CustomProjectDTO struct {
	Cart CartDTO `json:"cart"`
	// DisplayEstimate is the INR price at the advisory FX rate.
	DisplayEstimate string `json:"displayEstimate"`
}

type AddItemRequestDTO struct {
	TemplateID string `json:"templateId"`
}

func currencyParam(r *http.Request) (domain.Currency, error) {
	raw := r.URL.Query().Get("currency")
	if raw == "" {
		return domain.CurrencyINR, nil
	}
	return domain.ParseCurrency(raw)
}

func (s *Server) listCatalog(w http.ResponseWriter, r *http.Request) {
	currency, err := currencyParam(r)
	if err != nil {
		handleError(w, err, "Unsupported currency.")
		return
	}

	items, err := s.Catalog.List(r.Context())
	if err != nil {
		s.Logger.Error("failed to list catalog", "err", err)
		handleError(w, err, "Could not load templates.")
		return
	}

	out := make([]CatalogItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, CatalogItemDTO{CartItem: item, DisplayPrice: ledger.Format(item.Price(currency), currency)})
	}
	respondOK(w, http.StatusOK, out, "")
}

func (s *Server) cartDTO(sess *session.Session, c domain.Currency) CartDTO {
	quote := sess.Cart.Quote(c)
	return CartDTO{
		Items:           sess.Cart.Items(),
		Quote:           quote,
		DisplaySubtotal: ledger.Format(quote.Subtotal, c),
		DisplayTotal:    ledger.Format(quote.Total, c),
	}
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	currency, err := currencyParam(r)
	if err != nil {
		handleError(w, err, "Unsupported currency.")
		return
	}
	respondOK(w, http.StatusOK, s.cartDTO(sess, currency), "")
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	currency, err := currencyParam(r)
	if err != nil {
		handleError(w, err, "Unsupported currency.")
		return
	}

	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", "Could not add item.")
		return
	}

	item, err := s.Catalog.Get(r.Context(), req.TemplateID)
	if err != nil {
		handleError(w, err, "Template not found.")
		return
	}
	if err := sess.Cart.Add(item); err != nil {
		handleError(w, err, "Could not add item.")
		return
	}

	respondOK(w, http.StatusCreated, s.cartDTO(sess, currency), fmt.Sprintf("Added %s to cart!", item.Name))
}

// addCustomProject adds the bespoke project placeholder.
func (s *Server) addCustomProject(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	currency, err := currencyParam(r)
	if err != nil {
		handleError(w, err, "Unsupported currency.")
		return
	}

	item := ledger.CustomProject(s.Clock.Now())
	if err := sess.Cart.Add(item); err != nil {
		handleError(w, err, "Could not add item.")
		return
	}

	estimate := ledger.DisplayConvert(item.PriceINR, domain.CurrencyINR, domain.CurrencyUSD, sess.Cart.Pricing().DisplayFxRate)
	respondOK(w, http.StatusCreated, CustomProjectDTO{
		Cart:            s.cartDTO(sess, currency),
		DisplayEstimate: ledger.Format(estimate, domain.CurrencyUSD),
	}, fmt.Sprintf("Added %s to cart!", item.Name))
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	currency, err := currencyParam(r)
	if err != nil {
		handleError(w, err, "Unsupported currency.")
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_index", "index must be an integer", "Could not remove item.")
		return
	}

	removed, err := sess.Cart.Remove(index)
	if err != nil {
		handleError(w, err, "Could not remove item.")
		return
	}

	respondOK(w, http.StatusOK, s.cartDTO(sess, currency), fmt.Sprintf("Removed %s from cart.", removed.Name))
}
