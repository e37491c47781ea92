// Package ledger holds the session cart: an ordered sequence of line items
// with currency-aware totals. Identity is by position; duplicates are allowed.
package ledger

import (
	"fmt"
	"sync"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/config"
	"github.com/shopspring/decimal"
)

type Ledger struct {
	mu      sync.RWMutex
	items   []domain.CartItem
	pricing config.Pricing
}

// Quote is the presented breakdown of a cart. Tax is display only.
type Quote struct {
	Currency domain.Currency `json:"currency"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

func New(pricing config.Pricing) *Ledger {
	return &Ledger{pricing: pricing}
}

func (l *Ledger) Add(item domain.CartItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, item)
	return nil
}

// Remove deletes the item at index. Out of range indexes fail with domain.ErrIndex.
func (l *Ledger) Remove(index int) (domain.CartItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.items) {
		return domain.CartItem{}, fmt.Errorf("%w: no cart item at position %d (cart has %d)", domain.ErrIndex, index, len(l.items))
	}
	removed := l.items[index]
	l.items = append(l.items[:index:index], l.items[index+1:]...)
	return removed, nil
}

// Items returns a copy of the current line items.
func (l *Ledger) Items() []domain.CartItem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.CartItem, len(l.items))
	copy(out, l.items)
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// RemoveOrdered drops the leading items that match ordered, the snapshot a
// checkout was placed with. Items added after the snapshot stay in the cart.
// It returns how many items were removed.
func (l *Ledger) RemoveOrdered(ordered []domain.CartItem) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for n < len(ordered) && n < len(l.items) && sameItem(l.items[n], ordered[n]) {
		n++
	}
	l.items = append([]domain.CartItem(nil), l.items[n:]...)
	return n
}

func sameItem(a, b domain.CartItem) bool {
	return a.ID == b.ID && a.Name == b.Name && a.Type == b.Type &&
		a.PriceINR.Equal(b.PriceINR) && a.PriceUSD.Equal(b.PriceUSD)
}

// Total sums the price field of the given currency, recomputed on every call.
func (l *Ledger) Total(c domain.Currency) decimal.Decimal {
	return Sum(l.Items(), c)
}

func (l *Ledger) Quote(c domain.Currency) Quote {
	return NewQuote(l.Total(c), c, l.pricing.TaxRate)
}

func (l *Ledger) Pricing() config.Pricing {
	return l.pricing
}

func NewQuote(subtotal decimal.Decimal, c domain.Currency, taxRate float64) Quote {
	return Quote{
		Currency: c,
		Subtotal: subtotal,
		Tax:      subtotal.Mul(decimal.NewFromFloat(taxRate)).Round(2),
		Total:    Presented(subtotal, taxRate),
	}
}

func Sum(items []domain.CartItem, c domain.Currency) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price(c))
	}
	return total
}

// Presented applies the multiplicative tax rate to a pre-tax total.
func Presented(total decimal.Decimal, taxRate float64) decimal.Decimal {
	return total.Mul(decimal.NewFromFloat(1 + taxRate)).Round(2)
}
