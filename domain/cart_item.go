package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
)

func (c Currency) Valid() bool {
	return c == CurrencyINR || c == CurrencyUSD
}

// ParseCurrency accepts a currency code in any case.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, s)
	}
	return c, nil
}

type ItemType string

const (
	ItemFree    ItemType = "free"
	ItemPremium ItemType = "premium"
	ItemService ItemType = "service"
)

// CartItem carries both price denominations. Switching the active currency only
// changes which field is read.
type CartItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	PriceUSD decimal.Decimal `json:"priceUSD"`
	PriceINR decimal.Decimal `json:"priceINR"`
	Type     ItemType        `json:"type"`
}

func (i CartItem) Price(c Currency) decimal.Decimal {
	if c == CurrencyUSD {
		return i.PriceUSD
	}
	return i.PriceINR
}

func (i CartItem) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("%w: item name is required", ErrValidation)
	}
	if i.PriceUSD.IsNegative() || i.PriceINR.IsNegative() {
		return fmt.Errorf("%w: item %q has a negative price", ErrValidation, i.Name)
	}
	if i.Type == ItemFree && !(i.PriceUSD.IsZero() && i.PriceINR.IsZero()) {
		return fmt.Errorf("%w: free item %q must have zero prices", ErrValidation, i.Name)
	}
	switch i.Type {
	case ItemFree, ItemPremium, ItemService:
	default:
		return fmt.Errorf("%w: item %q has unknown type %q", ErrValidation, i.Name, i.Type)
	}
	return nil
}
