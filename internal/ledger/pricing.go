package ledger

import (
	"fmt"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/shopspring/decimal"
)

var (
	customProjectINR = decimal.NewFromInt(4999)
	customProjectUSD = decimal.NewFromInt(59)
)

// CustomProject is the placeholder line item for a bespoke project request.
func CustomProject(now time.Time) domain.CartItem {
	return domain.CartItem{
		ID:       fmt.Sprintf("custom-%d", now.UnixMilli()),
		Name:     "Custom Project",
		Category: "Service",
		PriceUSD: customProjectUSD,
		PriceINR: customProjectINR,
		Type:     domain.ItemService,
	}
}

// DisplayConvert converts an amount at the advisory fixed rate (INR per USD).
// It is for displaying free-form entries only; stored items are never rescaled.
func DisplayConvert(amount decimal.Decimal, from, to domain.Currency, fxRate float64) decimal.Decimal {
	if from == to || fxRate <= 0 {
		return amount
	}
	rate := decimal.NewFromFloat(fxRate)
	if from == domain.CurrencyINR {
		return amount.Div(rate).Round(2)
	}
	return amount.Mul(rate).Round(2)
}

// Format renders an amount the way the storefront shows prices.
func Format(amount decimal.Decimal, c domain.Currency) string {
	if amount.IsZero() {
		return "FREE"
	}
	if c == domain.CurrencyINR {
		return "₹" + amount.StringFixedBank(2)
	}
	return "$" + amount.StringFixedBank(2)
}
