package domain

import "time"

type OrderStatus string

const (
	OrderStatusCreated OrderStatus = "created"
	OrderStatusPaid    OrderStatus = "paid"
)

type Customer struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Address       string `json:"address"`
	PaymentMethod string `json:"paymentMethod"`
}

// OrderLine is the persisted snapshot of a CartItem.
type OrderLine struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	PriceUSD float64  `json:"priceUSD"`
	PriceINR float64  `json:"priceINR"`
	Type     ItemType `json:"type"`
}

func NewOrderLine(item CartItem) OrderLine {
	return OrderLine{
		ID:       item.ID,
		Name:     item.Name,
		Category: item.Category,
		PriceUSD: item.PriceUSD.InexactFloat64(),
		PriceINR: item.PriceINR.InexactFloat64(),
		Type:     item.Type,
	}
}

// Order is the public shape of a placed order. Total is pre-tax.
type Order struct {
	ID        string      `json:"id,omitempty"`
	UserID    string      `json:"userId"`
	Items     []OrderLine `json:"items"`
	Total     float64     `json:"total"`
	Currency  Currency    `json:"currency"`
	Customer  Customer    `json:"customer"`
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp,omitzero"`
}

// OrderMeta is the reduction metadata carried only by the private copy.
type OrderMeta struct {
	CompressionRate string `json:"compressionRate"`
	SizeBytes       int    `json:"sizeBytes"`
}

// PrivateOrder is the owner's copy of an order as read back from the store.
type PrivateOrder struct {
	Order
	Meta OrderMeta `json:"_meta"`
}
