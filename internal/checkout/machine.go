// Package checkout runs the per-session checkout state machine:
// cart snapshot, payment intent, dual order write and settlement.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/clock"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/ledger"
	"github.com/fjod/storefront/internal/reduction"
	"github.com/fjod/storefront/internal/store"
	"github.com/fjod/storefront/pkg/logger"
)

const ordersCollection = "orders"

// Writer is the part of the persistence gateway the machine writes through.
type Writer interface {
	WriteOnce(ctx context.Context, collection string, data map[string]any) (string, error)
}

// Publisher announces durable orders. Failures never affect the checkout.
type Publisher interface {
	OrderPlaced(ctx context.Context, order domain.Order) error
}

type Metrics interface {
	ObserveCheckout(result string, elapsed time.Duration)
}

type Request struct {
	UserID   string
	Currency domain.Currency
	Customer domain.Customer
}

type Receipt struct {
	Order     domain.Order    `json:"order"`
	PublicID  string          `json:"publicId"`
	Quote     ledger.Quote    `json:"quote"`
	Reduction reduction.Stats `json:"reduction"`
}

type Option func(*Machine)

func WithClock(c clock.Clock) Option {
	return func(m *Machine) { m.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

func WithPublisher(p Publisher) Option {
	return func(m *Machine) { m.publisher = p }
}

func WithMetrics(metrics Metrics) Option {
	return func(m *Machine) { m.metrics = metrics }
}

// Machine serializes checkout attempts for one session. A submission made
// while another is processing is rejected, not queued.
type Machine struct {
	mu         sync.Mutex
	state      domain.CheckoutState
	resetTimer clock.Timer

	appID     string
	cart      *ledger.Ledger
	store     Writer
	cfg       config.Checkout
	clock     clock.Clock
	publisher Publisher
	metrics   Metrics
	logger    *slog.Logger
}

func NewMachine(appID string, cart *ledger.Ledger, w Writer, cfg config.Checkout, opts ...Option) *Machine {
	m := &Machine{
		state: domain.CheckoutIdle,
		appID: appID,
		cart:  cart,
		store: w,
		cfg:   cfg,
		clock: clock.Real{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logger.OrDefault(m.logger)
	return m
}

func (m *Machine) State() domain.CheckoutState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Submit places the current cart as an order. Validation failures return
// before any state change. Once processing starts the attempt runs to
// completion even if ctx is cancelled.
func (m *Machine) Submit(ctx context.Context, req Request) (*Receipt, error) {
	started := m.clock.Now()
	items, err := m.begin(req)
	if err != nil {
		m.observe("rejected", started)
		return nil, err
	}

	receipt, err := m.process(context.WithoutCancel(ctx), req, items)
	if err != nil {
		m.mu.Lock()
		m.setState(domain.CheckoutIdle)
		m.mu.Unlock()
		m.observe("failed", started)
		return nil, err
	}

	m.mu.Lock()
	m.setState(domain.CheckoutSuccess)
	if n := m.cart.RemoveOrdered(items); n != len(items) {
		m.logger.Warn("cart changed during checkout, some ordered items left in cart",
			"ordered", len(items), "removed", n)
	}
	m.resetTimer = m.clock.AfterFunc(m.cfg.ResetDelay, m.reset)
	m.mu.Unlock()

	m.observe("success", started)
	m.publish(ctx, receipt.Order)
	return receipt, nil
}

// begin validates the request, enters processing and snapshots the cart.
func (m *Machine) begin(req Request) ([]domain.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == domain.CheckoutProcessing {
		return nil, domain.ErrCheckoutInProgress
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	items := m.cart.Items()
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	if m.resetTimer != nil {
		m.resetTimer.Stop()
		m.resetTimer = nil
	}
	if err := m.setState(domain.CheckoutProcessing); err != nil {
		return nil, err
	}
	return items, nil
}

func validate(req Request) error {
	if strings.TrimSpace(req.UserID) == "" {
		return domain.ErrAnonymous
	}
	if !req.Currency.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownCurrency, req.Currency)
	}
	if strings.TrimSpace(req.Customer.Name) == "" || strings.TrimSpace(req.Customer.Email) == "" {
		return domain.ErrMissingCustomer
	}
	if _, err := mail.ParseAddress(req.Customer.Email); err != nil {
		return domain.ErrInvalidEmail
	}
	return nil
}

func (m *Machine) process(ctx context.Context, req Request, items []domain.CartItem) (*Receipt, error) {
	lines := make([]domain.OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, domain.NewOrderLine(item))
	}
	subtotal := ledger.Sum(items, req.Currency)
	order := domain.Order{
		UserID:   req.UserID,
		Items:    lines,
		Total:    subtotal.InexactFloat64(),
		Currency: req.Currency,
		Customer: req.Customer,
		Status:   domain.OrderStatusCreated,
	}

	// Payment intent. Only local state is modelled.
	if m.cfg.ProcessingDelay > 0 {
		<-m.clock.After(m.cfg.ProcessingDelay)
	}
	order.Status = domain.OrderStatusPaid

	payload, stats, err := reduction.Reduce(order)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to prepare order: %w", domain.ErrPersistence, err)
	}

	private := withTimestamp(payload)
	private["_meta"] = map[string]any{
		"compressionRate": stats.Rate(),
		"sizeBytes":       stats.ReducedSizeBytes,
	}
	privateID, err := m.store.WriteOnce(ctx, store.PrivateCollection(m.appID, req.UserID, ordersCollection), private)
	if err != nil {
		m.logger.Error("failed to write private order", "user_id", req.UserID, "err", err)
		return nil, fmt.Errorf("%w: failed to write order: %w", domain.ErrPersistence, err)
	}

	publicID, err := m.store.WriteOnce(ctx, store.PublicCollection(m.appID, ordersCollection), withTimestamp(payload))
	if err != nil {
		// The private copy stays; there is no reconciliation.
		m.logger.Error("failed to write public order, private copy left in place",
			"user_id", req.UserID, "order_id", privateID, "err", err)
		return nil, fmt.Errorf("%w: failed to write public order copy: %w", domain.ErrPersistence, err)
	}

	order.ID = privateID
	m.logger.Info("order placed", "order_id", privateID, "public_id", publicID, "user_id", req.UserID,
		"total", order.Total, "currency", order.Currency, "compression_rate", stats.Rate())

	return &Receipt{
		Order:     order,
		PublicID:  publicID,
		Quote:     ledger.NewQuote(subtotal, req.Currency, m.cart.Pricing().TaxRate),
		Reduction: stats,
	}, nil
}

func (m *Machine) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != domain.CheckoutSuccess {
		return
	}
	m.setState(domain.CheckoutIdle)
	m.resetTimer = nil
}

// setState applies a transition. Caller holds mu.
func (m *Machine) setState(to domain.CheckoutState) error {
	if !domain.CanTransitionTo(m.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.state, to)
	}
	m.state = to
	return nil
}

func (m *Machine) publish(ctx context.Context, order domain.Order) {
	if m.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := m.publisher.OrderPlaced(ctx, order); err != nil {
		m.logger.Warn("failed to publish order event", "order_id", order.ID, "err", err)
	}
}

func (m *Machine) observe(result string, started time.Time) {
	if m.metrics != nil {
		m.metrics.ObserveCheckout(result, m.clock.Now().Sub(started))
	}
}

func withTimestamp(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		out[k] = v
	}
	out["timestamp"] = store.ServerTimestamp
	return out
}
