package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/clock"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/ledger"
	"github.com/fjod/storefront/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func template(name string, inr, usd int64) domain.CartItem {
	return domain.CartItem{
		ID:       name,
		Name:     name,
		Category: "E-Commerce",
		PriceINR: decimal.NewFromInt(inr),
		PriceUSD: decimal.NewFromInt(usd),
		Type:     domain.ItemPremium,
	}
}

func validRequest() Request {
	return Request{
		UserID:   "uid-1",
		Currency: domain.CurrencyINR,
		Customer: domain.Customer{
			Name:          "Asha Rao",
			Email:         "asha@example.com",
			Address:       "12 MG Road",
			PaymentMethod: "card",
		},
	}
}

type fixture struct {
	machine   *Machine
	cart      *ledger.Ledger
	store     *MockStore
	publisher *MockPublisher
	metrics   *MockMetrics
	clock     *clock.Manual
}

func newFixture(cfg config.Checkout, items ...domain.CartItem) *fixture {
	f := &fixture{
		cart:      ledger.New(config.Default().Pricing),
		store:     &MockStore{},
		publisher: &MockPublisher{},
		metrics:   &MockMetrics{},
		clock:     clock.NewManual(epoch),
	}
	for _, item := range items {
		if err := f.cart.Add(item); err != nil {
			panic(err)
		}
	}
	f.machine = NewMachine("app", f.cart, f.store, cfg,
		WithClock(f.clock),
		WithPublisher(f.publisher),
		WithMetrics(f.metrics),
	)
	return f
}

func noDelay() config.Checkout {
	return config.Checkout{ResetDelay: 3 * time.Second}
}

func TestSubmit_EmptyCart(t *testing.T) {
	f := newFixture(noDelay())

	receipt, err := f.machine.Submit(context.Background(), validRequest())

	assert.Nil(t, receipt)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Zero(t, f.store.WriteCount())
	assert.Equal(t, domain.CheckoutIdle, f.machine.State())
	assert.Equal(t, []string{"rejected"}, f.metrics.Results)
}

func TestSubmit_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
		want   error
	}{
		{"anonymous", func(r *Request) { r.UserID = "" }, domain.ErrAnonymous},
		{"missing name", func(r *Request) { r.Customer.Name = "  " }, domain.ErrMissingCustomer},
		{"missing email", func(r *Request) { r.Customer.Email = "" }, domain.ErrMissingCustomer},
		{"malformed email", func(r *Request) { r.Customer.Email = "not-an-email" }, domain.ErrInvalidEmail},
		{"unknown currency", func(r *Request) { r.Currency = "EUR" }, domain.ErrUnknownCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(noDelay(), template("Nexus E-Com AI", 3999, 49))
			req := validRequest()
			tt.mutate(&req)

			_, err := f.machine.Submit(context.Background(), req)

			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Zero(t, f.store.WriteCount())
			assert.Equal(t, 1, f.cart.Len())
			assert.Equal(t, domain.CheckoutIdle, f.machine.State())
		})
	}
}

func TestSubmit_Success(t *testing.T) {
	f := newFixture(noDelay(),
		template("Nexus E-Com AI", 3999, 49),
		template("CyberDash Admin", 2499, 29),
	)

	receipt, err := f.machine.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, 6498.0, receipt.Order.Total)
	assert.Equal(t, domain.OrderStatusPaid, receipt.Order.Status)
	assert.Equal(t, "7667.64", receipt.Quote.Total.StringFixed(2))
	assert.NotEmpty(t, receipt.Order.ID)
	assert.NotEmpty(t, receipt.PublicID)

	require.Len(t, f.store.Writes, 2)
	private, public := f.store.Writes[0], f.store.Writes[1]
	assert.Equal(t, "artifacts/app/users/uid-1/orders", private.Collection)
	assert.Equal(t, "artifacts/app/public/data/orders", public.Collection)

	meta, ok := private.Data["_meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, receipt.Reduction.Rate(), meta["compressionRate"])
	assert.Equal(t, receipt.Reduction.ReducedSizeBytes, meta["sizeBytes"])
	assert.NotContains(t, public.Data, "_meta")

	for _, w := range f.store.Writes {
		assert.Equal(t, store.ServerTimestamp, w.Data["timestamp"])
		assert.Equal(t, "paid", w.Data["status"])
		assert.Equal(t, 6498.0, w.Data["total"])
		assert.Equal(t, "uid-1", w.Data["userId"])
	}

	assert.Equal(t, domain.CheckoutSuccess, f.machine.State())
	assert.Zero(t, f.cart.Len())
	require.Len(t, f.publisher.Orders, 1)
	assert.Equal(t, receipt.Order.ID, f.publisher.Orders[0].ID)
	assert.Equal(t, []string{"success"}, f.metrics.Results)
}

func TestSubmit_ResetsToIdleAfterDelay(t *testing.T) {
	f := newFixture(noDelay(), template("Nexus E-Com AI", 3999, 49))

	_, err := f.machine.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	f.clock.Advance(2999 * time.Millisecond)
	assert.Equal(t, domain.CheckoutSuccess, f.machine.State())

	f.clock.Advance(time.Millisecond)
	assert.Equal(t, domain.CheckoutIdle, f.machine.State())
}

func TestSubmit_PublicWriteFails(t *testing.T) {
	f := newFixture(noDelay(),
		template("Nexus E-Com AI", 3999, 49),
		template("CyberDash Admin", 2499, 29),
	)
	f.store.FailOn = map[string]error{"/public/": errors.New("unavailable")}

	receipt, err := f.machine.Submit(context.Background(), validRequest())

	assert.Nil(t, receipt)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, domain.ErrPersistence, domain.Kind(err))
	assert.Equal(t, domain.CheckoutIdle, f.machine.State())
	assert.Equal(t, 2, f.cart.Len())

	require.Len(t, f.store.Writes, 1)
	assert.Contains(t, f.store.Writes[0].Collection, "/users/uid-1/")
	assert.Empty(t, f.publisher.Orders)
	assert.Equal(t, []string{"failed"}, f.metrics.Results)
	assert.Zero(t, f.clock.Waiters())
}

func TestSubmit_PrivateWriteFailsSkipsPublic(t *testing.T) {
	f := newFixture(noDelay(), template("Nexus E-Com AI", 3999, 49))
	f.store.FailOn = map[string]error{"/users/": errors.New("unavailable")}

	_, err := f.machine.Submit(context.Background(), validRequest())

	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Zero(t, f.store.WriteCount())
	assert.Equal(t, 1, f.cart.Len())
	assert.Equal(t, domain.CheckoutIdle, f.machine.State())
}

func TestSubmit_RetryAfterFailureSucceeds(t *testing.T) {
	f := newFixture(noDelay(), template("Nexus E-Com AI", 3999, 49))
	f.store.FailOn = map[string]error{"/public/": errors.New("unavailable")}

	_, err := f.machine.Submit(context.Background(), validRequest())
	require.Error(t, err)

	f.store.FailOn = nil
	_, err = f.machine.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutSuccess, f.machine.State())
}

func TestSubmit_RejectsWhileProcessing(t *testing.T) {
	cfg := config.Checkout{ProcessingDelay: 2 * time.Second, ResetDelay: 3 * time.Second}
	f := newFixture(cfg, template("Nexus E-Com AI", 3999, 49))

	type result struct {
		receipt *Receipt
		err     error
	}
	done := make(chan result, 1)
	go func() {
		r, err := f.machine.Submit(context.Background(), validRequest())
		done <- result{r, err}
	}()

	require.Eventually(t, func() bool { return f.clock.Waiters() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, domain.CheckoutProcessing, f.machine.State())

	_, err := f.machine.Submit(context.Background(), validRequest())
	assert.ErrorIs(t, err, domain.ErrCheckoutInProgress)
	assert.Zero(t, f.store.WriteCount())

	f.clock.Advance(2 * time.Second)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.NotNil(t, r.receipt)
	case <-time.After(2 * time.Second):
		t.Fatal("checkout did not finish")
	}
	assert.Equal(t, 2, f.store.WriteCount())
	assert.Equal(t, []string{"rejected", "success"}, f.metrics.Results)
}

func TestSubmit_ResubmitFromSuccessCancelsReset(t *testing.T) {
	f := newFixture(noDelay(), template("Nexus E-Com AI", 3999, 49))

	_, err := f.machine.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	require.Equal(t, 1, f.clock.Waiters())

	require.NoError(t, f.cart.Add(template("EduSmart LMS", 4999, 59)))
	_, err = f.machine.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	// Only the second reset timer is pending.
	assert.Equal(t, 1, f.clock.Waiters())
	f.clock.Advance(3 * time.Second)
	assert.Equal(t, domain.CheckoutIdle, f.machine.State())
}

func TestSubmit_PublishFailureIsIgnored(t *testing.T) {
	f := newFixture(noDelay(), template("Nexus E-Com AI", 3999, 49))
	f.publisher.Err = errors.New("broker down")

	receipt, err := f.machine.Submit(context.Background(), validRequest())

	require.NoError(t, err)
	assert.NotNil(t, receipt)
	assert.Equal(t, domain.CheckoutSuccess, f.machine.State())
}

func TestSubmit_CancelledContextStillCompletes(t *testing.T) {
	f := newFixture(noDelay(), template("Nexus E-Com AI", 3999, 49))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.machine.Submit(ctx, validRequest())

	require.NoError(t, err)
	assert.Equal(t, 2, f.store.WriteCount())
}

func TestSubmit_ItemAddedDuringProcessingStaysInCart(t *testing.T) {
	cfg := config.Checkout{ProcessingDelay: 2 * time.Second, ResetDelay: 3 * time.Second}
	f := newFixture(cfg, template("Nexus E-Com AI", 3999, 49))

	done := make(chan *Receipt, 1)
	go func() {
		r, err := f.machine.Submit(context.Background(), validRequest())
		if err != nil {
			done <- nil
			return
		}
		done <- r
	}()

	require.Eventually(t, func() bool { return f.clock.Waiters() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, f.cart.Add(template("CyberDash Admin", 2499, 29)))
	f.clock.Advance(2 * time.Second)

	var receipt *Receipt
	select {
	case receipt = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("checkout did not finish")
	}
	require.NotNil(t, receipt)
	require.Len(t, receipt.Order.Items, 1)
	assert.Equal(t, "Nexus E-Com AI", receipt.Order.Items[0].Name)

	left := f.cart.Items()
	require.Len(t, left, 1)
	assert.Equal(t, "CyberDash Admin", left[0].Name)
}
