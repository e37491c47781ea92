// Package circuitbreaker wraps gobreaker with the settings used for outbound calls.
package circuitbreaker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

type Settings struct {
	Name string
	// TripAfter consecutive failures open the breaker.
	TripAfter uint32
	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration
	Logger   *slog.Logger
}

type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

func New[T any](s Settings) *Breaker[T] {
	tripAfter := s.TripAfter
	if tripAfter == 0 {
		tripAfter = 5
	}
	cooldown := s.Cooldown
	if cooldown == 0 {
		cooldown = 30 * time.Second
	}
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Breaker[T]{
		cb: gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
			Name:        s.Name,
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= tripAfter
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Execute runs fn unless the breaker is open.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return v, errors.Join(ErrOpen, err)
	}
	return v, err
}

func (b *Breaker[T]) State() string {
	return b.cb.State().String()
}
