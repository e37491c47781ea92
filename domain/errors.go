package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error surfaced to callers wraps exactly one of them so
// the UI layer can discriminate with errors.Is.
var (
	ErrValidation  = errors.New("validation error")
	ErrPersistence = errors.New("persistence error")
	ErrGeneration  = errors.New("generation error")
	ErrNetwork     = errors.New("network error")
	ErrIndex       = errors.New("index error")
)

var (
	ErrEmptyCart          = fmt.Errorf("%w: cart is empty, nothing to checkout", ErrValidation)
	ErrMissingCustomer    = fmt.Errorf("%w: customer name and email are required", ErrValidation)
	ErrInvalidEmail       = fmt.Errorf("%w: customer email is malformed", ErrValidation)
	ErrCheckoutInProgress = fmt.Errorf("%w: checkout already in progress", ErrValidation)
	ErrAnonymous          = fmt.Errorf("%w: an authenticated user is required", ErrValidation)
	ErrUnknownCurrency    = fmt.Errorf("%w: unsupported currency", ErrValidation)
	ErrEmptyPrompt        = fmt.Errorf("%w: prompt is empty", ErrValidation)
)

// Kind returns the error kind wrapped by err, or nil when err carries none.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrPersistence, ErrGeneration, ErrNetwork, ErrIndex} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
