package domain

type CheckoutState string

const (
	CheckoutIdle       CheckoutState = "idle"
	CheckoutProcessing CheckoutState = "processing"
	CheckoutSuccess    CheckoutState = "success"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutIdle:       {CheckoutProcessing},
	CheckoutProcessing: {CheckoutSuccess, CheckoutIdle},
	CheckoutSuccess:    {CheckoutIdle, CheckoutProcessing},
}

func CanTransitionTo(from, to CheckoutState) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}
