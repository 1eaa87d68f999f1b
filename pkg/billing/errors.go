package billing

import "errors"

var (
	// ErrProcessor marks failures originating at the payment processor,
	// as opposed to persistence failures. Sweeps downgrade instead of abort
	// on this kind.
	ErrProcessor = errors.New("payment processor error")

	ErrMissingAPIKey     = errors.New("payment processor API key is required")
	ErrMissingCustomerID = errors.New("processor customer id is required")
	ErrMissingPriceID    = errors.New("processor price id is required")
	ErrInvalidAmount     = errors.New("charge amount must be positive")
)

// IsProcessorError reports whether err originated at the payment processor.
func IsProcessorError(err error) bool {
	return errors.Is(err, ErrProcessor)
}
