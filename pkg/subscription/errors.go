package subscription

import "errors"

var (
	// ErrNotFound is returned when no subscription exists for the account.
	ErrNotFound = errors.New("subscription not found")
	// ErrAlreadyExists is returned when creating a second subscription for
	// an account that already has one.
	ErrAlreadyExists = errors.New("subscription already exists for account")
	// ErrAlreadyCanceled is the conflict returned when canceling a
	// subscription that is already canceled.
	ErrAlreadyCanceled = errors.New("subscription is already canceled")
	// ErrInvalidTransition is returned when a lifecycle change is not
	// allowed from the current status.
	ErrInvalidTransition = errors.New("invalid subscription transition")
	// ErrInvalidState is returned when a subscription violates a structural
	// invariant.
	ErrInvalidState = errors.New("invalid subscription state")
	// ErrNoProcessorCustomer is returned when a billing operation needs a
	// payment processor customer that was never created.
	ErrNoProcessorCustomer = errors.New("subscription has no processor customer")
	// ErrSweepOverlap is returned when a sweep is skipped because another
	// run still holds the sweep lock.
	ErrSweepOverlap = errors.New("sweep already running")
)
