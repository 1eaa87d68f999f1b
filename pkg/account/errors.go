package account

import "errors"

var (
	// ErrNoMembership is returned when a user has no account membership.
	ErrNoMembership = errors.New("no account membership for user")

	// ErrAlreadyExists is the structured duplicate signal stores raise on a
	// lost creation race. The resolver recovers by re-reading the winner.
	ErrAlreadyExists = errors.New("account or membership already exists")

	ErrAccountNotFound  = errors.New("account not found")
	ErrEmptyAccountName = errors.New("account name cannot be empty")
	ErrInvalidSlug      = errors.New("account slug must contain only lowercase letters, digits and hyphens")
)
