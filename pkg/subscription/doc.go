// Package subscription implements the subscription lifecycle for billing
// accounts: the state machine, the atomic get-or-create factory, trial
// conversion, and application of payment processor webhook events.
//
// # State machine
//
// A subscription moves through trial, active, past_due, canceled and
// expired. Canceled and expired are terminal. Transitions outside the table
// return ErrInvalidTransition; canceling twice returns the dedicated
// conflict ErrAlreadyCanceled so callers can map it to an HTTP 409.
//
// # Atomic creation
//
// Each account owns exactly one subscription row. GetOrCreate serializes the
// read-check-insert sequence under a per-identity tenant lock (a Postgres
// transaction-scoped advisory lock in production), and treats a unique
// violation from a racing writer as "the row now exists": it re-reads and
// returns the winner instead of failing the request.
//
//	sub, err := svc.StartTrial(ctx, userID, accountID, email, name)
//
// # Trial conversion
//
// Converter.Run selects expired trials that carry a processor customer and
// creates a paid subscription for each, anchored to the moment the trial
// ended. A processor failure downgrades that row to past_due and the sweep
// moves on; one bad card never blocks the batch.
package subscription
