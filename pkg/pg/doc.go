// Package pg provides the PostgreSQL layer for payflow: pooled connectivity
// via pgx/v5 with startup retries, goose migrations, health checks, and
// structural error classification.
//
// Stores built on this package query through the Querier interface and pick
// up a context-bound transaction transparently, which is how the subscription
// factory serializes tenant-scoped creation under pg_advisory_xact_lock
// (see WithinAdvisoryLock).
//
// Duplicate-key handling is structural: IsConstraintViolation inspects the
// SQLSTATE on *pgconn.PgError instead of matching driver error strings, so
// callers can treat a lost creation race as a resolvable condition rather
// than a failure.
package pg
