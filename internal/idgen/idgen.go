// Package idgen allocates caller-facing identifiers. §5 notes
// idempotency is achieved through the caller-supplied input.id, used
// directly as gid; this package only covers the case where a caller
// does not pre-allocate one (SPEC_FULL supplement: the original's
// uuid::Uuid default for src/models/transaction.rs).
package idgen

import "github.com/google/uuid"

// NewGID returns a fresh group id for a CreateTransactionInput whose
// caller left ID empty.
func NewGID() string {
	return uuid.New().String()
}
