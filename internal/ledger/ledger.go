// Package ledger records which submission fingerprints have already been handled.
//
// Every backend offers Contains/Insert for plain membership and Claim, an atomic
// insert-if-absent. The pipeline only uses Claim so two concurrent submissions
// of the same content cannot both be treated as new.
package ledger

import (
	"context"

	"github.com/joseph-ayodele/proof-receipts/internal/fingerprint"
)

// Ledger is the submission ledger capability.
type Ledger interface {
	// Contains reports whether fp was inserted or claimed before (and has not expired).
	Contains(ctx context.Context, fp fingerprint.Fingerprint) (bool, error)
	// Insert records fp. Inserting a present fingerprint is a no-op.
	Insert(ctx context.Context, fp fingerprint.Fingerprint) error
	// Claim records fp if absent and reports whether this call recorded it.
	Claim(ctx context.Context, fp fingerprint.Fingerprint) (bool, error)
}
