package processor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// idempotencyKey derives the key attached to a processor call. The key is
// deterministic over (operation, subject, amount, currency) plus a salt
// that is fresh per logical operation instance: the SDK's wire-level
// retries of one call collapse into a single processor-side effect, while
// a genuinely new attempt (a second capture, a re-authorization after
// failure) gets a distinct key and is never swallowed.
func idempotencyKey(op, identifier string, amountCents int64, currency string) string {
	base := fmt.Sprintf("%s|%s|%d|%s|%s", op, identifier, amountCents, currency, uuid.NewString())
	sum := sha256.Sum256([]byte(base))
	return fmt.Sprintf("dep_%s_%s", op, hex.EncodeToString(sum[:])[:32])
}
