package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// unitSeparator separates the fields of the content hash input, the same
// convention the teacher uses for its "|"-separated ComputeHash, but using
// the ASCII unit-separator byte so a literal pipe or colon inside a
// message body can never collide with the field boundary.
const unitSeparator = "\x1f"

// ContentHash computes the dedup hash over sender, ts bucket, and the
// (already whitespace-normalized) message body, lowercased here, per the
// content-hash equivalence law in the testable-properties section: two
// messages with equal sender/bucket and normalize-equivalent text hash
// identically.
func ContentHash(sender string, bucket time.Time, normalizedBody string) string {
	h := sha256.New()
	h.Write([]byte(sender))
	h.Write([]byte(unitSeparator))
	h.Write([]byte(strconv.FormatInt(bucket.Unix(), 10)))
	h.Write([]byte(unitSeparator))
	h.Write([]byte(strings.ToLower(normalizedBody)))
	return hex.EncodeToString(h.Sum(nil))
}
