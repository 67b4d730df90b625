package orders

import (
	"crypto/rand"
	"fmt"
	"time"
)

// numberAlphabet omits ambiguous characters (0/O, 1/I/L).
const numberAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// GenerateOrderNumber builds a human-readable order number of the form
// ORD-YYYYMMDD-XXXXXX. Uniqueness is enforced by the orders table; callers
// retry on a collision.
func GenerateOrderNumber(now time.Time) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken; fall back to
		// the nanosecond clock rather than panic at checkout time.
		nano := now.UnixNano()
		for i := range buf {
			buf[i] = numberAlphabet[nano%int64(len(numberAlphabet))]
			nano /= int64(len(numberAlphabet))
		}
	} else {
		for i := range buf {
			buf[i] = numberAlphabet[int(buf[i])%len(numberAlphabet)]
		}
	}
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), string(buf))
}
