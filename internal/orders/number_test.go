package orders

import (
	"regexp"
	"testing"
	"time"
)

func TestGenerateOrderNumberFormat(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^ORD-20260314-[23456789ABCDEFGHJKMNPQRSTUVWXYZ]{6}$`)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		number := GenerateOrderNumber(now)
		if !pattern.MatchString(number) {
			t.Fatalf("unexpected order number %q", number)
		}
		seen[number] = true
	}
	if len(seen) < 2 {
		t.Fatal("order numbers do not vary")
	}
}
