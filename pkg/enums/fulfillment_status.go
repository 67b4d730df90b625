package enums

import "fmt"

// FulfillmentStatus tracks the physical-handling state of an order.
type FulfillmentStatus string

const (
	FulfillmentStatusUnfulfilled    FulfillmentStatus = "unfulfilled"
	FulfillmentStatusProcessing     FulfillmentStatus = "processing"
	FulfillmentStatusPacked         FulfillmentStatus = "packed"
	FulfillmentStatusShipped        FulfillmentStatus = "shipped"
	FulfillmentStatusOutForDelivery FulfillmentStatus = "out_for_delivery"
	FulfillmentStatusDelivered      FulfillmentStatus = "delivered"
	FulfillmentStatusReturned       FulfillmentStatus = "returned"
	FulfillmentStatusCancelled      FulfillmentStatus = "cancelled"
)

var validFulfillmentStatuses = []FulfillmentStatus{
	FulfillmentStatusUnfulfilled,
	FulfillmentStatusProcessing,
	FulfillmentStatusPacked,
	FulfillmentStatusShipped,
	FulfillmentStatusOutForDelivery,
	FulfillmentStatusDelivered,
	FulfillmentStatusReturned,
	FulfillmentStatusCancelled,
}

// String implements fmt.Stringer.
func (f FulfillmentStatus) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FulfillmentStatus.
func (f FulfillmentStatus) IsValid() bool {
	for _, candidate := range validFulfillmentStatuses {
		if candidate == f {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status accepts no further transitions.
func (f FulfillmentStatus) IsTerminal() bool {
	return f == FulfillmentStatusReturned || f == FulfillmentStatusCancelled
}

// ParseFulfillmentStatus converts raw input into a FulfillmentStatus.
func ParseFulfillmentStatus(value string) (FulfillmentStatus, error) {
	for _, candidate := range validFulfillmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfillment status %q", value)
}
