package orders

import (
	"fmt"

	"github.com/craftline/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
)

// fulfillmentTransitions is the single source of truth for which
// fulfillment moves are legal. Terminal states have no outgoing edges.
var fulfillmentTransitions = map[enums.FulfillmentStatus][]enums.FulfillmentStatus{
	enums.FulfillmentStatusUnfulfilled: {
		enums.FulfillmentStatusProcessing,
		enums.FulfillmentStatusPacked,
		enums.FulfillmentStatusShipped,
		enums.FulfillmentStatusCancelled,
	},
	enums.FulfillmentStatusProcessing: {
		enums.FulfillmentStatusPacked,
		enums.FulfillmentStatusShipped,
		enums.FulfillmentStatusCancelled,
	},
	enums.FulfillmentStatusPacked: {
		enums.FulfillmentStatusShipped,
		enums.FulfillmentStatusCancelled,
	},
	enums.FulfillmentStatusShipped: {
		enums.FulfillmentStatusOutForDelivery,
		enums.FulfillmentStatusDelivered,
		enums.FulfillmentStatusReturned,
		enums.FulfillmentStatusCancelled,
	},
	enums.FulfillmentStatusOutForDelivery: {
		enums.FulfillmentStatusDelivered,
		enums.FulfillmentStatusReturned,
	},
	enums.FulfillmentStatusDelivered: {
		enums.FulfillmentStatusReturned,
	},
}

// AllowedTransitions returns the legal targets from the given status.
func AllowedTransitions(from enums.FulfillmentStatus) []enums.FulfillmentStatus {
	return fulfillmentTransitions[from]
}

// CanTransition reports whether from -> to is a legal fulfillment move.
func CanTransition(from, to enums.FulfillmentStatus) bool {
	for _, allowed := range fulfillmentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionError builds the state-conflict error for an illegal move,
// carrying the allowed target set in the details.
func TransitionError(from, to enums.FulfillmentStatus) error {
	allowed := AllowedTransitions(from)
	targets := make([]string, len(allowed))
	for i, status := range allowed {
		targets[i] = status.String()
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("cannot move order from %s to %s", from, to)).
		WithDetails(map[string]any{
			"current": from.String(),
			"allowed": targets,
		})
}
