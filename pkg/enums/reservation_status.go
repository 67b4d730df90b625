package enums

// ReservationStatus tracks the lifecycle of a stock reservation.
// Exactly one of commit/release/restore ever happens to a reservation;
// the conditional status flip is what enforces that.
type ReservationStatus string

const (
	ReservationStatusHeld      ReservationStatus = "held"
	ReservationStatusCommitted ReservationStatus = "committed"
	ReservationStatusReleased  ReservationStatus = "released"
	ReservationStatusRestored  ReservationStatus = "restored"
)

var validReservationStatuses = []ReservationStatus{
	ReservationStatusHeld,
	ReservationStatusCommitted,
	ReservationStatusReleased,
	ReservationStatusRestored,
}

// String implements fmt.Stringer.
func (r ReservationStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReservationStatus.
func (r ReservationStatus) IsValid() bool {
	for _, candidate := range validReservationStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}
