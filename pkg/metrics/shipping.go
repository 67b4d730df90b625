package metrics

import "github.com/prometheus/client_golang/prometheus"

// ShippingMetrics tracks carrier booking attempts and escalations.
type ShippingMetrics struct {
	attempts    *prometheus.CounterVec
	booked      prometheus.Counter
	exhaustions prometheus.Counter
}

// NewShippingMetrics registers the shipment metrics on the provided registerer.
func NewShippingMetrics(reg prometheus.Registerer) *ShippingMetrics {
	if reg == nil {
		return &ShippingMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shipment_booking_attempts_total",
		Help: "Carrier booking attempts by outcome.",
	}, []string{"outcome"})
	booked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shipment_booked_total",
		Help: "Shipments successfully booked.",
	})
	exhaustions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shipment_retry_exhaustions_total",
		Help: "Bookings escalated to an operator after exhausting retries.",
	})
	reg.MustRegister(attempts, booked, exhaustions)
	return &ShippingMetrics{
		attempts:    attempts,
		booked:      booked,
		exhaustions: exhaustions,
	}
}

// IncAttempt records a single booking attempt with its outcome label.
func (s *ShippingMetrics) IncAttempt(outcome string) {
	if s == nil || s.attempts == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	s.attempts.WithLabelValues(outcome).Inc()
}

// IncBooked records a successful booking.
func (s *ShippingMetrics) IncBooked() {
	if s == nil || s.booked == nil {
		return
	}
	s.booked.Inc()
}

// IncExhausted records a booking abandoned after the retry budget.
func (s *ShippingMetrics) IncExhausted() {
	if s == nil || s.exhaustions == nil {
		return
	}
	s.exhaustions.Inc()
}
