package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the queue allocator and
// the appointment lifecycle.
type BookingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	bookingAttempts  prometheus.Histogram
	bookingLatency   prometheus.Histogram
	transitionsTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicqueue",
			Subsystem: "booking",
			Name:      "requests_total",
			Help:      "Booking requests by outcome",
		}, []string{"outcome"}),
		bookingAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinicqueue",
			Subsystem: "booking",
			Name:      "attempts",
			Help:      "Allocation attempts needed per booking request",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		}),
		bookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinicqueue",
			Subsystem: "booking",
			Name:      "latency_seconds",
			Help:      "End to end latency of booking requests",
			Buckets:   prometheus.DefBuckets,
		}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicqueue",
			Subsystem: "appointment",
			Name:      "status_transitions_total",
			Help:      "Applied appointment status transitions",
		}, []string{"from", "to"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.bookingAttempts, m.bookingLatency, m.transitionsTotal)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string, attempts int, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	if attempts > 0 {
		m.bookingAttempts.Observe(float64(attempts))
	}
	m.bookingLatency.Observe(seconds)
}

func (m *BookingMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}
