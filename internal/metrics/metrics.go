// Package metrics holds the Prometheus collectors for the scheduling service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vetclinic"

var (
	Bookings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bookings_total",
		Help:      "Booking attempts by outcome.",
	}, []string{"outcome"})

	EmergencyAdmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emergency_admissions_total",
		Help:      "Emergency admission attempts by outcome.",
	}, []string{"outcome"})

	DisplacedAppointments = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "displaced_appointments_total",
		Help:      "Appointments cancelled to admit an emergency.",
	})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_transitions_total",
		Help:      "Appointment status transitions by target status.",
	}, []string{"to"})

	NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failures_total",
		Help:      "Notifications that could not be delivered after the booking committed.",
	}, []string{"kind"})

	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

const (
	OutcomeCreated     = "created"
	OutcomeConflict    = "conflict"
	OutcomeInvalid     = "invalid"
	OutcomeError       = "error"
	OutcomeAdmitted    = "admitted"
	OutcomeUnavailable = "unavailable"
)
