package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type RouterConfig struct {
	Service  Scheduler
	Postgres Check
	Redis    Check
	Log      logrus.FieldLogger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	h := &handlers{svc: cfg.Service, log: cfg.Log}

	r.Get("/staff/{id}/slots", h.availableSlots)

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", h.createAppointment)
		r.Get("/", h.listAppointments)
		r.Get("/{id}", h.getAppointment)
		r.Patch("/{id}", h.updateAppointment)
		r.Post("/{id}/status", h.transitionStatus)
		r.Post("/{id}/cancel", h.cancelAppointment)
	})

	r.Post("/emergencies", h.admitEmergency)

	return r
}
