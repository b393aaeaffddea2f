package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/appointment"
	"github.com/hackgods/clinic-queue/internal/identity"
)

type RouterConfig struct {
	Handler            *Handler
	Logger             *zap.Logger
	JWTSecret          string
	CORSAllowedOrigins []string
	Dependencies       []Dependency
	Gatherer           prometheus.Gatherer
	Env                string
	Version            string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	h := cfg.Handler

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health and metrics
	health := NewHealthHandler(cfg.Dependencies, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	patient := identity.RequireRole(identity.RolePatient)
	clinic := identity.RequireRole(identity.RoleClinic)

	r.Route("/appointments", func(r chi.Router) {
		r.Use(identity.Authenticator(cfg.JWTSecret))

		r.With(patient).Post("/book", h.bookAppointment)
		r.Get("/next-available", h.nextAvailable)
		r.Get("/current-queue", h.currentQueueNumber)

		r.Route("/clinic", func(r chi.Router) {
			r.Use(clinic)
			r.Post("/call-next", h.callNextPatient)
			r.Get("/queue", h.clinicQueue)
			r.Get("/weekly-queue", h.weeklyQueue)
			r.Get("/all", h.clinicAppointments)
		})

		r.Route("/patient", func(r chi.Router) {
			r.Use(patient)
			r.Get("/history", h.patientHistory)
			r.Get("/upcoming", h.patientUpcoming)
			r.Get("/past", h.patientPast)
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getAppointment)
			r.Get("/wait-time", h.waitTime)
			r.With(patient).Post("/cancel", h.cancelAppointment)
			r.With(clinic).Put("/status", h.updateStatus)
			r.With(clinic).Post("/start", h.setStatus(appointment.StatusInProgress))
			r.With(clinic).Post("/complete", h.setStatus(appointment.StatusCompleted))
			r.With(clinic).Post("/delay", h.setStatus(appointment.StatusDelayed))
		})
	})

	r.Route("/schedule", func(r chi.Router) {
		r.Get("/{clinicId}/available", h.availability)
		r.Get("/{clinicId}/capacity", h.capacity)

		r.Group(func(r chi.Router) {
			r.Use(identity.Authenticator(cfg.JWTSecret))
			r.Use(clinic)

			r.Get("/working-days", h.listWorkingDays)
			r.Put("/working-days", h.replaceWorkingDays)
			r.Get("/working-days/{dayOfWeek}", h.getWorkingDay)
			r.Put("/working-days/{id}", h.updateWorkingDay)

			r.Get("/exceptions", h.listExceptions)
			r.Get("/exceptions/by-date", h.getExceptionByDate)
			r.Post("/exceptions", h.addException)
			r.Put("/exceptions", h.upsertException)
			r.Put("/exceptions/{id}", h.updateException)
			r.Delete("/exceptions/{id}", h.deleteException)
		})
	})

	return r
}
