package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/smiledesk/clinic-platform/internal/http/middleware"
	"github.com/smiledesk/clinic-platform/internal/identity"
	"github.com/smiledesk/clinic-platform/internal/scheduling"
	"github.com/smiledesk/clinic-platform/internal/services"
	"github.com/smiledesk/clinic-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	PatientsHandler    *identity.Handler
	SchedulingHandler  *scheduling.Handler
	ServicesHandler    *services.Handler
	MetricsHandler     http.Handler
	StaffJWTSecret     string
	CORSAllowedOrigins []string
}

// New builds the chi router: public booking intake plus JWT-gated staff
// routes.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public surface: health, metrics, the booking form intake and the
	// service listing the form needs.
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	r.Route("/api", func(api chi.Router) {
		api.Post("/bookings", cfg.SchedulingHandler.SubmitBooking)
		api.Get("/services", cfg.ServicesHandler.ListActive)
	})

	// Staff surface.
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.StaffJWT(cfg.StaffJWTSecret))

		admin.Route("/bookings", func(b chi.Router) {
			b.Get("/", cfg.SchedulingHandler.ListBookingRequests)
			b.Post("/{bookingID}/confirm", cfg.SchedulingHandler.ConfirmBooking)
			b.Post("/{bookingID}/postpone", cfg.SchedulingHandler.PostponeBooking)
			b.Post("/{bookingID}/cancel", cfg.SchedulingHandler.CancelBooking)
		})

		admin.Route("/appointments", func(a chi.Router) {
			a.Get("/", cfg.SchedulingHandler.DaySchedule)
			a.Post("/{appointmentID}/complete", cfg.SchedulingHandler.CompleteAppointment)
			a.Post("/{appointmentID}/no-show", cfg.SchedulingHandler.NoShowAppointment)
		})

		admin.Route("/patients", func(p chi.Router) {
			p.Get("/", cfg.PatientsHandler.ListPatients)
			p.Get("/{patientID}", cfg.PatientsHandler.GetPatient)
			p.Patch("/{patientID}", cfg.PatientsHandler.UpdateContact)
		})

		admin.Route("/services", func(s chi.Router) {
			s.Get("/", cfg.ServicesHandler.ListAll)
			s.Put("/", cfg.ServicesHandler.Upsert)
			s.Delete("/{serviceID}", cfg.ServicesHandler.Deactivate)
		})
	})

	return r
}
