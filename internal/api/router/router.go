package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-booking-engine/internal/conversation"
	"github.com/wolfman30/clinic-booking-engine/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-booking-engine/internal/http/middleware"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger               *logging.Logger
	ConversationHandler  *conversation.Handler
	DoctorHandler        *handlers.DoctorHandler
	PatientHandler       *handlers.PatientHandler
	NotificationsHandler *handlers.NotificationsHandler
	RealtimeHandler      http.Handler
	MetricsHandler       http.Handler
	CORSAllowedOrigins   []string

	// JWTSecret signs doctor and patient bearer tokens. When empty only the
	// public routes and anonymous chat are served.
	JWTSecret string

	// ChatRateLimit caps chat requests per client IP per minute.
	ChatRateLimit int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.PatientHandler != nil {
			public.Get("/api/doctors", cfg.PatientHandler.SearchDoctors)
			public.Get("/api/doctors/{doctorID}/slots", cfg.PatientHandler.Slots)
		}
	})

	if cfg.ConversationHandler != nil {
		cfg.ConversationHandler.WithIdentity(chatIdentity)
		r.Route("/api/chat", func(chat chi.Router) {
			chat.Use(httpmiddleware.Authenticate(cfg.JWTSecret, false))
			chat.Use(httpmiddleware.RateLimit(cfg.ChatRateLimit, time.Minute))
			chat.Post("/", cfg.ConversationHandler.Chat)
			chat.Post("/{sessionID}/archive", cfg.ConversationHandler.Archive)
		})
	}

	if cfg.JWTSecret == "" {
		return r
	}

	r.Group(func(authed chi.Router) {
		authed.Use(httpmiddleware.Authenticate(cfg.JWTSecret, true))

		if cfg.RealtimeHandler != nil {
			authed.Handle("/ws", cfg.RealtimeHandler)
		}
		if cfg.NotificationsHandler != nil {
			authed.Get("/api/notifications", cfg.NotificationsHandler.List)
			authed.Post("/api/notifications/{notificationID}/read", cfg.NotificationsHandler.MarkRead)
		}

		if cfg.DoctorHandler != nil {
			authed.Route("/api/doctor", func(doc chi.Router) {
				doc.Use(httpmiddleware.RequireRole(httpmiddleware.RoleDoctor))
				doc.Get("/me", cfg.DoctorHandler.Me)
				doc.Put("/availability", cfg.DoctorHandler.PublishAvailability)
				doc.Put("/status", cfg.DoctorHandler.SetStatus)
				doc.Post("/queue", cfg.DoctorHandler.QueueAction)
				doc.Get("/appointments", cfg.DoctorHandler.Appointments)
			})
		}

		if cfg.PatientHandler != nil {
			authed.Group(func(pat chi.Router) {
				pat.Use(httpmiddleware.RequireRole(httpmiddleware.RolePatient))
				pat.Post("/api/appointments", cfg.PatientHandler.Book)
				pat.Get("/api/appointments", cfg.PatientHandler.Appointments)
				pat.Delete("/api/appointments/{appointmentID}", cfg.PatientHandler.Cancel)
				pat.Post("/api/queue/{doctorID}/join", cfg.PatientHandler.JoinQueue)
				pat.Get("/api/queue/{doctorID}/status", cfg.PatientHandler.QueueStatus)
			})
		}
	})

	return r
}

// chatIdentity lets a signed-in patient's token decide the account a
// conversation belongs to.
func chatIdentity(r *http.Request) (conversation.Identity, bool) {
	p, ok := httpmiddleware.PrincipalFromContext(r.Context())
	if !ok || p.AccountID == "" {
		return conversation.Identity{}, false
	}
	return conversation.Identity{AccountID: p.AccountID, Name: p.Name}, true
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
