package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/isdelr/sitepulse/internal/api/handlers"
	"github.com/isdelr/sitepulse/internal/auth"
	"github.com/isdelr/sitepulse/internal/services"
	"github.com/isdelr/sitepulse/internal/websocket"
)

// Dependencies are the services the router exposes. Events and Operators may
// be nil when persistence is disabled.
type Dependencies struct {
	Telemetry      *services.Telemetry
	Events         services.EventServiceProvider
	Operators      services.OperatorServiceProvider
	Auth           *auth.Authenticator
	Hub            *websocket.Hub
	Publisher      *websocket.Publisher
	Gatherer       prometheus.Gatherer
	Observer       handlers.IngestObserver
	AllowedOrigins []string
	SecureCookies  bool
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	monitorHandler := handlers.NewMonitorHandler(deps.Telemetry, deps.Observer)
	notificationHandler := handlers.NewNotificationHandler(deps.Telemetry.Notifications)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.Publisher, deps.Telemetry, deps.Auth, deps.AllowedOrigins)
	requireOperator := deps.Auth.Middleware()

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket connection endpoints
		r.Get("/ws", wsHandler.Serve)
		r.Get("/ws/{name}", wsHandler.Serve)

		r.Route("/monitors", func(r chi.Router) {
			r.Get("/", monitorHandler.GetAll)

			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", monitorHandler.Get)
				r.Get("/groups", monitorHandler.GetGroups)
				r.Get("/groups/{key}", monitorHandler.GetGroup)
				r.Get("/events", monitorHandler.GetEvents)
				// Widgets on the public site post here, so recording stays open.
				r.Post("/events", monitorHandler.Record)

				r.Group(func(r chi.Router) {
					r.Use(onlyMonitor(services.NotificationMonitor))
					r.Get("/active", notificationHandler.GetActive)
					r.Post("/dismiss-all", notificationHandler.DismissAll)
					r.Post("/{id}/dismiss", notificationHandler.Dismiss)
				})

				r.Group(func(r chi.Router) {
					r.Use(requireOperator)
					r.Post("/sweep", monitorHandler.Sweep)
					r.Delete("/", monitorHandler.Clear)
				})
			})
		})

		if deps.Events != nil {
			eventHandler := handlers.NewEventHandler(deps.Events)
			r.Get("/events", eventHandler.GetRecent)
		}

		if deps.Operators != nil {
			authHandler := handlers.NewAuthHandler(deps.Operators, deps.Auth, deps.SecureCookies)
			r.Route("/auth", func(r chi.Router) {
				r.Post("/login", authHandler.Login)
				r.With(requireOperator).Get("/me", authHandler.GetMe)
			})
		}
	})

	return r
}

// onlyMonitor limits a route group to the monitor with the given name.
func onlyMonitor(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if chi.URLParam(r, "name") != name {
				http.NotFound(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
