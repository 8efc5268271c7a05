package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/tasks-be/internal/api/handlers"
	"github.com/isdelr/tasks-be/internal/audit"
	"github.com/isdelr/tasks-be/internal/auth"
	"github.com/isdelr/tasks-be/internal/models"
	"github.com/isdelr/tasks-be/internal/ratelimit"
	"github.com/isdelr/tasks-be/internal/services"
	"github.com/isdelr/tasks-be/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// requestTimeout bounds every REST request; the websocket feed is exempt.
const requestTimeout = 30 * time.Second

// Dependencies holds everything the router wires into handlers.
type Dependencies struct {
	Log            zerolog.Logger
	AllowedOrigins []string
	SecureCookies  bool
	TokenTTL       time.Duration

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Only enable behind a proxy that overwrites those headers.
	TrustProxyHeaders bool

	Resolver *auth.Resolver
	Users    services.UserServiceProvider
	Tasks    services.TaskServiceProvider
	Events   services.EventServiceProvider
	Recorder *audit.Recorder
	Hub      *websocket.Hub

	// Limiter guards register and login; nil disables rate limiting.
	Limiter *ratelimit.Limiter

	DB    handlers.Pinger
	Stats handlers.StatsSource
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	if deps.Recorder == nil {
		deps.Recorder = audit.NewRecorder(deps.Log, nil)
	}

	r := chi.NewRouter()

	// Basic middleware stack
	if deps.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(hlog.NewHandler(deps.Log))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.RemoteAddrHandler("ip"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(requestValidator(deps.Recorder))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(deps.Users, deps.Recorder, handlers.CookieOptions{
		TTL:    deps.TokenTTL,
		Secure: deps.SecureCookies,
	})
	taskHandler := handlers.NewTaskHandler(deps.Tasks, deps.Recorder)
	eventHandler := handlers.NewEventHandler(deps.Events)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Stats)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.AllowedOrigins)

	limit := func(prefix string) func(http.Handler) http.Handler {
		if deps.Limiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return deps.Limiter.Middleware(prefix)
	}

	r.Get("/", handlers.Root)
	r.Get("/health", healthHandler.Check)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))

		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.With(limit("register")).Post("/register", userHandler.Register)
			r.With(limit("login")).Post("/login", userHandler.Login)
			r.With(deps.Resolver.AuthenticateUser).Get("/me", userHandler.Me)
			r.Post("/logout", userHandler.Logout)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Use(deps.Resolver.AuthenticateUser, deps.Resolver.RequireRole(models.RoleAdmin))
			r.Get("/events", eventHandler.GetRecent)
		})

		r.Route("/{user_id}", func(r chi.Router) {
			r.Use(deps.Resolver.Authenticate, deps.Resolver.RequireOwner("user_id"))

			r.Get("/tasks/events", wsHandler.Serve)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(requestTimeout))
				r.Get("/tasks", taskHandler.List)
				r.Post("/tasks", taskHandler.Create)
				r.Route("/tasks/{task_id}", func(r chi.Router) {
					r.Get("/", taskHandler.Get)
					r.Put("/", taskHandler.Update)
					r.Delete("/", taskHandler.Delete)
					r.Patch("/complete", taskHandler.ToggleComplete)
				})
			})
		})
	})

	return r
}
