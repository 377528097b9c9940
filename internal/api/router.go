package api

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sajilotantra/sajilotantra-be/internal/api/handlers"
	"github.com/sajilotantra/sajilotantra-be/internal/audit"
	"github.com/sajilotantra/sajilotantra-be/internal/auth"
	"github.com/sajilotantra/sajilotantra-be/internal/metrics"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Users         *handlers.UserHandler
	MFA           *handlers.MFAHandler
	Posts         *handlers.PostHandler
	Government    *handlers.GovernmentHandler
	Guidances     *handlers.GuidanceHandler
	Notifications *handlers.NotificationHandler
	Feedbacks     *handlers.FeedbackHandler
	Payments      *handlers.PaymentHandler
	Activity      *handlers.ActivityHandler
	Admin         *handlers.AdminHandler
	WebSocket     *handlers.WebSocketHandler
	Health        *handlers.HealthHandler
}

// Options carries the cross-cutting pieces of the router.
type Options struct {
	Tokens         *auth.TokenIssuer
	Recorder       *audit.Recorder
	Metrics        *metrics.Metrics
	AuthLimiter    func(http.Handler) http.Handler
	AllowedOrigins []string
	UploadDir      string // served at /uploads/ when set
	TrustedProxies []*net.IPNet
}

// NewRouter creates and configures a new Chi router.
func NewRouter(h Handlers, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(realIP(opts.TrustedProxies))
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(opts.Metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if opts.Recorder != nil {
		r.Use(audit.Middleware(opts.Recorder, opts.Tokens.ActorID))
	}

	limited := opts.AuthLimiter
	if limited == nil {
		limited = func(next http.Handler) http.Handler { return next }
	}
	protected := opts.Tokens.Middleware(false)
	optional := opts.Tokens.OptionalMiddleware

	r.Get("/health", h.Health.Check)
	r.Handle("/metrics", opts.Metrics.Handler())
	r.With(opts.Tokens.Middleware(true)).Get("/ws", h.WebSocket.Serve)
	if opts.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(opts.UploadDir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(limited)
				r.Post("/register", h.Users.Register)
				r.Post("/verify-otp", h.Users.VerifyOTP)
				r.Post("/resend-otp", h.Users.ResendOTP)
				r.Post("/login", h.Users.Login)
				r.Post("/request-password-reset", h.Users.RequestPasswordReset)
				r.Post("/reset-password", h.Users.ResetPassword)
			})
			r.Post("/logout", h.Users.Logout)
			r.Put("/change-password", h.Users.ChangePassword)

			r.Group(func(r chi.Router) {
				r.Use(protected)
				r.Get("/profile", h.Users.GetProfile)
				r.Put("/profile", h.Users.UpdateProfile)
				r.Get("/me/activity-logs", h.Users.MyActivityLogs)
				r.Get("/{id}", h.Users.Get)
				r.Get("/{id}/profile", h.Users.PublicProfile)
				r.With(auth.RequireAdmin).Get("/all", h.Users.List)
				r.With(auth.RequireAdmin).Delete("/{id}", h.Users.Delete)
			})
		})

		r.Route("/mfa", func(r chi.Router) {
			r.Use(protected)
			r.Post("/setup", h.MFA.Setup)
			r.Post("/verify", h.MFA.Verify)
			r.Post("/disable", h.MFA.Disable)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Use(protected)
			r.Post("/", h.Posts.Create)
			r.Get("/all", h.Posts.List)
			r.Get("/user/{userId}", h.Posts.ListByUser)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Posts.Get)
				r.Delete("/", h.Posts.Delete)
				r.Post("/like", h.Posts.Like)
				r.Delete("/like", h.Posts.Unlike)
				r.Post("/comment", h.Posts.Comment)
				r.Get("/comments", h.Posts.Comments)
			})
		})

		r.Route("/government", func(r chi.Router) {
			r.Get("/", h.Government.List)
			r.Get("/nearest", h.Government.Nearest)
			r.With(protected).Get("/following", h.Government.Following)
			r.With(protected, auth.RequireAdmin).Post("/create", h.Government.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Government.Get)
				r.Group(func(r chi.Router) {
					r.Use(protected)
					r.Post("/follow", h.Government.Follow)
					r.Delete("/follow", h.Government.Unfollow)
				})
				r.Group(func(r chi.Router) {
					r.Use(protected, auth.RequireAdmin)
					r.Put("/", h.Government.Update)
					r.Delete("/", h.Government.Delete)
					r.Post("/branches", h.Government.AddBranch)
				})
			})
		})

		r.Route("/guidances", func(r chi.Router) {
			r.Get("/getall", h.Guidances.List)
			r.With(protected, auth.RequireAdmin).Post("/post", h.Guidances.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.With(optional).Get("/", h.Guidances.Get)
				r.With(protected).Put("/tracking", h.Guidances.Track)
				r.Group(func(r chi.Router) {
					r.Use(protected, auth.RequireAdmin)
					r.Put("/", h.Guidances.Update)
					r.Delete("/", h.Guidances.Delete)
				})
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(protected)
			r.Get("/all", h.Notifications.List)
			r.With(auth.RequireAdmin).Post("/post", h.Notifications.Create)
			r.Put("/{id}/read", h.Notifications.MarkRead)
		})

		r.Route("/feedbacks", func(r chi.Router) {
			r.With(optional).Post("/", h.Feedbacks.Submit)
			r.With(protected, auth.RequireAdmin).Get("/getall", h.Feedbacks.List)
		})

		r.Route("/payment", func(r chi.Router) {
			r.Use(protected)
			r.Post("/initiate", h.Payments.Initiate)
			r.Post("/verify", h.Payments.Verify)
		})

		r.Route("/activity-logs", func(r chi.Router) {
			r.Use(protected)
			r.Post("/", h.Activity.Create)
			r.Get("/me/activity-logs", h.Users.MyActivityLogs)
			r.With(auth.RequireAdmin).Get("/", h.Activity.List)
			r.With(auth.RequireAdmin).Get("/stats", h.Activity.Stats)
		})
	})

	r.Route("/admin/api", func(r chi.Router) {
		r.Use(protected, auth.RequireAdmin)
		r.Get("/dashboard", h.Admin.Dashboard)
		r.Get("/resources", h.Admin.Resources)
		r.Get("/resources/{name}", h.Admin.List)
		r.Post("/resources/{name}", h.Admin.Create)
		r.Get("/resources/{name}/{id}", h.Admin.Get)
		r.Put("/resources/{name}/{id}", h.Admin.Update)
		r.Delete("/resources/{name}/{id}", h.Admin.Delete)
	})

	return r
}
