package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"

	"github.com/prolynk/backend/internal/middleware"
	"github.com/prolynk/backend/internal/models"
	"github.com/prolynk/backend/internal/services"
)

// Deps wires the public API.
type Deps struct {
	Logger   zerolog.Logger
	Verifier middleware.TokenVerifier
	// Limiter is optional.
	Limiter *limiter.Limiter

	AllowedOrigins []string
	AllowLocalhost bool

	Profiles *services.ProfileService
	Accounts *services.AccountService
	Links    *services.LinkService
	Uploads  *services.UploadService
}

// NewRouter builds the API. CORS wraps everything, recovered panics included.
func NewRouter(d Deps) http.Handler {
	profileHandler := NewProfileHandler(d.Profiles)
	userHandler := NewUserHandler(d.Accounts, d.Profiles)
	linkHandler := NewLinkHandler(d.Links)
	uploadHandler := NewUploadHandler(d.Uploads)

	r := chi.NewRouter()

	r.Use(middleware.CORS(d.AllowedOrigins, d.AllowLocalhost))
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimiddleware.Recoverer)
	if d.Limiter != nil {
		r.Use(middleware.RateLimit(d.Limiter))
	}

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)
	r.Options("/*", preflight)
	r.Get("/health", health)

	r.Get("/username/check", userHandler.CheckUsername)

	r.With(middleware.OptionalAuth(d.Verifier)).Get("/profiles/{username}", profileHandler.GetProfile)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.Verifier))

		r.Post("/profiles", profileHandler.SaveProfile)
		r.Get("/users/me", userHandler.Me)
		r.Post("/upload-url", uploadHandler.CreateUploadURL)

		r.Route("/links", func(r chi.Router) {
			r.Get("/", linkHandler.ListLinks)
			r.Post("/", linkHandler.UpsertLink)
			r.Get("/{linkId}", linkHandler.GetLink)
			r.Delete("/{linkId}", linkHandler.DeleteLink)
		})
	})

	return r
}

// WorkerDeps wires the event receiver.
type WorkerDeps struct {
	Logger     zerolog.Logger
	Accounts   *services.AccountService
	Moderation *services.ModerationService
	// Bucket filters object notifications. Empty accepts any bucket.
	Bucket string
}

// NewWorkerRouter builds the event receiver. It is meant for private ingress
// only and carries no auth of its own.
func NewWorkerRouter(d WorkerDeps) http.Handler {
	events := NewEventHandler(d.Accounts, d.Moderation, d.Bucket)

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimiddleware.Recoverer)

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)
	r.Get("/health", health)

	r.Route("/events", func(r chi.Router) {
		r.Post("/account-confirmed", events.AccountConfirmed)
		r.Post("/object-finalized", events.ObjectFinalized)
	})
	return r
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Not found"))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, models.NewErrorResponse("Method not allowed"))
}
