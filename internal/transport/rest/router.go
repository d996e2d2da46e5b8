package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gatherhq/registration-service/internal/security"
)

type RouterDeps struct {
	Limiter   RateLimiter
	Handler   *Handler
	Verifier  security.AccessTokenVerifier
	JWTIssuer string
}

func NewRouter(d RouterDeps) http.Handler {
	if d.Limiter == nil {
		panic("rest.NewRouter: nil limiter")
	}
	if d.Handler == nil {
		panic("rest.NewRouter: nil handler")
	}
	if d.Verifier == nil {
		panic("rest.NewRouter: nil verifier")
	}

	r := chi.NewRouter()

	// Request ID + structured access log
	r.Use(RequestID)
	r.Use(HTTPLogger)

	// Panic recovery
	r.Use(middleware.Recoverer)

	// Cross-cutting
	r.Use(RateLimitMiddleware(d.Limiter))
	r.Use(SecurityHeaders)

	r.Route("/api/v1", func(r chi.Router) {
		// Guest sign-up is the one unauthenticated write.
		r.Post("/events/{eventID}/roles/{roleID}/guests", d.Handler.GuestSignUp)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Verifier, AuthOptions{ExpectedIssuer: d.JWTIssuer}))

			r.Get("/events/{eventID}", d.Handler.GetEvent)
			r.Delete("/events/{eventID}", d.Handler.DeleteEvent)
			r.Put("/events/{eventID}/programs", d.Handler.SyncPrograms)

			// self-service
			r.Post("/events/{eventID}/roles/{roleID}/signup", d.Handler.SignUp)
			r.Delete("/events/{eventID}/roles/{roleID}/signup", d.Handler.Cancel)
			r.Post("/events/{eventID}/move", d.Handler.Move)

			// operator
			r.Post("/events/{eventID}/roles/{roleID}/assign", d.Handler.Assign)
			r.Delete("/events/{eventID}/roles/{roleID}/users/{userID}", d.Handler.Remove)
		})
	})

	return r
}
