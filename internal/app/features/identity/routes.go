// internal/app/features/identity/routes.go
package identity

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts the identity routes.
// Typically: r.Mount("/auth", identity.Routes(handler))
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/resolve", h.HandleResolve)
	r.Get("/me", h.ServeCurrent)
	r.Put("/profile", h.HandleUpdateProfile)

	return r
}
