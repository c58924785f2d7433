// internal/app/features/groups/routes.go
package groups

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts the group routes.
// Typically: r.Mount("/groups", groups.Routes(handler))
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.HandleCreate)
	r.Get("/", h.ServeList)
	r.Get("/{id}", h.ServeDetail)

	r.Get("/{id}/members", h.ServeMembers)
	r.Post("/{id}/members", h.HandleAddMember)
	r.Delete("/{id}/members/{userID}", h.HandleRemoveMember)

	r.Get("/{id}/events", h.ServeEvents)

	return r
}
