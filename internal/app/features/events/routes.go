// internal/app/features/events/routes.go
package events

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts the event routes.
// Typically: r.Mount("/events", events.Routes(handler))
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.HandleCreate)
	r.Get("/", h.ServeList)
	r.Get("/{id}", h.ServeDetail)
	r.Patch("/{id}", h.HandleUpdate)
	r.Delete("/{id}", h.HandleDelete)

	r.Post("/{id}/attendees", h.HandleInvite)
	r.Post("/{id}/respond", h.HandleRespond)

	return r
}
