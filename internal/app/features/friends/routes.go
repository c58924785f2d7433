// internal/app/features/friends/routes.go
package friends

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts the friendship routes.
// Typically: r.Mount("/friends", friends.Routes(handler))
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeList)
	r.Get("/search", h.ServeSearch)

	r.Get("/requests", h.ServePending)
	r.Post("/requests", h.HandleSend)
	r.Delete("/requests/{id}", h.HandleCancel)
	r.Post("/requests/{id}/accept", h.HandleAccept)
	r.Post("/requests/{id}/ignore", h.HandleIgnore)

	return r
}
