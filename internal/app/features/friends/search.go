// internal/app/features/friends/search.go
package friends

import (
	"context"
	"net/http"

	apierrors "github.com/blokhub/blokhub/internal/app/features/errors"
	"github.com/blokhub/blokhub/internal/app/system/normalize"
	"github.com/blokhub/blokhub/internal/app/system/timeouts"
	"github.com/blokhub/blokhub/internal/domain/models"
)

// SearchResult is one user match annotated with the caller's relationship
// to them.
type SearchResult struct {
	User   models.User `json:"user"`
	Status string      `json:"status"`
}

// ServeSearch finds users by name or email and annotates each match with
// the relationship status relative to the caller. The caller never
// appears in their own results. GET /friends/search?q=
func (h *Handler) ServeSearch(w http.ResponseWriter, r *http.Request) {
	me, ok := h.caller(w, r)
	if !ok {
		return
	}

	term := normalize.QueryParam(r.URL.Query().Get("q"))
	if term == "" {
		apierrors.JSON(w, http.StatusOK, map[string]any{"results": []SearchResult{}})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	users, err := h.Users.Search(ctx, term)
	if err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}

	results := make([]SearchResult, 0, len(users))
	for _, u := range users {
		if u.ID == me {
			continue
		}
		status, err := h.Friends.StatusBetween(ctx, me, u.ID)
		if err != nil {
			apierrors.Write(w, h.Log, err)
			return
		}
		results = append(results, SearchResult{User: u, Status: status})
	}
	apierrors.JSON(w, http.StatusOK, map[string]any{"results": results})
}
