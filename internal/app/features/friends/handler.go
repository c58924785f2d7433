// internal/app/features/friends/handler.go
package friends

import (
	"context"
	"net/http"

	apierrors "github.com/blokhub/blokhub/internal/app/features/errors"
	friendstore "github.com/blokhub/blokhub/internal/app/store/friends"
	userstore "github.com/blokhub/blokhub/internal/app/store/users"
	"github.com/blokhub/blokhub/internal/app/system/apperr"
	"github.com/blokhub/blokhub/internal/app/system/identity"
	"github.com/blokhub/blokhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the feature-level handler for the friendship workflow.
type Handler struct {
	DB      *mongo.Database
	Log     *zap.Logger
	Users   *userstore.Store
	Friends *friendstore.Store
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		DB:      db,
		Log:     logger,
		Users:   userstore.New(db),
		Friends: friendstore.New(db, logger),
	}
}

// caller resolves the signed-in user for a request, writing 401 when the
// caller is anonymous or unknown. The bool reports whether to proceed.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	user, err := h.Users.Current(ctx, identity.FromRequest(r))
	if err != nil {
		apierrors.Write(w, h.Log, err)
		return primitive.NilObjectID, false
	}
	if user == nil {
		apierrors.Write(w, h.Log, apperr.ErrUnauthenticated)
		return primitive.NilObjectID, false
	}
	return user.ID, true
}

// pathID parses the {id} URL parameter, writing 404 on garbage.
func pathID(w http.ResponseWriter, r *http.Request, log *zap.Logger) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.Write(w, log, apperr.ErrNotFound)
		return primitive.NilObjectID, false
	}
	return id, true
}

// ServeList returns the caller's friends. GET /friends
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	me, ok := h.caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	entries, err := h.Friends.ListFriends(ctx, me)
	if err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusOK, map[string]any{"friends": entries})
}

// ServePending returns requests awaiting the caller's answer.
// GET /friends/requests
func (h *Handler) ServePending(w http.ResponseWriter, r *http.Request) {
	me, ok := h.caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	entries, err := h.Friends.ListPendingReceived(ctx, me)
	if err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusOK, map[string]any{"requests": entries})
}

// HandleSend creates a pending request to another user.
// POST /friends/requests
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	me, ok := h.caller(w, r)
	if !ok {
		return
	}

	var body struct {
		ToUserID string `json:"to_user_id"`
	}
	if err := apierrors.Decode(r, &body); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	to, err := primitive.ObjectIDFromHex(body.ToUserID)
	if err != nil {
		apierrors.Write(w, h.Log, apperr.ErrNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	req, err := h.Friends.SendRequest(ctx, me, to)
	if err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusCreated, map[string]any{"request": req})
}

// HandleCancel withdraws the caller's pending request to {id} (a user id).
// DELETE /friends/requests/{id}
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	me, ok := h.caller(w, r)
	if !ok {
		return
	}
	to, ok := pathID(w, r, h.Log)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Friends.CancelRequest(ctx, me, to); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

// HandleAccept accepts request {id} addressed to the caller.
// POST /friends/requests/{id}/accept
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	me, ok := h.caller(w, r)
	if !ok {
		return
	}
	reqID, ok := pathID(w, r, h.Log)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if err := h.Friends.AcceptRequest(ctx, reqID, me); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

// HandleIgnore dismisses request {id} addressed to the caller.
// POST /friends/requests/{id}/ignore
func (h *Handler) HandleIgnore(w http.ResponseWriter, r *http.Request) {
	me, ok := h.caller(w, r)
	if !ok {
		return
	}
	reqID, ok := pathID(w, r, h.Log)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Friends.IgnoreRequest(ctx, reqID, me); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusOK, map[string]any{"ok": true})
}
