// internal/app/features/identity/handler.go
package identity

import (
	"context"
	"net/http"

	apierrors "github.com/blokhub/blokhub/internal/app/features/errors"
	userstore "github.com/blokhub/blokhub/internal/app/store/users"
	"github.com/blokhub/blokhub/internal/app/system/apperr"
	"github.com/blokhub/blokhub/internal/app/system/identity"
	"github.com/blokhub/blokhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves identity resolution and the current-user lookup.
type Handler struct {
	DB    *mongo.Database
	Log   *zap.Logger
	Users *userstore.Store
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		DB:    db,
		Log:   logger,
		Users: userstore.New(db),
	}
}

// HandleResolve upserts the caller's user document from the gateway
// identity and returns its id. POST /auth/resolve
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	id, err := h.Users.Resolve(ctx, identity.FromRequest(r))
	if err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusOK, map[string]any{"user_id": id})
}

// ServeCurrent returns the caller's user document, or authenticated=false
// for anonymous callers and callers not yet resolved. GET /auth/me
func (h *Handler) ServeCurrent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	user, err := h.Users.Current(ctx, identity.FromRequest(r))
	if err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	if user == nil {
		apierrors.JSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	apierrors.JSON(w, http.StatusOK, map[string]any{"authenticated": true, "user": user})
}

// HandleUpdateProfile patches the caller's profile fields.
// PUT /auth/profile
func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, err := h.Users.Current(ctx, identity.FromRequest(r))
	if err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	if user == nil {
		apierrors.Write(w, h.Log, apperr.ErrUnauthenticated)
		return
	}

	var body struct {
		Name      *string `json:"name"`
		AvatarURL *string `json:"avatar_url"`
		Bio       *string `json:"bio"`
	}
	if err := apierrors.Decode(r, &body); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}

	upd := userstore.ProfileUpdate{Name: body.Name, AvatarURL: body.AvatarURL, Bio: body.Bio}
	if err := h.Users.UpdateProfile(ctx, user.ID, upd); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusOK, map[string]any{"ok": true})
}
