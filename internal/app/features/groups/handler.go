// internal/app/features/groups/handler.go
package groups

import (
	"context"
	"net/http"

	apierrors "github.com/blokhub/blokhub/internal/app/features/errors"
	eventstore "github.com/blokhub/blokhub/internal/app/store/events"
	groupstore "github.com/blokhub/blokhub/internal/app/store/groups"
	membershipstore "github.com/blokhub/blokhub/internal/app/store/memberships"
	userstore "github.com/blokhub/blokhub/internal/app/store/users"
	"github.com/blokhub/blokhub/internal/app/system/apperr"
	"github.com/blokhub/blokhub/internal/app/system/identity"
	"github.com/blokhub/blokhub/internal/app/system/normalize"
	"github.com/blokhub/blokhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the feature-level handler for groups and their rosters.
type Handler struct {
	DB          *mongo.Database
	Log         *zap.Logger
	Users       *userstore.Store
	Groups      *groupstore.Store
	Memberships *membershipstore.Store
	Events      *eventstore.Store
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		DB:          db,
		Log:         logger,
		Users:       userstore.New(db),
		Groups:      groupstore.New(db, logger),
		Memberships: membershipstore.New(db),
		Events:      eventstore.New(db, logger),
	}
}

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

func pathID(w http.ResponseWriter, r *http.Request, log *zap.Logger, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		apierrors.Write(w, log, apperr.ErrNotFound)
		return primitive.NilObjectID, false
	}
	return id, true
}

// HandleCreate makes a new group with the caller as its first admin.
// POST /groups
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	me, ok := h.caller(w, r)
	if !ok {
		return
	}

	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := apierrors.Decode(r, &body); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	group, err := h.Groups.Create(ctx, body.Name, body.Description, me)
	if err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusCreated, map[string]any{"group": group})
}

// ServeList returns the groups the caller belongs to, with their role in
// each. GET /groups
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	me, ok := h.caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	entries, err := h.Memberships.ListByUser(ctx, me)
	if err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusOK, map[string]any{"groups": entries})
}

// ServeDetail returns the group with its creator and member roster.
// GET /groups/{id}
func (h *Handler) ServeDetail(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r); !ok {
		return
	}
	groupID, ok := pathID(w, r, h.Log, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	detail, err := h.Groups.GetDetail(ctx, groupID)
	if err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	members, err := h.Memberships.ListByGroup(ctx, groupID)
	if err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusOK, map[string]any{"group": detail, "members": members})
}

// ServeMembers returns the group's roster. GET /groups/{id}/members
func (h *Handler) ServeMembers(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r); !ok {
		return
	}
	groupID, ok := pathID(w, r, h.Log, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, err := h.Groups.GetByID(ctx, groupID); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	members, err := h.Memberships.ListByGroup(ctx, groupID)
	if err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusOK, map[string]any{"members": members})
}

// HandleAddMember adds a user to the group's roster. Only admins of the
// group may change its roster. POST /groups/{id}/members
func (h *Handler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	me, ok := h.caller(w, r)
	if !ok {
		return
	}
	groupID, ok := pathID(w, r, h.Log, "id")
	if !ok {
		return
	}

	var body struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := apierrors.Decode(r, &body); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	userID, err := primitive.ObjectIDFromHex(body.UserID)
	if err != nil {
		apierrors.Write(w, h.Log, apperr.ErrNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.requireAdmin(ctx, groupID, me); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}

	if err := h.Memberships.Add(ctx, groupID, userID, normalize.Role(body.Role)); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusCreated, map[string]any{"ok": true})
}

// HandleRemoveMember removes a user from the roster. Admins may remove
// anyone; a member may remove themselves.
// DELETE /groups/{id}/members/{userID}
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	me, ok := h.caller(w, r)
	if !ok {
		return
	}
	groupID, ok := pathID(w, r, h.Log, "id")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, h.Log, "userID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if userID != me {
		if err := h.requireAdmin(ctx, groupID, me); err != nil {
			apierrors.Write(w, h.Log, err)
			return
		}
	}

	if err := h.Memberships.Remove(ctx, groupID, userID); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ServeEvents returns the events attached to the group.
// GET /groups/{id}/events
func (h *Handler) ServeEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r); !ok {
		return
	}
	groupID, ok := pathID(w, r, h.Log, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, err := h.Groups.GetByID(ctx, groupID); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	events, err := h.Events.ListForGroup(ctx, groupID)
	if err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusOK, map[string]any{"events": events})
}
