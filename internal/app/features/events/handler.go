// internal/app/features/events/handler.go
package events

import (
	"context"
	"net/http"
	"time"

	apierrors "github.com/blokhub/blokhub/internal/app/features/errors"
	eventstore "github.com/blokhub/blokhub/internal/app/store/events"
	membershipstore "github.com/blokhub/blokhub/internal/app/store/memberships"
	userstore "github.com/blokhub/blokhub/internal/app/store/users"
	"github.com/blokhub/blokhub/internal/app/system/apperr"
	"github.com/blokhub/blokhub/internal/app/system/identity"
	"github.com/blokhub/blokhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the feature-level handler for events and attendance.
type Handler struct {
	DB          *mongo.Database
	Log         *zap.Logger
	Users       *userstore.Store
	Events      *eventstore.Store
	Memberships *membershipstore.Store
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		DB:          db,
		Log:         logger,
		Users:       userstore.New(db),
		Events:      eventstore.New(db, logger),
		Memberships: membershipstore.New(db),
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

func pathID(w http.ResponseWriter, r *http.Request, log *zap.Logger) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.Write(w, log, apperr.ErrNotFound)
		return primitive.NilObjectID, false
	}
	return id, true
}

// ownedEvent loads the event and checks the caller created it.
func (h *Handler) ownedEvent(w http.ResponseWriter, r *http.Request, me primitive.ObjectID) (primitive.ObjectID, bool) {
	eventID, ok := pathID(w, r, h.Log)
	if !ok {
		return primitive.NilObjectID, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ev, err := h.Events.GetByID(ctx, eventID)
	if err != nil {
		apierrors.Write(w, h.Log, err)
		return primitive.NilObjectID, false
	}
	if ev.CreatedBy != me {
		apierrors.Write(w, h.Log, apperr.ErrNotAuthorized)
		return primitive.NilObjectID, false
	}
	return eventID, true
}

// HandleCreate makes an event and issues pending invites.
// POST /events
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	me, ok := h.caller(w, r)
	if !ok {
		return
	}

	var body struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		StartTime   time.Time `json:"start_time"`
		EndTime     time.Time `json:"end_time"`
		IsAllDay    bool      `json:"is_all_day"`
		Location    string    `json:"location"`
		GroupID     string    `json:"group_id"`
		AttendeeIDs []string  `json:"attendee_ids"`
	}
	if err := apierrors.Decode(r, &body); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	in := eventstore.CreateInput{
		Title:       body.Title,
		Description: body.Description,
		StartTime:   body.StartTime,
		EndTime:     body.EndTime,
		CreatedBy:   me,
		IsAllDay:    body.IsAllDay,
		Location:    body.Location,
	}
	if body.GroupID != "" {
		groupID, err := primitive.ObjectIDFromHex(body.GroupID)
		if err != nil {
			apierrors.Write(w, h.Log, apperr.ErrNotFound)
			return
		}
		// Group events come from the group's own members.
		member, err := h.Memberships.Exists(ctx, groupID, me)
		if err != nil {
			apierrors.Write(w, h.Log, err)
			return
		}
		if !member {
			apierrors.Write(w, h.Log, apperr.ErrNotAuthorized)
			return
		}
		in.GroupID = &groupID
	}

	attendeeIDs := make([]primitive.ObjectID, 0, len(body.AttendeeIDs))
	for _, raw := range body.AttendeeIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			apierrors.Write(w, h.Log, apperr.ErrNotFound)
			return
		}
		attendeeIDs = append(attendeeIDs, id)
	}

	ev, err := h.Events.Create(ctx, in, attendeeIDs)
	if err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusCreated, map[string]any{"event": ev})
}

// ServeList returns the caller's calendar, optionally restricted to a
// window via from/until query params (RFC 3339). GET /events
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	me, ok := h.caller(w, r)
	if !ok {
		return
	}

	var from, until *time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			apierrors.Write(w, h.Log, err)
			return
		}
		from = &t
	}
	if raw := r.URL.Query().Get("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			apierrors.Write(w, h.Log, err)
			return
		}
		until = &t
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	entries, err := h.Events.ListForUser(ctx, me, from, until)
	if err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusOK, map[string]any{"events": entries})
}

// ServeDetail returns the event with its attendee roster.
// GET /events/{id}
func (h *Handler) ServeDetail(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r); !ok {
		return
	}
	eventID, ok := pathID(w, r, h.Log)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	detail, err := h.Events.GetWithAttendees(ctx, eventID)
	if err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusOK, detail)
}

// HandleUpdate patches event fields. Creator only. PATCH /events/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	me, ok := h.caller(w, r)
	if !ok {
		return
	}
	eventID, ok := h.ownedEvent(w, r, me)
	if !ok {
		return
	}

	var body struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		StartTime   *time.Time `json:"start_time"`
		EndTime     *time.Time `json:"end_time"`
		IsAllDay    *bool      `json:"is_all_day"`
		Location    *string    `json:"location"`
	}
	if err := apierrors.Decode(r, &body); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	upd := eventstore.UpdateInput{
		Title:       body.Title,
		Description: body.Description,
		StartTime:   body.StartTime,
		EndTime:     body.EndTime,
		IsAllDay:    body.IsAllDay,
		Location:    body.Location,
	}
	if err := h.Events.Update(ctx, eventID, upd); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

// HandleDelete removes the event and its attendance rows. Creator only.
// DELETE /events/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	me, ok := h.caller(w, r)
	if !ok {
		return
	}
	eventID, ok := h.ownedEvent(w, r, me)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if err := h.Events.Delete(ctx, eventID); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

// HandleInvite adds a pending invite for another user. Creator only.
// POST /events/{id}/attendees
func (h *Handler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	me, ok := h.caller(w, r)
	if !ok {
		return
	}
	eventID, ok := h.ownedEvent(w, r, me)
	if !ok {
		return
	}

	var body struct {
		UserID string `json:"user_id"`
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

	if err := h.Events.Invite(ctx, eventID, userID); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusCreated, map[string]any{"ok": true})
}

// HandleRespond records the caller's RSVP. POST /events/{id}/respond
func (h *Handler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	me, ok := h.caller(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(w, r, h.Log)
	if !ok {
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := apierrors.Decode(r, &body); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Events.RespondToInvite(ctx, eventID, me, body.Status); err != nil {
		apierrors.Write(w, h.Log, err)
		return
	}
	apierrors.JSON(w, http.StatusOK, map[string]any{"ok": true})
}
