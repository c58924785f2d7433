// internal/app/store/events/eventstore.go
package eventstore

import (
	"context"
	"errors"
	"time"

	"github.com/blokhub/blokhub/internal/app/system/apperr"
	"github.com/blokhub/blokhub/internal/app/system/htmlsanitize"
	"github.com/blokhub/blokhub/internal/app/system/normalize"
	"github.com/blokhub/blokhub/internal/app/system/txn"
	"github.com/blokhub/blokhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	errEmptyTitle = errors.New("event title is required")
	errBadStatus  = errors.New(`status must be "pending", "accepted", or "declined"`)
)

type Store struct {
	c         *mongo.Collection
	attendees *mongo.Collection
	users     *mongo.Collection
	db        *mongo.Database
	log       *zap.Logger
}

func New(db *mongo.Database, log *zap.Logger) *Store {
	return &Store{
		c:         db.Collection("events"),
		attendees: db.Collection("event_attendees"),
		users:     db.Collection("users"),
		db:        db,
		log:       log,
	}
}

// GetByID fetches a single event.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Event, error) {
	var ev models.Event
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&ev)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Event{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Event{}, apperr.Transient(err)
	}
	return ev, nil
}

// CreateInput holds the fields for a new event.
type CreateInput struct {
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	CreatedBy   primitive.ObjectID
	GroupID     *primitive.ObjectID
	IsAllDay    bool
	Location    string
}

// Create inserts the event and one pending attendee row per invitee, as a
// single transactional unit where the deployment allows. Duplicate ids in
// the invite list collapse to one row, and the creator is not given a row
// (their events are theirs without an RSVP).
func (s *Store) Create(ctx context.Context, in CreateInput, attendeeIDs []primitive.ObjectID) (models.Event, error) {
	title := normalize.Name(in.Title)
	if title == "" {
		return models.Event{}, errEmptyTitle
	}

	if err := s.users.FindOne(ctx, bson.M{"_id": in.CreatedBy}).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Event{}, apperr.ErrNotFound
		}
		return models.Event{}, apperr.Transient(err)
	}

	now := time.Now().UTC()
	ev := models.Event{
		ID:          primitive.NewObjectID(),
		Title:       title,
		Description: htmlsanitize.Sanitize(in.Description),
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		CreatedBy:   in.CreatedBy,
		GroupID:     in.GroupID,
		IsAllDay:    in.IsAllDay,
		Location:    normalize.Name(in.Location),
		CreatedAt:   now,
	}

	seen := map[primitive.ObjectID]bool{in.CreatedBy: true}
	var docs []interface{}
	for _, uid := range attendeeIDs {
		if seen[uid] {
			continue
		}
		seen[uid] = true
		docs = append(docs, models.EventAttendee{
			ID:      primitive.NewObjectID(),
			EventID: ev.ID,
			UserID:  uid,
			Status:  models.AttendancePending,
			AddedAt: now,
		})
	}

	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if _, err := s.c.InsertOne(ctx, ev); err != nil {
			return err
		}
		if len(docs) > 0 {
			if _, err := s.attendees.InsertMany(ctx, docs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Event{}, apperr.Transient(err)
	}
	return ev, nil
}

// UpdateInput holds the patchable event fields. Nil means "leave unchanged".
type UpdateInput struct {
	Title       *string
	Description *string
	StartTime   *time.Time
	EndTime     *time.Time
	IsAllDay    *bool
	Location    *string
}

// Update patches the given fields on an event.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd UpdateInput) error {
	set := bson.M{}
	if upd.Title != nil {
		if t := normalize.Name(*upd.Title); t != "" {
			set["title"] = t
		}
	}
	if upd.Description != nil {
		set["description"] = htmlsanitize.Sanitize(*upd.Description)
	}
	if upd.StartTime != nil {
		set["start_time"] = *upd.StartTime
	}
	if upd.EndTime != nil {
		set["end_time"] = *upd.EndTime
	}
	if upd.IsAllDay != nil {
		set["is_all_day"] = *upd.IsAllDay
	}
	if upd.Location != nil {
		set["location"] = normalize.Name(*upd.Location)
	}
	if len(set) == 0 {
		return nil
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return apperr.Transient(err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Invite adds a pending attendee row for a user on an existing event.
// A second invite for the same (event, user) is reported as already
// present by the unique composite index.
func (s *Store) Invite(ctx context.Context, eventID, userID primitive.ObjectID) error {
	if err := s.c.FindOne(ctx, bson.M{"_id": eventID}).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.ErrNotFound
		}
		return apperr.Transient(err)
	}
	if err := s.users.FindOne(ctx, bson.M{"_id": userID}).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.ErrNotFound
		}
		return apperr.Transient(err)
	}

	_, err := s.attendees.InsertOne(ctx, models.EventAttendee{
		ID:      primitive.NewObjectID(),
		EventID: eventID,
		UserID:  userID,
		Status:  models.AttendancePending,
		AddedAt: time.Now().UTC(),
	})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return apperr.ErrAlreadyMember
		}
		return apperr.Transient(err)
	}
	return nil
}

// RespondToInvite patches the attendee row for (eventID, userID) to the
// given status. Responding without an invite row is a silent no-op: only
// the caller's own row is addressable by this composite key, so there is
// no separate authorization check.
func (s *Store) RespondToInvite(ctx context.Context, eventID, userID primitive.ObjectID, status string) error {
	if !models.ValidAttendance(status) {
		return errBadStatus
	}
	_, err := s.attendees.UpdateOne(ctx,
		bson.M{"event_id": eventID, "user_id": userID},
		bson.M{"$set": bson.M{"status": status}},
	)
	if err != nil {
		return apperr.Transient(err)
	}
	return nil
}

// Delete removes the event and all of its attendee rows. Attendees go
// first: an attendee row referencing a missing event would corrupt later
// joins, while the reverse order is harmless if interrupted. Deleting an
// absent event is a no-op.
func (s *Store) Delete(ctx context.Context, eventID primitive.ObjectID) error {
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if _, err := s.attendees.DeleteMany(ctx, bson.M{"event_id": eventID}); err != nil {
			return err
		}
		_, err := s.c.DeleteOne(ctx, bson.M{"_id": eventID})
		return err
	})
	if err != nil {
		return apperr.Transient(err)
	}
	return nil
}

// EventEntry is the read model for a calendar listing row. For events the
// user merely attends, AttendanceStatus carries their RSVP; for events
// they created it is empty.
type EventEntry struct {
	Event            models.Event `json:"event"`
	AttendanceStatus string       `json:"attendance_status,omitempty"`
}

// ListForUser returns the events the user created or attends, optionally
// restricted to a window. The window test is contained-within, not
// overlap: start_time >= from and end_time <= until. (That is what the
// calendar UI asks for — events fully inside the displayed range.)
func (s *Store) ListForUser(ctx context.Context, userID primitive.ObjectID, from, until *time.Time) ([]EventEntry, error) {
	filter := bson.M{}
	if from != nil {
		filter["start_time"] = bson.M{"$gte": *from}
	}
	if until != nil {
		filter["end_time"] = bson.M{"$lte": *until}
	}

	cur, err := s.c.Find(ctx, filter)
	if err != nil {
		return nil, apperr.Transient(err)
	}
	defer cur.Close(ctx)

	var events []models.Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, apperr.Transient(err)
	}

	// One indexed lookup for all of the user's attendance rows in the
	// window, instead of a per-event probe.
	ids := make([]primitive.ObjectID, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	attendance, err := s.attendanceFor(ctx, userID, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]EventEntry, 0, len(events))
	for _, ev := range events {
		if ev.CreatedBy == userID {
			entries = append(entries, EventEntry{Event: ev})
			continue
		}
		if status, ok := attendance[ev.ID]; ok {
			entries = append(entries, EventEntry{Event: ev, AttendanceStatus: status})
		}
	}
	return entries, nil
}

// ListForGroup returns the events attached to a group.
func (s *Store) ListForGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Event, error) {
	cur, err := s.c.Find(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return nil, apperr.Transient(err)
	}
	defer cur.Close(ctx)

	var events []models.Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, apperr.Transient(err)
	}
	return events, nil
}

// AttendeeEntry is the read model for one invitee on an event detail view.
type AttendeeEntry struct {
	User    models.User `json:"user"`
	Status  string      `json:"status"`
	AddedAt time.Time   `json:"added_at"`
}

// EventDetail is the denormalized event-with-attendees response.
type EventDetail struct {
	Event     models.Event    `json:"event"`
	Attendees []AttendeeEntry `json:"attendees"`
}

// GetWithAttendees resolves the event plus every attendee row joined to
// its user. Rows whose user has been deleted are filtered out.
func (s *Store) GetWithAttendees(ctx context.Context, eventID primitive.ObjectID) (EventDetail, error) {
	var ev models.Event
	if err := s.c.FindOne(ctx, bson.M{"_id": eventID}).Decode(&ev); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return EventDetail{}, apperr.ErrNotFound
		}
		return EventDetail{}, apperr.Transient(err)
	}

	cur, err := s.attendees.Find(ctx, bson.M{"event_id": eventID})
	if err != nil {
		return EventDetail{}, apperr.Transient(err)
	}
	defer cur.Close(ctx)

	var rows []models.EventAttendee
	if err := cur.All(ctx, &rows); err != nil {
		return EventDetail{}, apperr.Transient(err)
	}

	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID)
	}
	users, err := s.loadUsers(ctx, ids)
	if err != nil {
		return EventDetail{}, err
	}

	detail := EventDetail{Event: ev, Attendees: []AttendeeEntry{}}
	for _, row := range rows {
		u, ok := users[row.UserID]
		if !ok {
			continue // dangling user reference
		}
		detail.Attendees = append(detail.Attendees, AttendeeEntry{User: u, Status: row.Status, AddedAt: row.AddedAt})
	}
	return detail, nil
}

func (s *Store) attendanceFor(ctx context.Context, userID primitive.ObjectID, eventIDs []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	out := make(map[primitive.ObjectID]string, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}
	cur, err := s.attendees.Find(ctx, bson.M{
		"user_id":  userID,
		"event_id": bson.M{"$in": eventIDs},
	})
	if err != nil {
		return nil, apperr.Transient(err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var row models.EventAttendee
		if err := cur.Decode(&row); err != nil {
			return nil, apperr.Transient(err)
		}
		out[row.EventID] = row.Status
	}
	if err := cur.Err(); err != nil {
		return nil, apperr.Transient(err)
	}
	return out, nil
}

func (s *Store) loadUsers(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	out := make(map[primitive.ObjectID]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, apperr.Transient(err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, apperr.Transient(err)
		}
		out[u.ID] = u
	}
	if err := cur.Err(); err != nil {
		return nil, apperr.Transient(err)
	}
	return out, nil
}
