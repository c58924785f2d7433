// internal/app/store/friends/friendstore.go
package friendstore

// Terminology:
//   - FriendRequest: directed workflow row (from -> to), status pending/accepted/ignored.
//   - Friendship: canonical undirected fact row, user_id1 < user_id2.
// The two are never conflated: requests are history, friendships are truth.

import (
	"context"
	"errors"
	"time"

	"github.com/blokhub/blokhub/internal/app/system/apperr"
	"github.com/blokhub/blokhub/internal/app/system/txn"
	"github.com/blokhub/blokhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ErrSelfRequest is returned when a user tries to friend themselves.
var ErrSelfRequest = errors.New("cannot send a friend request to yourself")

type Store struct {
	requests    *mongo.Collection
	friendships *mongo.Collection
	users       *mongo.Collection
	db          *mongo.Database
	log         *zap.Logger
}

func New(db *mongo.Database, log *zap.Logger) *Store {
	return &Store{
		requests:    db.Collection("friend_requests"),
		friendships: db.Collection("friendships"),
		users:       db.Collection("users"),
		db:          db,
		log:         log,
	}
}

// SendRequest creates a pending request for the exact ordered (from, to)
// pair. The reverse direction is deliberately not consulted: A->B and B->A
// may both be pending at once, and the read side resolves which to show.
//
// The pre-check gives the friendly error on the common path; the partial
// unique index on (from_user_id, to_user_id, status=pending) decides races,
// so N concurrent sends leave exactly one pending row.
func (s *Store) SendRequest(ctx context.Context, from, to primitive.ObjectID) (models.FriendRequest, error) {
	if from == to {
		return models.FriendRequest{}, ErrSelfRequest
	}

	// Recipient must exist.
	if err := s.users.FindOne(ctx, bson.M{"_id": to}).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.FriendRequest{}, apperr.ErrNotFound
		}
		return models.FriendRequest{}, apperr.Transient(err)
	}

	err := s.requests.FindOne(ctx, bson.M{
		"from_user_id": from,
		"to_user_id":   to,
		"status":       models.RequestPending,
	}).Err()
	if err == nil {
		return models.FriendRequest{}, apperr.ErrDuplicateRequest
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.FriendRequest{}, apperr.Transient(err)
	}

	req := models.FriendRequest{
		ID:         primitive.NewObjectID(),
		FromUserID: from,
		ToUserID:   to,
		Status:     models.RequestPending,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := s.requests.InsertOne(ctx, req); err != nil {
		if wafflemongo.IsDup(err) {
			return models.FriendRequest{}, apperr.ErrDuplicateRequest
		}
		return models.FriendRequest{}, apperr.Transient(err)
	}
	return req, nil
}

// CancelRequest deletes the pending request for the ordered pair if one
// exists. Cancelling an absent request is a no-op, so the call is
// idempotent.
func (s *Store) CancelRequest(ctx context.Context, from, to primitive.ObjectID) error {
	_, err := s.requests.DeleteOne(ctx, bson.M{
		"from_user_id": from,
		"to_user_id":   to,
		"status":       models.RequestPending,
	})
	if err != nil {
		return apperr.Transient(err)
	}
	return nil
}

// AcceptRequest marks the request accepted and materializes the canonical
// Friendship row, as one transactional unit where the deployment allows.
// Only the addressed (to) user may accept.
//
// If the canonical row already exists (the dual-pending case where both
// directions were accepted, or a repeat accept) the insert is skipped: the
// friendship fact is already true. The existence check must happen inside
// the unit rather than relying on a duplicate-key error, because a write
// error inside a server-side transaction aborts it and the commit would
// fail even with the error swallowed. IsDup stays only as the race
// backstop on the sequential path, where no transaction is in flight.
func (s *Store) AcceptRequest(ctx context.Context, requestID, actingUser primitive.ObjectID) error {
	var req models.FriendRequest
	if err := s.requests.FindOne(ctx, bson.M{"_id": requestID}).Decode(&req); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.ErrNotFound
		}
		return apperr.Transient(err)
	}
	if req.ToUserID != actingUser {
		return apperr.ErrNotAuthorized
	}

	id1, id2 := models.CanonicalPair(req.FromUserID, req.ToUserID)
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if _, err := s.requests.UpdateByID(ctx, requestID, bson.M{
			"$set": bson.M{"status": models.RequestAccepted},
		}); err != nil {
			return err
		}
		err := s.friendships.FindOne(ctx, bson.M{"user_id1": id1, "user_id2": id2}).Err()
		if err == nil {
			return nil // already friends
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return err
		}
		_, err = s.friendships.InsertOne(ctx, models.Friendship{
			ID:        primitive.NewObjectID(),
			UserID1:   id1,
			UserID2:   id2,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil && !wafflemongo.IsDup(err) {
			return err
		}
		return nil
	})
	if err != nil {
		return apperr.Transient(err)
	}
	return nil
}

// IgnoreRequest marks the request ignored. Same authorization rule as
// AcceptRequest; no Friendship row is created.
func (s *Store) IgnoreRequest(ctx context.Context, requestID, actingUser primitive.ObjectID) error {
	var req models.FriendRequest
	if err := s.requests.FindOne(ctx, bson.M{"_id": requestID}).Decode(&req); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.ErrNotFound
		}
		return apperr.Transient(err)
	}
	if req.ToUserID != actingUser {
		return apperr.ErrNotAuthorized
	}

	if _, err := s.requests.UpdateByID(ctx, requestID, bson.M{
		"$set": bson.M{"status": models.RequestIgnored},
	}); err != nil {
		return apperr.Transient(err)
	}
	return nil
}

// FriendEntry is the read model for a friend list row: the counterpart
// user annotated with when the friendship was formed.
type FriendEntry struct {
	User                models.User `json:"user"`
	FriendshipCreatedAt time.Time   `json:"friendship_created_at"`
}

// ListFriends returns the user's friends. The friendships collection is
// consulted on both sides of the canonical pair (two indexed lookups,
// unioned); rows whose counterpart user has been deleted are filtered out
// rather than failing the whole read.
func (s *Store) ListFriends(ctx context.Context, user primitive.ObjectID) ([]FriendEntry, error) {
	rows, err := s.friendshipsOf(ctx, user)
	if err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, f := range rows {
		ids = append(ids, f.Other(user))
	}
	counterparts, err := s.loadUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]FriendEntry, 0, len(rows))
	for _, f := range rows {
		u, ok := counterparts[f.Other(user)]
		if !ok {
			continue // dangling reference
		}
		entries = append(entries, FriendEntry{User: u, FriendshipCreatedAt: f.CreatedAt})
	}
	return entries, nil
}

// PendingRequestEntry is the read model for a received, still-pending
// friend request: the sender plus the request identity the recipient needs
// to accept or ignore it.
type PendingRequestEntry struct {
	RequestID primitive.ObjectID `json:"request_id"`
	User      models.User        `json:"user"`
	CreatedAt time.Time          `json:"created_at"`
}

// ListPendingReceived returns the pending requests addressed to the user,
// each resolved to its sender. Requests from since-deleted users are
// filtered out.
func (s *Store) ListPendingReceived(ctx context.Context, user primitive.ObjectID) ([]PendingRequestEntry, error) {
	cur, err := s.requests.Find(ctx, bson.M{
		"to_user_id": user,
		"status":     models.RequestPending,
	})
	if err != nil {
		return nil, apperr.Transient(err)
	}
	defer cur.Close(ctx)

	var rows []models.FriendRequest
	if err := cur.All(ctx, &rows); err != nil {
		return nil, apperr.Transient(err)
	}

	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.FromUserID)
	}
	senders, err := s.loadUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]PendingRequestEntry, 0, len(rows))
	for _, r := range rows {
		u, ok := senders[r.FromUserID]
		if !ok {
			continue
		}
		entries = append(entries, PendingRequestEntry{RequestID: r.ID, User: u, CreatedAt: r.CreatedAt})
	}
	return entries, nil
}

// Relationship statuses reported by StatusBetween, from the acting user's
// perspective.
const (
	StatusFriends  = "friends"
	StatusPending  = "pending"  // acting user sent, counterpart has not responded
	StatusReceived = "received" // counterpart sent, acting user has not responded
	StatusNone     = "none"
)

// StatusBetween computes the relationship status between the acting user
// and another user. Precedence is significant: an existing friendship
// always outranks pending workflow rows, so stale request history can
// never mask the friendship fact.
func (s *Store) StatusBetween(ctx context.Context, actingUser, other primitive.ObjectID) (string, error) {
	id1, id2 := models.CanonicalPair(actingUser, other)
	err := s.friendships.FindOne(ctx, bson.M{"user_id1": id1, "user_id2": id2}).Err()
	if err == nil {
		return StatusFriends, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return "", apperr.Transient(err)
	}

	err = s.requests.FindOne(ctx, bson.M{
		"from_user_id": actingUser,
		"to_user_id":   other,
		"status":       models.RequestPending,
	}).Err()
	if err == nil {
		return StatusPending, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return "", apperr.Transient(err)
	}

	err = s.requests.FindOne(ctx, bson.M{
		"from_user_id": other,
		"to_user_id":   actingUser,
		"status":       models.RequestPending,
	}).Err()
	if err == nil {
		return StatusReceived, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return "", apperr.Transient(err)
	}
	return StatusNone, nil
}

func (s *Store) friendshipsOf(ctx context.Context, user primitive.ObjectID) ([]models.Friendship, error) {
	var rows []models.Friendship
	for _, filter := range []bson.M{{"user_id1": user}, {"user_id2": user}} {
		cur, err := s.friendships.Find(ctx, filter)
		if err != nil {
			return nil, apperr.Transient(err)
		}
		var part []models.Friendship
		if err := cur.All(ctx, &part); err != nil {
			return nil, apperr.Transient(err)
		}
		rows = append(rows, part...)
	}
	return rows, nil
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
