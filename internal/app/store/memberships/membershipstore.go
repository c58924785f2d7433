// internal/app/store/memberships/membershipstore.go
package membershipstore

import (
	"context"
	"errors"
	"time"

	"github.com/blokhub/blokhub/internal/app/system/apperr"
	"github.com/blokhub/blokhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var errBadRole = errors.New(`role must be "admin" or "member"`)

type Store struct {
	c      *mongo.Collection
	users  *mongo.Collection
	groups *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:      db.Collection("group_memberships"),
		users:  db.Collection("users"),
		groups: db.Collection("groups"),
	}
}

// Add creates a membership after checking role validity and that both
// sides of the join exist. The existence pre-check on (group_id, user_id)
// yields the friendly error; the unique composite index settles concurrent
// adds, with IsDup mapping the race loser to the same error.
func (s *Store) Add(ctx context.Context, groupID, userID primitive.ObjectID, role string) error {
	if role != models.RoleAdmin && role != models.RoleMember {
		return errBadRole
	}

	if err := s.groups.FindOne(ctx, bson.M{"_id": groupID}).Err(); err != nil {
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

	err := s.c.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID}).Err()
	if err == nil {
		return apperr.ErrAlreadyMember
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.Transient(err)
	}

	_, err = s.c.InsertOne(ctx, models.GroupMembership{
		ID:       primitive.NewObjectID(),
		GroupID:  groupID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now().UTC(),
	})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return apperr.ErrAlreadyMember
		}
		return apperr.Transient(err)
	}
	return nil
}

// Remove deletes the membership document for (groupID, userID). Removing
// an absent membership is a no-op, so the call is idempotent. There is no
// safeguard against removing a group's last admin.
func (s *Store) Remove(ctx context.Context, groupID, userID primitive.ObjectID) error {
	if _, err := s.c.DeleteOne(ctx, bson.M{"group_id": groupID, "user_id": userID}); err != nil {
		return apperr.Transient(err)
	}
	return nil
}

// Exists checks if a membership exists for the given group and user.
func (s *Store) Exists(ctx context.Context, groupID, userID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Transient(err)
	}
	return true, nil
}

// Role returns the user's role in the group, or ErrNotFound when no
// membership row exists.
func (s *Store) Role(ctx context.Context, groupID, userID primitive.ObjectID) (string, error) {
	var m models.GroupMembership
	err := s.c.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", apperr.Transient(err)
	}
	return m.Role, nil
}

// MemberEntry is the read model for a group member row: the user's current
// snapshot annotated with role and join time.
type MemberEntry struct {
	User     models.User `json:"user"`
	Role     string      `json:"role"`
	JoinedAt time.Time   `json:"joined_at"`
}

// ListByGroup returns the members of a group. Memberships whose user has
// been deleted are filtered out of the result rather than failing it.
func (s *Store) ListByGroup(ctx context.Context, groupID primitive.ObjectID) ([]MemberEntry, error) {
	cur, err := s.c.Find(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return nil, apperr.Transient(err)
	}
	defer cur.Close(ctx)

	var memberships []models.GroupMembership
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, apperr.Transient(err)
	}

	ids := make([]primitive.ObjectID, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.UserID)
	}
	users, err := s.loadUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]MemberEntry, 0, len(memberships))
	for _, m := range memberships {
		u, ok := users[m.UserID]
		if !ok {
			continue // dangling user reference
		}
		entries = append(entries, MemberEntry{User: u, Role: m.Role, JoinedAt: m.JoinedAt})
	}
	return entries, nil
}

// GroupEntry is the read model for one of a user's groups: the group's
// current snapshot annotated with the user's role in it.
type GroupEntry struct {
	Group models.Group `json:"group"`
	Role  string       `json:"role"`
}

// ListByUser returns the groups a user belongs to. Memberships whose group
// has been deleted are filtered out.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]GroupEntry, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, apperr.Transient(err)
	}
	defer cur.Close(ctx)

	var memberships []models.GroupMembership
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, apperr.Transient(err)
	}

	ids := make([]primitive.ObjectID, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.GroupID)
	}
	groups, err := s.loadGroups(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]GroupEntry, 0, len(memberships))
	for _, m := range memberships {
		g, ok := groups[m.GroupID]
		if !ok {
			continue // dangling group reference
		}
		entries = append(entries, GroupEntry{Group: g, Role: m.Role})
	}
	return entries, nil
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

func (s *Store) loadGroups(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Group, error) {
	out := make(map[primitive.ObjectID]models.Group, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.groups.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, apperr.Transient(err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var g models.Group
		if err := cur.Decode(&g); err != nil {
			return nil, apperr.Transient(err)
		}
		out[g.ID] = g
	}
	if err := cur.Err(); err != nil {
		return nil, apperr.Transient(err)
	}
	return out, nil
}
