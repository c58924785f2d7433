package testutil

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/blokhub/blokhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates a test user with a unique subject id.
func (f *Fixtures) CreateUser(ctx context.Context, name, email string) models.User {
	f.t.Helper()

	user := models.User{
		ID:        primitive.NewObjectID(),
		SubjectID: fmt.Sprintf("test-subject-%s", uuid.NewString()),
		Name:      name,
		NameCI:    text.Fold(name),
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateGroup creates a test group and an admin membership for the creator.
func (f *Fixtures) CreateGroup(ctx context.Context, name string, creator models.User) models.Group {
	f.t.Helper()

	now := time.Now().UTC()
	group := models.Group{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		CreatedBy: creator.ID,
		CreatedAt: now,
	}
	if _, err := f.db.Collection("groups").InsertOne(ctx, group); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}

	membership := models.GroupMembership{
		ID:       primitive.NewObjectID(),
		GroupID:  group.ID,
		UserID:   creator.ID,
		Role:     models.RoleAdmin,
		JoinedAt: now,
	}
	if _, err := f.db.Collection("group_memberships").InsertOne(ctx, membership); err != nil {
		f.t.Fatalf("failed to create creator membership: %v", err)
	}

	return group
}

// CreateEvent creates a test event owned by creator.
func (f *Fixtures) CreateEvent(ctx context.Context, title string, creator models.User, start, end time.Time) models.Event {
	f.t.Helper()

	ev := models.Event{
		ID:        primitive.NewObjectID(),
		Title:     title,
		StartTime: start,
		EndTime:   end,
		CreatedBy: creator.ID,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("events").InsertOne(ctx, ev); err != nil {
		f.t.Fatalf("failed to create test event: %v", err)
	}
	return ev
}

// CreateFriendship inserts a canonical friendship row between two users.
func (f *Fixtures) CreateFriendship(ctx context.Context, a, b models.User) models.Friendship {
	f.t.Helper()

	u1, u2 := models.CanonicalPair(a.ID, b.ID)
	fr := models.Friendship{
		ID:        primitive.NewObjectID(),
		UserID1:   u1,
		UserID2:   u2,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("friendships").InsertOne(ctx, fr); err != nil {
		f.t.Fatalf("failed to create test friendship: %v", err)
	}
	return fr
}

// CreatePendingRequest inserts a pending friend request from one user to
// another.
func (f *Fixtures) CreatePendingRequest(ctx context.Context, from, to models.User) models.FriendRequest {
	f.t.Helper()

	req := models.FriendRequest{
		ID:         primitive.NewObjectID(),
		FromUserID: from.ID,
		ToUserID:   to.ID,
		Status:     models.RequestPending,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := f.db.Collection("friend_requests").InsertOne(ctx, req); err != nil {
		f.t.Fatalf("failed to create test friend request: %v", err)
	}
	return req
}
