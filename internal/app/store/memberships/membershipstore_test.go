package membershipstore_test

import (
	"errors"
	"sync"
	"testing"

	membershipstore "github.com/blokhub/blokhub/internal/app/store/memberships"
	"github.com/blokhub/blokhub/internal/app/system/apperr"
	"github.com/blokhub/blokhub/internal/domain/models"
	"github.com/blokhub/blokhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAdd_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	carol := f.CreateUser(ctx, "Carol", "carol@test.com")
	dave := f.CreateUser(ctx, "Dave", "dave@test.com")
	group := f.CreateGroup(ctx, "Book Club", carol)

	store := membershipstore.New(db)

	if err := store.Add(ctx, group.ID, dave.ID, models.RoleMember); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	role, err := store.Role(ctx, group.ID, dave.ID)
	if err != nil {
		t.Fatalf("Role failed: %v", err)
	}
	if role != models.RoleMember {
		t.Errorf("role: got %q, want %q", role, models.RoleMember)
	}
}

func TestAdd_RejectsUnknownRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	carol := f.CreateUser(ctx, "Carol", "carol@test.com")
	dave := f.CreateUser(ctx, "Dave", "dave@test.com")
	group := f.CreateGroup(ctx, "Book Club", carol)

	store := membershipstore.New(db)

	err := store.Add(ctx, group.ID, dave.ID, "owner")
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrAlreadyMember) {
		t.Errorf("expected a validation error, got %v", err)
	}
}

func TestAdd_UnknownGroupOrUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	carol := f.CreateUser(ctx, "Carol", "carol@test.com")
	group := f.CreateGroup(ctx, "Book Club", carol)

	store := membershipstore.New(db)

	if err := store.Add(ctx, primitive.NewObjectID(), carol.ID, models.RoleMember); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown group: expected ErrNotFound, got %v", err)
	}
	if err := store.Add(ctx, group.ID, primitive.NewObjectID(), models.RoleMember); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown user: expected ErrNotFound, got %v", err)
	}
}

func TestAdd_DuplicateLeavesOneRow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	carol := f.CreateUser(ctx, "Carol", "carol@test.com")
	dave := f.CreateUser(ctx, "Dave", "dave@test.com")
	group := f.CreateGroup(ctx, "Book Club", carol)

	store := membershipstore.New(db)

	if err := store.Add(ctx, group.ID, dave.ID, models.RoleMember); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	if err := store.Add(ctx, group.ID, dave.ID, models.RoleAdmin); !errors.Is(err, apperr.ErrAlreadyMember) {
		t.Errorf("second Add: expected ErrAlreadyMember, got %v", err)
	}

	n, err := db.Collection("group_memberships").CountDocuments(ctx, bson.M{"group_id": group.ID, "user_id": dave.ID})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("membership rows: got %d, want 1", n)
	}
}

func TestAdd_ConcurrentLeavesOneRow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	carol := f.CreateUser(ctx, "Carol", "carol@test.com")
	dave := f.CreateUser(ctx, "Dave", "dave@test.com")
	group := f.CreateGroup(ctx, "Book Club", carol)

	store := membershipstore.New(db)

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Add(ctx, group.ID, dave.ID, models.RoleMember)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrAlreadyMember):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("successful adds: got %d, want 1", ok)
	}

	n, err := db.Collection("group_memberships").CountDocuments(ctx, bson.M{"group_id": group.ID, "user_id": dave.ID})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("membership rows: got %d, want 1", n)
	}
}

func TestRemove_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	carol := f.CreateUser(ctx, "Carol", "carol@test.com")
	dave := f.CreateUser(ctx, "Dave", "dave@test.com")
	group := f.CreateGroup(ctx, "Book Club", carol)

	store := membershipstore.New(db)

	if err := store.Add(ctx, group.ID, dave.ID, models.RoleMember); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := store.Remove(ctx, group.ID, dave.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := store.Remove(ctx, group.ID, dave.ID); err != nil {
		t.Errorf("repeat Remove: expected nil, got %v", err)
	}

	exists, err := store.Exists(ctx, group.ID, dave.ID)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("membership still present after Remove")
	}
}

func TestRemove_LastAdminAllowed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	carol := f.CreateUser(ctx, "Carol", "carol@test.com")
	group := f.CreateGroup(ctx, "Book Club", carol)

	store := membershipstore.New(db)

	// The creator is the sole admin; removal still succeeds.
	if err := store.Remove(ctx, group.ID, carol.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	members, err := store.ListByGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("ListByGroup failed: %v", err)
	}
	if len(members) != 0 {
		t.Errorf("members after removing last admin: got %d, want 0", len(members))
	}
}

func TestListByGroup_FiltersDanglingUsers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	carol := f.CreateUser(ctx, "Carol", "carol@test.com")
	dave := f.CreateUser(ctx, "Dave", "dave@test.com")
	group := f.CreateGroup(ctx, "Book Club", carol)

	store := membershipstore.New(db)

	if err := store.Add(ctx, group.ID, dave.ID, models.RoleMember); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := db.Collection("users").DeleteOne(ctx, bson.M{"_id": dave.ID}); err != nil {
		t.Fatalf("failed to delete user: %v", err)
	}

	members, err := store.ListByGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("ListByGroup failed: %v", err)
	}
	if len(members) != 1 || members[0].User.ID != carol.ID {
		t.Errorf("expected only the creator, got %+v", members)
	}
}

func TestListByUser_FiltersDanglingGroups(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	carol := f.CreateUser(ctx, "Carol", "carol@test.com")
	keep := f.CreateGroup(ctx, "Book Club", carol)
	gone := f.CreateGroup(ctx, "Ghost Club", carol)

	if _, err := db.Collection("groups").DeleteOne(ctx, bson.M{"_id": gone.ID}); err != nil {
		t.Fatalf("failed to delete group: %v", err)
	}

	store := membershipstore.New(db)

	groups, err := store.ListByUser(ctx, carol.ID)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(groups) != 1 || groups[0].Group.ID != keep.ID {
		t.Errorf("expected only the surviving group, got %+v", groups)
	}
}

func TestRole_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	carol := f.CreateUser(ctx, "Carol", "carol@test.com")
	dave := f.CreateUser(ctx, "Dave", "dave@test.com")
	group := f.CreateGroup(ctx, "Book Club", carol)

	store := membershipstore.New(db)

	if _, err := store.Role(ctx, group.ID, dave.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
