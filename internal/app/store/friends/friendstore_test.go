package friendstore_test

import (
	"errors"
	"sync"
	"testing"

	friendstore "github.com/blokhub/blokhub/internal/app/store/friends"
	"github.com/blokhub/blokhub/internal/app/system/apperr"
	"github.com/blokhub/blokhub/internal/app/system/txn"
	"github.com/blokhub/blokhub/internal/domain/models"
	"github.com/blokhub/blokhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func TestSendRequest_CreatesPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	alice := f.CreateUser(ctx, "Alice", "alice@test.com")
	bob := f.CreateUser(ctx, "Bob", "bob@test.com")

	store := friendstore.New(db, zap.NewNop())

	req, err := store.SendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	if req.Status != models.RequestPending {
		t.Errorf("status: got %q, want %q", req.Status, models.RequestPending)
	}
	if req.FromUserID != alice.ID || req.ToUserID != bob.ID {
		t.Errorf("request pair: got (%s, %s), want (%s, %s)",
			req.FromUserID.Hex(), req.ToUserID.Hex(), alice.ID.Hex(), bob.ID.Hex())
	}
}

func TestSendRequest_Self(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	alice := f.CreateUser(ctx, "Alice", "alice@test.com")

	store := friendstore.New(db, zap.NewNop())

	_, err := store.SendRequest(ctx, alice.ID, alice.ID)
	if !errors.Is(err, friendstore.ErrSelfRequest) {
		t.Errorf("expected ErrSelfRequest, got %v", err)
	}
}

func TestSendRequest_UnknownRecipient(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	alice := f.CreateUser(ctx, "Alice", "alice@test.com")

	store := friendstore.New(db, zap.NewNop())

	_, err := store.SendRequest(ctx, alice.ID, primitive.NewObjectID())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSendRequest_Duplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	alice := f.CreateUser(ctx, "Alice", "alice@test.com")
	bob := f.CreateUser(ctx, "Bob", "bob@test.com")

	store := friendstore.New(db, zap.NewNop())

	if _, err := store.SendRequest(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("first SendRequest failed: %v", err)
	}
	_, err := store.SendRequest(ctx, alice.ID, bob.ID)
	if !errors.Is(err, apperr.ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got %v", err)
	}
}

func TestSendRequest_BothDirectionsAllowed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	alice := f.CreateUser(ctx, "Alice", "alice@test.com")
	bob := f.CreateUser(ctx, "Bob", "bob@test.com")

	store := friendstore.New(db, zap.NewNop())

	if _, err := store.SendRequest(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("alice->bob failed: %v", err)
	}
	// The reverse direction is an independent ordered pair.
	if _, err := store.SendRequest(ctx, bob.ID, alice.ID); err != nil {
		t.Fatalf("bob->alice failed: %v", err)
	}

	n, err := db.Collection("friend_requests").CountDocuments(ctx, bson.M{"status": models.RequestPending})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("pending rows: got %d, want 2", n)
	}
}

func TestSendRequest_ConcurrentLeavesOnePending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	alice := f.CreateUser(ctx, "Alice", "alice@test.com")
	bob := f.CreateUser(ctx, "Bob", "bob@test.com")

	store := friendstore.New(db, zap.NewNop())

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.SendRequest(ctx, alice.ID, bob.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, apperr.ErrDuplicateRequest) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("successful sends: got %d, want 1", succeeded)
	}

	count, err := db.Collection("friend_requests").CountDocuments(ctx, bson.M{
		"from_user_id": alice.ID,
		"to_user_id":   bob.ID,
		"status":       models.RequestPending,
	})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("pending rows after concurrent sends: got %d, want 1", count)
	}
}

func TestAcceptRequest_CanonicalOrderBothDirections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	store := friendstore.New(db, zap.NewNop())

	// Run the workflow in both directions; the stored pair must come out
	// canonically ordered either way.
	for _, reversed := range []bool{false, true} {
		a := f.CreateUser(ctx, "Sender", "sender@test.com")
		b := f.CreateUser(ctx, "Recipient", "recipient@test.com")
		from, to := a, b
		if reversed {
			from, to = b, a
		}

		req, err := store.SendRequest(ctx, from.ID, to.ID)
		if err != nil {
			t.Fatalf("SendRequest failed: %v", err)
		}
		if err := store.AcceptRequest(ctx, req.ID, to.ID); err != nil {
			t.Fatalf("AcceptRequest failed: %v", err)
		}

		id1, id2 := models.CanonicalPair(a.ID, b.ID)
		var fr models.Friendship
		err = db.Collection("friendships").FindOne(ctx, bson.M{"user_id1": id1, "user_id2": id2}).Decode(&fr)
		if err != nil {
			t.Fatalf("canonical friendship row not found (reversed=%v): %v", reversed, err)
		}
	}
}

func TestAcceptRequest_OnlyRecipient(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	alice := f.CreateUser(ctx, "Alice", "alice@test.com")
	bob := f.CreateUser(ctx, "Bob", "bob@test.com")

	store := friendstore.New(db, zap.NewNop())

	req, err := store.SendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}

	if err := store.AcceptRequest(ctx, req.ID, alice.ID); !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Errorf("sender accepting: expected ErrNotAuthorized, got %v", err)
	}
	if err := store.AcceptRequest(ctx, primitive.NewObjectID(), bob.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown request: expected ErrNotFound, got %v", err)
	}
}

func TestAcceptRequest_DualPendingBothAccepted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	alice := f.CreateUser(ctx, "Alice", "alice@test.com")
	bob := f.CreateUser(ctx, "Bob", "bob@test.com")

	store := friendstore.New(db, zap.NewNop())

	reqAB, err := store.SendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("alice->bob failed: %v", err)
	}
	reqBA, err := store.SendRequest(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("bob->alice failed: %v", err)
	}

	if err := store.AcceptRequest(ctx, reqAB.ID, bob.ID); err != nil {
		t.Fatalf("first accept failed: %v", err)
	}
	// Second accept hits the existing canonical row; it must not fail.
	if err := store.AcceptRequest(ctx, reqBA.ID, alice.ID); err != nil {
		t.Fatalf("second accept failed: %v", err)
	}

	n, err := db.Collection("friendships").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("friendship rows: got %d, want 1", n)
	}
}

// requireTransactions skips the test on deployments that cannot run
// multi-document transactions (standalone servers), where txn.Run takes
// the sequential path and the behavior under test does not apply.
func requireTransactions(t *testing.T, db *mongo.Database) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sess, err := db.Client().StartSession()
	if err != nil {
		t.Skipf("transactions unavailable: %v", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		err := db.Collection("friendships").FindOne(sc, bson.M{"_id": primitive.NewObjectID()}).Err()
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	})
	if err != nil {
		if txn.IsNotSupported(err) {
			t.Skipf("transactions unavailable: %v", err)
		}
		t.Fatalf("transaction check failed: %v", err)
	}
}

// A write error inside a server-side transaction aborts the whole
// transaction, so accepting against an existing friendship row must not
// reach the unique index at all. Repeat and dual-direction accepts have
// to succeed on a replica set just as they do on a standalone.
func TestAcceptRequest_RepeatAcceptUnderTransactions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	requireTransactions(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	alice := f.CreateUser(ctx, "Alice", "alice@test.com")
	bob := f.CreateUser(ctx, "Bob", "bob@test.com")

	store := friendstore.New(db, zap.NewNop())

	reqAB, err := store.SendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("alice->bob failed: %v", err)
	}
	reqBA, err := store.SendRequest(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("bob->alice failed: %v", err)
	}

	if err := store.AcceptRequest(ctx, reqAB.ID, bob.ID); err != nil {
		t.Fatalf("first accept failed: %v", err)
	}
	// A double-click on accept replays the same request.
	if err := store.AcceptRequest(ctx, reqAB.ID, bob.ID); err != nil {
		t.Fatalf("repeat accept failed: %v", err)
	}
	// And the reverse-direction pending request accepts cleanly too.
	if err := store.AcceptRequest(ctx, reqBA.ID, alice.ID); err != nil {
		t.Fatalf("reverse accept failed: %v", err)
	}

	n, err := db.Collection("friendships").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("friendship rows: got %d, want 1", n)
	}

	var reversed models.FriendRequest
	if err := db.Collection("friend_requests").FindOne(ctx, bson.M{"_id": reqBA.ID}).Decode(&reversed); err != nil {
		t.Fatalf("request lookup failed: %v", err)
	}
	if reversed.Status != models.RequestAccepted {
		t.Errorf("reverse request status: got %q, want accepted", reversed.Status)
	}
}

func TestCancelRequest_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	alice := f.CreateUser(ctx, "Alice", "alice@test.com")
	bob := f.CreateUser(ctx, "Bob", "bob@test.com")

	store := friendstore.New(db, zap.NewNop())

	if _, err := store.SendRequest(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	if err := store.CancelRequest(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}
	if err := store.CancelRequest(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("second cancel should be a no-op, got %v", err)
	}

	pending, err := store.ListPendingReceived(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListPendingReceived failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending received after cancel: got %d entries, want 0", len(pending))
	}

	n, err := db.Collection("friendships").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("friendship rows after cancel: got %d, want 0", n)
	}
}

func TestIgnoreRequest(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	alice := f.CreateUser(ctx, "Alice", "alice@test.com")
	bob := f.CreateUser(ctx, "Bob", "bob@test.com")

	store := friendstore.New(db, zap.NewNop())

	req, err := store.SendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}

	if err := store.IgnoreRequest(ctx, req.ID, alice.ID); !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Errorf("sender ignoring: expected ErrNotAuthorized, got %v", err)
	}
	if err := store.IgnoreRequest(ctx, req.ID, bob.ID); err != nil {
		t.Fatalf("IgnoreRequest failed: %v", err)
	}

	// The row survives as history but is no longer pending.
	var got models.FriendRequest
	if err := db.Collection("friend_requests").FindOne(ctx, bson.M{"_id": req.ID}).Decode(&got); err != nil {
		t.Fatalf("request row missing after ignore: %v", err)
	}
	if got.Status != models.RequestIgnored {
		t.Errorf("status: got %q, want %q", got.Status, models.RequestIgnored)
	}

	n, err := db.Collection("friendships").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("friendship rows after ignore: got %d, want 0", n)
	}
}

func TestListFriends(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	alice := f.CreateUser(ctx, "Alice", "alice@test.com")
	bob := f.CreateUser(ctx, "Bob", "bob@test.com")
	carol := f.CreateUser(ctx, "Carol", "carol@test.com")

	f.CreateFriendship(ctx, alice, bob)
	f.CreateFriendship(ctx, alice, carol)
	f.CreateFriendship(ctx, bob, carol)

	store := friendstore.New(db, zap.NewNop())

	entries, err := store.ListFriends(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListFriends failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(entries))
	}
	seen := map[primitive.ObjectID]bool{}
	for _, e := range entries {
		if e.User.ID == alice.ID {
			t.Error("ListFriends must never include the caller")
		}
		if seen[e.User.ID] {
			t.Errorf("duplicate entry for %s", e.User.ID.Hex())
		}
		seen[e.User.ID] = true
	}
	if !seen[bob.ID] || !seen[carol.ID] {
		t.Errorf("expected bob and carol, got %v", seen)
	}
}

func TestListFriends_FiltersDanglingUsers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	alice := f.CreateUser(ctx, "Alice", "alice@test.com")
	bob := f.CreateUser(ctx, "Bob", "bob@test.com")
	ghost := f.CreateUser(ctx, "Ghost", "ghost@test.com")

	f.CreateFriendship(ctx, alice, bob)
	f.CreateFriendship(ctx, alice, ghost)

	if _, err := db.Collection("users").DeleteOne(ctx, bson.M{"_id": ghost.ID}); err != nil {
		t.Fatalf("failed to delete ghost user: %v", err)
	}

	store := friendstore.New(db, zap.NewNop())

	entries, err := store.ListFriends(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListFriends failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries: got %d, want 1 (dangling reference filtered)", len(entries))
	}
	if entries[0].User.ID != bob.ID {
		t.Errorf("expected bob, got %s", entries[0].User.ID.Hex())
	}
}

func TestListPendingReceived(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	alice := f.CreateUser(ctx, "Alice", "alice@test.com")
	bob := f.CreateUser(ctx, "Bob", "bob@test.com")
	carol := f.CreateUser(ctx, "Carol", "carol@test.com")

	store := friendstore.New(db, zap.NewNop())

	if _, err := store.SendRequest(ctx, alice.ID, carol.ID); err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	if _, err := store.SendRequest(ctx, bob.ID, carol.ID); err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	// Outgoing from carol must not show up in her received list.
	if _, err := store.SendRequest(ctx, carol.ID, alice.ID); err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}

	entries, err := store.ListPendingReceived(ctx, carol.ID)
	if err != nil {
		t.Fatalf("ListPendingReceived failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.User.ID != alice.ID && e.User.ID != bob.ID {
			t.Errorf("unexpected sender %s", e.User.ID.Hex())
		}
	}
}

func TestStatusBetween_Precedence(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	store := friendstore.New(db, zap.NewNop())

	alice := f.CreateUser(ctx, "Alice", "alice@test.com")
	bob := f.CreateUser(ctx, "Bob", "bob@test.com")

	status, err := store.StatusBetween(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("StatusBetween failed: %v", err)
	}
	if status != friendstore.StatusNone {
		t.Errorf("no relation: got %q, want %q", status, friendstore.StatusNone)
	}

	if _, err := store.SendRequest(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	status, _ = store.StatusBetween(ctx, alice.ID, bob.ID)
	if status != friendstore.StatusPending {
		t.Errorf("searcher's outgoing pending: got %q, want %q", status, friendstore.StatusPending)
	}
	status, _ = store.StatusBetween(ctx, bob.ID, alice.ID)
	if status != friendstore.StatusReceived {
		t.Errorf("incoming pending: got %q, want %q", status, friendstore.StatusReceived)
	}

	// A friendship outranks any request history.
	f.CreateFriendship(ctx, alice, bob)
	status, _ = store.StatusBetween(ctx, alice.ID, bob.ID)
	if status != friendstore.StatusFriends {
		t.Errorf("with friendship row: got %q, want %q", status, friendstore.StatusFriends)
	}
}

func TestStatusBetween_IgnoredHistoryIsNone(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	store := friendstore.New(db, zap.NewNop())

	alice := f.CreateUser(ctx, "Alice", "alice@test.com")
	bob := f.CreateUser(ctx, "Bob", "bob@test.com")

	req, err := store.SendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	if err := store.IgnoreRequest(ctx, req.ID, bob.ID); err != nil {
		t.Fatalf("IgnoreRequest failed: %v", err)
	}

	status, err := store.StatusBetween(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("StatusBetween failed: %v", err)
	}
	if status != friendstore.StatusNone {
		t.Errorf("ignored history: got %q, want %q", status, friendstore.StatusNone)
	}
}
