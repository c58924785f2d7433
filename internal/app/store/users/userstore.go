// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/blokhub/blokhub/internal/app/system/apperr"
	"github.com/blokhub/blokhub/internal/app/system/htmlsanitize"
	"github.com/blokhub/blokhub/internal/app/system/identity"
	"github.com/blokhub/blokhub/internal/app/system/normalize"
	"github.com/blokhub/blokhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// placeholderName is used when the gateway supplies no display name.
const placeholderName = "Unknown"

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Transient(err)
	}
	return &u, nil
}

// GetBySubject looks up a user by the gateway subject id.
// Returns apperr.ErrNotFound when no account exists yet.
func (s *Store) GetBySubject(ctx context.Context, subject string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"subject_id": subject}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Transient(err)
	}
	return &u, nil
}

// Resolve maps an authenticated gateway identity to the internal account,
// creating it on first sight and syncing drifted profile fields otherwise.
// It performs at most one write per call: either the first-sight insert or
// a partial patch covering only the fields that changed.
//
// Two callers resolving the same subject for the first time race on the
// insert; the unique subject_id index lets exactly one win and the loser
// re-reads the winner's document.
func (s *Store) Resolve(ctx context.Context, id identity.Identity) (primitive.ObjectID, error) {
	if id.IsZero() {
		return primitive.NilObjectID, apperr.ErrUnauthenticated
	}

	name := normalize.Name(id.Name)
	if name == "" {
		name = placeholderName
	}
	email := normalize.Email(id.Email)

	var existing models.User
	err := s.c.FindOne(ctx, bson.M{"subject_id": id.Subject}).Decode(&existing)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		u := models.User{
			ID:        primitive.NewObjectID(),
			SubjectID: id.Subject,
			Name:      name,
			NameCI:    text.Fold(name),
			Email:     email,
			AvatarURL: id.PictureURL,
			CreatedAt: time.Now().UTC(),
		}
		if _, err := s.c.InsertOne(ctx, u); err != nil {
			if wafflemongo.IsDup(err) {
				// Lost the first-sight race; the winner's row is authoritative.
				var won models.User
				if err := s.c.FindOne(ctx, bson.M{"subject_id": id.Subject}).Decode(&won); err != nil {
					return primitive.NilObjectID, apperr.Transient(err)
				}
				return won.ID, nil
			}
			return primitive.NilObjectID, apperr.Transient(err)
		}
		return u.ID, nil

	case err != nil:
		return primitive.NilObjectID, apperr.Transient(err)
	}

	// Drift sync: patch only the fields the gateway reports differently.
	set := bson.M{}
	if existing.Name != name {
		set["name"] = name
		set["name_ci"] = text.Fold(name)
	}
	if existing.Email != email {
		set["email"] = email
	}
	if existing.AvatarURL != id.PictureURL {
		set["avatar_url"] = id.PictureURL
	}
	if len(set) > 0 {
		if _, err := s.c.UpdateByID(ctx, existing.ID, bson.M{"$set": set}); err != nil {
			return primitive.NilObjectID, apperr.Transient(err)
		}
	}
	return existing.ID, nil
}

// Current returns the account for the presented identity, or nil when the
// caller is anonymous or has no account yet. Pure lookup, never writes.
func (s *Store) Current(ctx context.Context, id identity.Identity) (*models.User, error) {
	if id.IsZero() {
		return nil, nil
	}
	u, err := s.GetBySubject(ctx, id.Subject)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// ProfileUpdate holds the user-editable profile fields. Nil means "leave
// unchanged"; a pointer to the empty string clears the field.
type ProfileUpdate struct {
	Name      *string
	AvatarURL *string
	Bio       *string
}

// UpdateProfile patches the user-editable fields. The bio is sanitized
// before storage since it is rendered as rich text.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) error {
	set := bson.M{}
	if upd.Name != nil {
		name := normalize.Name(*upd.Name)
		if name != "" {
			set["name"] = name
			set["name_ci"] = text.Fold(name)
		}
	}
	if upd.AvatarURL != nil {
		set["avatar_url"] = *upd.AvatarURL
	}
	if upd.Bio != nil {
		set["bio"] = htmlsanitize.Sanitize(*upd.Bio)
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

// Search finds users whose folded name or email contains the term as a
// substring, case-insensitively. An empty term matches nobody.
func (s *Store) Search(ctx context.Context, term string) ([]models.User, error) {
	term = normalize.SearchTerm(term)
	if term == "" {
		return nil, nil
	}

	// name_ci is diacritic-folded, so fold the term the same way for that
	// branch; email is stored lowercased already.
	nameRe := primitive.Regex{Pattern: regexp.QuoteMeta(text.Fold(term))}
	emailRe := primitive.Regex{Pattern: regexp.QuoteMeta(term)}
	cur, err := s.c.Find(ctx, bson.M{"$or": []bson.M{
		{"name_ci": nameRe},
		{"email": emailRe},
	}})
	if err != nil {
		return nil, apperr.Transient(err)
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, apperr.Transient(err)
	}
	return users, nil
}

// GetMany loads the users for a set of ids; missing ids are simply absent
// from the result (dangling references are the caller's concern).
func (s *Store) GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	out := make(map[primitive.ObjectID]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
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
