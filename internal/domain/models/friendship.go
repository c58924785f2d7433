// internal/domain/models/friendship.go
package models

import (
	"bytes"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Friendship is the single source of truth for "A and B are friends".
// The pair is stored canonically: UserID1 < UserID2 under the ObjectID
// byte order, regardless of which side sent the original request.
type Friendship struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID1   primitive.ObjectID `bson:"user_id1" json:"user_id1"`
	UserID2   primitive.ObjectID `bson:"user_id2" json:"user_id2"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// CanonicalPair orders two user ids into the canonical (UserID1, UserID2)
// form. The fixed total order is the ObjectID byte order, so the same
// unordered pair always yields one representation.
func CanonicalPair(a, b primitive.ObjectID) (primitive.ObjectID, primitive.ObjectID) {
	if bytes.Compare(a[:], b[:]) < 0 {
		return a, b
	}
	return b, a
}

// Other returns the counterpart of u in the friendship.
func (f Friendship) Other(u primitive.ObjectID) primitive.ObjectID {
	if f.UserID1 == u {
		return f.UserID2
	}
	return f.UserID1
}
