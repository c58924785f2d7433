// internal/domain/models/friendrequest.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Friend request statuses.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestIgnored  = "ignored"
)

// FriendRequest is workflow history for the directed pair (from, to).
// At most one *pending* document per ordered pair; terminal rows
// (accepted/ignored) accumulate and are never authoritative for
// "are these users friends" — the friendships collection is.
type FriendRequest struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FromUserID primitive.ObjectID `bson:"from_user_id" json:"from_user_id"`
	ToUserID   primitive.ObjectID `bson:"to_user_id" json:"to_user_id"`
	Status     string             `bson:"status" json:"status"` // "pending" | "accepted" | "ignored"
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}
