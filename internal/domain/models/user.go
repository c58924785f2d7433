// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an account synced from the external identity gateway.
//
// NOTE:
//   - SubjectID is the gateway's stable subject identifier and the only
//     link to the auth provider; it is unique across users.
//   - Friendships and memberships are never embedded on User.
//     Use the friendships / group_memberships collections.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SubjectID string             `bson:"subject_id" json:"subject_id"`
	Name      string             `bson:"name" json:"name"`
	NameCI    string             `bson:"name_ci" json:"name_ci"` // lowercase, diacritics-stripped
	Email     string             `bson:"email" json:"email"`
	AvatarURL string             `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	Bio       string             `bson:"bio,omitempty" json:"bio,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
