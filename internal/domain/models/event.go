// internal/domain/models/event.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event is a calendar entry, personal (GroupID nil) or group-scoped.
//
// NOTE:
//   - Attendees are not embedded on Event. Invitation/RSVP state lives
//     in the event_attendees collection.
type Event struct {
	ID          primitive.ObjectID  `bson:"_id" json:"id"`
	Title       string              `bson:"title" json:"title"`
	Description string              `bson:"description,omitempty" json:"description,omitempty"`
	StartTime   time.Time           `bson:"start_time" json:"start_time"`
	EndTime     time.Time           `bson:"end_time" json:"end_time"`
	CreatedBy   primitive.ObjectID  `bson:"created_by" json:"created_by"`
	GroupID     *primitive.ObjectID `bson:"group_id,omitempty" json:"group_id,omitempty"`
	IsAllDay    bool                `bson:"is_all_day" json:"is_all_day"`
	Location    string              `bson:"location,omitempty" json:"location,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
