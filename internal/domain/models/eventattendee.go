// internal/domain/models/eventattendee.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Attendance statuses.
const (
	AttendancePending  = "pending"
	AttendanceAccepted = "accepted"
	AttendanceDeclined = "declined"
)

// ValidAttendance reports whether s is a recognized attendance status.
func ValidAttendance(s string) bool {
	return s == AttendancePending || s == AttendanceAccepted || s == AttendanceDeclined
}

// EventAttendee is the join between events and invited users.
// Exactly one document per (event_id, user_id).
type EventAttendee struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EventID primitive.ObjectID `bson:"event_id" json:"event_id"`
	UserID  primitive.ObjectID `bson:"user_id" json:"user_id"`
	Status  string             `bson:"status" json:"status"` // "pending" | "accepted" | "declined"
	AddedAt time.Time          `bson:"added_at" json:"added_at"`
}
