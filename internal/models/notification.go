package models

import "time"

// Notification type constants prevent typos in emitter call sites.
const (
	NotificationTypeMateRequest  = "mate_request"
	NotificationTypeMatePromoted = "mates_promoted"
	NotificationTypeNewFollower  = "new_follower"
)

// Notification is a persisted notification addressed to a single user.
// Rows are appended best-effort by the emitter; failures never roll back
// the action that triggered them.
type Notification struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EventID     string    `gorm:"not null;index" json:"event_id"`
	RecipientID uint      `gorm:"not null;index" json:"recipient_id"`
	FromID      uint      `gorm:"not null" json:"from_id"`
	Type        string    `gorm:"type:varchar(40);not null" json:"type"`
	Message     string    `gorm:"type:text" json:"message"`
	IsRead      bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}
