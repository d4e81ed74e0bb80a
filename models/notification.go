// models/notification.go
package models

import "time"

const NotificationTable = "agp_notifications"

type Severity string

const (
	SeverityInfo   Severity = "INFO"
	SeverityAction Severity = "ACTION" // needs admin review (damage reports, gate issues)
)

// Notification is append-only; transitions write them inside the same
// transaction so a committed transition always has its notifications.
type Notification struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"type:uuid;index;not null" json:"userId"`
	Message   string    `gorm:"size:1000;not null" json:"message"`
	Severity  Severity  `gorm:"size:16;not null;default:'INFO'" json:"severity"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Notification) TableName() string { return NotificationTable }
