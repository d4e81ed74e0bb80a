// models/gate_event.go
package models

import "time"

// GateEvent 记录闸机操作的审计信息：每次 verify / deny 各写一行。
type GateAction string

const (
	GateActionVerify GateAction = "VERIFY"
	GateActionDeny   GateAction = "DENY"
)

type GateEvent struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID  string     `gorm:"type:uuid;index;not null" json:"requestId"`
	GuardID    string     `gorm:"type:uuid;not null" json:"guardId"`
	GuardEmail string     `json:"guardEmail"`
	Action     GateAction `gorm:"size:12;not null" json:"action"`
	Comment    *string    `json:"comment,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func (GateEvent) TableName() string { return "agp_gate_events" }
