// models/setting.go
package models

import "time"

type Setting struct {
	Key       string    `gorm:"primaryKey;size:120" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedBy string    `gorm:"type:uuid" json:"updatedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Setting) TableName() string { return "agp_settings" }
