package domain

import "time"

// ProcessedUpdate records an inbound update id that has already been handled,
// so webhook redeliveries of the same update are acknowledged without being
// executed twice. Rows expire after ExpiresAt and are purged periodically.
type ProcessedUpdate struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Source    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_update_source_id,priority:1"`
	UpdateID  int64     `gorm:"not null;uniqueIndex:ux_update_source_id,priority:2"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (ProcessedUpdate) TableName() string { return "processed_updates" }
