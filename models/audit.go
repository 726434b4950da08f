package models

import "time"

// AuditLog records every mutating action in the system. Rows are append-only
// and are also broadcast to connected event stream clients.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`
	User       string    `gorm:"size:100" json:"user,omitempty"`
	Action     string    `gorm:"size:100;not null" json:"action"`
	EntityType string    `gorm:"size:50" json:"entity_type,omitempty"`
	EntityID   string    `gorm:"size:36" json:"entity_id,omitempty"`
	Details    string    `gorm:"type:text" json:"details,omitempty"`
	IPAddress  string    `gorm:"size:50" json:"ip_address,omitempty"`
	UserAgent  string    `gorm:"size:255" json:"-"`
}
