package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Session binds a user address (phone) to a business for the long term.
// It outlives individual conversations and carries the tier-3 memory
// profile as an opaque JSON blob.
type Session struct {
	ID               string         `gorm:"primaryKey" json:"id"`
	BusinessID       string         `gorm:"index;not null" json:"business_id"`
	UserPhone        string         `gorm:"index;not null" json:"user_phone"`
	UserID           string         `gorm:"index" json:"user_id,omitempty"`
	MemoryProfile    datatypes.JSON `json:"memory_profile,omitempty"`
	ProfileUpdatedAt *time.Time     `json:"profile_updated_at,omitempty"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	LastActivityAt   time.Time      `json:"last_activity_at"`
}

func (Session) TableName() string { return "sessions" }
