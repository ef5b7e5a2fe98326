package domain

import "time"

const (
	ConversationActive    = "active"
	ConversationExpired   = "expired"
	ConversationEscalated = "escalated"
)

// Conversation is a bounded dialogue episode within a session. A stale
// conversation is never updated to expired by a sweep; it simply stops
// being selected once last_message_at falls outside the timeout.
type Conversation struct {
	ID               string     `gorm:"primaryKey" json:"id"`
	SessionID        string     `gorm:"index;not null" json:"session_id"`
	Status           string     `gorm:"not null;default:active" json:"status"`
	Summary          string     `gorm:"type:text" json:"summary"`
	SummaryUpdatedAt *time.Time `json:"summary_updated_at,omitempty"`
	MessageCount     int        `gorm:"not null;default:0" json:"message_count"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastMessageAt    time.Time  `json:"last_message_at"`
}

func (Conversation) TableName() string { return "conversations" }

func (c Conversation) IsActive() bool { return c.Status == ConversationActive }
