package domain

import "time"

// Business is a company using the scheduling assistant. InboundAddress is
// the messaging-channel address customers write to; it resolves the
// business identity for every inbound message.
type Business struct {
	ID                string    `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"not null" json:"name"`
	OwnerName         string    `json:"owner_name"`
	Email             string    `json:"email"`
	BotName           string    `gorm:"default:Assistant" json:"bot_name"`
	GreetingMessage   string    `gorm:"type:text" json:"greeting_message"`
	InboundAddress    string    `gorm:"uniqueIndex" json:"inbound_address"`
	BookingWindowDays int       `gorm:"default:30" json:"booking_window_days"`
	IsActive          bool      `gorm:"default:true" json:"is_active"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Business) TableName() string { return "businesses" }

// Branch is one physical location of a business.
type Branch struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	BusinessID string    `gorm:"index;not null" json:"business_id"`
	Name       string    `gorm:"not null" json:"name"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	Phone      string    `json:"phone"`
	IsActive   bool      `gorm:"default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Branch) TableName() string { return "branches" }
