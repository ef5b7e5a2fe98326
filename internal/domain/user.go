package domain

import "time"

// User is an end customer of a business, identified by an ID document
// number within that business.
type User struct {
	ID                   string    `gorm:"primaryKey" json:"id"`
	BusinessID           string    `gorm:"index;not null" json:"business_id"`
	PhoneNumber          string    `gorm:"index" json:"phone_number"`
	IdentificationNumber string    `gorm:"index" json:"identification_number"`
	FullName             string    `gorm:"not null" json:"full_name"`
	Email                string    `json:"email"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	LastInteractionAt    time.Time `json:"last_interaction_at"`
}

func (User) TableName() string { return "users" }
