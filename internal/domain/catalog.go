package domain

import "time"

// Category groups related services within a branch.
type Category struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	BranchID     string    `gorm:"index;not null" json:"branch_id"`
	Name         string    `gorm:"not null" json:"name"`
	Description  string    `json:"description"`
	DisplayOrder int       `gorm:"default:0" json:"display_order"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Category) TableName() string { return "categories" }

// Service is a bookable offering with a price and a duration. Appointments
// snapshot these values at booking time, so editing a service never
// rewrites history.
type Service struct {
	ID              string    `gorm:"primaryKey" json:"id"`
	BranchID        string    `gorm:"index;not null" json:"branch_id"`
	CategoryID      string    `gorm:"index" json:"category_id"`
	Name            string    `gorm:"not null" json:"name"`
	Description     string    `json:"description"`
	Price           float64   `gorm:"not null" json:"price"`
	DurationMinutes int       `gorm:"not null" json:"duration_minutes"`
	IsActive        bool      `gorm:"default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Service) TableName() string { return "services" }

// Resource is a schedulable person or asset linked to an external
// calendar. Default working hours ("HH:MM") are only a degraded fallback
// when the external calendar cannot be reached.
type Resource struct {
	ID                 string    `gorm:"primaryKey" json:"id"`
	BranchID           string    `gorm:"index;not null" json:"branch_id"`
	Name               string    `gorm:"not null" json:"name"`
	ExternalCalendarID string    `json:"external_calendar_id"`
	DefaultStartTime   string    `json:"default_start_time"`
	DefaultEndTime     string    `json:"default_end_time"`
	IsActive           bool      `gorm:"default:true" json:"is_active"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Resource) TableName() string { return "resources" }

// ResourceService links a resource to a service it can perform.
type ResourceService struct {
	ResourceID string `gorm:"primaryKey" json:"resource_id"`
	ServiceID  string `gorm:"primaryKey" json:"service_id"`
}

func (ResourceService) TableName() string { return "resource_services" }
