package domain

import "time"

const (
	AppointmentScheduled = "scheduled"
	AppointmentCancelled = "cancelled"
	AppointmentCompleted = "completed"
	AppointmentNoShow    = "no_show"
)

// Appointment is a confirmed booking. Rows are never deleted, only
// status-transitioned. Date is "2006-01-02", times are "15:04"; the
// snapshot fields freeze catalog values at booking time.
type Appointment struct {
	ID                      string     `gorm:"primaryKey" json:"id"`
	UserID                  string     `gorm:"index;not null" json:"user_id"`
	ResourceID              string     `gorm:"index;not null" json:"resource_id"`
	ServiceID               string     `gorm:"index;not null" json:"service_id"`
	BranchID                string     `gorm:"index;not null" json:"branch_id"`
	ServiceNameSnapshot     string     `gorm:"not null" json:"service_name_snapshot"`
	ServicePriceSnapshot    float64    `gorm:"not null" json:"service_price_snapshot"`
	ServiceDurationSnapshot int        `gorm:"not null" json:"service_duration_snapshot"`
	ResourceNameSnapshot    string     `gorm:"not null" json:"resource_name_snapshot"`
	Date                    string     `gorm:"index;not null" json:"date"`
	StartTime               string     `gorm:"not null" json:"start_time"`
	EndTime                 string     `gorm:"not null" json:"end_time"`
	ExternalEventID         string     `json:"external_event_id,omitempty"`
	Status                  string     `gorm:"not null;default:scheduled" json:"status"`
	CancellationReason      string     `json:"cancellation_reason,omitempty"`
	CancelledBy             string     `json:"cancelled_by,omitempty"`
	CancelledAt             *time.Time `json:"cancelled_at,omitempty"`
	ReminderSent            bool       `gorm:"default:false" json:"reminder_sent"`
	ReminderSentAt          *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt               time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Appointment) TableName() string { return "appointments" }

func (a Appointment) IsScheduled() bool { return a.Status == AppointmentScheduled }
