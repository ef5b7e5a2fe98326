package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"schedbot/internal/domain"
)

// Open opens (or creates) the SQLite database at path, migrates the
// schema and returns a fully wired Store.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite at %s: %w", path, err)
	}
	return NewGormStore(db)
}

// NewGormStore wires a Store over an existing gorm connection. Exposed
// separately so tests can use an in-memory database.
func NewGormStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(
		&domain.Business{},
		&domain.Branch{},
		&domain.Category{},
		&domain.Service{},
		&domain.Resource{},
		&domain.ResourceService{},
		&domain.User{},
		&domain.Session{},
		&domain.Conversation{},
		&domain.Message{},
		&domain.Appointment{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{
		db:            db,
		Businesses:    gormBusinesses{db},
		Branches:      gormBranches{db},
		Categories:    gormCategories{db},
		Services:      gormServices{db},
		Resources:     gormResources{db},
		Users:         gormUsers{db},
		Sessions:      gormSessions{db},
		Conversations: gormConversations{db},
		Messages:      gormMessages{db},
		Appointments:  gormAppointments{db},
	}, nil
}

// Seed inserts rows directly through the underlying connection. The
// repositories deliberately expose no catalog writes; provisioning and
// tests go through here.
func (s *Store) Seed(values ...interface{}) error {
	for _, v := range values {
		if err := s.db.Create(v).Error; err != nil {
			return fmt.Errorf("failed to seed %T: %w", v, err)
		}
	}
	return nil
}

func one[T any](tx *gorm.DB) (*T, error) {
	var out T
	if err := tx.First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

type gormBusinesses struct{ db *gorm.DB }

func (r gormBusinesses) Get(ctx context.Context, id string) (*domain.Business, error) {
	return one[domain.Business](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r gormBusinesses) ByInboundAddress(ctx context.Context, address string) (*domain.Business, error) {
	return one[domain.Business](r.db.WithContext(ctx).Where("inbound_address = ? AND is_active = ?", address, true))
}

type gormBranches struct{ db *gorm.DB }

func (r gormBranches) Get(ctx context.Context, id string) (*domain.Branch, error) {
	return one[domain.Branch](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r gormBranches) ByBusiness(ctx context.Context, businessID string) ([]domain.Branch, error) {
	var out []domain.Branch
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND is_active = ?", businessID, true).
		Order("name").Find(&out).Error
	return out, err
}

type gormCategories struct{ db *gorm.DB }

func (r gormCategories) ByBranch(ctx context.Context, branchID string) ([]domain.Category, error) {
	var out []domain.Category
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND is_active = ?", branchID, true).
		Order("display_order, name").Find(&out).Error
	return out, err
}

type gormServices struct{ db *gorm.DB }

func (r gormServices) Get(ctx context.Context, id string) (*domain.Service, error) {
	return one[domain.Service](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r gormServices) ByBranch(ctx context.Context, branchID string) ([]domain.Service, error) {
	var out []domain.Service
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND is_active = ?", branchID, true).
		Order("name").Find(&out).Error
	return out, err
}

func (r gormServices) ByCategory(ctx context.Context, categoryID string) ([]domain.Service, error) {
	var out []domain.Service
	err := r.db.WithContext(ctx).
		Where("category_id = ? AND is_active = ?", categoryID, true).
		Order("name").Find(&out).Error
	return out, err
}

func (r gormServices) FindByName(ctx context.Context, branchID, name string) (*domain.Service, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(name)) + "%"
	return one[domain.Service](r.db.WithContext(ctx).
		Where("branch_id = ? AND is_active = ? AND lower(name) LIKE ?", branchID, true, pattern))
}

type gormResources struct{ db *gorm.DB }

func (r gormResources) Get(ctx context.Context, id string) (*domain.Resource, error) {
	return one[domain.Resource](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r gormResources) ByBranch(ctx context.Context, branchID string) ([]domain.Resource, error) {
	var out []domain.Resource
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND is_active = ?", branchID, true).
		Order("name").Find(&out).Error
	return out, err
}

func (r gormResources) ForService(ctx context.Context, serviceID string) ([]domain.Resource, error) {
	var out []domain.Resource
	err := r.db.WithContext(ctx).
		Joins("JOIN resource_services rs ON rs.resource_id = resources.id").
		Where("rs.service_id = ? AND resources.is_active = ?", serviceID, true).
		Order("resources.name").Find(&out).Error
	return out, err
}

func (r gormResources) FindByName(ctx context.Context, branchID, name string) (*domain.Resource, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(name)) + "%"
	return one[domain.Resource](r.db.WithContext(ctx).
		Where("branch_id = ? AND is_active = ? AND lower(name) LIKE ?", branchID, true, pattern))
}

type gormUsers struct{ db *gorm.DB }

func (r gormUsers) Get(ctx context.Context, id string) (*domain.User, error) {
	return one[domain.User](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r gormUsers) ByPhone(ctx context.Context, businessID, phone string) (*domain.User, error) {
	return one[domain.User](r.db.WithContext(ctx).Where("business_id = ? AND phone_number = ?", businessID, phone))
}

func (r gormUsers) ByIdentification(ctx context.Context, businessID, idNumber string) (*domain.User, error) {
	return one[domain.User](r.db.WithContext(ctx).Where("business_id = ? AND identification_number = ?", businessID, idNumber))
}

func (r gormUsers) Create(ctx context.Context, u domain.User) (domain.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.LastInteractionAt = time.Now()
	if err := r.db.WithContext(ctx).Create(&u).Error; err != nil {
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

type gormSessions struct{ db *gorm.DB }

func (r gormSessions) GetOrCreate(ctx context.Context, businessID, userPhone string) (domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND user_phone = ?", businessID, userPhone).
		First(&s).Error
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Session{}, err
	}
	s = domain.Session{
		ID:             uuid.NewString(),
		BusinessID:     businessID,
		UserPhone:      userPhone,
		LastActivityAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&s).Error; err != nil {
		return domain.Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

func (r gormSessions) LinkUser(ctx context.Context, sessionID, userID string) error {
	return r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ?", sessionID).Update("user_id", userID).Error
}

func (r gormSessions) UpdateProfile(ctx context.Context, sessionID string, profile []byte) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ?", sessionID).
		Updates(map[string]any{"memory_profile": profile, "profile_updated_at": now}).Error
}

func (r gormSessions) Touch(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ?", sessionID).Update("last_activity_at", time.Now()).Error
}

type gormConversations struct{ db *gorm.DB }

func (r gormConversations) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	return one[domain.Conversation](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r gormConversations) Active(ctx context.Context, sessionID string, timeout time.Duration) (*domain.Conversation, error) {
	cutoff := time.Now().Add(-timeout)
	return one[domain.Conversation](r.db.WithContext(ctx).
		Where("session_id = ? AND status = ? AND last_message_at >= ?", sessionID, domain.ConversationActive, cutoff).
		Order("last_message_at DESC"))
}

func (r gormConversations) Create(ctx context.Context, sessionID string) (domain.Conversation, error) {
	c := domain.Conversation{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		Status:        domain.ConversationActive,
		LastMessageAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
		return domain.Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}
	return c, nil
}

func (r gormConversations) UpdateSummary(ctx context.Context, id, summary string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{"summary": summary, "summary_updated_at": now}).Error
}

type gormMessages struct{ db *gorm.DB }

func (r gormMessages) Append(ctx context.Context, conversationID, role, content string) (domain.Message, error) {
	m := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Conversation{}).
			Where("id = ?", conversationID).
			Updates(map[string]any{
				"message_count":   gorm.Expr("message_count + 1"),
				"last_message_at": now,
			}).Error
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to append message: %w", err)
	}
	return m, nil
}

func (r gormMessages) Recent(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if limit > 0 {
		// Last N rows, returned chronologically.
		err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error
		if err != nil {
			return nil, err
		}
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		return out, nil
	}
	err := q.Order("created_at, id").Find(&out).Error
	return out, err
}

type gormAppointments struct{ db *gorm.DB }

func (r gormAppointments) Get(ctx context.Context, id string) (*domain.Appointment, error) {
	return one[domain.Appointment](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r gormAppointments) Create(ctx context.Context, a domain.Appointment) (domain.Appointment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = domain.AppointmentScheduled
	}
	if err := r.db.WithContext(ctx).Create(&a).Error; err != nil {
		return domain.Appointment{}, fmt.Errorf("failed to create appointment: %w", err)
	}
	return a, nil
}

func (r gormAppointments) Cancel(ctx context.Context, id, reason, by string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&domain.Appointment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":              domain.AppointmentCancelled,
			"cancellation_reason": reason,
			"cancelled_by":        by,
			"cancelled_at":        now,
		}).Error
}

func (r gormAppointments) Reschedule(ctx context.Context, id, date, startTime, endTime, externalEventID string) error {
	return r.db.WithContext(ctx).Model(&domain.Appointment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"date":              date,
			"start_time":        startTime,
			"end_time":          endTime,
			"external_event_id": externalEventID,
		}).Error
}

func (r gormAppointments) ScheduledByResourceDate(ctx context.Context, resourceID, date string) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := r.db.WithContext(ctx).
		Where("resource_id = ? AND date = ? AND status = ?", resourceID, date, domain.AppointmentScheduled).
		Order("start_time").Find(&out).Error
	return out, err
}

func (r gormAppointments) ByUser(ctx context.Context, userID string) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC, start_time DESC").Find(&out).Error
	return out, err
}

func (r gormAppointments) UpcomingByUser(ctx context.Context, userID, fromDate string) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND status = ?", userID, fromDate, domain.AppointmentScheduled).
		Order("date, start_time").Find(&out).Error
	return out, err
}

func (r gormAppointments) PendingReminders(ctx context.Context, date string) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := r.db.WithContext(ctx).
		Where("date = ? AND status = ? AND reminder_sent = ?", date, domain.AppointmentScheduled, false).
		Order("start_time").Find(&out).Error
	return out, err
}

func (r gormAppointments) MarkReminderSent(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&domain.Appointment{}).
		Where("id = ?", id).
		Updates(map[string]any{"reminder_sent": true, "reminder_sent_at": now}).Error
}
