package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"schedbot/internal/domain"
)

// ErrNotFound is returned when an entity does not exist. Callers that can
// recover conversationally (tool layer) translate it into a descriptive
// message instead of propagating it.
var ErrNotFound = errors.New("not found")

// Messages is the append-only conversation ledger. Append must insert the
// message and bump the conversation's message_count/last_message_at in one
// transaction. Recent returns messages in chronological order; limit <= 0
// means the full history.
type Messages interface {
	Append(ctx context.Context, conversationID, role, content string) (domain.Message, error)
	Recent(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
}

// Conversations selects and creates dialogue episodes. Active returns the
// conversation for a session only when status=active and last_message_at
// falls within the timeout; there is no background expiry, stale rows are
// simply never selected again.
type Conversations interface {
	Get(ctx context.Context, id string) (*domain.Conversation, error)
	Active(ctx context.Context, sessionID string, timeout time.Duration) (*domain.Conversation, error)
	Create(ctx context.Context, sessionID string) (domain.Conversation, error)
	UpdateSummary(ctx context.Context, id, summary string) error
}

type Sessions interface {
	GetOrCreate(ctx context.Context, businessID, userPhone string) (domain.Session, error)
	LinkUser(ctx context.Context, sessionID, userID string) error
	UpdateProfile(ctx context.Context, sessionID string, profile []byte) error
	Touch(ctx context.Context, sessionID string) error
}

type Businesses interface {
	Get(ctx context.Context, id string) (*domain.Business, error)
	ByInboundAddress(ctx context.Context, address string) (*domain.Business, error)
}

type Branches interface {
	Get(ctx context.Context, id string) (*domain.Branch, error)
	ByBusiness(ctx context.Context, businessID string) ([]domain.Branch, error)
}

type Categories interface {
	ByBranch(ctx context.Context, branchID string) ([]domain.Category, error)
}

// Services resolves catalog offerings. FindByName matches the name
// case-insensitively and partially within the branch scope.
type Services interface {
	Get(ctx context.Context, id string) (*domain.Service, error)
	ByBranch(ctx context.Context, branchID string) ([]domain.Service, error)
	ByCategory(ctx context.Context, categoryID string) ([]domain.Service, error)
	FindByName(ctx context.Context, branchID, name string) (*domain.Service, error)
}

type Resources interface {
	Get(ctx context.Context, id string) (*domain.Resource, error)
	ByBranch(ctx context.Context, branchID string) ([]domain.Resource, error)
	ForService(ctx context.Context, serviceID string) ([]domain.Resource, error)
	FindByName(ctx context.Context, branchID, name string) (*domain.Resource, error)
}

type Users interface {
	Get(ctx context.Context, id string) (*domain.User, error)
	ByPhone(ctx context.Context, businessID, phone string) (*domain.User, error)
	ByIdentification(ctx context.Context, businessID, idNumber string) (*domain.User, error)
	Create(ctx context.Context, u domain.User) (domain.User, error)
}

// Appointments never deletes rows; cancellation and rescheduling are
// updates. ScheduledByResourceDate feeds the availability fallback and the
// overlap invariant check.
type Appointments interface {
	Get(ctx context.Context, id string) (*domain.Appointment, error)
	Create(ctx context.Context, a domain.Appointment) (domain.Appointment, error)
	Cancel(ctx context.Context, id, reason, by string) error
	Reschedule(ctx context.Context, id, date, startTime, endTime, externalEventID string) error
	ScheduledByResourceDate(ctx context.Context, resourceID, date string) ([]domain.Appointment, error)
	ByUser(ctx context.Context, userID string) ([]domain.Appointment, error)
	UpcomingByUser(ctx context.Context, userID, fromDate string) ([]domain.Appointment, error)
	PendingReminders(ctx context.Context, date string) ([]domain.Appointment, error)
	MarkReminderSent(ctx context.Context, id string) error
}

// Store bundles every repository for dependency injection. It is built
// once in the entry point and passed down explicitly; nothing reaches it
// through globals.
type Store struct {
	db *gorm.DB

	Businesses    Businesses
	Branches      Branches
	Categories    Categories
	Services      Services
	Resources     Resources
	Users         Users
	Sessions      Sessions
	Conversations Conversations
	Messages      Messages
	Appointments  Appointments
}
