package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"schedbot/internal/domain"
	"schedbot/internal/llm"
	"schedbot/internal/storage"
)

var findOrCreateUserTool = llm.Tool{
	Type: "function",
	Function: llm.Function{
		Name:        "find_or_create_user",
		Description: "Look the customer up by their identification number, registering them when unknown. Must be called before booking anything.",
		Parameters: objectSchema(map[string]interface{}{
			"identification_number": strProp("The customer's ID document number."),
			"full_name":             strProp("The customer's full name. Required only when registering someone new."),
			"email":                 strProp("The customer's email, optional."),
		}, "identification_number"),
	},
}

var userInfoTool = llm.Tool{
	Type: "function",
	Function: llm.Function{
		Name:        "get_user_info",
		Description: "Get the registered details and appointment history of the customer in this conversation, or of a customer looked up by identification number.",
		Parameters: objectSchema(map[string]interface{}{
			"identification_number": strProp("ID document number to look up. Omit to use the customer already identified in this conversation."),
		}),
	},
}

type userView struct {
	FullName             string `json:"full_name"`
	IdentificationNumber string `json:"identification_number"`
	PhoneNumber          string `json:"phone_number,omitempty"`
	Email                string `json:"email,omitempty"`
	Registered           bool   `json:"newly_registered,omitempty"`
}

func (r *Registry) findOrCreateUser(ctx context.Context, scope *Scope, args Args) (any, error) {
	idNumber := args.String("identification_number")
	if idNumber == "" {
		return nil, fmt.Errorf("identification_number is required")
	}

	user, err := r.store.Users.ByIdentification(ctx, scope.BusinessID, idNumber)
	switch {
	case err == nil:
		scope.UserID = user.ID
		if err := r.store.Sessions.LinkUser(ctx, scope.SessionID, user.ID); err != nil {
			return nil, fmt.Errorf("could not link user to session: %w", err)
		}
		return userView{
			FullName:             user.FullName,
			IdentificationNumber: user.IdentificationNumber,
			PhoneNumber:          user.PhoneNumber,
			Email:                user.Email,
		}, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("could not look up customer: %w", err)
	}

	fullName := args.String("full_name")
	if fullName == "" {
		return "No customer found with that identification number. Ask for their full name to register them.", nil
	}
	created, err := r.store.Users.Create(ctx, domain.User{
		ID:                   uuid.NewString(),
		BusinessID:           scope.BusinessID,
		PhoneNumber:          scope.Phone,
		IdentificationNumber: idNumber,
		FullName:             fullName,
		Email:                args.String("email"),
		LastInteractionAt:    time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("could not register customer: %w", err)
	}
	scope.UserID = created.ID
	if err := r.store.Sessions.LinkUser(ctx, scope.SessionID, created.ID); err != nil {
		return nil, fmt.Errorf("could not link user to session: %w", err)
	}
	return userView{
		FullName:             created.FullName,
		IdentificationNumber: created.IdentificationNumber,
		PhoneNumber:          created.PhoneNumber,
		Email:                created.Email,
		Registered:           true,
	}, nil
}

func (r *Registry) getUserInfo(ctx context.Context, scope *Scope, args Args) (any, error) {
	var user *domain.User
	var err error
	if idNumber := args.String("identification_number"); idNumber != "" {
		user, err = r.store.Users.ByIdentification(ctx, scope.BusinessID, idNumber)
		if err != nil {
			return fmt.Sprintf("No customer found with identification number %s.", idNumber), nil
		}
	} else {
		if scope.UserID == "" {
			return "The customer has not identified themselves yet. Ask for their identification number.", nil
		}
		user, err = r.store.Users.Get(ctx, scope.UserID)
		if err != nil {
			return nil, fmt.Errorf("could not load customer record: %w", err)
		}
	}

	history, err := r.store.Appointments.ByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("could not load appointment history: %w", err)
	}
	total, cancelled := 0, 0
	for _, a := range history {
		total++
		if a.Status == domain.AppointmentCancelled {
			cancelled++
		}
	}
	return struct {
		userView
		TotalAppointments     int `json:"total_appointments"`
		CancelledAppointments int `json:"cancelled_appointments"`
	}{
		userView: userView{
			FullName:             user.FullName,
			IdentificationNumber: user.IdentificationNumber,
			PhoneNumber:          user.PhoneNumber,
			Email:                user.Email,
		},
		TotalAppointments:     total,
		CancelledAppointments: cancelled,
	}, nil
}
