package tools

import (
	"context"
	"fmt"

	"schedbot/internal/booking"
	"schedbot/internal/domain"
	"schedbot/internal/llm"
)

var createAppointmentTool = llm.Tool{
	Type: "function",
	Function: llm.Function{
		Name:        "create_appointment",
		Description: "Book an appointment for the identified customer. Confirm service, staff member, date and time with the user first.",
		Parameters: objectSchema(map[string]interface{}{
			"service_name":  strProp("Name of the service to book."),
			"resource_name": strProp("Name of the staff member."),
			"date":          strProp("Date in YYYY-MM-DD format."),
			"time":          strProp("Start time in HH:MM 24-hour format."),
		}, "service_name", "resource_name", "date", "time"),
	},
}

var userAppointmentsTool = llm.Tool{
	Type: "function",
	Function: llm.Function{
		Name:        "get_user_appointments",
		Description: "List the identified customer's upcoming appointments with their booking IDs.",
		Parameters:  objectSchema(map[string]interface{}{}),
	},
}

var cancelAppointmentTool = llm.Tool{
	Type: "function",
	Function: llm.Function{
		Name:        "cancel_appointment",
		Description: "Cancel one of the customer's appointments by its booking ID. Confirm with the user before cancelling.",
		Parameters: objectSchema(map[string]interface{}{
			"appointment_id": strProp("The booking ID, from get_user_appointments."),
			"reason":         strProp("Why the user is cancelling, optional."),
		}, "appointment_id"),
	},
}

var rescheduleAppointmentTool = llm.Tool{
	Type: "function",
	Function: llm.Function{
		Name:        "reschedule_appointment",
		Description: "Move an existing appointment to a new date and time. Check availability for the new slot first.",
		Parameters: objectSchema(map[string]interface{}{
			"appointment_id": strProp("The booking ID, from get_user_appointments."),
			"date":           strProp("New date in YYYY-MM-DD format."),
			"time":           strProp("New start time in HH:MM 24-hour format."),
		}, "appointment_id", "date", "time"),
	},
}

type appointmentView struct {
	ID        string  `json:"booking_id"`
	Service   string  `json:"service"`
	Resource  string  `json:"staff"`
	Date      string  `json:"date"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	Price     float64 `json:"price"`
	Status    string  `json:"status"`
	Branch    string  `json:"branch,omitempty"`
}

func viewOf(a domain.Appointment) appointmentView {
	return appointmentView{
		ID:        a.ID,
		Service:   a.ServiceNameSnapshot,
		Resource:  a.ResourceNameSnapshot,
		Date:      a.Date,
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
		Price:     a.ServicePriceSnapshot,
		Status:    a.Status,
	}
}

func (r *Registry) createAppointment(ctx context.Context, scope *Scope, args Args) (any, error) {
	if scope.UserID == "" {
		return "The customer must identify themselves first. Call find_or_create_user with their identification number.", nil
	}
	conf, err := r.booking.Create(ctx, booking.CreateRequest{
		UserID:       scope.UserID,
		BranchID:     scope.BranchID,
		ServiceName:  args.String("service_name"),
		ResourceName: args.String("resource_name"),
		Date:         args.String("date"),
		Time:         args.String("time"),
	})
	if err != nil {
		return nil, err
	}
	scope.Booked = append(scope.Booked, conf.Appointment)

	view := viewOf(conf.Appointment)
	if conf.Branch != nil {
		view.Branch = conf.Branch.Name
	}
	return struct {
		Confirmed bool `json:"confirmed"`
		appointmentView
	}{true, view}, nil
}

func (r *Registry) getUserAppointments(ctx context.Context, scope *Scope, _ Args) (any, error) {
	if scope.UserID == "" {
		return "The customer must identify themselves first. Call find_or_create_user with their identification number.", nil
	}
	appts, err := r.booking.ListUpcoming(ctx, scope.UserID)
	if err != nil {
		return nil, fmt.Errorf("could not load appointments: %w", err)
	}
	if len(appts) == 0 {
		return "The customer has no upcoming appointments.", nil
	}
	out := make([]appointmentView, 0, len(appts))
	for _, a := range appts {
		out = append(out, viewOf(a))
	}
	return out, nil
}

func (r *Registry) cancelAppointment(ctx context.Context, scope *Scope, args Args) (any, error) {
	id := args.String("appointment_id")
	if id == "" {
		return nil, fmt.Errorf("appointment_id is required")
	}
	result, err := r.booking.Cancel(ctx, id, args.String("reason"), "user")
	if err != nil {
		return nil, err
	}
	if result.AlreadyCancelled {
		return fmt.Sprintf("That appointment (%s on %s) was already cancelled.",
			result.Appointment.ServiceNameSnapshot, result.Appointment.Date), nil
	}
	scope.Cancellations++
	return struct {
		Cancelled bool `json:"cancelled"`
		appointmentView
	}{true, viewOf(result.Appointment)}, nil
}

func (r *Registry) rescheduleAppointment(ctx context.Context, scope *Scope, args Args) (any, error) {
	id := args.String("appointment_id")
	date := args.String("date")
	startTime := args.String("time")
	if id == "" || date == "" || startTime == "" {
		return nil, fmt.Errorf("appointment_id, date and time are all required")
	}
	conf, err := r.booking.Reschedule(ctx, id, date, startTime)
	if err != nil {
		return nil, err
	}
	scope.Booked = append(scope.Booked, conf.Appointment)
	return struct {
		Rescheduled bool `json:"rescheduled"`
		appointmentView
	}{true, viewOf(conf.Appointment)}, nil
}
