package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"schedbot/internal/availability"
	"schedbot/internal/booking"
	"schedbot/internal/calendar"
	"schedbot/internal/storage"
)

// ListServicesParams параметры запроса каталога услуг
type ListServicesParams struct {
	BranchID string `json:"branch_id" mcp:"branch ID to list services for"`
}

// AvailableSlotsParams параметры запроса свободных окон
type AvailableSlotsParams struct {
	BranchID     string `json:"branch_id" mcp:"branch ID"`
	ServiceName  string `json:"service_name" mcp:"name of the service, partial match is fine"`
	ResourceName string `json:"resource_name" mcp:"name of the staff member"`
	Date         string `json:"date" mcp:"date in YYYY-MM-DD format"`
}

// CreateAppointmentParams параметры создания записи
type CreateAppointmentParams struct {
	UserID       string `json:"user_id" mcp:"ID of the registered customer"`
	BranchID     string `json:"branch_id" mcp:"branch ID"`
	ServiceName  string `json:"service_name" mcp:"name of the service"`
	ResourceName string `json:"resource_name" mcp:"name of the staff member"`
	Date         string `json:"date" mcp:"date in YYYY-MM-DD format"`
	Time         string `json:"time" mcp:"start time in HH:MM 24-hour format"`
}

// CancelAppointmentParams параметры отмены записи
type CancelAppointmentParams struct {
	AppointmentID string `json:"appointment_id" mcp:"the booking ID"`
	Reason        string `json:"reason,omitempty" mcp:"why the appointment is being cancelled"`
}

// UserAppointmentsParams параметры списка записей пользователя
type UserAppointmentsParams struct {
	UserID string `json:"user_id" mcp:"ID of the registered customer"`
}

// BookingMCPServer exposes the booking engine over MCP for external
// assistants and back-office tooling.
type BookingMCPServer struct {
	store    *storage.Store
	avail    *availability.Engine
	bookings *booking.Engine
}

func textResult(text string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(format string, args ...any) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("❌ "+format, args...)}},
	}
}

func jsonResult(v any) *mcp.CallToolResultFor[any] {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("failed to encode result: %v", err)
	}
	return textResult(string(data))
}

func (s *BookingMCPServer) ListServices(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[ListServicesParams]) (*mcp.CallToolResultFor[any], error) {
	services, err := s.store.Services.ByBranch(ctx, params.Arguments.BranchID)
	if err != nil {
		return errorResult("failed to list services: %v", err), nil
	}
	return jsonResult(services), nil
}

func (s *BookingMCPServer) AvailableSlots(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[AvailableSlotsParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	service, err := s.store.Services.FindByName(ctx, args.BranchID, args.ServiceName)
	if err != nil {
		return errorResult("service %q not found", args.ServiceName), nil
	}
	resource, err := s.store.Resources.FindByName(ctx, args.BranchID, args.ResourceName)
	if err != nil {
		return errorResult("resource %q not found", args.ResourceName), nil
	}
	slots, err := s.avail.AvailableSlots(ctx, *resource, args.Date, service.DurationMinutes)
	if err != nil {
		return errorResult("availability check failed: %v", err), nil
	}
	return jsonResult(map[string]any{
		"resource":        resource.Name,
		"date":            args.Date,
		"available_times": slots,
	}), nil
}

func (s *BookingMCPServer) CreateAppointment(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[CreateAppointmentParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	conf, err := s.bookings.Create(ctx, booking.CreateRequest{
		UserID:       args.UserID,
		BranchID:     args.BranchID,
		ServiceName:  args.ServiceName,
		ResourceName: args.ResourceName,
		Date:         args.Date,
		Time:         args.Time,
	})
	if err != nil {
		return errorResult("%v", err), nil
	}
	log.Printf("✅ Booked %s with %s on %s %s", conf.Service.Name, conf.Resource.Name, args.Date, args.Time)
	return jsonResult(conf.Appointment), nil
}

func (s *BookingMCPServer) CancelAppointment(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[CancelAppointmentParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	result, err := s.bookings.Cancel(ctx, args.AppointmentID, args.Reason, "staff")
	if err != nil {
		return errorResult("%v", err), nil
	}
	if result.AlreadyCancelled {
		return textResult("Appointment was already cancelled."), nil
	}
	return jsonResult(result.Appointment), nil
}

func (s *BookingMCPServer) UserAppointments(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[UserAppointmentsParams]) (*mcp.CallToolResultFor[any], error) {
	appts, err := s.bookings.ListUpcoming(ctx, params.Arguments.UserID)
	if err != nil {
		return errorResult("failed to list appointments: %v", err), nil
	}
	return jsonResult(appts), nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	ctx := context.Background()

	dbPath := getenv("DATABASE_PATH", "data/schedbot.db")
	store, err := storage.Open(dbPath)
	if err != nil {
		log.Fatalf("❌ failed to open database: %v", err)
	}

	timezone := getenv("TIMEZONE", "America/Guayaquil")
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		log.Printf("⚠️ unknown timezone %q, using UTC", timezone)
		loc = time.UTC
	}

	var cal calendar.Client = calendar.Unavailable{}
	if creds := os.Getenv("GOOGLE_CREDENTIALS_PATH"); creds != "" {
		marker := getenv("AVAILABILITY_MARKER", "DISPONIBLE")
		gc, err := calendar.NewGoogle(ctx, creds, marker, timezone)
		if err != nil {
			log.Printf("⚠️ Google Calendar unavailable, running on local schedules: %v", err)
		} else {
			cal = gc
		}
	}

	windowDays, err := strconv.Atoi(getenv("BOOKING_WINDOW_DAYS", "30"))
	if err != nil {
		windowDays = 30
	}

	avail := availability.NewEngine(cal, store.Appointments)
	bookings := booking.NewEngine(store, cal, avail, booking.Config{
		BookingWindowDays: windowDays,
		Timezone:          loc,
	})

	log.Printf("🚀 Starting Booking MCP Server")

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "schedbot-booking-mcp",
		Version: "1.0.0",
	}, nil)

	bookingServer := &BookingMCPServer{store: store, avail: avail, bookings: bookings}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_services",
		Description: "Lists the services of a branch with price and duration",
	}, bookingServer.ListServices)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_available_slots",
		Description: "Returns the open start times for a service with a staff member on a date",
	}, bookingServer.AvailableSlots)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_appointment",
		Description: "Books an appointment for a registered customer",
	}, bookingServer.CreateAppointment)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cancel_appointment",
		Description: "Cancels an appointment by its booking ID",
	}, bookingServer.CancelAppointment)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_user_appointments",
		Description: "Lists a customer's upcoming appointments",
	}, bookingServer.UserAppointments)

	log.Printf("📋 Registered 5 tools: list_services, get_available_slots, create_appointment, cancel_appointment, get_user_appointments")
	log.Printf("🔗 Starting server on stdin/stdout...")

	transport := mcp.NewStdioTransport()
	if err := server.Run(ctx, transport); err != nil {
		log.Fatalf("❌ Server failed: %v", err)
	}
}
