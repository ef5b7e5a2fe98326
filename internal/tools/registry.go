package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"schedbot/internal/availability"
	"schedbot/internal/booking"
	"schedbot/internal/domain"
	"schedbot/internal/llm"
	"schedbot/internal/storage"
)

// Scope carries the per-turn identity the model never supplies itself:
// which business and branch the conversation belongs to and who the user
// is. UserID starts empty and is filled in when find_or_create_user
// resolves the customer; Booked and Cancellations collect the turn's
// outcomes so the caller can fold them into the long-term profile.
type Scope struct {
	BusinessID string
	BranchID   string
	SessionID  string
	UserID     string
	Phone      string

	Booked        []domain.Appointment
	Cancellations int
}

// Args wraps the decoded tool-call arguments.
type Args map[string]interface{}

func (a Args) String(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// Handler executes one tool. A returned error becomes a conversational
// string result; it never crosses the assistant loop as a failure.
type Handler func(ctx context.Context, scope *Scope, args Args) (any, error)

// Registry is the tool surface bound to the LLM: catalog queries,
// availability, user find-or-create and appointment management. Every
// result is either JSON-encoded structured data or a plain descriptive
// sentence the model can relay to the user.
type Registry struct {
	store    *storage.Store
	avail    *availability.Engine
	booking  *booking.Engine
	defs     []llm.Tool
	handlers map[string]Handler
}

func NewRegistry(store *storage.Store, avail *availability.Engine, bookingEngine *booking.Engine) *Registry {
	r := &Registry{
		store:    store,
		avail:    avail,
		booking:  bookingEngine,
		handlers: make(map[string]Handler),
	}
	r.register(serviceListTool, r.getServices)
	r.register(categoryListTool, r.getCategories)
	r.register(serviceDetailTool, r.getServiceDetails)
	r.register(availableSlotsTool, r.getAvailableSlots)
	r.register(resourceAvailabilityTool, r.getResourceAvailability)
	r.register(findOrCreateUserTool, r.findOrCreateUser)
	r.register(userInfoTool, r.getUserInfo)
	r.register(createAppointmentTool, r.createAppointment)
	r.register(userAppointmentsTool, r.getUserAppointments)
	r.register(cancelAppointmentTool, r.cancelAppointment)
	r.register(rescheduleAppointmentTool, r.rescheduleAppointment)
	return r
}

func (r *Registry) register(def llm.Tool, h Handler) {
	r.defs = append(r.defs, def)
	r.handlers[def.Function.Name] = h
}

// Definitions returns the tool schemas to bind to the LLM.
func (r *Registry) Definitions() []llm.Tool { return r.defs }

// Execute runs a tool and always returns a string the model can act on.
// Failures are converted to descriptive text, so an operational problem
// (calendar outage, unknown service) turns into conversation, not a
// crashed turn.
func (r *Registry) Execute(ctx context.Context, scope *Scope, name string, args map[string]interface{}) string {
	h, ok := r.handlers[name]
	if !ok {
		return fmt.Sprintf("Unknown tool %q.", name)
	}
	result, err := h(ctx, scope, Args(args))
	if err != nil {
		log.Printf("⚠️ tool %s failed: %v", name, err)
		return err.Error()
	}
	if s, ok := result.(string); ok {
		return s
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("Could not encode %s result: %v", name, err)
	}
	return string(data)
}

func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func strProp(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}
