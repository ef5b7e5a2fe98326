package tools

import (
	"context"
	"fmt"
	"strings"

	"schedbot/internal/llm"
)

var availableSlotsTool = llm.Tool{
	Type: "function",
	Function: llm.Function{
		Name:        "get_available_slots",
		Description: "Get the open start times for a service with a specific staff member on a date. Use before every booking attempt.",
		Parameters: objectSchema(map[string]interface{}{
			"service_name":  strProp("Name of the service to book."),
			"resource_name": strProp("Name of the staff member or resource."),
			"date":          strProp("Date in YYYY-MM-DD format."),
		}, "service_name", "resource_name", "date"),
	},
}

var resourceAvailabilityTool = llm.Tool{
	Type: "function",
	Function: llm.Function{
		Name:        "get_resource_availability",
		Description: "Check whether a staff member works on a given date and list their free times for a service, across every staff member when none is named.",
		Parameters: objectSchema(map[string]interface{}{
			"service_name":  strProp("Name of the service the user wants."),
			"date":          strProp("Date in YYYY-MM-DD format."),
			"resource_name": strProp("Staff member to check. Omit to check everyone who performs the service."),
		}, "service_name", "date"),
	},
}

func (r *Registry) getAvailableSlots(ctx context.Context, scope *Scope, args Args) (any, error) {
	serviceName := args.String("service_name")
	resourceName := args.String("resource_name")
	date := args.String("date")
	if serviceName == "" || resourceName == "" || date == "" {
		return nil, fmt.Errorf("service_name, resource_name and date are all required")
	}
	if err := r.booking.ValidateDate(date); err != nil {
		return nil, err
	}

	service, err := r.store.Services.FindByName(ctx, scope.BranchID, serviceName)
	if err != nil {
		return nil, fmt.Errorf("service %q not found", serviceName)
	}
	resource, err := r.store.Resources.FindByName(ctx, scope.BranchID, resourceName)
	if err != nil {
		return nil, fmt.Errorf("staff member %q not found", resourceName)
	}

	slots, err := r.avail.AvailableSlots(ctx, *resource, date, service.DurationMinutes)
	if err != nil {
		return nil, fmt.Errorf("could not check availability for %s on %s, please try again", resource.Name, date)
	}
	if len(slots) == 0 {
		return fmt.Sprintf("%s has no available times on %s. Suggest another day.", resource.Name, date), nil
	}
	return struct {
		Resource string   `json:"resource"`
		Date     string   `json:"date"`
		Slots    []string `json:"available_times"`
	}{resource.Name, date, slots}, nil
}

func (r *Registry) getResourceAvailability(ctx context.Context, scope *Scope, args Args) (any, error) {
	serviceName := args.String("service_name")
	date := args.String("date")
	if serviceName == "" || date == "" {
		return nil, fmt.Errorf("service_name and date are required")
	}
	if err := r.booking.ValidateDate(date); err != nil {
		return nil, err
	}
	service, err := r.store.Services.FindByName(ctx, scope.BranchID, serviceName)
	if err != nil {
		return nil, fmt.Errorf("service %q not found", serviceName)
	}

	resources, err := r.store.Resources.ForService(ctx, service.ID)
	if err != nil {
		return nil, fmt.Errorf("could not load staff for %s: %w", service.Name, err)
	}
	if name := args.String("resource_name"); name != "" {
		filtered := resources[:0]
		for _, res := range resources {
			if containsFold(res.Name, name) {
				filtered = append(filtered, res)
			}
		}
		resources = filtered
		if len(resources) == 0 {
			return fmt.Sprintf("Nobody named %q performs %s.", name, service.Name), nil
		}
	}
	if len(resources) == 0 {
		return fmt.Sprintf("No staff member is set up to perform %s.", service.Name), nil
	}

	type entry struct {
		Resource string   `json:"resource"`
		Working  bool     `json:"working"`
		Slots    []string `json:"available_times,omitempty"`
	}
	out := make([]entry, 0, len(resources))
	for _, res := range resources {
		slots, err := r.avail.AvailableSlots(ctx, res, date, service.DurationMinutes)
		if err != nil {
			continue
		}
		out = append(out, entry{Resource: res.Name, Working: len(slots) > 0, Slots: slots})
	}
	if len(out) == 0 {
		return fmt.Sprintf("Could not check anyone's availability on %s, please try again.", date), nil
	}
	return out, nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
