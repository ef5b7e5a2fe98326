package tools

import (
	"context"
	"fmt"

	"schedbot/internal/llm"
)

var serviceListTool = llm.Tool{
	Type: "function",
	Function: llm.Function{
		Name:        "get_services",
		Description: "List the services offered, with price and duration. Optionally filter by category name.",
		Parameters: objectSchema(map[string]interface{}{
			"category": strProp("Category name to filter by. Omit to list everything."),
		}),
	},
}

var categoryListTool = llm.Tool{
	Type: "function",
	Function: llm.Function{
		Name:        "get_categories",
		Description: "List the service categories offered by the business.",
		Parameters:  objectSchema(map[string]interface{}{}),
	},
}

var serviceDetailTool = llm.Tool{
	Type: "function",
	Function: llm.Function{
		Name:        "get_service_details",
		Description: "Get price, duration and the staff members who perform a specific service.",
		Parameters: objectSchema(map[string]interface{}{
			"service_name": strProp("Name of the service, a partial match is fine."),
		}, "service_name"),
	},
}

type serviceView struct {
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	Category        string  `json:"category,omitempty"`
	Price           float64 `json:"price"`
	DurationMinutes int     `json:"duration_minutes"`
}

func (r *Registry) getServices(ctx context.Context, scope *Scope, args Args) (any, error) {
	services, err := r.store.Services.ByBranch(ctx, scope.BranchID)
	if err != nil {
		return nil, fmt.Errorf("could not load services: %w", err)
	}
	categories, err := r.store.Categories.ByBranch(ctx, scope.BranchID)
	if err != nil {
		return nil, fmt.Errorf("could not load categories: %w", err)
	}
	catNames := make(map[string]string, len(categories))
	for _, c := range categories {
		catNames[c.ID] = c.Name
	}

	filter := args.String("category")
	var out []serviceView
	for _, s := range services {
		catName := catNames[s.CategoryID]
		if filter != "" && !containsFold(catName, filter) {
			continue
		}
		out = append(out, serviceView{
			Name:            s.Name,
			Description:     s.Description,
			Category:        catName,
			Price:           s.Price,
			DurationMinutes: s.DurationMinutes,
		})
	}
	if len(out) == 0 {
		if filter != "" {
			return fmt.Sprintf("No services found in category %q.", filter), nil
		}
		return "No services are configured yet.", nil
	}
	return out, nil
}

func (r *Registry) getCategories(ctx context.Context, scope *Scope, _ Args) (any, error) {
	categories, err := r.store.Categories.ByBranch(ctx, scope.BranchID)
	if err != nil {
		return nil, fmt.Errorf("could not load categories: %w", err)
	}
	if len(categories) == 0 {
		return "No categories are configured.", nil
	}
	type categoryView struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}
	out := make([]categoryView, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryView{Name: c.Name, Description: c.Description})
	}
	return out, nil
}

func (r *Registry) getServiceDetails(ctx context.Context, scope *Scope, args Args) (any, error) {
	name := args.String("service_name")
	if name == "" {
		return nil, fmt.Errorf("service_name is required")
	}
	service, err := r.store.Services.FindByName(ctx, scope.BranchID, name)
	if err != nil {
		return nil, fmt.Errorf("service %q not found; ask for the service list to see what is offered", name)
	}
	resources, err := r.store.Resources.ForService(ctx, service.ID)
	if err != nil {
		return nil, fmt.Errorf("could not load staff for %s: %w", service.Name, err)
	}
	staff := make([]string, 0, len(resources))
	for _, res := range resources {
		staff = append(staff, res.Name)
	}
	return struct {
		serviceView
		Staff []string `json:"performed_by"`
	}{
		serviceView: serviceView{
			Name:            service.Name,
			Description:     service.Description,
			Price:           service.Price,
			DurationMinutes: service.DurationMinutes,
		},
		Staff: staff,
	}, nil
}
