package catalog

import "github.com/dukerupert/cleanhome/internal/model"

// Templates restrict the visible zones to a type of home. An empty zone list
// means every zone.
var Templates = map[string][]string{
	"all":       nil,
	"studio":    {"Kitchen", "Living Room", "Bathroom"},
	"apartment": {"Kitchen", "Living Room", "Bedrooms", "Bathroom", "Entryway"},
	"house":     {"Kitchen", "Living Room", "Bedrooms", "Bathroom", "Entryway", "Garage", "Outdoor", "Laundry"},
	"minimal":   {"Kitchen", "Bathroom"},
}

// ZonesFor returns the zone allow-list of a template; ok is false for an
// unknown template name.
func ZonesFor(template string) (zones []string, ok bool) {
	if template == "" {
		return nil, true
	}
	zones, ok = Templates[template]
	return zones, ok
}

// FilterByTemplate keeps the tasks whose zone belongs to the template.
func FilterByTemplate(tasks []model.Task, template string) []model.Task {
	zones, ok := ZonesFor(template)
	if !ok || len(zones) == 0 {
		return tasks
	}
	allowed := make(map[string]bool, len(zones))
	for _, z := range zones {
		allowed[z] = true
	}
	var out []model.Task
	for _, t := range tasks {
		if allowed[t.Zone] {
			out = append(out, t)
		}
	}
	return out
}
