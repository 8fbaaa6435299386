package filter

import (
	"strconv"
	"strings"
)

// ClassicalName is the name of the default plausibility filter.
const ClassicalName = "PDU-classical"

// Registry is an ordered set of named filters. Filters are selected by their index or by their name.
type Registry struct {
	filters []Narrower
}

// NewRegistry returns a registry containing the given filters in the given order.
func NewRegistry(filters ...Narrower) *Registry {
	return &Registry{
		filters: filters,
	}
}

// DefaultRegistry returns a registry with the classical filter (0), latin text with a valid date, and
// the de-duplication (1).
func DefaultRegistry() *Registry {
	return NewRegistry(
		New(ClassicalName, Language(Latin, DefaultThreshold), HasDate),
		Dedup{},
	)
}

// Add a filter to the end of the registry. A filter with the same name is replaced in place.
func (r *Registry) Add(filter Narrower) {
	for i, existing := range r.filters {
		if strings.EqualFold(existing.Name(), filter.Name()) {
			r.filters[i] = filter
			return
		}
	}
	r.filters = append(r.filters, filter)
}

// Filters returns all filters in order.
func (r *Registry) Filters() []Narrower {
	result := make([]Narrower, len(r.filters))
	copy(result, r.filters)
	return result
}

func (r *Registry) Len() int {
	return len(r.filters)
}

// Find the filter with the given name, case insensitive.
func (r *Registry) Find(name string) (Narrower, bool) {
	for _, filter := range r.filters {
		if strings.EqualFold(filter.Name(), name) {
			return filter, true
		}
	}
	return nil, false
}

// Select the filters identified by the given selectors in the given order. A selector is either the index of the
// filter in the registry or its name. Selectors that do not identify any filter are returned separately.
func (r *Registry) Select(selectors ...string) ([]Narrower, []string) {
	var selected []Narrower
	var ignored []string
	for _, selector := range selectors {
		filter, ok := r.lookup(selector)
		if !ok {
			ignored = append(ignored, selector)
			continue
		}
		selected = append(selected, filter)
	}
	return selected, ignored
}

func (r *Registry) lookup(selector string) (Narrower, bool) {
	selector = strings.TrimSpace(selector)
	index, err := strconv.Atoi(selector)
	if err == nil {
		if index < 0 || index >= len(r.filters) {
			return nil, false
		}
		return r.filters[index], true
	}
	return r.Find(selector)
}
