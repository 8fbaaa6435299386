/*
The package filter narrows the records found by carving to the plausible ones. A filter never reorders
or duplicates records, it only drops them, and applying the same filter twice gives the same result
as applying it once.
*/
package filter

import (
	"github.com/rs/zerolog"

	"github.com/ftl/sms-carver/carve"
)

// Predicate decides if a finished record is kept.
type Predicate func(carve.Record) bool

// Narrower reduces a collection of records to a subset, preserving the order.
type Narrower interface {
	Name() string
	Apply(records []carve.Record) []carve.Record
}

// Filter keeps the records for which all of its predicates hold.
type Filter struct {
	name       string
	predicates []Predicate
}

// New returns a filter with the given name and predicates.
func New(name string, predicates ...Predicate) *Filter {
	return &Filter{
		name:       name,
		predicates: predicates,
	}
}

func (f *Filter) Name() string {
	return f.name
}

// Accept tells if the record passes all predicates.
func (f *Filter) Accept(record carve.Record) bool {
	for _, predicate := range f.predicates {
		if !predicate(record) {
			return false
		}
	}
	return true
}

func (f *Filter) Apply(records []carve.Record) []carve.Record {
	result := make([]carve.Record, 0, len(records))
	for _, record := range records {
		if f.Accept(record) {
			result = append(result, record)
		}
	}
	return result
}

// Option configures ApplyFilters.
type Option func(*applyConfig)

type applyConfig struct {
	logger zerolog.Logger
}

// WithLogger sets the logger that reports how many records each filter kept.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *applyConfig) {
		c.logger = logger
	}
}

// ApplyFilters applies the given filters one after the other.
func ApplyFilters(filters []Narrower, records []carve.Record, options ...Option) []carve.Record {
	config := applyConfig{logger: zerolog.Nop()}
	for _, option := range options {
		option(&config)
	}

	result := records
	for _, filter := range filters {
		before := len(result)
		result = filter.Apply(result)
		config.logger.Debug().Str("filter", filter.Name()).Int("before", before).Int("after", len(result)).Msgf("%s: %d -> %d", filter.Name(), before, len(result))
	}
	return result
}

/* Predicates */

// HasDate keeps records with a valid local date.
func HasDate(record carve.Record) bool {
	_, ok := record.LocalDate()
	return ok
}

// MinTextLength keeps records whose text has at least the given number of characters.
func MinTextLength(length int) Predicate {
	return func(record carve.Record) bool {
		text, ok := record.Text()
		if !ok {
			return length <= 0
		}
		return len([]rune(text)) >= length
	}
}

// StatusIs keeps records with the given direction.
func StatusIs(status carve.Status) Predicate {
	return func(record carve.Record) bool {
		return record.Status() == status
	}
}
