package carve

import (
	"context"
	"strconv"
	"strings"

	"github.com/ftl/sms-carver/tpdu"
)

// Registry is an ordered set of named parsers. Parsers are selected by their index or by their name.
type Registry struct {
	parsers []*Parser
}

// NewRegistry returns a registry containing the given parsers in the given order.
func NewRegistry(parsers ...*Parser) *Registry {
	return &Registry{
		parsers: parsers,
	}
}

// DefaultRegistry returns a registry with the parsers for SMS-SUBMIT (0) and SMS-DELIVER (1).
func DefaultRegistry(options tpdu.TextOptions) *Registry {
	return NewRegistry(
		NewSubmitParser(options),
		NewDeliverParser(options),
	)
}

// Add a parser to the end of the registry.
func (r *Registry) Add(parser *Parser) {
	r.parsers = append(r.parsers, parser)
}

// Parsers returns all parsers in order.
func (r *Registry) Parsers() []*Parser {
	result := make([]*Parser, len(r.parsers))
	copy(result, r.parsers)
	return result
}

// Len returns the number of parsers.
func (r *Registry) Len() int {
	return len(r.parsers)
}

// Find the parser with the given name, case insensitive.
func (r *Registry) Find(name string) (*Parser, bool) {
	for _, parser := range r.parsers {
		if strings.EqualFold(parser.name, name) {
			return parser, true
		}
	}
	return nil, false
}

// Select the parsers identified by the given selectors in the given order. A selector is either the index of the
// parser in the registry or its name. Selectors that do not identify any parser are returned separately, so that
// the caller can report them. Each parser is selected only once.
func (r *Registry) Select(selectors ...string) ([]*Parser, []string) {
	var selected []*Parser
	var ignored []string
	seen := make(map[*Parser]bool)
	for _, selector := range selectors {
		parser, ok := r.lookup(selector)
		if !ok {
			ignored = append(ignored, selector)
			continue
		}
		if seen[parser] {
			continue
		}
		seen[parser] = true
		selected = append(selected, parser)
	}
	return selected, ignored
}

func (r *Registry) lookup(selector string) (*Parser, bool) {
	selector = strings.TrimSpace(selector)
	index, err := strconv.Atoi(selector)
	if err == nil {
		if index < 0 || index >= len(r.parsers) {
			return nil, false
		}
		return r.parsers[index], true
	}
	return r.Find(selector)
}

// RunParsers runs the given parsers one after the other on the image and concatenates their results
// in the order of the parsers.
func RunParsers(ctx context.Context, parsers []*Parser, image []byte, options ...Option) ([]Record, error) {
	var result []Record
	for _, parser := range parsers {
		records, err := parser.Parse(ctx, image, options...)
		if err != nil {
			return nil, err
		}
		result = append(result, records...)
	}
	return result, nil
}
