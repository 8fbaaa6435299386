package filter

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile declares a custom filter.
//
//	filters:
//	  - name: cyrillic
//	    intervals:
//	      - {low: 0x20, high: 0x7F}
//	    scripts: [Cyrillic]
//	    threshold: 0.9
//	    requireDate: true
//	    minTextLength: 3
type Profile struct {
	Name          string     `yaml:"name"`
	Intervals     []Interval `yaml:"intervals"`
	Scripts       []string   `yaml:"scripts"`
	Threshold     float64    `yaml:"threshold"`
	RequireDate   bool       `yaml:"requireDate"`
	MinTextLength int        `yaml:"minTextLength"`
}

type profileFile struct {
	Filters []Profile `yaml:"filters"`
}

// Filter builds the filter declared by the profile. A profile without intervals and scripts does not check
// the language. A threshold of zero means DefaultThreshold.
func (p Profile) Filter() (*Filter, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, errors.New("filter profile without name")
	}

	var predicates []Predicate
	if len(p.Intervals) > 0 || len(p.Scripts) > 0 {
		signature, err := NewLanguageSignature(p.Intervals, p.Scripts...)
		if err != nil {
			return nil, fmt.Errorf("filter profile %s: %w", name, err)
		}
		threshold := p.Threshold
		if threshold == 0 {
			threshold = DefaultThreshold
		}
		if threshold < 0 || threshold > 1 {
			return nil, fmt.Errorf("filter profile %s: threshold %v out of range", name, p.Threshold)
		}
		predicates = append(predicates, Language(signature, threshold))
	}
	if p.MinTextLength > 0 {
		predicates = append(predicates, MinTextLength(p.MinTextLength))
	}
	if p.RequireDate {
		predicates = append(predicates, HasDate)
	}

	return New(name, predicates...), nil
}

// ReadProfiles reads filter profiles in YAML format and builds their filters.
func ReadProfiles(r io.Reader) ([]*Filter, error) {
	var file profileFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("cannot read filter profiles: %w", err)
	}

	result := make([]*Filter, 0, len(file.Filters))
	for _, profile := range file.Filters {
		filter, err := profile.Filter()
		if err != nil {
			return nil, err
		}
		result = append(result, filter)
	}
	return result, nil
}

// LoadProfiles reads the filter profiles from the given file.
func LoadProfiles(filename string) ([]*Filter, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open filter profiles: %w", err)
	}
	defer f.Close()
	return ReadProfiles(f)
}
