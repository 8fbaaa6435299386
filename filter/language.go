package filter

import (
	"fmt"
	"unicode"

	"golang.org/x/text/unicode/rangetable"

	"github.com/ftl/sms-carver/carve"
)

// DefaultThreshold is the share of characters that must belong to a language signature.
const DefaultThreshold = 0.92

// Interval is an inclusive range of code points.
type Interval struct {
	Low  rune `yaml:"low"`
	High rune `yaml:"high"`
}

// LanguageSignature is the set of characters that are typical for a language.
type LanguageSignature struct {
	table *unicode.RangeTable
}

// Latin contains printable ASCII, Latin-1 letters and Latin Extended-A.
var Latin = MustLanguageSignature([]Interval{{Low: 0x20, High: 0x7F}, {Low: 0xC0, High: 0x17F}})

// NewLanguageSignature creates a language signature from the given intervals and the Unicode scripts with the
// given names, e.g. "Cyrillic" or "Greek".
func NewLanguageSignature(intervals []Interval, scripts ...string) (LanguageSignature, error) {
	tables := make([]*unicode.RangeTable, 0, len(intervals)+len(scripts))
	for _, interval := range intervals {
		table, err := intervalTable(interval)
		if err != nil {
			return LanguageSignature{}, err
		}
		tables = append(tables, table)
	}
	for _, script := range scripts {
		table, ok := unicode.Scripts[script]
		if !ok {
			return LanguageSignature{}, fmt.Errorf("unknown script %s", script)
		}
		tables = append(tables, table)
	}
	return LanguageSignature{table: rangetable.Merge(tables...)}, nil
}

// MustLanguageSignature is like NewLanguageSignature but panics on invalid input.
func MustLanguageSignature(intervals []Interval, scripts ...string) LanguageSignature {
	result, err := NewLanguageSignature(intervals, scripts...)
	if err != nil {
		panic(err)
	}
	return result
}

func intervalTable(interval Interval) (*unicode.RangeTable, error) {
	if interval.Low < 0 || interval.High > unicode.MaxRune || interval.Low > interval.High {
		return nil, fmt.Errorf("invalid interval [0x%x, 0x%x]", interval.Low, interval.High)
	}

	result := &unicode.RangeTable{}
	if interval.Low <= 0xFFFF {
		high := min(interval.High, 0xFFFF)
		result.R16 = append(result.R16, unicode.Range16{Lo: uint16(interval.Low), Hi: uint16(high), Stride: 1})
	}
	if interval.High > 0xFFFF {
		low := max(interval.Low, 0x10000)
		result.R32 = append(result.R32, unicode.Range32{Lo: uint32(low), Hi: uint32(interval.High), Stride: 1})
	}
	return result, nil
}

// Contains tells if the character belongs to the signature.
func (s LanguageSignature) Contains(r rune) bool {
	if s.table == nil {
		return false
	}
	return unicode.Is(s.table, r)
}

// Ratio returns the share of characters of the text that belong to the signature. The ratio of an empty text is 0.
func (s LanguageSignature) Ratio(text string) float64 {
	total := 0
	matching := 0
	for _, r := range text {
		total++
		if s.Contains(r) {
			matching++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matching) / float64(total)
}

// Language keeps records with a text in which the share of characters that belong to the signature exceeds
// the threshold. Records without text or with an empty text are dropped.
func Language(signature LanguageSignature, threshold float64) Predicate {
	return func(record carve.Record) bool {
		text, ok := record.Text()
		if !ok || text == "" {
			return false
		}
		return signature.Ratio(text) > threshold
	}
}
