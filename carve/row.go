package carve

import (
	"fmt"
	"strings"
)

// RowHeader contains the column titles for the rows returned by Row.
var RowHeader = []string{
	"Offset in binary",
	"Status",
	"Number",
	"Data",
	"Date (DD:MM:YYYY HH:MM:SS UTC)",
	"Date (UTC+00)",
}

const unknownValue = "Unknown"

// Row projects the record into one row of a table: the offset in hex, the status, the number of the other party,
// the sanitized text, the local date and the UTC date. Missing values are shown as "Unknown".
func Row(record Record) []string {
	text, _ := record.Text()
	return []string{
		fmt.Sprintf("0x%x", record.Offset()),
		string(record.Status()),
		Number(record),
		SanitizeText(text),
		valueOrUnknown(record.LocalDate()),
		valueOrUnknown(record.UTCDate()),
	}
}

// Number returns the number of the other party: the source of a received message, the destination of a sent message,
// otherwise whatever is available.
func Number(record Record) string {
	source, hasSource := record.Source()
	destination, hasDestination := record.Destination()
	switch {
	case record.Status() == Received && hasSource:
		return source
	case record.Status() == Sent && hasDestination:
		return destination
	case hasSource:
		return source
	case hasDestination:
		return destination
	default:
		return unknownValue
	}
}

// SanitizeText replaces the control characters 0x00-0x08, 0x0B-0x0C, 0x0E-0x1F with a space. Tabs, line feeds
// and carriage returns are kept.
func SanitizeText(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r <= 0x08, r == 0x0B, r == 0x0C, r >= 0x0E && r <= 0x1F:
			return ' '
		default:
			return r
		}
	}, text)
}

func valueOrUnknown(value string, ok bool) string {
	if !ok {
		return unknownValue
	}
	return value
}
