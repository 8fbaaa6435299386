package filter

import (
	"github.com/ftl/sms-carver/carve"
)

// DedupName is the name of the de-duplication filter in the default registry.
const DedupName = "dedup"

// Dedup drops records that repeat an earlier record with the same direction, number, text and local date.
// Such duplicates occur when the same message is stored more than once in the image, or when overlapping
// scans decode the same message at adjacent offsets.
type Dedup struct{}

func (Dedup) Name() string {
	return DedupName
}

type dedupKey struct {
	status    carve.Status
	number    string
	text      string
	localDate string
}

func (Dedup) Apply(records []carve.Record) []carve.Record {
	seen := make(map[dedupKey]bool, len(records))
	result := make([]carve.Record, 0, len(records))
	for _, record := range records {
		text, _ := record.Text()
		localDate, _ := record.LocalDate()
		key := dedupKey{
			status:    record.Status(),
			number:    carve.Number(record),
			text:      text,
			localDate: localDate,
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, record)
	}
	return result
}
