/*
The package export writes the records recovered by a carving run into files: CSV and JSON lines for
further processing, a PDF report for the case file, and an mbox mailbox to browse the messages with
any mail client.
*/
package export

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ftl/sms-carver/carve"
)

// Format of an export file.
type Format string

// All supported formats
const (
	CSV  Format = "csv"
	JSON Format = "json"
	PDF  Format = "pdf"
	Mbox Format = "mbox"
)

var formats = map[Format]bool{
	CSV:  true,
	JSON: true,
	PDF:  true,
	Mbox: true,
}

// Formats returns the names of all supported formats in alphabetical order.
func Formats() []string {
	result := make([]string, 0, len(formats))
	for format := range formats {
		result = append(result, string(format))
	}
	sort.Strings(result)
	return result
}

// ParseFormat returns the format with the given name, case insensitive.
func ParseFormat(name string) (Format, error) {
	result := Format(strings.ToLower(strings.TrimSpace(name)))
	if !formats[result] {
		return "", fmt.Errorf("unknown export format %q, use one of %s", name, strings.Join(Formats(), ", "))
	}
	return result, nil
}

// FormatOf guesses the format from the extension of the given filename.
func FormatOf(filename string) (Format, bool) {
	index := strings.LastIndex(filename, ".")
	if index < 0 {
		return "", false
	}
	extension := strings.ToLower(filename[index+1:])
	switch extension {
	case "jsonl", "ndjson":
		return JSON, true
	}
	result := Format(extension)
	return result, formats[result]
}

// Report describes one carving run and its results.
type Report struct {
	RunID   uuid.UUID
	Created time.Time
	Image   string
	Size    int
	Digest  string
	Parsers []string
	Filters []string
	Records []carve.Record
}

// NewReport creates a report with a new run ID for the records that were recovered from the given image.
func NewReport(imageName string, image []byte, parsers []string, filters []string, records []carve.Record) Report {
	return Report{
		RunID:   uuid.New(),
		Created: time.Now().UTC(),
		Image:   imageName,
		Size:    len(image),
		Digest:  carve.Digest(image),
		Parsers: parsers,
		Filters: filters,
		Records: records,
	}
}

// Count returns the number of sent and received records in the report.
func (r Report) Count() (sent int, received int) {
	for _, record := range r.Records {
		switch record.Status() {
		case carve.Sent:
			sent++
		case carve.Received:
			received++
		}
	}
	return sent, received
}

// Write the report in the given format.
func Write(w io.Writer, format Format, report Report, options ...MboxOption) error {
	switch format {
	case CSV:
		return WriteCSV(w, report.Records)
	case JSON:
		return WriteJSON(w, report.Records)
	case PDF:
		return WritePDF(w, report)
	case Mbox:
		return WriteMbox(w, report, options...)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// Save writes the report in the given format into a new file.
func Save(filename string, format Format, report Report, options ...MboxOption) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create export file: %w", err)
	}
	defer func() {
		closeErr := f.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("cannot close export file: %w", closeErr)
		}
	}()

	err = Write(f, format, report, options...)
	if err != nil {
		return fmt.Errorf("cannot export %s: %w", format, err)
	}
	return nil
}
