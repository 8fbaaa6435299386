package export

import (
	"encoding/csv"
	"io"

	"github.com/ftl/sms-carver/carve"
)

// WriteCSV writes one row per record, preceded by carve.RowHeader.
func WriteCSV(w io.Writer, records []carve.Record) error {
	writer := csv.NewWriter(w)
	err := writer.Write(carve.RowHeader)
	if err != nil {
		return err
	}
	for _, record := range records {
		err = writer.Write(carve.Row(record))
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
