package export

import (
	"encoding/json"
	"io"

	"github.com/ftl/sms-carver/carve"
	"github.com/ftl/sms-carver/tpdu"
)

type jsonRecord struct {
	Offset      int      `json:"offset"`
	Kind        string   `json:"kind"`
	Status      string   `json:"status"`
	Source      *string  `json:"source,omitempty"`
	Destination *string  `json:"destination,omitempty"`
	Text        *string  `json:"text,omitempty"`
	LocalDate   *string  `json:"localDate,omitempty"`
	UTCDate     *string  `json:"utcDate,omitempty"`
	PDU         *jsonPDU `json:"pdu,omitempty"`
}

type jsonPDU struct {
	Header           string `json:"header"`
	MessageReference *int   `json:"messageReference,omitempty"`
	AddressLength    int    `json:"addressLength"`
	ProtocolID       int    `json:"protocolId"`
	DataCodingScheme int    `json:"dataCodingScheme"`
	Encoding         string `json:"encoding"`
	Timestamp        string `json:"timestamp,omitempty"`
	ValidityPeriod   string `json:"validityPeriod,omitempty"`
	UserDataLength   int    `json:"userDataLength"`
	UserData         string `json:"userData"`
}

func optionalValue(value string, ok bool) *string {
	if !ok {
		return nil
	}
	return &value
}

func newJSONRecord(record carve.Record) jsonRecord {
	result := jsonRecord{
		Offset:      record.Offset(),
		Kind:        record.Kind().String(),
		Status:      string(record.Status()),
		Source:      optionalValue(record.Source()),
		Destination: optionalValue(record.Destination()),
		Text:        optionalValue(record.Text()),
		LocalDate:   optionalValue(record.LocalDate()),
		UTCDate:     optionalValue(record.UTCDate()),
	}

	message, ok := record.(*carve.PduMessage)
	if !ok {
		return result
	}
	result.PDU = &jsonPDU{
		Header:           tpdu.BinaryToHex([]byte{message.Header()}),
		AddressLength:    message.AddressLength(),
		ProtocolID:       int(message.ProtocolID()),
		DataCodingScheme: int(message.DataCodingScheme()),
		Encoding:         message.Encoding().String(),
		Timestamp:        tpdu.BinaryToHex(message.Timestamp()),
		ValidityPeriod:   tpdu.BinaryToHex(message.ValidityPeriod()),
		UserDataLength:   message.UserDataLength(),
		UserData:         tpdu.BinaryToHex(message.UserData()),
	}
	if message.Kind() == tpdu.Submit {
		reference := int(message.MessageReference())
		result.PDU.MessageReference = &reference
	}
	return result
}

// WriteJSON writes one JSON object per line and record.
func WriteJSON(w io.Writer, records []carve.Record) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	for _, record := range records {
		err := encoder.Encode(newJSONRecord(record))
		if err != nil {
			return err
		}
	}
	return nil
}
