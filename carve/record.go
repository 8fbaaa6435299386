/*
The package carve recovers SMS messages from raw memory images. A Parser tries to decode a complete
TPDU at every single offset of the image, using an ordered chain of decode steps. Only records for
which every step succeeded are returned, everything else is silently dropped as noise.
*/
package carve

import (
	"slices"
	"time"

	"github.com/ftl/sms-carver/tpdu"
)

// Status is the direction of a message, derived from its message type indicator.
type Status string

// All possible directions
const (
	Sent     Status = "Sent"
	Received Status = "Received"
	Unknown  Status = "Unknown"
)

// StatusOf derives the direction from the message type indicator.
func StatusOf(messageType tpdu.MessageType) Status {
	switch messageType {
	case tpdu.Submit:
		return Sent
	case tpdu.Deliver:
		return Received
	default:
		return Unknown
	}
}

// Record is a message recovered from an image.
type Record interface {
	Offset() int
	Kind() tpdu.MessageType
	Status() Status
	Source() (string, bool)
	Destination() (string, bool)
	Text() (string, bool)
	LocalDate() (string, bool)
	UTCDate() (string, bool)
}

type optional struct {
	value string
	valid bool
}

func some(value string) optional {
	return optional{value: value, valid: true}
}

func (o optional) get() (string, bool) {
	return o.value, o.valid
}

// Message holds the generic properties of a recovered message.
type Message struct {
	offset      int
	kind        tpdu.MessageType
	source      optional
	destination optional
	text        optional
	localDate   optional
	utcDate     optional
}

// Offset is the position of the first byte of the message in the image.
func (m Message) Offset() int {
	return m.offset
}

// Kind is the message type indicator of the message.
func (m Message) Kind() tpdu.MessageType {
	return m.kind
}

func (m Message) Status() Status {
	return StatusOf(m.kind)
}

func (m Message) Source() (string, bool) {
	return m.source.get()
}

func (m Message) Destination() (string, bool) {
	return m.destination.get()
}

func (m Message) Text() (string, bool) {
	return m.text.get()
}

// LocalDate is the time stamp in its own time zone, see tpdu.Timestamp.Local.
func (m Message) LocalDate() (string, bool) {
	return m.localDate.get()
}

// UTCDate is the time stamp normalized to UTC, see tpdu.Timestamp.UTCString.
func (m Message) UTCDate() (string, bool) {
	return m.utcDate.get()
}

// PduMessage is a message that was decoded from a TPDU. It keeps the raw protocol fields.
type PduMessage struct {
	Message

	header           byte
	messageReference byte
	addressLength    int
	protocolID       byte
	dataCodingScheme byte
	timestamp        []byte
	validityPeriod   []byte
	userDataLength   int
	userData         []byte
	date             tpdu.Timestamp
	dateValid        bool
}

// newPduMessage builds the finished record from the fields that were collected by all steps.
func newPduMessage(kind tpdu.MessageType, offset int, fields Fields) *PduMessage {
	result := &PduMessage{
		Message: Message{
			offset: offset,
			kind:   kind,
		},
		header:           fields.Header,
		messageReference: fields.MessageReference,
		addressLength:    fields.Address.Digits,
		protocolID:       fields.ProtocolID,
		dataCodingScheme: fields.DataCodingScheme,
		timestamp:        slices.Clone(fields.Timestamp),
		validityPeriod:   slices.Clone(fields.ValidityPeriod),
		userDataLength:   fields.UserDataLength,
		userData:         slices.Clone(fields.UserData),
	}

	if fields.Address.Present() {
		switch kind {
		case tpdu.Submit:
			result.destination = some(fields.Address.Number)
		case tpdu.Deliver:
			result.source = some(fields.Address.Number)
		}
	}
	if fields.Has(UserDataField) {
		result.text = some(fields.Text)
	}
	if fields.DateValid {
		result.date = fields.Date
		result.dateValid = true
		result.localDate = some(fields.Date.Local())
	}
	if fields.UTCValid {
		result.utcDate = some(fields.UTC.UTCString())
	}

	return result
}

// Header is the raw first octet.
func (m *PduMessage) Header() byte {
	return m.header
}

// MessageReference is the TP-MR of an SMS-SUBMIT.
func (m *PduMessage) MessageReference() byte {
	return m.messageReference
}

// AddressLength is the number of digits declared by the address field.
func (m *PduMessage) AddressLength() int {
	return m.addressLength
}

func (m *PduMessage) ProtocolID() byte {
	return m.protocolID
}

func (m *PduMessage) DataCodingScheme() byte {
	return m.dataCodingScheme
}

// Encoding of the user data, selected by the data coding scheme.
func (m *PduMessage) Encoding() tpdu.Encoding {
	result, _ := tpdu.SelectEncoding(m.dataCodingScheme)
	return result
}

// Timestamp is the raw TP-SCTS of an SMS-DELIVER.
func (m *PduMessage) Timestamp() []byte {
	return slices.Clone(m.timestamp)
}

// ValidityPeriod is the raw TP-VP of an SMS-SUBMIT, it may be empty.
func (m *PduMessage) ValidityPeriod() []byte {
	return slices.Clone(m.validityPeriod)
}

// UserDataLength is the declared number of units (septets or octets) in the user data.
func (m *PduMessage) UserDataLength() int {
	return m.userDataLength
}

// UserData is the raw user data as it was found in the image.
func (m *PduMessage) UserData() []byte {
	return slices.Clone(m.userData)
}

// Time returns the decoded service centre time stamp.
func (m *PduMessage) Time() (time.Time, bool) {
	if !m.dateValid {
		return time.Time{}, false
	}
	return m.date.Time(), true
}
