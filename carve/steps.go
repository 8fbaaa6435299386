package carve

import (
	"github.com/ftl/sms-carver/tpdu"
)

// Field identifies the fields a step has decoded.
type Field uint16

// All fields that are decoded by the default steps.
const (
	HeaderField Field = 1 << iota
	MessageReferenceField
	AddressField
	ProtocolField
	ValidityPeriodField
	TimestampField
	UserDataField
)

// Fields collects the result of one or more decode steps. Present tells which fields are set.
type Fields struct {
	Present Field

	Header           byte
	MessageReference byte
	Address          tpdu.Address
	ProtocolID       byte
	DataCodingScheme byte
	ValidityPeriod   []byte
	Timestamp        []byte
	Date             tpdu.Timestamp
	DateValid        bool
	UTC              tpdu.Timestamp
	UTCValid         bool
	UserDataLength   int
	UserData         []byte
	Text             string
}

// Has tells if the given field is present.
func (f Fields) Has(field Field) bool {
	return f.Present&field == field
}

// Merge copies all fields that are present in other.
func (f *Fields) Merge(other Fields) {
	if other.Has(HeaderField) {
		f.Header = other.Header
	}
	if other.Has(MessageReferenceField) {
		f.MessageReference = other.MessageReference
	}
	if other.Has(AddressField) {
		f.Address = other.Address
	}
	if other.Has(ProtocolField) {
		f.ProtocolID = other.ProtocolID
		f.DataCodingScheme = other.DataCodingScheme
	}
	if other.Has(ValidityPeriodField) {
		f.ValidityPeriod = other.ValidityPeriod
	}
	if other.Has(TimestampField) {
		f.Timestamp = other.Timestamp
		f.Date, f.DateValid = other.Date, other.DateValid
		f.UTC, f.UTCValid = other.UTC, other.UTCValid
	}
	if other.Has(UserDataField) {
		f.UserDataLength = other.UserDataLength
		f.UserData = other.UserData
		f.Text = other.Text
	}
	f.Present |= other.Present
}

// StepFunc decodes one field at the cursor. It gets the fields decoded so far and returns the newly decoded
// fields with the number of consumed bytes, or false if the bytes at the cursor do not match.
type StepFunc func(image []byte, cursor int, partial Fields) (Fields, int, bool)

// Step is one element of a parser's chain.
type Step struct {
	Name string
	// MinBytes is the number of bytes that must remain in the image before the step is invoked.
	MinBytes int
	Decode   StepFunc
}

// HeaderStep reads the first octet. It only matches if the message type indicator is the given one.
func HeaderStep(messageType tpdu.MessageType) Step {
	return Step{
		Name:     "header",
		MinBytes: 1,
		Decode: func(image []byte, cursor int, _ Fields) (Fields, int, bool) {
			if cursor >= len(image) {
				return Fields{}, 0, false
			}
			header := image[cursor]
			if tpdu.MessageTypeOf(header) != messageType {
				return Fields{}, 0, false
			}
			return Fields{Present: HeaderField, Header: header}, 1, true
		},
	}
}

// MessageReferenceStep reads the TP-MR octet of an SMS-SUBMIT.
func MessageReferenceStep() Step {
	return Step{
		Name:     "message reference",
		MinBytes: 1,
		Decode: func(image []byte, cursor int, _ Fields) (Fields, int, bool) {
			if cursor >= len(image) {
				return Fields{}, 0, false
			}
			return Fields{Present: MessageReferenceField, MessageReference: image[cursor]}, 1, true
		},
	}
}

// AddressStep reads the TP-OA or TP-DA field.
func AddressStep() Step {
	return Step{
		Name:     "address",
		MinBytes: 1,
		Decode: func(image []byte, cursor int, _ Fields) (Fields, int, bool) {
			if cursor >= len(image) {
				return Fields{}, 0, false
			}
			address, consumed, ok := tpdu.DecodeAddress(image[cursor:])
			if !ok {
				return Fields{}, 0, false
			}
			return Fields{Present: AddressField, Address: address}, consumed, true
		},
	}
}

// ProtocolStep reads the TP-PID and TP-DCS octets.
func ProtocolStep() Step {
	return Step{
		Name:     "protocol identifier and data coding scheme",
		MinBytes: 2,
		Decode: func(image []byte, cursor int, _ Fields) (Fields, int, bool) {
			if cursor+2 > len(image) {
				return Fields{}, 0, false
			}
			return Fields{
				Present:          ProtocolField,
				ProtocolID:       image[cursor],
				DataCodingScheme: image[cursor+1],
			}, 2, true
		},
	}
}

// ValidityPeriodStep reads the TP-VP of an SMS-SUBMIT. Its length is selected by the TP-VPF in the header
// that was already decoded. The validity period never provides a date.
func ValidityPeriodStep() Step {
	return Step{
		Name:     "validity period",
		MinBytes: 0,
		Decode: func(image []byte, cursor int, partial Fields) (Fields, int, bool) {
			length := tpdu.ValidityPeriodLength(partial.Header)
			if cursor+length > len(image) {
				return Fields{}, 0, false
			}
			return Fields{
				Present:        ValidityPeriodField,
				ValidityPeriod: image[cursor : cursor+length],
			}, length, true
		},
	}
}

// TimestampStep reads the TP-SCTS of an SMS-DELIVER. The step matches as long as there are enough bytes,
// the dates are only provided if the time stamp is valid.
func TimestampStep() Step {
	return Step{
		Name:     "service centre time stamp",
		MinBytes: tpdu.TimestampLength,
		Decode: func(image []byte, cursor int, _ Fields) (Fields, int, bool) {
			if cursor+tpdu.TimestampLength > len(image) {
				return Fields{}, 0, false
			}
			raw := image[cursor : cursor+tpdu.TimestampLength]
			result := Fields{
				Present:   TimestampField,
				Timestamp: raw,
			}
			result.Date, result.DateValid = tpdu.DecodeTimestamp(raw)
			if result.DateValid {
				result.UTC, result.UTCValid = result.Date.UTC()
			}
			return result, tpdu.TimestampLength, true
		},
	}
}

// UserDataStep reads the TP-UDL and TP-UD fields and decodes the text. A user data length of zero and
// unsupported data coding schemes do not match. The number of bytes is derived from the user data length:
// septets are packed, octets are taken as they are.
func UserDataStep(options tpdu.TextOptions) Step {
	return Step{
		Name:     "user data",
		MinBytes: 1,
		Decode: func(image []byte, cursor int, partial Fields) (Fields, int, bool) {
			if cursor >= len(image) {
				return Fields{}, 0, false
			}
			units := int(image[cursor])
			if units == 0 {
				return Fields{}, 0, false
			}
			encoding, ok := tpdu.SelectEncoding(partial.DataCodingScheme)
			if !ok {
				return Fields{}, 0, false
			}
			length := tpdu.UserDataBytes(encoding, units)
			start := cursor + 1
			if start+length > len(image) {
				return Fields{}, 0, false
			}
			userData := image[start : start+length]

			return Fields{
				Present:        UserDataField,
				UserDataLength: units,
				UserData:       userData,
				Text:           tpdu.DecodeText(encoding, userData, units, options),
			}, 1 + length, true
		},
	}
}
