package tpdu

/* First octet of the TPDU */

// MessageType is the message type indicator (TP-MTI) according to [TL] 9.2.3.1
type MessageType byte

// The message types relevant for carving, according to [TL] table 9.2.3.1.
// The value 0 means SMS-DELIVER in direction SC to MS and SMS-SUBMIT is 1 in direction MS to SC.
const (
	Deliver MessageType = 0x00
	Submit  MessageType = 0x01
)

func (t MessageType) String() string {
	switch t {
	case Deliver:
		return "SMS-DELIVER"
	case Submit:
		return "SMS-SUBMIT"
	default:
		return "RESERVED"
	}
}

// MessageTypeOf returns the message type indicator from the two least significant bits of the first octet.
func MessageTypeOf(header byte) MessageType {
	return MessageType(header & 0x03)
}

// ValidityPeriodFormat is the TP-VPF field of an SMS-SUBMIT according to [TL] 9.2.3.3
type ValidityPeriodFormat byte

// All validity period formats according to [TL] 9.2.3.3
const (
	NoValidityPeriod       ValidityPeriodFormat = 0x00
	EnhancedValidityPeriod ValidityPeriodFormat = 0x01
	RelativeValidityPeriod ValidityPeriodFormat = 0x02
	AbsoluteValidityPeriod ValidityPeriodFormat = 0x03
)

// ValidityPeriodFormatOf returns the validity period format from bits 3 and 4 of the first octet.
func ValidityPeriodFormatOf(header byte) ValidityPeriodFormat {
	return ValidityPeriodFormat((header & 0x18) >> 3)
}

// Length returns the length of the TP-VP field in bytes for this format.
func (f ValidityPeriodFormat) Length() int {
	switch f {
	case EnhancedValidityPeriod, AbsoluteValidityPeriod:
		return 7
	case RelativeValidityPeriod:
		return 1
	default:
		return 0
	}
}

// ValidityPeriodLength returns the length of the TP-VP field of an SMS-SUBMIT with the given first octet.
func ValidityPeriodLength(header byte) int {
	return ValidityPeriodFormatOf(header).Length()
}

// UserDataHeaderIndicator tells if bit 6 of the first octet is set, see [TL] 9.2.3.23
func UserDataHeaderIndicator(header byte) bool {
	return header&0x40 != 0
}

/* Addresses */

// TypeOfNumber according to [TL] 9.1.2.5
type TypeOfNumber byte

// All types of number according to [TL] 9.1.2.5
const (
	UnknownNumber         TypeOfNumber = 0x00
	InternationalNumber   TypeOfNumber = 0x01
	NationalNumber        TypeOfNumber = 0x02
	NetworkSpecificNumber TypeOfNumber = 0x03
	SubscriberNumber      TypeOfNumber = 0x04
	AlphanumericNumber    TypeOfNumber = 0x05
	AbbreviatedNumber     TypeOfNumber = 0x06
)

// MaxAddressBytes is the upper bound for the packed digits of an address. Longer addresses are
// rejected as noise.
const MaxAddressBytes = 12

// Address is a decoded TP-OA or TP-DA field.
type Address struct {
	// Digits is the address length field, i.e. the number of useful semi-octets.
	Digits int
	Type   byte
	Number string
}

// TypeOfNumber returns the TON sub-field from bits 4 to 6 of the type-of-address octet.
func (a Address) TypeOfNumber() TypeOfNumber {
	return TypeOfNumber((a.Type & 0x70) >> 4)
}

// Present tells if the address carries a number at all.
func (a Address) Present() bool {
	return a.Number != ""
}

// DecodeAddress decodes an address field according to [TL] 9.1.2.5 from the beginning of the given bytes.
// It returns the address and the number of bytes the field occupies. An address length of zero
// is accepted, it occupies the length and the type-of-address octets and carries no number.
func DecodeAddress(bytes []byte) (Address, int, bool) {
	if len(bytes) < 2 {
		return Address{}, 0, false
	}

	digits := int(bytes[0])
	length := (digits + 1) / 2
	if length > MaxAddressBytes {
		return Address{}, 0, false
	}
	if length == 0 {
		return Address{Type: bytes[1]}, 2, true
	}
	if len(bytes) < 2+length {
		return Address{}, 0, false
	}

	result := Address{
		Digits: digits,
		Type:   bytes[1],
	}
	number, ok := NibbleDigits(bytes[2:2+length], true)
	if !ok || number == "" {
		return Address{}, 0, false
	}
	if result.TypeOfNumber() == InternationalNumber {
		number = "+" + number
	}
	result.Number = number

	return result, 2 + length, true
}

// EncodeAddress encodes the given phone number as address field. A leading + selects the international type of number.
func EncodeAddress(number string) ([]byte, error) {
	typeOfAddress := byte(0x81) // unknown, ISDN numbering plan
	digits := number
	if len(digits) > 0 && digits[0] == '+' {
		typeOfAddress = 0x91
		digits = digits[1:]
	}
	packed, err := EncodeDigits(digits)
	if err != nil {
		return nil, err
	}

	result := make([]byte, 0, 2+len(packed))
	result = append(result, byte(len(digits)), typeOfAddress)
	return append(result, packed...), nil
}
