package tpdu

import (
	"fmt"
)

/* Encoding of complete TPDUs, used to synthesize test images */

// MaxUserDataLength is the largest value the TP-UDL octet can hold.
const MaxUserDataLength = 0xFF

// UserData describes the text of a TPDU and how it is encoded.
type UserData struct {
	Encoding Encoding
	Text     string
	// Alphabet is used for the 7-bit encoding.
	Alphabet Alphabet
	// OctetCodec is the name of the codec used for the 8-bit encoding, see OctetCodecs. Empty means ASCII.
	OctetCodec string
}

// Encode returns the TP-UDL value and the encoded TP-UD bytes.
func (u UserData) Encode() (byte, []byte, error) {
	var units int
	var bytes []byte
	switch u.Encoding {
	case GSM7Bit:
		septets := u.Alphabet.Encode(u.Text)
		units = len(septets)
		bytes = PackSeptets(septets)
	case Octet:
		var err error
		bytes, err = encodeOctets(u.Text, u.OctetCodec)
		if err != nil {
			return 0, nil, err
		}
		units = len(bytes)
	case UCS2:
		var err error
		bytes, err = EncodeUCS2(u.Text)
		if err != nil {
			return 0, nil, err
		}
		units = len(bytes)
	default:
		return 0, nil, fmt.Errorf("unsupported encoding %v", u.Encoding)
	}

	if units > MaxUserDataLength {
		return 0, nil, fmt.Errorf("user data too long: %d units", units)
	}
	return byte(units), bytes, nil
}

func encodeOctets(text string, codecName string) ([]byte, error) {
	codec, ok := OctetCodecs[codecName]
	if ok {
		return codec.NewEncoder().Bytes([]byte(text))
	}
	result := make([]byte, 0, len(text))
	for _, r := range text {
		if r > 0x7F {
			r = '?'
		}
		result = append(result, byte(r))
	}
	return result, nil
}

// DeliverPDU describes an SMS-DELIVER according to [TL] 9.2.2.1.
type DeliverPDU struct {
	Originator string
	ProtocolID byte
	Timestamp  Timestamp
	UserData   UserData
}

// Encode the SMS-DELIVER into its binary representation.
func (p DeliverPDU) Encode() ([]byte, error) {
	address, err := EncodeAddress(p.Originator)
	if err != nil {
		return nil, fmt.Errorf("cannot encode originator: %w", err)
	}
	udl, ud, err := p.UserData.Encode()
	if err != nil {
		return nil, err
	}

	result := make([]byte, 0, 1+len(address)+2+TimestampLength+1+len(ud))
	result = append(result, byte(Deliver))
	result = append(result, address...)
	result = append(result, p.ProtocolID, DataCodingScheme(p.UserData.Encoding))
	result = append(result, EncodeTimestamp(p.Timestamp)...)
	result = append(result, udl)
	result = append(result, ud...)
	return result, nil
}

// SubmitPDU describes an SMS-SUBMIT according to [TL] 9.2.2.2.
type SubmitPDU struct {
	MessageReference     byte
	Destination          string
	ProtocolID           byte
	ValidityPeriodFormat ValidityPeriodFormat
	// ValidityPeriod must have the length required by the ValidityPeriodFormat.
	ValidityPeriod []byte
	UserData       UserData
}

// Encode the SMS-SUBMIT into its binary representation.
func (p SubmitPDU) Encode() ([]byte, error) {
	if len(p.ValidityPeriod) != p.ValidityPeriodFormat.Length() {
		return nil, fmt.Errorf("validity period must have %d bytes, got %d", p.ValidityPeriodFormat.Length(), len(p.ValidityPeriod))
	}
	address, err := EncodeAddress(p.Destination)
	if err != nil {
		return nil, fmt.Errorf("cannot encode destination: %w", err)
	}
	udl, ud, err := p.UserData.Encode()
	if err != nil {
		return nil, err
	}

	header := byte(Submit) | byte(p.ValidityPeriodFormat)<<3
	result := make([]byte, 0, 2+len(address)+2+len(p.ValidityPeriod)+1+len(ud))
	result = append(result, header, p.MessageReference)
	result = append(result, address...)
	result = append(result, p.ProtocolID, DataCodingScheme(p.UserData.Encoding))
	result = append(result, p.ValidityPeriod...)
	result = append(result, udl)
	result = append(result, ud...)
	return result, nil
}
