package tpdu

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

/* Text related types and functions */

// Encoding is the character set of the user data, selected by the data coding scheme according to [ALPHA] 4
type Encoding byte

// All supported encodings
const (
	GSM7Bit Encoding = iota
	Octet
	UCS2
)

func (e Encoding) String() string {
	switch e {
	case GSM7Bit:
		return "7-bit"
	case Octet:
		return "8-bit"
	case UCS2:
		return "16-bit"
	default:
		return fmt.Sprintf("encoding(%d)", byte(e))
	}
}

// SelectEncoding selects the encoding from the four least significant bits of the data coding scheme.
// Values 0 to 3 select the 7-bit default alphabet, 4 to 7 select 8-bit data, 8 to 11 select UCS2.
// All other values are not supported.
func SelectEncoding(dcs byte) (Encoding, bool) {
	switch dcs & 0x0F {
	case 0x00, 0x01, 0x02, 0x03:
		return GSM7Bit, true
	case 0x04, 0x05, 0x06, 0x07:
		return Octet, true
	case 0x08, 0x09, 0x0A, 0x0B:
		return UCS2, true
	default:
		return 0, false
	}
}

// DataCodingScheme returns the simplest data coding scheme value selecting the given encoding.
func DataCodingScheme(e Encoding) byte {
	switch e {
	case Octet:
		return 0x04
	case UCS2:
		return 0x08
	default:
		return 0x00
	}
}

// UserDataBytes returns the length in bytes of user data holding the given number of units
// (septets for the 7-bit alphabet, octets otherwise).
func UserDataBytes(e Encoding, units int) int {
	switch e {
	case GSM7Bit:
		return (units*7 + 7) / 8
	default:
		return units
	}
}

// OctetCodecs contains encoding.Encoding instances for the single byte character sets that may be used
// to decode 8-bit user data. The plain ASCII decoding with replacement is always available as "ASCII".
var OctetCodecs = map[string]encoding.Encoding{
	"ISO8859-1":   charmap.ISO8859_1,
	"ISO8859-2":   charmap.ISO8859_2,
	"ISO8859-5":   charmap.ISO8859_5,
	"ISO8859-7":   charmap.ISO8859_7,
	"ISO8859-9":   charmap.ISO8859_9,
	"ISO8859-15":  charmap.ISO8859_15,
	"CodePage437": charmap.CodePage437,
	"CodePage850": charmap.CodePage850,
	"CodePage866": charmap.CodePage866,
	"Windows1250": charmap.Windows1250,
	"Windows1251": charmap.Windows1251,
	"Windows1252": charmap.Windows1252,
	"KOI8R":       charmap.KOI8R,
}

// ASCII is the name of the default 8-bit decoding: bytes above 0x7F are replaced by U+FFFD.
const ASCII = "ASCII"

// OctetCodecNames returns the names of all supported 8-bit codecs, sorted.
func OctetCodecNames() []string {
	result := make([]string, 0, len(OctetCodecs)+1)
	result = append(result, ASCII)
	for name := range OctetCodecs {
		result = append(result, name)
	}
	sort.Strings(result[1:])
	return result
}

var ucs2Codec encoding.Encoding = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// TextOptions control how user data is turned into text.
type TextOptions struct {
	// Alphabet is used for 7-bit user data, the default is ApproximateAlphabet.
	Alphabet Alphabet
	// OctetCodec is the name of the codec used for 8-bit user data, see OctetCodecs. Empty means ASCII.
	OctetCodec string
}

// Validate checks that the options refer to known alphabets and codecs.
func (o TextOptions) Validate() error {
	if o.Alphabet != ApproximateAlphabet && o.Alphabet != DefaultAlphabet {
		return fmt.Errorf("unknown alphabet %d", o.Alphabet)
	}
	if o.OctetCodec == "" || o.OctetCodec == ASCII {
		return nil
	}
	if _, ok := OctetCodecs[o.OctetCodec]; !ok {
		return fmt.Errorf("unknown 8-bit codec %s", o.OctetCodec)
	}
	return nil
}

// DecodeText decodes the user data bytes using the given encoding. The result is truncated to the given
// number of units, as declared by the user data length.
func DecodeText(e Encoding, bytes []byte, units int, options TextOptions) string {
	switch e {
	case GSM7Bit:
		septets := UnpackSeptets(bytes)
		if len(septets) > units {
			septets = septets[:units]
		}
		return options.Alphabet.Decode(septets)
	case Octet:
		return truncateRunes(DecodeOctets(bytes, options.OctetCodec), units)
	case UCS2:
		return truncateRunes(DecodeUCS2(bytes), units)
	default:
		return ""
	}
}

// DecodeOctets decodes single byte text with the named codec. Bytes that cannot be decoded are replaced by U+FFFD.
func DecodeOctets(bytes []byte, codecName string) string {
	codec, ok := OctetCodecs[codecName]
	if !ok {
		return decodeASCII(bytes)
	}
	result, err := codec.NewDecoder().Bytes(bytes)
	if err != nil { // be lenient and fall back to ASCII
		return decodeASCII(bytes)
	}
	return string(result)
}

func decodeASCII(bytes []byte) string {
	var result strings.Builder
	result.Grow(len(bytes))
	for _, b := range bytes {
		if b > 0x7F {
			result.WriteRune(utf8.RuneError)
			continue
		}
		result.WriteByte(b)
	}
	return result.String()
}

// DecodeUCS2 decodes big-endian 16-bit text. Invalid code units and a trailing odd byte are replaced by U+FFFD.
func DecodeUCS2(bytes []byte) string {
	result, err := ucs2Codec.NewDecoder().Bytes(bytes)
	if err != nil {
		return strings.ToValidUTF8(string(result), string(utf8.RuneError)) + string(utf8.RuneError)
	}
	return string(result)
}

// EncodeUCS2 encodes the given text as big-endian 16-bit code units.
func EncodeUCS2(text string) ([]byte, error) {
	return ucs2Codec.NewEncoder().Bytes([]byte(text))
}

func truncateRunes(s string, n int) string {
	if n < 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
