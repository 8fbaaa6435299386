package tpdu

import (
	"fmt"
	"strings"
)

// UnpackSeptets unpacks a dense stream of 7-bit code units, least significant bits first, according to
// [ALPHA] 6.1.2.1. A buffer of n bytes yields exactly 8*n/7 septets (rounded down).
func UnpackSeptets(bytes []byte) []byte {
	count := len(bytes) * 8 / 7
	result := make([]byte, count)
	for i := range result {
		bit := i * 7
		index := bit / 8
		shift := uint(bit % 8)
		value := uint16(bytes[index]) >> shift
		if shift > 1 && index+1 < len(bytes) {
			value |= uint16(bytes[index+1]) << (8 - shift)
		}
		result[i] = byte(value & 0x7F)
	}
	return result
}

// PackSeptets packs the given 7-bit code units densely into bytes, least significant bits first.
func PackSeptets(septets []byte) []byte {
	result := make([]byte, (len(septets)*7+7)/8)
	for i, septet := range septets {
		bit := i * 7
		index := bit / 8
		shift := uint(bit % 8)
		value := uint16(septet&0x7F) << shift
		result[index] |= byte(value)
		if shift > 1 {
			result[index+1] |= byte(value >> 8)
		}
	}
	return result
}

// Alphabet maps septets to characters.
type Alphabet byte

// The supported alphabets.
//
// ApproximateAlphabet maps every septet to the character with the same code point. This is not the
// GSM 7-bit default alphabet, but it matches it for most of the printable ASCII range and it is
// the default, so that the output of earlier carving runs stays comparable.
// DefaultAlphabet is the GSM 7-bit default alphabet with the extension table according to [ALPHA] 6.2.1.
const (
	ApproximateAlphabet Alphabet = iota
	DefaultAlphabet
)

// AlphabetByName allows to access the alphabets by their name.
var AlphabetByName = map[string]Alphabet{
	"approximate": ApproximateAlphabet,
	"gsm":         DefaultAlphabet,
}

func (a Alphabet) String() string {
	for name, alphabet := range AlphabetByName {
		if alphabet == a {
			return name
		}
	}
	return fmt.Sprintf("alphabet(%d)", byte(a))
}

// Decode the given septets into text.
func (a Alphabet) Decode(septets []byte) string {
	var result strings.Builder
	result.Grow(len(septets))
	switch a {
	case DefaultAlphabet:
		for i := 0; i < len(septets); i++ {
			septet := septets[i] & 0x7F
			if septet != escapeSeptet {
				result.WriteRune(defaultAlphabet[septet])
				continue
			}
			if i+1 == len(septets) {
				result.WriteRune(' ')
				continue
			}
			i++
			extension, ok := defaultAlphabetExtension[septets[i]&0x7F]
			if !ok {
				extension = defaultAlphabet[septets[i]&0x7F]
			}
			result.WriteRune(extension)
		}
	default:
		for _, septet := range septets {
			result.WriteRune(rune(septet & 0x7F))
		}
	}
	return result.String()
}

// Encode the given text into septets. Characters that are not part of the alphabet are replaced by '?'.
func (a Alphabet) Encode(text string) []byte {
	result := make([]byte, 0, len(text))
	for _, r := range text {
		switch a {
		case DefaultAlphabet:
			if septet, ok := defaultAlphabetIndex[r]; ok {
				result = append(result, septet)
			} else if septet, ok := defaultAlphabetExtensionIndex[r]; ok {
				result = append(result, escapeSeptet, septet)
			} else {
				result = append(result, '?')
			}
		default:
			if r > 0x7F {
				r = '?'
			}
			result = append(result, byte(r))
		}
	}
	return result
}

const escapeSeptet byte = 0x1B

// defaultAlphabet according to [ALPHA] 6.2.1
var defaultAlphabet = [128]rune{
	'@', '£', '$', '¥', 'è', 'é', 'ù', 'ì', 'ò', 'Ç', '\n', 'Ø', 'ø', '\r', 'Å', 'å',
	'Δ', '_', 'Φ', 'Γ', 'Λ', 'Ω', 'Π', 'Ψ', 'Σ', 'Θ', 'Ξ', '\x1b', 'Æ', 'æ', 'ß', 'É',
	' ', '!', '"', '#', '¤', '%', '&', '\'', '(', ')', '*', '+', ',', '-', '.', '/',
	'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', ':', ';', '<', '=', '>', '?',
	'¡', 'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O',
	'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z', 'Ä', 'Ö', 'Ñ', 'Ü', '§',
	'¿', 'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o',
	'p', 'q', 'r', 's', 't', 'u', 'v', 'w', 'x', 'y', 'z', 'ä', 'ö', 'ñ', 'ü', 'à',
}

// defaultAlphabetExtension according to [ALPHA] 6.2.1.1
var defaultAlphabetExtension = map[byte]rune{
	0x0A: '\f',
	0x14: '^',
	0x28: '{',
	0x29: '}',
	0x2F: '\\',
	0x3C: '[',
	0x3D: '~',
	0x3E: ']',
	0x40: '|',
	0x65: '€',
}

var (
	defaultAlphabetIndex          = make(map[rune]byte, len(defaultAlphabet))
	defaultAlphabetExtensionIndex = make(map[rune]byte, len(defaultAlphabetExtension))
)

func init() {
	for septet, r := range defaultAlphabet {
		if byte(septet) == escapeSeptet {
			continue
		}
		defaultAlphabetIndex[r] = byte(septet)
	}
	for septet, r := range defaultAlphabetExtension {
		defaultAlphabetExtensionIndex[r] = septet
	}
}
