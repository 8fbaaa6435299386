package tpdu

import "fmt"

const hexDigits = "0123456789abcdef"

// FillNibble is the value used to pad an odd number of digits to a full octet, see [TL] 9.1.2.3
const FillNibble byte = 0x0F

// NibbleDigits decodes a string of semi-octets, low nibble first, according to [TL] 9.1.2.3.
//
// In numeric mode only decimal digits are accepted. A low nibble that is not a decimal digit
// rejects the whole string. A high nibble that is not a decimal digit is taken as fill value:
// it ends the string, which then has an odd number of digits, and nothing may follow it.
// In non-numeric mode both nibbles of every byte are emitted as hex digits.
func NibbleDigits(bytes []byte, numeric bool) (string, bool) {
	result := make([]byte, 0, 2*len(bytes))
	filled := false
	for _, b := range bytes {
		low := b & 0x0F
		high := b >> 4
		if !numeric {
			result = append(result, hexDigits[low], hexDigits[high])
			continue
		}

		if filled || low > 9 {
			return "", false
		}
		result = append(result, '0'+low)
		if high > 9 {
			filled = true
			continue
		}
		result = append(result, '0'+high)
	}
	return string(result), true
}

// decimalField decodes one semi-octet as a decimal number, as used for the fields of a time stamp.
func decimalField(b byte) (int, bool) {
	digits, ok := NibbleDigits([]byte{b}, true)
	if !ok {
		return 0, false
	}
	result := 0
	for _, d := range digits {
		result = result*10 + int(d-'0')
	}
	return result, true
}

// EncodeDigits encodes the given decimal digits as semi-octets, low nibble first. An odd number
// of digits is padded with the fill nibble.
func EncodeDigits(digits string) ([]byte, error) {
	result := make([]byte, 0, (len(digits)+1)/2)
	for i := 0; i < len(digits); i += 2 {
		low, err := digitValue(digits[i])
		if err != nil {
			return nil, err
		}
		high := FillNibble
		if i+1 < len(digits) {
			high, err = digitValue(digits[i+1])
			if err != nil {
				return nil, err
			}
		}
		result = append(result, high<<4|low)
	}
	return result, nil
}

func digitValue(c byte) (byte, error) {
	if c < '0' || c > '9' {
		return 0, fmt.Errorf("invalid digit %q", c)
	}
	return c - '0', nil
}

// encodeDecimalField encodes a number between 0 and 99 as one semi-octet.
func encodeDecimalField(value int) byte {
	value = value % 100
	return byte(value%10)<<4 | byte(value/10)
}
