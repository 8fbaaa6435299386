package tpdu

import (
	"encoding/hex"
	"regexp"
	"strings"
)

var hexSanitizer = regexp.MustCompile(`\s+`)

// HexToBinary converts the hex representation used by modems and in listings into a slice of bytes.
// Whitespace is ignored.
func HexToBinary(s string) ([]byte, error) {
	sanitized := hexSanitizer.ReplaceAllString(s, "")
	return hex.DecodeString(sanitized)
}

// BinaryToHex converts a slice of bytes into upper case hex, as modems expect it.
func BinaryToHex(pdu []byte) string {
	return strings.ToUpper(hex.EncodeToString(pdu))
}
