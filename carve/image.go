package carve

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// LoadImage reads the whole file into memory.
func LoadImage(filename string) ([]byte, error) {
	result, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot load image: %w", err)
	}
	return result, nil
}

// Digest returns the SHA-256 of the image as lower case hex string.
func Digest(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}
