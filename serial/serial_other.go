//go:build !linux

package serial

// FindModemPortName is only supported on Linux.
func FindModemPortName(keywords ...string) (string, error) {
	return "", ErrNoModemFound
}
