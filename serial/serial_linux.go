//go:build linux

package serial

import (
	"github.com/hedhyw/Go-Serial-Detector/pkg/v1/serialdet"
)

// FindModemPortName returns the path of the first serial device with a description that contains one of the
// given keywords. Without keywords, DefaultKeywords are used.
func FindModemPortName(keywords ...string) (string, error) {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	devices, err := serialdet.List()
	if err != nil {
		return "", err
	}

	for _, device := range devices {
		if matchesKeywords(device.Description(), keywords) {
			return device.Path(), nil
		}
	}

	return "", ErrNoModemFound
}
