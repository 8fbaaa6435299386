package serial

import (
	"errors"
	"io"
	"strings"

	"github.com/jacobsa/go-serial/serial"

	"github.com/ftl/sms-carver/modem"
)

var (
	ErrNoModemFound = errors.New("no modem device found")
)

// DefaultKeywords identify modems by the description of their serial device.
var DefaultKeywords = []string{"modem", "gsm", "lte", "wwan", "quectel", "sierra", "simcom", "huawei", "telit", "u-blox"}

// DefaultBaudRate is used if no baud rate is configured.
const DefaultBaudRate = 115200

type Config struct {
	PortName    string
	BaudRate    uint
	FlowControl bool
}

func (c Config) openOptions() serial.OpenOptions {
	baudRate := c.BaudRate
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	return serial.OpenOptions{
		PortName:              c.PortName,
		BaudRate:              baudRate,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		RTSCTSFlowControl:     c.FlowControl,
		MinimumReadSize:       4,
		InterCharacterTimeout: 100,
	}
}

// Open the serial port and start a modem session on it. Closing the returned io.Closer ends the session.
func Open(config Config, options ...modem.Option) (*modem.Modem, io.Closer, error) {
	device, err := serial.Open(config.openOptions())
	if err != nil {
		return nil, nil, err
	}

	return modem.New(device, options...), device, nil
}

func matchesKeywords(description string, keywords []string) bool {
	description = strings.ToLower(description)
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(description, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
