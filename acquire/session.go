package acquire

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Acquisition is the result of reading all stored messages from a device.
type Acquisition struct {
	IMEI     string
	Usage    []StorageUsage
	Messages []StoredPDU
}

// Acquire switches the device into PDU mode and reads all messages from the given storages. The IMEI is optional,
// devices that do not report it are still acquired.
func Acquire(ctx context.Context, requester Requester, logger zerolog.Logger, storages ...Storage) (Acquisition, error) {
	var result Acquisition

	imei, err := RequestIMEI(ctx, requester)
	if err != nil {
		logger.Warn().Err(err).Msg("cannot read IMEI")
	} else {
		result.IMEI = imei
	}

	_, err = requester.Request(ctx, SetPDUMode)
	if err != nil {
		return Acquisition{}, fmt.Errorf("cannot select PDU mode: %w", err)
	}

	if len(storages) == 0 {
		storages = []Storage{SIM}
	}
	for _, storage := range storages {
		_, err = requester.Request(ctx, SelectStorage(storage))
		if err != nil {
			return Acquisition{}, fmt.Errorf("cannot select storage %s: %w", storage, err)
		}
		usage, err := RequestStorageUsage(ctx, requester)
		if err != nil {
			logger.Warn().Err(err).Str("storage", string(storage)).Msg("cannot read storage usage")
		} else {
			result.Usage = append(result.Usage, usage)
		}

		pdus, err := ListStoredPDUs(ctx, requester, AllMessages)
		if err != nil {
			return Acquisition{}, fmt.Errorf("cannot list messages in %s: %w", storage, err)
		}
		logger.Info().Str("storage", string(storage)).Int("messages", len(pdus)).Msg("messages listed")
		result.Messages = append(result.Messages, pdus...)
	}

	return result, nil
}

// Indicator delivers unsolicited result codes, see modem.Modem.AddIndication.
type Indicator interface {
	AddIndication(prefix string, trailingLines int, handler func(lines []string))
}

var newMessageIndication = regexp.MustCompile(`^\+CMTI: *"(\w+)",(\d+)$`)

// WatchNewMessages calls the handler whenever the device indicates that a new message was stored
// according to 27.005 3.4.1
func WatchNewMessages(indicator Indicator, handler func(storage Storage, index int)) {
	indicator.AddIndication("+CMTI:", 0, func(lines []string) {
		parts := newMessageIndication.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(lines[0])))
		if len(parts) != 3 {
			return
		}
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			return
		}
		handler(Storage(parts[1]), index)
	})
}
