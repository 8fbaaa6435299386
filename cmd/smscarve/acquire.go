package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ftl/sms-carver/acquire"
	"github.com/ftl/sms-carver/carve"
	"github.com/ftl/sms-carver/modem"
	"github.com/ftl/sms-carver/serial"
	"github.com/ftl/sms-carver/tpdu"
)

var (
	carveAcquired bool
	watchDevice   bool
)

var acquireCmd = &cobra.Command{
	Use:   "acquire <image>",
	Short: "Read the stored messages from a modem into an image file",
	Long: `acquire reads all short messages from the selected storages of a GSM modem or phone in PDU mode and
writes their TPDUs into the image file, separated by zero padding. If no port is given, the first serial
device that looks like a modem is used.`,
	Args: cobra.ExactArgs(1),
	RunE: runAcquire,
}

func init() {
	flags := acquireCmd.Flags()
	flags.String("port", "", "serial port of the modem (default: detect)")
	flags.Uint("baud", serial.DefaultBaudRate, "baud rate")
	flags.Bool("flow-control", false, "use RTS/CTS flow control")
	flags.StringSlice("storage", []string{string(acquire.SIM)}, "message storages to read: SM (sim), ME (phone), MT (any)")
	flags.Int("padding", 16, "number of zero bytes between two messages in the image")
	flags.Duration("timeout", 30*time.Second, "timeout for the acquisition")
	flags.BoolVar(&carveAcquired, "carve", false, "carve the acquired image")
	flags.BoolVar(&watchDevice, "watch", false, "keep running and print new incoming messages")

	bind("serial.port", flags, "port")
	bind("serial.baud_rate", flags, "baud")
	bind("serial.flow_control", flags, "flow-control")
	bind("serial.storages", flags, "storage")
	bind("serial.padding", flags, "padding")
	bind("serial.timeout", flags, "timeout")

	rootCmd.AddCommand(acquireCmd)
}

func runAcquire(cmd *cobra.Command, args []string) error {
	storages, err := cfg.Serial.StorageList()
	if err != nil {
		return err
	}

	serialConfig := cfg.Serial.Config()
	if serialConfig.PortName == "" {
		serialConfig.PortName, err = serial.FindModemPortName(serial.DefaultKeywords...)
		if err != nil {
			return err
		}
	}
	device, closer, err := serial.Open(serialConfig, modem.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", serialConfig.PortName, err)
	}
	defer closer.Close()
	logger.Info().Str("port", serialConfig.PortName).Msg("modem connected")

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Serial.Timeout)
	defer cancel()
	acquisition, err := acquireMessages(ctx, device, logger, storages...)
	if err != nil {
		return err
	}

	image := acquire.Image(acquisition.Messages, cfg.Serial.Padding)
	if err := os.WriteFile(args[0], image, 0o600); err != nil {
		return fmt.Errorf("cannot write image: %w", err)
	}
	logger.Info().Str("image", args[0]).Int("size", len(image)).Str("sha256", carve.Digest(image)).Msg("image written")
	if err := printStoredPDUs(cmd.OutOrStdout(), acquisition.Messages, cfg.Serial.Padding); err != nil {
		return err
	}

	if carveAcquired {
		run, err := carveImage(cmd.Context(), cfg.Carve, image, logger, nil)
		if err != nil {
			return err
		}
		if err := printRecords(cmd.OutOrStdout(), run.Records); err != nil {
			return err
		}
	}

	if watchDevice {
		return watchMessages(cmd.Context(), cmd.OutOrStdout(), device)
	}
	return nil
}

// acquireMessages synchronizes with the modem and reads all messages from the given storages.
func acquireMessages(ctx context.Context, device *modem.Modem, logger zerolog.Logger, storages ...acquire.Storage) (acquire.Acquisition, error) {
	if err := device.Sync(ctx); err != nil {
		return acquire.Acquisition{}, fmt.Errorf("no response from modem: %w", err)
	}
	if err := device.Setup(ctx); err != nil {
		return acquire.Acquisition{}, err
	}

	result, err := acquire.Acquire(ctx, acquire.RequesterFunc(device.AT), logger, storages...)
	if err != nil {
		return acquire.Acquisition{}, err
	}
	for _, usage := range result.Usage {
		logger.Info().Str("storage", string(usage.Storage)).Int("used", usage.Used).Int("total", usage.Total).Msg("storage usage")
	}
	if result.IMEI != "" {
		logger.Info().Str("imei", result.IMEI).Msg("device identified")
	}
	return result, nil
}

func printStoredPDUs(w io.Writer, pdus []acquire.StoredPDU, padding int) error {
	offsets := acquire.Offsets(pdus, padding)
	data := pterm.TableData{{"Index", "Status", "Offset", "Length", "SMSC"}}
	for i, pdu := range pdus {
		data = append(data, []string{
			strconv.Itoa(pdu.Index),
			pdu.Status.String(),
			fmt.Sprintf("0x%x", offsets[i]),
			strconv.Itoa(len(pdu.TPDU)),
			tpdu.BinaryToHex(pdu.SMSC),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}

// watchMessages prints every message that the device reports as newly stored, until the context is done.
func watchMessages(ctx context.Context, w io.Writer, device *modem.Modem) error {
	requester := acquire.RequesterFunc(device.AT)
	options, err := cfg.Carve.TextOptions()
	if err != nil {
		return err
	}
	parsers := carve.DefaultRegistry(options).Parsers()

	acquire.WatchNewMessages(device, func(storage acquire.Storage, index int) {
		if _, err := requester.Request(ctx, acquire.SelectStorage(storage)); err != nil {
			logger.Error().Err(err).Str("storage", string(storage)).Msg("cannot select storage")
			return
		}
		pdu, err := acquire.ReadStoredPDU(ctx, requester, index)
		if err != nil {
			logger.Error().Err(err).Int("index", index).Msg("cannot read new message")
			return
		}
		records, err := carve.RunParsers(ctx, parsers, pdu.TPDU, carve.WithOverlap(false))
		if err != nil {
			return
		}
		for _, record := range records {
			if record.Offset() != 0 {
				continue
			}
			logger.Info().Str("storage", string(storage)).Int("index", index).Msg("new message")
			_ = printRecords(w, []carve.Record{record})
		}
	})
	logger.Info().Msg("waiting for new messages, press Ctrl+C to stop")

	device.WaitUntilClosed(ctx)
	return nil
}
