package main

import (
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ftl/sms-carver/carve"
	"github.com/ftl/sms-carver/tpdu"
)

var (
	synthCount int
	synthGap   int
	synthSeed  int64
	synthNoise bool
)

var synthCmd = &cobra.Command{
	Use:   "synth <image>",
	Short: "Write a synthetic test image with random SMS TPDUs",
	Long: `synth writes an image with randomly generated SMS-SUBMIT and SMS-DELIVER TPDUs in all supported
encodings, separated by filler bytes. The offsets of the messages are printed, so that the results of a
carving run can be checked against them.`,
	Args: cobra.ExactArgs(1),
	RunE: runSynth,
}

func init() {
	flags := synthCmd.Flags()
	flags.IntVar(&synthCount, "count", 20, "number of messages")
	flags.IntVar(&synthGap, "gap", 32, "number of filler bytes between two messages")
	flags.Int64Var(&synthSeed, "seed", 1, "seed of the random generator")
	flags.BoolVar(&synthNoise, "noise", false, "fill the gaps with random bytes instead of 0xFF")

	rootCmd.AddCommand(synthCmd)
}

func runSynth(cmd *cobra.Command, args []string) error {
	random := rand.New(rand.NewSource(synthSeed))
	image, offsets, err := synthesize(random, synthCount, synthGap, synthNoise)
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], image, 0o600); err != nil {
		return fmt.Errorf("cannot write image: %w", err)
	}
	logger.Info().Str("image", args[0]).Int("size", len(image)).Str("sha256", carve.Digest(image)).Msg("image written")

	for _, offset := range offsets {
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "0x%x\n", offset); err != nil {
			return err
		}
	}
	return nil
}

var synthWords = []string{
	"hello", "call", "me", "back", "please", "meet", "at", "the", "station", "tomorrow", "running", "late",
	"see", "you", "soon", "ok", "thanks", "where", "are", "dinner", "tonight", "bring", "keys",
}

// synthesize builds an image with count random TPDUs. Every TPDU is preceded by gap filler bytes, the
// image ends with gap filler bytes. It returns the image and the offsets of the TPDUs.
func synthesize(random *rand.Rand, count int, gap int, noise bool) ([]byte, []int, error) {
	var image []byte
	fill := func() {
		for i := 0; i < gap; i++ {
			filler := byte(0xFF)
			if noise {
				filler = byte(random.Intn(0x100))
			}
			image = append(image, filler)
		}
	}

	offsets := make([]int, 0, count)
	for i := 0; i < count; i++ {
		fill()
		pdu, err := synthPDU(random)
		if err != nil {
			return nil, nil, err
		}
		offsets = append(offsets, len(image))
		image = append(image, pdu...)
	}
	fill()
	return image, offsets, nil
}

func synthPDU(random *rand.Rand) ([]byte, error) {
	userData := tpdu.UserData{
		Encoding: []tpdu.Encoding{tpdu.GSM7Bit, tpdu.Octet, tpdu.UCS2}[random.Intn(3)],
		Text:     synthText(random),
	}
	number := synthNumber(random)

	if random.Intn(2) == 0 {
		return tpdu.DeliverPDU{
			Originator: number,
			Timestamp:  synthTimestamp(random),
			UserData:   userData,
		}.Encode()
	}
	return tpdu.SubmitPDU{
		MessageReference:     byte(random.Intn(0x100)),
		Destination:          number,
		ValidityPeriodFormat: tpdu.RelativeValidityPeriod,
		ValidityPeriod:       []byte{byte(random.Intn(0x100))},
		UserData:             userData,
	}.Encode()
}

func synthText(random *rand.Rand) string {
	words := make([]string, 1+random.Intn(8))
	for i := range words {
		words[i] = synthWords[random.Intn(len(synthWords))]
	}
	return strings.Join(words, " ")
}

func synthNumber(random *rand.Rand) string {
	var result strings.Builder
	if random.Intn(4) > 0 {
		result.WriteByte('+')
	}
	result.WriteByte(byte('1' + random.Intn(9)))
	for i := 0; i < 9+random.Intn(4); i++ {
		result.WriteByte(byte('0' + random.Intn(10)))
	}
	return result.String()
}

func synthTimestamp(random *rand.Rand) tpdu.Timestamp {
	year := 2000 + random.Intn(30)
	month := 1 + random.Intn(12)
	return tpdu.Timestamp{
		Year:   year,
		Month:  month,
		Day:    1 + random.Intn(tpdu.DaysInMonth(month, year)),
		Hour:   random.Intn(24),
		Minute: random.Intn(60),
		Second: random.Intn(60),
		Zone:   random.Intn(5) - 2,
	}
}
