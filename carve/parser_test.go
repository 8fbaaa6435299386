package carve

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/sms-carver/tpdu"
)

var testTimestamp = tpdu.Timestamp{Year: 2019, Month: 12, Day: 24, Hour: 18, Minute: 30, Second: 0, Zone: 1}

func helloDeliver(t *testing.T) []byte {
	t.Helper()
	result, err := tpdu.DeliverPDU{
		Originator: "+33612345678",
		Timestamp:  testTimestamp,
		UserData:   tpdu.UserData{Encoding: tpdu.GSM7Bit, Text: "HELLO"},
	}.Encode()
	require.NoError(t, err)
	return result
}

func fill(length int, value byte) []byte {
	result := make([]byte, length)
	for i := range result {
		result[i] = value
	}
	return result
}

func join(parts ...[]byte) []byte {
	var result []byte
	for _, part := range parts {
		result = append(result, part...)
	}
	return result
}

func findRecord(records []Record, offset int) (Record, bool) {
	for _, record := range records {
		if record.Offset() == offset {
			return record, true
		}
	}
	return nil, false
}

func offsets(records []Record) []int {
	result := make([]int, len(records))
	for i, record := range records {
		result[i] = record.Offset()
	}
	return result
}

func TestParse_Deliver(t *testing.T) {
	for _, k := range []int{0, 1, 5, 100} {
		image := join(fill(k, 0xFF), helloDeliver(t), fill(3, 0xFF))

		records, err := NewDeliverParser(tpdu.TextOptions{}).Parse(context.Background(), image)
		require.NoError(t, err)

		record, ok := findRecord(records, k)
		require.True(t, ok, "no record at offset %d: %v", k, offsets(records))
		assert.Equal(t, Received, record.Status())
		assert.Equal(t, tpdu.Deliver, record.Kind())
		source, ok := record.Source()
		assert.True(t, ok)
		assert.Equal(t, "+33612345678", source)
		_, ok = record.Destination()
		assert.False(t, ok)
		text, ok := record.Text()
		assert.True(t, ok)
		assert.Equal(t, "HELLO", text)
		localDate, ok := record.LocalDate()
		assert.True(t, ok)
		assert.Equal(t, "24/12/2019 18:30:00 (UTC+01)", localDate)
		utcDate, ok := record.UTCDate()
		assert.True(t, ok)
		assert.Equal(t, "24-12-2019 17:30:00", utcDate)

		pdu := record.(*PduMessage)
		assert.Equal(t, byte(0x00), pdu.Header())
		assert.Equal(t, 11, pdu.AddressLength())
		assert.Equal(t, 5, pdu.UserDataLength())
		assert.Equal(t, []byte{0xC8, 0x22, 0x93, 0xF9, 0x04}, pdu.UserData())
		assert.Equal(t, tpdu.EncodeTimestamp(testTimestamp), pdu.Timestamp())
		assert.Empty(t, pdu.ValidityPeriod())
		assert.Equal(t, tpdu.GSM7Bit, pdu.Encoding())
		timestamp, ok := pdu.Time()
		assert.True(t, ok)
		assert.Equal(t, 17, timestamp.UTC().Hour())
	}
}

func TestParse_DeliverWithInvalidTimestamp(t *testing.T) {
	image := helloDeliver(t)
	image[12] = 0x31 // month 13

	records, err := NewDeliverParser(tpdu.TextOptions{}).Parse(context.Background(), image)
	require.NoError(t, err)

	record, ok := findRecord(records, 0)
	require.True(t, ok)
	_, ok = record.LocalDate()
	assert.False(t, ok)
	_, ok = record.UTCDate()
	assert.False(t, ok)
	_, ok = record.(*PduMessage).Time()
	assert.False(t, ok)
}

func TestParse_Submit(t *testing.T) {
	tt := []struct {
		desc string
		pdu  tpdu.SubmitPDU
		text string
	}{
		{
			desc: "no validity period",
			pdu: tpdu.SubmitPDU{
				MessageReference: 0x17,
				Destination:      "+4912345",
				UserData:         tpdu.UserData{Encoding: tpdu.GSM7Bit, Text: "Hi there"},
			},
			text: "Hi there",
		},
		{
			desc: "relative validity period",
			pdu: tpdu.SubmitPDU{
				MessageReference:     0x18,
				Destination:          "+4912345",
				ValidityPeriodFormat: tpdu.RelativeValidityPeriod,
				ValidityPeriod:       []byte{0xAA},
				UserData:             tpdu.UserData{Encoding: tpdu.Octet, Text: "Hi there"},
			},
			text: "Hi there",
		},
		{
			desc: "absolute validity period",
			pdu: tpdu.SubmitPDU{
				MessageReference:     0x19,
				Destination:          "+4912345",
				ValidityPeriodFormat: tpdu.AbsoluteValidityPeriod,
				ValidityPeriod:       tpdu.EncodeTimestamp(testTimestamp),
				UserData:             tpdu.UserData{Encoding: tpdu.UCS2, Text: "Grüße"},
			},
			text: "Grüße",
		},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			pdu, err := tc.pdu.Encode()
			require.NoError(t, err)
			image := join(fill(3, 0xFF), pdu, fill(3, 0xFF))

			records, err := NewSubmitParser(tpdu.TextOptions{}).Parse(context.Background(), image)
			require.NoError(t, err)

			record, ok := findRecord(records, 3)
			require.True(t, ok, "%v", offsets(records))
			assert.Equal(t, Sent, record.Status())
			destination, ok := record.Destination()
			assert.True(t, ok)
			assert.Equal(t, "+4912345", destination)
			_, ok = record.Source()
			assert.False(t, ok)
			text, _ := record.Text()
			assert.Equal(t, tc.text, text)
			_, ok = record.LocalDate()
			assert.False(t, ok, "a validity period never provides a date")

			message := record.(*PduMessage)
			assert.Equal(t, tc.pdu.MessageReference, message.MessageReference())
			if len(tc.pdu.ValidityPeriod) == 0 {
				assert.Empty(t, message.ValidityPeriod())
			} else {
				assert.Equal(t, tc.pdu.ValidityPeriod, message.ValidityPeriod())
			}
		})
	}
}

func TestParse_AllZero(t *testing.T) {
	registry := DefaultRegistry(tpdu.TextOptions{})
	for _, length := range []int{0, 1, 2, 17, 1000} {
		records, err := RunParsers(context.Background(), registry.Parsers(), make([]byte, length))
		require.NoError(t, err)
		assert.Empty(t, records, "length %d", length)
	}
}

func TestParse_RandomImagesKeepInvariants(t *testing.T) {
	random := rand.New(rand.NewSource(23040))
	registry := DefaultRegistry(tpdu.TextOptions{Alphabet: tpdu.DefaultAlphabet})
	for i := 0; i < 50; i++ {
		image := make([]byte, random.Intn(4096))
		random.Read(image)

		for _, parser := range registry.Parsers() {
			records, err := parser.Parse(context.Background(), image)
			require.NoError(t, err)

			lastOffset := -1
			for _, record := range records {
				assert.True(t, record.Offset() > lastOffset, "offsets must be ascending")
				lastOffset = record.Offset()
				assert.True(t, record.Offset() < len(image))

				pdu := record.(*PduMessage)
				assert.Equal(t, parser.Kind(), tpdu.MessageTypeOf(pdu.Header()))
				assert.Equal(t, StatusOf(parser.Kind()), record.Status())
				assert.Equal(t, image[record.Offset()], pdu.Header())
				assert.True(t, pdu.UserDataLength() > 0)
				_, ok := tpdu.SelectEncoding(pdu.DataCodingScheme())
				assert.True(t, ok)
				_, ok = record.Text()
				assert.True(t, ok)

				_, hasLocal := record.LocalDate()
				_, hasTime := pdu.Time()
				assert.Equal(t, hasLocal, hasTime)
				if parser.Kind() == tpdu.Submit {
					assert.False(t, hasLocal)
				}
				_, hasUTC := record.UTCDate()
				if hasUTC {
					assert.True(t, hasLocal)
				}
			}
		}
	}
}

func TestParse_Overlap(t *testing.T) {
	inner := helloDeliver(t)
	outerHeader := []byte{
		0x00,
		0x04, 0x81, 0x21, 0x43,
		0x00, 0x04,
	}
	outer := join(outerHeader, tpdu.EncodeTimestamp(testTimestamp), []byte{byte(len(inner))}, inner)
	innerOffset := len(outer) - len(inner)
	parser := NewDeliverParser(tpdu.TextOptions{})

	records, err := parser.Parse(context.Background(), outer)
	require.NoError(t, err)
	_, ok := findRecord(records, 0)
	assert.True(t, ok)
	_, ok = findRecord(records, innerOffset)
	assert.True(t, ok, "overlapping record expected at %d: %v", innerOffset, offsets(records))

	records, err = parser.Parse(context.Background(), outer, WithOverlap(false))
	require.NoError(t, err)
	assert.Equal(t, []int{0}, offsets(records))
}

func TestParse_NoOverlapContinuesAfterRecord(t *testing.T) {
	pdu := helloDeliver(t)
	image := join(pdu, pdu, fill(2, 0xFF), pdu)

	records, err := NewDeliverParser(tpdu.TextOptions{}).Parse(context.Background(), image, WithOverlap(false))
	require.NoError(t, err)
	assert.Equal(t, []int{0, len(pdu), 2*len(pdu) + 2}, offsets(records))
}

func TestParse_WorkersYieldSameResult(t *testing.T) {
	random := rand.New(rand.NewSource(38))
	pdu := helloDeliver(t)
	image := make([]byte, 20000)
	random.Read(image)
	embedded := []int{0, 1234, 5000, 9990, 10020, 19000}
	for _, offset := range embedded {
		copy(image[offset:], pdu)
	}
	parser := NewDeliverParser(tpdu.TextOptions{})

	expected, err := parser.Parse(context.Background(), image)
	require.NoError(t, err)
	for _, offset := range embedded {
		_, ok := findRecord(expected, offset)
		assert.True(t, ok, "offset %d", offset)
	}

	for _, workers := range []int{2, 3, 7, 64} {
		actual, err := parser.Parse(context.Background(), image, WithWorkers(workers))
		require.NoError(t, err)
		require.Equal(t, offsets(expected), offsets(actual), "%d workers", workers)
		for i := range expected {
			assert.Equal(t, Row(expected[i]), Row(actual[i]))
		}
	}
}

func TestParse_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, err := NewDeliverParser(tpdu.TextOptions{}).Parse(ctx, helloDeliver(t), WithWorkers(2))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, records)
}

func TestParse_Progress(t *testing.T) {
	image := make([]byte, 3*progressInterval+17)
	var calls [][2]int
	_, err := NewSubmitParser(tpdu.TextOptions{}).Parse(context.Background(), image,
		WithWorkers(3),
		WithProgress(func(done, total int) {
			calls = append(calls, [2]int{done, total})
		}),
	)
	require.NoError(t, err)

	require.NotEmpty(t, calls)
	last := 0
	for _, call := range calls {
		assert.Equal(t, len(image), call[1])
		assert.True(t, call[0] >= last)
		last = call[0]
	}
	assert.Equal(t, [2]int{len(image), len(image)}, calls[len(calls)-1])
}

func TestSteps(t *testing.T) {
	tt := []struct {
		desc     string
		step     Step
		image    []byte
		partial  Fields
		consumed int
		invalid  bool
	}{
		{desc: "header matches", step: HeaderStep(tpdu.Submit), image: []byte{0x11}, consumed: 1},
		{desc: "header does not match", step: HeaderStep(tpdu.Deliver), image: []byte{0x11}, invalid: true},
		{desc: "no validity period", step: ValidityPeriodStep(), image: []byte{}, partial: Fields{Header: 0x01}, consumed: 0},
		{desc: "relative validity period", step: ValidityPeriodStep(), image: []byte{0xAA}, partial: Fields{Header: 0x11}, consumed: 1},
		{desc: "truncated validity period", step: ValidityPeriodStep(), image: []byte{0xAA}, partial: Fields{Header: 0x19}, invalid: true},
		{desc: "protocol", step: ProtocolStep(), image: []byte{0x00, 0x08}, consumed: 2},
		{desc: "truncated protocol", step: ProtocolStep(), image: []byte{0x00}, invalid: true},
		{desc: "timestamp", step: TimestampStep(), image: make([]byte, 7), consumed: 7},
		{desc: "truncated timestamp", step: TimestampStep(), image: make([]byte, 6), invalid: true},
		{desc: "7-bit user data", step: UserDataStep(tpdu.TextOptions{}), image: []byte{0x08, 1, 2, 3, 4, 5, 6, 7}, consumed: 8},
		{desc: "truncated 7-bit user data", step: UserDataStep(tpdu.TextOptions{}), image: []byte{0x09, 1, 2, 3, 4, 5, 6, 7}, invalid: true},
		{desc: "8-bit user data", step: UserDataStep(tpdu.TextOptions{}), image: []byte{0x02, 'H', 'i'}, partial: Fields{DataCodingScheme: 0x04}, consumed: 3},
		{desc: "16-bit user data", step: UserDataStep(tpdu.TextOptions{}), image: []byte{0x02, 0x00, 'H'}, partial: Fields{DataCodingScheme: 0x08}, consumed: 3},
		{desc: "empty user data", step: UserDataStep(tpdu.TextOptions{}), image: []byte{0x00}, invalid: true},
		{desc: "unsupported data coding scheme", step: UserDataStep(tpdu.TextOptions{}), image: []byte{0x01, 'x'}, partial: Fields{DataCodingScheme: 0x0C}, invalid: true},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			fields, consumed, ok := tc.step.Decode(tc.image, 0, tc.partial)
			if tc.invalid {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tc.consumed, consumed)
			assert.NotZero(t, fields.Present)
		})
	}
}

func TestFields_Merge(t *testing.T) {
	var fields Fields
	fields.Merge(Fields{Present: HeaderField, Header: 0x11})
	fields.Merge(Fields{Present: AddressField, Address: tpdu.Address{Number: "123"}, Header: 0x22})

	assert.True(t, fields.Has(HeaderField|AddressField))
	assert.False(t, fields.Has(UserDataField))
	assert.Equal(t, byte(0x11), fields.Header)
	assert.Equal(t, "123", fields.Address.Number)
}
