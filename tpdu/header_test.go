package tpdu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstOctet(t *testing.T) {
	tt := []struct {
		desc           string
		value          byte
		messageType    MessageType
		validityPeriod int
		udhi           bool
	}{
		{desc: "deliver", value: 0x04, messageType: Deliver, validityPeriod: 0},
		{desc: "submit without validity period", value: 0x01, messageType: Submit, validityPeriod: 0},
		{desc: "submit with relative validity period", value: 0x11, messageType: Submit, validityPeriod: 1},
		{desc: "submit with enhanced validity period", value: 0x09, messageType: Submit, validityPeriod: 7},
		{desc: "submit with absolute validity period and udh", value: 0x59, messageType: Submit, validityPeriod: 7, udhi: true},
		{desc: "reserved", value: 0x03, messageType: MessageType(3), validityPeriod: 0},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.messageType, MessageTypeOf(tc.value))
			assert.Equal(t, tc.validityPeriod, ValidityPeriodLength(tc.value))
			assert.Equal(t, tc.udhi, UserDataHeaderIndicator(tc.value))
		})
	}
}

func TestDecodeAddress(t *testing.T) {
	tt := []struct {
		desc     string
		value    []byte
		expected Address
		consumed int
		invalid  bool
	}{
		{
			desc:     "international",
			value:    []byte{0x0B, 0x91, 0x33, 0x16, 0x32, 0x54, 0x76, 0xF8, 0xFF},
			expected: Address{Digits: 11, Type: 0x91, Number: "+33612345678"},
			consumed: 8,
		},
		{
			desc:     "national",
			value:    []byte{0x04, 0x81, 0x21, 0x43},
			expected: Address{Digits: 4, Type: 0x81, Number: "1234"},
			consumed: 4,
		},
		{
			desc:     "zero length",
			value:    []byte{0x00, 0x81, 0x12},
			expected: Address{Type: 0x81},
			consumed: 2,
		},
		{
			desc:    "too short for zero length",
			value:   []byte{0x00},
			invalid: true,
		},
		{
			desc:    "too long",
			value:   append([]byte{25, 0x91}, make([]byte, 13)...),
			invalid: true,
		},
		{
			desc:    "truncated",
			value:   []byte{0x0B, 0x91, 0x33, 0x16},
			invalid: true,
		},
		{
			desc:    "invalid digit",
			value:   []byte{0x02, 0x81, 0x1A},
			invalid: true,
		},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			actual, consumed, ok := DecodeAddress(tc.value)
			if tc.invalid {
				assert.False(t, ok)
				return
			}
			assert.True(t, ok)
			assert.Equal(t, tc.expected, actual)
			assert.Equal(t, tc.consumed, consumed)
			assert.Equal(t, tc.expected.Number != "", actual.Present())
		})
	}
}

func TestDecodeAddress_MaxLength(t *testing.T) {
	value := []byte{24, 0x81}
	for i := 0; i < MaxAddressBytes; i++ {
		value = append(value, 0x99)
	}
	actual, consumed, ok := DecodeAddress(value)
	require.True(t, ok)
	assert.Equal(t, 2+MaxAddressBytes, consumed)
	assert.Len(t, actual.Number, 24)
}

func TestEncodeAddress(t *testing.T) {
	actual, err := EncodeAddress("+33612345678")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0B, 0x91, 0x33, 0x16, 0x32, 0x54, 0x76, 0xF8}, actual)

	decoded, consumed, ok := DecodeAddress(actual)
	require.True(t, ok)
	assert.Equal(t, len(actual), consumed)
	assert.Equal(t, "+33612345678", decoded.Number)
	assert.Equal(t, InternationalNumber, decoded.TypeOfNumber())

	_, err = EncodeAddress("+33-6")
	assert.Error(t, err)
}
