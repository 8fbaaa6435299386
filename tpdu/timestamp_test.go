package tpdu

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTimestamp(t *testing.T) {
	tt := []struct {
		desc     string
		value    []byte
		expected Timestamp
		local    string
		utc      string
		invalid  bool
	}{
		{
			desc:     "positive zone",
			value:    []byte{0x91, 0x21, 0x42, 0x81, 0x03, 0x00, 0x40},
			expected: Timestamp{Year: 2019, Month: 12, Day: 24, Hour: 18, Minute: 30, Second: 0, Zone: 1},
			local:    "24/12/2019 18:30:00 (UTC+01)",
			utc:      "24-12-2019 17:30:00",
		},
		{
			desc:     "negative zone",
			value:    []byte{0x91, 0x21, 0x42, 0x81, 0x03, 0x00, 0x29},
			expected: Timestamp{Year: 2019, Month: 12, Day: 24, Hour: 18, Minute: 30, Second: 0, Zone: -3},
			local:    "24/12/2019 18:30:00 (UTC-03)",
			utc:      "24-12-2019 21:30:00",
		},
		{
			desc:     "quarter hours are truncated",
			value:    []byte{0x02, 0x10, 0x10, 0x00, 0x00, 0x00, 0x22},
			expected: Timestamp{Year: 2020, Month: 1, Day: 1, Hour: 0, Minute: 0, Second: 0, Zone: 5},
			local:    "01/01/2020 00:00:00 (UTC+05)",
			utc:      "31-12-2019 19:00:00",
		},
		{
			desc:     "last century",
			value:    []byte{0x15, 0x60, 0x03, 0x21, 0x54, 0x95, 0x00},
			expected: Timestamp{Year: 1951, Month: 6, Day: 30, Hour: 12, Minute: 45, Second: 59, Zone: 0},
			local:    "30/06/1951 12:45:59 (UTC+00)",
			utc:      "30-06-1951 12:45:59",
		},
		{
			desc:     "pivot year",
			value:    []byte{0x05, 0x10, 0x10, 0x00, 0x00, 0x00, 0x00},
			expected: Timestamp{Year: 2050, Month: 1, Day: 1, Zone: 0},
			local:    "01/01/2050 00:00:00 (UTC+00)",
			utc:      "01-01-2050 00:00:00",
		},
		{
			desc:    "too short",
			value:   []byte{0x91, 0x21, 0x42, 0x81, 0x03, 0x00},
			invalid: true,
		},
		{
			desc:    "month out of range",
			value:   []byte{0x91, 0x31, 0x42, 0x81, 0x03, 0x00, 0x40},
			invalid: true,
		},
		{
			desc:    "day zero",
			value:   []byte{0x91, 0x21, 0x00, 0x81, 0x03, 0x00, 0x40},
			invalid: true,
		},
		{
			desc:    "hour out of range",
			value:   []byte{0x91, 0x21, 0x42, 0x42, 0x03, 0x00, 0x40},
			invalid: true,
		},
		{
			desc:    "minute out of range",
			value:   []byte{0x91, 0x21, 0x42, 0x81, 0x06, 0x00, 0x40},
			invalid: true,
		},
		{
			desc:    "invalid digit",
			value:   []byte{0x91, 0x21, 0x42, 0x8A, 0x03, 0x00, 0x40},
			invalid: true,
		},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			actual, ok := DecodeTimestamp(tc.value)
			if tc.invalid {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tc.expected, actual)
			assert.Equal(t, tc.local, actual.Local())

			utc, ok := actual.UTC()
			require.True(t, ok)
			assert.Equal(t, tc.utc, utc.UTCString())
		})
	}
}

func TestTimestamp_UTCRollover(t *testing.T) {
	tt := []struct {
		desc     string
		value    Timestamp
		expected Timestamp
	}{
		{
			desc:     "into leap day",
			value:    Timestamp{Year: 2020, Month: 3, Day: 1, Hour: 0, Minute: 30, Zone: 2},
			expected: Timestamp{Year: 2020, Month: 2, Day: 29, Hour: 22, Minute: 30},
		},
		{
			desc:     "end of february",
			value:    Timestamp{Year: 2019, Month: 3, Day: 1, Hour: 0, Minute: 30, Zone: 2},
			expected: Timestamp{Year: 2019, Month: 2, Day: 28, Hour: 22, Minute: 30},
		},
		{
			desc:     "century is not a leap year",
			value:    Timestamp{Year: 1900, Month: 3, Day: 1, Hour: 1, Zone: 3},
			expected: Timestamp{Year: 1900, Month: 2, Day: 28, Hour: 22},
		},
		{
			desc:     "into next year",
			value:    Timestamp{Year: 2019, Month: 12, Day: 31, Hour: 23, Zone: -2},
			expected: Timestamp{Year: 2020, Month: 1, Day: 1, Hour: 1},
		},
		{
			desc:     "into previous year",
			value:    Timestamp{Year: 2020, Month: 1, Day: 1, Hour: 5, Zone: 12},
			expected: Timestamp{Year: 2019, Month: 12, Day: 31, Hour: 17},
		},
		{
			desc:     "end of april",
			value:    Timestamp{Year: 2021, Month: 4, Day: 30, Hour: 22, Zone: -4},
			expected: Timestamp{Year: 2021, Month: 5, Day: 1, Hour: 2},
		},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			actual, ok := tc.value.UTC()
			require.True(t, ok)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestTimestamp_UTCMatchesTime(t *testing.T) {
	random := rand.New(rand.NewSource(23040))
	for i := 0; i < 1000; i++ {
		value := randomTimestamp(random)

		utc, ok := value.UTC()
		require.True(t, ok, "%+v", value)
		assert.True(t, value.Time().Equal(utc.Time()), "%+v", value)

		localized, ok := utc.Localize(value.Zone)
		require.True(t, ok, "%+v", value)
		assert.Equal(t, value, localized)
	}
}

func TestTimestamp_EncodeDecode(t *testing.T) {
	random := rand.New(rand.NewSource(23038))
	for i := 0; i < 1000; i++ {
		value := randomTimestamp(random)
		value.Zone = random.Intn(39) - 19

		actual, ok := DecodeTimestamp(EncodeTimestamp(value))
		require.True(t, ok, "%+v", value)
		assert.Equal(t, value, actual)
	}
}

func TestLeapYear(t *testing.T) {
	assert.True(t, LeapYear(2000))
	assert.True(t, LeapYear(2024))
	assert.False(t, LeapYear(1900))
	assert.False(t, LeapYear(2023))
	assert.Equal(t, 29, DaysInMonth(2, 2024))
	assert.Equal(t, 28, DaysInMonth(2, 2100))
	assert.Equal(t, 30, DaysInMonth(11, 2023))
	assert.Equal(t, 31, DaysInMonth(12, 2023))
}

func randomTimestamp(random *rand.Rand) Timestamp {
	year := 1951 + random.Intn(100)
	month := 1 + random.Intn(12)
	return Timestamp{
		Year:   year,
		Month:  month,
		Day:    1 + random.Intn(DaysInMonth(month, year)),
		Hour:   random.Intn(24),
		Minute: random.Intn(60),
		Second: random.Intn(60),
		Zone:   random.Intn(2*MaxZoneHours+1) - MaxZoneHours,
	}
}
