package tpdu

import (
	"fmt"
	"time"
)

// TimestampLength is the length of an encoded TP-SCTS or absolute TP-VP in bytes.
const TimestampLength = 7

// CenturyPivot decides the century of a two digit year: years above the pivot belong to the 20th century.
const CenturyPivot = 50

// MaxZoneHours is the largest absolute time zone offset that is accepted.
const MaxZoneHours = 24

// Timestamp is a decoded service centre time stamp according to [TL] 9.2.3.11.
// Zone is the offset to UTC in whole hours.
type Timestamp struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
	Zone   int
}

// DecodeTimestamp decodes seven semi-octet encoded bytes into a time stamp: year, month, day, hour,
// minute, second and the time zone. The time zone byte holds the sign in bit 3 and the number of
// quarter hours as swapped BCD digits in the remaining bits. The result is validated, a time stamp
// with any field out of range is rejected.
func DecodeTimestamp(bytes []byte) (Timestamp, bool) {
	if len(bytes) < TimestampLength {
		return Timestamp{}, false
	}

	var fields [6]int
	for i := range fields {
		value, ok := decimalField(bytes[i])
		if !ok {
			return Timestamp{}, false
		}
		fields[i] = value
	}
	zone, ok := DecodeZone(bytes[6])
	if !ok {
		return Timestamp{}, false
	}

	result := Timestamp{
		Year:   expandYear(fields[0]),
		Month:  fields[1],
		Day:    fields[2],
		Hour:   fields[3],
		Minute: fields[4],
		Second: fields[5],
		Zone:   zone,
	}
	if !result.Valid() {
		return Timestamp{}, false
	}
	return result, true
}

// DecodeZone decodes the time zone octet of a time stamp into whole hours. Quarter hours that do not
// add up to a full hour are truncated.
func DecodeZone(b byte) (int, bool) {
	quarters, ok := decimalField(b & 0xF7)
	if !ok {
		return 0, false
	}
	result := quarters / 4
	if b&0x08 != 0 {
		result = -result
	}
	return result, true
}

func expandYear(year int) int {
	if year > CenturyPivot {
		return 1900 + year
	}
	return 2000 + year
}

// Valid checks that all fields of the time stamp are in range. The day is only checked against 31,
// independent of the month.
func (t Timestamp) Valid() bool {
	return t.Day >= 1 && t.Day <= 31 &&
		t.Month >= 1 && t.Month <= 12 &&
		t.Hour >= 0 && t.Hour <= 23 &&
		t.Minute >= 0 && t.Minute <= 59 &&
		t.Second >= 0 && t.Second <= 59 &&
		t.Zone >= -MaxZoneHours && t.Zone <= MaxZoneHours
}

// Local formats the time stamp in its own time zone, e.g. "24/12/2019 18:30:00 (UTC+01)".
func (t Timestamp) Local() string {
	sign := "+"
	zone := t.Zone
	if zone < 0 {
		sign = "-"
		zone = -zone
	}
	return fmt.Sprintf("%02d/%02d/%04d %02d:%02d:%02d (UTC%s%02d)", t.Day, t.Month, t.Year, t.Hour, t.Minute, t.Second, sign, zone)
}

// UTCString formats the time stamp without time zone, e.g. "24-12-2019 17:30:00". It is meant for time stamps returned by UTC.
func (t Timestamp) UTCString() string {
	return fmt.Sprintf("%02d-%02d-%04d %02d:%02d:%02d", t.Day, t.Month, t.Year, t.Hour, t.Minute, t.Second)
}

// UTC normalizes the time stamp to UTC by subtracting the time zone from the hour and rolling over
// the calendar if necessary.
func (t Timestamp) UTC() (Timestamp, bool) {
	result, ok := t.shift(-t.Zone)
	if !ok {
		return Timestamp{}, false
	}
	result.Zone = 0
	return result, true
}

// Localize moves a UTC time stamp into the given time zone. It is the inverse of UTC.
func (t Timestamp) Localize(zone int) (Timestamp, bool) {
	if zone < -MaxZoneHours || zone > MaxZoneHours {
		return Timestamp{}, false
	}
	result, ok := t.shift(zone - t.Zone)
	if !ok {
		return Timestamp{}, false
	}
	result.Zone = zone
	return result, true
}

// Time converts the time stamp into a time.Time with a fixed zone.
func (t Timestamp) Time() time.Time {
	location := time.FixedZone(fmt.Sprintf("UTC%+03d", t.Zone), t.Zone*3600)
	return time.Date(t.Year, time.Month(t.Month), t.Day, t.Hour, t.Minute, t.Second, 0, location)
}

func (t Timestamp) shift(hours int) (Timestamp, bool) {
	if !t.Valid() {
		return Timestamp{}, false
	}

	result := t
	result.Hour += hours
	for result.Hour < 0 {
		result.Hour += 24
		result.previousDay()
	}
	for result.Hour > 23 {
		result.Hour -= 24
		result.nextDay()
	}

	if !result.Valid() {
		return Timestamp{}, false
	}
	return result, true
}

func (t *Timestamp) previousDay() {
	t.Day--
	if t.Day >= 1 {
		return
	}
	t.Month--
	if t.Month < 1 {
		t.Month = 12
		t.Year--
	}
	t.Day = DaysInMonth(t.Month, t.Year)
}

func (t *Timestamp) nextDay() {
	t.Day++
	if t.Day <= DaysInMonth(t.Month, t.Year) {
		return
	}
	t.Day = 1
	t.Month++
	if t.Month > 12 {
		t.Month = 1
		t.Year++
	}
}

// DaysInMonth returns the number of days of the given month in the gregorian calendar.
func DaysInMonth(month int, year int) int {
	switch month {
	case 2:
		if LeapYear(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

// LeapYear tells if the given year is a leap year in the gregorian calendar.
func LeapYear(year int) bool {
	return year%400 == 0 || (year%4 == 0 && year%100 != 0)
}

// EncodeTimestamp encodes the time stamp into seven semi-octet bytes according to [TL] 9.2.3.11.
func EncodeTimestamp(t Timestamp) []byte {
	result := make([]byte, TimestampLength)
	result[0] = encodeDecimalField(t.Year % 100)
	result[1] = encodeDecimalField(t.Month)
	result[2] = encodeDecimalField(t.Day)
	result[3] = encodeDecimalField(t.Hour)
	result[4] = encodeDecimalField(t.Minute)
	result[5] = encodeDecimalField(t.Second)

	zone := t.Zone
	negative := zone < 0
	if negative {
		zone = -zone
	}
	result[6] = encodeDecimalField(zone * 4)
	if negative {
		result[6] |= 0x08
	}
	return result
}
