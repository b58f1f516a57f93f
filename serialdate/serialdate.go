// Package serialdate converts between spreadsheet serial day numbers and
// absolute instants, under either workbook epoch.
//
// Serial days count from the workbook epoch with a fractional part for time
// of day. Under the 1900 epoch, serial 1 is 1900-01-01 and the historical
// Lotus 1-2-3 bug that treats 1900 as a leap year is preserved: serial 60 is
// the spurious 1900-02-29, and serials 61 and up are "days since
// 1899-12-30". Under the 1904 epoch, serial 0 is 1904-01-01 with no such
// compensation.
package serialdate

import "time"

// Epoch selects the workbook's date system.
type Epoch int

const (
	Epoch1900 Epoch = iota
	Epoch1904
)

var (
	base1900 = time.Date(1899, time.December, 31, 0, 0, 0, 0, time.UTC)
	base1904 = time.Date(1904, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// ToInstant converts a serial day number to an instant in UTC.
//
// Under Epoch1900, serial 0 maps to 1900-01-01 (matching the convention
// historical BIFF readers use for the degenerate zero serial); serials
// 1..60 count directly from 1899-12-31, so serial 60 (the spurious
// 1900-02-29, which time.Time cannot represent) comes out as 1900-03-01,
// the same instant as serial 61; serials 61 and up compensate for the
// phantom leap day by counting from one day earlier.
func ToInstant(serial float64, epoch Epoch) time.Time {
	fracSec, rollover := serialToFracSec(serial)
	if epoch == Epoch1904 {
		days := int(serial) + rollover
		return base1904.Add(time.Duration(days)*24*time.Hour + time.Duration(fracSec)*time.Second)
	}
	days := int(serial) + rollover
	switch {
	case days == 0:
		return time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(fracSec) * time.Second)
	case days >= 61:
		return base1900.Add(time.Duration(days-1)*24*time.Hour + time.Duration(fracSec)*time.Second)
	default:
		return base1900.Add(time.Duration(days)*24*time.Hour + time.Duration(fracSec)*time.Second)
	}
}

// ToSerial converts an instant to a serial day number under the given
// epoch. t is treated as UTC wall-clock time. It is the exact inverse of
// ToInstant for serial >= 61 under Epoch1900 and serial >= 0 under
// Epoch1904, matching the round-trip guarantee this package makes.
func ToSerial(t time.Time, epoch Epoch) float64 {
	t = t.UTC()
	if epoch == Epoch1904 {
		days := t.Sub(base1904).Hours() / 24
		whole := int64(days)
		frac := secondsFrac(t, base1904.AddDate(0, 0, int(whole)))
		return float64(whole) + frac
	}
	days := t.Sub(base1900).Hours() / 24
	whole := int64(days)
	dayStart := base1900.AddDate(0, 0, int(whole))
	frac := secondsFrac(t, dayStart)
	if whole >= 60 {
		whole++
	}
	return float64(whole) + frac
}

func secondsFrac(t, dayStart time.Time) float64 {
	return t.Sub(dayStart).Seconds() / 86400
}

// serialToFracSec converts the fractional-day part of a serial to a whole
// second count within the day (0-86399), plus a day-rollover flag (0 or 1)
// for fractions that round up to a full day.
func serialToFracSec(serial float64) (fracSec int64, dayRollover int) {
	const roundEpsilon = 1e-9
	fracDay := (serial - float64(int64(serial))) + roundEpsilon
	const nanosInADay = float64(24 * 60 * 60 * 1e9)
	durNanos := time.Duration(fracDay * nanosInADay)
	ns := int64(durNanos % time.Second)
	secs := int64(durNanos / time.Second)
	if ns > 500_000_000 {
		secs++
	}
	if secs < 0 {
		secs = 0
	}
	rollover := int(secs / 86400)
	secs = secs % 86400
	return secs, rollover
}
