// Package calendar owns the minimal date value used for range queries and
// on-disk directory naming.
//
// Dates are not validated. Next uses a fixed days-per-month table with
// February pinned to 29 days, so leap years are never distinguished. Callers
// must supply calendar-plausible values; the result of Next on a date whose
// day exceeds its month's table entry, or whose month is outside 1..12, is
// unspecified.
package calendar

import (
	"errors"
	"fmt"
	"strconv"
)

var ErrInvalidFormat = errors.New("calendar: expected YYYY-MM-DD")

// daysInMonth is indexed by month-1. February is always 29.
var daysInMonth = [12]uint8{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// Date is one calendar day. The zero value is not a meaningful date.
type Date struct {
	Year  uint16 `cbor:"year"`
	Month uint8  `cbor:"month"`
	Day   uint8  `cbor:"day"`
}

// Compare orders a and b lexicographically on (year, month, day) and returns
// -1, 0 or +1.
func Compare(a, b Date) int {
	switch {
	case a.Year != b.Year:
		return cmp3(int(a.Year), int(b.Year))
	case a.Month != b.Month:
		return cmp3(int(a.Month), int(b.Month))
	default:
		return cmp3(int(a.Day), int(b.Day))
	}
}

func cmp3(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func (d Date) Compare(other Date) int { return Compare(d, other) }
func (d Date) Before(other Date) bool { return Compare(d, other) < 0 }
func (d Date) After(other Date) bool  { return Compare(d, other) > 0 }
func (d Date) Equal(other Date) bool  { return d == other }

// Next steps one simulated day forward.
func (d Date) Next() Date {
	if d.Day < monthLength(d.Month) {
		d.Day++
		return d
	}
	if d.Month < 12 {
		d.Month++
		d.Day = 1
		return d
	}
	d.Year++
	d.Month = 1
	d.Day = 1
	return d
}

// monthLength returns 0 for months outside 1..12 so an out-of-range month
// rolls over instead of indexing past the table.
func monthLength(month uint8) uint8 {
	if month < 1 || month > 12 {
		return 0
	}
	return daysInMonth[month-1]
}

// String renders the zero padded YYYY-MM-DD form, which is also the date
// directory name under the counter root.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Parse reads the YYYY-MM-DD form produced by String. Only the shape and the
// integer widths are checked.
func Parse(raw string) (Date, error) {
	if len(raw) != 10 || raw[4] != '-' || raw[7] != '-' {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
	}
	year, err := strconv.ParseUint(raw[0:4], 10, 16)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
	}
	month, err := strconv.ParseUint(raw[5:7], 10, 8)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
	}
	day, err := strconv.ParseUint(raw[8:10], 10, 8)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
	}
	return Date{Year: uint16(year), Month: uint8(month), Day: uint8(day)}, nil
}
