// Package calendar reproduces the vault keeper's on-chain date arithmetic:
// proleptic Gregorian decomposition of Unix timestamps and the month-end
// trigger window. All math is UTC with no timezone adjustment, matching
// the contract the off-chain keeper simulates.
package calendar

import "errors"

// SecondsPerDay is the whole-day resolution every window computation uses.
const SecondsPerDay = 86400

// ErrBeforeEpoch rejects timestamps before 1970-01-01T00:00:00Z.
var ErrBeforeEpoch = errors.New("calendar: timestamp before unix epoch")

// Date is a calendar date in the proleptic Gregorian calendar.
type Date struct {
	Year  int
	Month int // 1-12
	Day   int // 1-31
}

// IsLeapYear applies the Gregorian rule: divisible by 4, except centuries
// not divisible by 400.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

var monthDays = [13]int{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// DaysInMonth returns the day count of the given month; February yields
// 29 exactly in leap years.
func DaysInMonth(year, month int) int {
	if month == 2 && IsLeapYear(year) {
		return 29
	}
	return monthDays[month]
}

// Decompose splits a Unix timestamp (seconds, UTC) into its calendar date.
// Timestamps before the epoch are rejected.
func Decompose(ts int64) (Date, error) {
	if ts < 0 {
		return Date{}, ErrBeforeEpoch
	}

	// Civil-from-days on a shifted epoch of 0000-03-01, so leap days fall
	// at the end of the cycle. Era length 146097 days = 400 years.
	z := ts/SecondsPerDay + 719468
	era := z / 146097
	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146097) / 365
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	day := doy - (153*mp+2)/5 + 1

	month := mp + 3
	if mp >= 10 {
		month = mp - 9
	}
	year := yoe + era*400
	if month <= 2 {
		year++
	}

	return Date{Year: int(year), Month: int(month), Day: int(day)}, nil
}

// Timestamp is the inverse of Decompose: it rebuilds the Unix timestamp
// for a date at the given second-of-day offset.
func Timestamp(d Date, secondOfDay int64) int64 {
	y := int64(d.Year)
	m := int64(d.Month)
	if m <= 2 {
		y--
	}
	era := y / 400
	yoe := y - era*400
	var doy int64
	if m > 2 {
		doy = (153*(m-3)+2)/5 + int64(d.Day) - 1
	} else {
		doy = (153*(m+9)+2)/5 + int64(d.Day) - 1
	}
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	days := era*146097 + doe - 719468
	return days*SecondsPerDay + secondOfDay
}
