package calendar

// windowOpenDay returns the first day of the month-end window: the last
// three calendar days of the month, inclusive.
func windowOpenDay(year, month int) int {
	return DaysInMonth(year, month) - 2
}

// IsMonthEnd reports whether ts falls inside the month-end trigger window.
func IsMonthEnd(ts int64) (bool, error) {
	d, err := Decompose(ts)
	if err != nil {
		return false, err
	}
	return d.Day >= windowOpenDay(d.Year, d.Month), nil
}

// UntilWindow returns the seconds remaining until the month-end window
// opens, or 0 when it is already open. The countdown is whole-day
// granular: it measures to the first window day at the same time-of-day
// as ts, matching the reference behaviour of rounding to day boundaries.
func UntilWindow(ts int64) (int64, error) {
	d, err := Decompose(ts)
	if err != nil {
		return 0, err
	}
	open := windowOpenDay(d.Year, d.Month)
	if d.Day >= open {
		return 0, nil
	}
	return int64(open-d.Day) * SecondsPerDay, nil
}
