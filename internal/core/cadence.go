package core

import "time"

// Day-based frequencies advance by a fixed day interval; month-based ones by
// whole calendar months. An unrecognized frequency deliberately behaves as
// monthly so a malformed row never breaks a render path.
var (
	dayIntervals = map[Frequency]int{
		Daily:    1,
		Weekly:   7,
		BiWeekly: 14,
	}
	monthIntervals = map[Frequency]int{
		Monthly:   1,
		Quarterly: 3,
		BiAnnual:  6,
		Yearly:    12,
	}
)

// NextDate returns the date one cadence step after current. Month-based steps
// use calendar-month arithmetic; when the target month is shorter than the
// current day-of-month the standard library rollover applies (Jan 31 + 1 month
// lands in early March).
func NextDate(current time.Time, frequency Frequency) time.Time {
	if days, ok := dayIntervals[frequency]; ok {
		return current.AddDate(0, 0, days)
	}
	if months, ok := monthIntervals[frequency]; ok {
		return current.AddDate(0, months, 0)
	}
	return current.AddDate(0, 1, 0)
}

// OccurrencesBetween counts cadence steps that fall at or before end, with
// start itself counted as occurrence #1. A window where end precedes start
// holds no occurrences; a zero-length window holds exactly one.
func OccurrencesBetween(start, end time.Time, frequency Frequency) int {
	if end.Before(start) {
		return 0
	}
	if days, ok := dayIntervals[frequency]; ok {
		wholeDays := int(end.Sub(start) / (24 * time.Hour))
		return wholeDays/days + 1
	}
	months, ok := monthIntervals[frequency]
	if !ok {
		months = monthIntervals[Monthly]
	}
	diff := fullMonthsDiff(start, end)
	if diff < 0 {
		diff = 0
	}
	return diff/months + 1
}

// FullMonthsBetween counts whole calendar months elapsed between start and
// end, floored at 0. Display-only month-progress helper; amount accrual goes
// through OccurrencesBetween.
func FullMonthsBetween(start, end time.Time) int {
	diff := fullMonthsDiff(start, end)
	if diff < 0 {
		return 0
	}
	return diff
}

// fullMonthsDiff counts calendar-month boundaries crossed, discounting the
// last month when end's day-of-month has not yet reached start's.
func fullMonthsDiff(start, end time.Time) int {
	diff := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if end.Day() < start.Day() {
		diff--
	}
	return diff
}
