package core

import "time"

// AccrualEndDate returns the latest date an occurrence is known to have
// actually fired: now, capped at the plan's end date when that has passed,
// and further capped at the last execution date when that is earlier still.
func AccrualEndDate(p Plan, now time.Time) time.Time {
	end := now
	if !p.EndDate.IsZero() && p.EndDate.Before(end) {
		end = p.EndDate
	}
	if !p.LastExecutionDate.IsZero() && p.LastExecutionDate.Before(end) {
		end = p.LastExecutionDate
	}
	return end
}

// ElapsedOccurrences counts completed cadence steps between the plan's start
// date and its accrual end date. Never counts occurrences that have not
// happened yet.
func ElapsedOccurrences(p Plan, now time.Time) int {
	end := AccrualEndDate(p, now)
	if end.Before(p.StartDate) {
		return 0
	}
	return OccurrencesBetween(p.StartDate, end, p.Frequency)
}

// TotalOccurrences returns the number of occurrences a closed-ended plan will
// ever produce. The second return is false for open-ended plans.
func TotalOccurrences(p Plan) (int, bool) {
	if p.OpenEnded() {
		return 0, false
	}
	if p.EndDate.Before(p.StartDate) {
		return 0, true
	}
	return OccurrencesBetween(p.StartDate, p.EndDate, p.Frequency), true
}

// AccruedAmount returns the money corresponding to occurrences that have
// already happened.
func AccruedAmount(p Plan, now time.Time) Money {
	return Money{Cents: int64(ElapsedOccurrences(p, now)) * p.Amount.Cents}
}

// ProjectedAmount returns the total money a closed-ended plan will ever
// produce. The second return is false for open-ended plans.
func ProjectedAmount(p Plan) (Money, bool) {
	total, ok := TotalOccurrences(p)
	if !ok {
		return Money{}, false
	}
	return Money{Cents: int64(total) * p.Amount.Cents}, true
}

// AccruedPercent returns how much of the projected amount has accrued, in
// [0,100]. Open-ended plans and zero projections yield 0 so no NaN or Inf
// ever reaches a caller.
func AccruedPercent(p Plan, now time.Time) float64 {
	projected, ok := ProjectedAmount(p)
	if !ok || projected.Cents <= 0 {
		return 0
	}
	pct := float64(AccruedAmount(p, now).Cents) / float64(projected.Cents) * 100
	if pct > 100 {
		return 100
	}
	return pct
}
