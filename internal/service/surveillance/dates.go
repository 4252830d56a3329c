package surveillance

import (
	"time"
)

// AddMonths advances a date by calendar months, preserving the day of
// month where possible and clamping to the last valid day of the target
// month (Jan 31 + 1 month = Feb 28/29). time.Time.AddDate normalizes
// overflow into the next month instead, which is wrong for clinical due
// dates.
func AddMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	totalMonths := int(month) - 1 + months
	targetYear := year + totalMonths/12
	targetMonth := time.Month(totalMonths%12 + 1)
	if totalMonths < 0 {
		// Go integer division truncates toward zero; shift negative
		// remainders back into the 1..12 range.
		targetYear = year + (totalMonths-11)/12
		targetMonth = time.Month((totalMonths%12+12)%12 + 1)
	}

	if max := daysIn(targetYear, targetMonth); day > max {
		day = max
	}
	return time.Date(targetYear, targetMonth, day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
