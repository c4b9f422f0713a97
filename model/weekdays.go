package model

import "time"

// AddWeekdays adds n business days to t, skipping Saturdays and Sundays.
// Settlement delays are expressed in business days, so a Friday completion
// with a one-day delay settles the following Monday.
func AddWeekdays(t time.Time, n int) time.Time {
	if n <= 0 {
		return t
	}
	result := t
	for added := 0; added < n; {
		result = result.AddDate(0, 0, 1)
		if wd := result.Weekday(); wd != time.Saturday && wd != time.Sunday {
			added++
		}
	}
	return result
}
