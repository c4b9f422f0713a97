/*
Copyright 2024 Rahpay Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import (
	"fmt"
	"time"
)

// WindowFor computes the half-open usage window [start, end) that contains at
// for the given period. DAY is midnight-to-midnight in the policy timezone,
// WEEK starts on weekStartDow, MONTH is the calendar month. The returned
// bounds are in the policy's location; windowStart is what keys the usage row,
// so the computation must be deterministic for any instant inside the window.
func WindowFor(period LimitPeriod, timezone string, weekStartDow time.Weekday, at time.Time) (start, end time.Time, err error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid policy timezone %q: %w", timezone, err)
	}
	local := at.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	switch period {
	case PeriodDay:
		return midnight, midnight.AddDate(0, 0, 1), nil
	case PeriodWeek:
		offset := (int(local.Weekday()) - int(weekStartDow) + 7) % 7
		start = midnight.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7), nil
	case PeriodMonth:
		start = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown limit period %q", period)
	}
}

// Window computes the usage window of this policy that contains at.
func (p MerchantLimitPolicy) Window(at time.Time) (start, end time.Time, err error) {
	return WindowFor(p.Period, p.Timezone, p.WeekStartDow, at)
}
