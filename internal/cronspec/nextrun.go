package cronspec

import (
	"strconv"
	"time"
)

// nextRunWindowDays bounds the forward walk. The current day can match the
// weekday set with its time-of-day already passed, which pushes the answer to
// the same weekday next week; 8 days covers that plus a day of slack.
const nextRunWindowDays = 8

// NextRun computes the nearest strictly-future occurrence of s after from,
// or false when the schedule cannot run within the lookahead window
// (malformed numeric fields, or no weekday matches).
//
// Known limitation, kept on purpose: only weekday, hour and minute
// participate. The day and month fields are stored and round-tripped but do
// not constrain the result; this system only ever writes "* *" for them.
func NextRun(s Schedule, from time.Time) (time.Time, bool) {
	hour, err := strconv.Atoi(s.Hour)
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, false
	}
	minute, err := strconv.Atoi(s.Minute)
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, false
	}
	days, err := ParseWeekdays(s.Weekday)
	if err != nil || len(days) == 0 {
		return time.Time{}, false
	}

	start := from.Truncate(time.Minute)
	for i := 0; i < nextRunWindowDays; i++ {
		day := start.AddDate(0, 0, i)
		if !days.HasTime(day) {
			continue
		}
		run := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
		if run.After(from) {
			return run, true
		}
	}
	return time.Time{}, false
}
