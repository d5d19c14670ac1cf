package cronspec

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WeekdaySet holds weekdays in the internal Monday=0..Sunday=6 convention.
//
// Crontab's day-of-week field uses Sunday=0..Saturday=6; ParseWeekdays
// converts at the boundary so the rest of the code never sees the crontab
// numbering.
type WeekdaySet map[int]bool

func (w WeekdaySet) Has(day int) bool { return w[day] }

// HasTime reports whether t's weekday is in the set.
func (w WeekdaySet) HasTime(t time.Time) bool {
	// time.Weekday is Sunday=0; shift to Monday=0.
	return w[(int(t.Weekday())+6)%7]
}

// ParseWeekdays parses a crontab day-of-week field: "*", a single value,
// a comma list, or a dash range (range endpoints converted individually).
func ParseWeekdays(spec string) (WeekdaySet, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("weekday field is empty")
	}

	set := WeekdaySet{}
	if spec == "*" {
		for i := 0; i < 7; i++ {
			set[i] = true
		}
		return set, nil
	}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if a, b, ok := strings.Cut(part, "-"); ok {
			lo, err := cronWeekday(a)
			if err != nil {
				return nil, err
			}
			hi, err := cronWeekday(b)
			if err != nil {
				return nil, err
			}
			if hi < lo {
				return nil, fmt.Errorf("invalid weekday range %q", part)
			}
			for i := lo; i <= hi; i++ {
				set[fromCron(i)] = true
			}
			continue
		}
		v, err := cronWeekday(part)
		if err != nil {
			return nil, err
		}
		set[fromCron(v)] = true
	}
	return set, nil
}

func cronWeekday(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid weekday %q", s)
	}
	if v < 0 || v > 6 {
		return 0, fmt.Errorf("weekday %d out of range 0-6", v)
	}
	return v, nil
}

// fromCron converts crontab weekday numbering (Sunday=0) to the internal
// Monday=0 convention: 0 -> 6, n -> n-1.
func fromCron(cronDay int) int {
	if cronDay == 0 {
		return 6
	}
	return cronDay - 1
}
