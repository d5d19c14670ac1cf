package cronspec

import (
	"testing"
	"time"
)

// 2025-01-07 is a Tuesday.
var tuesday = time.Date(2025, time.January, 7, 0, 0, 0, 0, time.UTC)

func sched(minute, hour, weekday string) Schedule {
	return Schedule{Minute: minute, Hour: hour, Day: "*", Month: "*", Weekday: weekday}
}

func TestNextRun(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		s    Schedule
		from time.Time
		want time.Time
		ok   bool
	}{
		{
			name: "later today",
			s:    sched("0", "17", "*"),
			from: tuesday.Add(16 * time.Hour),
			want: tuesday.Add(17 * time.Hour),
			ok:   true,
		},
		{
			name: "slot passed, wildcard rolls to tomorrow",
			s:    sched("0", "17", "*"),
			from: tuesday.Add(18 * time.Hour),
			want: tuesday.AddDate(0, 0, 1).Add(17 * time.Hour),
			ok:   true,
		},
		{
			name: "exact slot is not strictly future",
			s:    sched("0", "17", "*"),
			from: tuesday.Add(17 * time.Hour),
			want: tuesday.AddDate(0, 0, 1).Add(17 * time.Hour),
			ok:   true,
		},
		{
			// crontab 1-5 = Monday..Friday; from Saturday the next slot is Monday.
			name: "workdays from weekend",
			s:    sched("30", "6", "1-5"),
			from: tuesday.AddDate(0, 0, 4), // Saturday 00:00
			want: tuesday.AddDate(0, 0, 6).Add(6*time.Hour + 30*time.Minute),
			ok:   true,
		},
		{
			// Same weekday next week when today's slot already passed.
			name: "single weekday wraps a week",
			s:    sched("0", "9", "2"), // crontab 2 = Tuesday
			from: tuesday.Add(10 * time.Hour),
			want: tuesday.AddDate(0, 0, 7).Add(9 * time.Hour),
			ok:   true,
		},
		{
			name: "malformed hour",
			s:    sched("0", "25", "*"),
			from: tuesday,
			ok:   false,
		},
		{
			name: "non-numeric minute",
			s:    sched("*", "17", "*"),
			from: tuesday,
			ok:   false,
		},
		{
			name: "malformed weekday",
			s:    sched("0", "17", "mon-fri"),
			from: tuesday,
			ok:   false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextRun(tt.s, tt.from)
			if ok != tt.ok {
				t.Fatalf("NextRun ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Fatalf("NextRun = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextRunIgnoresSeconds(t *testing.T) {
	t.Parallel()
	s := sched("0", "17", "*")
	from := tuesday.Add(16*time.Hour + 59*time.Minute + 30*time.Second)
	got, ok := NextRun(s, from)
	if !ok {
		t.Fatal("NextRun failed")
	}
	if want := tuesday.Add(17 * time.Hour); !got.Equal(want) {
		t.Fatalf("NextRun = %v, want %v", got, want)
	}
}
