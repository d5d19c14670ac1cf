// Package cronspec parses crontab schedule lines into structured records and
// computes their next occurrence.
//
// Only the schedule shapes this system writes are supported: five time fields
// plus a command, with weekday expressed as "*", a value, a comma list, or a
// dash range. Day-of-month and month are carried but never constrain the
// next-occurrence calculation (see NextRun).
package cronspec

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Action classifies what a schedule line does to the interface.
type Action string

const (
	ActionOn  Action = "on"
	ActionOff Action = "off"
)

// Schedule is one recurring crontab job owned by this system.
//
// Raw is the exact (whitespace-trimmed) crontab line, including a leading
// comment marker when disabled. It is the identity key for later edits:
// Raw is never mutated in place, and ID is a pure function of Raw, so any
// field change produces a new ID.
type Schedule struct {
	ID      uint64 `json:"id"`
	Minute  string `json:"minute"`
	Hour    string `json:"hour"`
	Day     string `json:"day"`
	Month   string `json:"month"`
	Weekday string `json:"weekday"`
	Action  Action `json:"action"`
	Command string `json:"command"`
	Enabled bool   `json:"enabled"`
	Raw     string `json:"raw"`
}

// LineID returns a stable 64-bit identity for a crontab line.
// Two byte-identical lines collide by design.
func LineID(raw string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(raw))
	return h.Sum64()
}

// ParseLine parses a single crontab entry.
//
// Format: "m h dom mon dow command", optionally prefixed with "# " when
// disabled. Returns false when fewer than five fields plus a command remain
// after stripping the comment marker.
func ParseLine(line string) (Schedule, bool) {
	raw := strings.TrimSpace(line)
	if raw == "" {
		return Schedule{}, false
	}

	enabled := !strings.HasPrefix(raw, "#")

	clean := strings.TrimLeft(raw, "# ")
	parts := strings.Fields(clean)
	if len(parts) < 6 {
		return Schedule{}, false
	}

	command := strings.Join(parts[5:], " ")

	action := ActionOff
	if strings.Contains(command, "up") {
		action = ActionOn
	}

	return Schedule{
		ID:      LineID(raw),
		Minute:  parts[0],
		Hour:    parts[1],
		Day:     parts[2],
		Month:   parts[3],
		Weekday: parts[4],
		Action:  action,
		Command: command,
		Enabled: enabled,
		Raw:     raw,
	}, true
}

// BuildLine serializes a schedule back to a crontab line.
// Disabled schedules get a "# " prefix; everything else is byte-stable.
func BuildLine(s Schedule) string {
	line := fmt.Sprintf("%s %s %s %s %s %s", s.Minute, s.Hour, s.Day, s.Month, s.Weekday, s.Command)
	if !s.Enabled {
		line = "# " + line
	}
	return line
}

// Spec returns the five time fields as a single cron expression,
// e.g. for validation against a cron parser.
func (s Schedule) Spec() string {
	return fmt.Sprintf("%s %s %s %s %s", s.Minute, s.Hour, s.Day, s.Month, s.Weekday)
}
