package crontab

import (
	"strings"

	"iptvd/internal/cronspec"
)

// Markers identify which crontab lines belong to this system.
//
// Up is the interface power command signature (e.g. "ip link set ens1");
// Off is the off-check command path the off schedules invoke. A line counts
// as ours when it contains either substring, comment marker or not.
type Markers struct {
	Up  string
	Off string
}

func (m Markers) matches(line string) bool {
	if m.Up != "" && strings.Contains(line, m.Up) {
		return true
	}
	if m.Off != "" && strings.Contains(line, m.Off) {
		return true
	}
	return false
}

// Extract scans the whole crontab text and returns the schedules owned by
// this system, in table order. Lines that match a marker but fail to parse
// are dropped silently.
func Extract(text string, m Markers) []cronspec.Schedule {
	var out []cronspec.Schedule
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !m.matches(line) {
			continue
		}
		if s, ok := cronspec.ParseLine(line); ok {
			out = append(out, s)
		}
	}
	return out
}
