// Package schedule is the public surface over the crontab-backed schedule
// set: list, add, delete, update and enable/disable, all expressed as
// line-level edits of the host crontab.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"iptvd/internal/cronspec"
	"iptvd/internal/crontab"
	"iptvd/pkg/logx"
)

// ErrNotFound is returned when no schedule matches the requested ID.
var ErrNotFound = errors.New("schedule not found")

// Config controls how new schedule lines are built and recognized.
type Config struct {
	Markers crontab.Markers

	// OnCommand is the default command for new power-on lines; callers may
	// override it per schedule. OffCommand is fixed for every off line so
	// the off-check helper stays the single path cron fires.
	OnCommand  string
	OffCommand string
}

// Registry mutates the schedule set through whole-table rewrites.
//
// A single mutex serializes every operation: the crontab is read-modify-
// written wholesale with no optimistic concurrency check, so in-process
// serialization is what keeps concurrent API calls from clobbering each
// other's edits.
type Registry struct {
	mu     sync.Mutex
	src    crontab.Source
	cfg    Config
	parser cron.Parser
	log    logx.Logger

	now func() time.Time
}

func New(src crontab.Source, cfg Config, log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{
		src:    src,
		cfg:    cfg,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		log:    log,
		now:    time.Now,
	}
}

// List returns every schedule owned by this system, sorted ascending by next
// occurrence relative to now. Schedules whose next occurrence cannot be
// computed sort last; ties keep table order.
func (r *Registry) List(ctx context.Context) ([]cronspec.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	text, err := r.src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load crontab: %w", err)
	}
	now := r.now()
	type entry struct {
		s    cronspec.Schedule
		next time.Time
		ok   bool
	}
	var entries []entry
	for _, s := range crontab.Extract(text, r.cfg.Markers) {
		next, ok := cronspec.NextRun(s, now)
		entries = append(entries, entry{s: s, next: next, ok: ok})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		ei, ej := entries[i], entries[j]
		if ei.ok != ej.ok {
			return ei.ok
		}
		if !ei.ok {
			return false
		}
		return ei.next.Before(ej.next)
	})
	out := make([]cronspec.Schedule, len(entries))
	for i, e := range entries {
		out[i] = e.s
	}
	return out, nil
}

// Upcoming is a schedule paired with its computed next occurrence.
type Upcoming struct {
	Schedule cronspec.Schedule
	At       time.Time
}

// Next returns the nearest enabled on and off schedules, reading the table
// once so the pair is consistent.
func (r *Registry) Next(ctx context.Context) (on, off *Upcoming, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	text, err := r.src.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load crontab: %w", err)
	}
	now := r.now()
	for _, s := range crontab.Extract(text, r.cfg.Markers) {
		if !s.Enabled {
			continue
		}
		next, ok := cronspec.NextRun(s, now)
		if !ok {
			continue
		}
		switch s.Action {
		case cronspec.ActionOn:
			if on == nil || next.Before(on.At) {
				on = &Upcoming{Schedule: s, At: next}
			}
		case cronspec.ActionOff:
			if off == nil || next.Before(off.At) {
				off = &Upcoming{Schedule: s, At: next}
			}
		}
	}
	return on, off, nil
}

// Add validates the five time fields, fills in the action command, and appends
// the schedule as the final table line.
func (r *Registry) Add(ctx context.Context, s cronspec.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(ctx, s)
}

func (r *Registry) addLocked(ctx context.Context, s cronspec.Schedule) error {
	if s.Action == cronspec.ActionOff {
		s.Command = r.cfg.OffCommand
	} else if strings.TrimSpace(s.Command) == "" {
		s.Command = r.cfg.OnCommand
	}
	if _, err := r.parser.Parse(s.Spec()); err != nil {
		return fmt.Errorf("invalid schedule spec %q: %w", s.Spec(), err)
	}

	text, err := r.src.Load(ctx)
	if err != nil {
		return fmt.Errorf("load crontab: %w", err)
	}

	line := cronspec.BuildLine(s)
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	text += line + "\n"

	if err := r.src.Save(ctx, text); err != nil {
		return fmt.Errorf("save crontab: %w", err)
	}
	r.log.Info("schedule added", logx.Uint64("id", cronspec.LineID(line)), logx.String("line", line))
	return nil
}

// Delete removes every table line byte-identical to the schedule's raw text.
// Identical lines share one ID, so they go together.
func (r *Registry) Delete(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(ctx, id)
}

func (r *Registry) deleteLocked(ctx context.Context, id uint64) error {
	text, err := r.src.Load(ctx)
	if err != nil {
		return fmt.Errorf("load crontab: %w", err)
	}
	target, ok := findByID(crontab.Extract(text, r.cfg.Markers), id)
	if !ok {
		return ErrNotFound
	}

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) == target.Raw {
			continue
		}
		kept = append(kept, line)
	}
	if err := r.src.Save(ctx, strings.Join(kept, "\n")); err != nil {
		return fmt.Errorf("save crontab: %w", err)
	}
	r.log.Info("schedule deleted", logx.Uint64("id", id), logx.String("line", target.Raw))
	return nil
}

// Update replaces a schedule: delete the old line, append the new one.
// The replacement necessarily carries a new ID.
func (r *Registry) Update(ctx context.Context, id uint64, s cronspec.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.deleteLocked(ctx, id); err != nil {
		return err
	}
	return r.addLocked(ctx, s)
}

// Toggle flips a schedule's enabled state by adding or removing the leading
// comment marker on its line; all other bytes stay identical, so toggling
// twice restores the original line exactly.
func (r *Registry) Toggle(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	text, err := r.src.Load(ctx)
	if err != nil {
		return fmt.Errorf("load crontab: %w", err)
	}
	target, ok := findByID(crontab.Extract(text, r.cfg.Markers), id)
	if !ok {
		return ErrNotFound
	}

	var newLine string
	if target.Enabled {
		newLine = "# " + target.Raw
	} else {
		newLine = strings.TrimLeft(target.Raw, "# ")
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == target.Raw {
			lines[i] = newLine
			break
		}
	}
	if err := r.src.Save(ctx, strings.Join(lines, "\n")); err != nil {
		return fmt.Errorf("save crontab: %w", err)
	}
	r.log.Info("schedule toggled", logx.Uint64("id", id), logx.Bool("enabled", !target.Enabled))
	return nil
}

func findByID(items []cronspec.Schedule, id uint64) (cronspec.Schedule, bool) {
	for _, s := range items {
		if s.ID == id {
			return s, true
		}
	}
	return cronspec.Schedule{}, false
}
