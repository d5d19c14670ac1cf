// Package override tracks the one in-flight manual "on now, off in N
// minutes" request and arbitrates it against the recurring crontab schedule:
// while an override is active, recurring power-offs must be suppressed.
package override

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"iptvd/internal/iface"
	"iptvd/internal/storage"
	"iptvd/pkg/logx"
)

// Power is the slice of the interface controller the timer needs.
type Power interface {
	Up(ctx context.Context) iface.Result
	Down(ctx context.Context) iface.Result
}

// Notifier receives human-readable event announcements. May be nil.
type Notifier interface {
	Notify(text string)
}

type Config struct {
	// MarkerPath is the cross-process signal file: it holds the override's
	// end instant while a manual window is active, so `iptvd checkoff`
	// running under cron can skip its power-off.
	MarkerPath string
}

// Service is the process-wide override state, constructed once at startup.
//
// All state lives behind the mutex. The delayed power-off is armed with
// time.AfterFunc and a version counter: Cancel and a superseding Start bump
// the version, so a stale timer callback that still fires does nothing.
// (Earlier deployments slept the full duration un-cancellably and let a
// cancelled timer's off action fire anyway; that is deliberately gone.)
type Service struct {
	cfg    Config
	power  Power
	store  storage.Store // may be nil
	notify Notifier      // may be nil
	log    logx.Logger

	mu    sync.Mutex
	endAt time.Time // zero when idle
	ver   uint64
	timer *time.Timer

	now func() time.Time
}

func New(cfg Config, power Power, store storage.Store, notify Notifier, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, power: power, store: store, notify: notify, log: log, now: time.Now}
}

// Start powers the interface on immediately and arms an automatic power-off
// after the given number of minutes. A new Start supersedes any active
// override: the old deadline is discarded and the old delayed off will not
// fire.
func (s *Service) Start(ctx context.Context, minutes int) error {
	if minutes <= 0 {
		return errors.New("minutes must be > 0")
	}
	return s.start(ctx, time.Duration(minutes)*time.Minute, minutes)
}

func (s *Service) start(ctx context.Context, d time.Duration, minutes int) error {
	res := s.power.Up(ctx)
	if !res.OK {
		// The window still opens: cron or a later retry can fix the link,
		// and the off action at expiry is harmless if it is already down.
		s.log.Warn("power-on failed at override start", logx.Int("exit", res.ExitCode), logx.String("stderr", res.Stderr))
	}

	s.mu.Lock()
	s.ver++
	ver := s.ver
	end := s.now().Add(d)
	s.endAt = end
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, func() { s.expire(ver) })
	s.mu.Unlock()

	s.writeMarker(end)
	s.audit(storage.AuditEntry{Action: storage.AuditTimerStart, Minutes: minutes, OK: res.OK})
	s.announce(fmt.Sprintf("IPTV on for %d min (until %s)", minutes, end.Format("15:04")))
	s.log.Info("override started", logx.Int("minutes", minutes), logx.Time("until", end))
	return nil
}

func (s *Service) expire(ver uint64) {
	s.mu.Lock()
	if ver != s.ver {
		// Superseded or cancelled while the callback was pending.
		s.mu.Unlock()
		return
	}
	s.endAt = time.Time{}
	s.timer = nil
	s.mu.Unlock()

	res := s.power.Down(context.Background())
	s.removeMarker()
	s.audit(storage.AuditEntry{Action: storage.AuditTimerExpire, OK: res.OK})
	s.announce("IPTV override expired, interface off")
	s.log.Info("override expired")
}

// Cancel removes the marker unconditionally and, if an override is active,
// disarms the delayed power-off. It reports whether a timer had been active.
// The interface stays in whatever state it is in.
func (s *Service) Cancel() bool {
	s.removeMarker()

	s.mu.Lock()
	active := !s.endAt.IsZero() && s.endAt.After(s.now())
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.ver++
	s.endAt = time.Time{}
	s.mu.Unlock()

	if active {
		s.audit(storage.AuditEntry{Action: storage.AuditTimerCancel, OK: true})
		s.announce("IPTV override cancelled")
		s.log.Info("override cancelled")
	}
	return active
}

// Remaining reports the time left in the active window. An already-passed
// deadline collapses to idle here rather than waiting for the timer callback.
func (s *Service) Remaining() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endAt.IsZero() {
		return 0, false
	}
	rem := s.endAt.Sub(s.now())
	if rem <= 0 {
		s.endAt = time.Time{}
		return 0, false
	}
	return rem, true
}

// SuppressOff reports whether a recurring power-off should be skipped
// because a manual window is still open.
func (s *Service) SuppressOff() bool {
	_, active := s.Remaining()
	return active
}

// ---- marker file ----

func (s *Service) writeMarker(end time.Time) {
	if strings.TrimSpace(s.cfg.MarkerPath) == "" {
		return
	}
	if err := os.WriteFile(s.cfg.MarkerPath, []byte(end.Format(time.RFC3339)+"\n"), 0o644); err != nil {
		s.log.Warn("marker write failed", logx.String("path", s.cfg.MarkerPath), logx.Err(err))
	}
}

func (s *Service) removeMarker() {
	if strings.TrimSpace(s.cfg.MarkerPath) == "" {
		return
	}
	if err := os.Remove(s.cfg.MarkerPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("marker remove failed", logx.String("path", s.cfg.MarkerPath), logx.Err(err))
	}
}

// ReadMarker reads an override marker left by any process instance and
// reports the window's end instant. A missing or unparsable marker means no
// active override.
func ReadMarker(path string) (time.Time, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(string(b)))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ---- side channels ----

func (s *Service) audit(e storage.AuditEntry) {
	if s.store == nil {
		return
	}
	e.At = s.now()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.store.AppendAudit(ctx, e); err != nil {
		s.log.Warn("audit append failed", logx.String("action", e.Action), logx.Err(err))
	}
}

func (s *Service) announce(text string) {
	if s.notify == nil {
		return
	}
	s.notify.Notify(text)
}
