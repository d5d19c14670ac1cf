// Package crontab reads and writes the host crontab wholesale, and extracts
// the schedule lines owned by this system from it.
//
// The crontab is the persistence format and the execution backend: recurring
// jobs are re-fired by cron itself, not by this process. Every write replaces
// the whole table, so unrelated lines are always carried through untouched.
package crontab

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"iptvd/pkg/logx"
)

// Config selects the crontab backend.
//
// Driver values:
//   - "crontab": the user crontab via crontab(1)
//   - "file": a plain file at Path (tests, hosts without a cron daemon)
type Config struct {
	Driver  string
	Path    string        // file driver only
	User    string        // crontab driver only; empty means current user
	Timeout time.Duration // per crontab(1) invocation; 0 means default
}

const defaultTimeout = 10 * time.Second

// Source is the full-table access contract.
//
// Load returns the complete crontab text; a missing or unreadable table is
// reported as empty text, not as an error worth aborting on, so callers can
// always start from what cron would actually run.
type Source interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, content string) error
}

// Open initializes the configured source.
func Open(cfg Config, log logx.Logger) (Source, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "crontab":
		return &execSource{user: strings.TrimSpace(cfg.User), timeout: timeout, log: log}, nil
	case "file":
		if strings.TrimSpace(cfg.Path) == "" {
			return nil, errors.New("crontab.path is required for file driver")
		}
		return &fileSource{path: cfg.Path}, nil
	default:
		return nil, errors.New("unknown crontab driver: " + cfg.Driver)
	}
}

// ---- crontab(1) backend ----

type execSource struct {
	user    string
	timeout time.Duration
	log     logx.Logger
}

func (s *execSource) Load(ctx context.Context) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := []string{"-l"}
	if s.user != "" {
		args = append([]string{"-u", s.user}, args...)
	}
	out, err := exec.CommandContext(cctx, "crontab", args...).Output()
	if err != nil {
		// crontab -l exits non-zero when the user has no crontab yet;
		// treat every read failure as an empty table.
		s.log.Debug("crontab read failed, treating as empty", logx.Err(err))
		return "", nil
	}
	return string(out), nil
}

func (s *execSource) Save(ctx context.Context, content string) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := []string{"-"}
	if s.user != "" {
		args = append([]string{"-u", s.user}, args...)
	}
	cmd := exec.CommandContext(cctx, "crontab", args...)
	cmd.Stdin = strings.NewReader(content)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("crontab install: %w: %s", err, msg)
		}
		return fmt.Errorf("crontab install: %w", err)
	}
	return nil
}

// ---- file backend ----

type fileSource struct {
	path string
}

func (s *fileSource) Load(ctx context.Context) (string, error) {
	_ = ctx
	b, err := os.ReadFile(s.path)
	if err != nil {
		// Missing or unreadable file means an empty table, same as the
		// crontab(1) backend.
		return "", nil
	}
	return string(b), nil
}

func (s *fileSource) Save(ctx context.Context, content string) error {
	_ = ctx
	return os.WriteFile(s.path, []byte(content), 0o644)
}

// ---- in-memory backend (tests) ----

// Memory is an in-memory Source for tests.
type Memory struct {
	mu      sync.Mutex
	text    string
	LoadErr error
	SaveErr error
}

func NewMemory(initial string) *Memory { return &Memory{text: initial} }

func (m *Memory) Load(ctx context.Context) (string, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return "", m.LoadErr
	}
	return m.text, nil
}

func (m *Memory) Save(ctx context.Context, content string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.text = content
	return nil
}

// Snapshot returns the current table text.
func (m *Memory) Snapshot() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}
