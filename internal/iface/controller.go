// Package iface flips and inspects the power state of one network interface
// by shelling out to ip(8) and brctl(8).
package iface

import (
	"context"
	"strings"
	"time"

	"iptvd/pkg/logx"
)

// State is the parsed interface power state.
type State string

const (
	StateOn      State = "on"
	StateOff     State = "off"
	StateUnknown State = "unknown"
)

type Config struct {
	Name    string        // interface name, e.g. "ens1"
	Sudo    bool          // prefix state-changing commands with sudo
	Timeout time.Duration // per command; 0 means 30s
}

const defaultCommandTimeout = 30 * time.Second

type Controller struct {
	cfg Config
	log logx.Logger
}

func New(cfg Config, log logx.Logger) *Controller {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCommandTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Controller{cfg: cfg, log: log}
}

// Name returns the managed interface name.
func (c *Controller) Name() string { return c.cfg.Name }

// Up powers the interface on.
func (c *Controller) Up(ctx context.Context) Result {
	return c.set(ctx, "up")
}

// Down powers the interface off.
func (c *Controller) Down(ctx context.Context) Result {
	return c.set(ctx, "down")
}

func (c *Controller) set(ctx context.Context, dir string) Result {
	argv := []string{"ip", "link", "set", c.cfg.Name, dir}
	if c.cfg.Sudo {
		argv = append([]string{"sudo"}, argv...)
	}
	res := runCommand(ctx, c.cfg.Timeout, argv...)
	if res.OK {
		c.log.Info("interface power changed", logx.String("iface", c.cfg.Name), logx.String("dir", dir))
	} else {
		c.log.Error("interface power change failed",
			logx.String("iface", c.cfg.Name), logx.String("dir", dir),
			logx.Int("exit", res.ExitCode), logx.String("stderr", res.Stderr))
	}
	return res
}

// Status combines `ip link show <iface>` with `brctl show`; it succeeds as
// long as the ip command does (brctl output is best-effort extra context).
func (c *Controller) Status(ctx context.Context) Result {
	link := runCommand(ctx, c.cfg.Timeout, "ip", "link", "show", c.cfg.Name)
	bridge := runCommand(ctx, c.cfg.Timeout, "brctl", "show")

	stdout := link.Stdout
	if bridge.Stdout != "" {
		stdout += "\n" + bridge.Stdout
	}
	stderr := strings.TrimSpace(link.Stderr + "\n" + bridge.Stderr)

	return Result{
		OK:       link.OK,
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: link.ExitCode,
	}
}

// State reports the current power state.
func (c *Controller) State(ctx context.Context) State {
	res := c.Status(ctx)
	if !res.OK {
		return StateUnknown
	}
	return ParseState(res.Stdout, c.cfg.Name)
}

// ParseState scans ip-link output for the interface's flag line:
// a "<iface>:" line containing UP means powered on.
func ParseState(output, name string) State {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, name+":") {
			continue
		}
		if strings.Contains(line, "UP") {
			return StateOn
		}
		return StateOff
	}
	return StateUnknown
}
