package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultMarkerPath     = "/tmp/iptv_manual_timer"
	defaultOffCommand     = "/usr/local/bin/iptvd checkoff"
	defaultServerAddr     = "127.0.0.1:5000"
	defaultCommandTimeout = 30 * time.Second
)

// Validate checks required fields and duration syntax. It is also installed
// as the Watch() validator so a broken edit never replaces a working config.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Interface.Name) == "" {
		return errors.New("interface.name is required")
	}
	if _, err := ParseDurationField("interface.command_timeout", c.Interface.CommandTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("crontab.timeout", c.Crontab.Timeout); err != nil {
		return err
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	if c.Telegram != nil && strings.TrimSpace(c.Telegram.Token) != "" && c.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id is required when a token is set")
	}
	return nil
}

// CommandTimeout returns the bounded per-command timeout.
func (c *Config) CommandTimeout() time.Duration {
	d, err := ParseDurationOrDefault("interface.command_timeout", c.Interface.CommandTimeout, defaultCommandTimeout)
	if err != nil {
		return defaultCommandTimeout
	}
	return d
}

// MarkerPath returns the override marker file path.
func (c *Config) MarkerPath() string {
	if p := strings.TrimSpace(c.Override.MarkerPath); p != "" {
		return p
	}
	return defaultMarkerPath
}

// UpMarker is the substring that identifies power command lines in the
// crontab, derived from the interface name.
func (c *Config) UpMarker() string {
	return "ip link set " + c.Interface.Name
}

// OnCommand returns the default command for new power-on lines.
func (c *Config) OnCommand() string {
	if cmd := strings.TrimSpace(c.Schedule.OnCommand); cmd != "" {
		return cmd
	}
	return fmt.Sprintf("/sbin/ip link set %s up && /usr/bin/logger \"IPTV RESTORED: schedule\"", c.Interface.Name)
}

// OffCommand returns the fixed command for power-off lines.
func (c *Config) OffCommand() string {
	if cmd := strings.TrimSpace(c.Schedule.OffCommand); cmd != "" {
		return cmd
	}
	return defaultOffCommand
}

func (c *Config) ServerAddr() string {
	if a := strings.TrimSpace(c.Server.Addr); a != "" {
		return a
	}
	return defaultServerAddr
}

func (c *Config) ServerEnabled() bool {
	if c.Server.Enabled == nil {
		return true
	}
	return *c.Server.Enabled
}
