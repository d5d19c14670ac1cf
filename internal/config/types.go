package config

// Config is the daemon configuration, decoded strictly from JSON or YAML.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Interface InterfaceConfig `json:"interface"`
	Crontab   CrontabConfig   `json:"crontab,omitempty"`
	Override  OverrideConfig  `json:"override,omitempty"`
	Schedule  ScheduleConfig  `json:"schedule,omitempty"`
	Server    ServerConfig    `json:"server,omitempty"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Telegram  *TelegramConfig `json:"telegram,omitempty"`
}

// InterfaceConfig names the managed network interface.
type InterfaceConfig struct {
	Name string `json:"name"`
	Sudo bool   `json:"sudo,omitempty"`

	// CommandTimeout bounds each ip/brctl invocation. Default "30s".
	CommandTimeout string `json:"command_timeout,omitempty"`
}

// CrontabConfig selects the crontab backend.
//
// Driver values: "crontab" (default, the user crontab via crontab(1))
// or "file" (a plain file at Path, mainly for tests and containers).
type CrontabConfig struct {
	Driver  string `json:"driver,omitempty"`
	Path    string `json:"path,omitempty"`
	User    string `json:"user,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

type OverrideConfig struct {
	// MarkerPath is the cross-process override signal file.
	// Default "/tmp/iptv_manual_timer".
	MarkerPath string `json:"marker_path,omitempty"`
}

// ScheduleConfig controls how new crontab lines are built.
type ScheduleConfig struct {
	// OnCommand is the default command for power-on lines. The substring
	// "up" classifies a line as an on action, so keep it in any override.
	OnCommand string `json:"on_command,omitempty"`

	// OffCommand is the fixed command for power-off lines; it should point
	// at this binary's checkoff subcommand. Default "/usr/local/bin/iptvd checkoff".
	OffCommand string `json:"off_command,omitempty"`
}

type ServerConfig struct {
	Enabled *bool  `json:"enabled,omitempty"` // default true
	Addr    string `json:"addr,omitempty"`    // default "127.0.0.1:5000"
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console bool          `json:"console,omitempty"`
	File    FileLogConfig `json:"file,omitempty"`
}

type FileLogConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig controls the optional audit log persistence.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "/var/lib/iptvd/iptvd.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// TelegramConfig enables event notifications. Empty token disables them.
type TelegramConfig struct {
	Token      string `json:"token"`
	ChatID     int64  `json:"chat_id"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}
