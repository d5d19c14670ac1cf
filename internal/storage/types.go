package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free append-only JSON Lines file
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records one operator or timer action.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At      time.Time `json:"at"`
	Action  string    `json:"action"`
	Minutes int       `json:"minutes,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	OK      bool      `json:"ok"`
}

// Audit action names.
const (
	AuditTimerStart  = "timer_start"
	AuditTimerExpire = "timer_expire"
	AuditTimerCancel = "timer_cancel"
	AuditPowerOn     = "power_on"
	AuditPowerOff    = "power_off"
)
