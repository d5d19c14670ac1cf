// Package web exposes the JSON control API: interface power and status,
// the manual override timer, the audit log, and schedule CRUD.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"iptvd/internal/cronspec"
	"iptvd/internal/iface"
	"iptvd/internal/schedule"
	"iptvd/internal/storage"
	"iptvd/pkg/logx"
)

// Registry is the slice of the schedule registry the API uses.
type Registry interface {
	List(ctx context.Context) ([]cronspec.Schedule, error)
	Add(ctx context.Context, s cronspec.Schedule) error
	Delete(ctx context.Context, id uint64) error
	Update(ctx context.Context, id uint64, s cronspec.Schedule) error
	Toggle(ctx context.Context, id uint64) error
	Next(ctx context.Context) (on, off *schedule.Upcoming, err error)
}

// Power is the slice of the interface controller the API uses.
type Power interface {
	Up(ctx context.Context) iface.Result
	Down(ctx context.Context) iface.Result
	Status(ctx context.Context) iface.Result
	State(ctx context.Context) iface.State
}

// Override is the manual timer surface.
type Override interface {
	Start(ctx context.Context, minutes int) error
	Cancel() bool
	Remaining() (time.Duration, bool)
	SuppressOff() bool
}

// AuditSource reads back recent audit entries. May be nil (storage disabled).
type AuditSource interface {
	RecentAudit(ctx context.Context, limit int) ([]storage.AuditEntry, error)
}

// AuditWriter records manual power flips. May be nil.
type AuditWriter interface {
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

// Notifier announces manual power flips. May be nil.
type Notifier interface {
	Notify(text string)
}

type Server struct {
	e      *echo.Echo
	reg    Registry
	power  Power
	ov     Override
	audit  AuditSource
	auditW AuditWriter
	notify Notifier
	log    logx.Logger
}

func New(reg Registry, power Power, ov Override, audit AuditSource, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{reg: reg, power: power, ov: ov, audit: audit, log: log}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(accessLogger(log))

	e.GET("/api/iptv/status/current", s.currentStatus)
	e.GET("/api/iptv/timer/cancel", s.cancelTimer)
	e.GET("/api/iptv/timer/:minutes", s.startTimer)
	e.GET("/api/iptv/logs", s.recentLogs)
	e.GET("/api/iptv/:action", s.control)

	e.GET("/api/schedules", s.listSchedules)
	e.POST("/api/schedules", s.createSchedule)
	e.PUT("/api/schedules/:id", s.updateSchedule)
	e.DELETE("/api/schedules/:id", s.deleteSchedule)
	e.POST("/api/schedules/:id/toggle", s.toggleSchedule)

	s.e = e
	return s
}

// SetAuditWriter enables audit entries for manual power flips.
func (s *Server) SetAuditWriter(w AuditWriter) { s.auditW = w }

// SetNotifier enables announcements for manual power flips.
func (s *Server) SetNotifier(n Notifier) { s.notify = n }

// Handler exposes the underlying HTTP handler (tests).
func (s *Server) Handler() http.Handler { return s.e }

// Start blocks serving HTTP on addr until Shutdown.
func (s *Server) Start(addr string) error {
	err := s.e.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// accessLogger logs one line per request through the structured logger.
func accessLogger(log logx.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug("request",
				logx.String("method", v.Method),
				logx.String("uri", v.URI),
				logx.Int("status", v.Status),
				logx.Duration("took", v.Latency),
			)
			return nil
		},
	})
}
