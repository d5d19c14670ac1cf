package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"iptvd/internal/cronspec"
	"iptvd/internal/schedule"
	"iptvd/internal/storage"
	"iptvd/pkg/logx"
)

// failure collapses every mutation error to a generic message; callers only
// learn that the operation did not apply, matching the coarse contract of
// the schedule surface (not-found and store failures look alike).
func failure(c echo.Context, msg string) error {
	return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": msg})
}

func success(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// ---- status ----

type nextScheduleView struct {
	Action  string `json:"action"`
	Time    string `json:"time"`
	Date    string `json:"date"`
	Weekday string `json:"weekday"`
}

type statusResponse struct {
	Status         string             `json:"status"`
	TimerRemaining *int               `json:"timer_remaining"`
	NextSchedules  []nextScheduleView `json:"next_schedules"`
	SkipCrontab    bool               `json:"skip_crontab"`
}

func (s *Server) currentStatus(c echo.Context) error {
	ctx := c.Request().Context()

	resp := statusResponse{
		Status:        string(s.power.State(ctx)),
		NextSchedules: []nextScheduleView{},
		SkipCrontab:   s.ov.SuppressOff(),
	}

	if rem, ok := s.ov.Remaining(); ok {
		secs := int(rem.Seconds())
		resp.TimerRemaining = &secs
	}

	on, off, err := s.reg.Next(ctx)
	if err != nil {
		s.log.Warn("next schedule lookup failed", logx.Err(err))
	}
	for _, up := range []*schedule.Upcoming{on, off} {
		if up == nil {
			continue
		}
		resp.NextSchedules = append(resp.NextSchedules, nextScheduleView{
			Action:  string(up.Schedule.Action),
			Time:    up.At.Format("15:04"),
			Date:    up.At.Format("2006-01-02"),
			Weekday: up.Schedule.Weekday,
		})
	}
	sort.Slice(resp.NextSchedules, func(i, j int) bool {
		a, b := resp.NextSchedules[i], resp.NextSchedules[j]
		return a.Date+a.Time < b.Date+b.Time
	})

	return c.JSON(http.StatusOK, resp)
}

// ---- override timer ----

func (s *Server) startTimer(c echo.Context) error {
	minutes, err := strconv.Atoi(c.Param("minutes"))
	if err != nil || minutes <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid minutes"})
	}
	if err := s.ov.Start(c.Request().Context(), minutes); err != nil {
		return failure(c, "timer start failed")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"minutes": minutes,
		"message": fmt.Sprintf("interface on, auto-off in %d minutes", minutes),
	})
}

func (s *Server) cancelTimer(c echo.Context) error {
	cancelled := s.ov.Cancel()
	msg := "no timer was running"
	if cancelled {
		msg = "timer cancelled"
	}
	return c.JSON(http.StatusOK, echo.Map{"success": cancelled, "message": msg})
}

// ---- audit log ----

func (s *Server) recentLogs(c echo.Context) error {
	if s.audit == nil {
		return c.JSON(http.StatusOK, echo.Map{"logs": []any{}})
	}
	entries, err := s.audit.RecentAudit(c.Request().Context(), 200)
	if err != nil {
		return failure(c, "log read failed")
	}
	if entries == nil {
		return c.JSON(http.StatusOK, echo.Map{"logs": []any{}})
	}
	return c.JSON(http.StatusOK, echo.Map{"logs": entries})
}

// ---- direct control ----

func (s *Server) control(c echo.Context) error {
	ctx := c.Request().Context()
	switch c.Param("action") {
	case "status":
		res := s.power.Status(ctx)
		return c.JSON(http.StatusOK, echo.Map{
			"success":    res.OK,
			"stdout":     res.Stdout,
			"stderr":     res.Stderr,
			"returncode": res.ExitCode,
			"iptv_state": string(s.power.State(ctx)),
		})
	case "on":
		res := s.power.Up(ctx)
		s.recordPower(ctx, storage.AuditPowerOn, res.OK, "interface manually switched on")
		return c.JSON(http.StatusOK, res)
	case "off":
		// A manual off supersedes any running override window.
		s.ov.Cancel()
		res := s.power.Down(ctx)
		s.recordPower(ctx, storage.AuditPowerOff, res.OK, "interface manually switched off")
		return c.JSON(http.StatusOK, res)
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid action"})
	}
}

func (s *Server) recordPower(ctx context.Context, action string, ok bool, announce string) {
	if s.auditW != nil {
		e := storage.AuditEntry{At: time.Now(), Action: action, Detail: "manual", OK: ok}
		if err := s.auditW.AppendAudit(ctx, e); err != nil {
			s.log.Warn("audit append failed", logx.String("action", action), logx.Err(err))
		}
	}
	if s.notify != nil && ok {
		s.notify.Notify(announce)
	}
}

// ---- schedules ----

// flexString accepts both JSON strings and numbers ("30" and 30).
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type scheduleRequest struct {
	Minute  flexString `json:"minute"`
	Hour    flexString `json:"hour"`
	Day     string     `json:"day"`
	Month   string     `json:"month"`
	Weekday string     `json:"weekday"`
	Action  string     `json:"action"`
	Enabled *bool      `json:"enabled"`
}

func (r scheduleRequest) toSchedule() cronspec.Schedule {
	s := cronspec.Schedule{
		Minute:  orDefault(string(r.Minute), "0"),
		Hour:    orDefault(string(r.Hour), "0"),
		Day:     orDefault(r.Day, "*"),
		Month:   orDefault(r.Month, "*"),
		Weekday: orDefault(r.Weekday, "*"),
		Action:  cronspec.ActionOff,
		Enabled: true,
	}
	if r.Action == string(cronspec.ActionOn) {
		s.Action = cronspec.ActionOn
	}
	if r.Enabled != nil {
		s.Enabled = *r.Enabled
	}
	return s
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func (s *Server) listSchedules(c echo.Context) error {
	items, err := s.reg.List(c.Request().Context())
	if err != nil {
		return failure(c, "schedule list failed")
	}
	if items == nil {
		items = []cronspec.Schedule{}
	}
	return c.JSON(http.StatusOK, echo.Map{"schedules": items})
}

func (s *Server) createSchedule(c echo.Context) error {
	var req scheduleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := s.reg.Add(c.Request().Context(), req.toSchedule()); err != nil {
		return failure(c, "schedule add failed")
	}
	return success(c)
}

func (s *Server) updateSchedule(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req scheduleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := s.reg.Update(c.Request().Context(), id, req.toSchedule()); err != nil {
		return failure(c, "schedule update failed")
	}
	return success(c)
}

func (s *Server) deleteSchedule(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := s.reg.Delete(c.Request().Context(), id); err != nil {
		return failure(c, "schedule delete failed")
	}
	return success(c)
}

func (s *Server) toggleSchedule(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := s.reg.Toggle(c.Request().Context(), id); err != nil {
		return failure(c, "schedule toggle failed")
	}
	return success(c)
}

func parseID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}
