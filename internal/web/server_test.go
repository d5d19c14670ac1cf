package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"iptvd/internal/cronspec"
	"iptvd/internal/crontab"
	"iptvd/internal/iface"
	"iptvd/internal/schedule"
	"iptvd/internal/storage"
	"iptvd/pkg/logx"
)

type fakePower struct {
	state iface.State
	ups   int
	downs int
}

func (p *fakePower) Up(ctx context.Context) iface.Result {
	p.ups++
	p.state = iface.StateOn
	return iface.Result{OK: true, Stdout: "up"}
}

func (p *fakePower) Down(ctx context.Context) iface.Result {
	p.downs++
	p.state = iface.StateOff
	return iface.Result{OK: true, Stdout: "down"}
}

func (p *fakePower) Status(ctx context.Context) iface.Result {
	return iface.Result{OK: true, Stdout: "2: ens1: <BROADCAST,UP> state UP"}
}

func (p *fakePower) State(ctx context.Context) iface.State { return p.state }

type fakeOverride struct {
	started   int
	cancelled int
	active    bool
	remaining time.Duration
	startErr  error
}

func (o *fakeOverride) Start(ctx context.Context, minutes int) error {
	if o.startErr != nil {
		return o.startErr
	}
	o.started++
	o.active = true
	o.remaining = time.Duration(minutes) * time.Minute
	return nil
}

func (o *fakeOverride) Cancel() bool {
	was := o.active
	o.cancelled++
	o.active = false
	return was
}

func (o *fakeOverride) Remaining() (time.Duration, bool) {
	return o.remaining, o.active
}

func (o *fakeOverride) SuppressOff() bool { return o.active }

const testTable = "0 7 * * 1-5 /sbin/ip link set ens1 up && /usr/bin/logger up\n" +
	"30 23 * * * /usr/local/bin/iptvd checkoff\n"

func newTestServer(t *testing.T, initial string) (*Server, *crontab.Memory, *fakePower, *fakeOverride) {
	t.Helper()
	mem := crontab.NewMemory(initial)
	reg := schedule.New(mem, schedule.Config{
		Markers: crontab.Markers{
			Up:  "ip link set ens1",
			Off: "iptvd checkoff",
		},
		OnCommand:  "/sbin/ip link set ens1 up && /usr/bin/logger up",
		OffCommand: "/usr/local/bin/iptvd checkoff",
	}, logx.Nop())
	power := &fakePower{state: iface.StateOff}
	ov := &fakeOverride{}
	srv := New(reg, power, ov, nil, logx.Nop())
	return srv, mem, power, ov
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s %s response: %v (body %q)", method, path, err, rec.Body.String())
	}
	return rec, out
}

func TestCurrentStatus(t *testing.T) {
	t.Parallel()
	srv, _, power, ov := newTestServer(t, testTable)
	power.state = iface.StateOn
	ov.active = true
	ov.remaining = 90 * time.Second

	rec, out := doJSON(t, srv.Handler(), http.MethodGet, "/api/iptv/status/current", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	if out["status"] != "on" {
		t.Fatalf("status = %v", out["status"])
	}
	if out["timer_remaining"] != float64(90) {
		t.Fatalf("timer_remaining = %v", out["timer_remaining"])
	}
	if out["skip_crontab"] != true {
		t.Fatalf("skip_crontab = %v", out["skip_crontab"])
	}
	next, ok := out["next_schedules"].([]any)
	if !ok || len(next) != 2 {
		t.Fatalf("next_schedules = %v", out["next_schedules"])
	}
	first := next[0].(map[string]any)
	second := next[1].(map[string]any)
	if first["date"].(string)+first["time"].(string) > second["date"].(string)+second["time"].(string) {
		t.Fatalf("next_schedules not sorted: %v", next)
	}
}

func TestCurrentStatusNoTimer(t *testing.T) {
	t.Parallel()
	srv, _, _, _ := newTestServer(t, "")

	_, out := doJSON(t, srv.Handler(), http.MethodGet, "/api/iptv/status/current", "")
	if out["timer_remaining"] != nil {
		t.Fatalf("timer_remaining = %v, want null", out["timer_remaining"])
	}
	if next := out["next_schedules"].([]any); len(next) != 0 {
		t.Fatalf("next_schedules = %v, want empty", next)
	}
}

func TestStartTimer(t *testing.T) {
	t.Parallel()
	srv, _, _, ov := newTestServer(t, "")

	rec, out := doJSON(t, srv.Handler(), http.MethodGet, "/api/iptv/timer/45", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	if out["success"] != true || out["minutes"] != float64(45) {
		t.Fatalf("response = %v", out)
	}
	if ov.started != 1 {
		t.Fatalf("started = %d", ov.started)
	}
}

func TestStartTimerInvalidMinutes(t *testing.T) {
	t.Parallel()
	srv, _, _, ov := newTestServer(t, "")

	for _, path := range []string{"/api/iptv/timer/0", "/api/iptv/timer/-5", "/api/iptv/timer/soon"} {
		rec, _ := doJSON(t, srv.Handler(), http.MethodGet, path, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status code = %d, want 400", path, rec.Code)
		}
	}
	if ov.started != 0 {
		t.Fatalf("started = %d, want 0", ov.started)
	}
}

func TestCancelTimer(t *testing.T) {
	t.Parallel()
	srv, _, _, ov := newTestServer(t, "")
	ov.active = true

	_, out := doJSON(t, srv.Handler(), http.MethodGet, "/api/iptv/timer/cancel", "")
	if out["success"] != true {
		t.Fatalf("response = %v", out)
	}

	_, out = doJSON(t, srv.Handler(), http.MethodGet, "/api/iptv/timer/cancel", "")
	if out["success"] != false {
		t.Fatalf("second cancel response = %v", out)
	}
}

func TestControlOffCancelsTimer(t *testing.T) {
	t.Parallel()
	srv, _, power, ov := newTestServer(t, "")
	ov.active = true

	rec, out := doJSON(t, srv.Handler(), http.MethodGet, "/api/iptv/off", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	if out["success"] != true {
		t.Fatalf("response = %v", out)
	}
	if power.downs != 1 {
		t.Fatalf("downs = %d", power.downs)
	}
	if ov.cancelled != 1 || ov.active {
		t.Fatalf("override not cancelled before power off")
	}
}

func TestControlStatusIncludesState(t *testing.T) {
	t.Parallel()
	srv, _, power, _ := newTestServer(t, "")
	power.state = iface.StateOn

	_, out := doJSON(t, srv.Handler(), http.MethodGet, "/api/iptv/status", "")
	if out["iptv_state"] != "on" {
		t.Fatalf("iptv_state = %v", out["iptv_state"])
	}
	if out["returncode"] != float64(0) {
		t.Fatalf("returncode = %v", out["returncode"])
	}
}

type fakeRecorder struct {
	entries []storage.AuditEntry
	notes   []string
}

func (r *fakeRecorder) AppendAudit(ctx context.Context, e storage.AuditEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeRecorder) Notify(text string) { r.notes = append(r.notes, text) }

func TestControlRecordsManualFlips(t *testing.T) {
	t.Parallel()
	srv, _, _, _ := newTestServer(t, "")
	rec := &fakeRecorder{}
	srv.SetAuditWriter(rec)
	srv.SetNotifier(rec)

	doJSON(t, srv.Handler(), http.MethodGet, "/api/iptv/on", "")
	doJSON(t, srv.Handler(), http.MethodGet, "/api/iptv/off", "")

	if len(rec.entries) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(rec.entries))
	}
	if rec.entries[0].Action != storage.AuditPowerOn || rec.entries[1].Action != storage.AuditPowerOff {
		t.Fatalf("audit actions = %v %v", rec.entries[0].Action, rec.entries[1].Action)
	}
	if len(rec.notes) != 2 {
		t.Fatalf("notifications = %d, want 2", len(rec.notes))
	}
}

func TestControlInvalidAction(t *testing.T) {
	t.Parallel()
	srv, _, _, _ := newTestServer(t, "")

	rec, _ := doJSON(t, srv.Handler(), http.MethodGet, "/api/iptv/reboot", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want 400", rec.Code)
	}
}

func TestRecentLogsNilStore(t *testing.T) {
	t.Parallel()
	srv, _, _, _ := newTestServer(t, "")

	rec, out := doJSON(t, srv.Handler(), http.MethodGet, "/api/iptv/logs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	if logs := out["logs"].([]any); len(logs) != 0 {
		t.Fatalf("logs = %v, want empty", logs)
	}
}

type fakeAudit struct {
	entries []storage.AuditEntry
}

func (a *fakeAudit) RecentAudit(ctx context.Context, limit int) ([]storage.AuditEntry, error) {
	return a.entries, nil
}

func TestRecentLogs(t *testing.T) {
	t.Parallel()
	srv, _, _, _ := newTestServer(t, "")
	srv.audit = &fakeAudit{entries: []storage.AuditEntry{
		{At: time.Now(), Action: storage.AuditTimerStart, Minutes: 30, OK: true},
	}}

	_, out := doJSON(t, srv.Handler(), http.MethodGet, "/api/iptv/logs", "")
	if logs := out["logs"].([]any); len(logs) != 1 {
		t.Fatalf("logs = %v", out["logs"])
	}
}

func TestScheduleCRUD(t *testing.T) {
	t.Parallel()
	srv, mem, _, _ := newTestServer(t, "")
	h := srv.Handler()

	rec, _ := doJSON(t, h, http.MethodPost, "/api/schedules",
		`{"minute":30,"hour":"6","weekday":"1-5","action":"on"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status code = %d", rec.Code)
	}
	if got := mem.Snapshot(); !strings.Contains(got, "30 6 * * 1-5 ") {
		t.Fatalf("crontab after create:\n%s", got)
	}

	_, out := doJSON(t, h, http.MethodGet, "/api/schedules", "")
	items := out["schedules"].([]any)
	if len(items) != 1 {
		t.Fatalf("schedules = %v", items)
	}
	entry := items[0].(map[string]any)
	if entry["action"] != "on" || entry["minute"] != "30" {
		t.Fatalf("schedule entry = %v", entry)
	}

	// IDs are 64-bit hashes; recompute from the stored line rather than
	// round-tripping through a float64 JSON decode.
	line := strings.TrimSpace(mem.Snapshot())
	idStr := strconv.FormatUint(cronspec.LineID(line), 10)

	rec, _ = doJSON(t, h, http.MethodPost, "/api/schedules/"+idStr+"/toggle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status code = %d", rec.Code)
	}
	if got := mem.Snapshot(); !strings.HasPrefix(got, "# 30 6") {
		t.Fatalf("crontab after toggle:\n%s", got)
	}

	line = strings.TrimSpace(mem.Snapshot())
	newID := strconv.FormatUint(cronspec.LineID(line), 10)

	rec, _ = doJSON(t, h, http.MethodDelete, "/api/schedules/"+newID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status code = %d", rec.Code)
	}
	if got := strings.TrimSpace(mem.Snapshot()); got != "" {
		t.Fatalf("crontab not empty after delete:\n%s", got)
	}
}

func TestScheduleDefaults(t *testing.T) {
	t.Parallel()
	srv, mem, _, _ := newTestServer(t, "")

	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/api/schedules", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status code = %d", rec.Code)
	}
	want := "0 0 * * * /usr/local/bin/iptvd checkoff\n"
	if got := mem.Snapshot(); got != want {
		t.Fatalf("crontab = %q, want %q", got, want)
	}
}

func TestScheduleMutationFailuresAreGeneric(t *testing.T) {
	t.Parallel()
	srv, mem, _, _ := newTestServer(t, "")
	mem.SaveErr = context.DeadlineExceeded
	h := srv.Handler()

	rec, out := doJSON(t, h, http.MethodPost, "/api/schedules", `{"action":"off"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status code = %d", rec.Code)
	}
	if out["success"] != false {
		t.Fatalf("response = %v", out)
	}
	if msg := out["error"].(string); strings.Contains(msg, "deadline") {
		t.Fatalf("error leaks cause: %q", msg)
	}

	rec, _ = doJSON(t, h, http.MethodDelete, "/api/schedules/12345", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("delete missing: status code = %d", rec.Code)
	}
}

func TestScheduleInvalidID(t *testing.T) {
	t.Parallel()
	srv, _, _, _ := newTestServer(t, "")

	rec, _ := doJSON(t, srv.Handler(), http.MethodDelete, "/api/schedules/notanid", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want 400", rec.Code)
	}
}
