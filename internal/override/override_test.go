package override

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"iptvd/internal/iface"
	"iptvd/pkg/logx"
)

type fakePower struct {
	mu   sync.Mutex
	ups  int
	down int
}

func (f *fakePower) Up(ctx context.Context) iface.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ups++
	return iface.Result{OK: true}
}

func (f *fakePower) Down(ctx context.Context) iface.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down++
	return iface.Result{OK: true}
}

func (f *fakePower) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ups, f.down
}

func newTestService(t *testing.T) (*Service, *fakePower, string) {
	t.Helper()
	marker := filepath.Join(t.TempDir(), "marker")
	power := &fakePower{}
	svc := New(Config{MarkerPath: marker}, power, nil, nil, logx.Nop())
	return svc, power, marker
}

func TestStartExpiresAndPowersOff(t *testing.T) {
	t.Parallel()
	svc, power, marker := newTestService(t)

	if err := svc.start(context.Background(), 60*time.Millisecond, 1); err != nil {
		t.Fatalf("start: %v", err)
	}

	if !svc.SuppressOff() {
		t.Fatal("SuppressOff should be true right after start")
	}
	if _, ok := svc.Remaining(); !ok {
		t.Fatal("Remaining should report an active window")
	}
	if end, ok := ReadMarker(marker); !ok || !end.After(time.Now().Add(-time.Second)) {
		t.Fatalf("marker not written or unparsable: %v %v", end, ok)
	}

	time.Sleep(250 * time.Millisecond)

	ups, downs := power.counts()
	if ups != 1 || downs != 1 {
		t.Fatalf("power calls = (%d up, %d down), want (1, 1)", ups, downs)
	}
	if svc.SuppressOff() {
		t.Fatal("SuppressOff should be false after expiry")
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Fatalf("marker should be removed after expiry: %v", err)
	}
}

func TestCancelPreventsDelayedOff(t *testing.T) {
	t.Parallel()
	svc, power, marker := newTestService(t)

	if err := svc.start(context.Background(), 40*time.Millisecond, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !svc.Cancel() {
		t.Fatal("Cancel should report an active timer")
	}
	if svc.SuppressOff() {
		t.Fatal("SuppressOff should be false after cancel")
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Fatalf("marker should be removed on cancel: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if _, downs := power.counts(); downs != 0 {
		t.Fatalf("cancelled override still powered off (%d down calls)", downs)
	}

	if svc.Cancel() {
		t.Fatal("second Cancel should report no active timer")
	}
}

func TestStartSupersedesPrevious(t *testing.T) {
	t.Parallel()
	svc, power, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.start(ctx, 40*time.Millisecond, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.start(ctx, time.Hour, 60); err != nil {
		t.Fatalf("second start: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if _, downs := power.counts(); downs != 0 {
		t.Fatalf("superseded override fired its off action (%d down calls)", downs)
	}
	if !svc.SuppressOff() {
		t.Fatal("the new window should still be active")
	}
	rem, ok := svc.Remaining()
	if !ok || rem < 50*time.Minute {
		t.Fatalf("Remaining = (%v, %v), want close to an hour", rem, ok)
	}
}

func TestStartRejectsNonPositiveMinutes(t *testing.T) {
	t.Parallel()
	svc, power, _ := newTestService(t)
	for _, m := range []int{0, -5} {
		if err := svc.Start(context.Background(), m); err == nil {
			t.Fatalf("Start(%d): expected error", m)
		}
	}
	if ups, _ := power.counts(); ups != 0 {
		t.Fatal("rejected start must not power the interface on")
	}
}

func TestReadMarker(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	if _, ok := ReadMarker(filepath.Join(dir, "missing")); ok {
		t.Fatal("missing marker should read as inactive")
	}

	bad := filepath.Join(dir, "bad")
	if err := os.WriteFile(bad, []byte("not a timestamp"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := ReadMarker(bad); ok {
		t.Fatal("garbage marker should read as inactive")
	}

	good := filepath.Join(dir, "good")
	want := time.Date(2025, time.June, 1, 20, 30, 0, 0, time.UTC)
	if err := os.WriteFile(good, []byte(want.Format(time.RFC3339)+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, ok := ReadMarker(good)
	if !ok || !got.Equal(want) {
		t.Fatalf("ReadMarker = (%v, %v), want %v", got, ok, want)
	}
}
