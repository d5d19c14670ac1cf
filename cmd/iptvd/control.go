package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli"

	"iptvd/internal/config"
	"iptvd/internal/iface"
	"iptvd/internal/override"
	"iptvd/internal/storage"
	"iptvd/pkg/logx"
)

// oneShot loads the config and builds the pieces a single command needs.
// One-shot commands log to the console only; the file sink belongs to the
// daemon.
func oneShot(c *cli.Context) (*config.Config, logx.Logger, error) {
	mgr := config.NewManager(c.String("config"))
	cfg, err := mgr.Load()
	if err != nil {
		return nil, logx.Logger{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, logx.Logger{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, logx.NewConsole(cfg.Logging.Level), nil
}

func printResult(res iface.Result) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	if !res.OK {
		return cli.NewExitError("", 1)
	}
	return nil
}

func powerOn(c *cli.Context) error {
	cfg, log, err := oneShot(c)
	if err != nil {
		return err
	}
	return printResult(newPower(cfg, log).Up(context.Background()))
}

func powerOff(c *cli.Context) error {
	cfg, log, err := oneShot(c)
	if err != nil {
		return err
	}
	return printResult(newPower(cfg, log).Down(context.Background()))
}

func powerStatus(c *cli.Context) error {
	cfg, log, err := oneShot(c)
	if err != nil {
		return err
	}
	power := newPower(cfg, log)
	ctx := context.Background()
	res := power.Status(ctx)
	fmt.Println(res.Stdout)
	fmt.Println("state:", power.State(ctx))
	if !res.OK {
		return cli.NewExitError("", 1)
	}
	return nil
}

// checkoff is the command cron runs for every power-off line. It honors an
// open manual override window: when the marker says the window is still
// running, the interface stays up and this invocation does nothing.
func checkoff(c *cli.Context) error {
	cfg, log, err := oneShot(c)
	if err != nil {
		return err
	}

	if end, ok := override.ReadMarker(cfg.MarkerPath()); ok && end.After(time.Now()) {
		log.Info("manual override active, skipping scheduled off", logx.Time("until", end))
		return nil
	}
	// A stale marker (window already over) no longer protects the interface.
	if err := os.Remove(cfg.MarkerPath()); err != nil && !os.IsNotExist(err) {
		log.Warn("stale marker remove failed", logx.Err(err))
	}

	res := newPower(cfg, log).Down(context.Background())
	auditOneShot(cfg, log, storage.AuditEntry{
		At:     time.Now(),
		Action: storage.AuditPowerOff,
		Detail: "scheduled",
		OK:     res.OK,
	})
	if !res.OK {
		return cli.NewExitError("scheduled power-off failed: "+res.Stderr, 1)
	}
	log.Info("scheduled power-off applied")
	return nil
}

func auditOneShot(cfg *config.Config, log logx.Logger, e storage.AuditEntry) {
	store, err := openStore(cfg, log)
	if err != nil || store == nil {
		return
	}
	defer store.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := store.AppendAudit(ctx, e); err != nil {
		log.Warn("audit append failed", logx.Err(err))
	}
}

func listSchedules(c *cli.Context) error {
	cfg, log, err := oneShot(c)
	if err != nil {
		return err
	}
	reg, err := newRegistry(cfg, log)
	if err != nil {
		return err
	}
	items, err := reg.List(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSPEC\tACTION\tENABLED\tCOMMAND")
	for _, s := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%v\t%s\n", s.ID, s.Spec(), s.Action, s.Enabled, s.Command)
	}
	return w.Flush()
}
