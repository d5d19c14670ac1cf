package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/urfave/cli"

	"iptvd/internal/config"
	"iptvd/internal/crontab"
	"iptvd/internal/iface"
	"iptvd/internal/notify"
	"iptvd/internal/override"
	"iptvd/internal/schedule"
	"iptvd/internal/storage"
	"iptvd/internal/web"
	"iptvd/pkg/logx"
)

func serve(c *cli.Context) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mgr := config.NewManager(c.String("config"))
	cfg, err := mgr.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	defer logSvc.Close()

	mgr.SetLogger(log.With(logx.String("comp", "config")))
	mgr.SetValidator(func(ctx context.Context, c *config.Config) error {
		return c.Validate()
	})

	store, err := openStore(cfg, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	power := newPower(cfg, log)
	reg, err := newRegistry(cfg, log)
	if err != nil {
		return err
	}

	notifier, err := newNotifier(cfg, log)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	notifier.Start(ctx)
	defer notifier.Stop()

	ov := override.New(override.Config{MarkerPath: cfg.MarkerPath()},
		power, store, notifier, log.With(logx.String("comp", "override")))

	// Live logging reconfiguration on config file edits. The rest of the
	// daemon keeps its boot-time wiring; interface or crontab changes need
	// a restart.
	updates := mgr.Subscribe(1)
	defer mgr.Unsubscribe(updates)
	go func() {
		for next := range updates {
			if next == nil {
				continue
			}
			logSvc.Apply(logx.Config{
				Level:   next.Logging.Level,
				Console: next.Logging.Console,
				File: logx.FileConfig{
					Enabled: next.Logging.File.Enabled,
					Path:    next.Logging.File.Path,
				},
			})
		}
	}()
	go func() {
		if err := mgr.Watch(ctx); err != nil && ctx.Err() == nil {
			log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	var srv *web.Server
	errCh := make(chan error, 1)
	if cfg.ServerEnabled() {
		srv = web.New(reg, power, ov, store, log.With(logx.String("comp", "web")))
		if store != nil {
			srv.SetAuditWriter(store)
		}
		if notifier != nil {
			srv.SetNotifier(notifier)
		}
		go func() {
			log.Info("api listening", logx.String("addr", cfg.ServerAddr()))
			errCh <- srv.Start(cfg.ServerAddr())
		}()
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info("iptvd started",
		logx.String("iface", cfg.Interface.Name),
		logx.String("config", c.String("config")),
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if srv != nil {
		shctx, shcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shcancel()
		if err := srv.Shutdown(shctx); err != nil {
			log.Warn("http shutdown", logx.Err(err))
		}
	}
	log.Info("iptvd stopped")
	return nil
}

// ---- component wiring shared with the one-shot commands ----

func newPower(cfg *config.Config, log logx.Logger) *iface.Controller {
	return iface.New(iface.Config{
		Name:    cfg.Interface.Name,
		Sudo:    cfg.Interface.Sudo,
		Timeout: cfg.CommandTimeout(),
	}, log.With(logx.String("comp", "iface")))
}

func newRegistry(cfg *config.Config, log logx.Logger) (*schedule.Registry, error) {
	timeout, err := config.ParseDurationOrDefault("crontab.timeout", cfg.Crontab.Timeout, 0)
	if err != nil {
		return nil, err
	}
	src, err := crontab.Open(crontab.Config{
		Driver:  cfg.Crontab.Driver,
		Path:    cfg.Crontab.Path,
		User:    cfg.Crontab.User,
		Timeout: timeout,
	}, log.With(logx.String("comp", "crontab")))
	if err != nil {
		return nil, fmt.Errorf("open crontab: %w", err)
	}
	return schedule.New(src, schedule.Config{
		Markers: crontab.Markers{
			Up:  cfg.UpMarker(),
			Off: cfg.OffCommand(),
		},
		OnCommand:  cfg.OnCommand(),
		OffCommand: cfg.OffCommand(),
	}, log.With(logx.String("comp", "schedule"))), nil
}

func openStore(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	if cfg.Storage == nil {
		return nil, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return nil, err
	}
	return storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "storage")))
}

func newNotifier(cfg *config.Config, log logx.Logger) (*notify.Service, error) {
	nc := notify.Config{}
	if cfg.Telegram != nil {
		nc = notify.Config{
			Token:      cfg.Telegram.Token,
			ChatID:     cfg.Telegram.ChatID,
			RatePerSec: cfg.Telegram.RatePerSec,
		}
	}
	return notify.New(nc, log.With(logx.String("comp", "notify")))
}
