package main

import (
	"context"

	"mfo/internal/config"
	"mfo/internal/log"
	"mfo/internal/notify"
	"mfo/internal/organize"
)

// app holds the long-lived pieces a command needs, built once and passed
// along explicitly.
type app struct {
	opts     *rootOptions
	logger   *log.Logger
	store    *config.Store
	notifier notify.Notifier
	desktop  *notify.Desktop
	engine   *organize.Engine
}

// newApp loads the configuration and wires the logger, notifier and
// organize engine. One-shot commands pass desktop=false and get no
// desktop notifications.
func newApp(opts *rootOptions, desktop bool, overrides ...config.Override) (*app, error) {
	level := opts.logLevel
	if level == "" {
		level = "info"
	}
	logOpts := []log.Option{log.WithLevel(level)}
	if opts.logFile != "" {
		logOpts = append(logOpts, log.WithFile(opts.logFile))
	}
	logger := log.NewLogger(logOpts...)

	store := config.NewStore(opts.configPath, logger, overrides...)
	cfg, err := store.Load()
	if err != nil {
		logger.Close()
		return nil, err
	}
	if opts.logLevel == "" {
		if err := logger.SetLevel(cfg.LogLevel); err != nil {
			logger.WithError(err).Warn("Ignoring log_level from config")
		}
	}

	a := &app{opts: opts, logger: logger, store: store, notifier: notify.Nop{}}
	if desktop {
		a.desktop = notify.NewDesktop(cfg.IconPath, logger)
		a.notifier = a.desktop
	}
	a.engine = organize.NewEngine(organize.NewMover(a.notifier, logger), logger)
	return a, nil
}

// follow applies log level and icon changes from every reloaded snapshot
// until ctx ends.
func (a *app) follow(ctx context.Context) {
	updates := a.store.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-updates:
			if a.opts.logLevel == "" {
				if err := a.logger.SetLevel(cfg.LogLevel); err != nil {
					a.logger.WithError(err).Warn("Ignoring log_level from config")
				}
			}
			if a.desktop != nil {
				a.desktop.SetIcon(cfg.IconPath)
			}
		}
	}
}

func (a *app) close() {
	if a.desktop != nil {
		a.desktop.Wait()
	}
	a.logger.Close()
}
