package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"mfo/internal/config"
	"mfo/internal/log"
	"mfo/internal/watch"

	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		downloads     string
		notifications bool
		retryAttempts int
		retryDelay    float64
		sweep         bool
		daemonize     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch the downloads folder and organize new files",
		Long: `Run the organizer in the foreground until interrupted.

Send SIGHUP to reload the configuration, SIGUSR1 to pause, SIGUSR2 to
resume and SIGTERM or SIGINT to stop. The 'mfo daemon' commands do this
for you.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := config.WriteDefault(opts.configPath)
			if err != nil {
				return fmt.Errorf("cannot create default config: %w", err)
			}
			if created {
				fmt.Println(infoText("Created default configuration at " + opts.configPath))
			}

			if daemonize {
				logFile := opts.logFile
				if logFile == "" {
					logFile = filepath.Join(opts.stateDir, "mfo.log")
				}
				if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
					return err
				}
				dctx, parent, err := watch.Daemonize(logFile)
				if err != nil {
					return err
				}
				if parent {
					fmt.Println(successText("mfo started in the background, logging to " + logFile))
					return nil
				}
				defer dctx.Release()
			}

			var overrides []config.Override
			flags := cmd.Flags()
			if flags.Changed("downloads") {
				overrides = append(overrides, func(c *config.Config) { c.DownloadsFolder = downloads })
			}
			if flags.Changed("notifications") {
				overrides = append(overrides, func(c *config.Config) { c.Notifications = notifications })
			}
			if flags.Changed("retry-attempts") {
				overrides = append(overrides, func(c *config.Config) { c.RetryAttempts = retryAttempts })
			}
			if flags.Changed("retry-delay") {
				overrides = append(overrides, func(c *config.Config) { c.RetryDelay = retryDelay })
			}

			a, err := newApp(opts, true, overrides...)
			if err != nil {
				return err
			}
			defer a.close()
			return serve(cmd.Context(), a, sweep)
		},
	}

	cmd.Flags().StringVarP(&downloads, "downloads", "d", "", "downloads folder to watch (overrides config)")
	cmd.Flags().BoolVarP(&notifications, "notifications", "n", true, "show desktop notifications (overrides config)")
	cmd.Flags().IntVarP(&retryAttempts, "retry-attempts", "r", 3, "attempts per file (overrides config)")
	cmd.Flags().Float64VarP(&retryDelay, "retry-delay", "t", 2, "seconds between attempts (overrides config)")
	cmd.Flags().BoolVar(&sweep, "sweep", false, "organize files already in the downloads folder before watching")
	cmd.Flags().BoolVar(&daemonize, "daemonize", false, "detach and run in the background")

	return cmd
}

func serve(parent context.Context, a *app, sweep bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if bak, err := config.Backup(a.opts.configPath); err != nil {
		a.logger.WithError(err).Warn("Could not back up configuration")
	} else {
		a.logger.With(log.F("backup", bak)).Debug("Configuration backed up")
	}

	control := watch.NewControl(a.opts.stateDir, a.logger)
	if err := control.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := control.Release(); err != nil {
			a.logger.WithError(err).Warn("Failed to release instance lock")
		}
	}()

	d := watch.NewDispatcher(a.store, a.engine, a.notifier, a.logger)
	if err := d.Start(ctx); err != nil {
		return err
	}
	go a.follow(ctx)

	if sweep {
		if _, err := d.Sweep(ctx); err != nil {
			a.logger.WithError(err).Error("Initial sweep failed")
		}
	}

	a.logger.With(log.F("pid", os.Getpid())).Info("mfo is running, press Ctrl+C to stop")
	return d.ServeSignals(ctx)
}
