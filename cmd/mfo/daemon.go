package main

import (
	"fmt"
	"strconv"
	"time"

	"mfo/internal/watch"

	"github.com/spf13/cobra"
)

// newDaemonCmd creates the daemon command to control a running instance
func newDaemonCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Control a running mfo",
		Long:  `Inspect and control an mfo started with 'mfo run', in the foreground or with --daemonize.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showDaemonStatus(opts)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether mfo is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showDaemonStatus(opts)
		},
	})
	cmd.AddCommand(newDaemonSignalCmd(opts, "pause", "Stop organizing new files until resumed"))
	cmd.AddCommand(newDaemonSignalCmd(opts, "resume", "Resume organizing new files"))
	cmd.AddCommand(newDaemonSignalCmd(opts, "reload", "Re-read the configuration file"))
	cmd.AddCommand(newDaemonStopCmd(opts))
	return cmd
}

func showDaemonStatus(opts *rootOptions) error {
	control := watch.NewControl(opts.stateDir, nil)
	pid, running := control.Running()

	state := warningText("not running")
	pidText := "-"
	if running {
		state = successText("running")
		pidText = strconv.Itoa(pid)
	}
	fmt.Println(renderTable(
		[]string{"State", "PID", "Config", "State directory"},
		[][]string{{state, pidText, opts.configPath, opts.stateDir}},
		nil,
	))
	return nil
}

func newDaemonSignalCmd(opts *rootOptions, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := watch.NewControl(opts.stateDir, nil).Send(name); err != nil {
				return err
			}
			fmt.Println(successText(fmt.Sprintf("Sent %s", name)))
			return nil
		},
	}
}

// newDaemonStopCmd creates the 'daemon stop' command
func newDaemonStopCmd(opts *rootOptions) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running mfo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			control := watch.NewControl(opts.stateDir, nil)
			fmt.Println(infoText("Stopping mfo..."))
			if err := control.Send("stop"); err != nil {
				return err
			}

			deadline := time.Now().Add(wait)
			for time.Now().Before(deadline) {
				if _, running := control.Running(); !running {
					fmt.Println(successText("mfo stopped"))
					return nil
				}
				time.Sleep(200 * time.Millisecond)
			}
			return fmt.Errorf("mfo is still running after %s", wait)
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 15*time.Second, "how long to wait for in-flight moves to finish")
	return cmd
}
