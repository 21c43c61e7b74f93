package main

import (
	"path/filepath"

	"mfo/internal/config"
	"mfo/internal/watch"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFile    string
	stateDir   string
}

// newRootCmd creates the root command
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "mfo",
		Short: "Move new downloads into category folders",
		Long: `mfo watches your downloads folder and moves every new file into a
category folder chosen by its extension. It can also sweep files that are
already there, on demand or on a schedule, and find duplicate files.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// The daemon runs from /, so relative paths must be fixed now.
			for _, p := range []*string{&opts.configPath, &opts.logFile, &opts.stateDir} {
				if *p == "" {
					continue
				}
				abs, err := filepath.Abs(*p)
				if err != nil {
					return err
				}
				*p = abs
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", config.DefaultPath(), "config file (.json, .yaml or .yml)")
	flags.StringVarP(&opts.logLevel, "log-level", "l", "", "log level: debug, info, warn or error (default from config)")
	flags.StringVar(&opts.logFile, "log-file", "", "also write log lines to this file")
	flags.StringVar(&opts.stateDir, "state-dir", watch.DefaultStateDir(), "directory for the lock and pid files")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newOrganizeCmd(opts))
	rootCmd.AddCommand(newDupesCmd(opts))
	rootCmd.AddCommand(newDaemonCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newAutostartCmd(opts))

	return rootCmd
}
