package main

import (
	"fmt"
	"os"

	"mfo/internal/config"

	"github.com/spf13/cobra"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create, inspect and back up the configuration",
	}
	cmd.AddCommand(newConfigInitCmd(opts))
	cmd.AddCommand(newConfigShowCmd(opts))
	cmd.AddCommand(newConfigValidateCmd(opts))
	cmd.AddCommand(newConfigBackupCmd(opts))
	cmd.AddCommand(newConfigRestoreCmd(opts))
	return cmd
}

func newConfigInitCmd(opts *rootOptions) *cobra.Command {
	var (
		force     bool
		downloads string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite it", opts.configPath)
			}
			cfg := config.Default()
			if downloads != "" {
				cfg = config.DefaultFor(downloads)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg, opts.configPath); err != nil {
				return err
			}
			fmt.Println(successText("Wrote default configuration to " + opts.configPath))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cmd.Flags().StringVarP(&downloads, "downloads", "d", "", "downloads folder (default: the XDG download directory)")
	return cmd
}

func newConfigShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(opts.configPath)
			if err != nil {
				return err
			}
			data, err := config.Marshal(cfg, opts.configPath)
			if err != nil {
				return err
			}
			fmt.Println(headerText("# " + opts.configPath))
			fmt.Print(string(data))
			return nil
		},
	}
}

func newConfigValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if len(args) > 0 {
				path = args[0]
			}
			cfg, err := config.LoadFile(path)
			if err != nil {
				return err
			}
			for _, w := range cfg.Lint() {
				fmt.Println(warningText("warning: " + w))
			}
			fmt.Println(successText(path + " is valid"))
			return nil
		},
	}
}

func newConfigBackupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Copy the configuration to <config>.bak",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dst, err := config.Backup(opts.configPath)
			if err != nil {
				return err
			}
			fmt.Println(successText("Backed up to " + dst))
			return nil
		},
	}
}

func newConfigRestoreCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore [backup]",
		Short: "Replace the configuration with a backup",
		Long: `Replace the configuration with a backup (default <config>.bak). The backup
is validated first and the file being replaced is backed up. A running
mfo picks the change up on its own.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from := config.BackupPath(opts.configPath)
			if len(args) > 0 {
				from = args[0]
			}
			if err := config.Restore(from, opts.configPath); err != nil {
				return err
			}
			fmt.Println(successText("Restored " + opts.configPath + " from " + from))
			return nil
		},
	}
}
