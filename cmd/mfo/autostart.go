package main

import (
	"fmt"

	"mfo/internal/autostart"

	"github.com/spf13/cobra"
)

func newAutostartCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Start mfo when you log in",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Launch 'mfo run' at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			command, err := autostart.Command("run", "--config", opts.configPath)
			if err != nil {
				return err
			}
			if err := autostart.New().Enable(command); err != nil {
				return err
			}
			fmt.Println(successText("Autostart enabled"))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Stop launching mfo at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := autostart.New().Disable(); err != nil {
				return err
			}
			fmt.Println(successText("Autostart disabled"))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether autostart is enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := autostart.New().Enabled()
			if err != nil {
				return err
			}
			if on {
				fmt.Println(successText("Autostart is enabled"))
			} else {
				fmt.Println(warningText("Autostart is disabled"))
			}
			return nil
		},
	})
	return cmd
}
