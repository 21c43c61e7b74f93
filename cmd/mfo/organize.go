package main

import (
	"fmt"
	"path/filepath"

	"mfo/internal/config"
	"mfo/pkg/types"

	"github.com/spf13/cobra"
)

func newOrganizeCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "organize [directory]",
		Short: "Organize the files already in a directory",
		Long: `Move every file directly inside the directory (default: the configured
downloads folder) into its category folder, then exit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			cfg := a.store.Current()
			dir := cfg.DownloadsFolder
			if len(args) > 0 {
				dir = args[0]
			}

			a.engine.SetDryRun(dryRun)
			if dryRun {
				fmt.Println(infoText(fmt.Sprintf("Dry run: planning organization for '%s'", dir)))
			} else {
				if err := config.EnsureFolders(cfg); err != nil {
					return fmt.Errorf("cannot create category folders: %w", err)
				}
				fmt.Println(infoText(fmt.Sprintf("Organizing '%s'", dir)))
			}

			outcomes, err := a.engine.OrganizeDirectory(cmd.Context(), dir, cfg)
			if err != nil {
				return fmt.Errorf("error organizing directory: %w", err)
			}
			if len(outcomes) == 0 {
				fmt.Println("No files needed organization.")
				return nil
			}

			rows := make([][]string, 0, len(outcomes))
			for _, o := range outcomes {
				result := resultText(o)
				if dryRun && o.Result != types.Skipped {
					result = infoText("planned")
				}
				rows = append(rows, []string{filepath.Base(o.SourcePath), o.Category, o.DestinationPath, result})
			}
			fmt.Println(renderTable([]string{"File", "Category", "Destination", "Result"}, rows, nil))

			if dryRun {
				fmt.Println("\nDry run complete. No files were moved.")
			} else {
				fmt.Println(successText("\nOrganization complete."))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "show what would be done without moving files")
	return cmd
}
