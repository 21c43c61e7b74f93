package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mfo/internal/config"
	"mfo/internal/duplicates"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newDupesCmd(opts *rootOptions) *cobra.Command {
	var action string

	cmd := &cobra.Command{
		Use:   "dupes",
		Short: "Find duplicate files in the category folders",
		Long: `Scan every category folder for files with the same content and apply
the duplicate action: notify (report only), move (all but the first copy go
to the duplicates folder) or delete (all but the first copy are removed).

Files larger than 8 KiB are compared by their first 8 KiB only, so files
that share a header but differ later are reported as duplicates.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			cfg := a.store.Current()
			act := cfg.DuplicateDetection.Action
			if cmd.Flags().Changed("action") {
				act = config.DuplicateAction(action)
				switch act {
				case config.ActionNotify, config.ActionMove, config.ActionDelete:
				default:
					return fmt.Errorf("unknown action %q: use notify, move or delete", action)
				}
			}

			bar := progressbar.NewOptions(-1,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("Scanning"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			report, err := duplicates.NewScanner(a.logger).Scan(cmd.Context(), cfg.CategoryFolders(), func(processed, total int) {
				bar.ChangeMax(total)
				_ = bar.Set(processed)
			})
			_ = bar.Finish()
			if err != nil {
				return err
			}

			fmt.Println(headerText(fmt.Sprintf("Scanned %d files in %s", report.Total, report.Duration.Round(time.Millisecond))))
			if len(report.Groups) == 0 {
				fmt.Println(successText("No duplicates found."))
				return nil
			}

			rows := make([][]string, 0, len(report.Groups))
			for i, g := range report.Groups {
				names := make([]string, len(g.Members))
				for j, m := range g.Members {
					names[j] = filepath.Base(m)
				}
				rows = append(rows, []string{strconv.Itoa(i + 1), humanize.Bytes(uint64(g.Size)), strconv.Itoa(len(g.Members)), strings.Join(names, ", ")})
			}
			fmt.Println(renderTable([]string{"#", "Size", "Copies", "Files (first is kept)"}, rows, []columnAlignment{alignRight, alignRight, alignRight, alignLeft}))
			fmt.Printf("%d duplicate files, %s reclaimable\n", report.DuplicateFiles(), humanize.Bytes(uint64(report.ReclaimableBytes())))

			result := duplicates.Apply(report, act, cfg, a.notifier, a.logger)
			switch act {
			case config.ActionMove:
				fmt.Println(successText(fmt.Sprintf("Moved %d files to %s", len(result.Moved), cfg.DuplicatesDir())))
			case config.ActionDelete:
				fmt.Println(successText(fmt.Sprintf("Deleted %d files", len(result.Deleted))))
			}
			for path, err := range result.Failed {
				fmt.Println(errorText(fmt.Sprintf("%s: %v", path, err)))
			}
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d files could not be processed", len(result.Failed))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&action, "action", "a", "", "notify, move or delete (default from config)")
	return cmd
}
