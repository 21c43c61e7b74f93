package main

import (
	"fmt"

	"mfo/internal/errors"
	"mfo/pkg/types"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#73F59F"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD866"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#81A1C1"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B5ECD")).Bold(true)
)

func successText(s string) string { return successStyle.Render(s) }
func errorText(s string) string   { return errorStyle.Render(s) }
func warningText(s string) string { return warningStyle.Render(s) }
func infoText(s string) string    { return infoStyle.Render(s) }
func headerText(s string) string  { return headerStyle.Render(s) }

// failureText renders a command error, with a hint for config problems.
func failureText(err error) string {
	text := errorText(err.Error())
	if errors.IsInvalidConfig(err) {
		text += "\n" + infoText("Run \"mfo config validate\" to check the configuration file.")
	}
	return text
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func resultText(o types.MoveOutcome) string {
	switch o.Result {
	case types.Success:
		return successText(o.Result.String())
	case types.Failed:
		if o.Err != nil {
			return errorText(fmt.Sprintf("%s: %v", o.Result, o.Err))
		}
		return errorText(o.Result.String())
	}
	return warningText(o.Result.String())
}
