package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/bandcoach/internal/model"
	"github.com/pavelanni/bandcoach/internal/store"
)

const exportSheet = "Submissions"

var exportHeader = []any{
	"Submission ID", "Student email", "Student name", "Task", "Words",
	"Overall", "TR", "CC", "LR", "GRA", "Submitted (UTC)",
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export marked submissions as JSON or XLSX",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "bandcoach.db", "SQLite database path")
	f.StringP("format", "f", "json", "Output format (json, xlsx)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	format := strings.ToLower(v.GetString("format"))
	if format != "json" && format != "xlsx" {
		return fmt.Errorf("unknown format %q: use json or xlsx", format)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	results, err := db.ExportSubmissions()
	if err != nil {
		return fmt.Errorf("export submissions: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "xlsx" {
		return writeXLSX(w, results)
	}
	return writeJSON(w, results, time.Now().UTC())
}

func writeJSON(w io.Writer, results []model.SubmissionExport, now time.Time) error {
	if results == nil {
		results = []model.SubmissionExport{}
	}
	export := model.SubmissionsExport{
		GeneratedAt: now,
		Count:       len(results),
		Results:     results,
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}

// writeXLSX writes one row per submission under a header row.
func writeXLSX(w io.Writer, results []model.SubmissionExport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, res := range results {
		row := []any{
			res.SubmissionID, res.StudentEmail, res.StudentName, string(res.TaskType),
			optional(res.WordCount), optional(res.OverallBand),
			nil, nil, nil, nil,
			res.CreatedAt.UTC().Format(time.RFC3339),
		}
		if c := res.Criteria; c != nil {
			row[6], row[7], row[8], row[9] = c.TR, c.CC, c.LR, c.GRA
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func optional[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
