package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pavelanni/bandcoach/internal/band"
	"github.com/pavelanni/bandcoach/internal/store"
)

func syncBandsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync-bands",
		Short: "Recompute each student's current band from recent submissions",
		RunE:  runSyncBands,
	}
	f := cmd.Flags()
	f.String("db", "bandcoach.db", "SQLite database path")
	f.Int("window", band.DefaultRecentWindow, "Number of recent marked submissions to average")
	f.Bool("dry-run", false, "Report changes without writing them")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func runSyncBands(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	updated, err := syncBands(db, v.GetInt("window"), v.GetBool("dry-run"))
	if err != nil {
		return err
	}
	slog.Info("band sync finished", "updated", updated, "dry_run", v.GetBool("dry-run"))
	return nil
}

// syncBands overwrites each student's current band with the rounded mean of
// their last window marked submissions. Students without marks are left alone.
func syncBands(db *store.Store, window int, dryRun bool) (int, error) {
	students, err := db.ListStudents()
	if err != nil {
		return 0, fmt.Errorf("list students: %w", err)
	}

	updated := 0
	for _, s := range students {
		subs, err := db.ListSubmissions(s.ID, 0)
		if err != nil {
			return updated, fmt.Errorf("list submissions for %s: %w", s.Email, err)
		}
		recent, ok := band.ComputeRecentBand(subs, window)
		if !ok || recent == s.CurrentBand {
			continue
		}
		slog.Info("current band changed", "student", s.Email, "from", s.CurrentBand, "to", recent)
		if !dryRun {
			if err := db.SetCurrentBand(s.ID, recent); err != nil {
				return updated, fmt.Errorf("update %s: %w", s.Email, err)
			}
		}
		updated++
	}
	return updated, nil
}
