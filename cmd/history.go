package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spotx/internal/formatter"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/repositories"
	"github.com/desertthunder/spotx/internal/shared"
	"github.com/urfave/cli/v3"
)

type historyView struct {
	Sequence  int       `json:"sequence"`
	TaskKey   string    `json:"task_key"`
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Report    string    `json:"report,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Elapsed   string    `json:"elapsed"`
}

// HistoryList prints recorded tasks, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	status := cmd.String("status")
	if status != "" && !models.HistoryStatus(status).Valid() {
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidFlag, status)
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := repositories.NewHistoryRepository(db).List(map[string]any{
		"status": status,
		"limit":  cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	switch {
	case cmd.Bool("csv"):
		data, err := formatter.HistoryToCSV(entries)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	case cmd.Bool("json"):
		views := make([]historyView, 0, len(entries))
		for _, e := range entries {
			views = append(views, historyView{
				Sequence:  e.Sequence(),
				TaskKey:   e.TaskKey(),
				URL:       e.URL(),
				Name:      e.Name(),
				Status:    string(e.Status()),
				Report:    e.Report(),
				StartedAt: e.StartedAt(),
				Elapsed:   e.Elapsed().Round(time.Second).String(),
			})
		}
		return r.writeJSON(views, true)
	}

	if len(entries) == 0 {
		return r.writePlain("No history recorded\n")
	}
	r.writePlainHeader(fmt.Sprintf("History (%d)", len(entries)))
	for _, e := range entries {
		r.writePlain("#%-4d %-9s %s (%s)\n", e.Sequence(), e.Status(), e.Name(), shared.FormatDuration(e.Elapsed().Seconds()))
		if e.Name() != e.URL() {
			r.writePlain("      %s\n", e.URL())
		}
	}
	return nil
}

// HistoryClear soft deletes every history entry.
func (r *Runner) HistoryClear(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := repositories.NewHistoryRepository(db).Clear()
	if err != nil {
		return err
	}
	return r.writePlain("Cleared %d history entries\n", n)
}

// HistorySongs renders the songs cached by earlier metadata fetches.
func (r *Runner) HistorySongs(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	songs, err := repositories.NewSongRepository(db).List()
	if err != nil {
		return err
	}
	return r.exportSongs(songs, cmd.String("export"), "")
}
