package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/tasks"
)

var _ tasks.HistoryRecorder = (*HistoryRecorder)(nil)

// HistoryRecorder implements tasks.HistoryRecorder on top of the history and song repositories.
//
// Only finished tasks are recorded; running tasks are ignored.
type HistoryRecorder struct {
	history *HistoryRepository
	songs   *SongRepository
}

// NewHistoryRecorder creates a new HistoryRecorder with the given repositories
func NewHistoryRecorder(history *HistoryRepository, songs *SongRepository) *HistoryRecorder {
	return &HistoryRecorder{history: history, songs: songs}
}

// Record stores task as a history entry.
func (a *HistoryRecorder) Record(ctx context.Context, task tasks.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var status models.HistoryStatus
	report := ""
	switch task.State.(type) {
	case tasks.Completed:
		status = models.HistoryCompleted
	case tasks.Canceled:
		status = models.HistoryCanceled
	case tasks.Failed:
		status = models.HistoryFailed
		report = task.Report()
	default:
		return nil
	}

	entry := models.NewHistoryEntry(task.Key, task.URL, task.Name, status, report, task.Output, task.StartedAt)
	if err := a.history.Create(entry); err != nil {
		return fmt.Errorf("failed to record task %s: %w", task.Key, err)
	}
	return nil
}

// CacheSongs stores the metadata of fetched songs.
func (a *HistoryRecorder) CacheSongs(ctx context.Context, songs []models.SongInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.songs.SaveAll(songs)
}
