package repositories

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
	"github.com/desertthunder/spotx/internal/tasks"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func newEntry(key string, status models.HistoryStatus) *models.HistoryEntry {
	return models.NewHistoryEntry(key, "https://open.spotify.com/track/"+key, "Song "+key, status, "", "output", time.Now().Add(-time.Minute))
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "history")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for a table without sequence")
	}
}

func TestHistoryRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		entry := newEntry("a", models.HistoryCompleted)

		if err := repo.Create(entry); err != nil {
			t.Fatalf("failed to create entry: %v", err)
		}
		if entry.ID() == "" {
			t.Error("ID should be set after creation")
		}
		if entry.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", entry.Sequence())
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		if err := repo.Create(newEntry("a", models.HistoryStatus("running"))); err == nil {
			t.Fatal("expected validation error for unknown status")
		}
		if err := repo.Create(models.NewHistoryEntry("", "u", "", models.HistoryFailed, "", "", time.Time{})); err == nil {
			t.Fatal("expected validation error for empty task key")
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		entry := newEntry("a", models.HistoryFailed)
		entry.SetReport("boom")
		if err := repo.Create(entry); err != nil {
			t.Fatalf("failed to create entry: %v", err)
		}

		got, err := repo.Get(entry.ID())
		if err != nil {
			t.Fatalf("failed to get entry: %v", err)
		}
		if got.TaskKey() != "a" || got.Status() != models.HistoryFailed || got.Report() != "boom" || got.Output() != "output" {
			t.Errorf("unexpected entry %+v", got)
		}
		if got.Elapsed() < time.Minute-time.Second {
			t.Errorf("expected elapsed of about a minute, got %s", got.Elapsed())
		}

		if _, err := repo.Get("nonexistent-id"); err == nil {
			t.Error("expected error for nonexistent entry")
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		entry := newEntry("a", models.HistoryFailed)
		if err := repo.Create(entry); err != nil {
			t.Fatalf("failed to create entry: %v", err)
		}

		entry.SetReport("updated")
		if err := repo.Update(entry); err != nil {
			t.Fatalf("failed to update entry: %v", err)
		}
		got, _ := repo.Get(entry.ID())
		if got.Report() != "updated" {
			t.Errorf("expected updated report, got %q", got.Report())
		}

		missing := newEntry("b", models.HistoryFailed)
		missing.SetID("nonexistent-id")
		if err := repo.Update(missing); err == nil {
			t.Error("expected error updating nonexistent entry")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		entry := newEntry("a", models.HistoryCompleted)
		if err := repo.Create(entry); err != nil {
			t.Fatalf("failed to create entry: %v", err)
		}

		if err := repo.Delete(entry.ID()); err != nil {
			t.Fatalf("failed to delete entry: %v", err)
		}
		if _, err := repo.Get(entry.ID()); err == nil {
			t.Error("deleted entry should not be returned")
		}
		if err := repo.Delete(entry.ID()); err == nil {
			t.Error("deleting twice should fail")
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		for _, e := range []*models.HistoryEntry{
			newEntry("a", models.HistoryCompleted),
			newEntry("b", models.HistoryFailed),
			newEntry("c", models.HistoryCompleted),
		} {
			if err := repo.Create(e); err != nil {
				t.Fatalf("failed to create entry: %v", err)
			}
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(all) != 3 || all[0].TaskKey() != "c" {
			t.Errorf("expected newest first, got %d entries", len(all))
		}

		tests := []struct {
			name     string
			criteria map[string]any
			want     int
		}{
			{"status string", map[string]any{"status": "completed"}, 2},
			{"status typed", map[string]any{"status": models.HistoryFailed}, 1},
			{"task key", map[string]any{"task_key": "b"}, 1},
			{"limit", map[string]any{"limit": 2}, 2},
			{"no match", map[string]any{"status": "canceled"}, 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.List(tt.criteria)
				if err != nil {
					t.Fatalf("failed to list: %v", err)
				}
				if len(got) != tt.want {
					t.Errorf("expected %d entries, got %d", tt.want, len(got))
				}
			})
		}
	})

	t.Run("Clear", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		repo.Create(newEntry("a", models.HistoryCompleted))
		repo.Create(newEntry("b", models.HistoryCanceled))

		n, err := repo.Clear()
		if err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 cleared entries, got %d", n)
		}
		if all, _ := repo.List(nil); len(all) != 0 {
			t.Errorf("expected empty history, got %d", len(all))
		}
	})
}

func TestSongRepository(t *testing.T) {
	repo := NewSongRepository(setupTestDB(t))

	song := models.SongInfo{SongID: "s1", Name: "Song", Artist: "Artist", AlbumName: "Album", Duration: 185, ISRC: "X1"}
	if err := repo.Save(song); err != nil {
		t.Fatalf("failed to save song: %v", err)
	}
	song.Name = "Renamed"
	if err := repo.SaveAll([]models.SongInfo{song, {SongID: "s2", Name: "Other", Artist: "A"}, {Name: "no id"}}); err != nil {
		t.Fatalf("failed to save songs: %v", err)
	}

	got, err := repo.Get("s1")
	if err != nil {
		t.Fatalf("failed to get song: %v", err)
	}
	if got.Name != "Renamed" || got.Duration != 185 || got.ISRC != "X1" {
		t.Errorf("unexpected song %+v", got)
	}

	all, err := repo.List()
	if err != nil {
		t.Fatalf("failed to list songs: %v", err)
	}
	if len(all) != 2 || all[0].SongID != "s2" {
		t.Errorf("unexpected songs %+v", all)
	}

	if _, err := repo.Get("missing"); err == nil {
		t.Error("expected error for missing song")
	}
}

func TestHistoryRecorder(t *testing.T) {
	db := setupTestDB(t)
	history := NewHistoryRepository(db)
	rec := NewHistoryRecorder(history, NewSongRepository(db))
	ctx := context.Background()
	started := time.Now().Add(-time.Second)

	for _, task := range []tasks.Task{
		{Key: "k1", URL: "u1", Name: "one", State: tasks.Completed{}, Output: "done", StartedAt: started},
		{Key: "k2", URL: "u2", State: tasks.Failed{Report: "exit 1"}, StartedAt: started},
		{Key: "k3", URL: "u3", State: tasks.Failed{}, CurrentLine: "last", StartedAt: started},
		{Key: "k4", URL: "u4", State: tasks.Running{Progress: 0.5}, StartedAt: started},
		{Key: "k5", URL: "u5", State: tasks.Canceled{}, StartedAt: started},
	} {
		if err := rec.Record(ctx, task); err != nil {
			t.Fatalf("failed to record %s: %v", task.Key, err)
		}
	}

	entries, err := history.List(nil)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("running tasks must not be recorded, got %d entries", len(entries))
	}

	byKey := map[string]*models.HistoryEntry{}
	for _, e := range entries {
		byKey[e.TaskKey()] = e
	}
	if e := byKey["k1"]; e.Status() != models.HistoryCompleted || e.Output() != "done" || e.Name() != "one" {
		t.Errorf("unexpected entry %+v", e)
	}
	if e := byKey["k2"]; e.Status() != models.HistoryFailed || e.Report() != "exit 1" {
		t.Errorf("unexpected entry %+v", e)
	}
	if e := byKey["k3"]; !strings.Contains(e.Report(), "Last line: last") {
		t.Errorf("expected fallback report, got %q", e.Report())
	}
	if e := byKey["k5"]; e.Status() != models.HistoryCanceled {
		t.Errorf("unexpected entry %+v", e)
	}

	if err := rec.CacheSongs(ctx, []models.SongInfo{{SongID: "s1", Name: "Song"}}); err != nil {
		t.Fatalf("failed to cache songs: %v", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if err := rec.Record(canceled, tasks.Task{Key: "k6", URL: "u6", State: tasks.Completed{}}); err == nil {
		t.Error("expected error for canceled context")
	}
}
