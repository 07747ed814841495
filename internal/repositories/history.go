package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
)

// HistoryRepository implements models.Repository[*models.HistoryEntry] for finished tasks.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new HistoryRepository with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Create inserts a new entry with generated ID and sequence
func (r *HistoryRepository) Create(entry *models.HistoryEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "history")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	query := `
		INSERT INTO history (
			id, sequence, task_key, url, name, status, report, output,
			started_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		id,
		sequence,
		entry.TaskKey(),
		entry.URL(),
		entry.Name(),
		string(entry.Status()),
		entry.Report(),
		entry.Output(),
		entry.StartedAt(),
		entry.CreatedAt(),
		entry.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	entry.SetID(id)
	entry.SetSequence(sequence)
	return nil
}

// Get retrieves an entry by ID, excluding soft-deleted entries
func (r *HistoryRepository) Get(id string) (*models.HistoryEntry, error) {
	query := `
		SELECT id, sequence, task_key, url, name, status, report, output,
			started_at, created_at, updated_at, deleted_at
		FROM history
		WHERE id = ? AND deleted_at IS NULL
	`
	entry, err := scanHistory(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("history entry not found: %s", id)
	}
	return entry, err
}

// Update rewrites the report of an entry; the rest of a finished task never changes.
func (r *HistoryRepository) Update(entry *models.HistoryEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	result, err := r.db.Exec(
		`UPDATE history SET status = ?, report = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		string(entry.Status()), entry.Report(), time.Now(), entry.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update history entry: %w", err)
	}
	return requireRow(result, entry.ID())
}

// Delete soft-deletes an entry by setting deleted_at
func (r *HistoryRepository) Delete(id string) error {
	now := time.Now()
	result, err := r.db.Exec(
		`UPDATE history SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}
	return requireRow(result, id)
}

// Clear soft-deletes every entry and returns how many were removed
func (r *HistoryRepository) Clear() (int, error) {
	now := time.Now()
	result, err := r.db.Exec(`UPDATE history SET deleted_at = ?, updated_at = ? WHERE deleted_at IS NULL`, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// List retrieves entries matching criteria, newest first.
//
// Supported criteria: "status" (string or models.HistoryStatus), "task_key" (string) and "limit" (int).
func (r *HistoryRepository) List(criteria map[string]any) ([]*models.HistoryEntry, error) {
	query := `
		SELECT id, sequence, task_key, url, name, status, report, output,
			started_at, created_at, updated_at, deleted_at
		FROM history
		WHERE deleted_at IS NULL
	`
	args := []any{}

	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	case models.HistoryStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	}

	if key, ok := criteria["task_key"].(string); ok && key != "" {
		query += " AND task_key = ?"
		args = append(args, key)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		entry, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHistory(row scanner) (*models.HistoryEntry, error) {
	var (
		id        string
		sequence  int
		taskKey   string
		url       string
		name      string
		status    string
		report    string
		output    string
		startedAt time.Time
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := row.Scan(&id, &sequence, &taskKey, &url, &name, &status, &report, &output, &startedAt, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan history entry: %w", err)
	}

	var deleted *time.Time
	if deletedAt.Valid {
		deleted = &deletedAt.Time
	}
	return models.RestoreHistoryEntry(
		id, sequence, taskKey, url, name, models.HistoryStatus(status), report, output,
		startedAt, createdAt, updatedAt, deleted,
	), nil
}

func requireRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("history entry not found: %s", id)
	}
	return nil
}
