package models

import (
	"fmt"
	"time"
)

// HistoryStatus is the terminal state a task was recorded with.
type HistoryStatus string

const (
	HistoryCompleted HistoryStatus = "completed"
	HistoryCanceled  HistoryStatus = "canceled"
	HistoryFailed    HistoryStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s HistoryStatus) Valid() bool {
	switch s {
	case HistoryCompleted, HistoryCanceled, HistoryFailed:
		return true
	}
	return false
}

// HistoryEntry is a finished task persisted for later inspection.
type HistoryEntry struct {
	id        string
	sequence  int
	taskKey   string
	url       string
	name      string
	status    HistoryStatus
	report    string
	output    string
	startedAt time.Time
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewHistoryEntry creates an entry; the ID is assigned by the repository on create.
func NewHistoryEntry(taskKey, url, name string, status HistoryStatus, report, output string, startedAt time.Time) *HistoryEntry {
	now := time.Now()
	if startedAt.IsZero() {
		startedAt = now
	}
	return &HistoryEntry{
		taskKey:   taskKey,
		url:       url,
		name:      name,
		status:    status,
		report:    report,
		output:    output,
		startedAt: startedAt,
		createdAt: now,
		updatedAt: now,
	}
}

// RestoreHistoryEntry rebuilds an entry from stored columns.
func RestoreHistoryEntry(id string, sequence int, taskKey, url, name string, status HistoryStatus, report, output string, startedAt, createdAt, updatedAt time.Time, deletedAt *time.Time) *HistoryEntry {
	return &HistoryEntry{
		id:        id,
		sequence:  sequence,
		taskKey:   taskKey,
		url:       url,
		name:      name,
		status:    status,
		report:    report,
		output:    output,
		startedAt: startedAt,
		createdAt: createdAt,
		updatedAt: updatedAt,
		deletedAt: deletedAt,
	}
}

func (h *HistoryEntry) ID() string              { return h.id }
func (h *HistoryEntry) Sequence() int           { return h.sequence }
func (h *HistoryEntry) TaskKey() string         { return h.taskKey }
func (h *HistoryEntry) URL() string             { return h.url }
func (h *HistoryEntry) Name() string            { return h.name }
func (h *HistoryEntry) Status() HistoryStatus   { return h.status }
func (h *HistoryEntry) Report() string          { return h.report }
func (h *HistoryEntry) Output() string          { return h.output }
func (h *HistoryEntry) StartedAt() time.Time    { return h.startedAt }
func (h *HistoryEntry) CreatedAt() time.Time    { return h.createdAt }
func (h *HistoryEntry) UpdatedAt() time.Time    { return h.updatedAt }
func (h *HistoryEntry) DeletedAt() *time.Time   { return h.deletedAt }
func (h *HistoryEntry) SetID(id string)         { h.id = id }
func (h *HistoryEntry) SetSequence(seq int)     { h.sequence = seq }
func (h *HistoryEntry) SetReport(report string) { h.report = report; h.updatedAt = time.Now() }

// Elapsed is the time between task start and record creation.
func (h *HistoryEntry) Elapsed() time.Duration {
	return h.createdAt.Sub(h.startedAt)
}

// Validate checks required fields.
func (h *HistoryEntry) Validate() error {
	if h.url == "" {
		return fmt.Errorf("history entry url is required")
	}
	if h.taskKey == "" {
		return fmt.Errorf("history entry task key is required")
	}
	if !h.status.Valid() {
		return fmt.Errorf("invalid history status %q", h.status)
	}
	return nil
}
