// Package repositories implements SQLite persistence for finished tasks and song metadata.
//
// Key Implementations:
//   - [HistoryRepository] : finished background tasks with soft deletes and status queries
//   - [SongRepository] : metadata of songs that went through a fetch, keyed by song id
//   - [HistoryRecorder] : adapter that lets the downloader write to both repositories
//
// Sequence numbers provide stable, human-readable ordering (e.g., history #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
