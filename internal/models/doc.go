// Package models defines the domain values shared by the spotdl wrapper, the task engine and persistence.
//
// Value types:
//   - [SongInfo] : one song as reported by `spotdl save`, decoded with [DecodeSongs]
//   - [DownloadPreferences] : immutable download settings; [DownloadPreferences.Hash] feeds task and notification ids
//
// Persistent entities:
//   - [HistoryEntry] : a finished task (completed, canceled or failed) with its console output
//
// Persistent entities implement [Model]; the [Repository] interface describes their CRUD access.
package models
