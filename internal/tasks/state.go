package tasks

import (
	"fmt"
	"time"

	"github.com/desertthunder/spotx/internal/models"
)

// State is the global orchestrator state: [Idle], [FetchingInfo], [DownloadingSong] or [DownloadingPlaylist].
type State interface {
	isState()
	String() string
}

type Idle struct{}

type FetchingInfo struct{}

type DownloadingSong struct{}

// DownloadingPlaylist is the state while the songs of a collection are downloaded one by one.
type DownloadingPlaylist struct {
	CurrentItem int
	ItemCount   int
}

func (Idle) isState()                {}
func (FetchingInfo) isState()        {}
func (DownloadingSong) isState()     {}
func (DownloadingPlaylist) isState() {}

func (Idle) String() string            { return "idle" }
func (FetchingInfo) String() string    { return "fetching_info" }
func (DownloadingSong) String() string { return "downloading_song" }
func (s DownloadingPlaylist) String() string {
	return fmt.Sprintf("downloading_playlist (%d/%d)", s.CurrentItem, s.ItemCount)
}

// IsIdle reports whether s is [Idle]. A nil state counts as idle.
func IsIdle(s State) bool {
	switch s.(type) {
	case nil, Idle:
		return true
	default:
		return false
	}
}

// TaskState is the lifecycle of one background task: [Running], [Completed], [Canceled] or [Failed].
//
// Everything except [Running] is terminal.
type TaskState interface {
	isTaskState()
	String() string
	Terminal() bool
}

// Running carries progress in [0, 1].
type Running struct {
	Progress float64
}

type Completed struct{}

type Canceled struct{}

// Failed carries the error report shown to the user.
type Failed struct {
	Report string
}

func (Running) isTaskState()   {}
func (Completed) isTaskState() {}
func (Canceled) isTaskState()  {}
func (Failed) isTaskState()    {}

func (Running) String() string   { return "running" }
func (Completed) String() string { return "completed" }
func (Canceled) String() string  { return "canceled" }
func (Failed) String() string    { return "failed" }

func (Running) Terminal() bool   { return false }
func (Completed) Terminal() bool { return true }
func (Canceled) Terminal() bool  { return true }
func (Failed) Terminal() bool    { return true }

// Progress returns the progress of a running state; terminal states report 1 for [Completed] and 0 otherwise.
func Progress(s TaskState) float64 {
	switch st := s.(type) {
	case Running:
		return st.Progress
	case Completed:
		return 1
	default:
		return 0
	}
}

// ErrorCode classifies an orchestrator failure.
type ErrorCode string

const (
	CodeNone            ErrorCode = ""
	CodeFetchInfoFailed ErrorCode = "fetch_info_failed"
	CodeDownloadFailed  ErrorCode = "download_failed"
	CodeTimeout         ErrorCode = "timeout"
	CodeCanceled        ErrorCode = "canceled"
	CodeUnknown         ErrorCode = "unknown"
)

// ErrorState is the last orchestrator failure. The zero value means no error.
type ErrorState struct {
	Report string
	Code   ErrorCode
}

// Occurred reports whether an error is recorded.
func (e ErrorState) Occurred() bool {
	return e.Code != CodeNone || e.Report != ""
}

// TaskItem is the song the orchestrator is currently working on.
type TaskItem struct {
	Info         models.SongInfo
	URL          string
	Name         string
	Artist       string
	Duration     float64
	Explicit     bool
	HasLyrics    bool
	Progress     float64
	ProgressText string
	Thumbnail    string
	TaskID       string
	Output       string
}

// NewTaskItem builds the current item for song; the task id is the song id followed by the preferences hash.
func NewTaskItem(song models.SongInfo, prefs models.DownloadPreferences) TaskItem {
	return TaskItem{
		Info:      song,
		URL:       song.URL,
		Name:      song.Name,
		Artist:    song.Artist,
		Duration:  song.Duration,
		Explicit:  song.Explicit,
		HasLyrics: song.HasLyrics(),
		Thumbnail: song.CoverURL,
		TaskID:    song.SongID + prefs.HashString(),
	}
}

// Task is one background (parallel) download as tracked by the [Store].
type Task struct {
	Key         string
	URL         string
	Name        string
	Output      string
	CurrentLine string
	State       TaskState
	StartedAt   time.Time
	UpdatedAt   time.Time
}

// Progress is shorthand for [Progress] of the task state.
func (t Task) Progress() float64 {
	return Progress(t.State)
}

// Report returns the failure report, or a hint built from the last line when none is recorded.
func (t Task) Report() string {
	if f, ok := t.State.(Failed); ok && f.Report != "" {
		return f.Report
	}
	return "No detailed error report available. Last line: " + t.CurrentLine
}
