package tasks

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/process"
	"github.com/desertthunder/spotx/internal/shared"
)

// Executor runs spotdl. [process.Client] implements it.
type Executor interface {
	FetchSongInfo(ctx context.Context, url, processID string) ([]models.SongInfo, error)
	DownloadSong(ctx context.Context, song models.SongInfo, prefs models.DownloadPreferences, taskID string, onProgress process.ProgressFunc) ([]string, error)
	Download(ctx context.Context, url string, prefs models.DownloadPreferences, taskID string, onLine process.LineFunc) (*process.Result, error)
	Destroy(id string) bool
}

var _ Executor = (*process.Client)(nil)

// Notifier surfaces progress and failures to the user.
//
// Implementations are called from the orchestrator goroutines and must not call back into the [Downloader].
type Notifier interface {
	NotifyProgress(id string, progress float64, title, text string)
	FinishNotification(id, title, text string)
	CancelNotification(id string)
	ErrorReport(id, report string)
	Toast(msg string)
}

// ServiceController is started while work is in flight and stopped once everything is idle.
type ServiceController interface {
	Start()
	Stop()
}

// MediaScanner indexes a directory after downloads land in it.
type MediaScanner interface {
	Scan(ctx context.Context, dir string) error
}

// HistoryRecorder persists finished tasks and fetched metadata.
type HistoryRecorder interface {
	Record(ctx context.Context, task Task) error
	CacheSongs(ctx context.Context, songs []models.SongInfo) error
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier creates a notifier logging through logger.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &LogNotifier{logger: shared.WithLogger(logger, "component", "notify")}
}

func (n *LogNotifier) NotifyProgress(id string, progress float64, title, text string) {
	n.logger.Debug(title, "id", id, "progress", shared.FormatPercent(progress), "line", text)
}

func (n *LogNotifier) FinishNotification(id, title, text string) {
	n.logger.Info(title, "id", id, "status", text)
}

func (n *LogNotifier) CancelNotification(id string) {
	n.logger.Debug("notification canceled", "id", id)
}

func (n *LogNotifier) ErrorReport(id, report string) {
	n.logger.Error("task failed", "id", id, "report", report)
}

func (n *LogNotifier) Toast(msg string) {
	n.logger.Info(msg)
}

// LogService logs service start and stop transitions and remembers the current state.
type LogService struct {
	mu     sync.Mutex
	logger *log.Logger
	active bool
	starts int
}

// NewLogService creates a service controller that only logs.
func NewLogService(logger *log.Logger) *LogService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &LogService{logger: shared.WithLogger(logger, "component", "service")}
}

func (s *LogService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	s.starts++
	s.logger.Debug("service started")
}

func (s *LogService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.logger.Debug("service stopped")
}

// Active reports whether the last transition was a start.
func (s *LogService) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// audioExts are the spotdl output formats.
var audioExts = map[string]bool{
	".mp3": true, ".m4a": true, ".flac": true, ".opus": true, ".ogg": true, ".wav": true,
}

// DirScanner walks the download directory and logs the audio files it finds.
type DirScanner struct {
	logger *log.Logger
	mu     sync.Mutex
	last   []string
}

// NewDirScanner creates a scanner logging through logger.
func NewDirScanner(logger *log.Logger) *DirScanner {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &DirScanner{logger: shared.WithLogger(logger, "component", "scanner")}
}

// Scan collects audio files under dir. A missing directory is not an error.
func (s *DirScanner) Scan(ctx context.Context, dir string) error {
	if dir == "" {
		return nil
	}
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.IsDir() && audioExts[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.last = files
	s.mu.Unlock()
	s.logger.Debug("scanned media directory", "dir", dir, "files", len(files))
	return nil
}

// Files returns the audio files found by the last scan.
func (s *DirScanner) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.last...)
}

type nopHistory struct{}

func (nopHistory) Record(context.Context, Task) error                  { return nil }
func (nopHistory) CacheSongs(context.Context, []models.SongInfo) error { return nil }
