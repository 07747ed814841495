package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/process"
	th "github.com/desertthunder/spotx/internal/testing"
)

// fakeProc is a registered process that runs until it is killed.
type fakeProc struct {
	once   sync.Once
	killed chan struct{}
}

func newFakeProc() *fakeProc {
	return &fakeProc{killed: make(chan struct{})}
}

func (p *fakeProc) Kill() error {
	p.once.Do(func() { close(p.killed) })
	return nil
}

func (p *fakeProc) Alive() bool {
	select {
	case <-p.killed:
		return false
	default:
		return true
	}
}

// fakeExecutor tracks its work in a real registry. Like the process runner it ignores ctx: a
// hanging call only returns once its id is destroyed.
type fakeExecutor struct {
	registry *process.Registry

	mu        sync.Mutex
	fetch     func(url string) ([]models.SongInfo, error)
	download  func(song models.SongInfo) ([]string, error)
	direct    func(url string, onLine process.LineFunc) (*process.Result, error)
	hangFetch bool
	hangSong  bool
	hangURL   bool
	songs     []string
	fetches   []string
	destroyed []string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{registry: process.NewRegistry()}
}

func (f *fakeExecutor) hang(id string) error {
	p := newFakeProc()
	if err := f.registry.Register(id, p); err != nil {
		return err
	}
	defer f.registry.Remove(id, p)
	<-p.killed
	return &process.ExecutionError{ExitCode: -1, Signaled: true}
}

func (f *fakeExecutor) FetchSongInfo(ctx context.Context, url, processID string) ([]models.SongInfo, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, processID)
	hang, fetch := f.hangFetch, f.fetch
	f.mu.Unlock()

	if hang {
		return nil, f.hang(processID)
	}
	if fetch != nil {
		return fetch(url)
	}
	return []models.SongInfo{{SongID: "s1", Name: "Song", Artist: "Artist", URL: url}}, nil
}

func (f *fakeExecutor) DownloadSong(ctx context.Context, song models.SongInfo, prefs models.DownloadPreferences, taskID string, onProgress process.ProgressFunc) ([]string, error) {
	f.mu.Lock()
	f.songs = append(f.songs, taskID)
	hang, download := f.hangSong, f.download
	f.mu.Unlock()

	if hang {
		return nil, f.hang(taskID)
	}
	if onProgress != nil {
		onProgress(0.5, "Downloading 50%")
	}
	if download != nil {
		return download(song)
	}
	return []string{song.DisplayName()}, nil
}

func (f *fakeExecutor) Download(ctx context.Context, url string, prefs models.DownloadPreferences, taskID string, onLine process.LineFunc) (*process.Result, error) {
	f.mu.Lock()
	hang, direct := f.hangURL, f.direct
	f.mu.Unlock()

	if hang {
		return nil, f.hang(taskID)
	}
	if direct != nil {
		return direct(url, onLine)
	}
	return &process.Result{Stdout: "done\n"}, nil
}

func (f *fakeExecutor) Destroy(id string) bool {
	f.mu.Lock()
	f.destroyed = append(f.destroyed, id)
	f.mu.Unlock()
	return f.registry.Destroy(id)
}

func (f *fakeExecutor) songCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.songs...)
}

func (f *fakeExecutor) fetchIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetches...)
}

type recordingNotifier struct {
	mu        sync.Mutex
	toasts    []string
	progress  map[string][]float64
	finished  map[string]string
	canceled  []string
	errReport map[string]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		progress:  make(map[string][]float64),
		finished:  make(map[string]string),
		errReport: make(map[string]string),
	}
}

func (n *recordingNotifier) NotifyProgress(id string, progress float64, title, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress[id] = append(n.progress[id], progress)
}

func (n *recordingNotifier) FinishNotification(id, title, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.finished[id] = text
}

func (n *recordingNotifier) CancelNotification(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.canceled = append(n.canceled, id)
}

func (n *recordingNotifier) ErrorReport(id, report string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errReport[id] = report
}

func (n *recordingNotifier) Toast(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, msg)
}

func (n *recordingNotifier) toastList() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.toasts...)
}

func (n *recordingNotifier) finishedText(id string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.finished[id]
	return s, ok
}

func (n *recordingNotifier) report(id string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.errReport[id]
}

type countingScanner struct {
	mu   sync.Mutex
	dirs []string
}

func (s *countingScanner) Scan(ctx context.Context, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs = append(s.dirs, dir)
	return nil
}

func (s *countingScanner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirs)
}

type recordingService struct {
	mu          sync.Mutex
	transitions []string
}

func (s *recordingService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, "start")
}

func (s *recordingService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, "stop")
}

func (s *recordingService) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.transitions...)
}

type recordingHistory struct {
	mu    sync.Mutex
	tasks []Task
	songs []models.SongInfo
}

func (h *recordingHistory) Record(ctx context.Context, task Task) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tasks = append(h.tasks, task)
	return nil
}

func (h *recordingHistory) CacheSongs(ctx context.Context, songs []models.SongInfo) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.songs = append(h.songs, songs...)
	return nil
}

func (h *recordingHistory) recorded() []Task {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Task(nil), h.tasks...)
}

type harness struct {
	d        *Downloader
	exec     *fakeExecutor
	notifier *recordingNotifier
	service  *recordingService
	history  *recordingHistory
}

func newHarness(t *testing.T, configure func(*Options)) *harness {
	t.Helper()
	h := &harness{
		exec:     newFakeExecutor(),
		notifier: newRecordingNotifier(),
		service:  &recordingService{},
		history:  &recordingHistory{},
	}
	opts := Options{
		Executor:        h.exec,
		Notifier:        h.notifier,
		Service:         h.service,
		History:         h.history,
		FetchTimeout:    time.Second,
		DownloadTimeout: time.Second,
	}
	if configure != nil {
		configure(&opts)
	}
	h.d = NewDownloader(opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		h.d.Close(ctx)
	})
	return h
}

func (h *harness) waitJob(t *testing.T, job *Job) error {
	t.Helper()
	select {
	case <-job.Done():
		return job.Err()
	case <-time.After(3 * time.Second):
		t.Fatal("job did not finish")
		return nil
	}
}

func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	th.Eventually(t, 2*time.Second, func() bool { return IsIdle(h.d.Status().State) }, "downloader idle")
}
