package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/process"
	"github.com/desertthunder/spotx/internal/shared"
	"github.com/desertthunder/spotx/internal/urls"
)

const (
	DefaultFetchTimeout    = 30 * time.Second
	DefaultDownloadTimeout = 120 * time.Second
)

// Options wires the collaborators of a [Downloader]. Executor is required; the rest default to
// logging implementations.
type Options struct {
	Executor        Executor
	Store           *Store
	Notifier        Notifier
	Service         ServiceController
	Scanner         MediaScanner
	History         HistoryRecorder
	Logger          *log.Logger
	FetchTimeout    time.Duration
	DownloadTimeout time.Duration
	OutputDir       string                     // scanned after successful downloads
	Preferences     models.DownloadPreferences // used by parallel downloads
}

// Status is a copy of the orchestrator state at one point in time.
type Status struct {
	State          State
	Current        TaskItem
	Error          ErrorState
	Songs          []models.SongInfo
	Processes      int
	QuickDownloads int
	ServiceActive  bool
}

type actorState struct {
	state     State
	current   TaskItem
	err       ErrorState
	songs     []models.SongInfo
	processes int
	quick     int
	serviceOn bool
	job       *Job
	fetchID   string
	lastState string
}

type message struct {
	apply func(*actorState)
	ack   chan struct{}
}

// Downloader orchestrates spotdl work: the single foreground operation (metadata fetch followed by
// downloads), background parallel downloads tracked in a [Store], and quick downloads.
//
// Global state lives in one goroutine; every mutation is a message applied in order, after which
// a [Status] is published and the service controller is started or stopped.
type Downloader struct {
	exec     Executor
	store    *Store
	notifier Notifier
	service  ServiceController
	scanner  MediaScanner
	history  HistoryRecorder
	logger   *log.Logger
	opts     Options

	msgs    chan message
	done    chan struct{}
	stopped chan struct{}
	status  atomic.Pointer[Status]
	bus     *broadcaster[Status]
	jobSeq  atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	closeOnce  sync.Once
	background map[string]*Job
	live       map[string]struct{}
}

// NewDownloader starts the orchestrator goroutine. Call [Downloader.Close] to stop it.
func NewDownloader(opts Options) *Downloader {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Store == nil {
		opts.Store = NewStore()
	}
	if opts.Notifier == nil {
		opts.Notifier = NewLogNotifier(opts.Logger)
	}
	if opts.Service == nil {
		opts.Service = NewLogService(opts.Logger)
	}
	if opts.Scanner == nil {
		opts.Scanner = NewDirScanner(opts.Logger)
	}
	if opts.History == nil {
		opts.History = nopHistory{}
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = DefaultDownloadTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Downloader{
		exec:       opts.Executor,
		store:      opts.Store,
		notifier:   opts.Notifier,
		service:    opts.Service,
		scanner:    opts.Scanner,
		history:    opts.History,
		logger:     shared.WithLogger(opts.Logger, "component", "downloader"),
		opts:       opts,
		msgs:       make(chan message),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		bus:        newBroadcaster[Status](),
		ctx:        ctx,
		cancel:     cancel,
		background: make(map[string]*Job),
		live:       make(map[string]struct{}),
	}
	d.status.Store(&Status{State: Idle{}})
	go d.loop()
	return d
}

// Store returns the background task store.
func (d *Downloader) Store() *Store {
	return d.store
}

func (d *Downloader) loop() {
	defer close(d.stopped)
	s := &actorState{state: Idle{}, lastState: Idle{}.String()}
	for {
		select {
		case m := <-d.msgs:
			m.apply(s)
			d.sync(s)
			close(m.ack)
		case <-d.done:
			if s.serviceOn {
				s.serviceOn = false
				d.service.Stop()
			}
			d.bus.close()
			return
		}
	}
}

// sync publishes the state and drives the service controller on transitions of the service signal.
func (d *Downloader) sync(s *actorState) {
	if name := s.state.String(); name != s.lastState {
		d.logger.Debug("state", "from", s.lastState, "to", name)
		s.lastState = name
	}

	active := s.processes > 0 || !IsIdle(s.state) || s.quick > 0
	if active != s.serviceOn {
		s.serviceOn = active
		if active {
			d.service.Start()
		} else {
			d.service.Stop()
		}
	}

	st := &Status{
		State:          s.state,
		Current:        s.current,
		Error:          s.err,
		Songs:          s.songs,
		Processes:      s.processes,
		QuickDownloads: s.quick,
		ServiceActive:  s.serviceOn,
	}
	d.status.Store(st)
	d.bus.publish(*st)
}

// do applies fn on the orchestrator goroutine and waits until the resulting status is published.
func (d *Downloader) do(fn func(*actorState)) error {
	m := message{apply: fn, ack: make(chan struct{})}
	select {
	case d.msgs <- m:
	case <-d.done:
		return shared.ErrClosed
	}
	<-m.ack
	return nil
}

// update applies fn only while job is still the current foreground job.
func (d *Downloader) update(job *Job, fn func(*actorState)) bool {
	applied := false
	_ = d.do(func(s *actorState) {
		if s.job != job {
			return
		}
		fn(s)
		applied = true
	})
	return applied
}

// Status returns the last published status.
func (d *Downloader) Status() Status {
	return *d.status.Load()
}

// Subscribe returns a channel of status updates. Slow readers only see the latest status.
func (d *Downloader) Subscribe() (<-chan Status, func()) {
	return d.bus.subscribe()
}

// ServiceActive reports the service signal: background processes, a non-idle state or quick downloads.
func (d *Downloader) ServiceActive() bool {
	return d.Status().ServiceActive
}

// IsDownloaderAvailable reports whether a foreground operation may start, showing a toast when not.
func (d *Downloader) IsDownloaderAvailable() bool {
	if !IsIdle(d.Status().State) {
		d.notifier.Toast("A task is already running")
		return false
	}
	return true
}

// ClearErrorState forgets the last error.
func (d *Downloader) ClearErrorState() {
	_ = d.do(func(s *actorState) { s.err = ErrorState{} })
}

// OnProcessStarted counts a background process.
func (d *Downloader) OnProcessStarted() {
	_ = d.do(func(s *actorState) { s.processes++ })
}

// OnProcessEnded uncounts a background process.
func (d *Downloader) OnProcessEnded() {
	_ = d.do(func(s *actorState) {
		if s.processes > 0 {
			s.processes--
		}
	})
}

// begin claims the foreground slot for a new job.
func (d *Downloader) begin(url string) (*Job, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("%w: empty url", shared.ErrInvalidInput)
	}

	var job *Job
	var busy State
	err := d.do(func(s *actorState) {
		if !IsIdle(s.state) {
			busy = s.state
			return
		}
		job = newJob(d.ctx, d.jobSeq.Add(1), url)
		s.job = job
		s.err = ErrorState{}
		s.fetchID = ""
		s.state = FetchingInfo{}
	})
	if err != nil {
		return nil, err
	}
	if job == nil {
		d.notifier.Toast("A task is already running")
		return nil, fmt.Errorf("%w: %s", shared.ErrDownloaderBusy, busy)
	}
	return job, nil
}

// spawn runs fn in the background as job, unless the downloader is closed.
func (d *Downloader) spawn(job *Job, fn func() error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		job.finish(shared.ErrClosed)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		err := fn()
		job.finish(err)
		_ = d.do(func(s *actorState) {
			if s.job == job {
				s.job = nil
				s.fetchID = ""
			}
		})
	}()
}

// GetInfoAndDownload starts the foreground operation for url.
//
// With skipInfoFetch the url is downloaded directly under the download deadline. Otherwise its
// metadata is fetched under the fetch deadline and every song is downloaded in turn; collections
// with more than one song run in the [DownloadingPlaylist] state.
func (d *Downloader) GetInfoAndDownload(url string, prefs models.DownloadPreferences, skipInfoFetch bool) (*Job, error) {
	job, err := d.begin(url)
	if err != nil {
		return nil, err
	}
	d.logger.Info("download requested", "job", job.ID, "url", url, "skip_info_fetch", skipInfoFetch)
	d.spawn(job, func() error {
		if skipInfoFetch {
			return d.directDownload(job, url, prefs)
		}
		songs, err := d.fetch(job, url)
		if err != nil {
			return err
		}
		return d.downloadAll(job, songs, prefs)
	})
	return job, nil
}

// GetRequestedMetadata fetches metadata for url and publishes the first song as the current item
// without downloading anything.
func (d *Downloader) GetRequestedMetadata(url string, prefs models.DownloadPreferences) (*Job, error) {
	job, err := d.begin(url)
	if err != nil {
		return nil, err
	}
	d.logger.Info("metadata requested", "job", job.ID, "url", url)
	d.spawn(job, func() error {
		songs, err := d.fetch(job, url)
		if err != nil {
			return err
		}
		d.update(job, func(s *actorState) { s.current = NewTaskItem(songs[0], prefs) })
		d.finishProcessing(job, true)
		return nil
	})
	return job, nil
}

func (d *Downloader) directDownload(job *Job, url string, prefs models.DownloadPreferences) error {
	_, err := WithTimeout(job.ctx, d.opts.DownloadTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.downloadSong(ctx, job, models.SongInfo{URL: url}, prefs, false)
	})
	if errors.Is(err, shared.ErrTimeout) {
		if id := d.currentTaskID(job); id != "" {
			d.destroy(id)
		}
		d.manageError(job, fmt.Errorf("download timed out: %w", err), failure{aborted: true})
	}
	return err
}

// fetch runs the metadata fetch under the fetch deadline; a timed out fetch process is destroyed.
func (d *Downloader) fetch(job *Job, url string) ([]models.SongInfo, error) {
	procID := shared.GenerateID()
	if !d.update(job, func(s *actorState) { s.fetchID = procID }) {
		return nil, shared.ErrCanceled
	}
	d.track(procID)
	defer d.untrack(procID)

	d.logger.Debug("fetching metadata", "job", job.ID, "proc", procID, "timeout", d.opts.FetchTimeout)
	songs, err := WithTimeout(job.ctx, d.opts.FetchTimeout, func(ctx context.Context) ([]models.SongInfo, error) {
		return d.exec.FetchSongInfo(ctx, url, procID)
	})
	if err == nil && len(songs) == 0 {
		err = fmt.Errorf("%w: %w", shared.ErrDecode, shared.ErrEmptyMetadata)
	}

	switch {
	case err == nil:
		d.logger.Debug("metadata fetched", "job", job.ID, "count", len(songs))
		d.update(job, func(s *actorState) {
			s.songs = songs
			s.fetchID = ""
		})
		if herr := d.history.CacheSongs(d.ctx, songs); herr != nil {
			d.logger.Warn("failed to cache songs", "err", herr)
		}
		return songs, nil
	case errors.Is(err, shared.ErrTimeout):
		d.destroy(procID)
		d.manageError(job, fmt.Errorf("metadata fetch timed out: %w", err), failure{fetching: true, aborted: true})
	case errors.Is(err, shared.ErrCanceled):
		// canceled by CancelDownload or Close, which reset the state themselves
	default:
		d.manageError(job, err, failure{fetching: true, aborted: true})
	}
	return nil, err
}

func (d *Downloader) downloadAll(job *Job, songs []models.SongInfo, prefs models.DownloadPreferences) error {
	if len(songs) == 1 {
		return d.downloadSong(job.ctx, job, songs[0], prefs, false)
	}

	n := len(songs)
	failed := 0
	for i, song := range songs {
		if err := job.ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", shared.ErrCanceled, context.Cause(job.ctx))
		}
		if !d.update(job, func(s *actorState) { s.state = DownloadingPlaylist{CurrentItem: i + 1, ItemCount: n} }) {
			return shared.ErrCanceled
		}
		if err := d.downloadSong(job.ctx, job, song, prefs, true); err != nil {
			if errors.Is(err, shared.ErrCanceled) {
				return err
			}
			failed++
		}
	}

	if failed < n {
		d.scan()
	}
	d.finishProcessing(job, failed == 0)
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d songs failed", shared.ErrProcessExecution, failed, n)
	}
	return nil
}

// downloadSong downloads one song as the current task item.
//
// Failures are reported here unless ctx ended, in which case the caller owns the outcome.
func (d *Downloader) downloadSong(ctx context.Context, job *Job, song models.SongInfo, prefs models.DownloadPreferences, inPlaylist bool) error {
	item := NewTaskItem(song, prefs)
	title := song.DisplayName()
	if !d.update(job, func(s *actorState) {
		s.current = item
		if !inPlaylist {
			s.state = DownloadingSong{}
		}
	}) {
		return shared.ErrCanceled
	}

	d.track(item.TaskID)
	defer d.untrack(item.TaskID)

	names, err := d.exec.DownloadSong(ctx, song, prefs, item.TaskID, func(p float64, line string) {
		d.update(job, func(s *actorState) {
			s.current.Progress = p
			s.current.ProgressText = line
		})
		d.notifier.NotifyProgress(item.TaskID, p, title, line)
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", shared.ErrCanceled, err)
		}
		d.manageError(job, err, failure{aborted: !inPlaylist, notificationID: item.TaskID, title: title})
		return err
	}

	d.update(job, func(s *actorState) {
		if s.current.TaskID == item.TaskID {
			s.current.Output = strings.Join(names, "\n")
		}
	})
	if !inPlaylist {
		d.finishProcessing(job, true)
	}

	text := "Completed"
	if len(names) > 0 {
		text = "Download finished"
	}
	d.notifier.FinishNotification(item.TaskID, title, text)
	if !inPlaylist {
		d.scan()
	}
	return nil
}

func (d *Downloader) currentTaskID(job *Job) string {
	var id string
	d.update(job, func(s *actorState) { id = s.current.TaskID })
	return id
}

// finishProcessing completes the foreground operation: progress 1 and back to idle.
func (d *Downloader) finishProcessing(job *Job, clearError bool) {
	d.update(job, func(s *actorState) {
		if IsIdle(s.state) {
			return
		}
		s.current.Progress = 1
		s.current.ProgressText = ""
		s.state = Idle{}
		if clearError {
			s.err = ErrorState{}
		}
	})
}

type failure struct {
	fetching       bool
	aborted        bool
	notificationID string
	title          string
}

// manageError records err as the error state and shows one toast per operation. A later failure
// of the same operation is appended to the recorded report. Aborting failures return the
// orchestrator to idle and detach the job so it can no longer change state.
func (d *Downloader) manageError(job *Job, err error, f failure) {
	code := errorCode(err, f.fetching)
	report := errorReport(err)
	first := true
	applied := d.update(job, func(s *actorState) {
		if s.err.Occurred() {
			first = false
			s.err.Report += "\n\n" + report
		} else {
			s.err = ErrorState{Report: report, Code: code}
		}
		if f.aborted {
			s.state = Idle{}
			s.current.Progress = 0
			s.current.ProgressText = ""
			s.job = nil
			s.fetchID = ""
		}
	})
	if !applied {
		return
	}

	d.logger.Error("task failed", "job", job.ID, "code", code, "err", err)
	msg := "Download failed"
	if f.fetching {
		msg = "Failed to fetch song info"
	}
	if first {
		d.notifier.Toast(msg)
	}
	if f.notificationID != "" {
		d.notifier.FinishNotification(f.notificationID, f.title, "Download failed\n\n"+err.Error())
	}
}

func errorCode(err error, fetching bool) ErrorCode {
	switch {
	case err == nil:
		return CodeUnknown
	case errors.Is(err, shared.ErrTimeout):
		return CodeTimeout
	case errors.Is(err, shared.ErrCanceled):
		return CodeCanceled
	case fetching:
		return CodeFetchInfoFailed
	default:
		return CodeDownloadFailed
	}
}

// errorReport renders err for the user; spotdl failures include the command with secrets redacted.
func errorReport(err error) string {
	var execErr *process.ExecutionError
	if !errors.As(err, &execErr) {
		return err.Error()
	}

	var b strings.Builder
	b.WriteString(err.Error())
	fmt.Fprintf(&b, "\n\ncommand: %s\nexit code: %d", strings.Join(redact(execErr.Command), " "), execErr.ExitCode)
	if out := strings.TrimSpace(execErr.Stdout); out != "" && strings.TrimSpace(execErr.Stderr) != "" {
		fmt.Fprintf(&b, "\n\nstdout:\n%s", out)
	}
	return b.String()
}

func redact(argv []string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		if i > 0 && argv[i-1] == "--client-secret" {
			a = "***"
		}
		out[i] = a
	}
	return out
}

// CancelDownload cancels the foreground operation, destroys its process and returns to idle.
//
// The canceled job can no longer change state.
func (d *Downloader) CancelDownload() {
	var job *Job
	var taskID, fetchID string
	_ = d.do(func(s *actorState) {
		job = s.job
		taskID = s.current.TaskID
		fetchID = s.fetchID
		s.job = nil
		s.fetchID = ""
		s.state = Idle{}
		s.current.Progress = 0
		s.current.ProgressText = ""
	})

	d.logger.Info("download canceled", "task", taskID)
	d.notifier.Toast("Task canceled")
	if job != nil {
		job.cancel(shared.ErrCanceled)
	}
	if fetchID != "" {
		d.destroy(fetchID)
	}
	if taskID != "" {
		d.destroy(taskID)
		d.notifier.CancelNotification(taskID)
	}
}

// ExecuteParallelDownloadWithURL downloads url in the background as a task in the [Store].
//
// A url whose task is still running is rejected with [shared.ErrDuplicateProcess].
func (d *Downloader) ExecuteParallelDownloadWithURL(url, name string) *Job {
	job := newJob(d.ctx, d.jobSeq.Add(1), url)
	key := TaskKey(url)
	if name == "" {
		name = url
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		job.finish(shared.ErrClosed)
		return job
	}
	if _, busy := d.background[key]; busy {
		d.mu.Unlock()
		job.finish(fmt.Errorf("%w: %s", shared.ErrDuplicateProcess, key))
		return job
	}
	d.background[key] = job
	d.mu.Unlock()

	d.spawn(job, func() error {
		defer func() {
			d.mu.Lock()
			if d.background[key] == job {
				delete(d.background, key)
			}
			d.mu.Unlock()
		}()
		return d.parallel(job, url, name)
	})
	return job
}

func (d *Downloader) parallel(job *Job, url, name string) error {
	d.OnProcessStarted()
	defer d.OnProcessEnded()

	task := d.store.OnTaskStarted(url, name)
	key := task.Key
	title := name + " - Parallel download"
	d.notifier.NotifyProgress(key, 0, title, "")
	d.logger.Info("parallel download started", "key", key, "url", url)

	isPlaylist := urls.Classify(url).IsCollection()
	last := 0.0

	d.track(key)
	defer d.untrack(key)

	res, err := d.exec.Download(job.ctx, url, d.opts.Preferences, key, func(line string) {
		if p, ok := process.ParseProgress(line); ok && p > last {
			last = p
		}
		if !d.store.UpdateTaskOutput(url, line, last, isPlaylist) {
			return
		}
		if t, ok := d.store.Get(key); ok {
			d.notifier.NotifyProgress(key, t.Progress(), title, line)
		}
	})

	switch {
	case err == nil:
		d.store.OnTaskEnded(url, res.Stdout)
		d.notifier.FinishNotification(key, title, "Completed")
		d.scan()
	case job.ctx.Err() != nil:
		d.store.OnProcessCanceled(key)
		d.notifier.CancelNotification(key)
		err = fmt.Errorf("%w: %w", shared.ErrCanceled, err)
	default:
		report := errorReport(err)
		d.store.OnTaskError(url, report)
		d.notifier.ErrorReport(key, report)
	}

	if t, ok := d.store.Get(key); ok {
		if herr := d.history.Record(context.WithoutCancel(d.ctx), t); herr != nil {
			d.logger.Warn("failed to record history", "key", key, "err", herr)
		}
	}
	return err
}

// ExecuteQuickDownload downloads url in the background without a task record; it only counts
// toward the service signal while running.
func (d *Downloader) ExecuteQuickDownload(url string, prefs models.DownloadPreferences) *Job {
	job := newJob(d.ctx, d.jobSeq.Add(1), url)
	d.spawn(job, func() error {
		_ = d.do(func(s *actorState) { s.quick++ })
		defer func() {
			_ = d.do(func(s *actorState) {
				if s.quick > 0 {
					s.quick--
				}
			})
		}()

		id := shared.GenerateID()
		d.track(id)
		defer d.untrack(id)

		_, err := d.exec.Download(job.ctx, url, prefs, id, func(line string) {
			if p, ok := process.ParseProgress(line); ok {
				d.notifier.NotifyProgress(id, p, url, line)
			}
		})
		if err != nil {
			if job.ctx.Err() == nil {
				d.notifier.ErrorReport(id, errorReport(err))
			}
			return err
		}
		d.notifier.FinishNotification(id, url, "Completed")
		d.scan()
		return nil
	})
	return job
}

// CancelTask destroys the background task stored under key and marks it canceled.
func (d *Downloader) CancelTask(key string) error {
	if _, ok := d.store.Get(key); !ok {
		return fmt.Errorf("%w: %s", shared.ErrTaskNotFound, key)
	}

	d.mu.Lock()
	job := d.background[key]
	d.mu.Unlock()
	if job != nil {
		job.cancel(shared.ErrCanceled)
	}

	d.destroy(key)
	d.store.OnProcessCanceled(key)
	d.notifier.CancelNotification(key)
	return nil
}

// RestartTask submits a finished background task again.
func (d *Downloader) RestartTask(key string) (*Job, error) {
	t, ok := d.store.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTaskNotFound, key)
	}
	if !t.State.Terminal() {
		return nil, fmt.Errorf("%w: task %s is still running", shared.ErrDownloaderBusy, key)
	}
	return d.ExecuteParallelDownloadWithURL(t.URL, t.Name), nil
}

// ClearFinished drops finished background tasks from the store.
func (d *Downloader) ClearFinished() int {
	return d.store.ClearFinished()
}

func (d *Downloader) scan() {
	if d.opts.OutputDir == "" {
		return
	}
	if err := d.scanner.Scan(d.ctx, d.opts.OutputDir); err != nil {
		d.logger.Warn("media scan failed", "dir", d.opts.OutputDir, "err", err)
	}
}

func (d *Downloader) destroy(id string) bool {
	ok := d.exec.Destroy(id)
	d.logger.Debug("destroy process", "id", id, "destroyed", ok)
	return ok
}

func (d *Downloader) track(id string) {
	d.mu.Lock()
	d.live[id] = struct{}{}
	d.mu.Unlock()
}

func (d *Downloader) untrack(id string) {
	d.mu.Lock()
	delete(d.live, id)
	d.mu.Unlock()
}

// Close cancels every job, destroys the processes the downloader started and stops the orchestrator
// goroutine. It waits for background work until ctx ends.
func (d *Downloader) Close(ctx context.Context) error {
	var err error
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		ids := make([]string, 0, len(d.live))
		for id := range d.live {
			ids = append(ids, id)
		}
		d.mu.Unlock()

		d.cancel()
		for _, id := range ids {
			d.destroy(id)
		}

		waited := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-ctx.Done():
			err = fmt.Errorf("%w: background work still running: %w", shared.ErrTimeout, ctx.Err())
		}

		close(d.done)
		<-d.stopped
	})
	return err
}
