package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
	"github.com/desertthunder/spotx/internal/tasks"
	"github.com/desertthunder/spotx/internal/urls"
	"github.com/gorilla/mux"
)

// API serves the downloader over HTTP.
type API struct {
	d      *tasks.Downloader
	prefs  models.DownloadPreferences
	skip   bool
	logger *log.Logger
}

// NewAPI creates an API around d. prefs and skipInfoFetch are the defaults of POST /downloads.
func NewAPI(d *tasks.Downloader, prefs models.DownloadPreferences, skipInfoFetch bool, logger *log.Logger) *API {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &API{d: d, prefs: prefs, skip: skipInfoFetch, logger: shared.WithLogger(logger, "component", "api")}
}

// NewRouter builds the router with logging and panic recovery for a.
func NewRouter(a *API) *MuxRouter {
	r := NewMuxRouter()
	r.Use(Recover(a.logger), Logging(a.logger))
	r.Handler(Health{})
	a.Register(r)
	return r
}

// Register adds the API routes to r.
func (a *API) Register(r Router) {
	r.Handle(http.MethodGet, "/status", http.HandlerFunc(a.status))
	r.Handle(http.MethodGet, "/tasks", http.HandlerFunc(a.listTasks))
	r.Handle(http.MethodDelete, "/tasks", http.HandlerFunc(a.clearTasks))
	r.Handle(http.MethodGet, "/tasks/{key}", http.HandlerFunc(a.getTask))
	r.Handle(http.MethodDelete, "/tasks/{key}", http.HandlerFunc(a.cancelTask))
	r.Handle(http.MethodPost, "/tasks/{key}/restart", http.HandlerFunc(a.restartTask))
	r.Handle(http.MethodPost, "/downloads", http.HandlerFunc(a.download))
	r.Handle(http.MethodDelete, "/downloads/current", http.HandlerFunc(a.cancelDownload))
	r.Handle(http.MethodPost, "/downloads/parallel", http.HandlerFunc(a.parallel))
}

// Health answers liveness probes on every method.
type Health struct{}

func (Health) Routes() []string { return []string{"/health"} }

func (Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type currentView struct {
	URL          string  `json:"url,omitempty"`
	Name         string  `json:"name,omitempty"`
	Artist       string  `json:"artist,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	Progress     float64 `json:"progress"`
	ProgressText string  `json:"progress_text,omitempty"`
	TaskID       string  `json:"task_id,omitempty"`
}

type errorView struct {
	Code   string `json:"code"`
	Report string `json:"report"`
}

type statusView struct {
	State          string      `json:"state"`
	Current        currentView `json:"current"`
	Error          *errorView  `json:"error,omitempty"`
	Songs          int         `json:"songs"`
	Processes      int         `json:"processes"`
	QuickDownloads int         `json:"quick_downloads"`
	ServiceActive  bool        `json:"service_active"`
}

type taskView struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	Name        string    `json:"name"`
	State       string    `json:"state"`
	Progress    float64   `json:"progress"`
	CurrentLine string    `json:"current_line,omitempty"`
	Report      string    `json:"report,omitempty"`
	Output      string    `json:"output,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newStatusView(st tasks.Status) statusView {
	v := statusView{
		State: st.State.String(),
		Current: currentView{
			URL:          st.Current.URL,
			Name:         st.Current.Name,
			Artist:       st.Current.Artist,
			Duration:     st.Current.Duration,
			Progress:     st.Current.Progress,
			ProgressText: st.Current.ProgressText,
			TaskID:       st.Current.TaskID,
		},
		Songs:          len(st.Songs),
		Processes:      st.Processes,
		QuickDownloads: st.QuickDownloads,
		ServiceActive:  st.ServiceActive,
	}
	if st.Error.Occurred() {
		v.Error = &errorView{Code: string(st.Error.Code), Report: st.Error.Report}
	}
	return v
}

func newTaskView(t tasks.Task, withOutput bool) taskView {
	v := taskView{
		Key:         t.Key,
		URL:         t.URL,
		Name:        t.Name,
		State:       t.State.String(),
		Progress:    t.Progress(),
		CurrentLine: t.CurrentLine,
		StartedAt:   t.StartedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if _, ok := t.State.(tasks.Failed); ok {
		v.Report = t.Report()
	}
	if withOutput {
		v.Output = t.Output
	}
	return v
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStatusView(a.d.Status()))
}

func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	snapshot := a.d.Store().Snapshot()
	views := make([]taskView, 0, len(snapshot))
	for _, t := range snapshot {
		views = append(views, newTaskView(t, false))
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) clearTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"cleared": a.d.ClearFinished()})
}

func (a *API) getTask(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r)
	if !ok {
		return
	}
	t, found := a.d.Store().Get(key)
	if !found {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, newTaskView(t, true))
}

func (a *API) cancelTask(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r)
	if !ok {
		return
	}
	if err := a.d.CancelTask(key); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) restartTask(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r)
	if !ok {
		return
	}
	job, err := a.d.RestartTask(key)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "key": key})
}

type downloadRequest struct {
	URL           string `json:"url"`
	SkipInfoFetch *bool  `json:"skip_info_fetch,omitempty"`
	MetadataOnly  bool   `json:"metadata_only,omitempty"`
	Format        string `json:"format,omitempty"`
	Bitrate       string `json:"bitrate,omitempty"`
}

func (a *API) download(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if !decode(w, r, &req) {
		return
	}
	link, ok := supportedURL(w, req.URL)
	if !ok {
		return
	}

	prefs := a.prefs
	if req.Format != "" {
		prefs.Format = req.Format
	}
	if req.Bitrate != "" {
		prefs.Bitrate = req.Bitrate
	}
	skip := a.skip
	if req.SkipInfoFetch != nil {
		skip = *req.SkipInfoFetch
	}

	var job *tasks.Job
	var err error
	if req.MetadataOnly {
		job, err = a.d.GetRequestedMetadata(link, prefs)
	} else {
		job, err = a.d.GetInfoAndDownload(link, prefs, skip)
	}
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "url": link})
}

func (a *API) cancelDownload(w http.ResponseWriter, r *http.Request) {
	a.d.CancelDownload()
	w.WriteHeader(http.StatusNoContent)
}

type parallelRequest struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

func (a *API) parallel(w http.ResponseWriter, r *http.Request) {
	var req parallelRequest
	if !decode(w, r, &req) {
		return
	}
	link, ok := supportedURL(w, req.URL)
	if !ok {
		return
	}

	job := a.d.ExecuteParallelDownloadWithURL(link, req.Name)
	select {
	case <-job.Done():
		if err := job.Err(); errors.Is(err, shared.ErrDuplicateProcess) || errors.Is(err, shared.ErrClosed) {
			a.fail(w, err)
			return
		}
	default:
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "key": tasks.TaskKey(link)})
}

// fail maps sentinel errors to status codes.
func (a *API) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrUnsupportedURL):
		status = http.StatusBadRequest
	case errors.Is(err, shared.ErrTaskNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrDownloaderBusy), errors.Is(err, shared.ErrDuplicateProcess):
		status = http.StatusConflict
	case errors.Is(err, shared.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", "err", err)
	}
	writeError(w, status, err.Error())
}

func pathKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key, err := url.PathUnescape(mux.Vars(r)["key"])
	if err != nil || key == "" {
		writeError(w, http.StatusBadRequest, "invalid task key")
		return "", false
	}
	return key, true
}

func supportedURL(w http.ResponseWriter, raw string) (string, bool) {
	link := urls.Normalize(raw)
	if link == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return "", false
	}
	if !urls.IsSupported(link) {
		writeError(w, http.StatusBadRequest, shared.ErrUnsupportedURL.Error()+": "+link)
		return "", false
	}
	return link, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

type errorResponse struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Status: status, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := shared.MarshalJSON(v, false)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
