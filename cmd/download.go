package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/desertthunder/spotx/internal/formatter"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/server"
	"github.com/desertthunder/spotx/internal/shared"
	"github.com/desertthunder/spotx/internal/tasks"
	"github.com/desertthunder/spotx/internal/ui"
	"github.com/desertthunder/spotx/internal/urls"
	"github.com/urfave/cli/v3"
)

type downloadView struct {
	URL       string            `json:"url"`
	Type      string            `json:"type"`
	State     string            `json:"state"`
	Songs     []models.SongInfo `json:"songs"`
	ErrorCode string            `json:"error_code,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type classifyView struct {
	URL           string `json:"url"`
	Supported     bool   `json:"supported"`
	Type          string `json:"type"`
	Collection    bool   `json:"collection"`
	Path          string `json:"path"`
	SkipInfoFetch bool   `json:"skip_info_fetch"`
}

type taskView struct {
	Key      string  `json:"key"`
	URL      string  `json:"url"`
	Name     string  `json:"name"`
	State    string  `json:"state"`
	Progress float64 `json:"progress"`
	Report   string  `json:"report,omitempty"`
}

func newTaskViews(ts []tasks.Task) []taskView {
	views := make([]taskView, 0, len(ts))
	for _, t := range ts {
		v := taskView{Key: t.Key, URL: t.URL, Name: t.Name, State: t.State.String(), Progress: t.Progress()}
		if _, failed := t.State.(tasks.Failed); failed {
			v.Report = t.Report()
		}
		views = append(views, v)
	}
	return views
}

// requireURL normalizes raw and rejects empty or unsupported links.
func requireURL(raw string) (string, error) {
	link := urls.Normalize(raw)
	if link == "" {
		return "", fmt.Errorf("%w: url is required", shared.ErrMissingArgument)
	}
	if !urls.IsSupported(link) {
		return "", fmt.Errorf("%w: %q", shared.ErrUnsupportedURL, link)
	}
	return link, nil
}

// Download runs the foreground operation for a link and prints its progress until it ends.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	link, err := requireURL(cmd.StringArg("url"))
	if err != nil {
		return err
	}

	prefs := r.preferences(cmd)
	typ := urls.Classify(link)
	_, skip := urls.Route(typ, cmd.Bool("skip-info-fetch") || r.config.Downloads.SkipInfoFetch)

	d, closeDownloader, err := r.newDownloader(prefs, true)
	if err != nil {
		return err
	}
	defer closeDownloader()

	if cmd.Bool("quick") {
		r.logger.Info("quick download", "url", link)
		if err := d.ExecuteQuickDownload(link, prefs).Wait(ctx); err != nil {
			return fmt.Errorf("quick download failed: %w", err)
		}
		return r.writePlain("Downloaded %s\n", link)
	}

	job, err := d.GetInfoAndDownload(link, prefs, skip)
	if err != nil {
		return err
	}

	asJSON := cmd.Bool("json")
	var progress io.Writer = r.output
	if asJSON {
		progress = io.Discard
	}
	werr := ui.Watch(ctx, progress, d, job)

	st := d.Status()
	if asJSON {
		view := downloadView{URL: link, Type: typ.String(), State: st.State.String(), Songs: st.Songs}
		if st.Error.Occurred() {
			view.ErrorCode = string(st.Error.Code)
			view.Error = st.Error.Report
		}
		if err := r.writeJSON(view, true); err != nil {
			return err
		}
	} else if err := r.writePlainln("%s", ui.RenderStatus(st)); err != nil {
		return err
	}

	if werr != nil {
		return fmt.Errorf("download failed: %w", werr)
	}
	return nil
}

// Metadata fetches the songs behind a link and renders or exports them.
func (r *Runner) Metadata(ctx context.Context, cmd *cli.Command) error {
	link, err := requireURL(cmd.StringArg("url"))
	if err != nil {
		return err
	}

	prefs := r.preferences(cmd)
	d, closeDownloader, err := r.newDownloader(prefs, true)
	if err != nil {
		return err
	}
	defer closeDownloader()

	job, err := d.GetRequestedMetadata(link, prefs)
	if err != nil {
		return err
	}
	if err := job.Wait(ctx); err != nil {
		return fmt.Errorf("metadata fetch failed: %w", err)
	}

	return r.exportSongs(d.Status().Songs, cmd.String("export"), cmd.String("output"))
}

func (r *Runner) exportSongs(songs []models.SongInfo, format, output string) error {
	switch {
	case output != "" && (format == formatter.FormatMarkdown || format == "md"):
		res, err := formatter.WriteMarkdownExport(songs, output)
		if err != nil {
			return err
		}
		return r.writePlain("Exported %d songs to %s\n", len(songs), res.Directory)
	case output != "":
		path, err := formatter.WriteSongs(songs, format, output)
		if err != nil {
			return err
		}
		return r.writePlain("Wrote %d songs to %s\n", len(songs), path)
	}

	data, err := formatter.Render(songs, format)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// Classify prints the link type and the orchestration path chosen for it.
func (r *Runner) Classify(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.StringArg("url")
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: url is required", shared.ErrMissingArgument)
	}

	link := urls.Normalize(raw)
	typ := urls.Classify(link)
	path, skip := urls.Route(typ, cmd.Bool("skip-info-fetch"))
	view := classifyView{
		URL:           link,
		Supported:     urls.IsSupported(link),
		Type:          typ.String(),
		Collection:    typ.IsCollection(),
		Path:          path.String(),
		SkipInfoFetch: skip,
	}

	if cmd.Bool("json") {
		return r.writeJSON(view, false)
	}
	return r.writePlain("url:        %s\nsupported:  %t\ntype:       %s\npath:       %s\nskip fetch: %t\n",
		view.URL, view.Supported, view.Type, view.Path, view.SkipInfoFetch)
}

// Parallel downloads every argument as a background task and prints the task list once all end.
func (r *Runner) Parallel(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return fmt.Errorf("%w: at least one url is required", shared.ErrMissingArgument)
	}
	name := cmd.String("name")
	if name != "" && len(args) > 1 {
		return fmt.Errorf("%w: --name needs exactly one url", shared.ErrInvalidArgument)
	}

	links := make([]string, 0, len(args))
	for _, a := range args {
		link, err := requireURL(a)
		if err != nil {
			return err
		}
		links = append(links, link)
	}

	d, closeDownloader, err := r.newDownloader(r.preferences(cmd), true)
	if err != nil {
		return err
	}
	defer closeDownloader()

	jobs := make([]*tasks.Job, 0, len(links))
	for _, link := range links {
		jobs = append(jobs, d.ExecuteParallelDownloadWithURL(link, name))
	}

	failed := 0
	for _, job := range jobs {
		if err := job.Wait(ctx); err != nil {
			failed++
			r.logger.Error("parallel download failed", "url", job.URL, "error", err)
		}
	}

	snapshot := d.Store().Snapshot()
	if cmd.Bool("json") {
		if err := r.writeJSON(newTaskViews(snapshot), true); err != nil {
			return err
		}
	} else if err := r.writePlain("%s", ui.RenderTasks(snapshot)); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d downloads failed", shared.ErrProcessExecution, failed, len(jobs))
	}
	return nil
}

// Batch downloads the urls from --file and the arguments with a worker pool and writes a manifest.
func (r *Runner) Batch(ctx context.Context, cmd *cli.Command) error {
	items, err := batchItems(cmd.String("file"), cmd.Args().Slice())
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: no urls given", shared.ErrMissingArgument)
	}

	opts := tasks.BatchOpts{
		Format:     cmd.String("manifest-format"),
		OutputDir:  cmd.String("manifest-dir"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate-limit"),
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = r.config.Downloads.Workers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = r.config.Downloads.RateLimit
	}

	d, closeDownloader, err := r.newDownloader(r.preferences(cmd), true)
	if err != nil {
		return err
	}
	defer closeDownloader()

	prog := make(chan tasks.ProgressUpdate, 3*len(items)+1)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for u := range prog {
			r.writePlain("%s\n", u.Message)
		}
	}()

	res, err := d.Batch(ctx, prog, items, opts)
	close(prog)
	<-printed

	if res != nil {
		r.writePlainHeader("Batch complete")
		r.writePlain("Total: %d  Successful: %d  Failed: %d\n", res.Total, res.Successful, res.Failed)
		if res.ManifestPath != "" {
			r.writePlain("Manifest: %s\n", res.ManifestPath)
		}
	}
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		return fmt.Errorf("%w: %d of %d downloads failed", shared.ErrProcessExecution, res.Failed, res.Total)
	}
	return nil
}

// batchItems reads "<url> [name]" lines from path, skipping blanks and # comments, followed by args.
func batchItems(path string, args []string) ([]tasks.BatchItem, error) {
	var items []tasks.BatchItem
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open url file: %w", err)
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			link, name, _ := strings.Cut(line, " ")
			items = append(items, tasks.BatchItem{URL: link, Name: strings.TrimSpace(name)})
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("failed to read url file: %w", err)
		}
	}
	for _, a := range args {
		items = append(items, tasks.BatchItem{URL: a})
	}
	return items, nil
}

// Serve exposes the downloader over the local HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	prefs := r.preferences(cmd)
	d, closeDownloader, err := r.newDownloader(prefs, true)
	if err != nil {
		return err
	}
	defer closeDownloader()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := server.NewAPI(d, prefs, r.config.Downloads.SkipInfoFetch, r.logger)
	return server.New(addr, server.NewRouter(api), r.logger).Serve(ctx)
}
