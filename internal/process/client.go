package process

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
)

// ProgressFunc receives download progress in [0, 1] together with the line it was parsed from.
type ProgressFunc func(progress float64, line string)

var (
	percentRe    = regexp.MustCompile(`(\d+)%`)
	downloadedRe = regexp.MustCompile(`Downloaded "([^"]+)"`)
)

// ParseProgress extracts the first "N%" of a line as a fraction.
func ParseProgress(line string) (float64, bool) {
	m := percentRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	if n > 100 {
		n = 100
	}
	return float64(n) / 100, true
}

// ClientOpts configures how spotdl is launched.
type ClientOpts struct {
	Executable   string // python interpreter, or the spotdl binary when Module is empty
	Module       string
	FFmpeg       string
	BinDir       string
	Env          shared.EnvConfig
	ClientID     string
	ClientSecret string
	OutputDir    string
	Logger       *log.Logger
}

// Client wraps the spotdl command line.
type Client struct {
	opts   ClientOpts
	runner *Runner
	logger *log.Logger
}

// NewClient creates a client that runs processes through runner.
func NewClient(opts ClientOpts, runner *Runner) *Client {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if runner == nil {
		runner = NewRunner(nil, opts.Logger)
	}
	return &Client{
		opts:   opts,
		runner: runner,
		logger: shared.WithLogger(opts.Logger, "component", "spotdl"),
	}
}

// NewClientFromConfig builds a [Client] from the [shared.Config] spotdl and credential sections.
func NewClientFromConfig(cfg *shared.Config, registry *Registry, logger *log.Logger) *Client {
	return NewClient(ClientOpts{
		Executable:   cfg.SpotDL.Executable,
		Module:       cfg.SpotDL.Module,
		FFmpeg:       cfg.SpotDL.FFmpeg,
		BinDir:       cfg.SpotDL.BinDir,
		Env:          cfg.SpotDL.Env,
		ClientID:     cfg.Credentials.Spotify.ClientID,
		ClientSecret: cfg.Credentials.Spotify.ClientSecret,
		OutputDir:    cfg.SpotDL.OutputDir,
		Logger:       logger,
	}, NewRunner(registry, logger))
}

// Registry returns the registry every spotdl process is tracked in.
func (c *Client) Registry() *Registry {
	return c.runner.Registry()
}

// OutputDir is the configured download directory.
func (c *Client) OutputDir() string {
	return c.opts.OutputDir
}

// Environment returns the variables overlaid on every spotdl process. Unset settings are omitted.
func (c *Client) Environment() map[string]string {
	env := map[string]string{
		"TERM":        "xterm-256color",
		"FORCE_COLOR": "true",
	}
	set := func(k, v string) {
		if v != "" {
			env[k] = v
		}
	}
	set("LD_LIBRARY_PATH", c.opts.Env.LibraryPath)
	set("SSL_CERT_FILE", c.opts.Env.CertFile)
	set("PYTHONHOME", c.opts.Env.PythonHome)
	set("HOME", c.opts.Env.Home)
	set("LDFLAGS", c.opts.Env.LDFlags)
	set("TMPDIR", c.opts.Env.TmpDir)
	if c.opts.BinDir != "" {
		env["PATH"] = os.Getenv("PATH") + string(os.PathListSeparator) + c.opts.BinDir
	}
	return env
}

// command renders req into the process to start.
func (c *Client) command(req *Request) Command {
	args := []string{}
	if c.opts.Module != "" {
		args = append(args, "-m", c.opts.Module)
	}
	return Command{
		Path:   c.opts.Executable,
		Args:   append(args, req.Args()...),
		Env:    c.Environment(),
		Strict: req.HasOption("--print-errors"),
	}
}

// Execute runs req under processID. The request gains "--ffmpeg" when an ffmpeg path is configured.
func (c *Client) Execute(ctx context.Context, req *Request, processID string, onLine LineFunc) (*Result, error) {
	if processID != "" && c.Registry().Contains(processID) {
		return nil, fmt.Errorf("%w: %s", shared.ErrDuplicateProcess, processID)
	}
	if c.opts.FFmpeg != "" && !req.HasOption("--ffmpeg") {
		req.AddOption("--ffmpeg", c.opts.FFmpeg)
	}

	cmd := c.command(req)
	c.logger.Debug("executing spotdl", "id", processID, "args", strings.Join(req.Args(), " "))
	return c.runner.Run(ctx, processID, cmd, onLine)
}

func (c *Client) withCredentials(req *Request) *Request {
	if req.HasOption("--client-id") && req.HasOption("--client-secret") {
		return req
	}
	if c.opts.ClientID != "" && c.opts.ClientSecret != "" {
		req.AddOption("--client-id", c.opts.ClientID)
		req.AddOption("--client-secret", c.opts.ClientSecret)
	}
	return req
}

// FetchSongInfo runs `spotdl save <url> --save-file -` and decodes the JSON it prints.
func (c *Client) FetchSongInfo(ctx context.Context, url, processID string) ([]models.SongInfo, error) {
	return c.FetchSongInfoWith(ctx, url, processID, nil)
}

// FetchSongInfoWith is [Client.FetchSongInfo] with extra "--option value" pairs.
func (c *Client) FetchSongInfoWith(ctx context.Context, url, processID string, extra map[string]string) ([]models.SongInfo, error) {
	req := NewRequest("save", url).
		AddOption("--save-file", "-").
		AddOption("--log-level", "DEBUG").
		AddOption("--print-errors")
	for _, k := range sortedKeys(extra) {
		req.AddOption(k, extra[k])
	}
	c.withCredentials(req)

	res, err := c.Execute(ctx, req, processID, nil)
	if err != nil {
		return nil, err
	}
	return models.DecodeSongs(res.Stdout, res.Stderr)
}

// DownloadSong downloads one song and returns the names spotdl reported as downloaded.
func (c *Client) DownloadSong(ctx context.Context, song models.SongInfo, prefs models.DownloadPreferences, taskID string, onProgress ProgressFunc) ([]string, error) {
	if song.URL == "" {
		return nil, fmt.Errorf("%w: song has no url", shared.ErrInvalidInput)
	}
	if prefs.OutputDir == "" {
		prefs.OutputDir = c.opts.OutputDir
	}

	req := c.withCredentials(NewRequest("download", song.URL).WithPreferences(prefs))
	last := 0.0
	res, err := c.Execute(ctx, req, taskID, func(line string) {
		if p, ok := ParseProgress(line); ok && p > last {
			last = p
		}
		if onProgress != nil {
			onProgress(last, line)
		}
	})
	if err != nil {
		return nil, err
	}
	return DownloadedNames(res.Stdout), nil
}

// Download runs `spotdl download <url>` with prefs, forwarding raw stdout lines.
func (c *Client) Download(ctx context.Context, url string, prefs models.DownloadPreferences, taskID string, onLine LineFunc) (*Result, error) {
	if prefs.OutputDir == "" {
		prefs.OutputDir = c.opts.OutputDir
	}
	req := c.withCredentials(NewRequest("download", url).WithPreferences(prefs))
	return c.Execute(ctx, req, taskID, onLine)
}

// Destroy kills the spotdl process registered under id.
func (c *Client) Destroy(id string) bool {
	ok := c.Registry().Destroy(id)
	c.logger.Debug("destroy", "id", id, "destroyed", ok)
	return ok
}

// DownloadedNames collects the quoted names of `Downloaded "..."` lines.
func DownloadedNames(stdout string) []string {
	var names []string
	for _, m := range downloadedRe.FindAllStringSubmatch(stdout, -1) {
		names = append(names, m[1])
	}
	return names
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
