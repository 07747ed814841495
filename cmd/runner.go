package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/process"
	"github.com/desertthunder/spotx/internal/repositories"
	"github.com/desertthunder/spotx/internal/shared"
	"github.com/desertthunder/spotx/internal/tasks"
	"github.com/urfave/cli/v3"
)

const closeTimeout = 10 * time.Second

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	executor   tasks.Executor
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Executor   tasks.Executor // spotdl client built from Config when nil
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		executor:   opts.Executor,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		downloadCommand, metadataCommand, classifyCommand, parallelCommand, batchCommand,
		historyCommand, setupCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// preferences converts the [downloads] section into spotdl download preferences.
func preferences(config *shared.Config) models.DownloadPreferences {
	d := config.Downloads
	return models.DownloadPreferences{
		Format:         d.Format,
		Bitrate:        d.Bitrate,
		OutputTemplate: d.OutputTemplate,
		OutputDir:      config.SpotDL.OutputDir,
		Threads:        d.Threads,
		Lyrics:         d.Lyrics,
		AudioProviders: d.AudioProviders,
		SkipExplicit:   d.SkipExplicit,
		GenerateLRC:    d.GenerateLRC,
		SponsorBlock:   d.SponsorBlock,
	}
}

// preferences returns the configured preferences with the command's --format, --bitrate and
// --output-dir flags applied.
func (r *Runner) preferences(cmd *cli.Command) models.DownloadPreferences {
	prefs := preferences(r.config)
	if f := cmd.String("format"); f != "" {
		prefs.Format = f
	}
	if b := cmd.String("bitrate"); b != "" {
		prefs.Bitrate = b
	}
	if o := cmd.String("output-dir"); o != "" {
		prefs.OutputDir = o
	}
	return prefs
}

// newDownloader builds a [tasks.Downloader] over the spotdl client. With history set, finished
// tasks and fetched songs are stored in the configured database; a database that cannot be opened
// only disables the history.
//
// The returned func closes the downloader and the database.
func (r *Runner) newDownloader(prefs models.DownloadPreferences, history bool) (*tasks.Downloader, func(), error) {
	exec := r.executor
	if exec == nil {
		if err := r.config.Validate(); err != nil {
			return nil, nil, err
		}
		exec = process.NewClientFromConfig(r.config, process.NewRegistry(), r.logger)
	}

	opts := tasks.Options{
		Executor:        exec,
		Logger:          r.logger,
		FetchTimeout:    r.config.Timeouts.Fetch,
		DownloadTimeout: r.config.Timeouts.Download,
		OutputDir:       prefs.OutputDir,
		Preferences:     prefs,
	}

	var db *sql.DB
	if history {
		var err error
		if db, err = shared.OpenDatabase(r.config.Database); err != nil {
			r.logger.Warn("history disabled", "error", err)
			db = nil
		} else {
			opts.History = repositories.NewHistoryRecorder(
				repositories.NewHistoryRepository(db), repositories.NewSongRepository(db))
		}
	}

	d := tasks.NewDownloader(opts)
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := d.Close(ctx); err != nil {
			r.logger.Warn("downloader did not stop cleanly", "error", err)
		}
		if db != nil {
			db.Close()
		}
	}
	return d, cleanup, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
