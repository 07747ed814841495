package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/spotx/internal/shared"
	"github.com/urfave/cli/v3"
)

const configPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	if err := shared.LoadDotEnv(); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	config, err := loadConfig(configPath)
	if err != nil {
		logger.Fatalf("configuration error: %v", err)
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Logging.Level))

	if config.Logging.File != "" {
		if rf, err := shared.OpenRotatingFile(config.Logging.File, config.Logging.MaxBytes); err != nil {
			logger.Warn("debug log disabled", "path", config.Logging.File, "error", err)
		} else {
			defer rf.Close()
			logger = shared.MultiLogger(os.Stderr, rf)
			shared.SetLogLevel(logger, shared.ParseLogLevel(config.Logging.Level))
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Logger:     logger,
	})

	if err := newApp(runner).Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:     "spotx",
		Usage:    "Download Spotify and YouTube links with spotdl",
		Version:  "0.1.0",
		Commands: r.register(),
	}
}

// loadConfig reads path when it exists, falls back to the defaults otherwise and applies the
// environment overrides.
func loadConfig(path string) (*shared.Config, error) {
	config := shared.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if config, err = shared.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}
