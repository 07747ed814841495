// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func preferenceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Audio format (mp3, flac, ogg, opus, m4a, wav)",
		},
		&cli.StringFlag{
			Name:  "bitrate",
			Usage: "Audio bitrate, e.g. 320k or auto",
		},
		&cli.StringFlag{
			Name:    "output-dir",
			Aliases: []string{"o"},
			Usage:   "Directory downloaded files are written to",
		},
	}
}

// downloadCommand runs the foreground orchestrator for one link.
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Download a track, album, playlist or artist link",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "url",
			},
		},
		Flags: append(preferenceFlags(),
			&cli.BoolFlag{
				Name:  "skip-info-fetch",
				Usage: "Download single tracks directly without fetching metadata first",
			},
			&cli.BoolFlag{
				Name:  "quick",
				Usage: "Download without tracking state (no metadata, no history)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the final status as JSON",
			},
		),
		Action: r.Download,
	}
}

// metadataCommand fetches song metadata and exports it.
func metadataCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "metadata",
		Aliases: []string{"info"},
		Usage:   "Fetch song metadata for a link without downloading",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "url",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "export",
				Usage: "Export format (json, yaml, csv, markdown, txt)",
				Value: "json",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to this file (or directory for markdown) instead of stdout",
			},
		},
		Action: r.Metadata,
	}
}

// classifyCommand reports how a link would be routed.
func classifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "classify",
		Usage: "Show the link type and download path chosen for a url",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "url",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "skip-info-fetch",
				Usage: "Apply the skip info fetch preference",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Classify,
	}
}

// parallelCommand downloads links as background tasks.
func parallelCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "parallel",
		Usage:     "Download several links at once as background tasks",
		ArgsUsage: "<url> [url...]",
		Flags: append(preferenceFlags(),
			&cli.StringFlag{
				Name:  "name",
				Usage: "Display name for the task (single url only)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		),
		Action: r.Parallel,
	}
}

// batchCommand downloads a list of links with a bounded worker pool and writes a manifest.
func batchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "Download links from arguments or a file and write a batch manifest",
		ArgsUsage: "[url...]",
		Flags: append(preferenceFlags(),
			&cli.StringFlag{
				Name:  "file",
				Usage: "File with one url per line (# starts a comment)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent downloads (default from config)",
			},
			&cli.FloatFlag{
				Name:  "rate-limit",
				Usage: "Submissions per second (default from config)",
			},
			&cli.StringFlag{
				Name:  "manifest-format",
				Usage: "Manifest format (json, yaml)",
				Value: "json",
			},
			&cli.StringFlag{
				Name:  "manifest-dir",
				Usage: "Directory the manifest is written to (default: spotx_batch_{epoch})",
			},
		),
		Action: r.Batch,
	}
}

// historyCommand inspects finished background tasks.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect recorded task history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List finished tasks, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status (completed, canceled, failed)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "Output CSV",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:   "clear",
				Usage:  "Remove all history entries",
				Action: r.HistoryClear,
			},
			{
				Name:  "songs",
				Usage: "List songs cached from metadata fetches",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "export",
						Usage: "Export format (json, yaml, csv, markdown, txt)",
						Value: "txt",
					},
				},
				Action: r.HistorySongs,
			},
		},
	}
}

// setupCommand handles setup operations for configuration, database and credentials.
func setupCommand(r *Runner) *cli.Command {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}
	configFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   path,
		}
	}
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write the default config.toml",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:  "credentials",
				Usage: "Verify Spotify client credentials and optionally save them",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "client-id",
						Usage: "Spotify client id (default from config)",
					},
					&cli.StringFlag{
						Name:  "client-secret",
						Usage: "Spotify client secret (default from config)",
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Write verified credentials to the config file",
					},
				},
				Action: r.SetupCredentials,
			},
		},
	}
}

// serveCommand runs the local status API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the downloader status API over HTTP",
		Flags: append(preferenceFlags(),
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default from config)",
			},
		),
		Action: r.Serve,
	}
}
