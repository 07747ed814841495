package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/spotx/internal/services"
	"github.com/desertthunder/spotx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the default configuration file.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", configPath)
	return r.writePlain("Wrote %s\n", configPath)
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using current settings", "error", err)
			config = r.config
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using current settings", "error", err)
		}
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return r.writePlain("Database ready at %s\n", config.Database.Path)
}

// SetupCredentials exchanges the Spotify client credentials for a token to prove they work, and
// with --save writes them to the config file.
func (r *Runner) SetupCredentials(ctx context.Context, cmd *cli.Command) error {
	spotify := r.config.Credentials.Spotify
	if id := cmd.String("client-id"); id != "" {
		spotify.ClientID = id
	}
	if secret := cmd.String("client-secret"); secret != "" {
		spotify.ClientSecret = secret
	}

	verifier := services.NewCredentialsVerifier(spotify.TokenURL).WithHTTPClient(r.httpClient)
	token, err := verifier.Verify(ctx, spotify.ClientID, spotify.ClientSecret)
	if err != nil {
		return err
	}
	r.logger.Info("spotify credentials verified", "expires", token.Expiry)

	if !cmd.Bool("save") {
		return r.writePlain("Credentials are valid\n")
	}

	configPath := cmd.String("config")
	config := *r.config
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := shared.LoadConfig(configPath)
		if err != nil {
			return err
		}
		config = *loaded
	}
	config.Credentials.Spotify.ClientID = spotify.ClientID
	config.Credentials.Spotify.ClientSecret = spotify.ClientSecret
	if err := shared.SaveConfig(configPath, &config); err != nil {
		return err
	}
	r.config.Credentials.Spotify = config.Credentials.Spotify
	return r.writePlain("Credentials are valid and saved to %s\n", configPath)
}
