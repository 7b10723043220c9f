package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackdrop/internal/formatter"
	"github.com/desertthunder/trackdrop/internal/ledger"
	"github.com/desertthunder/trackdrop/internal/media"
	"github.com/desertthunder/trackdrop/internal/models"
	"github.com/desertthunder/trackdrop/internal/repositories"
	"github.com/desertthunder/trackdrop/internal/services"
	"github.com/desertthunder/trackdrop/internal/shared"
	"github.com/desertthunder/trackdrop/internal/tasks"
	"github.com/desertthunder/trackdrop/internal/ui"
	"github.com/urfave/cli/v3"
)

const logFileName = "trackdrop.log"

// errPassAborted marks a run in which at least one artist pass stopped early.
var errPassAborted = errors.New("artist pass aborted")

// Sync runs one pass over the configured artists.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd, true)
	if err != nil {
		return err
	}

	bindings, err := config.Bindings(cmd.StringSlice("artist")...)
	if err != nil {
		return err
	}

	delay := config.Sync.Delay
	if cmd.IsSet("delay") {
		delay = cmd.Duration("delay")
	}
	if delay < 0 {
		return fmt.Errorf("%w: delay must not be negative", shared.ErrInvalidConfig)
	}

	dryRun := cmd.Bool("dry-run")
	interactive := cmd.Bool("interactive")

	logger := r.logger
	if interactive {
		path := filepath.Join(config.Fetcher.WorkDir, logFileName)
		fileLogger, closer, err := shared.NewFileLogger(path)
		if err != nil {
			return err
		}
		defer closer.Close()
		fileLogger.SetLevel(r.logger.GetLevel())
		logger = fileLogger
	}

	engine, cleanup, err := r.buildEngine(ctx, config, delay, dryRun, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("starting sync", "artists", len(bindings), "delay", delay, "dry_run", dryRun)

	var result *tasks.RunResult
	if interactive {
		result, err = r.syncInteractive(ctx, engine, bindings)
	} else {
		result, err = r.syncPlain(ctx, engine, bindings)
	}

	if result != nil {
		r.printSummary(result, dryRun)
	}
	if err != nil {
		return err
	}

	return abortError(result)
}

func (r *Runner) syncInteractive(ctx context.Context, engine *tasks.SyncEngine, bindings []models.Binding) (*tasks.RunResult, error) {
	model := ui.NewModel(ctx, engine, bindings)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return nil, fmt.Errorf("failed to run interactive view: %w", err)
	}
	return model.Result()
}

func (r *Runner) syncPlain(ctx context.Context, engine *tasks.SyncEngine, bindings []models.Binding) (*tasks.RunResult, error) {
	progress := make(chan tasks.ProgressUpdate, 64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			if update.Phase == tasks.Pace {
				continue
			}
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := engine.Run(ctx, bindings, progress)
	close(progress)
	wg.Wait()

	return result, err
}

func (r *Runner) printSummary(result *tasks.RunResult, dryRun bool) {
	r.writePlainln("")
	r.writePlainHeader("Sync Summary")

	for _, ar := range result.Artists {
		if dryRun {
			r.writePlain("%s: %d in catalog, %d already posted, %d to publish\n",
				ar.Artist, ar.Catalog, ar.Skipped, len(ar.Candidates))
			if len(ar.Candidates) > 0 {
				r.output.Write(formatter.TracksToText(ar.Candidates))
			}
			continue
		}

		status := "ok"
		switch {
		case ar.Aborted:
			status = fmt.Sprintf("aborted: %v", ar.Err)
		case ar.Err != nil:
			status = fmt.Sprintf("stopped: %v", ar.Err)
		}
		r.writePlain("%s: %d published, %d fetch failed, %d publish failed, %d skipped (%s)\n",
			ar.Artist, ar.Published, ar.FetchFailed, ar.PublishFailed, ar.Skipped, status)
	}

	r.writePlain("\nTotal: %d published in %s\n", result.Published(), result.Elapsed.Round(time.Millisecond))
}

// abortError returns an error wrapping errPassAborted and the first abort cause, or nil.
func abortError(result *tasks.RunResult) error {
	if result == nil {
		return nil
	}
	for _, ar := range result.Artists {
		if ar.Aborted {
			return fmt.Errorf("%w: %s: %w", errPassAborted, ar.Artist, ar.Err)
		}
	}
	return nil
}

// buildEngine wires the sync engine from config, preferring collaborators injected into the runner.
//
// The returned cleanup closes the history database and must always be called.
func (r *Runner) buildEngine(ctx context.Context, config *shared.Config, delay time.Duration, dryRun bool, logger *log.Logger) (*tasks.SyncEngine, func(), error) {
	cleanup := func() {}

	catalog := r.catalog
	if catalog == nil {
		spotify, err := services.NewSpotifyService(config.Credentials.Spotify.Map(), services.SpotifyOptions{
			BaseURL:           config.Catalog.BaseURL,
			TokenURL:          config.Catalog.TokenURL,
			Concurrency:       config.Catalog.Concurrency,
			RequestsPerSecond: config.Catalog.RequestsPerSecond,
			HTTPClient:        r.httpClient,
			Logger:            logger,
		})
		if err != nil {
			return nil, cleanup, err
		}
		if err := spotify.Authenticate(ctx); err != nil {
			return nil, cleanup, err
		}
		catalog = spotify
	}

	opts := tasks.Options{
		Delay:  delay,
		Logger: logger,
		Sleep:  r.sleep,
		DryRun: dryRun,
	}

	fetcher, publisher := r.fetcher, r.publisher
	if !dryRun {
		if fetcher == nil {
			youtube, err := services.NewYouTubeService(services.YouTubeOptions{
				Binary:      config.Fetcher.Binary,
				AudioFormat: config.Fetcher.AudioFormat,
				WorkDir:     config.Fetcher.WorkDir,
				Timeout:     config.Fetcher.Timeout,
				Logger:      logger,
			})
			if err != nil {
				return nil, cleanup, err
			}
			fetcher = youtube
		}
		if publisher == nil {
			publisher = services.NewTelegramService(services.TelegramOptions{
				APIURL:     config.Telegram.APIURL,
				HTTPClient: r.httpClient,
				Logger:     logger,
			})
		}

		opts.Tagger = media.NewTagger()
		if config.Sync.ArtworkDir != "" {
			opts.Artwork = media.NewArtworkCache(config.Sync.ArtworkDir, r.httpClient)
		}

		db, err := shared.OpenHistoryDatabase(config.Database)
		if err != nil {
			logger.Warn("publish history disabled", "error", err)
		} else {
			cleanup = func() { db.Close() }
			opts.History = repositories.NewPublishAttemptRepository(db)
		}
	}

	engine := tasks.NewSyncEngine(catalog, fetcher, publisher, ledger.NewFileLedger(config.Sync.LedgerDir), opts)
	return engine, cleanup, nil
}
