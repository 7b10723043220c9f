package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackdrop/internal/services"
	"github.com/desertthunder/trackdrop/internal/shared"
	"github.com/desertthunder/trackdrop/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ChannelLister lists the channels a bot token can see.
type ChannelLister interface {
	Channels(ctx context.Context, token string) ([]services.Channel, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Collaborators left nil are built from the loaded configuration when a command needs them.
type Runner struct {
	config     *shared.Config
	logger     *log.Logger
	output     io.Writer
	httpClient *http.Client

	catalog   tasks.CatalogReader
	fetcher   tasks.Fetcher
	publisher tasks.Publisher
	channels  ChannelLister
	sleep     tasks.SleepFunc
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Logger     *log.Logger
	Output     io.Writer
	HTTPClient *http.Client

	Catalog   tasks.CatalogReader
	Fetcher   tasks.Fetcher
	Publisher tasks.Publisher
	Channels  ChannelLister
	Sleep     tasks.SleepFunc
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		logger:     opts.Logger,
		output:     opts.Output,
		httpClient: opts.HTTPClient,
		catalog:    opts.Catalog,
		fetcher:    opts.Fetcher,
		publisher:  opts.Publisher,
		channels:   opts.Channels,
		sleep:      opts.Sleep,
	}
}

// loadConfig returns the injected config or loads the file named by --config.
//
// When strict is false a missing file falls back to the embedded defaults so that
// ledger and history commands work without credentials.
func (r *Runner) loadConfig(cmd *cli.Command, strict bool) (*shared.Config, error) {
	config := r.config
	if config == nil {
		path := cmd.String("config")
		loaded, err := shared.LoadConfig(path)
		switch {
		case err == nil:
			config = loaded
		case errors.Is(err, shared.ErrMissingConfig) && !strict:
			r.logger.Debug("config file not found, using defaults", "path", path)
			config = shared.DefaultConfig()
			config.ApplyEnv()
		default:
			return nil, err
		}
	}

	if strict {
		if err := config.Validate(); err != nil {
			return nil, err
		}
	}
	return config, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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
