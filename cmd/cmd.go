// submodule cmd contains command definitions
package main

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackdrop/internal/formatter"
	"github.com/desertthunder/trackdrop/internal/repositories"
	"github.com/desertthunder/trackdrop/internal/shared"
	"github.com/desertthunder/trackdrop/internal/tasks"
	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

// command builds the root trackdrop command with every subcommand registered.
func (r *Runner) command() *cli.Command {
	return &cli.Command{
		Name:    "trackdrop",
		Usage:   "Publish an artist's new Spotify releases to their Telegram channel",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("verbose") {
				shared.SetLogLevel(r.logger, log.DebugLevel)
			}
			return ctx, nil
		},
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, channelsCommand, ledgerCommand, historyCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// syncCommand runs one pass over the configured artists
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Publish tracks missing from each artist's ledger",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "artist",
				Aliases: []string{"a"},
				Usage:   "Only sync the named artist (repeatable)",
			},
			&cli.DurationFlag{
				Name:  "delay",
				Usage: "Pause between publish attempts (overrides sync.delay)",
				Value: tasks.DefaultDelay,
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "List what would be published without fetching or publishing",
			},
			&cli.BoolFlag{
				Name:    "interactive",
				Aliases: []string{"i"},
				Usage:   "Show an interactive progress view",
			},
		},
		Action: r.Sync,
	}
}

// channelsCommand lists channels visible to a bot token
func channelsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "channels",
		Usage: "List the channels a bot has seen, with their ids",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "token",
				Aliases:  []string{"t"},
				Usage:    "Bot token to query",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text or json",
				Value:   string(formatter.FormatText),
			},
		},
		Action: r.Channels,
	}
}

// ledgerCommand inspects and seeds per-artist ledgers
func ledgerCommand(r *Runner) *cli.Command {
	artistFlag := &cli.StringFlag{
		Name:     "artist",
		Aliases:  []string{"a"},
		Usage:    "Artist name as configured",
		Required: true,
	}
	trackFlag := &cli.StringFlag{
		Name:     "track",
		Aliases:  []string{"t"},
		Usage:    "Track name; normalized before lookup",
		Required: true,
	}

	return &cli.Command{
		Name:  "ledger",
		Usage: "Inspect or seed an artist's ledger of posted tracks",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List posted track identities in file order",
				Flags:  []cli.Flag{artistFlag},
				Action: r.LedgerList,
			},
			{
				Name:   "check",
				Usage:  "Report whether a track has been posted",
				Flags:  []cli.Flag{artistFlag, trackFlag},
				Action: r.LedgerCheck,
			},
			{
				Name:   "add",
				Usage:  "Mark a track as posted without publishing it",
				Flags:  []cli.Flag{artistFlag, trackFlag},
				Action: r.LedgerAdd,
			},
		},
	}
}

// historyCommand shows the publish history
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent publish attempts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "artist",
				Aliases: []string{"a"},
				Usage:   "Only show attempts for this artist",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of attempts to show",
				Value:   repositories.DefaultListLimit,
			},
			&cli.DurationFlag{
				Name:  "since",
				Usage: "Only show attempts newer than this (e.g. 24h)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, csv or json",
				Value:   string(formatter.FormatText),
			},
		},
		Action: r.History,
	}
}

// setupCommand handles setup operations for config and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write the example configuration to --config",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the history database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}
