package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/trackdrop/internal/formatter"
	"github.com/desertthunder/trackdrop/internal/services"
	"github.com/desertthunder/trackdrop/internal/shared"
	"github.com/urfave/cli/v3"
)

// Channels lists the channels a bot token has seen so their ids can be copied into the config.
func (r *Runner) Channels(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if format == formatter.FormatCSV {
		return fmt.Errorf("%w: channels support text or json output", shared.ErrInvalidArgument)
	}

	lister := r.channels
	if lister == nil {
		config, err := r.loadConfig(cmd, false)
		if err != nil {
			return err
		}
		lister = services.NewTelegramService(services.TelegramOptions{
			APIURL:     config.Telegram.APIURL,
			HTTPClient: r.httpClient,
			Logger:     r.logger,
		})
	}

	channels, err := lister.Channels(ctx, cmd.String("token"))
	if err != nil {
		return err
	}

	if format == formatter.FormatJSON {
		if channels == nil {
			channels = []services.Channel{}
		}
		return r.writeJSON(channels, true)
	}

	if len(channels) == 0 {
		r.writePlain("No channels found.\n")
		r.writePlain("Add the bot to the channel as an admin, post a message there, then run this again.\n")
		return nil
	}

	r.writePlainHeader("Channels")
	for _, c := range channels {
		if c.Username != "" {
			r.writePlain("%d  %s (@%s)\n", c.ID, c.Title, c.Username)
		} else {
			r.writePlain("%d  %s\n", c.ID, c.Title)
		}
	}
	return nil
}
