package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/trackdrop/internal/formatter"
	"github.com/desertthunder/trackdrop/internal/repositories"
	"github.com/desertthunder/trackdrop/internal/shared"
	"github.com/urfave/cli/v3"
)

// History prints recent publish attempts, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	config, err := r.loadConfig(cmd, false)
	if err != nil {
		return err
	}

	db, err := shared.OpenHistoryDatabase(config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	filter := repositories.AttemptFilter{
		Artist: cmd.String("artist"),
		Limit:  int(cmd.Int("limit")),
	}
	if since := cmd.Duration("since"); since > 0 {
		filter.Since = time.Now().Add(-since)
	}

	repo := repositories.NewPublishAttemptRepository(db)
	attempts, err := repo.List(filter)
	if err != nil {
		return fmt.Errorf("failed to list attempts: %w", err)
	}

	if err := formatter.WriteAttempts(r.output, format, attempts); err != nil {
		return err
	}

	if format == formatter.FormatText && len(attempts) > 0 {
		counts, err := repo.CountByOutcome(repositories.AttemptFilter{Artist: filter.Artist, Since: filter.Since})
		if err != nil {
			return fmt.Errorf("failed to count attempts: %w", err)
		}
		r.writePlainln("%s", formatter.OutcomeSummary(counts))
	}
	return nil
}
