package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/trackdrop/internal/formatter"
	"github.com/desertthunder/trackdrop/internal/ledger"
	"github.com/desertthunder/trackdrop/internal/shared"
	"github.com/urfave/cli/v3"
)

// openLedger returns the ledger under the configured directory. Artists missing from the
// config are allowed so that ledgers can be seeded before the first sync.
func (r *Runner) openLedger(cmd *cli.Command) (*ledger.FileLedger, error) {
	config, err := r.loadConfig(cmd, false)
	if err != nil {
		return nil, err
	}

	if artist := cmd.String("artist"); artist != "" {
		if _, ok := config.Artist(artist); !ok {
			r.logger.Warn("artist is not configured", "artist", artist)
		}
	}
	return ledger.NewFileLedger(config.Sync.LedgerDir), nil
}

// LedgerList prints an artist's posted identities in file order.
func (r *Runner) LedgerList(ctx context.Context, cmd *cli.Command) error {
	l, err := r.openLedger(cmd)
	if err != nil {
		return err
	}

	artist := cmd.String("artist")
	entries, err := l.Entries(artist)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		r.writePlain("No tracks posted for %s yet (%s)\n", artist, l.Path(artist))
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("%s: %d posted", artist, len(entries)))
	_, err = r.output.Write(formatter.EntriesToText(entries))
	return err
}

// LedgerCheck reports whether a track's identity is in the artist's ledger.
func (r *Runner) LedgerCheck(ctx context.Context, cmd *cli.Command) error {
	l, err := r.openLedger(cmd)
	if err != nil {
		return err
	}

	artist, identity := cmd.String("artist"), ledger.Identity(cmd.String("track"))
	posted, err := l.Contains(artist, identity)
	if err != nil {
		return err
	}

	if posted {
		r.writePlain("%q is posted for %s\n", identity, artist)
	} else {
		r.writePlain("%q is not posted for %s\n", identity, artist)
	}
	return nil
}

// LedgerAdd records a track as posted without publishing it.
func (r *Runner) LedgerAdd(ctx context.Context, cmd *cli.Command) error {
	l, err := r.openLedger(cmd)
	if err != nil {
		return err
	}

	artist, identity := cmd.String("artist"), ledger.Identity(cmd.String("track"))
	if identity == "" {
		return fmt.Errorf("%w: track name %q normalizes to nothing", shared.ErrInvalidArgument, cmd.String("track"))
	}

	posted, err := l.Contains(artist, identity)
	if err != nil {
		return err
	}
	if posted {
		r.writePlain("%q is already posted for %s\n", identity, artist)
		return nil
	}

	if err := l.Record(artist, identity); err != nil {
		return err
	}

	r.logger.Info("ledger entry added", "artist", artist, "track", identity)
	r.writePlain("✓ Recorded %q for %s\n", identity, artist)
	return nil
}
