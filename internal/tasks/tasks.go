package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackdrop/internal/ledger"
	"github.com/desertthunder/trackdrop/internal/models"
	"github.com/desertthunder/trackdrop/internal/shared"
)

// DefaultDelay is the pause between publish attempts.
const DefaultDelay = 5 * time.Second

// CatalogReader returns an artist's tracks in ascending release order.
// An unknown artist yields an empty slice.
type CatalogReader interface {
	ListTracks(ctx context.Context, artist string) ([]models.Track, error)
}

// Fetcher resolves a track to a local audio file. The caller releases the asset.
type Fetcher interface {
	Fetch(ctx context.Context, track models.Track) (*models.Asset, error)
}

// Publisher delivers an audio file with metadata to a destination channel.
type Publisher interface {
	Publish(ctx context.Context, dest models.Destination, asset *models.Asset, meta models.Metadata) error
}

// Ledger is the per-artist record of published track identities.
type Ledger interface {
	Contains(artist, identity string) (bool, error)
	Record(artist, identity string) error
}

// Tagger writes metadata into the fetched audio before it is published.
type Tagger interface {
	Tag(path string, meta models.Metadata) error
}

// Artwork provides local thumbnails for artwork URLs for the duration of one artist pass.
type Artwork interface {
	Fetch(ctx context.Context, url string) (string, error)
	Purge() error
}

// HistoryRecorder persists publish attempts. Errors are logged and otherwise ignored.
type HistoryRecorder interface {
	Create(attempt *models.Attempt) error
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ArtistResult summarizes one artist pass.
type ArtistResult struct {
	Artist        string
	Catalog       int            // Tracks returned by the catalog
	Pending       int            // Tracks missing from the ledger
	Skipped       int            // Already posted, duplicate or unnamed
	Published     int            // Published and recorded
	FetchFailed   int            // Could not be fetched; retried next run
	PublishFailed int            // Could not be published; retried next run
	Candidates    []models.Track // Tracks that would be published; filled on dry runs
	Aborted       bool           // Pass stopped early on a credential or ledger fault
	Err           error          // Abort reason, or the catalog error that ended the pass
	Elapsed       time.Duration
}

// RunResult summarizes a sync run across artists.
type RunResult struct {
	Artists []ArtistResult
	Elapsed time.Duration
}

// Published returns the number of tracks published across all artists.
func (r *RunResult) Published() int {
	n := 0
	for _, a := range r.Artists {
		n += a.Published
	}
	return n
}

// Aborted reports whether any artist pass stopped early.
func (r *RunResult) Aborted() bool {
	for _, a := range r.Artists {
		if a.Aborted {
			return true
		}
	}
	return false
}

// Options holds optional collaborators and settings for [SyncEngine].
type Options struct {
	Delay   time.Duration
	Tagger  Tagger
	Artwork Artwork
	History HistoryRecorder
	Logger  *log.Logger
	Sleep   SleepFunc
	DryRun  bool // Read catalogs and diff ledgers without fetching or publishing
}

// SyncEngine publishes each artist's unposted tracks in release order.
//
// Artists are processed sequentially and tracks one at a time.
type SyncEngine struct {
	catalog   CatalogReader
	fetcher   Fetcher
	publisher Publisher
	ledger    Ledger

	tagger  Tagger
	artwork Artwork
	history HistoryRecorder
	logger  *log.Logger
	delay   time.Duration
	sleep   SleepFunc
	dryRun  bool
}

// NewSyncEngine creates a SyncEngine with the required collaborators.
func NewSyncEngine(catalog CatalogReader, fetcher Fetcher, publisher Publisher, ledger Ledger, opts Options) *SyncEngine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}

	return &SyncEngine{
		catalog:   catalog,
		fetcher:   fetcher,
		publisher: publisher,
		ledger:    ledger,
		tagger:    opts.Tagger,
		artwork:   opts.Artwork,
		history:   opts.History,
		logger:    opts.Logger,
		delay:     opts.Delay,
		sleep:     opts.Sleep,
		dryRun:    opts.DryRun,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *SyncEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func (e *SyncEngine) validate() error {
	switch {
	case e.catalog == nil:
		return fmt.Errorf("%w: catalog reader not initialized", shared.ErrServiceUnavailable)
	case e.ledger == nil:
		return fmt.Errorf("%w: ledger not initialized", shared.ErrServiceUnavailable)
	case !e.dryRun && e.fetcher == nil:
		return fmt.Errorf("%w: fetcher not initialized", shared.ErrServiceUnavailable)
	case !e.dryRun && e.publisher == nil:
		return fmt.Errorf("%w: publisher not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

// Run performs one pass per binding, in order.
//
// A failed or aborted artist pass does not stop the run. A catalog authentication failure
// or cancellation does, and is returned along with the results gathered so far.
func (e *SyncEngine) Run(ctx context.Context, bindings []models.Binding, progress chan<- ProgressUpdate) (*RunResult, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &RunResult{}
	defer func() { result.Elapsed = time.Since(start) }()

	for _, b := range bindings {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		ar, err := e.SyncArtist(ctx, b, progress)
		if ar != nil {
			result.Artists = append(result.Artists, *ar)
		}

		switch {
		case err == nil:
		case errors.Is(err, shared.ErrCatalogAuth):
			return result, err
		case ctx.Err() != nil:
			return result, ctx.Err()
		}
	}

	return result, nil
}

// SyncArtist runs a single artist pass: read the catalog, diff it against the ledger, then
// fetch, publish and record each missing track with a pause between publish attempts.
//
// The returned error is non-nil only when the pass was aborted (credential or ledger fault),
// the catalog rejected our credentials, or ctx was canceled.
func (e *SyncEngine) SyncArtist(ctx context.Context, b models.Binding, progress chan<- ProgressUpdate) (*ArtistResult, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	res := &ArtistResult{Artist: b.Artist}
	logger := shared.WithLogger(e.logger, "artist", b.Artist)
	defer func() {
		res.Elapsed = time.Since(start)
		e.sendProgress(progress, artistDoneUpdate(res))
	}()

	e.sendProgress(progress, readCatalogUpdate(b.Artist))
	tracks, err := e.catalog.ListTracks(ctx, b.Artist)
	if err != nil {
		res.Err = err
		if errors.Is(err, shared.ErrCatalogAuth) || ctx.Err() != nil {
			return res, err
		}
		logger.Warn("catalog read failed, skipping artist", "kind", "catalog_lookup", "error", err)
		return res, nil
	}
	res.Catalog = len(tracks)
	if len(tracks) == 0 {
		logger.Info("no tracks in catalog")
		return res, nil
	}

	if e.artwork != nil && !e.dryRun {
		defer func() {
			if err := e.artwork.Purge(); err != nil {
				logger.Warn("failed to purge artwork cache", "error", err)
			}
		}()
	}

	models.SortByRelease(tracks)

	pending, err := e.diff(b.Artist, tracks, res, logger)
	if err != nil {
		res.Aborted = true
		res.Err = err
		logger.Error("ledger unavailable, aborting artist", "kind", "ledger_io", "error", err)
		return res, err
	}
	res.Pending = len(pending)
	e.sendProgress(progress, checkLedgerUpdate(b.Artist, len(tracks), len(pending)))

	if e.dryRun {
		for _, p := range pending {
			res.Candidates = append(res.Candidates, p.track)
		}
		return res, nil
	}

	total := len(pending)
	for i, p := range pending {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res, err
		}

		step := i + 1
		tlog := shared.WithLogger(logger, "track", p.track.Name)

		outcome, err := e.deliver(ctx, b, p, tlog, func(phase Phase) {
			switch phase {
			case FetchTrack:
				e.sendProgress(progress, fetchTrackUpdate(b.Artist, step, total, p.track))
			case PublishTrack:
				e.sendProgress(progress, publishTrackUpdate(b.Artist, step, total, p.track))
			}
		})

		switch outcome {
		case models.OutcomePublished:
			res.Published++
			e.sendProgress(progress, recordedUpdate(b.Artist, step, total, p.track))
		case models.OutcomeFetchFailed:
			res.FetchFailed++
		case models.OutcomePublishFailed:
			res.PublishFailed++
		case models.OutcomeCredentialFault, models.OutcomeLedgerFault:
			// A ledger fault happens after the channel accepted the track.
			if outcome == models.OutcomeLedgerFault {
				res.Published++
			} else {
				res.PublishFailed++
			}
			res.Aborted = true
			res.Err = err
			e.sendProgress(progress, failedUpdate(b.Artist, step, total, p.track, outcome, err))
			tlog.Error("aborting artist pass", "kind", outcome, "error", err)
			return res, err
		}
		if err != nil {
			e.sendProgress(progress, failedUpdate(b.Artist, step, total, p.track, outcome, err))
		}

		if ctx.Err() != nil {
			res.Err = ctx.Err()
			return res, ctx.Err()
		}

		if outcome == models.OutcomeFetchFailed || step == total || e.delay == 0 {
			continue
		}
		e.sendProgress(progress, paceUpdate(b.Artist, step, total, e.delay))
		if err := e.sleep(ctx, e.delay); err != nil {
			res.Err = err
			return res, err
		}
	}

	logger.Info("artist pass complete", "published", res.Published, "fetch_failed", res.FetchFailed, "publish_failed", res.PublishFailed, "skipped", res.Skipped)
	return res, nil
}

type candidate struct {
	track    models.Track
	identity string
}

// diff returns the tracks whose identity is not yet in the ledger, keeping catalog order.
// Tracks sharing an identity within the pass are kept once.
func (e *SyncEngine) diff(artist string, tracks []models.Track, res *ArtistResult, logger *log.Logger) ([]candidate, error) {
	seen := make(map[string]struct{}, len(tracks))
	var pending []candidate

	for _, t := range tracks {
		id := ledger.Identity(t.Name)
		if id == "" {
			res.Skipped++
			logger.Warn("track name normalizes to nothing, skipping", "track", t.Name)
			continue
		}
		if _, dup := seen[id]; dup {
			res.Skipped++
			continue
		}
		seen[id] = struct{}{}

		posted, err := e.ledger.Contains(artist, id)
		if err != nil {
			return nil, wrapLedger(err)
		}
		if posted {
			res.Skipped++
			logger.Debug("already posted", "track", t.Name)
			continue
		}
		pending = append(pending, candidate{track: t, identity: id})
	}

	return pending, nil
}

// deliver fetches, tags, publishes and records one track. The returned error is the
// failure behind any outcome other than [models.OutcomePublished].
func (e *SyncEngine) deliver(ctx context.Context, b models.Binding, c candidate, logger *log.Logger, notify func(Phase)) (models.Outcome, error) {
	attempt := &models.Attempt{
		Artist:     b.Artist,
		Identity:   c.identity,
		TrackName:  c.track.Name,
		CatalogURL: c.track.URL,
	}

	notify(FetchTrack)
	asset, err := e.fetcher.Fetch(ctx, c.track)
	if err != nil {
		logger.Warn("fetch failed, will retry next run", "kind", "fetch", "error", err)
		e.recordAttempt(attempt, models.OutcomeFetchFailed, err, logger)
		return models.OutcomeFetchFailed, err
	}
	defer func() {
		if err := asset.Release(); err != nil {
			logger.Warn("failed to remove audio file", "path", asset.Path, "error", err)
		}
	}()
	attempt.SourceURL = asset.SourceURL

	meta := models.Metadata{
		Performer:  b.Artist,
		Title:      c.identity,
		Album:      c.track.Album,
		Duration:   c.track.Duration,
		CatalogURL: c.track.URL,
		SourceURL:  asset.SourceURL,
	}

	if e.artwork != nil && c.track.ArtworkURL != "" {
		if path, err := e.artwork.Fetch(ctx, c.track.ArtworkURL); err != nil {
			logger.Warn("artwork unavailable, publishing without thumbnail", "error", err)
		} else {
			meta.ArtworkPath = path
		}
	}

	if e.tagger != nil {
		if err := e.tagger.Tag(asset.Path, meta); err != nil {
			logger.Warn("failed to tag audio", "error", err)
		}
	}

	notify(PublishTrack)
	if err := e.publisher.Publish(ctx, b.Destination, asset, meta); err != nil {
		if errors.Is(err, shared.ErrPublishAuth) {
			e.recordAttempt(attempt, models.OutcomeCredentialFault, err, logger)
			return models.OutcomeCredentialFault, err
		}
		logger.Warn("publish failed, will retry next run", "kind", "publish", "error", err)
		e.recordAttempt(attempt, models.OutcomePublishFailed, err, logger)
		return models.OutcomePublishFailed, err
	}

	if err := e.ledger.Record(b.Artist, c.identity); err != nil {
		err = wrapLedger(err)
		e.recordAttempt(attempt, models.OutcomeLedgerFault, err, logger)
		return models.OutcomeLedgerFault, err
	}

	logger.Info("published")
	e.recordAttempt(attempt, models.OutcomePublished, nil, logger)
	return models.OutcomePublished, nil
}

func (e *SyncEngine) recordAttempt(a *models.Attempt, outcome models.Outcome, cause error, logger *log.Logger) {
	if e.history == nil {
		return
	}
	a.Outcome = outcome
	a.Error = ""
	if cause != nil {
		a.Error = cause.Error()
	}
	if err := e.history.Create(a); err != nil {
		logger.Warn("failed to record publish history", "error", err)
	}
}

func wrapLedger(err error) error {
	if errors.Is(err, shared.ErrLedgerIO) {
		return err
	}
	return fmt.Errorf("%w: %v", shared.ErrLedgerIO, err)
}

// sleepContext blocks for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
