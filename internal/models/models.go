// package models defines the data model for the catalog sync service
package models

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"
)

// Track represents a catalog entry read from the streaming service.
//
// Tracks are immutable once returned by a catalog reader.
type Track struct {
	ID          string // Catalog ID
	Name        string // Display name as listed in the catalog
	Artist      string // Artist name the catalog was queried for
	Album       string
	ReleaseDate string // YYYY, YYYY-MM or YYYY-MM-DD; only used for ordering
	Duration    int    // Duration in seconds
	ArtworkURL  string
	URL         string // Canonical catalog URL
}

// SortByRelease orders tracks by ascending release date, preserving catalog order for ties.
func SortByRelease(tracks []Track) {
	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].ReleaseDate < tracks[j].ReleaseDate
	})
}

// Destination identifies a publishing target: a bot token and the channel it posts to.
type Destination struct {
	Token     string
	ChannelID string
}

// Binding maps an artist to its publishing destination.
//
// The artist name also selects the artist's ledger partition.
type Binding struct {
	Artist      string
	Destination Destination
}

// Asset is a transient local audio file obtained for one publish attempt.
type Asset struct {
	Path      string // Local audio file
	SourceURL string // Provenance URL of the media the file was fetched from
}

// Release removes the local audio file. Calling it on a missing file is not an error.
func (a *Asset) Release() error {
	if a == nil || a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove asset %s: %w", a.Path, err)
	}
	return nil
}

// Metadata is attached to an [Asset] when it is published.
type Metadata struct {
	Performer   string
	Title       string // Identity-normalized track name
	Album       string
	Duration    int
	CatalogURL  string
	SourceURL   string
	ArtworkPath string // Optional thumbnail on local disk
}

// Outcome enumerates what happened to a track during a sync pass.
type Outcome int

const (
	OutcomePublished Outcome = iota
	OutcomeSkipped
	OutcomeFetchFailed
	OutcomePublishFailed
	OutcomeCredentialFault
	OutcomeLedgerFault
)

func (o Outcome) String() string {
	switch o {
	case OutcomePublished:
		return "published"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFetchFailed:
		return "fetch_failed"
	case OutcomePublishFailed:
		return "publish_failed"
	case OutcomeCredentialFault:
		return "credential_fault"
	case OutcomeLedgerFault:
		return "ledger_fault"
	default:
		return "unknown"
	}
}

// ParseOutcome is the inverse of [Outcome.String].
func ParseOutcome(s string) (Outcome, error) {
	for o := OutcomePublished; o <= OutcomeLedgerFault; o++ {
		if o.String() == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}

// Attempt records one publish attempt in the history log.
type Attempt struct {
	ID         string
	Artist     string
	Identity   string
	TrackName  string
	CatalogURL string
	SourceURL  string
	Outcome    Outcome
	Error      string
	CreatedAt  time.Time
}

// Validate checks the fields required to persist an attempt.
func (a *Attempt) Validate() error {
	if a.Artist == "" {
		return fmt.Errorf("attempt artist is required")
	}
	if a.Identity == "" {
		return fmt.Errorf("attempt identity is required")
	}
	return nil
}
