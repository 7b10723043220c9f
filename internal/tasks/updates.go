package tasks

import (
	"fmt"

	"github.com/desertthunder/trackdrop/internal/models"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Artist  string // Artist whose pass emitted the update
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ReadCatalog Phase = iota
	CheckLedger
	FetchTrack
	PublishTrack
	RecordLedger
	Pace
	SkipTrack
	ArtistDone
)

func (p Phase) String() string {
	switch p {
	case ReadCatalog:
		return "read_catalog"
	case CheckLedger:
		return "check_ledger"
	case FetchTrack:
		return "fetch"
	case PublishTrack:
		return "publish"
	case RecordLedger:
		return "record_ledger"
	case Pace:
		return "pace"
	case SkipTrack:
		return "skip"
	case ArtistDone:
		return "done"
	default:
		return ""
	}
}

func readCatalogUpdate(artist string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReadCatalog,
		Artist:  artist,
		Message: fmt.Sprintf("Reading catalog for %s...", artist),
	}
}

func checkLedgerUpdate(artist string, catalog, pending int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckLedger,
		Artist:  artist,
		Step:    catalog - pending,
		Total:   catalog,
		Message: fmt.Sprintf("%s: %d of %d tracks already posted, %d new", artist, catalog-pending, catalog, pending),
	}
}

func fetchTrackUpdate(artist string, step, total int, tr models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTrack,
		Artist:  artist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching %s...", step, total, tr.Name),
		Data:    tr,
	}
}

func publishTrackUpdate(artist string, step, total int, tr models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PublishTrack,
		Artist:  artist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Publishing %s...", step, total, tr.Name),
		Data:    tr,
	}
}

func recordedUpdate(artist string, step, total int, tr models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RecordLedger,
		Artist:  artist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, tr.Name),
		Data:    tr,
	}
}

func failedUpdate(artist string, step, total int, tr models.Track, outcome models.Outcome, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SkipTrack,
		Artist:  artist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s (%s): %v", step, total, tr.Name, outcome, err),
		Data:    outcome,
	}
}

func paceUpdate(artist string, step, total int, d fmt.Stringer) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Pace,
		Artist:  artist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Waiting %s before next track...", d),
	}
}

func artistDoneUpdate(res *ArtistResult) ProgressUpdate {
	msg := fmt.Sprintf("%s: %d published, %d skipped, %d fetch failures, %d publish failures",
		res.Artist, res.Published, res.Skipped, res.FetchFailed, res.PublishFailed)
	if res.Aborted {
		msg = fmt.Sprintf("%s: aborted: %v", res.Artist, res.Err)
	}
	return ProgressUpdate{
		Phase:   ArtistDone,
		Artist:  res.Artist,
		Step:    res.Published,
		Total:   res.Pending,
		Message: msg,
		Data:    *res,
	}
}
