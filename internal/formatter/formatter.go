// package formatter renders publish history and track listings as plain text, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/trackdrop/internal/models"
	"github.com/desertthunder/trackdrop/internal/shared"
)

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Formats lists the accepted values for [ParseFormat].
var Formats = []Format{FormatText, FormatCSV, FormatJSON}

// ParseFormat validates a user supplied format name. An empty name selects text.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatText, nil
	}
	f := Format(strings.ToLower(s))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unknown format %q (want text, csv or json)", shared.ErrInvalidArgument, s)
}

const timeLayout = "2006-01-02 15:04:05"

// attemptJSON is the stable JSON shape of a [models.Attempt].
type attemptJSON struct {
	ID         string    `json:"id"`
	Artist     string    `json:"artist"`
	Identity   string    `json:"identity"`
	TrackName  string    `json:"track_name"`
	CatalogURL string    `json:"catalog_url,omitempty"`
	SourceURL  string    `json:"source_url,omitempty"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// WriteAttempts renders attempts to w in the given format.
func WriteAttempts(w io.Writer, format Format, attempts []models.Attempt) error {
	var (
		data []byte
		err  error
	)

	switch format {
	case FormatCSV:
		data, err = AttemptsToCSV(attempts)
	case FormatJSON:
		data, err = AttemptsToJSON(attempts)
	case FormatText, "":
		data, err = AttemptsToText(attempts)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// AttemptsToCSV converts attempts to CSV with a header row.
func AttemptsToCSV(attempts []models.Attempt) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Time", "Artist", "Identity", "Track", "Outcome", "Error", "Catalog URL", "Source URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, a := range attempts {
		record := []string{
			a.ID,
			a.CreatedAt.UTC().Format(time.RFC3339),
			a.Artist,
			a.Identity,
			a.TrackName,
			a.Outcome.String(),
			a.Error,
			a.CatalogURL,
			a.SourceURL,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// AttemptsToJSON converts attempts to an indented JSON array.
func AttemptsToJSON(attempts []models.Attempt) ([]byte, error) {
	out := make([]attemptJSON, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, attemptJSON{
			ID:         a.ID,
			Artist:     a.Artist,
			Identity:   a.Identity,
			TrackName:  a.TrackName,
			CatalogURL: a.CatalogURL,
			SourceURL:  a.SourceURL,
			Outcome:    a.Outcome.String(),
			Error:      a.Error,
			CreatedAt:  a.CreatedAt.UTC(),
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// AttemptsToText converts attempts to an aligned table.
func AttemptsToText(attempts []models.Attempt) ([]byte, error) {
	var buf bytes.Buffer
	if len(attempts) == 0 {
		buf.WriteString("No publish attempts recorded.\n")
		return buf.Bytes(), nil
	}

	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tARTIST\tTRACK\tOUTCOME\tERROR")
	for _, a := range attempts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			a.CreatedAt.Local().Format(timeLayout),
			a.Artist,
			a.Identity,
			a.Outcome,
			truncate(a.Error, 60),
		)
	}
	if err := tw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to render table: %w", err)
	}

	return buf.Bytes(), nil
}

// OutcomeSummary renders per-outcome counts on one line in outcome order, omitting zeros.
func OutcomeSummary(counts map[models.Outcome]int) string {
	var parts []string
	for o := models.OutcomePublished; o <= models.OutcomeLedgerFault; o++ {
		if n := counts[o]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", o, n))
		}
	}
	if len(parts) == 0 {
		return "no attempts"
	}
	return strings.Join(parts, " ")
}

// TracksToText lists tracks with their release date and duration, one per line.
func TracksToText(tracks []models.Track) []byte {
	var buf bytes.Buffer
	for i, t := range tracks {
		album := ""
		if t.Album != "" {
			album = fmt.Sprintf(" (%s)", t.Album)
		}
		release := t.ReleaseDate
		if release == "" {
			release = "unknown"
		}
		fmt.Fprintf(&buf, "%d. %s%s [%s, %s]\n", i+1, t.Name, album, release, shared.FormatDuration(t.Duration))
	}
	return buf.Bytes()
}

// EntriesToText lists ledger entries, one per line, numbered in file order.
func EntriesToText(entries []string) []byte {
	var buf bytes.Buffer
	width := len(strconv.Itoa(len(entries)))
	for i, e := range entries {
		fmt.Fprintf(&buf, "%*d  %s\n", width, i+1, e)
	}
	return buf.Bytes()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
