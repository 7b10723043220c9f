// package repositories provides persistence for the publish history.
package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// DefaultListLimit caps history listings when no limit is given.
const DefaultListLimit = 50

// AttemptFilter narrows a history listing. Zero values match everything.
type AttemptFilter struct {
	Artist string
	Since  time.Time
	Limit  int
}

// where builds the WHERE clause and arguments for f.
func (f AttemptFilter) where() (string, []any) {
	clause := " WHERE 1 = 1"
	args := []any{}

	if f.Artist != "" {
		clause += " AND artist = ?"
		args = append(args, f.Artist)
	}

	if !f.Since.IsZero() {
		clause += " AND created_at >= ?"
		args = append(args, f.Since.UTC())
	}

	return clause, args
}

func (f AttemptFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// rowScanner is satisfied by [sql.Row] and [sql.Rows].
type rowScanner interface {
	Scan(dest ...any) error
}

func wrapNoRows(err error, what string) error {
	if err == sql.ErrNoRows {
		return fmt.Errorf("%s not found", what)
	}
	return fmt.Errorf("failed to scan %s: %w", what, err)
}
