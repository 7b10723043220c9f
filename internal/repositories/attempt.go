package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/trackdrop/internal/models"
	"github.com/desertthunder/trackdrop/internal/shared"
)

const attemptColumns = "id, artist, identity, track_name, catalog_url, source_url, outcome, error, created_at"

// PublishAttemptRepository persists [models.Attempt] rows in the publish_attempts table.
type PublishAttemptRepository struct {
	db *sql.DB
}

// NewPublishAttemptRepository creates a new PublishAttemptRepository with the given database connection
func NewPublishAttemptRepository(db *sql.DB) *PublishAttemptRepository {
	return &PublishAttemptRepository{db: db}
}

// Create inserts attempt with a generated ID. CreatedAt defaults to now.
func (r *PublishAttemptRepository) Create(attempt *models.Attempt) error {
	if err := attempt.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	attempt.ID = shared.GenerateID()
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	attempt.CreatedAt = attempt.CreatedAt.UTC()

	query := `
		INSERT INTO publish_attempts (` + attemptColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		attempt.ID,
		attempt.Artist,
		attempt.Identity,
		attempt.TrackName,
		attempt.CatalogURL,
		attempt.SourceURL,
		attempt.Outcome.String(),
		attempt.Error,
		attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert publish attempt: %w", err)
	}

	return nil
}

// Get retrieves an attempt by ID
func (r *PublishAttemptRepository) Get(id string) (*models.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM publish_attempts WHERE id = ?`
	return r.scan(r.db.QueryRow(query, id))
}

// List returns attempts matching filter, newest first.
func (r *PublishAttemptRepository) List(filter AttemptFilter) ([]models.Attempt, error) {
	where, args := filter.where()
	query := `SELECT ` + attemptColumns + ` FROM publish_attempts` + where +
		` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, filter.limit())

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query publish attempts: %w", err)
	}
	defer rows.Close()

	attempts := []models.Attempt{}
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return attempts, nil
}

// CountByOutcome tallies attempts matching filter per outcome. The filter's limit is ignored.
func (r *PublishAttemptRepository) CountByOutcome(filter AttemptFilter) (map[models.Outcome]int, error) {
	where, args := filter.where()
	query := `SELECT outcome, COUNT(*) FROM publish_attempts` + where + ` GROUP BY outcome`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count publish attempts: %w", err)
	}
	defer rows.Close()

	counts := map[models.Outcome]int{}
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		outcome, err := models.ParseOutcome(name)
		if err != nil {
			return nil, err
		}
		counts[outcome] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return counts, nil
}

// scan reads one row into a [models.Attempt]
func (r *PublishAttemptRepository) scan(row rowScanner) (*models.Attempt, error) {
	var (
		a       models.Attempt
		outcome string
	)

	err := row.Scan(&a.ID, &a.Artist, &a.Identity, &a.TrackName, &a.CatalogURL, &a.SourceURL, &outcome, &a.Error, &a.CreatedAt)
	if err != nil {
		return nil, wrapNoRows(err, "publish attempt")
	}

	a.Outcome, err = models.ParseOutcome(outcome)
	if err != nil {
		return nil, err
	}

	return &a, nil
}
