package repositories

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/trackdrop/internal/models"
	"github.com/desertthunder/trackdrop/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.OpenHistoryDatabase(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func newAttempt(artist, identity string, outcome models.Outcome, at time.Time) *models.Attempt {
	return &models.Attempt{
		Artist:     artist,
		Identity:   identity,
		TrackName:  identity + "!",
		CatalogURL: "https://open.spotify.com/track/" + identity,
		Outcome:    outcome,
		CreatedAt:  at,
	}
}

func TestPublishAttemptRepository(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Create", func(t *testing.T) {
		repo := NewPublishAttemptRepository(setupTestDB(t))
		attempt := &models.Attempt{
			Artist:    "Test Artist",
			Identity:  "Song One",
			TrackName: "Song One!",
			SourceURL: "https://www.youtube.com/watch?v=abc",
			Outcome:   models.OutcomePublished,
		}

		if err := repo.Create(attempt); err != nil {
			t.Fatalf("failed to create attempt: %v", err)
		}

		if attempt.ID == "" {
			t.Error("attempt ID should be set after creation")
		}
		if attempt.CreatedAt.IsZero() {
			t.Error("attempt CreatedAt should default to now")
		}
	})

	t.Run("Create Validates", func(t *testing.T) {
		repo := NewPublishAttemptRepository(setupTestDB(t))
		if err := repo.Create(&models.Attempt{Identity: "x"}); err == nil {
			t.Error("expected validation error for missing artist")
		}
		if err := repo.Create(&models.Attempt{Artist: "x"}); err == nil {
			t.Error("expected validation error for missing identity")
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewPublishAttemptRepository(setupTestDB(t))
		attempt := newAttempt("Test Artist", "Song Two", models.OutcomeFetchFailed, base)
		attempt.Error = "fetch failed: no result"

		if err := repo.Create(attempt); err != nil {
			t.Fatal(err)
		}

		got, err := repo.Get(attempt.ID)
		if err != nil {
			t.Fatalf("failed to get attempt: %v", err)
		}

		if got.Outcome != models.OutcomeFetchFailed {
			t.Errorf("expected outcome %s, got %s", models.OutcomeFetchFailed, got.Outcome)
		}
		if got.Error != attempt.Error || got.TrackName != "Song Two!" {
			t.Errorf("unexpected attempt %+v", got)
		}
		if !got.CreatedAt.Equal(base) {
			t.Errorf("expected created_at %s, got %s", base, got.CreatedAt)
		}
	})

	t.Run("Get Not Found", func(t *testing.T) {
		repo := NewPublishAttemptRepository(setupTestDB(t))
		_, err := repo.Get("missing")
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := NewPublishAttemptRepository(setupTestDB(t))
		seed := []*models.Attempt{
			newAttempt("A", "One", models.OutcomePublished, base),
			newAttempt("A", "Two", models.OutcomePublishFailed, base.Add(time.Minute)),
			newAttempt("B", "Three", models.OutcomePublished, base.Add(2*time.Minute)),
			newAttempt("A", "Four", models.OutcomePublished, base.Add(3*time.Minute)),
		}
		for _, a := range seed {
			if err := repo.Create(a); err != nil {
				t.Fatal(err)
			}
		}

		tc := []struct {
			name   string
			filter AttemptFilter
			want   []string
		}{
			{name: "all newest first", filter: AttemptFilter{}, want: []string{"Four", "Three", "Two", "One"}},
			{name: "by artist", filter: AttemptFilter{Artist: "A"}, want: []string{"Four", "Two", "One"}},
			{name: "limit", filter: AttemptFilter{Limit: 2}, want: []string{"Four", "Three"}},
			{name: "since", filter: AttemptFilter{Since: base.Add(90 * time.Second)}, want: []string{"Four", "Three"}},
			{name: "unknown artist", filter: AttemptFilter{Artist: "Nobody"}, want: []string{}},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.List(tt.filter)
				if err != nil {
					t.Fatalf("List() error = %v", err)
				}
				ids := make([]string, 0, len(got))
				for _, a := range got {
					ids = append(ids, a.Identity)
				}
				if strings.Join(ids, ",") != strings.Join(tt.want, ",") {
					t.Errorf("List() = %v, want %v", ids, tt.want)
				}
			})
		}
	})

	t.Run("CountByOutcome", func(t *testing.T) {
		repo := NewPublishAttemptRepository(setupTestDB(t))
		for i, o := range []models.Outcome{models.OutcomePublished, models.OutcomePublished, models.OutcomeCredentialFault} {
			if err := repo.Create(newAttempt("A", "T", o, base.Add(time.Duration(i)*time.Second))); err != nil {
				t.Fatal(err)
			}
		}
		if err := repo.Create(newAttempt("B", "T", models.OutcomeLedgerFault, base)); err != nil {
			t.Fatal(err)
		}

		counts, err := repo.CountByOutcome(AttemptFilter{Artist: "A"})
		if err != nil {
			t.Fatal(err)
		}
		if counts[models.OutcomePublished] != 2 || counts[models.OutcomeCredentialFault] != 1 || counts[models.OutcomeLedgerFault] != 0 {
			t.Errorf("unexpected counts %v", counts)
		}
	})

	t.Run("Closed Database", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewPublishAttemptRepository(db)
		db.Close()

		if err := repo.Create(newAttempt("A", "T", models.OutcomePublished, base)); err == nil {
			t.Error("expected error on closed database")
		}
		if _, err := repo.List(AttemptFilter{}); err == nil {
			t.Error("expected error on closed database")
		}
	})
}
