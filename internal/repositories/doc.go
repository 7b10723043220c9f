// Package repositories implements SQLite persistence for the publish history.
//
// [PublishAttemptRepository] stores one row per publish attempt made by a sync run, with the
// track identity, provenance URLs and the [models.Outcome] of the attempt. It satisfies
// tasks.HistoryRecorder and backs the history command.
//
// Rows are keyed by UUID and never updated. Listings are newest first.
package repositories
