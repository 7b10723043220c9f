// Package tasks runs the sync pass that publishes an artist's unposted tracks.
//
// # Artist Pass
//
// [SyncEngine.SyncArtist] walks one artist through a linear sequence:
//
//  1. Read the catalog through [CatalogReader]. An empty or failed read ends the pass;
//     a rejected catalog credential ends the whole run.
//  2. Sort by release date and drop tracks whose identity is already in the [Ledger].
//  3. For each remaining track: fetch ([Fetcher]), tag ([Tagger]), publish ([Publisher]),
//     then record the identity. A fetch failure skips the track without pacing. A publish
//     failure skips the track and paces. Neither is recorded, so both are retried next run.
//  4. Pause for the configured delay between publish attempts, never after the last one.
//
// A publish credential fault or ledger I/O fault aborts the pass. [SyncEngine.Run] moves
// on to the next artist.
//
// # Progress Reporting
//
// Operations send [ProgressUpdate] values on an optional channel. Sends use select with
// default so a slow reader never blocks a pass.
//
// # History
//
// Every attempt is handed to the optional [HistoryRecorder] (repositories.PublishAttemptRepository).
// Recorder errors are logged and ignored.
package tasks
