// Package ui implements an interactive progress view for a sync run using bubbletea's Elm architecture.
//
// The (view) [Model] starts the run in the background and renders, while it is running:
//   - a spinner with the artist being processed and how many artists are done
//   - a progress bar through the artist's pending tracks
//   - the most recent published, skipped and failed tracks
//
// When the run ends the view switches to a summary with one list entry per artist.
// Progress updates flow through the same non-blocking channel the CLI uses, wrapped in the Msg union type.
//
// Pressing q while the run is in progress cancels its context and waits for the engine to return.
package ui
