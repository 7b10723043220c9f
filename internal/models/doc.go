// Package models defines the domain types shared by the catalog, fetch, publish and sync layers.
//
// The package contains two categories of types:
//
// 1. Catalog and delivery values: immutable data passed between collaborators
//   - [Track] : a catalog entry read from the streaming service
//   - [Binding] : an artist mapped to its publishing [Destination]
//   - [Asset] : a transient local audio file plus its provenance URL
//   - [Metadata] : what the publisher attaches to a delivered asset
//
// 2. History records: rows written by the publish history repository
//   - [Attempt] : one publish attempt and its [Outcome]
package models
