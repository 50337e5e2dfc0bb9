// Package patternstore persists learned problem→solution resolution
// patterns for the diagnostic engine.
//
// Patterns are anonymized before anything touches disk, solution payloads
// are encrypted at rest, and confidence scores evolve from recorded
// outcomes and feedback. The store provides ranked retrieval, token-set
// similarity lookup, corpus statistics, common-issue aggregation, and
// age-based pruning over a SQLite database.
//
// The store persists and ranks; deciding which stored pattern is relevant
// to a live diagnosis is the calling matcher's job.
package patternstore
