// Package queue persists acquisition requests, organize items, and torrent
// preferences in SQLite and exposes helpers for driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, guarded status transitions, and stuck-item recovery. Acquisition
// requests capture the search/retry bookkeeping the orchestrator needs;
// organize items capture the manual-resolution state machine for downloads
// that could not be matched automatically.
//
// Treat this package as the single source of truth for queue semantics; when
// you add new statuses or fields, update schema.sql and bump schemaVersion.
package queue
