// Package store implements persistence for zones, sensors and alert records.
//
// SQLiteStore keeps everything in a single SQLite database and exposes the
// Store interface the monitor depends on. Mutations produced during one
// monitor tick are committed as a single Batch transaction.
package store
