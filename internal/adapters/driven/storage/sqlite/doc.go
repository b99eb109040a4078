// Package sqlite provides the SQLite-backed book store. The schema is
// managed by embedded migrations applied at open time; the database
// runs in WAL mode so the HTTP API can read while an ingest writes.
package sqlite
