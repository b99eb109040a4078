// Package services contains the core application services wiring the
// driven ports together: the ingest pipeline, semantic search and
// library management. Services depend only on port interfaces, never
// on concrete adapters.
package services
