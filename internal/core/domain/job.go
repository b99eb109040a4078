package domain

import "time"

// MaxJobErrors bounds the error list carried by an ingest job so a
// pathological directory cannot grow the snapshot without limit.
const MaxJobErrors = 100

// IngestJob is a snapshot of the state of an ingest run. At most one
// job runs at a time; the snapshot of the last run remains queryable
// until the next run starts.
type IngestJob struct {
	// Running reports whether the job is still processing candidates.
	Running bool

	// Total is the candidate count, recorded before processing begins.
	Total int

	// Processed counts files that completed the pipeline or were
	// skipped via fingerprint match. Monotonic within a run.
	Processed int

	// Skipped counts the subset of Processed that skipped the pipeline
	// because their fingerprint was unchanged.
	Skipped int

	// Failed counts files whose pipeline raised an error. Monotonic
	// within a run. Processed+Failed never exceeds Total.
	Failed int

	// CurrentFile is the path most recently dispatched to a worker.
	CurrentFile string

	// Errors holds ordered "path: reason" messages, capped at
	// MaxJobErrors entries.
	Errors []string

	// StartedAt is when the run began.
	StartedAt time.Time
}
