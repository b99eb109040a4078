package driving

import (
	"context"

	"github.com/yexubai/BookBrain/internal/core/domain"
)

// Ingestor drives document ingestion.
type Ingestor interface {
	// Run ingests the given directories, or the configured defaults
	// when dirs is empty. Returns domain.ErrJobRunning immediately if
	// a job is already in progress, and domain.ErrNoDirectories when
	// no valid directory can be resolved. When force is true,
	// unchanged files are re-processed instead of skipped.
	Run(ctx context.Context, dirs []string, force bool) error

	// Start begins a run in the background. Setup failures
	// (domain.ErrJobRunning, domain.ErrNoDirectories) are returned
	// synchronously; per-file outcomes are reported through Status.
	Start(dirs []string, force bool) error

	// Status returns a point-in-time snapshot of the current or most
	// recent job. Safe to poll from concurrent readers while a job runs.
	Status() domain.IngestJob

	// Stop requests cancellation of the running job. The signal is
	// checked between files; completed writes are never rolled back.
	Stop()
}
