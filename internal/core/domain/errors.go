package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrJobRunning indicates an ingest job is already in progress.
	// Only one job may run at a time.
	ErrJobRunning = errors.New("ingest job already running")

	// ErrNoDirectories indicates no valid library directories were
	// given or configured, so an ingest run cannot start.
	ErrNoDirectories = errors.New("no library directories configured")

	// ErrUnsupportedFormat indicates no extractor handles the file's
	// extension.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrNoTextLayer indicates extraction produced no text and the OCR
	// fallback recovered nothing either.
	ErrNoTextLayer = errors.New("no text could be extracted")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Semantic indexing and search are disabled without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrOCRUnavailable indicates the OCR service is not configured or
	// is disabled.
	ErrOCRUnavailable = errors.New("OCR service unavailable")

	// ErrIndexModelMismatch indicates a persisted vector index was
	// produced by a different embedding model or dimensionality than
	// the active configuration. The index must be rebuilt.
	ErrIndexModelMismatch = errors.New("vector index embedding model mismatch")

	// ErrDimensionMismatch indicates a vector's length does not match
	// the index dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIndexClosed indicates an operation on a closed vector index.
	ErrIndexClosed = errors.New("vector index closed")
)
