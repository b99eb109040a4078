package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yexubai/BookBrain/internal/core/domain"
	"github.com/yexubai/BookBrain/internal/core/ports/driven"
	"github.com/yexubai/BookBrain/internal/core/ports/driving"
	"github.com/yexubai/BookBrain/internal/logger"
)

// Ensure Ingestor implements the interface.
var _ driving.Ingestor = (*Ingestor)(nil)

// IngestConfig carries the pipeline tuning knobs.
type IngestConfig struct {
	// LibraryDirs are the default scan directories when Run gets none.
	LibraryDirs []string

	// MaxWorkers bounds concurrent file processing.
	MaxWorkers int

	// DensityThreshold is the chars-per-page ratio below which a
	// document counts as scanned and is routed through OCR.
	DensityThreshold float64

	// MaxTextLength caps stored text per book, in bytes.
	MaxTextLength int

	// SummaryLength caps the derived summary, in bytes.
	SummaryLength int

	// EmbedTextLength caps the text fed to the embedding service.
	EmbedTextLength int

	// OCRLanguage is the Tesseract language hint.
	OCRLanguage string

	// OCRMaxPages bounds how many pages are rendered and recognised.
	OCRMaxPages int

	// OCRPageTimeout bounds each page's recognition call.
	OCRPageTimeout time.Duration

	// CoversDir receives rendered cover images. Empty disables covers.
	CoversDir string
}

// Ingestor walks library directories and runs each candidate file
// through the extract, OCR-fallback, classify, embed and persist
// pipeline. At most one job runs at a time.
type Ingestor struct {
	store      driven.BookStore
	registry   driven.ExtractorRegistry
	ocr        driven.OCRService
	classifier driven.Classifier
	embedder   driven.EmbeddingService
	index      driven.VectorIndex
	cfg        IngestConfig

	mu      sync.RWMutex
	job     domain.IngestJob
	running bool
	cancel  context.CancelFunc
}

// NewIngestor creates the ingest service. The ocr, embedder and index
// dependencies are optional; nil disables the corresponding step.
func NewIngestor(
	store driven.BookStore,
	registry driven.ExtractorRegistry,
	ocr driven.OCRService,
	classifier driven.Classifier,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	cfg IngestConfig,
) *Ingestor {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	return &Ingestor{
		store:      store,
		registry:   registry,
		ocr:        ocr,
		classifier: classifier,
		embedder:   embedder,
		index:      index,
		cfg:        cfg,
	}
}

// Run ingests the given directories, blocking until the job finishes
// or the context is cancelled. Completed writes survive cancellation.
func (s *Ingestor) Run(ctx context.Context, dirs []string, force bool) error {
	runCtx, candidates, err := s.prepare(ctx, dirs)
	if err != nil {
		return err
	}
	return s.execute(runCtx, candidates, force)
}

// Start begins a run in the background after performing the setup
// synchronously, so callers that cannot block still see directory and
// job-slot failures. Per-file outcomes are reported through Status.
func (s *Ingestor) Start(dirs []string, force bool) error {
	runCtx, candidates, err := s.prepare(context.Background(), dirs)
	if err != nil {
		return err
	}

	go func() {
		if err := s.execute(runCtx, candidates, force); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Background ingest: %v", err)
		}
	}()
	return nil
}

// prepare resolves the directory set, claims the job slot and collects
// the candidate files. The slot is released again on error.
func (s *Ingestor) prepare(ctx context.Context, dirs []string) (context.Context, []string, error) {
	if len(dirs) == 0 {
		dirs = s.cfg.LibraryDirs
	}
	if len(dirs) == 0 {
		return nil, nil, domain.ErrNoDirectories
	}

	runCtx, err := s.acquire(ctx)
	if err != nil {
		return nil, nil, err
	}

	candidates, err := s.scan(dirs)
	if err != nil {
		s.release()
		return nil, nil, err
	}

	s.mu.Lock()
	s.job.Total = len(candidates)
	s.mu.Unlock()

	logger.Info("Ingest started: %d candidates in %d directories", len(candidates), len(dirs))
	return runCtx, candidates, nil
}

// execute drains the candidate list through the worker pool and
// reconciles the store and index afterwards.
func (s *Ingestor) execute(runCtx context.Context, candidates []string, force bool) error {
	defer s.release()

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(s.cfg.MaxWorkers)

	for _, path := range candidates {
		// Cancellation is honoured between files, never mid-write.
		if err := runCtx.Err(); err != nil {
			break
		}

		s.setCurrentFile(path)
		path := path
		g.Go(func() error {
			s.processFile(gctx, path, force)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	s.pruneMissing(runCtx, candidates)

	if s.index != nil {
		if err := s.index.Save(); err != nil {
			logger.Error("Saving vector index: %v", err)
		}
	}

	s.mu.RLock()
	logger.Info("Ingest complete: %d processed, %d skipped, %d failed",
		s.job.Processed, s.job.Skipped, s.job.Failed)
	s.mu.RUnlock()

	return runCtx.Err()
}

// Status returns a snapshot of the current or most recent job.
func (s *Ingestor) Status() domain.IngestJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.job
	snapshot.Errors = append([]string(nil), s.job.Errors...)
	return snapshot
}

// Stop requests cancellation of the running job.
func (s *Ingestor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
}

// acquire claims the single job slot and resets the status snapshot.
func (s *Ingestor) acquire(ctx context.Context) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, domain.ErrJobRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.job = domain.IngestJob{
		Running:   true,
		StartedAt: time.Now().UTC(),
	}
	return runCtx, nil
}

func (s *Ingestor) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.running = false
	s.job.Running = false
	s.job.CurrentFile = ""
}

// scan walks the directories and collects files with a supported
// extension. Unreadable directories fail the run; unreadable files
// surface later as per-file failures.
func (s *Ingestor) scan(dirs []string) ([]string, error) {
	supported := make(map[string]struct{})
	for _, ext := range s.registry.SupportedExtensions() {
		supported[ext] = struct{}{}
	}

	var candidates []string
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrNoDirectories, dir)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrNoDirectories, dir)
		}

		err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				logger.Warn("Skipping %s: %v", path, err)
				return nil
			}
			if d.IsDir() {
				// Hidden directories are never part of a library.
				if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if _, ok := supported[ext]; ok {
				abs, err := filepath.Abs(path)
				if err != nil {
					abs = path
				}
				candidates = append(candidates, abs)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", dir, err)
		}
	}
	return candidates, nil
}

// processFile runs one file through the pipeline. Failures are
// recorded against the file and never abort the job.
func (s *Ingestor) processFile(ctx context.Context, path string, force bool) {
	if err := ctx.Err(); err != nil {
		return
	}

	if err := s.ingestOne(ctx, path, force); err != nil {
		if errors.Is(err, errUnchanged) {
			s.recordSkip()
			return
		}
		logger.Warn("Ingest failed for %s: %v", path, err)
		s.recordFailure(path, err)
		return
	}
	s.recordSuccess()
}

// errUnchanged signals a fingerprint match, counted as a skip.
var errUnchanged = errors.New("file unchanged")

func (s *Ingestor) ingestOne(ctx context.Context, path string, force bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	fingerprint, err := fingerprintFile(path)
	if err != nil {
		return fmt.Errorf("fingerprint: %w", err)
	}

	existing, err := s.store.GetByPath(ctx, path)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("lookup: %w", err)
	}
	// An unchanged fingerprint skips regardless of the prior status:
	// a file that failed once will fail the same way again, so retry
	// only on force or when the content changes.
	if existing != nil && !force && existing.Fingerprint == fingerprint {
		return errUnchanged
	}

	extractor, err := s.registry.ForPath(path)
	if err != nil {
		return err
	}

	extraction, err := extractor.Extract(ctx, path)
	if err != nil {
		s.persistFailure(ctx, existing, path, fingerprint, info.Size(), err)
		return err
	}

	book := s.buildBook(existing, path, fingerprint, info.Size(), extraction)

	if s.needsOCR(extraction) {
		text, ok := s.runOCR(ctx, extractor, path)
		if ok && len(text) > len(book.Text) {
			book.Text = truncate(text, s.cfg.MaxTextLength)
			book.OCRPerformed = true
		}
	}

	if book.Text == "" && book.Description == "" {
		s.persistFailure(ctx, existing, path, fingerprint, info.Size(), domain.ErrNoTextLayer)
		return domain.ErrNoTextLayer
	}

	book.Summary = s.summarise(book)
	s.classify(ctx, book)
	s.renderCover(ctx, extractor, book)

	if err := s.embed(ctx, book); err != nil {
		// The record is still useful without a vector; search just
		// won't find it until a rebuild.
		logger.Warn("Embedding failed for %s: %v", path, err)
	}

	book.Status = domain.StatusProcessed
	book.Error = ""
	if err := s.store.Upsert(ctx, book); err != nil {
		return fmt.Errorf("persist: %w", err)
	}

	logger.Debug("Ingested %s as %s / %s", filepath.Base(path), book.Category, book.Subcategory)
	return nil
}

// buildBook assembles the record, reusing the existing ID so vector
// entries and bookmarks stay stable across re-ingests.
func (s *Ingestor) buildBook(existing *domain.Book, path, fingerprint string, size int64, ex *driven.Extraction) *domain.Book {
	book := &domain.Book{
		ID:          uuid.NewString(),
		Path:        path,
		Fingerprint: fingerprint,
		Format:      formatForPath(path),
		Title:       ex.Title,
		Author:      ex.Author,
		ISBN:        ex.ISBN,
		Publisher:   ex.Publisher,
		Year:        ex.Year,
		Language:    ex.Language,
		Description: ex.Description,
		Text:        truncate(ex.Text, s.cfg.MaxTextLength),
		PageCount:   ex.PageCount,
		FileSize:    size,
	}
	if existing != nil {
		book.ID = existing.ID
		book.CreatedAt = existing.CreatedAt
	}
	if book.Title == "" {
		name := filepath.Base(path)
		book.Title = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return book
}

// needsOCR reports whether the text layer is too sparse for the page
// count, the signature of a scanned document.
func (s *Ingestor) needsOCR(ex *driven.Extraction) bool {
	if s.ocr == nil {
		return false
	}
	if ex.PageCount <= 0 {
		return ex.Text == ""
	}
	density := float64(len(ex.Text)) / float64(ex.PageCount)
	return density < s.cfg.DensityThreshold
}

// runOCR renders up to OCRMaxPages pages and recognises each under its
// own timeout. Failed pages are skipped; the document keeps whatever
// text the remaining pages produced.
func (s *Ingestor) runOCR(ctx context.Context, extractor driven.Extractor, path string) (string, bool) {
	pages, err := extractor.RenderPages(ctx, path, s.cfg.OCRMaxPages)
	if err != nil {
		if !errors.Is(err, domain.ErrOCRUnavailable) {
			logger.Warn("Rendering pages for %s: %v", path, err)
		}
		return "", false
	}

	var sb strings.Builder
	for _, page := range pages {
		pageCtx := ctx
		cancel := context.CancelFunc(func() {})
		if s.cfg.OCRPageTimeout > 0 {
			pageCtx, cancel = context.WithTimeout(ctx, s.cfg.OCRPageTimeout)
		}
		text, err := s.ocr.Recognize(pageCtx, page.Data, s.cfg.OCRLanguage)
		cancel()
		if err != nil {
			logger.Debug("OCR failed on page %d of %s: %v", page.Page+1, path, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	text := strings.TrimSpace(sb.String())
	return text, text != ""
}

// summarise derives the display summary: the publisher description
// when present, otherwise the leading extracted text.
func (s *Ingestor) summarise(book *domain.Book) string {
	source := book.Description
	if source == "" {
		source = book.Text
	}
	return truncate(strings.Join(strings.Fields(source), " "), s.cfg.SummaryLength)
}

func (s *Ingestor) classify(ctx context.Context, book *domain.Book) {
	if s.classifier == nil {
		book.Category = domain.Uncategorized
		return
	}

	result, err := s.classifier.Classify(ctx, domain.ClassifierInput{
		Title:  book.Title,
		Author: book.Author,
		Path:   book.Path,
		Text:   book.Text,
	})
	if err != nil {
		logger.Warn("Classification failed for %s: %v", book.Path, err)
		book.Category = domain.Uncategorized
		return
	}
	book.Category = result.Category
	book.Subcategory = result.Subcategory
}

// renderCover rasterises the first page as the cover image.
// Best effort: formats without a page model simply get no cover.
func (s *Ingestor) renderCover(ctx context.Context, extractor driven.Extractor, book *domain.Book) {
	if s.cfg.CoversDir == "" || book.CoverPath != "" {
		return
	}

	pages, err := extractor.RenderPages(ctx, book.Path, 1)
	if err != nil || len(pages) == 0 {
		return
	}

	coverPath := filepath.Join(s.cfg.CoversDir, book.ID+".png")
	if err := os.WriteFile(coverPath, pages[0].Data, 0o644); err != nil {
		logger.Debug("Writing cover for %s: %v", book.Path, err)
		return
	}
	book.CoverPath = coverPath
}

func (s *Ingestor) embed(ctx context.Context, book *domain.Book) error {
	if s.embedder == nil || s.index == nil || !book.HasText() {
		return nil
	}

	vector, err := s.embedder.Embed(ctx, book.RepresentativeText(s.cfg.EmbedTextLength))
	if err != nil {
		return err
	}
	return s.index.Upsert(ctx, book.ID, vector)
}

// persistFailure records a failed record so the library shows the file
// with its error instead of silently dropping it.
func (s *Ingestor) persistFailure(ctx context.Context, existing *domain.Book, path, fingerprint string, size int64, cause error) {
	book := &domain.Book{
		ID:          uuid.NewString(),
		Path:        path,
		Fingerprint: fingerprint,
		Format:      formatForPath(path),
		Title:       strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		FileSize:    size,
		Status:      domain.StatusFailed,
		Error:       cause.Error(),
	}
	if existing != nil {
		book.ID = existing.ID
		book.CreatedAt = existing.CreatedAt
	}
	if err := s.store.Upsert(ctx, book); err != nil {
		logger.Error("Recording failure for %s: %v", path, err)
	}
}

// pruneMissing removes records whose file vanished from every scanned
// directory, keeping the store and vector index consistent with disk.
func (s *Ingestor) pruneMissing(ctx context.Context, candidates []string) {
	if ctx.Err() != nil {
		return
	}

	known, err := s.store.ListAllPaths(ctx)
	if err != nil {
		logger.Warn("Listing stored paths: %v", err)
		return
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, path := range candidates {
		seen[path] = struct{}{}
	}

	for path := range known {
		if _, ok := seen[path]; ok {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			// Still on disk, just outside the scanned directories.
			continue
		}

		book, err := s.store.GetByPath(ctx, path)
		if err != nil {
			continue
		}
		if err := s.store.Delete(ctx, book.ID); err != nil {
			logger.Warn("Pruning %s: %v", path, err)
			continue
		}
		if s.index != nil {
			if err := s.index.Remove(ctx, book.ID); err != nil {
				logger.Debug("Removing vector for %s: %v", book.ID, err)
			}
		}
		logger.Info("Pruned missing file %s", path)
	}
}

func (s *Ingestor) setCurrentFile(path string) {
	s.mu.Lock()
	s.job.CurrentFile = path
	s.mu.Unlock()
}

func (s *Ingestor) recordSuccess() {
	s.mu.Lock()
	s.job.Processed++
	s.mu.Unlock()
}

func (s *Ingestor) recordSkip() {
	s.mu.Lock()
	s.job.Processed++
	s.job.Skipped++
	s.mu.Unlock()
}

func (s *Ingestor) recordFailure(path string, err error) {
	s.mu.Lock()
	s.job.Failed++
	if len(s.job.Errors) < domain.MaxJobErrors {
		s.job.Errors = append(s.job.Errors, fmt.Sprintf("%s: %v", path, err))
	}
	s.mu.Unlock()
}

// fingerprintFile hashes the file bytes with SHA-256.
func fingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func formatForPath(path string) domain.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return domain.FormatPDF
	case ".epub":
		return domain.FormatEPUB
	default:
		return domain.FormatPlain
	}
}

// truncate caps s at limit bytes, backing up so a multi-byte rune is
// never split.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
