package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/yexubai/BookBrain/internal/core/domain"
	"github.com/yexubai/BookBrain/internal/core/ports/driving"
	"github.com/yexubai/BookBrain/internal/logger"
)

// defaultPageSize applies when page_size is absent.
const defaultPageSize = 20

// maxPageSize caps a single listing page.
const maxPageSize = 200

// handler carries the driving ports for all routes.
type handler struct {
	library  driving.Library
	search   driving.SearchService
	ingestor driving.Ingestor
}

// listBooks handles GET /api/books.
func (h *handler) listBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := queryInt(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(q.Get("page_size"), defaultPageSize)
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	opts := domain.ListOptions{
		Offset:   (page - 1) * pageSize,
		Limit:    pageSize,
		Category: q.Get("category"),
		Format:   domain.Format(q.Get("format")),
		Query:    q.Get("q"),
		SortBy:   q.Get("sort_by"),
		SortDesc: strings.EqualFold(q.Get("sort_order"), "desc"),
	}

	books, total, err := h.library.List(r.Context(), opts)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := bookListResponse{
		Books:    make([]bookResponse, 0, len(books)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for i := range books {
		resp.Books = append(resp.Books, toBookResponse(&books[i]))
	}
	respondJSON(w, http.StatusOK, resp)
}

// getBook handles GET /api/books/{id}.
func (h *handler) getBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.library.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toBookResponse(book))
}

// updateBook handles PUT /api/books/{id}.
func (h *handler) updateBook(w http.ResponseWriter, r *http.Request) {
	var req updateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	book, err := h.library.Update(r.Context(), chi.URLParam(r, "id"), driving.BookUpdate{
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		Publisher:   req.Publisher,
		Year:        req.Year,
		Language:    req.Language,
		Description: req.Description,
		Category:    req.Category,
		Subcategory: req.Subcategory,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toBookResponse(book))
}

// deleteBook handles DELETE /api/books/{id}.
func (h *handler) deleteBook(w http.ResponseWriter, r *http.Request) {
	if err := h.library.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getCover handles GET /api/books/{id}/cover.
func (h *handler) getCover(w http.ResponseWriter, r *http.Request) {
	book, err := h.library.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	if book.CoverPath == "" {
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "no cover available"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, book.CoverPath)
}

// listCategories handles GET /api/categories.
func (h *handler) listCategories(w http.ResponseWriter, r *http.Request) {
	tree, err := h.library.Categories(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]categoryResponse, 0, len(tree))
	for _, node := range tree {
		cat := categoryResponse{Name: node.Name, Count: node.Count}
		for _, sub := range node.Subcategories {
			cat.Subcategories = append(cat.Subcategories,
				subcategoryResponse{Name: sub.Name, Count: sub.Count})
		}
		resp = append(resp, cat)
	}
	respondJSON(w, http.StatusOK, resp)
}

// searchBooks handles GET /api/search.
func (h *handler) searchBooks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := queryInt(r.URL.Query().Get("limit"), 0)

	results, err := h.search.Search(r.Context(), query, limit)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]searchResultResponse, 0, len(results))
	for i := range results {
		resp = append(resp, searchResultResponse{
			Book:  toBookResponse(&results[i].Book),
			Score: results[i].Score,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// startIngest handles POST /api/ingest. Directory and job-slot
// validation happens synchronously so the caller gets a 400 or 409;
// the job itself runs detached and is polled via /api/ingest/status.
func (h *handler) startIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}
	}

	if err := h.ingestor.Start(req.Dirs, req.Force); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// ingestStatus handles GET /api/ingest/status.
func (h *handler) ingestStatus(w http.ResponseWriter, _ *http.Request) {
	job := h.ingestor.Status()
	respondJSON(w, http.StatusOK, ingestStatusResponse{
		Running:     job.Running,
		Total:       job.Total,
		Processed:   job.Processed,
		Skipped:     job.Skipped,
		Failed:      job.Failed,
		CurrentFile: job.CurrentFile,
		Errors:      job.Errors,
		StartedAt:   job.StartedAt,
	})
}

// rebuildIndex handles POST /api/index/rebuild.
func (h *handler) rebuildIndex(w http.ResponseWriter, r *http.Request) {
	if err := h.library.RebuildIndex(r.Context()); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "rebuilt"})
}

// getStats handles GET /api/stats.
func (h *handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.library.Stats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	formats := make(map[string]int, len(stats.Formats))
	for format, count := range stats.Formats {
		formats[string(format)] = count
	}
	respondJSON(w, http.StatusOK, statsResponse{
		TotalBooks:     stats.TotalBooks,
		Formats:        formats,
		CategoryCount:  stats.CategoryCount,
		TotalSizeBytes: stats.TotalSizeBytes,
	})
}

// healthz handles GET /healthz.
func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debug("Encoding response: %v", err)
	}
}

// respondError maps domain errors onto HTTP status codes.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrNoDirectories):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrJobRunning):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		logger.Error("Request failed: %v", err)
	}
	respondJSON(w, status, errorResponse{Error: err.Error()})
}

func queryInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
