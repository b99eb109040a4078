package api

import (
	"time"

	"github.com/yexubai/BookBrain/internal/core/domain"
)

// bookResponse is the wire form of a book. The extracted text stays
// server-side; clients get the summary.
type bookResponse struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	Format       string    `json:"format"`
	Title        string    `json:"title"`
	Author       string    `json:"author,omitempty"`
	ISBN         string    `json:"isbn,omitempty"`
	Publisher    string    `json:"publisher,omitempty"`
	Year         int       `json:"year,omitempty"`
	Language     string    `json:"language,omitempty"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category"`
	Subcategory  string    `json:"subcategory,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	OCRPerformed bool      `json:"ocr_performed"`
	PageCount    int       `json:"page_count,omitempty"`
	FileSize     int64     `json:"file_size"`
	HasCover     bool      `json:"has_cover"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toBookResponse(b *domain.Book) bookResponse {
	return bookResponse{
		ID:           b.ID,
		Path:         b.Path,
		Format:       string(b.Format),
		Title:        b.Title,
		Author:       b.Author,
		ISBN:         b.ISBN,
		Publisher:    b.Publisher,
		Year:         b.Year,
		Language:     b.Language,
		Description:  b.Description,
		Category:     b.Category,
		Subcategory:  b.Subcategory,
		Summary:      b.Summary,
		OCRPerformed: b.OCRPerformed,
		PageCount:    b.PageCount,
		FileSize:     b.FileSize,
		HasCover:     b.CoverPath != "",
		Status:       string(b.Status),
		Error:        b.Error,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

// bookListResponse carries one page of books plus the pre-pagination
// total.
type bookListResponse struct {
	Books    []bookResponse `json:"books"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// updateBookRequest mirrors driving.BookUpdate: absent fields stay
// unchanged.
type updateBookRequest struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	ISBN        *string `json:"isbn"`
	Publisher   *string `json:"publisher"`
	Year        *int    `json:"year"`
	Language    *string `json:"language"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Subcategory *string `json:"subcategory"`
}

// searchResultResponse is one semantic search hit.
type searchResultResponse struct {
	Book  bookResponse `json:"book"`
	Score float64      `json:"score"`
}

// ingestRequest triggers a scan.
type ingestRequest struct {
	Dirs  []string `json:"dirs"`
	Force bool     `json:"force"`
}

// ingestStatusResponse is the job snapshot.
type ingestStatusResponse struct {
	Running     bool      `json:"running"`
	Total       int       `json:"total"`
	Processed   int       `json:"processed"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	CurrentFile string    `json:"current_file,omitempty"`
	Errors      []string  `json:"errors,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}

// categoryResponse is one node of the category tree.
type categoryResponse struct {
	Name          string                `json:"name"`
	Count         int                   `json:"count"`
	Subcategories []subcategoryResponse `json:"subcategories,omitempty"`
}

type subcategoryResponse struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// statsResponse summarises the collection.
type statsResponse struct {
	TotalBooks     int            `json:"total_books"`
	Formats        map[string]int `json:"formats"`
	CategoryCount  int            `json:"category_count"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}
