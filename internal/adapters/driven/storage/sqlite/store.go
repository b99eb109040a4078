package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/yexubai/BookBrain/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/yexubai/BookBrain/internal/core/domain"
	"github.com/yexubai/BookBrain/internal/core/ports/driven"
)

// defaultListLimit applies when ListOptions.Limit is zero.
const defaultListLimit = 50

// bookColumns is the canonical column list shared by every SELECT.
const bookColumns = `id, path, fingerprint, format, title, author, isbn, publisher,
	year, language, description, category, subcategory, summary, text,
	ocr_performed, page_count, file_size, cover_path, status, error,
	created_at, updated_at`

// sortColumns whitelists the user-facing sort keys.
var sortColumns = map[string]string{
	"title":      "title",
	"author":     "author",
	"year":       "year",
	"file_size":  "file_size",
	"created_at": "created_at",
}

var _ driven.BookStore = (*Store)(nil)

// Store is the SQLite-backed book store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at dbPath and applies any
// pending migrations.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".bookbrain", "bookbrain.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_books.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// Upsert stores or updates a book, keyed by ID.
func (s *Store) Upsert(ctx context.Context, book *domain.Book) error {
	if book.ID == "" {
		return fmt.Errorf("%w: book ID is required", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (`+bookColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			fingerprint = excluded.fingerprint,
			format = excluded.format,
			title = excluded.title,
			author = excluded.author,
			isbn = excluded.isbn,
			publisher = excluded.publisher,
			year = excluded.year,
			language = excluded.language,
			description = excluded.description,
			category = excluded.category,
			subcategory = excluded.subcategory,
			summary = excluded.summary,
			text = excluded.text,
			ocr_performed = excluded.ocr_performed,
			page_count = excluded.page_count,
			file_size = excluded.file_size,
			cover_path = excluded.cover_path,
			status = excluded.status,
			error = excluded.error,
			updated_at = excluded.updated_at
	`, book.ID, book.Path, book.Fingerprint, string(book.Format),
		book.Title, book.Author, book.ISBN, book.Publisher,
		book.Year, book.Language, book.Description,
		book.Category, book.Subcategory, book.Summary, book.Text,
		book.OCRPerformed, book.PageCount, book.FileSize, book.CoverPath,
		string(book.Status), book.Error,
		book.CreatedAt, book.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving book: %w", err)
	}
	return nil
}

// GetByID retrieves a book by its identifier.
func (s *Store) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	return scanBook(row)
}

// GetByPath retrieves a book by its absolute file path.
func (s *Store) GetByPath(ctx context.Context, path string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE path = ?`, path)
	return scanBook(row)
}

// Delete removes a book record.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM books WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting book: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns books matching the options plus the total count before
// pagination.
func (s *Store) List(ctx context.Context, opts domain.ListOptions) ([]domain.Book, int, error) {
	where, args := buildFilter(opts)

	var total int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM books"+where, args...)
	if err := row.Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting books: %w", err)
	}

	orderBy := "title"
	if col, ok := sortColumns[opts.SortBy]; ok {
		orderBy = col
	}
	direction := "ASC"
	if opts.SortDesc {
		direction = "DESC"
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := fmt.Sprintf(
		"SELECT %s FROM books%s ORDER BY %s %s, id ASC LIMIT ? OFFSET ?",
		bookColumns, where, orderBy, direction)
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing books: %w", err)
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, 0, err
		}
		books = append(books, *book)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating books: %w", err)
	}

	return books, total, nil
}

// ListAllPaths returns the set of every known file path.
func (s *Store) ListAllPaths(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path FROM books")
	if err != nil {
		return nil, fmt.Errorf("listing paths: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scanning path: %w", err)
		}
		paths[path] = struct{}{}
	}
	return paths, rows.Err()
}

// ListProcessed returns all books in processed status.
func (s *Store) ListProcessed(ctx context.Context) ([]domain.Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE status = ? ORDER BY id`,
		string(domain.StatusProcessed))
	if err != nil {
		return nil, fmt.Errorf("listing processed books: %w", err)
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, *book)
	}
	return books, rows.Err()
}

// Categories returns the category tree with book counts. Only
// processed books are counted.
func (s *Store) Categories(ctx context.Context) ([]domain.CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, subcategory, COUNT(*)
		FROM books
		WHERE status = ? AND category != ''
		GROUP BY category, subcategory
		ORDER BY category, subcategory
	`, string(domain.StatusProcessed))
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var tree []domain.CategoryCount
	index := make(map[string]int)
	for rows.Next() {
		var category, subcategory string
		var count int
		if err := rows.Scan(&category, &subcategory, &count); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}

		i, ok := index[category]
		if !ok {
			i = len(tree)
			index[category] = i
			tree = append(tree, domain.CategoryCount{Name: category})
		}
		tree[i].Count += count
		if subcategory != "" {
			tree[i].Subcategories = append(tree[i].Subcategories,
				domain.SubcategoryCount{Name: subcategory, Count: count})
		}
	}
	return tree, rows.Err()
}

// Stats returns collection-wide statistics.
func (s *Store) Stats(ctx context.Context) (*domain.LibraryStats, error) {
	stats := &domain.LibraryStats{Formats: make(map[domain.Format]int)}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(file_size), 0),
			COUNT(DISTINCT CASE WHEN category != '' THEN category END)
		FROM books
	`)
	if err := row.Scan(&stats.TotalBooks, &stats.TotalSizeBytes, &stats.CategoryCount); err != nil {
		return nil, fmt.Errorf("scanning stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT format, COUNT(*) FROM books GROUP BY format")
	if err != nil {
		return nil, fmt.Errorf("counting formats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var format string
		var count int
		if err := rows.Scan(&format, &count); err != nil {
			return nil, fmt.Errorf("scanning format count: %w", err)
		}
		stats.Formats[domain.Format(format)] = count
	}
	return stats, rows.Err()
}

// buildFilter translates ListOptions into a WHERE clause.
func buildFilter(opts domain.ListOptions) (string, []any) {
	var conds []string
	var args []any

	if opts.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, opts.Category)
	}
	if opts.Format != "" {
		conds = append(conds, "format = ?")
		args = append(args, string(opts.Format))
	}
	if opts.Query != "" {
		pattern := "%" + opts.Query + "%"
		conds = append(conds, "(title LIKE ? OR author LIKE ? OR description LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanBook(row scanner) (*domain.Book, error) {
	var b domain.Book
	var format, status string
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(&b.ID, &b.Path, &b.Fingerprint, &format,
		&b.Title, &b.Author, &b.ISBN, &b.Publisher,
		&b.Year, &b.Language, &b.Description,
		&b.Category, &b.Subcategory, &b.Summary, &b.Text,
		&b.OCRPerformed, &b.PageCount, &b.FileSize, &b.CoverPath,
		&status, &b.Error, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning book: %w", err)
	}

	b.Format = domain.Format(format)
	b.Status = domain.Status(status)
	if createdAt.Valid {
		b.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		b.UpdatedAt = updatedAt.Time
	}
	return &b, nil
}
