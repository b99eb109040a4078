package domain

// SearchResult represents a single semantic search hit resolved back
// to its repository record.
type SearchResult struct {
	// Book is the matched record.
	Book Book

	// Score is the cosine similarity in [0,1], best first.
	Score float64
}

// ListOptions configures a book listing query.
type ListOptions struct {
	// Offset is the number of records to skip.
	Offset int

	// Limit is the maximum number of records. Zero means the store default.
	Limit int

	// Category filters to a single category when non-empty.
	Category string

	// Format filters to a single format when non-empty.
	Format Format

	// Query filters by substring match on title, author or description.
	Query string

	// SortBy is one of title, author, year, file_size, created_at.
	SortBy string

	// SortDesc sorts descending when true.
	SortDesc bool
}

// CategoryCount is one node of the category tree with book counts.
type CategoryCount struct {
	Name          string
	Count         int
	Subcategories []SubcategoryCount
}

// SubcategoryCount is a subcategory leaf with its book count.
type SubcategoryCount struct {
	Name  string
	Count int
}

// LibraryStats summarises the whole collection.
type LibraryStats struct {
	TotalBooks     int
	Formats        map[Format]int
	CategoryCount  int
	TotalSizeBytes int64
}
