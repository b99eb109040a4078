// Package cli implements the bookbrain command tree. Each command
// wires the services it needs from the loaded configuration; commands
// that only print (version) skip the bootstrap entirely.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yexubai/BookBrain/internal/adapters/driven/embedding/openai"
	"github.com/yexubai/BookBrain/internal/adapters/driven/ocr/tesseract"
	"github.com/yexubai/BookBrain/internal/adapters/driven/storage/sqlite"
	"github.com/yexubai/BookBrain/internal/adapters/driven/vectorindex/flat"
	"github.com/yexubai/BookBrain/internal/classify"
	"github.com/yexubai/BookBrain/internal/config"
	"github.com/yexubai/BookBrain/internal/core/ports/driven"
	"github.com/yexubai/BookBrain/internal/core/services"
	"github.com/yexubai/BookBrain/internal/extractors"
	"github.com/yexubai/BookBrain/internal/extractors/epub"
	"github.com/yexubai/BookBrain/internal/extractors/pdf"
	"github.com/yexubai/BookBrain/internal/extractors/plaintext"
	"github.com/yexubai/BookBrain/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "bookbrain",
	Short: "Personal ebook library with semantic search",
	Long: `BookBrain ingests PDF, EPUB and plain text files from your library
directories, recovers text from scanned documents with OCR, classifies
every book into a category tree and answers natural language queries
with vector similarity search.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.bookbrain/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the wired services behind the CLI commands.
type app struct {
	cfg      *config.Config
	store    *sqlite.Store
	index    *flat.Index
	embedder driven.EmbeddingService
	ocr      driven.OCRService

	ingestor *services.Ingestor
	library  *services.Library
	search   *services.Search
}

// buildApp loads configuration and wires the full service graph.
// The vector index is loaded from disk when present; a model mismatch
// is fatal here because every command that needs the index also needs
// it consistent.
func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := sqlite.NewStore(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	embedder, err := openai.NewEmbeddingService(openai.Config{
		APIKey:     cfg.EmbedAPIKey(),
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring embedder: %w", err)
	}

	index, err := flat.New(cfg.IndexDir(), embedder.ModelName(), embedder.Dimensions())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating vector index: %w", err)
	}
	if err := index.Load(); err != nil {
		store.Close()
		return nil, fmt.Errorf("loading vector index: %w", err)
	}

	rules, err := classify.DefaultRules()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading classification rules: %w", err)
	}
	classifier := classify.New(rules, embedder, classify.Config{
		RuleMinScore: cfg.Classify.RuleMinScore,
		MLFloor:      cfg.Classify.MLFloor,
	})

	registry := extractors.NewRegistry()
	registry.Register(pdf.New())
	registry.Register(epub.New())
	registry.Register(plaintext.New())

	var ocr driven.OCRService
	if cfg.OCR.Enabled {
		ocr = tesseract.New()
	}

	a := &app{
		cfg:      cfg,
		store:    store,
		index:    index,
		embedder: embedder,
		ocr:      ocr,
	}
	a.ingestor = services.NewIngestor(store, registry, ocr, classifier, embedder, index, services.IngestConfig{
		LibraryDirs:      cfg.LibraryDirs,
		MaxWorkers:       cfg.MaxWorkers,
		DensityThreshold: cfg.DensityThreshold,
		MaxTextLength:    cfg.MaxTextLength,
		SummaryLength:    cfg.SummaryLength,
		EmbedTextLength:  cfg.EmbedTextLength,
		OCRLanguage:      cfg.OCR.Language,
		OCRMaxPages:      cfg.OCR.MaxPages,
		OCRPageTimeout:   cfg.OCR.PageTimeout,
		CoversDir:        cfg.CoversDir(),
	})
	a.library = services.NewLibrary(store, embedder, index, cfg.EmbedTextLength)
	a.search = services.NewSearch(store, embedder, index)

	return a, nil
}

// Close releases every held resource, logging rather than failing on
// individual close errors.
func (a *app) Close() {
	if a.ocr != nil {
		if err := a.ocr.Close(); err != nil {
			logger.Debug("Closing OCR service: %v", err)
		}
	}
	if err := a.index.Close(); err != nil {
		logger.Debug("Closing vector index: %v", err)
	}
	if err := a.embedder.Close(); err != nil {
		logger.Debug("Closing embedder: %v", err)
	}
	if err := a.store.Close(); err != nil {
		logger.Debug("Closing store: %v", err)
	}
}
