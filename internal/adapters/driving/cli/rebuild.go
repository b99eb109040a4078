package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-embed every book and rebuild the vector index",
	Long: `Recomputes embeddings for all processed books and atomically
replaces the vector index. Run this after changing the embedding
model or when the index is suspected out of sync.`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, _ []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.library.RebuildIndex(ctx); err != nil {
		return err
	}
	cmd.Printf("Index rebuilt: %d vectors\n", a.index.Len())
	return nil
}
