package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show library statistics",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	stats, err := a.library.Stats(ctx)
	if err != nil {
		return err
	}

	cmd.Printf("Books:      %d\n", stats.TotalBooks)
	cmd.Printf("Categories: %d\n", stats.CategoryCount)
	cmd.Printf("Disk usage: %.1f MB\n", float64(stats.TotalSizeBytes)/(1024*1024))
	cmd.Printf("Indexed:    %d vectors (%s)\n", a.index.Len(), a.index.ModelName())
	for format, count := range stats.Formats {
		cmd.Printf("  %-5s %d\n", format, count)
	}

	tree, err := a.library.Categories(ctx)
	if err != nil {
		return err
	}
	if len(tree) > 0 {
		cmd.Println()
		for _, node := range tree {
			cmd.Printf("%s (%d)\n", node.Name, node.Count)
			for _, sub := range node.Subcategories {
				cmd.Printf("  %s (%d)\n", sub.Name, sub.Count)
			}
		}
	}
	return nil
}
