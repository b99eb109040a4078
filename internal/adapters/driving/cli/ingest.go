package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var ingestForce bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [dirs...]",
	Short: "Scan library directories and process new or changed books",
	Long: `Walks the given directories (or the configured library_dirs) and
runs every supported file through extraction, OCR fallback,
classification and embedding. Unchanged files are skipped unless
--force is given. Interrupting with Ctrl-C stops between files;
completed books are kept.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "re-process unchanged files")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.ingestor.Run(ctx, args, ingestForce); err != nil {
		return err
	}

	job := a.ingestor.Status()
	cmd.Printf("Ingest finished: %d processed (%d skipped), %d failed\n",
		job.Processed, job.Skipped, job.Failed)
	for _, msg := range job.Errors {
		cmd.Printf("  %s\n", msg)
	}
	return nil
}
