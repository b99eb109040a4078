package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/yexubai/BookBrain/internal/core/domain"
	"github.com/yexubai/BookBrain/internal/logger"
)

// watchDebounce coalesces bursts of filesystem events (a download or
// rsync touches a file many times) into one ingest run.
const watchDebounce = 2 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch [dirs...]",
	Short: "Watch library directories and ingest changes automatically",
	Long: `Runs an initial ingest, then watches the directories for new,
changed or removed files and re-ingests after each burst of changes.
Stops on Ctrl-C.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	dirs := args
	if len(dirs) == 0 {
		dirs = a.cfg.LibraryDirs
	}
	if len(dirs) == 0 {
		return domain.ErrNoDirectories
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, dir := range dirs {
		if err := watchRecursive(watcher, dir); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.ingestor.Run(ctx, dirs, false); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	cmd.Printf("Watching %d directories\n", len(dirs))

	// The timer stays parked until an event arms it.
	debounce := time.NewTimer(watchDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			a.ingestor.Stop()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// New subdirectories must be watched too.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchRecursive(watcher, event.Name); err != nil {
						logger.Warn("Watching %s: %v", event.Name, err)
					}
				}
			}
			logger.Debug("Change detected: %s (%s)", event.Name, event.Op)
			debounce.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher: %v", err)

		case <-debounce.C:
			if err := a.ingestor.Run(ctx, dirs, false); err != nil {
				if errors.Is(err, domain.ErrJobRunning) {
					debounce.Reset(watchDebounce)
					continue
				}
				if errors.Is(err, context.Canceled) {
					return nil
				}
				logger.Error("Ingest after change: %v", err)
			}
		}
	}
}

// watchRecursive adds the directory and every non-hidden subdirectory.
func watchRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); name != "." && strings.HasPrefix(name, ".") && path != root {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
