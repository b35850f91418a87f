package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskdeck/taskdeck/internal/logging"
	"github.com/taskdeck/taskdeck/internal/task"
	"github.com/taskdeck/taskdeck/internal/ui"
	"github.com/taskdeck/taskdeck/internal/watch"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Full import from task files to the cache",
	Long: `Import every tasks/*.json file into the cache database.

This performs a one-shot full import:
  1. Reads all files in the tasks directory
  2. Validates and upserts them into the SQLite cache
  3. Reports counts

Invalid files are skipped with a warning; they don't abort the import.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := task.Open(cfg.DB.Path)
		if err != nil {
			return fmt.Errorf("failed to open task cache: %w", err)
		}
		defer store.Close()

		if err := store.InitSchema(); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}

		fmt.Printf("%s Importing from %s...\n", ui.RenderAccent("⇄"), cfg.Tasks.Dir)
		start := time.Now()

		importer := watch.NewImporter(store, logging.New(cfg, "import"))
		stats, err := importer.FullImport(cfg.Tasks.Dir)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		elapsed := time.Since(start)
		count, _ := store.Count()

		fmt.Printf("%s Import complete in %v\n", ui.RenderPass("✓"), elapsed.Round(time.Millisecond))
		fmt.Printf("   Imported: %d\n", stats.Imported)
		if stats.Failed > 0 {
			fmt.Printf("   %s Failed: %d\n", ui.RenderWarn("⚠"), stats.Failed)
		}
		fmt.Printf("   Cache: %s (%d tasks)\n", cfg.DB.Path, count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
