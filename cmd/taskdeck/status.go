package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/taskdeck/taskdeck/internal/task"
	"github.com/taskdeck/taskdeck/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache status",
	Long: `Display the current status of the task cache.

Shows:
  - Cache file location and size
  - Number of tasks, broken down by status`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := os.Stat(cfg.DB.Path)
		if os.IsNotExist(err) {
			fmt.Printf("\n%s Cache not initialized\n", ui.RenderWarn("⚠"))
			fmt.Printf("   Run 'taskdeck sync' to create it\n\n")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to check cache: %w", err)
		}

		store, err := task.Open(cfg.DB.Path)
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
		defer store.Close()

		count, err := store.Count()
		if err != nil {
			return fmt.Errorf("failed to count tasks: %w", err)
		}
		byStatus, err := store.CountByStatus()
		if err != nil {
			return fmt.Errorf("failed to count tasks by status: %w", err)
		}

		fmt.Printf("\n%s Taskdeck Cache Status\n\n", ui.RenderAccent("▣"))
		fmt.Printf("Location: %s\n", cfg.DB.Path)
		fmt.Printf("Size: %s\n", formatSize(info.Size()))
		fmt.Printf("Tasks: %d\n", count)

		statuses := make([]string, 0, len(byStatus))
		for status := range byStatus {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		for _, status := range statuses {
			fmt.Printf("   %s: %d\n", status, byStatus[status])
		}

		fmt.Printf("Modified: %s\n\n", info.ModTime().Format("2006-01-02 15:04:05"))
		return nil
	},
}

// formatSize renders a byte count in human units.
func formatSize(size int64) string {
	switch {
	case size > 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	case size > 1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
