package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/taskdeck/taskdeck/internal/task"
	"github.com/taskdeck/taskdeck/internal/ui"
)

var addCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Create a task file",
	Long: `Create a new tasks/{id}.json file.

With no arguments, an interactive form collects the task fields. The --due
flag accepts natural language ("tomorrow", "next friday at 5pm").

Example usage:
  taskdeck add                               # Interactive form
  taskdeck add "Fix login flow" --type bug   # From flags
  taskdeck add "Ship v2" --due "next friday"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := ""
		if len(args) == 1 {
			title = args[0]
		}
		typ, _ := cmd.Flags().GetString("type")
		priority, _ := cmd.Flags().GetInt("priority")
		description, _ := cmd.Flags().GetString("description")
		tags, _ := cmd.Flags().GetStringSlice("tags")
		dueRaw, _ := cmd.Flags().GetString("due")

		if title == "" {
			if err := runAddForm(&title, &typ, &priority, &description); err != nil {
				return err
			}
		}
		if strings.TrimSpace(title) == "" {
			return fmt.Errorf("a title is required")
		}

		var dueAt *time.Time
		if dueRaw != "" {
			due, err := parseDue(dueRaw)
			if err != nil {
				return err
			}
			dueAt = &due
		}

		id, err := nextTaskID(cfg.Tasks.Dir)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		t := &task.Task{
			ID:          id,
			Title:       title,
			Description: description,
			Type:        typ,
			Status:      "open",
			Priority:    priority,
			Tags:        tags,
			CreatedAt:   now,
			UpdatedAt:   now,
			DueAt:       dueAt,
		}

		if err := task.WriteFile(cfg.Tasks.Dir, t); err != nil {
			return err
		}

		fmt.Printf("%s Created task %d: %s\n", ui.RenderPass("✓"), t.ID, t.Title)
		fmt.Printf("   File: %s\n", filepath.Join(cfg.Tasks.Dir, t.Filename()))
		if dueAt != nil {
			fmt.Printf("   Due: %s\n", dueAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

// runAddForm collects task fields interactively.
func runAddForm(title, typ *string, priority *int, description *string) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(title),
			huh.NewSelect[string]().
				Title("Type").
				Options(huh.NewOptions("task", "bug", "feature", "chore")...).
				Value(typ),
			huh.NewSelect[int]().
				Title("Priority").
				Options(
					huh.NewOption("P0: critical", 0),
					huh.NewOption("P1: high", 1),
					huh.NewOption("P2: medium", 2),
					huh.NewOption("P3: low", 3),
					huh.NewOption("P4: backlog", 4),
				).
				Value(priority),
			huh.NewText().
				Title("Description").
				Value(description),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("form aborted: %w", err)
	}
	return nil
}

// parseDue resolves a natural-language due date.
func parseDue(raw string) (time.Time, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(raw, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse due date %q: %w", raw, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("could not understand due date %q", raw)
	}
	return result.Time, nil
}

// nextTaskID returns one past the highest id present in the tasks directory.
func nextTaskID(tasksDir string) (int, error) {
	entries, err := os.ReadDir(tasksDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, fmt.Errorf("failed to read tasks directory: %w", err)
	}

	maxID := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id, err := task.IDFromFilename(entry.Name())
		if err != nil {
			continue
		}
		if id > maxID {
			maxID = id
		}
	}
	return maxID + 1, nil
}

func init() {
	addCmd.Flags().String("type", "task", "Task type (task, bug, feature, chore)")
	addCmd.Flags().IntP("priority", "P", 2, "Priority (0=critical .. 4=backlog)")
	addCmd.Flags().StringP("description", "d", "", "Task description")
	addCmd.Flags().StringSlice("tags", nil, "Tags (comma-separated)")
	addCmd.Flags().String("due", "", "Due date in natural language (e.g. \"next friday\")")
	rootCmd.AddCommand(addCmd)
}
