package watch

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/taskdeck/taskdeck/internal/task"
)

// ImportStats summarizes a full import run.
type ImportStats struct {
	Imported int
	Failed   int
}

// Importer applies task file changes to the cache.
type Importer struct {
	store  *task.Store
	logger *log.Logger
}

// NewImporter creates an Importer. If logger is nil, a default logger writing
// to stderr is used.
func NewImporter(store *task.Store, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.New(os.Stderr, "[import] ", log.LstdFlags)
	}
	return &Importer{store: store, logger: logger}
}

// ImportFile reads one task file and upserts it into the cache.
func (im *Importer) ImportFile(path string) (*task.Task, error) {
	t, err := task.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}

	if err := im.store.Upsert(t); err != nil {
		return nil, fmt.Errorf("failed to import task into cache: %w", err)
	}

	im.logger.Printf("Imported task %d (%s)", t.ID, t.Title)
	return t, nil
}

// Remove deletes the task identified by the file's name from the cache.
// The file itself is already gone; the id comes from the {id}.json name.
func (im *Importer) Remove(path string) (int, error) {
	id, err := task.IDFromFilename(path)
	if err != nil {
		return 0, err
	}

	if err := im.store.Delete(id); err != nil {
		return 0, fmt.Errorf("failed to remove task from cache: %w", err)
	}

	im.logger.Printf("Removed task %d", id)
	return id, nil
}

// Apply routes a watcher event to the right cache operation.
// Returns the affected task id (0 when the event was skipped).
func (im *Importer) Apply(ev Event) (int, error) {
	switch ev.Op {
	case OpCreate, OpModify:
		t, err := im.ImportFile(ev.Path)
		if err != nil {
			return 0, err
		}
		return t.ID, nil
	case OpDelete:
		return im.Remove(ev.Path)
	default:
		return 0, nil
	}
}

// FullImport imports every task file in the directory.
// Individual file failures are logged but don't stop the import.
func (im *Importer) FullImport(tasksDir string) (ImportStats, error) {
	var stats ImportStats

	if _, err := os.Stat(tasksDir); os.IsNotExist(err) {
		im.logger.Printf("Tasks directory doesn't exist: %s (skipping)", tasksDir)
		return stats, nil
	}

	entries, err := os.ReadDir(tasksDir)
	if err != nil {
		return stats, fmt.Errorf("failed to read tasks directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(tasksDir, entry.Name())
		if _, err := im.ImportFile(path); err != nil {
			im.logger.Printf("WARNING: Failed to import %s: %v", entry.Name(), err)
			stats.Failed++
			continue
		}
		stats.Imported++
	}

	im.logger.Printf("Full import complete: imported=%d failed=%d", stats.Imported, stats.Failed)
	return stats, nil
}
