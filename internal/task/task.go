// Package task provides the task model, its on-disk JSON representation, and
// the embedded SQLite cache the dashboard serves selections from.
//
// Tasks live as individual files in tasks/{id}.json so that external tools can
// create and edit them; the watcher imports them into the cache, and the cache
// is the only thing session code queries.
package task

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Task is a work item. Identified by a positive integer id, which is also the
// value carried in the dashboard URL's taskId query parameter.
type Task struct {
	ID int `json:"id"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`   // bug, feature, task, chore
	Status      string `json:"status"` // open, in_progress, blocked, closed

	// Priority: 0=critical .. 4=backlog
	Priority int `json:"priority"`

	Tags []string `json:"tags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DueAt *time.Time `json:"due_at,omitempty"`
}

// Validate checks if the Task has valid field values.
func (t *Task) Validate() error {
	if t.ID <= 0 {
		return fmt.Errorf("id must be a positive integer (got %d)", t.ID)
	}
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(t.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(t.Title))
	}
	if t.Type == "" {
		return fmt.Errorf("type is required")
	}
	if t.Status == "" {
		return fmt.Errorf("status is required")
	}
	if t.Priority < 0 || t.Priority > 4 {
		return fmt.Errorf("priority must be between 0 and 4 (got %d)", t.Priority)
	}
	if t.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if t.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// Filename returns the canonical filename for this task: {id}.json
func (t *Task) Filename() string {
	return fmt.Sprintf("%d.json", t.ID)
}

// IDFromFilename extracts the task id from a {id}.json path.
func IDFromFilename(path string) (int, error) {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, ".json")
	if name == base {
		return 0, fmt.Errorf("not a task file: %s", base)
	}
	id, err := strconv.Atoi(name)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task filename %s: expected {id}.json", base)
	}
	return id, nil
}

// ReadFile reads and parses a task JSON file from the given path.
func ReadFile(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file %s: %w", path, err)
	}

	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse task file %s: %w", path, err)
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task file %s: %w", path, err)
	}

	return &t, nil
}

// WriteFile writes a task to tasksDir/{id}.json with pretty-printed JSON.
func WriteFile(tasksDir string, t *Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("cannot write invalid task: %w", err)
	}

	if err := os.MkdirAll(tasksDir, 0755); err != nil {
		return fmt.Errorf("failed to create tasks directory: %w", err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal task %d: %w", t.ID, err)
	}

	path := filepath.Join(tasksDir, t.Filename())
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write task file %s: %w", path, err)
	}

	return nil
}
