package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned by Get when no task with the given id exists.
var ErrNotFound = errors.New("task not found")

// Store wraps the embedded SQLite task cache.
//
// The database runs in embedded mode with WAL for concurrent reads: sessions
// query while the watcher imports. The caller MUST call Close() when done.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a task cache at the specified path.
//
// The database is created along with its schema if it doesn't exist.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := s.conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return s, nil
}

// Path returns the location of the cache file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection after a WAL checkpoint.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist. Idempotent.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		priority INTEGER NOT NULL DEFAULT 2,
		tags TEXT,  -- JSON array
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		due_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority);
	CREATE INDEX IF NOT EXISTS idx_tasks_type ON tasks(type);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Upsert inserts or updates a task in the cache.
func (s *Store) Upsert(t *Task) error {
	return s.UpsertContext(context.Background(), t)
}

// UpsertContext inserts or updates a task with context support.
func (s *Store) UpsertContext(ctx context.Context, t *Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	tagsJSON, err := json.Marshal(t.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
	INSERT INTO tasks (
		id, title, description, type, status, priority,
		tags, created_at, updated_at, due_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		type = excluded.type,
		status = excluded.status,
		priority = excluded.priority,
		tags = excluded.tags,
		updated_at = excluded.updated_at,
		due_at = excluded.due_at
	`

	_, err = s.conn.ExecContext(ctx, query,
		t.ID,
		t.Title,
		t.Description,
		t.Type,
		t.Status,
		t.Priority,
		string(tagsJSON),
		t.CreatedAt.Format(time.RFC3339),
		t.UpdatedAt.Format(time.RFC3339),
		timeToNullString(t.DueAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert task %d: %w", t.ID, err)
	}

	return nil
}

// Get returns the task with the given id, or ErrNotFound.
func (s *Store) Get(id int) (*Task, error) {
	return s.GetContext(context.Background(), id)
}

// GetContext returns a task with context support.
func (s *Store) GetContext(ctx context.Context, id int) (*Task, error) {
	query := `
	SELECT id, title, description, type, status, priority,
	       tags, created_at, updated_at, due_at
	FROM tasks WHERE id = ?
	`

	row := s.conn.QueryRowContext(ctx, query, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	return t, nil
}

// Delete removes a task from the cache. Idempotent.
func (s *Store) Delete(id int) error {
	return s.DeleteContext(context.Background(), id)
}

// DeleteContext removes a task with context support.
func (s *Store) DeleteContext(ctx context.Context, id int) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	return nil
}

// Count returns the total number of tasks in the cache.
func (s *Store) Count() (int, error) {
	return s.CountContext(context.Background())
}

// CountContext returns the total task count with context support.
func (s *Store) CountContext(ctx context.Context) (int, error) {
	var count int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// CountByStatus returns per-status task counts.
func (s *Store) CountByStatus() (map[string]int, error) {
	return s.CountByStatusContext(context.Background())
}

// CountByStatusContext returns per-status counts with context support.
func (s *Store) CountByStatusContext(ctx context.Context) (map[string]int, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}

	return counts, nil
}

// List returns all tasks ordered by priority, then id.
func (s *Store) List() ([]*Task, error) {
	return s.ListContext(context.Background())
}

// ListContext returns all tasks with context support.
func (s *Store) ListContext(ctx context.Context) ([]*Task, error) {
	query := `
	SELECT id, title, description, type, status, priority,
	       tags, created_at, updated_at, due_at
	FROM tasks ORDER BY priority, id
	`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*Task, error) {
	var (
		t         Task
		desc      sql.NullString
		tagsJSON  sql.NullString
		createdAt string
		updatedAt string
		dueAt     sql.NullString
	)

	err := row.Scan(&t.ID, &t.Title, &desc, &t.Type, &t.Status, &t.Priority,
		&tagsJSON, &createdAt, &updatedAt, &dueAt)
	if err != nil {
		return nil, err
	}

	t.Description = desc.String

	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &t.Tags); err != nil {
			return nil, fmt.Errorf("failed to parse tags for task %d: %w", t.ID, err)
		}
	}

	if t.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at for task %d: %w", t.ID, err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at for task %d: %w", t.ID, err)
	}

	if dueAt.Valid && dueAt.String != "" {
		due, err := time.Parse(time.RFC3339, dueAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse due_at for task %d: %w", t.ID, err)
		}
		t.DueAt = &due
	}

	return &t, nil
}

// timeToNullString converts an optional time to its stored representation.
func timeToNullString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
