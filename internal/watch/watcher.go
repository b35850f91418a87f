// Package watch keeps the task cache in step with the tasks directory.
//
// A file system watcher emits typed events for tasks/*.json; the importer
// applies them to the SQLite cache. Sessions never read the filesystem.
package watch

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	// OpCreate indicates a new task file was created.
	OpCreate EventOp = iota
	// OpModify indicates an existing task file was modified.
	OpModify
	// OpDelete indicates a task file was deleted.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event represents a file system event for a task file.
type Event struct {
	// Path is the path to the file that changed.
	Path string
	// Op is the operation that occurred.
	Op EventOp
}

// Watcher watches the tasks directory for changes.
// It uses fsnotify for cross-platform file system event monitoring.
type Watcher struct {
	watcher *fsnotify.Watcher
	events  chan Event
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewWatcher creates a new Watcher instance.
// The watcher must be started with Start() before it will emit events.
func NewWatcher() (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher: watcher,
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching the tasks directory for *.json file events.
func (w *Watcher) Start(tasksDir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	if err := w.watcher.Add(tasksDir); err != nil {
		return fmt.Errorf("failed to watch tasks directory %s: %w", tasksDir, err)
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()

	return nil
}

// Stop stops watching for file system events and cleans up resources.
// It blocks until the event processing goroutine has exited.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.wg.Wait()

	close(w.events)
	close(w.errors)

	return nil
}

// Events returns the channel that emits task file events.
// This channel is closed when the watcher is stopped.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel that emits error notifications.
// This channel is closed when the watcher is stopped.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// processEvents converts fsnotify events to task file events.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if fileEvent, ok := convertEvent(event); ok {
				select {
				case w.events <- fileEvent:
				case <-w.done:
					return
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// convertEvent converts an fsnotify event to an Event.
// Returns (Event{}, false) if the event should be ignored.
func convertEvent(event fsnotify.Event) (Event, bool) {
	if !strings.HasSuffix(event.Name, ".json") {
		return Event{}, false
	}

	var op EventOp
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove):
		op = OpDelete
	case event.Has(fsnotify.Rename):
		// Treat rename as delete (the new name will trigger a create)
		op = OpDelete
	default:
		// Ignore chmod and other events
		return Event{}, false
	}

	return Event{Path: event.Name, Op: op}, true
}
