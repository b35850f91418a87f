// Package resolver completes placeholder selections with full task details.
//
// The synchronizer commits a placeholder carrying only the task id; the
// resolver is the external collaborator that loads the rest from the task
// cache and applies it as a second phase. A generation token guards the
// window between the two phases: a resolution that lost a race with a newer
// navigation is discarded.
package resolver

import (
	"context"
	"errors"
	"log"
	"net/url"
	"os"

	"github.com/taskdeck/taskdeck/internal/notify"
	"github.com/taskdeck/taskdeck/internal/route"
	"github.com/taskdeck/taskdeck/internal/selection"
	"github.com/taskdeck/taskdeck/internal/task"
)

// Resolver loads task details for placeholder selections.
type Resolver struct {
	tasks     *task.Store
	sel       *selection.Store
	nav       route.Navigator
	notifier  notify.Notifier
	curParams func() url.Values
	logger    *log.Logger
}

// New creates a resolver.
//
// curParams is a pull accessor for the session's current query parameters,
// sampled only when a failed resolution needs to scrub taskId from the URL.
func New(tasks *task.Store, sel *selection.Store, nav route.Navigator,
	notifier notify.Notifier, curParams func() url.Values, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(os.Stderr, "[resolver] ", log.LstdFlags)
	}
	return &Resolver{
		tasks:     tasks,
		sel:       sel,
		nav:       nav,
		notifier:  notifier,
		curParams: curParams,
		logger:    logger,
	}
}

// Resolve loads the task with the given id and completes the selection
// committed at generation gen.
//
// When the task does not exist (or the load fails), and the placeholder is
// still current, the selection is cleared, the user is notified, and taskId
// is scrubbed from the URL via history replace. A stale generation makes the
// whole call a no-op.
func (r *Resolver) Resolve(ctx context.Context, gen uint64, id int) {
	t, err := r.tasks.GetContext(ctx, id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			r.logger.Printf("Task %d not found", id)
		} else {
			r.logger.Printf("Failed to load task %d: %v", id, err)
		}
		r.fail(gen)
		return
	}

	applied := r.sel.Complete(gen, selection.Selected{
		ID:       t.ID,
		Title:    t.Title,
		Status:   t.Status,
		Priority: t.Priority,
	})
	if !applied {
		r.logger.Printf("Discarded stale resolution for task %d", id)
	}
}

// fail handles a resolution failure for a still-current placeholder.
func (r *Resolver) fail(gen uint64) {
	if r.sel.Generation() != gen {
		// Superseded by a newer navigation; nothing to report.
		return
	}

	r.sel.Clear()

	if r.notifier != nil {
		r.notifier.Notify(notify.Notification{
			Severity: notify.SeverityError,
			Title:    "Task not found",
		})
	}
	if r.nav != nil && r.curParams != nil {
		r.nav.Replace(route.Without(r.curParams(), route.TaskIDParam))
	}
}
