package selection

import (
	"net/url"
	"strconv"

	"github.com/taskdeck/taskdeck/internal/notify"
	"github.com/taskdeck/taskdeck/internal/route"
)

// SyncState describes the synchronizer's position relative to the URL.
type SyncState int

const (
	// SyncIdle means no taskId is being tracked.
	SyncIdle SyncState = iota
	// SyncPending means a taskId was seen and a placeholder is committed but
	// not yet resolved.
	SyncPending
	// SyncSynced means the selection matches the tracked taskId.
	SyncSynced
)

// String returns a human-readable representation of the state.
func (st SyncState) String() string {
	switch st {
	case SyncIdle:
		return "idle"
	case SyncPending:
		return "pending"
	case SyncSynced:
		return "synced"
	default:
		return "unknown"
	}
}

// Synchronizer keeps the selection store consistent with the URL's taskId
// parameter. It reacts to query-parameter observations only; selection writes
// it performs itself never feed back into it. The last-processed marker
// suppresses duplicate work when the same query value is observed again
// without an intervening absence.
type Synchronizer struct {
	store    *Store
	nav      route.Navigator
	notifier notify.Notifier

	// last is the most recent non-empty taskId already acted upon.
	// Reset to "" whenever the parameter is absent.
	last string
}

// NewSynchronizer wires a synchronizer to its collaborators. The store is
// required; nav and notifier are only exercised on the failure path and may be
// no-ops in contexts that cannot rewrite a URL.
func NewSynchronizer(store *Store, nav route.Navigator, notifier notify.Notifier) *Synchronizer {
	return &Synchronizer{store: store, nav: nav, notifier: notifier}
}

// OnParams processes one observation of the session's query parameters.
//
// Contract, in order:
//  1. absent taskId: reset the marker; clear the selection if one is set
//  2. taskId equals the selected task's id: record the marker, no write
//  3. taskId equals the marker: no-op (already handled, store mid-transition)
//  4. otherwise: record the marker, commit a placeholder selection; on a
//     rejected commit, notify "Task not found" and replace the URL with
//     taskId removed, preserving other parameters
func (s *Synchronizer) OnParams(params url.Values) {
	raw := route.TaskID(params)

	if raw == "" {
		s.last = ""
		if s.store.Current() != nil {
			s.store.Clear()
		}
		return
	}

	if cur := s.store.Current(); cur != nil && raw == strconv.Itoa(cur.ID) {
		s.last = raw
		return
	}

	if raw == s.last {
		return
	}
	s.last = raw

	if err := s.commit(raw); err != nil {
		if s.notifier != nil {
			s.notifier.Notify(notify.Notification{
				Severity: notify.SeverityError,
				Title:    "Task not found",
			})
		}
		if s.nav != nil {
			s.nav.Replace(route.Without(params, route.TaskIDParam))
		}
	}
}

// commit parses the raw id and writes a placeholder selection.
func (s *Synchronizer) commit(raw string) error {
	id, err := strconv.Atoi(raw)
	if err != nil {
		return err
	}
	_, err = s.store.Set(Selected{ID: id, Placeholder: true})
	return err
}

// State derives the synchronizer's current state from the marker and the
// store. Sampling the store here keeps it an observed input, not a trigger.
func (s *Synchronizer) State() SyncState {
	if s.last == "" {
		return SyncIdle
	}
	cur := s.store.Current()
	if cur != nil && !cur.Placeholder && s.last == strconv.Itoa(cur.ID) {
		return SyncSynced
	}
	return SyncPending
}
