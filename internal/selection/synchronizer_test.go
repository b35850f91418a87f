package selection

import (
	"net/url"
	"testing"

	"github.com/taskdeck/taskdeck/internal/notify"
	"github.com/taskdeck/taskdeck/internal/route"
)

// recorder captures navigator and notifier calls for assertions.
type recorder struct {
	replaced      []url.Values
	notifications []notify.Notification
}

func (r *recorder) Replace(params url.Values)    { r.replaced = append(r.replaced, params) }
func (r *recorder) Notify(n notify.Notification) { r.notifications = append(r.notifications, n) }

func newTestSync() (*Synchronizer, *Store, *recorder) {
	store := NewStore()
	rec := &recorder{}
	return NewSynchronizer(store, rec, rec), store, rec
}

func TestAbsentTaskIDClearsSelection(t *testing.T) {
	sync, store, _ := newTestSync()

	// Selection is currently task 42
	if _, err := store.Set(Selected{ID: 42, Title: "Answer"}); err != nil {
		t.Fatalf("Failed to seed selection: %v", err)
	}

	sync.OnParams(url.Values{})

	if cur := store.Current(); cur != nil {
		t.Errorf("Expected selection cleared, got %+v", cur)
	}
	if sync.State() != SyncIdle {
		t.Errorf("Expected idle state, got %s", sync.State())
	}
}

func TestAbsentTaskIDResetsMarker(t *testing.T) {
	sync, store, _ := newTestSync()

	sync.OnParams(url.Values{"taskId": {"7"}})
	sync.OnParams(url.Values{})

	// After an absence, the same value must be processed again.
	sync.OnParams(url.Values{"taskId": {"7"}})

	cur := store.Current()
	if cur == nil || cur.ID != 7 {
		t.Fatalf("Expected selection re-set to 7 after absence, got %+v", cur)
	}
}

func TestNewTaskIDSetsPlaceholder(t *testing.T) {
	sync, store, _ := newTestSync()

	sync.OnParams(url.Values{"taskId": {"7"}})

	cur := store.Current()
	if cur == nil {
		t.Fatal("Expected a selection")
	}
	if cur.ID != 7 {
		t.Errorf("Expected id 7, got %d", cur.ID)
	}
	if !cur.Placeholder {
		t.Error("Expected a placeholder selection")
	}
	if sync.State() != SyncPending {
		t.Errorf("Expected pending state, got %s", sync.State())
	}
}

func TestMatchingSelectionIsIdempotent(t *testing.T) {
	sync, store, _ := newTestSync()

	if _, err := store.Set(Selected{ID: 7, Title: "Existing"}); err != nil {
		t.Fatalf("Failed to seed selection: %v", err)
	}

	writes := 0
	unsub := store.Subscribe(func(*Selected) { writes++ })
	defer unsub()

	sync.OnParams(url.Values{"taskId": {"7"}})

	if writes != 0 {
		t.Errorf("Expected no store write for matching taskId, got %d", writes)
	}
	if sync.State() != SyncSynced {
		t.Errorf("Expected synced state, got %s", sync.State())
	}
}

func TestRepeatedObservationWritesOnce(t *testing.T) {
	sync, store, _ := newTestSync()

	writes := 0
	unsub := store.Subscribe(func(*Selected) { writes++ })
	defer unsub()

	// The same value re-fires without an intervening absence.
	sync.OnParams(url.Values{"taskId": {"7"}})
	sync.OnParams(url.Values{"taskId": {"7"}})
	sync.OnParams(url.Values{"taskId": {"7"}})

	if writes != 1 {
		t.Errorf("Expected exactly one store write, got %d", writes)
	}
}

func TestDistinctValuesEachWrite(t *testing.T) {
	sync, store, _ := newTestSync()

	writes := 0
	unsub := store.Subscribe(func(*Selected) { writes++ })
	defer unsub()

	sync.OnParams(url.Values{"taskId": {"7"}})
	sync.OnParams(url.Values{"taskId": {"9"}})

	if writes != 2 {
		t.Errorf("Expected two store writes for two distinct values, got %d", writes)
	}
	cur := store.Current()
	if cur == nil || cur.ID != 9 {
		t.Errorf("Expected selection 9, got %+v", cur)
	}
}

func TestSetFailureNotifiesAndScrubsURL(t *testing.T) {
	sync, store, rec := newTestSync()

	params := url.Values{"taskId": {"bogus"}, "view": {"board"}}
	sync.OnParams(params)

	if cur := store.Current(); cur != nil {
		t.Errorf("Expected no selection after failed set, got %+v", cur)
	}

	if len(rec.notifications) != 1 {
		t.Fatalf("Expected exactly one notification, got %d", len(rec.notifications))
	}
	n := rec.notifications[0]
	if n.Severity != notify.SeverityError {
		t.Errorf("Expected error severity, got %s", n.Severity)
	}
	if n.Title != "Task not found" {
		t.Errorf("Expected title 'Task not found', got %q", n.Title)
	}

	if len(rec.replaced) != 1 {
		t.Fatalf("Expected exactly one URL replace, got %d", len(rec.replaced))
	}
	scrubbed := rec.replaced[0]
	if scrubbed.Has(route.TaskIDParam) {
		t.Error("taskId should be scrubbed from the replaced URL")
	}
	if got := scrubbed.Get("view"); got != "board" {
		t.Errorf("Other parameters must survive the scrub, got view=%q", got)
	}
}

func TestNonPositiveIDFailsDeterministically(t *testing.T) {
	sync, store, rec := newTestSync()

	sync.OnParams(url.Values{"taskId": {"0"}})

	if cur := store.Current(); cur != nil {
		t.Errorf("Expected no selection for id 0, got %+v", cur)
	}
	if len(rec.notifications) != 1 || len(rec.replaced) != 1 {
		t.Errorf("Expected one notification and one replace, got %d/%d",
			len(rec.notifications), len(rec.replaced))
	}
}

func TestExternalSelectionChangeNotReverted(t *testing.T) {
	sync, store, _ := newTestSync()

	sync.OnParams(url.Values{"taskId": {"7"}})

	// User clears the selection via an unrelated action ("New Task").
	store.Clear()

	// The URL re-fires with the same value; the marker suppresses the write,
	// so the synchronizer does not fight the user's action.
	sync.OnParams(url.Values{"taskId": {"7"}})

	if cur := store.Current(); cur != nil {
		t.Errorf("Externally cleared selection was reverted: %+v", cur)
	}
}

func TestURLChangeStillWinsAfterExternalClear(t *testing.T) {
	sync, store, _ := newTestSync()

	sync.OnParams(url.Values{"taskId": {"7"}})
	store.Clear()

	// A genuinely new taskId must take effect.
	sync.OnParams(url.Values{"taskId": {"9"}})

	cur := store.Current()
	if cur == nil || cur.ID != 9 {
		t.Errorf("Expected new taskId to set selection 9, got %+v", cur)
	}
}

func TestStateTransitions(t *testing.T) {
	sync, store, _ := newTestSync()

	if sync.State() != SyncIdle {
		t.Fatalf("Expected initial idle state, got %s", sync.State())
	}

	sync.OnParams(url.Values{"taskId": {"7"}})
	if sync.State() != SyncPending {
		t.Errorf("Expected pending after first sight, got %s", sync.State())
	}

	// Resolution completes: placeholder becomes a full selection.
	gen := store.Generation()
	if !store.Complete(gen, Selected{ID: 7, Title: "Resolved"}) {
		t.Fatal("Complete should apply for the current generation")
	}
	if sync.State() != SyncSynced {
		t.Errorf("Expected synced after resolution, got %s", sync.State())
	}

	sync.OnParams(url.Values{})
	if sync.State() != SyncIdle {
		t.Errorf("Expected idle after taskId absence, got %s", sync.State())
	}
}
