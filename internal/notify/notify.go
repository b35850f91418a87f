// Package notify defines the transient user-facing notification surface.
//
// Notifications are fire-and-forget toasts pushed to a dashboard session. The
// type lives in its own leaf package so that selection and resolver code can
// emit notifications without importing the hub.
package notify

// Severity classifies a notification for client-side styling.
type Severity string

const (
	// SeverityInfo is an informational message.
	SeverityInfo Severity = "info"
	// SeverityWarn is a warning that does not block the user.
	SeverityWarn Severity = "warn"
	// SeverityError is a destructive/error-styled message.
	SeverityError Severity = "error"
)

// Notification is a transient message shown to the user.
type Notification struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Body     string   `json:"body,omitempty"`
}

// Notifier shows a transient message. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to the Notifier interface.
type Func func(n Notification)

// Notify implements Notifier.
func (f Func) Notify(n Notification) { f(n) }
