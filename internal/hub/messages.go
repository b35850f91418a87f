package hub

import (
	"encoding/json"
	"time"

	"github.com/taskdeck/taskdeck/internal/selection"
)

// MessageType defines the type of hub message.
type MessageType string

const (
	// MessageTypeNavigate is sent by clients when their URL's query string
	// changes. The only inbound message type.
	MessageTypeNavigate MessageType = "navigate"

	// MessageTypeSelection carries the session's current selection.
	MessageTypeSelection MessageType = "selection"

	// MessageTypeReplaceURL instructs the client to rewrite its URL via
	// history replace (never push).
	MessageTypeReplaceURL MessageType = "replace_url"

	// MessageTypeNotification carries a transient user-facing message.
	MessageTypeNotification MessageType = "notification"

	// MessageTypeTaskUpdate indicates a task was created, updated, or deleted.
	MessageTypeTaskUpdate MessageType = "task_update"

	// MessageTypeStats carries task statistics.
	MessageTypeStats MessageType = "stats"
)

// Message is the wire envelope for hub messages in both directions.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NavigateData is the payload of an inbound navigate message.
type NavigateData struct {
	// Query is the raw query string, without the leading "?".
	Query string `json:"query"`
}

// ReplaceURLData is the payload of a replace_url command.
type ReplaceURLData struct {
	Query string `json:"query"`
}

// SelectionData carries the session's selection state.
// Selected is null when the selection is absent.
type SelectionData struct {
	Selected *selection.Selected `json:"selected"`
}

// TaskUpdateData contains task change information.
type TaskUpdateData struct {
	TaskID   int    `json:"task_id"`
	Action   string `json:"action"` // created, updated, deleted
	Status   string `json:"status,omitempty"`
	Title    string `json:"title,omitempty"`
	Priority int    `json:"priority,omitempty"`
}

// StatsData contains task statistics.
type StatsData struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

// newMessage marshals a payload into a timestamped envelope.
func newMessage(typ MessageType, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: typ, Timestamp: time.Now(), Data: data}, nil
}
