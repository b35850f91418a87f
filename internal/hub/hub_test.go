package hub

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/taskdeck/taskdeck/internal/task"
)

func newTestServer(t *testing.T) (*Server, *task.Store) {
	t.Helper()

	store, err := task.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.InitSchema(); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}

	server := NewServer(&Config{
		Port:   0, // Use random available port
		Tasks:  store,
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })

	time.Sleep(100 * time.Millisecond)
	return server, store
}

func seedTask(t *testing.T, store *task.Store, id int, title string) {
	t.Helper()

	now := time.Now().UTC()
	err := store.Upsert(&task.Task{
		ID:        id,
		Title:     title,
		Type:      "task",
		Status:    "open",
		Priority:  2,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Failed to seed task %d: %v", id, err)
	}
}

func dial(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws://" + server.GetAddr() + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func sendNavigate(t *testing.T, ctx context.Context, conn *websocket.Conn, query string) {
	t.Helper()

	data, _ := json.Marshal(NavigateData{Query: query})
	msg := Message{Type: MessageTypeNavigate, Timestamp: time.Now(), Data: data}
	payload, _ := json.Marshal(msg)
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		t.Fatalf("Failed to send navigate: %v", err)
	}
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

// readUntil drains messages until one of the wanted type arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, want MessageType) Message {
	t.Helper()

	for {
		msg := readMessage(t, ctx, conn)
		if msg.Type == want {
			return msg
		}
	}
}

func TestServerStartStop(t *testing.T) {
	server, _ := newTestServer(t)

	if addr := server.GetAddr(); addr == "" {
		t.Fatal("Server address is empty")
	}
}

func TestConnectReceivesStats(t *testing.T) {
	server, store := newTestServer(t)
	seedTask(t, store, 1, "One")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeStats {
		t.Fatalf("Expected initial stats message, got %s", msg.Type)
	}

	var stats StatsData
	if err := json.Unmarshal(msg.Data, &stats); err != nil {
		t.Fatalf("Failed to unmarshal stats: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("Expected 1 task in stats, got %d", stats.Total)
	}

	if count := server.SessionCount(); count != 1 {
		t.Errorf("Expected 1 session, got %d", count)
	}
}

func TestNavigateResolvesSelection(t *testing.T) {
	server, store := newTestServer(t)
	seedTask(t, store, 7, "Seeded")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	readUntil(t, ctx, conn, MessageTypeStats)

	sendNavigate(t, ctx, conn, "taskId=7")

	// Placeholder first
	msg := readUntil(t, ctx, conn, MessageTypeSelection)
	var sel SelectionData
	if err := json.Unmarshal(msg.Data, &sel); err != nil {
		t.Fatalf("Failed to unmarshal selection: %v", err)
	}
	if sel.Selected == nil || sel.Selected.ID != 7 || !sel.Selected.Placeholder {
		t.Fatalf("Expected placeholder for task 7, got %+v", sel.Selected)
	}

	// Then the resolved selection
	msg = readUntil(t, ctx, conn, MessageTypeSelection)
	if err := json.Unmarshal(msg.Data, &sel); err != nil {
		t.Fatalf("Failed to unmarshal selection: %v", err)
	}
	if sel.Selected == nil || sel.Selected.Placeholder {
		t.Fatalf("Expected resolved selection, got %+v", sel.Selected)
	}
	if sel.Selected.Title != "Seeded" {
		t.Errorf("Expected title 'Seeded', got %q", sel.Selected.Title)
	}
}

func TestNavigateUnknownTaskScrubsURL(t *testing.T) {
	server, _ := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	readUntil(t, ctx, conn, MessageTypeStats)

	sendNavigate(t, ctx, conn, "taskId=404&view=board")

	msg := readUntil(t, ctx, conn, MessageTypeNotification)
	var n struct {
		Severity string `json:"severity"`
		Title    string `json:"title"`
	}
	if err := json.Unmarshal(msg.Data, &n); err != nil {
		t.Fatalf("Failed to unmarshal notification: %v", err)
	}
	if n.Severity != "error" {
		t.Errorf("Expected error severity, got %s", n.Severity)
	}
	if n.Title != "Task not found" {
		t.Errorf("Expected title 'Task not found', got %q", n.Title)
	}

	msg = readUntil(t, ctx, conn, MessageTypeReplaceURL)
	var rep ReplaceURLData
	if err := json.Unmarshal(msg.Data, &rep); err != nil {
		t.Fatalf("Failed to unmarshal replace_url: %v", err)
	}
	params, err := url.ParseQuery(rep.Query)
	if err != nil {
		t.Fatalf("Failed to parse replaced query: %v", err)
	}
	if params.Has("taskId") {
		t.Error("taskId should be scrubbed from the replaced URL")
	}
	if params.Get("view") != "board" {
		t.Errorf("Expected view=board preserved, got %q", params.Get("view"))
	}
}

func TestNavigateMalformedTaskID(t *testing.T) {
	server, _ := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	readUntil(t, ctx, conn, MessageTypeStats)

	sendNavigate(t, ctx, conn, "taskId=bogus")

	msg := readUntil(t, ctx, conn, MessageTypeNotification)
	if msg.Type != MessageTypeNotification {
		t.Fatalf("Expected notification, got %s", msg.Type)
	}
	readUntil(t, ctx, conn, MessageTypeReplaceURL)
}

func TestNavigateAbsentClearsSelection(t *testing.T) {
	server, store := newTestServer(t)
	seedTask(t, store, 42, "Answer")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	readUntil(t, ctx, conn, MessageTypeStats)

	sendNavigate(t, ctx, conn, "taskId=42")

	// Wait for the resolved selection.
	for {
		msg := readUntil(t, ctx, conn, MessageTypeSelection)
		var sel SelectionData
		if err := json.Unmarshal(msg.Data, &sel); err != nil {
			t.Fatalf("Failed to unmarshal selection: %v", err)
		}
		if sel.Selected != nil && !sel.Selected.Placeholder {
			break
		}
	}

	sendNavigate(t, ctx, conn, "view=board")

	msg := readUntil(t, ctx, conn, MessageTypeSelection)
	var sel SelectionData
	if err := json.Unmarshal(msg.Data, &sel); err != nil {
		t.Fatalf("Failed to unmarshal selection: %v", err)
	}
	if sel.Selected != nil {
		t.Errorf("Expected selection cleared, got %+v", sel.Selected)
	}
}

func TestRepeatedNavigateWhilePendingResolvesOnce(t *testing.T) {
	store, err := task.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.InitSchema(); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}
	seedTask(t, store, 7, "Seeded")

	sess := newSession(context.Background(), nil, store, log.New(os.Stderr, "[test] ", log.LstdFlags))
	defer sess.close()

	// The client reports the same URL again before the first resolution
	// lands; only one resolution may run.
	sess.handleNavigate("taskId=7")
	sess.handleNavigate("taskId=7")

	deadline := time.Now().Add(2 * time.Second)
	for {
		cur := sess.sel.Current()
		if cur != nil && !cur.Placeholder {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Selection never resolved")
		}
		time.Sleep(10 * time.Millisecond)
	}
	// Let any straggler resolution land before counting.
	time.Sleep(50 * time.Millisecond)

	selections := 0
	for drained := false; !drained; {
		select {
		case msg := <-sess.outbound:
			if msg.Type == MessageTypeSelection {
				selections++
			}
		default:
			drained = true
		}
	}
	if selections != 2 {
		t.Errorf("Expected placeholder + one resolved selection push, got %d", selections)
	}
}

func TestBroadcastTaskUpdate(t *testing.T) {
	server, store := newTestServer(t)
	seedTask(t, store, 1, "One")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	readUntil(t, ctx, conn, MessageTypeStats)

	server.BroadcastTaskUpdate(TaskUpdateData{
		TaskID: 1,
		Action: "updated",
		Status: "in_progress",
		Title:  "One",
	})

	msg := readUntil(t, ctx, conn, MessageTypeTaskUpdate)
	var data TaskUpdateData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("Failed to unmarshal task update: %v", err)
	}
	if data.TaskID != 1 || data.Action != "updated" {
		t.Errorf("Unexpected task update: %+v", data)
	}

	// Stats follow every task update.
	readUntil(t, ctx, conn, MessageTypeStats)
}
