package hub

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/taskdeck/taskdeck/internal/notify"
	"github.com/taskdeck/taskdeck/internal/resolver"
	"github.com/taskdeck/taskdeck/internal/route"
	"github.com/taskdeck/taskdeck/internal/selection"
	"github.com/taskdeck/taskdeck/internal/task"
)

// Session is one connected dashboard client.
//
// Each session owns its URL query state and selection store; the synchronizer
// and resolver are wired per session so that one client's navigation never
// touches another's selection. Inbound messages are processed on the read
// loop, so synchronizer invocations are serialized per session.
type Session struct {
	conn   *websocket.Conn
	logger *log.Logger

	// outbound serializes writes to the connection.
	outbound chan Message

	mu     sync.Mutex
	params url.Values

	sel    *selection.Store
	syncer *selection.Synchronizer
	res    *resolver.Resolver
	unsub  func()

	ctx    context.Context
	cancel context.CancelFunc
}

// newSession wires a session's selection store, synchronizer, and resolver to
// the connection.
func newSession(parent context.Context, conn *websocket.Conn, tasks *task.Store, logger *log.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		conn:     conn,
		logger:   logger,
		outbound: make(chan Message, 32),
		params:   url.Values{},
		sel:      selection.NewStore(),
		ctx:      ctx,
		cancel:   cancel,
	}

	nav := route.NavigatorFunc(s.replaceURL)
	notifier := notify.Func(s.sendNotification)

	s.syncer = selection.NewSynchronizer(s.sel, nav, notifier)
	s.res = resolver.New(tasks, s.sel, nav, notifier, s.currentParams, logger)

	// Selection changes flow out to the client; they never feed back into
	// the synchronizer.
	s.unsub = s.sel.Subscribe(func(sel *selection.Selected) {
		s.send(MessageTypeSelection, SelectionData{Selected: sel})
	})

	return s
}

// close releases the session's resources. Safe to call more than once.
func (s *Session) close() {
	s.unsub()
	s.cancel()
}

// currentParams returns a copy of the session's query parameters.
func (s *Session) currentParams() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(url.Values, len(s.params))
	for k, vs := range s.params {
		cp[k] = append([]string(nil), vs...)
	}
	return cp
}

// handleNavigate processes one URL observation from the client.
//
// The synchronizer runs inline; when it commits a new placeholder, the
// resolver is kicked off asynchronously so the read loop is never blocked on
// the task cache. An observation the synchronizer suppressed (matching
// selection, or a repeat of the marker while a resolution is in flight)
// leaves the generation untouched and must not spawn a second resolution.
func (s *Session) handleNavigate(query string) {
	params := route.ParseQuery(query)

	s.mu.Lock()
	s.params = params
	s.mu.Unlock()

	before := s.sel.Generation()
	s.syncer.OnParams(params)
	gen := s.sel.Generation()
	if gen == before {
		return
	}

	if cur := s.sel.Current(); cur != nil && cur.Placeholder {
		go s.res.Resolve(s.ctx, gen, cur.ID)
	}
}

// replaceURL records the rewritten parameters and commands the client to
// apply them via history replace.
func (s *Session) replaceURL(params url.Values) {
	s.mu.Lock()
	s.params = params
	s.mu.Unlock()

	s.send(MessageTypeReplaceURL, ReplaceURLData{Query: params.Encode()})
}

// sendNotification pushes a transient message to the client.
func (s *Session) sendNotification(n notify.Notification) {
	s.send(MessageTypeNotification, n)
}

// send enqueues an outbound message, dropping it when the client can't keep
// up rather than blocking session processing.
func (s *Session) send(typ MessageType, payload any) {
	msg, err := newMessage(typ, payload)
	if err != nil {
		s.logger.Printf("Failed to marshal %s message: %v", typ, err)
		return
	}
	s.enqueue(msg)
}

// enqueue places a prepared message on the outbound queue.
func (s *Session) enqueue(msg Message) {
	select {
	case s.outbound <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Printf("Warning: session outbound queue full, dropping %s", msg.Type)
	}
}

// writeLoop drains the outbound queue to the connection.
func (s *Session) writeLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.outbound:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
			err = s.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// readLoop processes inbound messages until the client disconnects.
func (s *Session) readLoop() {
	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Printf("Ignoring malformed message: %v", err)
			continue
		}

		switch msg.Type {
		case MessageTypeNavigate:
			var nav NavigateData
			if err := json.Unmarshal(msg.Data, &nav); err != nil {
				s.logger.Printf("Ignoring malformed navigate payload: %v", err)
				continue
			}
			s.handleNavigate(nav.Query)

		default:
			s.logger.Printf("Ignoring unexpected message type %q", msg.Type)
		}
	}
}
