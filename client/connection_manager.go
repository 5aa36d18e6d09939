package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yassineAchour0609/MediLink-sub000/models"
)

const (
	defaultReconnectDelay = time.Second
	maxReconnectAttempts  = 5
	handshakeTimeout      = 10 * time.Second
	writeTimeout          = 10 * time.Second
)

var ErrNotInitialized = errors.New("connection manager not initialized")

// ConnectionManager owns the one websocket connection of a client session.
// It is explicitly constructed and injected into whatever drives the
// conversation UI; nothing here is global.
//
// Transport faults never surface as errors into application code: they
// become events (ConnectError, ReconnectError, ReconnectFailed) and
// observable status. After an unexpected drop the manager retries up to 5
// times at a fixed 1 s spacing and then stops until an explicit Connect,
// which starts a fresh attempt budget.
type ConnectionManager struct {
	mu sync.Mutex

	endpoint       string
	token          string
	dialer         *websocket.Dialer
	reconnectDelay time.Duration

	conn    *websocket.Conn
	connID  string
	writeMu sync.Mutex

	handlers map[EventKind][]Handler
	pending  map[uint64]func(models.Envelope)
	nextAck  uint64

	registered *models.RegisterUserPayload

	initialized bool
	connecting  bool
	connected   bool
	closing     bool
	status      string
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		handlers:       make(map[EventKind][]Handler),
		pending:        make(map[uint64]func(models.Envelope)),
		reconnectDelay: defaultReconnectDelay,
		status:         "uninitialized",
	}
}

// Initialize configures the endpoint and credential. Calling it again while
// connected is a no-op.
func (m *ConnectionManager) Initialize(endpoint, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		return
	}
	m.endpoint = endpoint
	m.token = token
	m.dialer = &websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	m.initialized = true
	m.status = "initialized"
}

// Connect dials the endpoint. Failures are reported both as a returned error
// and a ConnectError event; an explicit Connect always starts with a fresh
// reconnect budget.
func (m *ConnectionManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return ErrNotInitialized
	}
	if m.connected || m.connecting {
		// A dial is already live; only one connection may ever result.
		m.mu.Unlock()
		return nil
	}
	m.connecting = true
	m.closing = false
	m.status = "connecting"
	dialer, endpoint, header := m.dialer, m.endpoint, m.authHeader()
	m.mu.Unlock()

	conn, _, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		m.mu.Lock()
		m.connecting = false
		m.status = "connect error"
		m.mu.Unlock()
		m.dispatch(Event{Kind: EventConnectError, Err: err})
		return err
	}
	if !m.adopt(conn) {
		return errors.New("disconnected while connecting")
	}
	m.dispatch(Event{Kind: EventConnected})
	return nil
}

func (m *ConnectionManager) authHeader() http.Header {
	header := http.Header{}
	if m.token != "" {
		header.Set("Authorization", "Bearer "+m.token)
	}
	return header
}

// adopt takes ownership of a freshly dialed connection. It refuses when a
// Disconnect raced the dial: the explicit-lifecycle contract means no
// connection may come alive past a Disconnect without a new Connect.
func (m *ConnectionManager) adopt(conn *websocket.Conn) bool {
	m.mu.Lock()
	if m.closing {
		m.connecting = false
		m.mu.Unlock()
		conn.Close()
		return false
	}
	m.conn = conn
	m.connID = uuid.New().String()
	m.connecting = false
	m.connected = true
	m.status = "connected"
	m.mu.Unlock()
	go m.readLoop(conn)
	return true
}

func (m *ConnectionManager) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.handleReadExit(conn)
			return
		}
		env, err := models.DecodeEnvelope(raw)
		if err != nil {
			log.Printf("client: dropping frame: %v", err)
			continue
		}
		if env.Event == models.EventAck {
			m.resolveAck(env)
			continue
		}
		ev, err := decodePush(env)
		if err != nil {
			log.Printf("client: dropping frame: %v", err)
			continue
		}
		m.dispatch(ev)
	}
}

func (m *ConnectionManager) handleReadExit(conn *websocket.Conn) {
	m.mu.Lock()
	if m.conn != conn {
		// A newer connection already superseded this one.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.connected = false
	m.status = "disconnected"
	// Pending acks can only be answered on the connection that sent them.
	m.pending = make(map[uint64]func(models.Envelope))
	closing := m.closing
	m.mu.Unlock()
	conn.Close()
	m.dispatch(Event{Kind: EventDisconnected})
	if !closing {
		go m.reconnectLoop()
	}
}

// reconnectLoop is bounded: 5 attempts at fixed spacing, then it gives up
// until an explicit Connect. A Disconnect issued at any point, including
// during the wait, aborts the loop. Reconnecting never resyncs message
// history; the application layer re-fetches on the Reconnected event.
func (m *ConnectionManager) reconnectLoop() {
	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		m.mu.Lock()
		delay, closing := m.reconnectDelay, m.closing
		dialer, endpoint, header := m.dialer, m.endpoint, m.authHeader()
		m.mu.Unlock()
		if closing {
			return
		}
		time.Sleep(delay)
		m.mu.Lock()
		closing = m.closing
		m.mu.Unlock()
		if closing {
			return
		}
		m.dispatch(Event{Kind: EventReconnectAttempt, Attempt: attempt})
		conn, _, err := dialer.Dial(endpoint, header)
		if err != nil {
			m.dispatch(Event{Kind: EventReconnectError, Attempt: attempt, Err: err})
			continue
		}
		if !m.adopt(conn) {
			return
		}
		m.replayRegistration()
		m.dispatch(Event{Kind: EventReconnected, Attempt: attempt})
		return
	}
	m.setStatus("reconnect failed")
	m.dispatch(Event{Kind: EventReconnectFailed})
}

// On registers a handler for one event kind. Handlers are invoked with
// per-listener fault isolation: a panic is logged and does not reach the
// other handlers or the read loop.
func (m *ConnectionManager) On(kind EventKind, h Handler) {
	m.mu.Lock()
	m.handlers[kind] = append(m.handlers[kind], h)
	m.mu.Unlock()
}

func (m *ConnectionManager) dispatch(ev Event) {
	m.mu.Lock()
	hs := append([]Handler(nil), m.handlers[ev.Kind]...)
	m.mu.Unlock()
	for _, h := range hs {
		h := h
		m.safeInvoke(func() { h(ev) })
	}
}

func (m *ConnectionManager) safeInvoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("client: event handler panicked: %v", r)
		}
	}()
	fn()
}

// Emit is fire and forget. While disconnected it drops the frame with a
// warning; nothing is queued or retried.
func (m *ConnectionManager) Emit(event string, payload interface{}) {
	m.emitFrame(event, 0, payload)
}

// EmitWithAck sends a frame carrying an ack id; onAck runs when the server
// echoes it. The disconnected contract matches Emit.
func (m *ConnectionManager) EmitWithAck(event string, payload interface{}, onAck func(models.Envelope)) {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		log.Printf("client: emit %q while disconnected, dropping", event)
		return
	}
	m.nextAck++
	id := m.nextAck
	if onAck != nil {
		m.pending[id] = onAck
	}
	m.mu.Unlock()
	m.emitFrame(event, id, payload)
}

func (m *ConnectionManager) emitFrame(event string, ack uint64, payload interface{}) {
	m.mu.Lock()
	conn, connected := m.conn, m.connected
	m.mu.Unlock()
	if !connected || conn == nil {
		log.Printf("client: emit %q while disconnected, dropping", event)
		return
	}
	frame, err := models.EncodeEvent(event, ack, payload)
	if err != nil {
		log.Printf("client: encode %q: %v", event, err)
		return
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		log.Printf("client: write %q: %v", event, err)
	}
}

func (m *ConnectionManager) resolveAck(env models.Envelope) {
	m.mu.Lock()
	fn := m.pending[env.Ack]
	delete(m.pending, env.Ack)
	m.mu.Unlock()
	if fn != nil {
		m.safeInvoke(func() { fn(env) })
	}
}

// RegisterUser declares "I am user X" with an ack and remembers the
// registration so it is replayed after an automatic reconnect.
func (m *ConnectionManager) RegisterUser(userID uint, onAck func()) {
	m.mu.Lock()
	m.registered = &models.RegisterUserPayload{UserID: userID}
	m.mu.Unlock()
	m.EmitWithAck(models.EventRegisterUser, models.RegisterUserPayload{UserID: userID}, func(models.Envelope) {
		if onAck != nil {
			onAck()
		}
	})
}

func (m *ConnectionManager) replayRegistration() {
	m.mu.Lock()
	reg := m.registered
	m.mu.Unlock()
	if reg != nil {
		m.Emit(models.EventRegisterUser, *reg)
	}
}

// RoomName is the advisory room naming scheme. Dispatch is addressed per
// user on the server; the room only declares which conversation is open.
func RoomName(otherID uint) string {
	return fmt.Sprintf("conversation_%d", otherID)
}

func (m *ConnectionManager) JoinRoom(otherID uint) {
	m.Emit(models.EventJoinRoom, models.RoomPayload{Room: RoomName(otherID)})
}

func (m *ConnectionManager) LeaveRoom(otherID uint) {
	m.Emit(models.EventLeaveRoom, models.RoomPayload{Room: RoomName(otherID)})
}

// Disconnect closes the connection and clears all registered listeners and
// pending acks. The manager stays initialized; Connect works again without
// a new Initialize.
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	m.closing = true
	conn := m.conn
	m.conn = nil
	wasConnected := m.connected
	m.connected = false
	m.status = "disconnected"
	m.registered = nil
	m.pending = make(map[uint64]func(models.Envelope))
	m.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	if wasConnected {
		m.dispatch(Event{Kind: EventDisconnected})
	}
	m.mu.Lock()
	m.handlers = make(map[EventKind][]Handler)
	m.mu.Unlock()
}

// Cleanup releases everything; a later Connect requires Initialize first.
func (m *ConnectionManager) Cleanup() {
	m.Disconnect()
	m.mu.Lock()
	m.initialized = false
	m.dialer = nil
	m.connID = ""
	m.status = "uninitialized"
	m.mu.Unlock()
}

func (m *ConnectionManager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// ConnectionID identifies the current underlying connection; it changes on
// every successful (re)connect.
func (m *ConnectionManager) ConnectionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connID
}

// Status is a human-readable diagnostic string.
func (m *ConnectionManager) Status() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *ConnectionManager) setStatus(s string) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}
