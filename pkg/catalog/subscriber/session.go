// Package subscriber is the client side of the real-time catalog feed: a Session
// that keeps a WebSocket connection and its room memberships alive, and a View
// that reconciles feed messages into a local product collection.
package subscriber

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/namimod25/toko-online/pkg/catalog"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrNotConnected  = errors.New("session not connected")
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Options struct {
	// URL of the feed endpoint, e.g. ws://localhost:8080/api/realtime.
	URL    string
	Header http.Header
	Dialer *websocket.Dialer

	// Reconnect enables automatic reconnection with exponential backoff between
	// ReconnectMin and ReconnectMax.
	Reconnect    bool
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	// OnMessage receives every frame, control replies included. It runs on the
	// read goroutine and must not block for long.
	OnMessage func(catalog.Message)
	// OnResync runs after a reconnect once rooms are re-requested. Events sent
	// while the session was down are not replayed; callers refetch here.
	OnResync func()
	// OnStateChange runs with the session lock held and must not call back into
	// the Session.
	OnStateChange func(State)
	OnError       func(error)
}

// Session is one client connection to the feed. Rooms asked for with Join or
// the Enter helpers are remembered and requested again after every reconnect.
type Session struct {
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex // protects everything below
	state    State
	conn     *websocket.Conn
	connID   string
	joined   map[string]struct{}
	desired  map[string]struct{}
	attempts int
	closed   bool

	writeMu sync.Mutex
}

func New(opts Options) *Session {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = 500 * time.Millisecond
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		joined:  make(map[string]struct{}),
		desired: map[string]struct{}{catalog.GlobalRoom: {}},
	}
}

// Connect dials the feed and starts reading. It returns once the handshake is
// done; room acks arrive asynchronously.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != Disconnected {
		s.mu.Unlock()
		return nil
	}
	s.setStateLocked(Connecting)
	s.mu.Unlock()

	return s.dial(ctx, false)
}

func (s *Session) dial(ctx context.Context, resync bool) error {
	conn, _, err := s.opts.Dialer.DialContext(ctx, s.opts.URL, s.opts.Header)
	if err != nil {
		s.mu.Lock()
		s.setStateLocked(Disconnected)
		s.mu.Unlock()
		return fmt.Errorf("dial %s: %w", s.opts.URL, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return ErrSessionClosed
	}
	s.conn = conn
	s.attempts = 0
	// The server places every new connection in the global room.
	s.joined = map[string]struct{}{catalog.GlobalRoom: {}}
	s.setStateLocked(Connected)

	var pending []catalog.ControlMessage
	for room := range s.desired {
		if room != catalog.GlobalRoom {
			pending = append(pending, catalog.ControlMessage{Action: catalog.JoinRoomAction, Room: room})
		}
	}
	if _, wantGlobal := s.desired[catalog.GlobalRoom]; !wantGlobal {
		pending = append(pending, catalog.ControlMessage{Action: catalog.LeaveRoomAction, Room: catalog.GlobalRoom})
	}
	s.mu.Unlock()

	slices.SortFunc(pending, func(a, b catalog.ControlMessage) int { return cmp.Compare(a.Room, b.Room) })

	go s.readLoop(conn)

	for _, msg := range pending {
		if err := s.write(conn, msg); err != nil {
			s.reportError(err)
		}
	}

	if resync && s.opts.OnResync != nil {
		s.opts.OnResync()
	}

	return nil
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.handleDisconnect(conn, err)
			return
		}

		var msg catalog.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.reportError(fmt.Errorf("decode frame: %w", err))
			continue
		}

		s.track(msg)

		if s.opts.OnMessage != nil {
			s.opts.OnMessage(msg)
		}
	}
}

// track keeps joined rooms in step with server acks.
func (s *Session) track(msg catalog.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Channel {
	case catalog.ConnectedChannel:
		var p catalog.ConnectedPayload
		if err := json.Unmarshal(msg.Payload, &p); err == nil {
			s.connID = p.ConnectionID
		}
	case catalog.RoomJoinedChannel:
		s.joined[msg.Room] = struct{}{}
	case catalog.RoomLeftChannel:
		delete(s.joined, msg.Room)
	}
}

func (s *Session) handleDisconnect(conn *websocket.Conn, cause error) {
	_ = conn.Close()

	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.connID = ""
	clear(s.joined)
	s.setStateLocked(Disconnected)
	reconnect := s.opts.Reconnect && !s.closed
	s.mu.Unlock()

	if !websocket.IsCloseError(cause, websocket.CloseNormalClosure) && !errors.Is(cause, net.ErrClosed) {
		s.reportError(cause)
	}

	if reconnect {
		go s.reconnectLoop()
	}
}

func (s *Session) reconnectLoop() {
	for {
		s.mu.Lock()
		if s.closed || s.state != Disconnected {
			s.mu.Unlock()
			return
		}
		delay := s.backoffLocked()
		s.attempts++
		s.mu.Unlock()

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(delay):
		}

		s.mu.Lock()
		if s.closed || s.state != Disconnected {
			s.mu.Unlock()
			return
		}
		s.setStateLocked(Connecting)
		s.mu.Unlock()

		if err := s.dial(s.ctx, true); err != nil {
			if errors.Is(err, ErrSessionClosed) {
				return
			}
			s.reportError(err)
			continue
		}
		return
	}
}

func (s *Session) backoffLocked() time.Duration {
	d := s.opts.ReconnectMin
	for i := 0; i < s.attempts && d < s.opts.ReconnectMax; i++ {
		d *= 2
	}
	return min(d, s.opts.ReconnectMax)
}

// Join asks for room and remembers it for future reconnects. The room shows up
// in Rooms once the server acknowledges it.
func (s *Session) Join(room string) error {
	if _, _, err := catalog.ParseRoom(room); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.desired[room] = struct{}{}
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return s.write(conn, catalog.ControlMessage{Action: catalog.JoinRoomAction, Room: room})
}

// Leave drops room now and after future reconnects.
func (s *Session) Leave(room string) error {
	if _, _, err := catalog.ParseRoom(room); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	delete(s.desired, room)
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return s.write(conn, catalog.ControlMessage{Action: catalog.LeaveRoomAction, Room: room})
}

// Ping asks the server for a pong reply.
func (s *Session) Ping() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	return s.write(conn, catalog.ControlMessage{Action: catalog.PingAction})
}

func (s *Session) EnterProduct(id string) error { return s.Join(catalog.ProductRoom(id)) }
func (s *Session) ExitProduct(id string) error  { return s.Leave(catalog.ProductRoom(id)) }
func (s *Session) EnterAdmin() error            { return s.Join(catalog.AdminRoom) }
func (s *Session) ExitAdmin() error             { return s.Leave(catalog.AdminRoom) }

func (s *Session) write(conn *websocket.Conn, msg catalog.ControlMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Action, err)
	}
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConnectionID is the id the server assigned, empty until the connected message
// arrives.
func (s *Session) ConnectionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connID
}

// Rooms returns the acknowledged memberships, sorted.
func (s *Session) Rooms() []string {
	s.mu.Lock()
	rooms := make([]string, 0, len(s.joined))
	for room := range s.joined {
		rooms = append(rooms, room)
	}
	s.mu.Unlock()

	slices.Sort(rooms)
	return rooms
}

// Close ends the session for good.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.connID = ""
	clear(s.joined)
	s.setStateLocked(Disconnected)
	s.mu.Unlock()

	s.cancel()

	if conn == nil {
		return nil
	}

	s.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	s.writeMu.Unlock()

	return conn.Close()
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.state = state
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(state)
	}
}

func (s *Session) reportError(err error) {
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}
