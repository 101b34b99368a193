package ws

import (
	"errors"
	"slices"
	"sync"

	"github.com/namimod25/toko-online/internal/infrastructure/logging"
)

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrSendBufferFull     = errors.New("send buffer full")
)

// Sender is the outbound half of a transport connection. Send must not block.
type Sender interface {
	Send(frame []byte) error
	Close() error
}

type connection struct {
	id     string
	sender Sender

	mu    sync.Mutex // protects rooms
	rooms map[string]struct{}
}

func (c *connection) isMember(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[room]
	return ok
}

// Registry tracks live connections and the rooms each one belongs to. Rooms are
// not stored on their own; a room's members are the connections whose set holds it.
type Registry struct {
	conns    map[string]*connection
	mu       sync.RWMutex // protects conns only
	logger   logging.Logger
	observer Observer
}

func NewRegistry(logger logging.Logger, observer Observer) *Registry {
	if observer == nil {
		observer = nopObserver{}
	}

	return &Registry{
		conns:    make(map[string]*connection),
		logger:   logger,
		observer: observer,
	}
}

// Register adds a connection with no room memberships. Registering an id twice
// keeps the first connection.
func (r *Registry) Register(id string, sender Sender) {
	r.mu.Lock()
	if _, exists := r.conns[id]; exists {
		r.mu.Unlock()
		return
	}
	r.conns[id] = &connection{
		id:     id,
		sender: sender,
		rooms:  make(map[string]struct{}),
	}
	r.mu.Unlock()

	r.observer.ConnectionOpened()
	r.logger.Debug(logging.Realtime, logging.Connection, "connection registered", map[logging.ExtraKey]any{
		logging.ConnectionID: id,
	})
}

func (r *Registry) lookup(id string) (*connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[id]
	return c, ok
}

// Join adds room to the connection's memberships. Joining twice is a no-op.
func (r *Registry) Join(id, room string) error {
	c, ok := r.lookup(id)
	if !ok {
		r.logger.Warn(logging.Realtime, logging.Subscription, "join for unknown connection ignored", map[logging.ExtraKey]any{
			logging.ConnectionID: id,
			logging.Room:         room,
		})
		return ErrConnectionNotFound
	}

	c.mu.Lock()
	c.rooms[room] = struct{}{}
	c.mu.Unlock()

	return nil
}

// Leave removes room from the connection's memberships. Leaving a room the
// connection is not in is a no-op.
func (r *Registry) Leave(id, room string) error {
	c, ok := r.lookup(id)
	if !ok {
		r.logger.Warn(logging.Realtime, logging.Subscription, "leave for unknown connection ignored", map[logging.ExtraKey]any{
			logging.ConnectionID: id,
			logging.Room:         room,
		})
		return ErrConnectionNotFound
	}

	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()

	return nil
}

// Unregister drops the connection and all of its memberships, then closes its
// sender. Unknown ids are ignored.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	c, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	c.mu.Lock()
	clear(c.rooms)
	c.mu.Unlock()

	_ = c.sender.Close()

	r.observer.ConnectionClosed()
	r.logger.Debug(logging.Realtime, logging.Connection, "connection unregistered", map[logging.ExtraKey]any{
		logging.ConnectionID: id,
	})
}

// MembersOf returns a snapshot of the ids currently in room.
func (r *Registry) MembersOf(room string) []string {
	r.mu.RLock()
	conns := make([]*connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	members := make([]string, 0)
	for _, c := range conns {
		if c.isMember(room) {
			members = append(members, c.id)
		}
	}

	return members
}

// RoomsOf returns the sorted memberships of a connection.
func (r *Registry) RoomsOf(id string) ([]string, error) {
	c, ok := r.lookup(id)
	if !ok {
		return nil, ErrConnectionNotFound
	}

	c.mu.Lock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.mu.Unlock()

	slices.Sort(rooms)
	return rooms, nil
}

// Deliver hands one encoded frame to a connection without blocking.
func (r *Registry) Deliver(id string, frame []byte) error {
	c, ok := r.lookup(id)
	if !ok {
		return ErrConnectionNotFound
	}
	return c.sender.Send(frame)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Close unregisters every connection.
func (r *Registry) Close() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Unregister(id)
	}
}
