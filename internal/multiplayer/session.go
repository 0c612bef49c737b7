package multiplayer

import (
	"slices"
	"sync"
)

// SessionHandle is one live connection as seen by a room. Rooms never
// touch the transport directly.
type SessionHandle interface {
	// ID returns the session the connection belongs to.
	ID() SessionID

	// Send queues evt for delivery. It must not block.
	Send(evt ServerEvent)

	// Close asks the transport to end the connection. Queued events are
	// still delivered where the transport can manage it.
	Close()

	// Done is closed when the connection ends.
	Done() <-chan struct{}
}

// ChannelSession is an in-process SessionHandle backed by a buffered
// channel. When the buffer is full the oldest event is discarded.
type ChannelSession struct {
	id     SessionID
	events chan ServerEvent

	closeOnce sync.Once
	done      chan struct{}
}

// NewChannelSession creates a handle buffering up to size events.
func NewChannelSession(id SessionID, size int) *ChannelSession {
	if size < 1 {
		size = 64
	}
	return &ChannelSession{
		id:     id,
		events: make(chan ServerEvent, size),
		done:   make(chan struct{}),
	}
}

func (s *ChannelSession) ID() SessionID { return s.id }

// Send enqueues evt, evicting the oldest buffered event if needed.
// Events sent after Close are discarded.
func (s *ChannelSession) Send(evt ServerEvent) {
	select {
	case <-s.done:
		return
	default:
	}

	for range 2 {
		select {
		case s.events <- evt:
			return
		default:
		}
		select {
		case <-s.events:
		default:
		}
	}
}

// Events is the receive side of the buffer.
func (s *ChannelSession) Events() <-chan ServerEvent { return s.events }

func (s *ChannelSession) Done() <-chan struct{} { return s.done }

// Close is idempotent.
func (s *ChannelSession) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// SessionRegistry holds the connections attached to one room, at most
// one per session. It decides who receives broadcasts.
type SessionRegistry struct {
	mu    sync.RWMutex
	peers map[SessionID]SessionHandle
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{peers: make(map[SessionID]SessionHandle)}
}

// Register attaches conn under its session id and returns the handle it
// displaced, or nil.
func (r *SessionRegistry) Register(conn SessionHandle) SessionHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.peers[conn.ID()]
	r.peers[conn.ID()] = conn
	if prev == conn {
		return nil
	}
	return prev
}

// Unregister detaches whatever handle id currently has.
func (r *SessionRegistry) Unregister(id SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, id)
}

// Release detaches conn only if it is still the registered handle for
// its session. A connection that was replaced by a newer one releases
// nothing.
func (r *SessionRegistry) Release(conn SessionHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.peers[conn.ID()] != conn {
		return false
	}
	delete(r.peers, conn.ID())
	return true
}

func (r *SessionRegistry) Get(id SessionID) (SessionHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.peers[id]
	return conn, ok
}

func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// IDs returns the attached session ids in ascending order.
func (r *SessionRegistry) IDs() []SessionID {
	r.mu.RLock()
	ids := make([]SessionID, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// Send delivers evt to id's connection and reports whether one exists.
func (r *SessionRegistry) Send(id SessionID, evt ServerEvent) bool {
	conn, ok := r.Get(id)
	if ok {
		conn.Send(evt)
	}
	return ok
}

// Broadcast delivers evt to every attached connection. The lock is not
// held while sending.
func (r *SessionRegistry) Broadcast(evt ServerEvent) {
	r.mu.RLock()
	targets := make([]SessionHandle, 0, len(r.peers))
	for _, conn := range r.peers {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	for _, conn := range targets {
		conn.Send(evt)
	}
}
