package multiplayer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/giapdoan01/SoulDungeonBE/internal/core"
	"github.com/giapdoan01/SoulDungeonBE/internal/state"
)

// Room is one running session instance: the matchmaking pool or a match.
// All methods are safe to call from any goroutine.
type Room interface {
	ID() RoomID
	Type() string

	// Join attaches a connection. A non-nil error is a terminal refusal of
	// this join attempt only.
	Join(ctx context.Context, conn SessionHandle, opts JoinOptions) error

	// Leave detaches the session's connection. Always safe, even after
	// disposal.
	Leave(id SessionID)

	// Detach is Leave for one particular connection. It does nothing if
	// conn has since been replaced by a newer connection for the session.
	Detach(conn SessionHandle)

	// Dispatch delivers a decoded client message from a connection.
	Dispatch(id SessionID, msg ClientMessage)

	// Start launches the room loop. Calling it more than once is a no-op.
	Start()

	// Dispose stops the room and cancels its pending deferred work.
	Dispose()

	// Done is closed once the room has been disposed.
	Done() <-chan struct{}

	Stats() RoomStats
}

// roomBase carries what every room kind shares: the actor loop, the
// connection registry, the replicated document and a stats snapshot that
// other goroutines can read without entering the loop.
type roomBase struct {
	*actor

	id        RoomID
	kind      string
	clients   *SessionRegistry
	doc       *state.Document
	logger    *log.Logger
	clock     core.Clock
	createdAt time.Time

	startOnce sync.Once
	stats     atomic.Pointer[RoomStats]
	statsFn   func() RoomStats
}

func newRoomBase(id RoomID, kind string, tickInterval time.Duration, deps RoomDeps) *roomBase {
	deps = deps.withDefaults()
	logger := deps.Logger.With("room", string(id), "type", kind)

	r := &roomBase{
		actor:     newActor(logger, tickInterval),
		id:        id,
		kind:      kind,
		clients:   NewSessionRegistry(),
		doc:       state.NewDocument(),
		logger:    logger,
		clock:     deps.Clock,
		createdAt: deps.Clock.Now(),
	}
	r.afterEach = r.publish
	r.onStop = func() { logger.Info("room disposed") }
	r.stats.Store(&RoomStats{ID: id, Type: kind, CreatedAt: r.createdAt})
	return r
}

func (r *roomBase) ID() RoomID   { return r.id }
func (r *roomBase) Type() string { return r.kind }

func (r *roomBase) Start() {
	r.startOnce.Do(func() {
		r.logger.Info("room started")
		go r.run()
	})
}

func (r *roomBase) Dispose() {
	r.stop()
}

// Stats returns the snapshot taken after the last handled message or tick.
func (r *roomBase) Stats() RoomStats {
	return *r.stats.Load()
}

// publish flushes pending document changes to every connection and
// refreshes the stats snapshot. Runs on the room goroutine after each
// handled message, callback and tick.
func (r *roomBase) publish() {
	if patch, ok := r.doc.Flush(); ok {
		r.clients.Broadcast(StatePatchEvent{Patch: patch})
	}
	if r.statsFn != nil {
		s := r.statsFn()
		r.stats.Store(&s)
	}
}

// attach registers conn and sends it the full document. Pending changes
// go out to the existing connections first, so the newcomer sees only
// patches newer than its snapshot.
func (r *roomBase) attach(conn SessionHandle) {
	r.publish()
	if prev := r.clients.Register(conn); prev != nil {
		r.logger.Info("connection replaced", "session", conn.ID())
		prev.Send(ErrorEvent{Message: "session opened elsewhere"})
		prev.Close()
	}
	conn.Send(StateSnapshotEvent{Version: r.doc.Version(), State: r.doc.Snapshot()})
}

func (r *roomBase) baseStats(status string) RoomStats {
	return RoomStats{
		ID:        r.id,
		Type:      r.kind,
		Clients:   r.clients.Count(),
		Status:    status,
		CreatedAt: r.createdAt,
	}
}
