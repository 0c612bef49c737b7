package multiplayer

import (
	"context"
	"sort"
	"time"

	"github.com/giapdoan01/SoulDungeonBE/internal/core"
	"github.com/giapdoan01/SoulDungeonBE/internal/state"
)

// MatchSize is the number of queued connections grouped into one match.
const MatchSize = 4

// PlayerStatus is a matchmaking connection's position in the queue lifecycle.
type PlayerStatus string

const (
	StatusIdle      PlayerStatus = "idle"
	StatusSearching PlayerStatus = "searching"
	StatusMatched   PlayerStatus = "matched"
)

// MatchmakingPlayer is the waiting-room record of one connection.
type MatchmakingPlayer struct {
	SessionID   SessionID    `json:"sessionId"`
	DisplayName string       `json:"displayName"`
	Level       int          `json:"level"`
	Status      PlayerStatus `json:"status"`
	LastPingMs  float64      `json:"lastPingMs"`
}

// QueueEntry is one connection waiting for a match.
// Seq orders entries that share a JoinedAt timestamp.
type QueueEntry struct {
	SessionID SessionID `json:"sessionId"`
	JoinedAt  time.Time `json:"joinedAt"`
	Rating    int       `json:"rating"`
	Seq       uint64    `json:"seq"`
}

// Rating derives a matchmaking rating from a player level.
// Selection does not use it yet; it is kept on the entry for skill-based
// matching.
func Rating(level int) int {
	if level < 1 {
		level = 1
	}
	return 1000 + 50*(level-1)
}

// MatchmakingConfig tunes a MatchmakingRoom.
type MatchmakingConfig struct {
	TickInterval  time.Duration // How often matchTick runs
	GameRoomType  string        // Room type requested from the orchestrator
	CreateTimeout time.Duration // Upper bound on one CreateRoom call
}

// DefaultMatchmakingConfig returns sensible defaults.
func DefaultMatchmakingConfig() MatchmakingConfig {
	return MatchmakingConfig{
		TickInterval:  time.Second,
		GameRoomType:  RoomTypeGame,
		CreateTimeout: 10 * time.Second,
	}
}

// MatchmakingRoom owns the waiting population and the queue, and groups
// queued connections into matches on every tick.
type MatchmakingRoom struct {
	*roomBase

	config       MatchmakingConfig
	orchestrator Orchestrator

	players *state.Map[MatchmakingPlayer]
	queue   *state.Map[QueueEntry]

	// reserved holds entries selected for a match whose creation is in flight.
	reserved map[SessionID]bool
	nextSeq  uint64
}

// NewMatchmakingRoom creates a matchmaking room. Call Start to run it.
func NewMatchmakingRoom(opts RoomOptions, cfg MatchmakingConfig, orchestrator Orchestrator, deps RoomDeps) *MatchmakingRoom {
	def := DefaultMatchmakingConfig()
	if cfg.GameRoomType == "" {
		cfg.GameRoomType = def.GameRoomType
	}
	if cfg.CreateTimeout <= 0 {
		cfg.CreateTimeout = def.CreateTimeout
	}

	m := &MatchmakingRoom{
		roomBase:     newRoomBase(opts.ID, RoomTypeMatchmaking, cfg.TickInterval, deps),
		config:       cfg,
		orchestrator: orchestrator,
		reserved:     make(map[SessionID]bool),
	}
	m.players = state.NewMap[MatchmakingPlayer](m.doc, "players")
	m.queue = state.NewMap[QueueEntry](m.doc, "queue")
	m.onTick = m.matchTick
	m.statsFn = m.snapshotStats
	return m
}

// Join adds a connection to the waiting population.
func (m *MatchmakingRoom) Join(ctx context.Context, conn SessionHandle, opts JoinOptions) error {
	return m.call(ctx, func() error {
		m.join(conn, opts)
		return nil
	})
}

// Leave removes a connection and any queue entry it owns.
func (m *MatchmakingRoom) Leave(id SessionID) {
	m.post(func() { m.leave(id) })
}

// Detach is Leave for conn, if it is still the session's connection.
func (m *MatchmakingRoom) Detach(conn SessionHandle) {
	m.post(func() {
		if m.clients.Release(conn) {
			m.leave(conn.ID())
		}
	})
}

// Dispatch handles a client message from a connection.
func (m *MatchmakingRoom) Dispatch(id SessionID, msg ClientMessage) {
	m.post(func() { m.handle(id, msg) })
}

func (m *MatchmakingRoom) handle(id SessionID, msg ClientMessage) {
	switch msg := msg.(type) {
	case QueueJoinMsg:
		m.enqueue(id)
	case QueueLeaveMsg:
		m.dequeue(id)
	case PingMsg:
		m.ping(id, msg)
	default:
		m.logger.Debug("ignoring message", "session", id, "msg", msg)
	}
}

func (m *MatchmakingRoom) join(conn SessionHandle, opts JoinOptions) {
	id := conn.ID()
	key := string(id)

	if !m.players.Update(key, func(p *MatchmakingPlayer) {
		p.DisplayName = opts.DisplayName
		p.Level = opts.Level
	}) {
		m.players.Set(key, MatchmakingPlayer{
			SessionID:   id,
			DisplayName: opts.DisplayName,
			Level:       opts.Level,
			Status:      StatusIdle,
		})
	}

	m.attach(conn)
	conn.Send(WelcomeEvent{
		RoomID:      m.id,
		SessionID:   id,
		DisplayName: opts.DisplayName,
		Level:       opts.Level,
	})
	m.logger.Info("player joined", "session", id, "name", opts.DisplayName, "level", opts.Level)
}

func (m *MatchmakingRoom) enqueue(id SessionID) {
	key := string(id)
	player, ok := m.players.Get(key)
	if !ok {
		m.logger.Warn("enqueue from unknown session", "session", id)
		return
	}
	if m.queue.Has(key) {
		m.clients.Send(id, ErrorEvent{Message: "already in queue"})
		return
	}

	m.nextSeq++
	m.queue.Set(key, QueueEntry{
		SessionID: id,
		JoinedAt:  m.clock.Now(),
		Rating:    Rating(player.Level),
		Seq:       m.nextSeq,
	})
	m.players.Update(key, func(p *MatchmakingPlayer) { p.Status = StatusSearching })
	m.clients.Send(id, QueueJoinedEvent{Position: m.queue.Len()})
	m.logger.Debug("player queued", "session", id, "queue", m.queue.Len())
}

func (m *MatchmakingRoom) dequeue(id SessionID) {
	key := string(id)
	if !m.queue.Delete(key) {
		return
	}
	delete(m.reserved, id)
	m.players.Update(key, func(p *MatchmakingPlayer) { p.Status = StatusIdle })
	m.clients.Send(id, QueueLeftEvent{})
	m.logger.Debug("player left queue", "session", id)
}

func (m *MatchmakingRoom) leave(id SessionID) {
	key := string(id)
	m.queue.Delete(key)
	delete(m.reserved, id)
	m.players.Delete(key)
	m.clients.Unregister(id)
	m.logger.Info("player left", "session", id)
}

func (m *MatchmakingRoom) ping(id SessionID, msg PingMsg) {
	if msg.Ms == nil || !core.IsFinite(*msg.Ms) || *msg.Ms < 0 {
		return
	}
	m.players.Update(string(id), func(p *MatchmakingPlayer) { p.LastPingMs = *msg.Ms })
}

// matchTick forms at most one match per tick from the oldest queued
// entries. The orchestrator call runs off the room goroutine and its
// result is posted back through the mailbox.
func (m *MatchmakingRoom) matchTick() {
	if m.queue.Len() < MatchSize {
		return
	}
	group := m.selectGroup()
	if len(group) < MatchSize {
		return
	}

	roster := make([]RosterEntry, 0, len(group))
	for _, e := range group {
		m.reserved[e.SessionID] = true
		p, _ := m.players.Get(string(e.SessionID))
		roster = append(roster, RosterEntry{SessionID: e.SessionID, DisplayName: p.DisplayName})
	}
	m.logger.Info("forming match", "players", len(roster))

	ctx, cancel := context.WithTimeout(m.ctx, m.config.CreateTimeout)
	go func() {
		defer cancel()
		res, err := m.orchestrator.CreateRoom(ctx, m.config.GameRoomType, RoomOptions{Roster: roster})
		if !m.post(func() { m.onMatchCreated(group, res, err) }) && err == nil {
			m.logger.Warn("matchmaking closed before match could be announced", "game", res.Room.ID)
		}
	}()
}

// selectGroup returns up to MatchSize unreserved entries, oldest first.
// Entries whose player is gone are dropped from the queue on the way.
func (m *MatchmakingRoom) selectGroup() []QueueEntry {
	entries := sortQueue(m.queue.Values())

	group := make([]QueueEntry, 0, MatchSize)
	for _, e := range entries {
		if m.reserved[e.SessionID] {
			continue
		}
		if !m.players.Has(string(e.SessionID)) {
			m.queue.Delete(string(e.SessionID))
			m.logger.Warn("dropped orphaned queue entry", "session", e.SessionID)
			continue
		}
		group = append(group, e)
		if len(group) == MatchSize {
			break
		}
	}
	return group
}

// sortQueue orders entries by arrival: JoinedAt, then Seq.
func sortQueue(entries []QueueEntry) []QueueEntry {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].JoinedAt.Equal(entries[j].JoinedAt) {
			return entries[i].JoinedAt.Before(entries[j].JoinedAt)
		}
		return entries[i].Seq < entries[j].Seq
	})
	return entries
}

// onMatchCreated announces a created match. If any member of the group
// left or dequeued while the room was being created, the room is
// released and the remaining entries stay queued as they were.
func (m *MatchmakingRoom) onMatchCreated(group []QueueEntry, res Reservation, err error) {
	for _, e := range group {
		delete(m.reserved, e.SessionID)
	}
	if err != nil {
		m.logger.Error("create game room failed, keeping entries queued", "err", err)
		return
	}

	for _, e := range group {
		if !m.queue.Has(string(e.SessionID)) {
			m.logger.Warn("matched player no longer queued, releasing game room",
				"session", e.SessionID, "game", res.Room.ID)
			m.releaseRoom(res.Room.ID)
			return
		}
	}

	for _, e := range group {
		key := string(e.SessionID)
		m.queue.Delete(key)
		m.players.Update(key, func(p *MatchmakingPlayer) { p.Status = StatusMatched })

		seat := e.SessionID
		if s, ok := res.Seats[e.SessionID]; ok {
			seat = s.SessionID
		}
		m.clients.Send(e.SessionID, MatchFoundEvent{
			RoomID:    res.Room.ID,
			RoomType:  res.Room.Type,
			SessionID: seat,
		})
	}
	m.logger.Info("match formed", "game", res.Room.ID)
}

// releaseRoom asks the orchestrator to dispose an unused game room.
func (m *MatchmakingRoom) releaseRoom(id RoomID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.config.CreateTimeout)
		defer cancel()
		if err := m.orchestrator.DisposeRoom(ctx, id); err != nil {
			m.logger.Error("release game room failed", "game", id, "err", err)
		}
	}()
}

func (m *MatchmakingRoom) snapshotStats() RoomStats {
	s := m.baseStats("open")
	s.Queue = m.queue.Len()
	return s
}

// Queue returns the queued entries, oldest first.
// Blocks until the room loop serves the request.
func (m *MatchmakingRoom) Queue(ctx context.Context) ([]QueueEntry, error) {
	var out []QueueEntry
	err := m.call(ctx, func() error {
		out = sortQueue(m.queue.Values())
		return nil
	})
	return out, err
}

// Player returns the waiting-room record of a connection.
func (m *MatchmakingRoom) Player(ctx context.Context, id SessionID) (MatchmakingPlayer, bool, error) {
	var (
		p  MatchmakingPlayer
		ok bool
	)
	err := m.call(ctx, func() error {
		p, ok = m.players.Get(string(id))
		return nil
	})
	return p, ok, err
}
