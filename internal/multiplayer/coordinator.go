package multiplayer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/giapdoan01/SoulDungeonBE/internal/registry"
)

// ErrUnknownRoomType is returned when no factory is defined for a room type.
var ErrUnknownRoomType = registry.ErrUnknown

// Orchestrator creates rooms on request. Rooms depend on this interface
// only, so the matchmaking room never knows how game rooms are hosted.
type Orchestrator interface {
	// CreateRoom creates a room of roomType seeded with opts and returns
	// where to find it. On error nothing was created.
	CreateRoom(ctx context.Context, roomType string, opts RoomOptions) (Reservation, error)

	// DisposeRoom releases a room created by CreateRoom that will not be
	// used. Disposing a room that is already gone is not an error.
	DisposeRoom(ctx context.Context, id RoomID) error
}

// RoomInfo is the address of a room.
type RoomInfo struct {
	ID   RoomID `json:"id"`
	Type string `json:"type"`
}

// Seat is the credential one connection presents to join a room.
type Seat struct {
	RoomID    RoomID    `json:"roomId"`
	SessionID SessionID `json:"sessionId"`
}

// Reservation is the result of a successful CreateRoom: the room address
// and one seat per roster entry.
type Reservation struct {
	Room  RoomInfo
	Seats map[SessionID]Seat
}

// RoomFactory builds a room from creation options.
type RoomFactory = registry.Factory[Room, RoomOptions]

// Coordinator is the in-process Orchestrator. It creates rooms from
// factories registered by type name, tracks them while they run and
// forgets them once they dispose.
type Coordinator struct {
	logger    *log.Logger
	factories *registry.Registry[Room, RoomOptions]

	// createMu serialises JoinOrCreate so a singleton is created only once.
	createMu sync.Mutex

	mu         sync.RWMutex
	rooms      map[RoomID]Room
	singletons map[string]RoomID
	stopped    bool
}

// NewCoordinator creates a coordinator with no room types defined.
func NewCoordinator(logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{
		logger:     logger.With("component", "coordinator"),
		factories:  registry.New[Room, RoomOptions](),
		rooms:      make(map[RoomID]Room),
		singletons: make(map[string]RoomID),
	}
}

// Define registers a factory for roomType.
// Panics if roomType is already defined.
func (c *Coordinator) Define(roomType string, factory RoomFactory) {
	c.factories.Register(roomType, factory)
}

// DefineStandardRooms defines the matchmaking and game room types.
// Matchmaking rooms use c itself to create game rooms.
func (c *Coordinator) DefineStandardRooms(mm MatchmakingConfig, game GameConfig, sink ResultSink, deps RoomDeps) {
	c.Define(RoomTypeMatchmaking, func(opts RoomOptions) (Room, error) {
		return NewMatchmakingRoom(opts, mm, c, deps), nil
	})
	c.Define(RoomTypeGame, func(opts RoomOptions) (Room, error) {
		return NewGameRoom(opts, game, sink, deps), nil
	})
}

// RoomTypes returns the defined room type names, sorted.
func (c *Coordinator) RoomTypes() []string {
	return c.factories.List()
}

// CreateRoom creates and starts a room. Each roster entry gets a seat
// whose credential is its own session id.
func (c *Coordinator) CreateRoom(ctx context.Context, roomType string, opts RoomOptions) (Reservation, error) {
	if err := ctx.Err(); err != nil {
		return Reservation{}, err
	}
	room, err := c.create(roomType, opts)
	if err != nil {
		return Reservation{}, err
	}

	res := Reservation{
		Room:  RoomInfo{ID: room.ID(), Type: room.Type()},
		Seats: make(map[SessionID]Seat, len(opts.Roster)),
	}
	for _, e := range opts.Roster {
		res.Seats[e.SessionID] = Seat{RoomID: room.ID(), SessionID: e.SessionID}
	}
	return res, nil
}

// JoinOrCreate returns the running room of roomType, creating it first
// if there is none. Used for the single shared matchmaking room.
func (c *Coordinator) JoinOrCreate(roomType string) (Room, error) {
	c.createMu.Lock()
	defer c.createMu.Unlock()

	c.mu.RLock()
	id, ok := c.singletons[roomType]
	room := c.rooms[id]
	c.mu.RUnlock()
	if ok && room != nil {
		return room, nil
	}

	room, err := c.create(roomType, RoomOptions{})
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.singletons[roomType] = room.ID()
	c.mu.Unlock()
	return room, nil
}

func (c *Coordinator) create(roomType string, opts RoomOptions) (Room, error) {
	c.mu.RLock()
	stopped := c.stopped
	c.mu.RUnlock()
	if stopped {
		return nil, ErrCoordinatorStopped
	}

	if opts.ID == "" {
		opts.ID = RoomID(uuid.NewString())
	}
	room, err := c.factories.Create(roomType, opts)
	if err != nil {
		return nil, fmt.Errorf("multiplayer: create %s room: %w", roomType, err)
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		room.Dispose()
		return nil, ErrCoordinatorStopped
	}
	if _, exists := c.rooms[room.ID()]; exists {
		c.mu.Unlock()
		room.Dispose()
		return nil, fmt.Errorf("multiplayer: room %s already exists", room.ID())
	}
	c.rooms[room.ID()] = room
	c.mu.Unlock()

	room.Start()
	go c.watch(room)

	c.logger.Info("room created", "room", room.ID(), "type", roomType, "roster", len(opts.Roster))
	return room, nil
}

// watch forgets a room once it disposes.
func (c *Coordinator) watch(room Room) {
	<-room.Done()

	c.mu.Lock()
	delete(c.rooms, room.ID())
	if c.singletons[room.Type()] == room.ID() {
		delete(c.singletons, room.Type())
	}
	c.mu.Unlock()

	c.logger.Info("room removed", "room", room.ID(), "type", room.Type())
}

// Get returns a running room by id.
func (c *Coordinator) Get(id RoomID) (Room, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	room, ok := c.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	return room, nil
}

// DisposeRoom disposes a running room. The watcher removes it once its
// loop has stopped.
func (c *Coordinator) DisposeRoom(_ context.Context, id RoomID) error {
	c.mu.RLock()
	room, ok := c.rooms[id]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	room.Dispose()
	c.logger.Info("room released", "room", id)
	return nil
}

// List returns stats for every running room, oldest first.
func (c *Coordinator) List() []RoomStats {
	c.mu.RLock()
	out := make([]RoomStats, 0, len(c.rooms))
	for _, room := range c.rooms {
		out = append(out, room.Stats())
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// RoomCount returns the number of running rooms.
func (c *Coordinator) RoomCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rooms)
}

// Stop disposes every room. Later CreateRoom calls fail with ErrCoordinatorStopped.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	rooms := make([]Room, 0, len(c.rooms))
	for _, room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.mu.Unlock()

	for _, room := range rooms {
		room.Dispose()
	}
	c.logger.Info("coordinator stopped", "rooms", len(rooms))
}

// LogResultSink reports finished matches to a logger.
type LogResultSink struct {
	Logger *log.Logger
}

// MatchFinished logs the result.
func (s LogResultSink) MatchFinished(_ context.Context, result MatchResult) error {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Info("match result",
		"room", result.RoomID,
		"winner", result.Winner,
		"teamA", result.TeamAKills,
		"teamB", result.TeamBKills,
		"duration", result.EndedAt.Sub(result.StartedAt).Round(time.Second),
	)
	return nil
}
