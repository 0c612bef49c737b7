package multiplayer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giapdoan01/SoulDungeonBE/internal/core"
)

type mmFixture struct {
	room  *MatchmakingRoom
	orch  *fakeOrchestrator
	clock *core.ManualClock
	conns map[string]*ChannelSession
}

func newMMFixture(t *testing.T) *mmFixture {
	t.Helper()
	clock := core.NewManualClock(testEpoch)
	orch := &fakeOrchestrator{}
	cfg := MatchmakingConfig{TickInterval: 0, GameRoomType: RoomTypeGame, CreateTimeout: time.Second}
	room := NewMatchmakingRoom(RoomOptions{ID: "mm"}, cfg, orch, testDeps(clock))
	room.Start()
	t.Cleanup(room.Dispose)
	return &mmFixture{room: room, orch: orch, clock: clock, conns: make(map[string]*ChannelSession)}
}

func (f *mmFixture) join(t *testing.T, id string, level int) *ChannelSession {
	t.Helper()
	conn := newConn(id)
	require.NoError(t, f.room.Join(context.Background(), conn, JoinOptions{DisplayName: "name-" + id, Level: level}))
	f.conns[id] = conn
	return conn
}

// enqueue queues id and advances the clock so arrival times are distinct.
func (f *mmFixture) enqueue(t *testing.T, id string) {
	t.Helper()
	f.room.Dispatch(SessionID(id), QueueJoinMsg{})
	settle(t, f.room.roomBase)
	f.clock.Advance(time.Second)
}

func (f *mmFixture) tick(t *testing.T) {
	t.Helper()
	inRoom(t, f.room.roomBase, f.room.matchTick)
}

func (f *mmFixture) queueIDs(t *testing.T) []SessionID {
	t.Helper()
	entries, err := f.room.Queue(context.Background())
	require.NoError(t, err)
	ids := make([]SessionID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.SessionID)
	}
	return ids
}

func (f *mmFixture) reservedCount(t *testing.T) int {
	t.Helper()
	var n int
	inRoom(t, f.room.roomBase, func() { n = len(f.room.reserved) })
	return n
}

// assertNoOrphans checks that every queue entry has a player record.
func (f *mmFixture) assertNoOrphans(t *testing.T) {
	t.Helper()
	inRoom(t, f.room.roomBase, func() {
		for _, e := range f.room.queue.Values() {
			assert.True(t, f.room.players.Has(string(e.SessionID)), "orphaned entry %s", e.SessionID)
		}
	})
}

func TestMatchmakingJoinSendsSnapshotAndWelcome(t *testing.T) {
	f := newMMFixture(t)
	conn := f.join(t, "p1", 3)

	snap := nextEvent[StateSnapshotEvent](t, conn)
	assert.Contains(t, snap.State, "players")
	assert.Contains(t, snap.State, "queue")

	welcome := nextEvent[WelcomeEvent](t, conn)
	assert.Equal(t, RoomID("mm"), welcome.RoomID)
	assert.Equal(t, SessionID("p1"), welcome.SessionID)
	assert.Equal(t, "name-p1", welcome.DisplayName)
	assert.Equal(t, 3, welcome.Level)

	p, ok, err := f.room.Player(context.Background(), "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusIdle, p.Status)
}

func TestMatchmakingJoinIsIdempotent(t *testing.T) {
	f := newMMFixture(t)
	f.join(t, "p1", 1)
	f.enqueue(t, "p1")

	f.join(t, "p1", 4)

	p, ok, err := f.room.Player(context.Background(), "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusSearching, p.Status)
	assert.Equal(t, 4, p.Level)
	assert.Equal(t, []SessionID{"p1"}, f.queueIDs(t))
}

func TestMatchmakingReconnectReplacesConnection(t *testing.T) {
	f := newMMFixture(t)
	old := f.join(t, "p1", 1)
	f.enqueue(t, "p1")
	drain(old)

	fresh := f.join(t, "p1", 1)
	assert.Equal(t, "session opened elsewhere", nextEvent[ErrorEvent](t, old).Message)
	select {
	case <-old.Done():
	default:
		t.Fatal("replaced connection was not closed")
	}

	// The stale connection going away must not detach the new one.
	f.room.Detach(old)
	settle(t, f.room.roomBase)
	assert.Equal(t, []SessionID{"p1"}, f.queueIDs(t))
	assert.Equal(t, 1, f.room.Stats().Clients)

	f.room.Detach(fresh)
	settle(t, f.room.roomBase)
	assert.Empty(t, f.queueIDs(t))
	assert.Equal(t, 0, f.room.Stats().Clients)
}

func TestMatchmakingEnqueue(t *testing.T) {
	f := newMMFixture(t)
	conn := f.join(t, "p1", 3)
	drain(conn)

	f.enqueue(t, "p1")
	joined := nextEvent[QueueJoinedEvent](t, conn)
	assert.Equal(t, 1, joined.Position)

	entries, err := f.room.Queue(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	first := entries[0]
	assert.Equal(t, testEpoch, first.JoinedAt)
	assert.Equal(t, Rating(3), first.Rating)

	p, _, err := f.room.Player(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, StatusSearching, p.Status)

	// Re-enqueue is rejected and keeps the original arrival.
	f.enqueue(t, "p1")
	rejected := nextEvent[ErrorEvent](t, conn)
	assert.Equal(t, "already in queue", rejected.Message)

	entries, err = f.room.Queue(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, first, entries[0])
}

func TestMatchmakingEnqueueUnknownSession(t *testing.T) {
	f := newMMFixture(t)
	f.enqueue(t, "ghost")
	assert.Empty(t, f.queueIDs(t))
}

func TestMatchmakingDequeue(t *testing.T) {
	f := newMMFixture(t)
	conn := f.join(t, "p1", 1)
	f.enqueue(t, "p1")
	drain(conn)

	f.room.Dispatch("p1", QueueLeaveMsg{})
	nextEvent[QueueLeftEvent](t, conn)
	assert.Empty(t, f.queueIDs(t))

	p, _, err := f.room.Player(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, p.Status)

	// Not queued: no-op.
	f.room.Dispatch("p1", QueueLeaveMsg{})
	settle(t, f.room.roomBase)
	assert.Empty(t, f.queueIDs(t))
}

func TestMatchmakingPing(t *testing.T) {
	f := newMMFixture(t)
	f.join(t, "p1", 1)

	tests := []struct {
		name string
		ms   *float64
		want float64
	}{
		{name: "valid", ms: ptr(42.0), want: 42},
		{name: "missing", ms: nil, want: 42},
		{name: "negative", ms: ptr(-1.0), want: 42},
		{name: "zero", ms: ptr(0.0), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.room.Dispatch("p1", PingMsg{Ms: tt.ms})
			p, _, err := f.room.Player(context.Background(), "p1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.LastPingMs)
		})
	}
}

func TestMatchmakingLeaveRemovesEntry(t *testing.T) {
	f := newMMFixture(t)
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("p%d", i)
		f.join(t, id, 1)
		f.enqueue(t, id)
	}
	f.room.Leave("p2")
	f.room.Leave("nobody")
	settle(t, f.room.roomBase)

	assert.Equal(t, []SessionID{"p1", "p3"}, f.queueIDs(t))
	_, ok, err := f.room.Player(context.Background(), "p2")
	require.NoError(t, err)
	assert.False(t, ok)
	f.assertNoOrphans(t)
}

func TestMatchTickBelowMatchSize(t *testing.T) {
	f := newMMFixture(t)
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("p%d", i)
		f.join(t, id, 1)
		f.enqueue(t, id)
	}
	f.tick(t)
	settle(t, f.room.roomBase)

	assert.Equal(t, 0, f.orch.callCount())
	assert.Len(t, f.queueIDs(t), 3)
}

func TestMatchTickSelectsOldestFour(t *testing.T) {
	f := newMMFixture(t)
	// Join in reverse so key order differs from arrival order.
	for i := 5; i >= 1; i-- {
		f.join(t, fmt.Sprintf("p%d", i), 1)
	}
	for _, id := range []string{"p3", "p1", "p5", "p2", "p4"} {
		f.enqueue(t, id)
	}

	f.tick(t)
	require.Eventually(t, func() bool { return len(f.queueIDs(t)) == 1 }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []SessionID{"p4"}, f.queueIDs(t))
	require.Equal(t, 1, f.orch.callCount())
	assert.Equal(t, []SessionID{"p3", "p1", "p5", "p2"}, f.orch.roster(0))

	for _, id := range []string{"p3", "p1", "p5", "p2"} {
		found := nextEvent[MatchFoundEvent](t, f.conns[id])
		assert.Equal(t, RoomID("game-1"), found.RoomID)
		assert.Equal(t, RoomTypeGame, found.RoomType)
		assert.Equal(t, SessionID(id), found.SessionID)

		p, _, err := f.room.Player(context.Background(), SessionID(id))
		require.NoError(t, err)
		assert.Equal(t, StatusMatched, p.Status)
	}

	p, _, err := f.room.Player(context.Background(), "p4")
	require.NoError(t, err)
	assert.Equal(t, StatusSearching, p.Status)
}

func TestMatchTickTieBreaksOnArrival(t *testing.T) {
	f := newMMFixture(t)
	for _, id := range []string{"d", "c", "b", "a", "e"} {
		f.join(t, id, 1)
		// Same timestamp for everyone.
		f.room.Dispatch(SessionID(id), QueueJoinMsg{})
	}
	settle(t, f.room.roomBase)

	f.tick(t)
	require.Eventually(t, func() bool { return f.orch.callCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []SessionID{"d", "c", "b", "a"}, f.orch.roster(0))
}

func TestMatchTickSkipsOrphans(t *testing.T) {
	f := newMMFixture(t)
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("p%d", i)
		f.join(t, id, 1)
		f.enqueue(t, id)
	}
	// Force an orphan that bypassed leave.
	inRoom(t, f.room.roomBase, func() { f.room.players.Delete("p2") })

	f.tick(t)
	settle(t, f.room.roomBase)
	assert.Equal(t, 0, f.orch.callCount())
	assert.Equal(t, []SessionID{"p1", "p3", "p4"}, f.queueIDs(t))
	f.assertNoOrphans(t)

	f.join(t, "p5", 1)
	f.enqueue(t, "p5")
	f.tick(t)
	require.Eventually(t, func() bool { return len(f.queueIDs(t)) == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []SessionID{"p1", "p3", "p4", "p5"}, f.orch.roster(0))
}

func TestMatchTickKeepsEntriesOnFailure(t *testing.T) {
	f := newMMFixture(t)
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("p%d", i)
		f.join(t, id, 1)
		f.enqueue(t, id)
	}
	before, err := f.room.Queue(context.Background())
	require.NoError(t, err)

	f.orch.setErr(errors.New("no capacity"))
	f.tick(t)
	require.Eventually(t, func() bool {
		return f.orch.callCount() == 1 && f.reservedCount(t) == 0
	}, 2*time.Second, 5*time.Millisecond)

	after, err := f.room.Queue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, after)
	for i := 1; i <= 4; i++ {
		p, _, err := f.room.Player(context.Background(), SessionID(fmt.Sprintf("p%d", i)))
		require.NoError(t, err)
		assert.Equal(t, StatusSearching, p.Status)
	}

	// Next tick retries with the same group.
	f.orch.setErr(nil)
	f.tick(t)
	require.Eventually(t, func() bool { return len(f.queueIDs(t)) == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, f.orch.callCount())
	assert.Equal(t, []SessionID{"p1", "p2", "p3", "p4"}, f.orch.roster(1))
}

func TestMatchTickReservesInFlightGroup(t *testing.T) {
	f := newMMFixture(t)
	f.orch.block = make(chan struct{})
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("p%d", i)
		f.join(t, id, 1)
		f.enqueue(t, id)
	}

	f.tick(t)
	f.tick(t)
	assert.Equal(t, 4, f.reservedCount(t))

	close(f.orch.block)
	require.Eventually(t, func() bool { return len(f.queueIDs(t)) == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.orch.callCount())
	assert.Equal(t, 0, f.reservedCount(t))
}

func TestMatchTickLeaveWhileInFlight(t *testing.T) {
	f := newMMFixture(t)
	f.orch.block = make(chan struct{})
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("p%d", i)
		f.join(t, id, 1)
		f.enqueue(t, id)
	}
	before, err := f.room.Queue(context.Background())
	require.NoError(t, err)
	f.tick(t)

	f.room.Leave("p4")
	settle(t, f.room.roomBase)
	close(f.orch.block)

	require.Eventually(t, func() bool {
		return len(f.orch.disposedRooms()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []RoomID{"game-1"}, f.orch.disposedRooms())
	assert.Equal(t, 0, f.reservedCount(t))

	for _, id := range []string{"p1", "p2", "p3"} {
		assert.Zero(t, countEvents[MatchFoundEvent](f.conns[id]), "match:found sent to %s", id)
		p, _, err := f.room.Player(context.Background(), SessionID(id))
		require.NoError(t, err)
		assert.Equal(t, StatusSearching, p.Status)
	}
	after, err := f.room.Queue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before[:3], after)
	f.assertNoOrphans(t)

	// A fourth arrival completes the group on the next tick.
	f.join(t, "p5", 1)
	f.enqueue(t, "p5")
	f.tick(t)
	for _, id := range []string{"p1", "p2", "p3", "p5"} {
		found := nextEvent[MatchFoundEvent](t, f.conns[id])
		assert.Equal(t, RoomID("game-2"), found.RoomID)
	}
	assert.Equal(t, []SessionID{"p1", "p2", "p3", "p5"}, f.orch.roster(1))
	assert.Empty(t, f.queueIDs(t))
}

func TestMatchTickDequeueWhileInFlight(t *testing.T) {
	f := newMMFixture(t)
	f.orch.block = make(chan struct{})
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("p%d", i)
		f.join(t, id, 1)
		f.enqueue(t, id)
	}
	before, err := f.room.Queue(context.Background())
	require.NoError(t, err)
	f.tick(t)

	f.room.Dispatch("p2", QueueLeaveMsg{})
	settle(t, f.room.roomBase)
	close(f.orch.block)

	require.Eventually(t, func() bool {
		return len(f.orch.disposedRooms()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		assert.Zero(t, countEvents[MatchFoundEvent](f.conns[id]), "match:found sent to %s", id)
	}

	after, err := f.room.Queue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []QueueEntry{before[0], before[2], before[3]}, after)

	p, _, err := f.room.Player(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, p.Status)
}

func TestRating(t *testing.T) {
	tests := []struct {
		level int
		want  int
	}{
		{level: 1, want: 1000},
		{level: 2, want: 1050},
		{level: 10, want: 1450},
		{level: 0, want: 1000},
		{level: -3, want: 1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Rating(tt.level), "level %d", tt.level)
	}
}
