package multiplayer

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/giapdoan01/SoulDungeonBE/internal/core"
)

var testEpoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testDeps(clock core.Clock) RoomDeps {
	return RoomDeps{Logger: log.New(io.Discard), Clock: clock}
}

// settle waits until every message posted to r before this call has been handled.
func settle(t *testing.T, r *roomBase) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.call(ctx, func() error { return nil }))
}

// inRoom runs fn on the room goroutine.
func inRoom(t *testing.T, r *roomBase, fn func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.call(ctx, func() error {
		fn()
		return nil
	}))
}

func newConn(id string) *ChannelSession {
	return NewChannelSession(SessionID(id), 512)
}

// nextEvent reads events from s until one of type T arrives.
func nextEvent[T ServerEvent](t *testing.T, s *ChannelSession) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-s.Events():
			if e, ok := evt.(T); ok {
				return e
			}
		case <-deadline:
			var zero T
			t.Fatalf("session %s: timed out waiting for %T", s.ID(), zero)
			return zero
		}
	}
}

// countEvents drains s and counts the buffered events of type T.
func countEvents[T ServerEvent](s *ChannelSession) int {
	n := 0
	for {
		select {
		case evt := <-s.Events():
			if _, ok := evt.(T); ok {
				n++
			}
		default:
			return n
		}
	}
}

// drain discards every buffered event.
func drain(s *ChannelSession) {
	for {
		select {
		case <-s.Events():
		default:
			return
		}
	}
}

type fakeOrchestrator struct {
	mu      sync.Mutex
	err     error
	block   chan struct{}
	started  int
	calls    [][]RosterEntry
	disposed []RoomID
}

func (f *fakeOrchestrator) CreateRoom(ctx context.Context, roomType string, opts RoomOptions) (Reservation, error) {
	f.mu.Lock()
	f.started++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return Reservation{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts.Roster)
	if f.err != nil {
		return Reservation{}, f.err
	}

	id := RoomID(fmt.Sprintf("game-%d", len(f.calls)))
	res := Reservation{
		Room:  RoomInfo{ID: id, Type: roomType},
		Seats: make(map[SessionID]Seat, len(opts.Roster)),
	}
	for _, e := range opts.Roster {
		res.Seats[e.SessionID] = Seat{RoomID: id, SessionID: e.SessionID}
	}
	return res, nil
}

func (f *fakeOrchestrator) DisposeRoom(_ context.Context, id RoomID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disposed = append(f.disposed, id)
	return nil
}

func (f *fakeOrchestrator) disposedRooms() []RoomID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RoomID(nil), f.disposed...)
}

func (f *fakeOrchestrator) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeOrchestrator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeOrchestrator) roster(i int) []SessionID {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]SessionID, 0, len(f.calls[i]))
	for _, e := range f.calls[i] {
		ids = append(ids, e.SessionID)
	}
	return ids
}

type recordingSink struct {
	results chan MatchResult
}

func newRecordingSink() *recordingSink {
	return &recordingSink{results: make(chan MatchResult, 4)}
}

func (s *recordingSink) MatchFinished(_ context.Context, result MatchResult) error {
	s.results <- result
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
