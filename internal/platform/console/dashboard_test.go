package console

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giapdoan01/SoulDungeonBE/internal/multiplayer"
)

type staticSource struct {
	rooms []multiplayer.RoomStats
	err   error
}

func (s staticSource) Rooms(context.Context) ([]multiplayer.RoomStats, error) {
	return s.rooms, s.err
}

var testRooms = []multiplayer.RoomStats{
	{ID: "mm-1", Type: multiplayer.RoomTypeMatchmaking, Clients: 5, Status: "open", Queue: 3, Tick: 12},
	{ID: "game-1", Type: multiplayer.RoomTypeGame, Clients: 4, Status: "playing", Tick: 300},
	{ID: "game-2", Type: multiplayer.RoomTypeGame, Clients: 1, Status: "waiting"},
}

func loaded(t *testing.T, src RoomSource, width int) Model {
	t.Helper()
	m := NewModel(src, time.Second, "rooms", width, 30)
	msg := m.fetch()()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModelRendersRooms(t *testing.T) {
	m := loaded(t, staticSource{rooms: testRooms}, 120)

	require.Len(t, m.table.Rows(), 3)
	view := m.View()
	assert.Contains(t, view, "ROOMS")
	assert.Contains(t, view, "game-1")
	assert.Contains(t, view, "Playing   1")
	assert.Contains(t, view, "Players   10")
	assert.Contains(t, view, "Queued    3")
}

func TestModelFilterCycles(t *testing.T) {
	m := loaded(t, staticSource{rooms: testRooms}, 120)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	require.Len(t, m.table.Rows(), 1)
	assert.Equal(t, "mm-1", m.table.Rows()[0][0])

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	require.Len(t, m.table.Rows(), 2)
	assert.Equal(t, "-", m.table.Rows()[0][4])

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m = next.(Model)
	assert.Len(t, m.table.Rows(), 1)
}

func TestModelKeepsRoomsOnFetchError(t *testing.T) {
	m := loaded(t, staticSource{rooms: testRooms}, 120)

	next, _ := m.Update(roomsMsg{err: errors.New("boom"), at: time.Now()})
	m = next.(Model)
	assert.Len(t, m.table.Rows(), 3)
	assert.Contains(t, m.View(), "fetch failed: boom")
}

func TestModelNarrowLayout(t *testing.T) {
	m := loaded(t, staticSource{}, 60)

	assert.False(t, m.showSidebar)
	view := m.View()
	assert.Contains(t, view, "rooms 0 | games 0")
	assert.Contains(t, view, "No rooms running.")
}

func TestModelQuit(t *testing.T) {
	m := NewModel(staticSource{}, time.Second, "rooms", 80, 24)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, next.View())
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rooms" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(testRooms)
	}))
	defer srv.Close()

	rooms, err := NewHTTPSource(srv.URL + "/").Rooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 3)
	assert.Equal(t, multiplayer.RoomID("game-1"), rooms[1].ID)

	_, err = NewHTTPSource(srv.URL + "/missing").Rooms(context.Background())
	assert.ErrorContains(t, err, "unexpected status")
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{-time.Second, "0s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m05s"},
		{2*time.Hour + 7*time.Minute, "2h07m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatAge(tt.in))
	}
}

func TestCenterText(t *testing.T) {
	assert.Equal(t, "   ab", centerText("ab", 8))
	assert.True(t, strings.HasPrefix(centerText("abc", 2), "abc"))
}
