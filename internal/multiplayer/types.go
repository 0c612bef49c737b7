// Package multiplayer implements the real-time session layer: the
// matchmaking room that groups queued connections into matches, the game
// room that runs one authoritative 2v2 match, and the in-process
// coordinator that creates and tracks rooms by type name.
//
// Every room is an actor. Its handlers, deferred callbacks and periodic
// tick run on a single goroutine, so room state needs no locking.
package multiplayer

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/giapdoan01/SoulDungeonBE/internal/core"
)

// SessionID uniquely identifies a connection within a room.
// For game rooms it doubles as the seat credential issued at match formation.
type SessionID string

// RoomID uniquely identifies a room instance. It is the address clients
// use to join a game room.
type RoomID string

// Room type names known to the coordinator.
const (
	RoomTypeMatchmaking = "matchmaking"
	RoomTypeGame        = "game"
)

var (
	// ErrNotInRoster is returned when a session outside a seeded roster tries to join.
	ErrNotInRoster = errors.New("multiplayer: session is not part of this room's roster")

	// ErrRoomFull is returned when a room has no free seat.
	ErrRoomFull = errors.New("multiplayer: room is full")

	// ErrRoomClosed is returned when talking to a disposed room.
	ErrRoomClosed = errors.New("multiplayer: room is closed")

	// ErrMatchFinished is returned when a new session joins a finished match.
	ErrMatchFinished = errors.New("multiplayer: match already finished")

	// ErrRoomNotFound is returned by lookups for unknown room ids.
	ErrRoomNotFound = errors.New("multiplayer: room not found")

	// ErrCoordinatorStopped is returned when creating rooms after Stop.
	ErrCoordinatorStopped = errors.New("multiplayer: coordinator stopped")
)

// JoinOptions carries the already-authenticated identity a connection
// presents when it joins a room.
type JoinOptions struct {
	DisplayName string
	Level       int
	UserID      string // Optional identity token from the accounts service
}

// RosterEntry seeds one seat of a game room.
type RosterEntry struct {
	SessionID   SessionID `json:"sessionId"`
	DisplayName string    `json:"displayName"`
}

// RoomOptions are passed to a room factory.
type RoomOptions struct {
	ID     RoomID
	Roster []RosterEntry
}

// RoomDeps are the ambient collaborators every room needs.
type RoomDeps struct {
	Logger *log.Logger
	Clock  core.Clock
}

func (d RoomDeps) withDefaults() RoomDeps {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	if d.Clock == nil {
		d.Clock = core.SystemClock{}
	}
	return d
}

// RoomStats is a point-in-time summary of a room, safe to read from any goroutine.
type RoomStats struct {
	ID        RoomID    `json:"id"`
	Type      string    `json:"type"`
	Clients   int       `json:"clients"`
	Status    string    `json:"status"`
	Queue     int       `json:"queue"`
	Tick      uint64    `json:"tick"`
	CreatedAt time.Time `json:"createdAt"`
}
