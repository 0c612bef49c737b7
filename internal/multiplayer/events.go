package multiplayer

import "github.com/giapdoan01/SoulDungeonBE/internal/state"

// Wire names of client-originated events.
const (
	EventQueueJoin    = "queue:join"
	EventQueueLeave   = "queue:leave"
	EventPing         = "ping"
	EventPlayerMove   = "player:move"
	EventSkillCast    = "skill:cast"
	EventPlayerDamage = "player:damage"
)

// Wire names of server-originated notifications.
const (
	EventWelcome       = "welcome"
	EventQueueJoined   = "queue:joined"
	EventQueueLeft     = "queue:left"
	EventMatchFound    = "match:found"
	EventGameStart     = "game:start"
	EventGameEnd       = "game:end"
	EventPlayerKilled  = "player:killed"
	EventStateSnapshot = "state:snapshot"
	EventStatePatch    = "state:patch"
	EventError         = "error"
)

// ServerEvent is a notification sent from a room to a connection.
type ServerEvent interface {
	EventType() string
}

// WelcomeEvent is sent when a connection joins the matchmaking room.
type WelcomeEvent struct {
	RoomID      RoomID    `json:"roomId"`
	SessionID   SessionID `json:"sessionId"`
	DisplayName string    `json:"displayName"`
	Level       int       `json:"level"`
}

func (WelcomeEvent) EventType() string { return EventWelcome }

// QueueJoinedEvent confirms a successful enqueue.
type QueueJoinedEvent struct {
	Position int `json:"position"`
}

func (QueueJoinedEvent) EventType() string { return EventQueueJoined }

// QueueLeftEvent confirms a dequeue.
type QueueLeftEvent struct{}

func (QueueLeftEvent) EventType() string { return EventQueueLeft }

// ErrorEvent carries an explicit rejection such as "already in queue".
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) EventType() string { return EventError }

// MatchFoundEvent tells a queued connection where its match is.
// SessionID is the seat credential to present when joining RoomID.
type MatchFoundEvent struct {
	RoomID    RoomID    `json:"roomId"`
	RoomType  string    `json:"roomType"`
	SessionID SessionID `json:"sessionId"`
}

func (MatchFoundEvent) EventType() string { return EventMatchFound }

// GameStartEvent is broadcast when the roster is complete.
type GameStartEvent struct {
	RoomID      RoomID      `json:"roomId"`
	StartedAt   int64       `json:"startedAt"`
	DurationSec int         `json:"durationSec"`
	TeamA       []SessionID `json:"teamA"`
	TeamB       []SessionID `json:"teamB"`
}

func (GameStartEvent) EventType() string { return EventGameStart }

// GameEndEvent is broadcast once when the match timer expires.
type GameEndEvent struct {
	Winner     Winner `json:"winner"`
	TeamAKills int    `json:"teamAKills"`
	TeamBKills int    `json:"teamBKills"`
}

func (GameEndEvent) EventType() string { return EventGameEnd }

// PlayerKilledEvent is broadcast when a hit brings a player to zero hp.
// KillerID is empty for self-elimination.
type PlayerKilledEvent struct {
	TargetID SessionID `json:"targetId"`
	KillerID SessionID `json:"killerId,omitempty"`
}

func (PlayerKilledEvent) EventType() string { return EventPlayerKilled }

// StateSnapshotEvent carries the full room document to a newly joined connection.
type StateSnapshotEvent struct {
	Version uint64         `json:"version"`
	State   map[string]any `json:"state"`
}

func (StateSnapshotEvent) EventType() string { return EventStateSnapshot }

// StatePatchEvent carries the changes made by one handled message or tick.
type StatePatchEvent struct {
	state.Patch
}

func (StatePatchEvent) EventType() string { return EventStatePatch }

// ClientMessage is an event sent by a connection to its room.
type ClientMessage interface {
	clientMessage()
}

// QueueJoinMsg requests entry into the matchmaking queue.
type QueueJoinMsg struct{}

func (QueueJoinMsg) clientMessage() {}

// QueueLeaveMsg requests removal from the matchmaking queue.
type QueueLeaveMsg struct{}

func (QueueLeaveMsg) clientMessage() {}

// PingMsg reports the client's measured round trip.
type PingMsg struct {
	Ms *float64
}

func (PingMsg) clientMessage() {}

// PlayerMoveMsg updates the sender's own position and animation.
// Nil fields were missing or mistyped and are left unchanged.
type PlayerMoveMsg struct {
	X           *float64
	Y           *float64
	AnimSpeed   *float64
	FacingRight *bool
}

func (PlayerMoveMsg) clientMessage() {}

// SkillCastMsg spawns a skill event at the caster's position.
type SkillCastMsg struct {
	SkillType *string
	DirX      *float64
	DirY      *float64
}

func (SkillCastMsg) clientMessage() {}

// PlayerDamageMsg applies damage from the sender to TargetID.
type PlayerDamageMsg struct {
	TargetID SessionID
	Damage   *float64
}

func (PlayerDamageMsg) clientMessage() {}
