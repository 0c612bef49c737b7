package multiplayer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/giapdoan01/SoulDungeonBE/internal/core"
	"github.com/giapdoan01/SoulDungeonBE/internal/state"
)

// Match shape.
const (
	Capacity = 4
	TeamSize = 2
)

// DefaultSkillType is used when a cast names no skill.
const DefaultSkillType = "Q"

// MatchStatus is the lifecycle stage of a match.
type MatchStatus string

const (
	MatchWaiting  MatchStatus = "waiting"
	MatchPlaying  MatchStatus = "playing"
	MatchFinished MatchStatus = "finished"
)

// Winner is the outcome of a finished match.
type Winner string

const (
	WinnerA    Winner = "A"
	WinnerB    Winner = "B"
	WinnerDraw Winner = "draw"
)

// PlayerState is the authoritative record of one seat.
type PlayerState struct {
	SessionID   SessionID `json:"sessionId"`
	DisplayName string    `json:"displayName"`
	Team        int       `json:"team"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	AnimSpeed   float64   `json:"animSpeed"`
	FacingRight bool      `json:"facingRight"`
	HP          int       `json:"hp"`
	MaxHP       int       `json:"maxHp"`
	Alive       bool      `json:"alive"`
	Kills       int       `json:"kills"`
	Deaths      int       `json:"deaths"`
}

// SkillEvent is a short-lived cast, removed automatically after its lifetime.
type SkillEvent struct {
	ID          string    `json:"id"`
	OwnerID     SessionID `json:"ownerId"`
	SkillType   string    `json:"skillType"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	DirX        float64   `json:"dirX"`
	DirY        float64   `json:"dirY"`
	FacingRight bool      `json:"facingRight"`
	CreatedAt   int64     `json:"createdAt"` // unix ms
}

// MatchState is the match clock and team layout.
type MatchState struct {
	Status         MatchStatus `json:"status"`
	MatchStartTime int64       `json:"matchStartTime"` // unix ms, 0 until playing
	DurationSec    int         `json:"durationSec"`
	RemainingSec   int         `json:"remainingSec"`
	TickCounter    uint64      `json:"tickCounter"`
	ServerTime     int64       `json:"serverTime"` // unix ms
	TeamA          []SessionID `json:"teamA"`
	TeamB          []SessionID `json:"teamB"`
}

// MatchResult summarises a finished match for a ResultSink.
type MatchResult struct {
	RoomID     RoomID        `json:"roomId"`
	Winner     Winner        `json:"winner"`
	TeamAKills int           `json:"teamAKills"`
	TeamBKills int           `json:"teamBKills"`
	Players    []PlayerState `json:"players"`
	StartedAt  time.Time     `json:"startedAt"`
	EndedAt    time.Time     `json:"endedAt"`
}

// ResultSink receives finished match results, e.g. to persist them.
// This allows game rooms to report results without depending on storage.
type ResultSink interface {
	MatchFinished(ctx context.Context, result MatchResult) error
}

// GameConfig tunes a GameRoom.
type GameConfig struct {
	TickInterval  time.Duration
	MatchDuration time.Duration // Rounded down to whole seconds, minimum 1s
	SkillLifetime time.Duration
	DisposeDelay  time.Duration // Grace period between match end and disposal
	IdleTimeout   time.Duration // Dispose after this long with no connections; 0 disables
	StartTimeout  time.Duration // Dispose a match still waiting this long after creation; 0 disables
	SpawnOffset   float64       // Team 0 spawns at -SpawnOffset, team 1 at +SpawnOffset
	ArenaHalfSize float64       // Accepted positions are within [-ArenaHalfSize, ArenaHalfSize]
	MaxAnimSpeed  float64
	MaxHP         int
	DefaultDamage int
}

// DefaultGameConfig returns sensible defaults.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		TickInterval:  100 * time.Millisecond,
		MatchDuration: 180 * time.Second,
		SkillLifetime: 3 * time.Second,
		DisposeDelay:  10 * time.Second,
		IdleTimeout:   30 * time.Second,
		StartTimeout:  60 * time.Second,
		SpawnOffset:   5,
		ArenaHalfSize: 1000,
		MaxAnimSpeed:  10,
		MaxHP:         100,
		DefaultDamage: 10,
	}
}

func (c GameConfig) withDefaults() GameConfig {
	def := DefaultGameConfig()
	if c.MatchDuration <= 0 {
		c.MatchDuration = def.MatchDuration
	}
	if c.SkillLifetime <= 0 {
		c.SkillLifetime = def.SkillLifetime
	}
	if c.DisposeDelay <= 0 {
		c.DisposeDelay = def.DisposeDelay
	}
	if c.ArenaHalfSize <= 0 {
		c.ArenaHalfSize = def.ArenaHalfSize
	}
	if c.MaxAnimSpeed <= 0 {
		c.MaxAnimSpeed = def.MaxAnimSpeed
	}
	if c.MaxHP <= 0 {
		c.MaxHP = def.MaxHP
	}
	if c.DefaultDamage <= 0 {
		c.DefaultDamage = def.DefaultDamage
	}
	return c
}

func (c GameConfig) durationSec() int {
	return max(1, int(c.MatchDuration/time.Second))
}

// GameRoom runs one authoritative 2v2 match.
type GameRoom struct {
	*roomBase

	config GameConfig
	sink   ResultSink // Optional, can be nil

	// roster is nil when the room accepts any session.
	roster map[SessionID]RosterEntry

	players *state.Map[PlayerState]
	skills  *state.Map[SkillEvent]
	match   *state.Value[MatchState]

	startedAt   time.Time
	ended       bool
	cancelIdle  func()
	cancelStart func()
}

// NewGameRoom creates a game room seeded with opts.Roster. Call Start to run it.
func NewGameRoom(opts RoomOptions, cfg GameConfig, sink ResultSink, deps RoomDeps) *GameRoom {
	cfg = cfg.withDefaults()

	g := &GameRoom{
		roomBase: newRoomBase(opts.ID, RoomTypeGame, cfg.TickInterval, deps),
		config:   cfg,
		sink:     sink,
	}
	if len(opts.Roster) > 0 {
		g.roster = make(map[SessionID]RosterEntry, len(opts.Roster))
		for _, e := range opts.Roster {
			g.roster[e.SessionID] = e
		}
	}

	g.players = state.NewMap[PlayerState](g.doc, "players")
	g.skills = state.NewMap[SkillEvent](g.doc, "skills")
	g.match = state.NewValue(g.doc, "match", MatchState{
		Status:       MatchWaiting,
		DurationSec:  cfg.durationSec(),
		RemainingSec: cfg.durationSec(),
		TeamA:        []SessionID{},
		TeamB:        []SessionID{},
	})
	g.onTick = g.tick
	g.statsFn = g.snapshotStats
	g.armIdle()
	g.armStart()
	return g
}

// Join seats a roster member. Returns ErrNotInRoster, ErrRoomFull or
// ErrMatchFinished when the connection is refused.
func (g *GameRoom) Join(ctx context.Context, conn SessionHandle, opts JoinOptions) error {
	return g.call(ctx, func() error {
		return g.join(conn, opts)
	})
}

// Leave detaches a connection. Its PlayerState is retained.
func (g *GameRoom) Leave(id SessionID) {
	g.post(func() { g.leave(id) })
}

// Detach is Leave for conn, if it is still the session's connection.
func (g *GameRoom) Detach(conn SessionHandle) {
	g.post(func() {
		if g.clients.Release(conn) {
			g.departed(conn.ID())
		}
	})
}

// Dispatch handles a client message from a connection.
func (g *GameRoom) Dispatch(id SessionID, msg ClientMessage) {
	g.post(func() { g.handle(id, msg) })
}

func (g *GameRoom) handle(id SessionID, msg ClientMessage) {
	switch msg := msg.(type) {
	case PlayerMoveMsg:
		g.move(id, msg)
	case SkillCastMsg:
		g.cast(id, msg)
	case PlayerDamageMsg:
		g.damage(id, msg)
	default:
		g.logger.Debug("ignoring message", "session", id, "msg", msg)
	}
}

func (g *GameRoom) join(conn SessionHandle, opts JoinOptions) error {
	id := conn.ID()
	key := string(id)

	seat, seeded := g.roster[id]
	if g.roster != nil && !seeded {
		g.logger.Warn("join refused, not in roster", "session", id)
		return ErrNotInRoster
	}

	if !g.players.Has(key) {
		status := g.match.Get().Status
		if status == MatchFinished {
			return ErrMatchFinished
		}
		if g.players.Len() >= Capacity {
			return ErrRoomFull
		}

		name := opts.DisplayName
		if name == "" {
			name = seat.DisplayName
		}
		team := 0
		x := -g.config.SpawnOffset
		if g.players.Len() >= TeamSize {
			team = 1
			x = g.config.SpawnOffset
		}

		g.players.Set(key, PlayerState{
			SessionID:   id,
			DisplayName: name,
			Team:        team,
			X:           x,
			Y:           0,
			FacingRight: team == 0,
			HP:          g.config.MaxHP,
			MaxHP:       g.config.MaxHP,
			Alive:       true,
		})
		g.match.Update(func(m *MatchState) {
			if team == 0 {
				m.TeamA = append(append([]SessionID{}, m.TeamA...), id)
			} else {
				m.TeamB = append(append([]SessionID{}, m.TeamB...), id)
			}
		})
		g.logger.Info("player seated", "session", id, "name", name, "team", team)
	} else {
		g.logger.Info("player rejoined", "session", id)
	}

	if g.cancelIdle != nil {
		g.cancelIdle()
		g.cancelIdle = nil
	}
	g.attach(conn)

	if g.match.Get().Status == MatchWaiting && g.clients.Count() >= Capacity {
		g.startMatch()
	}
	return nil
}

func (g *GameRoom) leave(id SessionID) {
	if _, ok := g.clients.Get(id); !ok {
		return
	}
	g.clients.Unregister(id)
	g.departed(id)
}

// departed updates the match after id's connection went away.
func (g *GameRoom) departed(id SessionID) {
	status := g.match.Get().Status
	if status == MatchPlaying {
		g.players.Update(string(id), func(p *PlayerState) { p.Alive = false })
	}
	g.logger.Info("player left", "session", id, "status", status)

	if g.clients.Count() == 0 && status != MatchFinished {
		g.armIdle()
	}
}

func (g *GameRoom) startMatch() {
	if g.cancelStart != nil {
		g.cancelStart()
		g.cancelStart = nil
	}
	now := g.clock.Now()
	g.startedAt = now

	var m MatchState
	g.match.Update(func(s *MatchState) {
		s.Status = MatchPlaying
		s.MatchStartTime = now.UnixMilli()
		s.DurationSec = g.config.durationSec()
		s.RemainingSec = s.DurationSec
		m = *s
	})

	g.clients.Broadcast(GameStartEvent{
		RoomID:      g.id,
		StartedAt:   m.MatchStartTime,
		DurationSec: m.DurationSec,
		TeamA:       m.TeamA,
		TeamB:       m.TeamB,
	})
	g.logger.Info("match started", "duration", m.DurationSec)
}

func (g *GameRoom) move(id SessionID, msg PlayerMoveMsg) {
	if g.match.Get().Status == MatchFinished {
		return
	}
	key := string(id)
	p, ok := g.players.Get(key)
	if !ok || !p.Alive {
		return
	}

	next := p
	half := g.config.ArenaHalfSize
	if msg.X != nil && core.InRange(*msg.X, -half, half) {
		next.X = *msg.X
	}
	if msg.Y != nil && core.InRange(*msg.Y, -half, half) {
		next.Y = *msg.Y
	}
	if msg.AnimSpeed != nil && core.InRange(*msg.AnimSpeed, 0, g.config.MaxAnimSpeed) {
		next.AnimSpeed = *msg.AnimSpeed
	}
	if msg.FacingRight != nil {
		next.FacingRight = *msg.FacingRight
	}

	if next != p {
		g.players.Set(key, next)
	}
}

func (g *GameRoom) cast(id SessionID, msg SkillCastMsg) {
	if g.match.Get().Status != MatchPlaying {
		return
	}
	p, ok := g.players.Get(string(id))
	if !ok || !p.Alive {
		return
	}

	skillType := DefaultSkillType
	if msg.SkillType != nil && *msg.SkillType != "" {
		skillType = *msg.SkillType
	}
	dir := core.NewVec2(1, 0)
	if msg.DirX != nil && msg.DirY != nil {
		if d := core.NewVec2(*msg.DirX, *msg.DirY); d.IsFinite() && !d.IsZero() {
			dir = d
		}
	}

	now := g.clock.Now().UnixMilli()
	skillID := fmt.Sprintf("%s-%d", id, now)
	for n := 1; g.skills.Has(skillID); n++ {
		skillID = fmt.Sprintf("%s-%d-%d", id, now, n)
	}

	g.skills.Set(skillID, SkillEvent{
		ID:          skillID,
		OwnerID:     id,
		SkillType:   skillType,
		X:           p.X,
		Y:           p.Y,
		DirX:        dir.X,
		DirY:        dir.Y,
		FacingRight: p.FacingRight,
		CreatedAt:   now,
	})
	g.schedule(g.config.SkillLifetime, func() {
		g.skills.Delete(skillID)
	})
}

// damage applies one hit. Only the hit that brings hp to zero counts a
// death and a kill. Self-elimination counts the death without a kill.
func (g *GameRoom) damage(attacker SessionID, msg PlayerDamageMsg) {
	if g.match.Get().Status != MatchPlaying {
		return
	}
	key := string(msg.TargetID)
	target, ok := g.players.Get(key)
	if !ok || !target.Alive {
		return
	}

	amount := g.config.DefaultDamage
	if msg.Damage != nil && core.IsFinite(*msg.Damage) && *msg.Damage > 0 {
		amount = max(1, int(math.Round(*msg.Damage)))
	}

	target.HP = core.Clamp(target.HP-amount, 0, target.MaxHP)
	killed := target.HP == 0
	if killed {
		target.Alive = false
		target.Deaths++
	}
	g.players.Set(key, target)

	if !killed {
		return
	}
	evt := PlayerKilledEvent{TargetID: msg.TargetID}
	if attacker != msg.TargetID && g.players.Update(string(attacker), func(p *PlayerState) { p.Kills++ }) {
		evt.KillerID = attacker
	}
	g.clients.Broadcast(evt)
	g.logger.Info("player killed", "target", evt.TargetID, "killer", evt.KillerID)
}

// tick advances the match clock. Remaining time is derived from the
// elapsed wall time so missed ticks never cause drift.
func (g *GameRoom) tick() {
	now := g.clock.Now()
	m := g.match.Get()
	m.TickCounter++
	m.ServerTime = now.UnixMilli()

	if m.Status == MatchPlaying {
		elapsed := int(now.Sub(g.startedAt) / time.Second)
		if remaining := max(0, m.DurationSec-elapsed); remaining < m.RemainingSec {
			m.RemainingSec = remaining
		}
	}
	g.match.Set(m)

	if m.Status == MatchPlaying && m.RemainingSec == 0 {
		g.endMatch()
	}
}

func (g *GameRoom) endMatch() {
	if g.ended {
		return
	}
	g.ended = true

	var teamA, teamB int
	players := g.players.Values()
	for _, p := range players {
		if p.Team == 0 {
			teamA += p.Kills
		} else {
			teamB += p.Kills
		}
	}
	winner := WinnerDraw
	switch {
	case teamA > teamB:
		winner = WinnerA
	case teamB > teamA:
		winner = WinnerB
	}

	g.match.Update(func(m *MatchState) { m.Status = MatchFinished })
	g.clients.Broadcast(GameEndEvent{Winner: winner, TeamAKills: teamA, TeamBKills: teamB})
	g.logger.Info("match finished", "winner", winner, "teamA", teamA, "teamB", teamB)

	if g.sink != nil {
		result := MatchResult{
			RoomID:     g.id,
			Winner:     winner,
			TeamAKills: teamA,
			TeamBKills: teamB,
			Players:    players,
			StartedAt:  g.startedAt,
			EndedAt:    g.clock.Now(),
		}
		go g.reportResult(result)
	}

	g.schedule(g.config.DisposeDelay, g.Dispose)
}

func (g *GameRoom) reportResult(result MatchResult) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("result sink panicked", "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := g.sink.MatchFinished(ctx, result); err != nil {
		g.logger.Error("failed to report match result", "err", err)
	}
}

// armIdle (re)starts the countdown to disposal of an empty room.
func (g *GameRoom) armIdle() {
	if g.config.IdleTimeout <= 0 {
		return
	}
	if g.cancelIdle != nil {
		g.cancelIdle()
	}
	g.cancelIdle = g.schedule(g.config.IdleTimeout, func() {
		g.cancelIdle = nil
		g.logger.Info("no connections, disposing")
		g.Dispose()
	})
}

// armStart schedules disposal of a match that never fills up.
func (g *GameRoom) armStart() {
	if g.config.StartTimeout <= 0 {
		return
	}
	g.cancelStart = g.schedule(g.config.StartTimeout, func() {
		g.cancelStart = nil
		if g.match.Get().Status != MatchWaiting {
			return
		}
		g.logger.Info("match never started, disposing", "clients", g.clients.Count())
		g.clients.Broadcast(ErrorEvent{Message: "match cancelled"})
		g.Dispose()
	})
}

func (g *GameRoom) snapshotStats() RoomStats {
	m := g.match.Get()
	s := g.baseStats(string(m.Status))
	s.Tick = m.TickCounter
	return s
}

// Match returns the current match clock and teams.
func (g *GameRoom) Match(ctx context.Context) (MatchState, error) {
	var m MatchState
	err := g.call(ctx, func() error {
		m = g.match.Get()
		return nil
	})
	return m, err
}

// Players returns every seat's state, ordered by session id.
func (g *GameRoom) Players(ctx context.Context) ([]PlayerState, error) {
	var out []PlayerState
	err := g.call(ctx, func() error {
		out = g.players.Values()
		return nil
	})
	return out, err
}

// Skills returns the live skill events, ordered by id.
func (g *GameRoom) Skills(ctx context.Context) ([]SkillEvent, error) {
	var out []SkillEvent
	err := g.call(ctx, func() error {
		out = g.skills.Values()
		return nil
	})
	return out, err
}
