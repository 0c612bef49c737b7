// Package config provides YAML-based server configuration loading with
// environment overrides for the SoulDungeon session server.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config contains all configuration for the server.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Matchmaking MatchmakingConfig `yaml:"matchmaking"`
	Game        GameConfig        `yaml:"game"`
	Console     ConsoleConfig     `yaml:"console"`
}

// ServerConfig defines the HTTP/WebSocket listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"SOULDUNGEON_ADDR"`
	GinMode         string        `yaml:"gin_mode"         env:"SOULDUNGEON_GIN_MODE"` // debug, release or test
	AllowedOrigins  []string      `yaml:"allowed_origins"  env:"SOULDUNGEON_ALLOWED_ORIGINS" envSeparator:","`
	ReadBufferSize  int           `yaml:"read_buffer_size" env:"SOULDUNGEON_WS_READ_BUFFER"`
	WriteBufferSize int           `yaml:"write_buffer_size" env:"SOULDUNGEON_WS_WRITE_BUFFER"`
	SendQueueSize   int           `yaml:"send_queue_size"  env:"SOULDUNGEON_WS_SEND_QUEUE"`
	MaxMessageSize  int64         `yaml:"max_message_size" env:"SOULDUNGEON_WS_MAX_MESSAGE"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SOULDUNGEON_SHUTDOWN_TIMEOUT"`
}

// LogConfig defines logger output.
type LogConfig struct {
	Level  string `yaml:"level"  env:"SOULDUNGEON_LOG_LEVEL"`  // debug, info, warn, error
	Format string `yaml:"format" env:"SOULDUNGEON_LOG_FORMAT"` // text, json or logfmt
}

// MatchmakingConfig defines the matchmaking room.
type MatchmakingConfig struct {
	TickInterval  time.Duration `yaml:"tick_interval"  env:"SOULDUNGEON_MM_TICK"`
	CreateTimeout time.Duration `yaml:"create_timeout" env:"SOULDUNGEON_MM_CREATE_TIMEOUT"`
}

// GameConfig defines the rules and timers of a game room.
type GameConfig struct {
	TickInterval  time.Duration `yaml:"tick_interval"   env:"SOULDUNGEON_GAME_TICK"`
	MatchDuration time.Duration `yaml:"match_duration"  env:"SOULDUNGEON_GAME_DURATION"`
	SkillLifetime time.Duration `yaml:"skill_lifetime"  env:"SOULDUNGEON_GAME_SKILL_LIFETIME"`
	DisposeDelay  time.Duration `yaml:"dispose_delay"   env:"SOULDUNGEON_GAME_DISPOSE_DELAY"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"    env:"SOULDUNGEON_GAME_IDLE_TIMEOUT"`
	StartTimeout  time.Duration `yaml:"start_timeout"   env:"SOULDUNGEON_GAME_START_TIMEOUT"`
	SpawnOffset   float64       `yaml:"spawn_offset"    env:"SOULDUNGEON_GAME_SPAWN_OFFSET"`
	ArenaHalfSize float64       `yaml:"arena_half_size" env:"SOULDUNGEON_GAME_ARENA_HALF_SIZE"`
	MaxAnimSpeed  float64       `yaml:"max_anim_speed"  env:"SOULDUNGEON_GAME_MAX_ANIM_SPEED"`
	MaxHP         int           `yaml:"max_hp"          env:"SOULDUNGEON_GAME_MAX_HP"`
	DefaultDamage int           `yaml:"default_damage"  env:"SOULDUNGEON_GAME_DEFAULT_DAMAGE"`
}

// ConsoleConfig defines the operator console served over SSH.
type ConsoleConfig struct {
	Enabled         bool          `yaml:"enabled"          env:"SOULDUNGEON_CONSOLE_ENABLED"`
	Host            string        `yaml:"host"             env:"SOULDUNGEON_CONSOLE_HOST"`
	Port            int           `yaml:"port"             env:"SOULDUNGEON_CONSOLE_PORT"`
	HostKeyPath     string        `yaml:"host_key_path"    env:"SOULDUNGEON_CONSOLE_HOST_KEY"`
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"SOULDUNGEON_CONSOLE_REFRESH"`
}

// Validate checks that the configuration can run a server.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Matchmaking.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("matchmaking.tick_interval must be positive, got %s", c.Matchmaking.TickInterval))
	}
	if c.Game.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("game.tick_interval must be positive, got %s", c.Game.TickInterval))
	}
	if c.Game.MatchDuration < time.Second {
		errs = append(errs, fmt.Errorf("game.match_duration must be at least 1s, got %s", c.Game.MatchDuration))
	}
	if c.Game.StartTimeout < 0 {
		errs = append(errs, fmt.Errorf("game.start_timeout must not be negative, got %s", c.Game.StartTimeout))
	}
	if c.Game.MaxHP <= 0 {
		errs = append(errs, fmt.Errorf("game.max_hp must be positive, got %d", c.Game.MaxHP))
	}
	if c.Console.Enabled && (c.Console.Port <= 0 || c.Console.Port > 65535) {
		errs = append(errs, fmt.Errorf("console.port out of range: %d", c.Console.Port))
	}
	switch c.Log.Format {
	case "", "text", "json", "logfmt":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text, json or logfmt, got %q", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
