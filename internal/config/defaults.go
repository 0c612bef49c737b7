package config

import (
	_ "embed"
	"time"
)

//go:embed defaults/server.yaml
var defaultServerYAML []byte

// Default returns the hardcoded configuration, used when no YAML source
// can be read.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			GinMode:         "release",
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			SendQueueSize:   256,
			MaxMessageSize:  4096,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Matchmaking: MatchmakingConfig{
			TickInterval:  time.Second,
			CreateTimeout: 10 * time.Second,
		},
		Game: GameConfig{
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
		},
		Console: ConsoleConfig{
			Enabled:         false,
			Host:            "0.0.0.0",
			Port:            2323,
			HostKeyPath:     ".ssh/souldungeon_ed25519",
			RefreshInterval: time.Second,
		},
	}
}
