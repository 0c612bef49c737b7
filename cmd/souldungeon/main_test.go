package main

import (
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giapdoan01/SoulDungeonBE/internal/config"
	"github.com/giapdoan01/SoulDungeonBE/internal/multiplayer"
)

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(config.LogConfig{Level: "DEBUG", Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, log.DebugLevel, logger.GetLevel())

	_, err = newLogger(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestDefaultsConvert(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, multiplayer.DefaultGameConfig(), gameConfig(cfg.Game))
	assert.Equal(t, multiplayer.DefaultMatchmakingConfig(), matchmakingConfig(cfg.Matchmaking))

	ws := wsConfig(cfg.Server)
	assert.Equal(t, 256, ws.SendQueueSize)
	assert.Equal(t, int64(4096), ws.MaxMessageSize)

	cc := consoleConfig(cfg.Console)
	assert.Equal(t, "0.0.0.0:2323", cc.Address)
	assert.Equal(t, time.Second, cc.RefreshInterval)
}
