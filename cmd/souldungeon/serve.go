package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/giapdoan01/SoulDungeonBE/internal/config"
	"github.com/giapdoan01/SoulDungeonBE/internal/multiplayer"
	"github.com/giapdoan01/SoulDungeonBE/internal/platform/console"
	"github.com/giapdoan01/SoulDungeonBE/internal/platform/ws"
)

var (
	flagAddr    string
	flagConsole bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the session server",
	Long: `Start the HTTP/WebSocket server hosting matchmaking and game rooms.

Routes:
  GET /healthz              - Liveness probe
  GET /rooms                - Running rooms
  GET /rooms/:roomId        - One room
  GET /ws/matchmaking       - Join the matchmaking room
  GET /ws/rooms/:roomId     - Join a game room (requires ?sessionId=)

With --console (or console.enabled), an SSH dashboard of running rooms
is served as well:
  ssh localhost -p 2323

Examples:
  souldungeon serve
  souldungeon serve --addr :9000
  souldungeon serve --console`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address override (host:port)")
	serveCmd.Flags().BoolVar(&flagConsole, "console", false, "Serve the SSH operator console")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagAddr != "" {
		cfg.Server.Addr = flagAddr
	}
	if cmd.Flags().Changed("console") {
		cfg.Console.Enabled = flagConsole
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}

	coord := multiplayer.NewCoordinator(logger)
	deps := multiplayer.RoomDeps{Logger: logger}
	coord.DefineStandardRooms(
		matchmakingConfig(cfg.Matchmaking),
		gameConfig(cfg.Game),
		multiplayer.LogResultSink{Logger: logger.WithPrefix("results")},
		deps,
	)

	server := ws.NewServer(cfg.Server.Addr, coord, wsConfig(cfg.Server), logger.WithPrefix("http"))

	var sshServer *console.SSHServer
	if cfg.Console.Enabled {
		sshServer, err = console.NewSSHServer(consoleConfig(cfg.Console), console.CoordinatorSource{Coordinator: coord}, logger)
		if err != nil {
			return err
		}
	}

	errc := make(chan error, 2)
	go func() { errc <- server.ListenAndServe() }()
	if sshServer != nil {
		go func() { errc <- sshServer.ListenAndServe() }()
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	var serveErr error
	select {
	case sig := <-done:
		logger.Info("shutting down...", "signal", sig.String())
	case serveErr = <-errc:
		if serveErr != nil {
			logger.Error("server error", "error", serveErr)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if serveErr != nil {
		errs = append(errs, serveErr)
	}
	if err := server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if sshServer != nil {
		if err := sshServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("console shutdown: %w", err))
		}
	}
	coord.Stop()
	return errors.Join(errs...)
}

func matchmakingConfig(c config.MatchmakingConfig) multiplayer.MatchmakingConfig {
	return multiplayer.MatchmakingConfig{
		TickInterval:  c.TickInterval,
		GameRoomType:  multiplayer.RoomTypeGame,
		CreateTimeout: c.CreateTimeout,
	}
}

func gameConfig(c config.GameConfig) multiplayer.GameConfig {
	return multiplayer.GameConfig{
		TickInterval:  c.TickInterval,
		MatchDuration: c.MatchDuration,
		SkillLifetime: c.SkillLifetime,
		DisposeDelay:  c.DisposeDelay,
		IdleTimeout:   c.IdleTimeout,
		StartTimeout:  c.StartTimeout,
		SpawnOffset:   c.SpawnOffset,
		ArenaHalfSize: c.ArenaHalfSize,
		MaxAnimSpeed:  c.MaxAnimSpeed,
		MaxHP:         c.MaxHP,
		DefaultDamage: c.DefaultDamage,
	}
}

func wsConfig(c config.ServerConfig) ws.Config {
	cfg := ws.DefaultConfig()
	cfg.AllowedOrigins = c.AllowedOrigins
	if c.ReadBufferSize > 0 {
		cfg.ReadBufferSize = c.ReadBufferSize
	}
	if c.WriteBufferSize > 0 {
		cfg.WriteBufferSize = c.WriteBufferSize
	}
	if c.SendQueueSize > 0 {
		cfg.SendQueueSize = c.SendQueueSize
	}
	if c.MaxMessageSize > 0 {
		cfg.MaxMessageSize = c.MaxMessageSize
	}
	return cfg
}

func consoleConfig(c config.ConsoleConfig) console.SSHServerConfig {
	cfg := console.DefaultSSHServerConfig()
	cfg.Address = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	cfg.HostKeyPath = c.HostKeyPath
	if c.RefreshInterval > 0 {
		cfg.RefreshInterval = c.RefreshInterval
	}
	return cfg
}
