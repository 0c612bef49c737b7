// souldungeon runs the SoulDungeon real-time session server.
//
// Usage:
//
//	souldungeon serve            - Start the HTTP/WebSocket server
//	souldungeon console          - Watch a running server's rooms
//	souldungeon rooms            - Print a running server's rooms
//	souldungeon config           - Print the effective configuration
//
// Global flags:
//
//	--config <path>      - Configuration file (default: search order)
//	--log-level <level>  - Override log.level from the configuration
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/giapdoan01/SoulDungeonBE/internal/config"
)

var (
	// Global flags
	flagConfigPath string
	flagLogLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "souldungeon",
	Short: "SoulDungeon - real-time 2v2 session server",
	Long: `SoulDungeon hosts matchmaking and 2v2 game rooms over WebSockets.

Configuration is read from --config, ~/.souldungeon/config.yaml,
configs/server.yaml or the built-in defaults, in that order, and then
overridden by SOULDUNGEON_* environment variables.

Examples:
  souldungeon serve
  souldungeon serve --config ./server.yaml
  souldungeon console --server http://localhost:8080
  souldungeon config`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(roomsCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig loads the configuration and applies flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	return cfg, nil
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig) (*log.Logger, error) {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "souldungeon",
	})

	if cfg.Level != "" {
		level, err := log.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		logger.SetLevel(level)
	}

	switch cfg.Format {
	case "json":
		logger.SetFormatter(log.JSONFormatter)
	case "logfmt":
		logger.SetFormatter(log.LogfmtFormatter)
	default:
		logger.SetFormatter(log.TextFormatter)
	}
	return logger, nil
}
