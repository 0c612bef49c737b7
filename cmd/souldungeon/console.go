package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/giapdoan01/SoulDungeonBE/internal/platform/console"
)

var flagServerURL string

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Watch a running server's rooms",
	Long: `Open the room dashboard in this terminal, polling a running server.

Keys:
  up/down or j/k  - Scroll
  tab/shift+tab   - Filter by room type
  r               - Refresh now
  q/Esc           - Quit

Examples:
  souldungeon console
  souldungeon console --server http://game.example.com:8080`,
	RunE: runConsole,
}

func init() {
	consoleCmd.Flags().StringVar(&flagServerURL, "server", "http://localhost:8080", "Base URL of the server")
	roomsCmd.Flags().StringVar(&flagServerURL, "server", "http://localhost:8080", "Base URL of the server")
}

func runConsole(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Get terminal size
	width, height := 80, 24
	if w, h, termErr := term.GetSize(int(os.Stdout.Fd())); termErr == nil {
		width, height = w, h
	}

	source := console.NewHTTPSource(flagServerURL)
	return console.Run(source, cfg.Console.RefreshInterval, "souldungeon rooms", width, height)
}
