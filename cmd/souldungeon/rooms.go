package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/giapdoan01/SoulDungeonBE/internal/platform/console"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "Print a running server's rooms",
	Long: `Fetch and print the rooms of a running server.

Examples:
  souldungeon rooms
  souldungeon rooms --server http://localhost:9000`,
	Args: cobra.NoArgs,
	RunE: runRooms,
}

func runRooms(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	rooms, err := console.NewHTTPSource(flagServerURL).Rooms(ctx)
	if err != nil {
		return err
	}
	if len(rooms) == 0 {
		fmt.Println("No rooms running.")
		return nil
	}

	fmt.Printf("%-38s  %-12s  %-9s  %7s  %5s\n", "ROOM", "TYPE", "STATUS", "CLIENTS", "QUEUE")
	for _, r := range rooms {
		fmt.Printf("%-38s  %-12s  %-9s  %7d  %5d\n", r.ID, r.Type, r.Status, r.Clients, r.Queue)
	}
	fmt.Printf("\nTotal: %d room(s)\n", len(rooms))
	return nil
}
