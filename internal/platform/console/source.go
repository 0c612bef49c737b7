package console

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/giapdoan01/SoulDungeonBE/internal/multiplayer"
)

// RoomSource supplies room stats to the dashboard.
type RoomSource interface {
	Rooms(ctx context.Context) ([]multiplayer.RoomStats, error)
}

// CoordinatorSource reads rooms from an in-process coordinator.
type CoordinatorSource struct {
	Coordinator *multiplayer.Coordinator
}

// Rooms returns the coordinator's running rooms.
func (s CoordinatorSource) Rooms(context.Context) ([]multiplayer.RoomStats, error) {
	return s.Coordinator.List(), nil
}

// HTTPSource polls the /rooms route of a running server.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPSource creates a source for the server at baseURL.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Rooms fetches the room list.
func (s *HTTPSource) Rooms(ctx context.Context) ([]multiplayer.RoomStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/rooms", nil)
	if err != nil {
		return nil, fmt.Errorf("console: build request: %w", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("console: fetch rooms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("console: fetch rooms: unexpected status %s", resp.Status)
	}
	var rooms []multiplayer.RoomStats
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		return nil, fmt.Errorf("console: decode rooms: %w", err)
	}
	return rooms, nil
}
