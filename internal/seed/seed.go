// Package seed ships the demo room catalog.
package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"hotelchat/internal/model"
)

//go:embed rooms.json
var roomsJSON []byte

// Rooms returns the demo catalog as ingestion records
func Rooms() ([]model.RoomInput, error) {
	var rooms []model.RoomInput
	if err := json.Unmarshal(roomsJSON, &rooms); err != nil {
		return nil, fmt.Errorf("failed to decode seed rooms: %w", err)
	}
	return rooms, nil
}
