package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatt-server/internal/core"
)

// RoomHandlers exposes the live room directory over HTTP.
type RoomHandlers struct {
	registry *core.Registry
	log      *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(registry *core.Registry, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		registry: registry,
		log:      logger,
	}
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// ListRooms handles listing every room with its current member count.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	directory := h.registry.RoomDirectory()

	response := make([]RoomResponse, 0, len(directory))
	for _, room := range directory {
		response = append(response, RoomResponse{
			ID:      room.ID,
			Name:    room.Name,
			Members: room.Members,
		})
	}

	h.log.Debug().Int("room_count", len(response)).Msg("rooms listed")
	c.JSON(http.StatusOK, response)
}
