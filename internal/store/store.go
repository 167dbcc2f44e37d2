package store

import (
	"context"
	"time"
)

// Room is a persisted room catalog entry.
type Room struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// RoomStore handles room catalog persistence.
type RoomStore interface {
	// SaveRoom records a room under an id issued by the registry.
	SaveRoom(ctx context.Context, id int64, name string) error

	// ListRooms returns every recorded room ordered by id.
	ListRooms(ctx context.Context) ([]*Room, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	RoomStore

	// Close closes the underlying database connection.
	Close() error
}
