package proto

import "encoding/json"

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	ProtocolVersion = 1

	// Client to server.
	TypeHello      = "hello"
	TypeSend       = "send"
	TypeCreateRoom = "create_room"
	TypeSwitchRoom = "switch_room"
	TypeRoomName   = "room_name"
	TypeDisconnect = "disconnect"

	// Server to client.
	TypeLogin   = "login"
	TypeMessage = "message"
	TypeRooms   = "rooms"
)

// HelloData is the handshake frame; it carries the candidate display name.
type HelloData struct {
	User     string `json:"user"`
	Protocol int    `json:"protocol,omitempty"`
}

// SendData is a chat line from the client.
type SendData struct {
	Text string `json:"text"`
}

// CreateRoomData requests a new room.
type CreateRoomData struct {
	Name string `json:"name"`
}

// SwitchRoomData requests a move to an existing room.
type SwitchRoomData struct {
	RoomID int64 `json:"room_id"`
}

// LoginData answers the handshake.
type LoginData struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// MessageData is a chat or system line pushed to the client.
type MessageData struct {
	ID     string `json:"id"`
	User   string `json:"user,omitempty"`
	Text   string `json:"text"`
	TS     int64  `json:"ts"`
	Action bool   `json:"action,omitempty"`
	System bool   `json:"system,omitempty"`
}

// RoomNameData tells the client which room it is in.
type RoomNameData struct {
	Name string `json:"name"`
}

// RoomData is one directory entry.
type RoomData struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// RoomsData is the room directory.
type RoomsData struct {
	Rooms []RoomData `json:"rooms"`
}
