package core

import (
	"context"
	"fmt"
)

// CommandKind tags a Command with the one operation it carries.
type CommandKind int

const (
	// CommandSendMessage asks the room to broadcast a chat line.
	CommandSendMessage CommandKind = iota
	// CommandCreateRoom asks for a new room and a move into it.
	CommandCreateRoom
	// CommandSwitchRoom asks to move into an existing room.
	CommandSwitchRoom
	// CommandRequestRoomName asks for the current room's name.
	CommandRequestRoomName
	// CommandDisconnect announces a clean client exit.
	CommandDisconnect

	// CommandMessagePush delivers a Message to a client.
	CommandMessagePush
	// CommandRoomNamePush tells a client which room it is in.
	CommandRoomNamePush
	// CommandRoomDirectoryPush delivers the room directory.
	CommandRoomDirectoryPush
	// CommandLoginResult answers the admission handshake.
	CommandLoginResult
)

var commandKindNames = map[CommandKind]string{
	CommandSendMessage:       "send_message",
	CommandCreateRoom:        "create_room",
	CommandSwitchRoom:        "switch_room",
	CommandRequestRoomName:   "request_room_name",
	CommandDisconnect:        "disconnect",
	CommandMessagePush:       "message_push",
	CommandRoomNamePush:      "room_name_push",
	CommandRoomDirectoryPush: "room_directory_push",
	CommandLoginResult:       "login_result",
}

func (k CommandKind) String() string {
	if name, ok := commandKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", int(k))
}

// RoomBound reports whether the kind is applied by the server against a room.
func (k CommandKind) RoomBound() bool {
	return k >= CommandSendMessage && k <= CommandDisconnect
}

// RoomSummary is a read-only projection of a Room used by the directory.
type RoomSummary struct {
	ID      int64
	Name    string
	Members int
}

// Command is a tagged message. Only the fields relevant to Kind are set.
type Command struct {
	Kind     CommandKind
	User     string
	Text     string
	RoomName string
	RoomID   int64
	Message  Message
	Rooms    []RoomSummary
	Accepted bool
	Reason   string
}

// RoomControl is the server-side capability commands are applied against.
type RoomControl interface {
	HandleSend(ctx context.Context, username, text string) error
	HandleCreateRoom(ctx context.Context, username, roomName string) error
	HandleSwitchRoom(ctx context.Context, username string, roomID int64) error
	HandleRoomNameRequest(ctx context.Context, username string) error
	HandleDisconnect(ctx context.Context, username string) error
}

// ClientView is the client-side capability commands are applied against.
// Calls are fire-and-forget.
type ClientView interface {
	OnMessage(msg Message)
	OnRoomDirectory(rooms []RoomSummary)
	OnRoomName(name string)
	OnLoginResult(accepted bool)
}

// SendMessage builds a chat line request.
func SendMessage(username, text string) Command {
	return Command{Kind: CommandSendMessage, User: username, Text: text}
}

// CreateRoom builds a create-and-move request.
func CreateRoom(username, roomName string) Command {
	return Command{Kind: CommandCreateRoom, User: username, RoomName: roomName}
}

// SwitchRoom builds a move request.
func SwitchRoom(username string, roomID int64) Command {
	return Command{Kind: CommandSwitchRoom, User: username, RoomID: roomID}
}

// RequestRoomName builds a room name query.
func RequestRoomName(username string) Command {
	return Command{Kind: CommandRequestRoomName, User: username}
}

// Disconnect builds a clean exit request.
func Disconnect(username string) Command {
	return Command{Kind: CommandDisconnect, User: username}
}

// MessagePush wraps a message for delivery to a client.
func MessagePush(msg Message) Command {
	return Command{Kind: CommandMessagePush, Message: msg}
}

// RoomNamePush tells a client its room name.
func RoomNamePush(name string) Command {
	return Command{Kind: CommandRoomNamePush, RoomName: name}
}

// RoomDirectoryPush delivers a directory snapshot.
func RoomDirectoryPush(rooms []RoomSummary) Command {
	return Command{Kind: CommandRoomDirectoryPush, Rooms: rooms}
}

// LoginResult answers the admission handshake.
func LoginResult(accepted bool) Command {
	return Command{Kind: CommandLoginResult, Accepted: accepted}
}

// LoginRejected is a failed LoginResult carrying an error code for the client.
func LoginRejected(reason string) Command {
	return Command{Kind: CommandLoginResult, Reason: reason}
}

// ApplyToRoom invokes the RoomControl method matching the command's kind.
func (c Command) ApplyToRoom(ctx context.Context, room RoomControl) error {
	switch c.Kind {
	case CommandSendMessage:
		return room.HandleSend(ctx, c.User, c.Text)
	case CommandCreateRoom:
		return room.HandleCreateRoom(ctx, c.User, c.RoomName)
	case CommandSwitchRoom:
		return room.HandleSwitchRoom(ctx, c.User, c.RoomID)
	case CommandRequestRoomName:
		return room.HandleRoomNameRequest(ctx, c.User)
	case CommandDisconnect:
		return room.HandleDisconnect(ctx, c.User)
	default:
		return fmt.Errorf("apply %s to room: %w", c.Kind, ErrWrongRecipient)
	}
}

// ApplyToClient invokes the ClientView method matching the command's kind.
func (c Command) ApplyToClient(view ClientView) error {
	switch c.Kind {
	case CommandMessagePush:
		view.OnMessage(c.Message)
	case CommandRoomNamePush:
		view.OnRoomName(c.RoomName)
	case CommandRoomDirectoryPush:
		view.OnRoomDirectory(c.Rooms)
	case CommandLoginResult:
		view.OnLoginResult(c.Accepted)
	default:
		return fmt.Errorf("apply %s to client: %w", c.Kind, ErrWrongRecipient)
	}
	return nil
}
