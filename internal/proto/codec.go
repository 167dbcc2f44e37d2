package proto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vovakirdan/chatt-server/internal/core"
)

// Encode maps a command to its wire envelope.
func Encode(cmd core.Command) (Envelope, error) {
	var (
		typ  string
		data any
	)
	switch cmd.Kind {
	case core.CommandSendMessage:
		typ, data = TypeSend, SendData{Text: cmd.Text}
	case core.CommandCreateRoom:
		typ, data = TypeCreateRoom, CreateRoomData{Name: cmd.RoomName}
	case core.CommandSwitchRoom:
		typ, data = TypeSwitchRoom, SwitchRoomData{RoomID: cmd.RoomID}
	case core.CommandRequestRoomName:
		typ = TypeRoomName
	case core.CommandDisconnect:
		typ = TypeDisconnect
	case core.CommandMessagePush:
		typ, data = TypeMessage, messageData(cmd.Message)
	case core.CommandRoomNamePush:
		typ, data = TypeRoomName, RoomNameData{Name: cmd.RoomName}
	case core.CommandRoomDirectoryPush:
		rooms := make([]RoomData, 0, len(cmd.Rooms))
		for _, r := range cmd.Rooms {
			rooms = append(rooms, RoomData{ID: r.ID, Name: r.Name, Members: r.Members})
		}
		typ, data = TypeRooms, RoomsData{Rooms: rooms}
	case core.CommandLoginResult:
		typ, data = TypeLogin, LoginData{Accepted: cmd.Accepted, Reason: cmd.Reason}
	default:
		return Envelope{}, fmt.Errorf("encode %s: unknown kind", cmd.Kind)
	}

	env := Envelope{Type: typ}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s: %w", cmd.Kind, err)
		}
		env.Data = raw
	}
	return env, nil
}

// DecodeInbound maps a client frame to a room-bound command. The frame's
// room_name type is the client's request form.
func DecodeInbound(env Envelope) (core.Command, error) {
	switch env.Type {
	case TypeSend:
		var d SendData
		if err := unmarshal(env, &d); err != nil {
			return core.Command{}, err
		}
		return core.SendMessage("", d.Text), nil
	case TypeCreateRoom:
		var d CreateRoomData
		if err := unmarshal(env, &d); err != nil {
			return core.Command{}, err
		}
		return core.CreateRoom("", d.Name), nil
	case TypeSwitchRoom:
		var d SwitchRoomData
		if err := unmarshal(env, &d); err != nil {
			return core.Command{}, err
		}
		return core.SwitchRoom("", d.RoomID), nil
	case TypeRoomName:
		return core.RequestRoomName(""), nil
	case TypeDisconnect:
		return core.Disconnect(""), nil
	default:
		return core.Command{}, fmt.Errorf("inbound type %q: %w", env.Type, core.ErrCorruptStream)
	}
}

// DecodeOutbound maps a server frame to a client-bound command.
func DecodeOutbound(env Envelope) (core.Command, error) {
	switch env.Type {
	case TypeLogin:
		var d LoginData
		if err := unmarshal(env, &d); err != nil {
			return core.Command{}, err
		}
		if !d.Accepted {
			return core.LoginRejected(d.Reason), nil
		}
		return core.LoginResult(true), nil
	case TypeMessage:
		var d MessageData
		if err := unmarshal(env, &d); err != nil {
			return core.Command{}, err
		}
		return core.MessagePush(core.Message{
			ID:        d.ID,
			Sender:    d.User,
			Text:      d.Text,
			CreatedAt: time.UnixMilli(d.TS),
			IsAction:  d.Action,
			IsSystem:  d.System,
		}), nil
	case TypeRoomName:
		var d RoomNameData
		if err := unmarshal(env, &d); err != nil {
			return core.Command{}, err
		}
		return core.RoomNamePush(d.Name), nil
	case TypeRooms:
		var d RoomsData
		if err := unmarshal(env, &d); err != nil {
			return core.Command{}, err
		}
		rooms := make([]core.RoomSummary, 0, len(d.Rooms))
		for _, r := range d.Rooms {
			rooms = append(rooms, core.RoomSummary{ID: r.ID, Name: r.Name, Members: r.Members})
		}
		return core.RoomDirectoryPush(rooms), nil
	default:
		return core.Command{}, fmt.Errorf("outbound type %q: %w", env.Type, core.ErrCorruptStream)
	}
}

func messageData(m core.Message) MessageData {
	return MessageData{
		ID:     m.ID,
		User:   m.Sender,
		Text:   m.Text,
		TS:     m.CreatedAt.UnixMilli(),
		Action: m.IsAction,
		System: m.IsSystem,
	}
}

func unmarshal(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s: missing data: %w", env.Type, core.ErrCorruptStream)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%s: %v: %w", env.Type, err, core.ErrCorruptStream)
	}
	return nil
}

// Hello builds the client handshake frame.
func Hello(user string) (Envelope, error) {
	raw, err := json.Marshal(HelloData{User: user, Protocol: ProtocolVersion})
	if err != nil {
		return Envelope{}, fmt.Errorf("encode hello: %w", err)
	}
	return Envelope{Type: TypeHello, Data: raw}, nil
}

// DecodeHello reads the handshake frame.
func DecodeHello(env Envelope) (HelloData, error) {
	var d HelloData
	if env.Type != TypeHello {
		return d, fmt.Errorf("expected %s, got %q: %w", TypeHello, env.Type, core.ErrCorruptStream)
	}
	if err := unmarshal(env, &d); err != nil {
		return d, err
	}
	return d, nil
}
