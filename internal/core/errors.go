package core

import "errors"

// Error codes for client-visible failures.
const (
	ErrCodeNameTaken    = "name_taken"
	ErrCodeInvalidName  = "invalid_name"
	ErrCodeRoomNotFound = "room_not_found"
	ErrCodeNotInRoom    = "not_in_room"
	ErrCodeUnavailable  = "unavailable"
	ErrCodeInternal     = "internal"
)

var (
	// ErrNameTaken is returned by admission when the display name is already claimed.
	ErrNameTaken = errors.New("name already taken")
	// ErrInvalidName is returned by admission when the display name is blank or too long.
	ErrInvalidName = errors.New("invalid name")
	// ErrNoSuchMember is returned when a command names a session that is not in the room.
	ErrNoSuchMember = errors.New("no such member")
	// ErrNoSuchRoom is returned when a command references an unknown room id.
	ErrNoSuchRoom = errors.New("no such room")
	// ErrChannelClosed is wrapped by transports when the peer went away.
	ErrChannelClosed = errors.New("channel closed")
	// ErrCorruptStream is wrapped by transports when a frame cannot be decoded.
	ErrCorruptStream = errors.New("corrupt stream")
	// ErrWrongRecipient is returned when a command is applied to the wrong side.
	ErrWrongRecipient = errors.New("command not applicable to recipient")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// ErrorCode maps an error to its client-visible code.
func ErrorCode(err error) string {
	var ce *CoreError
	switch {
	case errors.As(err, &ce):
		return ce.Code
	case errors.Is(err, ErrNameTaken):
		return ErrCodeNameTaken
	case errors.Is(err, ErrInvalidName):
		return ErrCodeInvalidName
	case errors.Is(err, ErrNoSuchRoom):
		return ErrCodeRoomNotFound
	case errors.Is(err, ErrNoSuchMember):
		return ErrCodeNotInRoom
	case errors.Is(err, ErrRegistryClosed):
		return ErrCodeUnavailable
	default:
		return ErrCodeInternal
	}
}
