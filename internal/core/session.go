package core

import (
	"context"
	"strings"
	"sync"

	"github.com/vovakirdan/chatt-server/internal/utils"
)

// Channel is one client's bidirectional connection as provided by a transport.
// Send must be safe for concurrent use; Receive is only called by the owning
// Connection Loop. Implementations wrap their failures in ErrChannelClosed or
// ErrCorruptStream.
type Channel interface {
	Send(ctx context.Context, cmd Command) error
	Receive(ctx context.Context) (Command, error)
	Close() error
}

// NameKey returns the case-insensitive identity of a display name.
func NameKey(name string) string {
	return strings.ToLower(name)
}

// Session binds a display name to a Channel. Identity is immutable.
type Session struct {
	id      string
	name    string
	key     string
	channel Channel

	closeOnce sync.Once
	closeErr  error
}

func newSession(name string, ch Channel) *Session {
	return &Session{
		id:      utils.NewSessionID(),
		name:    name,
		key:     NameKey(name),
		channel: ch,
	}
}

// ID returns the per-connection id used for log correlation.
func (s *Session) ID() string { return s.id }

// Name returns the display name as claimed.
func (s *Session) Name() string { return s.name }

// Key returns the case-insensitive identity.
func (s *Session) Key() string { return s.key }

// Is reports whether both sessions carry the same identity.
func (s *Session) Is(other *Session) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.key == other.key
}

// Send writes one command to the session's channel.
func (s *Session) Send(ctx context.Context, cmd Command) error {
	return s.channel.Send(ctx, cmd)
}

// Receive blocks for the next command from the session's channel.
func (s *Session) Receive(ctx context.Context) (Command, error) {
	return s.channel.Receive(ctx)
}

// Close closes the channel once; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.channel.Close()
	})
	return s.closeErr
}
