package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type frame struct {
	cmd Command
	err error
}

// fakeChannel records every sent command and serves inbound frames queued by
// the test. A channel marked broken fails all sends.
type fakeChannel struct {
	mu     sync.Mutex
	sent   []Command
	broken bool
	closed bool

	inbound   chan frame
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		inbound: make(chan frame, 16),
		done:    make(chan struct{}),
	}
}

func (c *fakeChannel) Send(_ context.Context, cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("send %s: %w", cmd.Kind, ErrChannelClosed)
	}
	if c.broken {
		return fmt.Errorf("send %s: connection reset: %w", cmd.Kind, ErrChannelClosed)
	}
	c.sent = append(c.sent, cmd)
	return nil
}

func (c *fakeChannel) Receive(ctx context.Context) (Command, error) {
	select {
	case f := <-c.inbound:
		return f.cmd, f.err
	case <-c.done:
		return Command{}, fmt.Errorf("receive: %w", ErrChannelClosed)
	case <-ctx.Done():
		return Command{}, ctx.Err()
	}
}

func (c *fakeChannel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
	return nil
}

func (c *fakeChannel) push(cmd Command) { c.inbound <- frame{cmd: cmd} }

func (c *fakeChannel) fail(err error) { c.inbound <- frame{err: err} }

func (c *fakeChannel) breakSends() {
	c.mu.Lock()
	c.broken = true
	c.mu.Unlock()
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) sentCommands() []Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Command(nil), c.sent...)
}

// messages returns the text of every MessagePush sent so far.
func (c *fakeChannel) messages() []Message {
	var out []Message
	for _, cmd := range c.sentCommands() {
		if cmd.Kind == CommandMessagePush {
			out = append(out, cmd.Message)
		}
	}
	return out
}

func (c *fakeChannel) hasSystemMessage(text string) bool {
	for _, m := range c.messages() {
		if m.IsSystem && m.Text == text {
			return true
		}
	}
	return false
}

func (c *fakeChannel) reset() {
	c.mu.Lock()
	c.sent = nil
	c.mu.Unlock()
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(Options{WriteTimeout: time.Second})
	t.Cleanup(r.Close)
	return r
}

// join admits name through the full handshake and returns its session.
func join(t *testing.T, r *Registry, name string) (*Session, *fakeChannel) {
	t.Helper()
	ch := newFakeChannel()
	s, err := r.Accept(context.Background(), name, ch)
	if err != nil {
		t.Fatalf("accept %q: %v", name, err)
	}
	return s, ch
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
