package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// serve runs the connection loop for s and returns its result channel.
func serve(r *Registry, s *Session) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- r.Serve(context.Background(), s)
	}()
	return done
}

func waitServe(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("connection loop did not exit")
		return nil
	}
}

func TestServeDisconnectCleansUp(t *testing.T) {
	r, room, sessions, channels := setupRoom(t, "alice", "bob")
	done := serve(r, sessions["bob"])

	channels["bob"].push(SendMessage("", "hi"))
	waitFor(t, "alice to receive bob's message", func() bool {
		for _, m := range channels["alice"].messages() {
			if m.Sender == "bob" && m.Text == "hi" {
				return true
			}
		}
		return false
	})

	channels["bob"].push(Disconnect(""))
	if err := waitServe(t, done); err != nil {
		t.Fatalf("clean disconnect returned %v", err)
	}

	if room.Has(sessions["bob"]) || r.Claimed("bob") || !channels["bob"].isClosed() {
		t.Fatal("bob should be fully removed")
	}
	if !channels["alice"].hasSystemMessage("bob disconnected") {
		t.Fatal("alice should be told bob disconnected")
	}
}

func TestServeStampsSender(t *testing.T) {
	r, _, sessions, channels := setupRoom(t, "alice", "bob")
	done := serve(r, sessions["bob"])

	channels["bob"].push(SendMessage("alice", "spoofed"))
	waitFor(t, "the message", func() bool { return len(channels["alice"].messages()) > 0 })

	if msg := channels["alice"].messages()[0]; msg.Sender != "bob" {
		t.Fatalf("sender must be the connection's own name, got %q", msg.Sender)
	}

	channels["bob"].push(Disconnect(""))
	waitServe(t, done)
}

func TestServeFollowsRoomChanges(t *testing.T) {
	r, lobby, sessions, channels := setupRoom(t, "alice", "bob")
	done := serve(r, sessions["bob"])

	channels["bob"].push(CreateRoom("", "lounge"))
	waitFor(t, "bob to move", func() bool {
		room := r.RoomOf(sessions["bob"])
		return room != nil && room != lobby
	})
	channels["alice"].reset()

	channels["bob"].push(SendMessage("", "anyone?"))
	waitFor(t, "bob to hear himself in the lounge", func() bool {
		for _, m := range channels["bob"].messages() {
			if m.Text == "anyone?" {
				return true
			}
		}
		return false
	})
	if n := len(channels["alice"].messages()); n != 0 {
		t.Fatalf("alice stayed in the lobby and should hear nothing, got %d messages", n)
	}

	channels["bob"].push(SwitchRoom("", lobby.ID()))
	waitFor(t, "bob to return", func() bool { return r.RoomOf(sessions["bob"]) == lobby })

	channels["bob"].push(Disconnect(""))
	waitServe(t, done)
}

func TestServeCorruptStream(t *testing.T) {
	r, room, sessions, channels := setupRoom(t, "alice", "bob")
	done := serve(r, sessions["bob"])

	channels["bob"].fail(fmt.Errorf("frame 7: %w", ErrCorruptStream))
	if err := waitServe(t, done); !errors.Is(err, ErrCorruptStream) {
		t.Fatalf("expected ErrCorruptStream, got %v", err)
	}
	if room.Has(sessions["bob"]) || r.Claimed("bob") {
		t.Fatal("corrupt stream must remove the session")
	}
	if !channels["alice"].hasSystemMessage("bob disconnected") {
		t.Fatal("alice should be told bob disconnected")
	}
}

func TestServeChannelClosed(t *testing.T) {
	r, _, sessions, channels := setupRoom(t, "alice", "bob")
	done := serve(r, sessions["bob"])

	channels["bob"].Close()
	if err := waitServe(t, done); err != nil {
		t.Fatalf("closed channel should end quietly, got %v", err)
	}
	if r.Claimed("bob") {
		t.Fatal("name should be released")
	}
}

func TestServeSkipsMisdirectedAndFailedCommands(t *testing.T) {
	r, room, sessions, channels := setupRoom(t, "alice", "bob")
	done := serve(r, sessions["bob"])

	channels["bob"].push(RoomNamePush("not for the server"))
	channels["bob"].push(SwitchRoom("", 404))
	channels["bob"].push(SendMessage("", "still alive"))

	waitFor(t, "the message after the dropped commands", func() bool {
		for _, m := range channels["alice"].messages() {
			if m.Text == "still alive" {
				return true
			}
		}
		return false
	})
	if !room.Has(sessions["bob"]) {
		t.Fatal("bob should still be in the room")
	}

	channels["bob"].push(Disconnect(""))
	waitServe(t, done)
}

func TestAcceptRejectsTakenName(t *testing.T) {
	r := newTestRegistry(t)
	join(t, r, "alice")

	ch := newFakeChannel()
	if _, err := r.Accept(context.Background(), "ALICE", ch); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}

	sent := ch.sentCommands()
	if len(sent) != 1 || sent[0].Kind != CommandLoginResult || sent[0].Accepted || sent[0].Reason != ErrCodeNameTaken {
		t.Fatalf("expected a single rejected LoginResult, got %+v", sent)
	}
	if !ch.isClosed() {
		t.Fatal("rejected channel should be closed")
	}
}

func TestAcceptReleasesNameWhenLoginWriteFails(t *testing.T) {
	r := newTestRegistry(t)

	ch := newFakeChannel()
	ch.breakSends()
	if _, err := r.Accept(context.Background(), "ivan", ch); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("expected ErrChannelClosed, got %v", err)
	}
	if r.Claimed("ivan") {
		t.Fatal("name should be released when the login result cannot be written")
	}
	if !ch.isClosed() {
		t.Fatal("channel should be closed")
	}
}
