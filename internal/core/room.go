package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Room groups sessions that see each other's messages.
// Membership is only changed by the owning Registry; the room itself never
// calls back into the registry while holding mu.
type Room struct {
	id       int64
	name     string
	registry *Registry
	log      zerolog.Logger

	mu      sync.RWMutex
	members map[string]*Session
}

func newRoom(id int64, name string, registry *Registry) *Room {
	return &Room{
		id:       id,
		name:     name,
		registry: registry,
		log:      registry.log.With().Int64("room_id", id).Str("room", name).Logger(),
		members:  make(map[string]*Session),
	}
}

// ID returns the room id.
func (r *Room) ID() int64 { return r.id }

// Name returns the room name.
func (r *Room) Name() string { return r.name }

// Len returns the current member count.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Empty returns true if no sessions are in the room.
func (r *Room) Empty() bool {
	return r.Len() == 0
}

// Members returns the display names of current members.
func (r *Room) Members() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.members))
	for _, s := range r.members {
		names = append(names, s.Name())
	}
	return names
}

// Has reports whether s is a member.
func (r *Room) Has(s *Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members[s.Key()] == s
}

// Summary projects the room for the directory.
func (r *Room) Summary() RoomSummary {
	return RoomSummary{ID: r.id, Name: r.name, Members: r.Len()}
}

func (r *Room) String() string {
	return fmt.Sprintf("CR%04dU%02d", r.id, r.Len())
}

// attach inserts s. Returns true if newly added.
func (r *Room) attach(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.members[s.Key()]; exists {
		return false
	}
	r.members[s.Key()] = s
	return true
}

// detach deletes s. Removing a session that is not present is a no-op.
func (r *Room) detach(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, exists := r.members[s.Key()]; !exists || cur != s {
		return false
	}
	delete(r.members, s.Key())
	return true
}

func (r *Room) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.members))
	for _, s := range r.members {
		out = append(out, s)
	}
	return out
}

func (r *Room) member(username string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.members[NameKey(username)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q in room %d", ErrNoSuchMember, username, r.id)
	}
	return s, nil
}

// greet announces a new member and tells it where it is.
func (r *Room) greet(ctx context.Context, s *Session) {
	r.log.Info().Str("user", s.Name()).Msg("session joined room")
	r.BroadcastMessage(ctx, NewSystemMessage(s.Name()+" connected"))
	r.push(ctx, s, RoomNamePush(r.name))
	r.push(ctx, s, RoomDirectoryPush(r.registry.RoomDirectory()))
}

// BroadcastMessage pushes msg to every member.
func (r *Room) BroadcastMessage(ctx context.Context, msg Message) {
	delivered := r.broadcast(ctx, MessagePush(msg))
	r.registry.metrics.MessagesDelivered(delivered)
}

// broadcast writes cmd to a snapshot of the members, one at a time. Members
// whose write fails are evicted after the pass. Returns successful writes.
func (r *Room) broadcast(ctx context.Context, cmd Command) int {
	var failed []*Session
	delivered := 0
	for _, s := range r.snapshot() {
		if err := r.write(ctx, s, cmd); err != nil {
			r.log.Warn().Err(err).Str("user", s.Name()).Stringer("kind", cmd.Kind).Msg("write failed, evicting")
			failed = append(failed, s)
			continue
		}
		delivered++
	}
	for _, s := range failed {
		r.evict(ctx, s)
	}
	return delivered
}

// push writes cmd to a single member, evicting it on failure.
func (r *Room) push(ctx context.Context, s *Session, cmd Command) {
	if err := r.write(ctx, s, cmd); err != nil {
		r.log.Warn().Err(err).Str("user", s.Name()).Stringer("kind", cmd.Kind).Msg("write failed, evicting")
		r.evict(ctx, s)
	}
}

// write bounds a single channel write. Cancellation of the requesting
// connection's context must not fail writes to other members.
func (r *Room) write(ctx context.Context, s *Session, cmd Command) error {
	ctx = context.WithoutCancel(ctx)
	if timeout := r.registry.writeTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.Send(ctx, cmd)
}

func (r *Room) evict(ctx context.Context, s *Session) {
	if r.registry.Disconnect(ctx, s, "disconnected") {
		r.registry.metrics.Evicted()
	}
}

// HandleSend broadcasts a chat line from a member.
func (r *Room) HandleSend(ctx context.Context, username, text string) error {
	s, err := r.member(username)
	if err != nil {
		return err
	}
	r.BroadcastMessage(ctx, NewChatMessage(s.Name(), text))
	return nil
}

// HandleCreateRoom moves a member into a freshly created room.
func (r *Room) HandleCreateRoom(ctx context.Context, username, roomName string) error {
	s, err := r.member(username)
	if err != nil {
		return err
	}
	target := r.registry.CreateRoomAndMove(ctx, s, roomName)
	r.log.Info().Str("user", s.Name()).Int64("target_room_id", target.ID()).Msg("room created")
	r.announceLeft(ctx, s)
	return nil
}

// HandleSwitchRoom moves a member into an existing room. Switching to this
// room is ignored.
func (r *Room) HandleSwitchRoom(ctx context.Context, username string, roomID int64) error {
	if roomID == r.id {
		r.log.Debug().Str("user", username).Msg("ignoring switch to current room")
		return nil
	}
	s, err := r.member(username)
	if err != nil {
		return err
	}
	if !r.registry.MoveToRoom(ctx, s, roomID) {
		notice := coreError(ErrCodeRoomNotFound, fmt.Sprintf("room %d does not exist", roomID))
		r.push(ctx, s, MessagePush(NewSystemMessage(notice.Message)))
		return fmt.Errorf("switch %q to %d: %w", s.Name(), roomID, ErrNoSuchRoom)
	}
	r.announceLeft(ctx, s)
	return nil
}

// HandleRoomNameRequest tells one member the room's name.
func (r *Room) HandleRoomNameRequest(ctx context.Context, username string) error {
	s, err := r.member(username)
	if err != nil {
		return err
	}
	r.push(ctx, s, RoomNamePush(r.name))
	return nil
}

// HandleDisconnect removes a member on its own request.
func (r *Room) HandleDisconnect(ctx context.Context, username string) error {
	s, err := r.member(username)
	if err != nil {
		return err
	}
	r.registry.Disconnect(ctx, s, "disconnected")
	return nil
}

// announceLeft tells the remaining members that s moved elsewhere.
func (r *Room) announceLeft(ctx context.Context, s *Session) {
	if cur := r.registry.RoomOf(s); cur == nil || cur == r {
		return
	}
	r.BroadcastMessage(ctx, NewSystemMessage(s.Name()+" left the room"))
}

// gossip pushes the room directory to all members every interval until ctx
// is done.
func (r *Room) gossip(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.Empty() {
				continue
			}
			r.broadcast(ctx, RoomDirectoryPush(r.registry.RoomDirectory()))
		}
	}
}
