package core

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatt-server/internal/metrics"
)

const (
	defaultMaxNameLength = 32
	lobbyName            = "Lobby"
)

// ErrRegistryClosed is returned by admission after Close.
var ErrRegistryClosed = errors.New("registry closed")

// RoomCatalog records created rooms so ids survive restarts.
type RoomCatalog interface {
	SaveRoom(ctx context.Context, id int64, name string) error
}

// Options configures a Registry. Zero values disable the optional parts.
type Options struct {
	Logger         *zerolog.Logger
	Catalog        RoomCatalog
	Metrics        *metrics.Metrics
	GossipInterval time.Duration
	WriteTimeout   time.Duration
	MaxNameLength  int
}

// Registry is the single authority for name uniqueness and room existence.
//
// Lock order: Registry.mu before Room.mu. Channel writes never happen while
// either lock is held.
type Registry struct {
	log            zerolog.Logger
	catalog        RoomCatalog
	metrics        *metrics.Metrics
	gossipInterval time.Duration
	writeTimeout   time.Duration
	maxNameLength  int

	mu       sync.RWMutex
	rooms    map[int64]*Room
	names    map[string]*Session
	location map[*Session]*Room
	lastID   int64
	closed   bool

	gossipCtx   context.Context
	stopGossip  context.CancelFunc
	gossipGroup sync.WaitGroup
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	maxName := opts.MaxNameLength
	if maxName <= 0 {
		maxName = defaultMaxNameLength
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		log:            logger,
		catalog:        opts.Catalog,
		metrics:        opts.Metrics,
		gossipInterval: opts.GossipInterval,
		writeTimeout:   opts.WriteTimeout,
		maxNameLength:  maxName,
		rooms:          make(map[int64]*Room),
		names:          make(map[string]*Session),
		location:       make(map[*Session]*Room),
		gossipCtx:      ctx,
		stopGossip:     cancel,
	}
}

func (r *Registry) validName(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	return utf8.RuneCountInString(name) <= r.maxNameLength
}

// Admit reserves name case-insensitively and binds it to ch.
func (r *Registry) Admit(name string, ch Channel) (*Session, error) {
	if !r.validName(name) {
		return nil, fmt.Errorf("admit %q: %w", name, ErrInvalidName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	key := NameKey(name)
	if _, taken := r.names[key]; taken {
		return nil, fmt.Errorf("admit %q: %w", name, ErrNameTaken)
	}
	s := newSession(name, ch)
	r.names[key] = s
	r.metrics.SessionOpened()
	return s, nil
}

// Release frees the session's name. It is a no-op unless the name is still
// held by this exact session.
func (r *Registry) Release(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.releaseLocked(s)
}

func (r *Registry) releaseLocked(s *Session) bool {
	if cur, ok := r.names[s.Key()]; !ok || cur != s {
		return false
	}
	delete(r.names, s.Key())
	r.metrics.SessionClosed()
	return true
}

// Claimed reports whether name is currently held.
func (r *Registry) Claimed(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.names[NameKey(name)]
	return ok
}

// CreateRoom allocates the next id and registers an empty room.
func (r *Registry) CreateRoom(ctx context.Context, name string) *Room {
	r.mu.Lock()
	room := r.addRoomLocked(name)
	r.mu.Unlock()

	r.persist(ctx, room)
	return room
}

// RestoreRoom registers a room under a previously issued id.
func (r *Registry) RestoreRoom(id int64, name string) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[id]; exists {
		return nil, fmt.Errorf("restore room %d: duplicate id", id)
	}
	if id > r.lastID {
		r.lastID = id
	}
	return r.registerLocked(id, name), nil
}

func (r *Registry) addRoomLocked(name string) *Room {
	r.lastID++
	id := r.lastID
	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("Room %d", id)
	}
	return r.registerLocked(id, name)
}

func (r *Registry) registerLocked(id int64, name string) *Room {
	room := newRoom(id, name, r)
	r.rooms[id] = room
	r.metrics.RoomAdded()

	if r.gossipInterval > 0 && !r.closed {
		r.gossipGroup.Add(1)
		go func() {
			defer r.gossipGroup.Done()
			room.gossip(r.gossipCtx, r.gossipInterval)
		}()
	}
	return room
}

func (r *Registry) persist(ctx context.Context, room *Room) {
	if r.catalog == nil {
		return
	}
	if err := r.catalog.SaveRoom(ctx, room.ID(), room.Name()); err != nil {
		r.log.Warn().Err(err).Int64("room_id", room.ID()).Msg("failed to record room")
	}
}

// Room looks up a room by id.
func (r *Registry) Room(id int64) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

// RoomOf returns the room s currently belongs to, or nil.
func (r *Registry) RoomOf(s *Session) *Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.location[s]
}

// Place puts a freshly admitted session into the lobby, the room with the
// lowest id. A lobby is created if no room exists yet.
func (r *Registry) Place(ctx context.Context, s *Session) (*Room, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	var lobby *Room
	for _, room := range r.rooms {
		if lobby == nil || room.ID() < lobby.ID() {
			lobby = room
		}
	}
	created := false
	if lobby == nil {
		lobby = r.addRoomLocked(lobbyName)
		created = true
	}
	moved := r.transferLocked(s, lobby)
	r.mu.Unlock()

	if created {
		r.persist(ctx, lobby)
	}
	if !moved {
		return nil, fmt.Errorf("place %q: %w", s.Name(), ErrNoSuchMember)
	}
	lobby.greet(ctx, s)
	return lobby, nil
}

// CreateRoomAndMove creates a room named name and moves s into it. Any name
// is accepted, duplicates included.
func (r *Registry) CreateRoomAndMove(ctx context.Context, s *Session, name string) *Room {
	r.mu.Lock()
	room := r.addRoomLocked(name)
	moved := r.transferLocked(s, room)
	r.mu.Unlock()

	r.persist(ctx, room)
	if moved {
		room.greet(ctx, s)
	}
	return room
}

// MoveToRoom moves s into room roomID. It returns false if the room does
// not exist. Moving into the current room succeeds without any change.
func (r *Registry) MoveToRoom(ctx context.Context, s *Session, roomID int64) bool {
	r.mu.Lock()
	target, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if r.location[s] == target {
		r.mu.Unlock()
		return true
	}
	moved := r.transferLocked(s, target)
	r.mu.Unlock()

	if !moved {
		return false
	}
	target.greet(ctx, s)
	return true
}

// transferLocked detaches s from its current room and attaches it to target.
// Sessions that no longer hold their name are not moved.
func (r *Registry) transferLocked(s *Session, target *Room) bool {
	if cur, ok := r.names[s.Key()]; !ok || cur != s {
		return false
	}
	if from := r.location[s]; from != nil {
		from.detach(s)
	}
	target.attach(s)
	r.location[s] = target
	return true
}

// Disconnect removes s from its room, releases its name, closes its channel
// and tells the room. Safe to call more than once; only the first call that
// finds the session registered returns true.
func (r *Registry) Disconnect(ctx context.Context, s *Session, notice string) bool {
	r.mu.Lock()
	room := r.location[s]
	delete(r.location, s)
	left := room != nil && room.detach(s)
	released := r.releaseLocked(s)
	r.mu.Unlock()

	if err := s.Close(); err != nil {
		r.log.Debug().Err(err).Str("user", s.Name()).Msg("close channel")
	}
	if left {
		room.BroadcastMessage(ctx, NewSystemMessage(s.Name()+" "+notice))
	}
	return released
}

// RoomDirectory returns a snapshot of every room ordered by id.
func (r *Registry) RoomDirectory() []RoomSummary {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	slices.SortFunc(rooms, func(a, b *Room) int {
		return cmp.Compare(a.ID(), b.ID())
	})

	out := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Summary())
	}
	return out
}

// Close stops gossip and closes every session channel. Connection loops
// observe the closed channels and clean up after themselves.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	sessions := make([]*Session, 0, len(r.names))
	for _, s := range r.names {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	r.stopGossip()
	r.gossipGroup.Wait()

	for _, s := range sessions {
		if err := s.Close(); err != nil {
			r.log.Debug().Err(err).Str("user", s.Name()).Msg("close channel")
		}
	}
	r.log.Info().Int("sessions", len(sessions)).Msg("registry closed")
}
