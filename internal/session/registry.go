package session

import (
	"math/rand"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	roomIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	roomIDLength   = 6
)

// Registry owns the mapping of room identifier to room state. All access
// goes through its methods so the invariants (unique IDs, no empty rooms)
// are enforced in one place. Every method tolerates a missing room or
// member as a normal, non-fatal case; disconnects race with everything.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*roomState
}

// roomState is the mutable room record. Snapshots handed to callers are
// always copies; nothing outside the registry holds a reference into it.
type roomState struct {
	id       string
	members  []Participant
	settings RoomSettings
	started  bool
}

// NewRegistry creates an empty room registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*roomState),
	}
}

// CreateRoom inserts a new room with the creator as its sole member and
// active drawer, and returns a snapshot of it. Room ID collisions are
// re-rolled internally and never surfaced.
func (r *Registry) CreateRoom(connID, displayName string) Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID := r.newRoomIDLocked()
	state := &roomState{
		id: roomID,
		members: []Participant{{
			ConnectionID:   connID,
			DisplayName:    displayName,
			IsActiveDrawer: true,
		}},
		settings: DefaultRoomSettings(),
	}
	r.rooms[roomID] = state

	log.Info().
		Str("room_id", roomID).
		Str("connection_id", connID).
		Msg("room created")

	return state.snapshot()
}

// JoinRoom appends a new participant to the room's member sequence and
// returns the updated snapshot. Join order is preserved; it drives turn
// rotation in the surrounding game.
func (r *Registry) JoinRoom(roomID, connID, displayName string) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}

	state.members = append(state.members, Participant{
		ConnectionID:   connID,
		DisplayName:    displayName,
		IsActiveDrawer: false,
	})

	log.Info().
		Str("room_id", roomID).
		Str("connection_id", connID).
		Int("members", len(state.members)).
		Msg("participant joined room")

	return state.snapshot(), nil
}

// RemoveMember removes the member with the given connection handle from the
// room. Removing the last member deletes the room entirely. A missing room
// or member is a silent no-op; removed reports whether anything changed and
// deleted whether the room was torn down. The returned members are the
// remaining roster for broadcast.
func (r *Registry) RemoveMember(roomID, connID string) (members []Participant, removed, deleted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[roomID]
	if !ok {
		return nil, false, false
	}

	idx := -1
	for i, m := range state.members {
		if m.ConnectionID == connID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, false, false
	}

	if len(state.members) == 1 {
		delete(r.rooms, roomID)
		log.Info().Str("room_id", roomID).Msg("last member left, room deleted")
		return nil, true, true
	}

	state.members = append(state.members[:idx], state.members[idx+1:]...)
	log.Info().
		Str("room_id", roomID).
		Str("connection_id", connID).
		Int("members", len(state.members)).
		Msg("participant removed from room")

	snap := state.snapshot()
	return snap.Members, true, false
}

// UpdateSettings replaces the room's settings wholesale. Returns false when
// the room no longer exists.
func (r *Registry) UpdateSettings(roomID string, settings RoomSettings) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	state.settings = settings
	return true
}

// MarkStarted flags the room's game as started. Idempotent; false when the
// room no longer exists.
func (r *Registry) MarkStarted(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	state.started = true
	return true
}

// Room returns a snapshot of the room, if it exists.
func (r *Registry) Room(roomID string) (Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return state.snapshot(), true
}

// FindRoomByConnection returns the ID of the room containing the given
// connection. Used by the disconnect sweep and by countdown requests, which
// carry no room identifier of their own.
func (r *Registry) FindRoomByConnection(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, state := range r.rooms {
		for _, m := range state.members {
			if m.ConnectionID == connID {
				return id, true
			}
		}
	}
	return "", false
}

// Len reports the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// newRoomIDLocked rolls short random room codes until one is free. The ID
// space is small on purpose (players type these); the registry lock is held
// so the insert that follows cannot race another roll.
func (r *Registry) newRoomIDLocked() string {
	var sb strings.Builder
	for {
		sb.Reset()
		for i := 0; i < roomIDLength; i++ {
			sb.WriteByte(roomIDAlphabet[rand.Intn(len(roomIDAlphabet))])
		}
		if _, taken := r.rooms[sb.String()]; !taken {
			return sb.String()
		}
	}
}

func (s *roomState) snapshot() Room {
	members := make([]Participant, len(s.members))
	copy(members, s.members)
	return Room{
		ID:       s.id,
		Members:  members,
		Settings: s.settings,
		Started:  s.started,
	}
}
