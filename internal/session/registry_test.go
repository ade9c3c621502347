package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoomGeneratesUniqueIDs(t *testing.T) {
	r := NewRegistry()

	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		room := r.CreateRoom(fmt.Sprintf("conn-%d", i), "player")
		require.Len(t, room.ID, roomIDLength)
		require.False(t, seen[room.ID], "room ID %q issued twice", room.ID)
		seen[room.ID] = true
	}
	assert.Equal(t, 500, r.Len())
}

func TestCreateRoomDefaults(t *testing.T) {
	r := NewRegistry()

	room := r.CreateRoom("conn-a", "alice")

	require.Len(t, room.Members, 1)
	assert.Equal(t, "conn-a", room.Members[0].ConnectionID)
	assert.Equal(t, "alice", room.Members[0].DisplayName)
	assert.True(t, room.Members[0].IsActiveDrawer)
	assert.False(t, room.Started)
	assert.Equal(t, DefaultRoomSettings(), room.Settings)
}

func TestJoinRoomMissingRoom(t *testing.T) {
	r := NewRegistry()
	r.CreateRoom("conn-a", "alice")

	_, err := r.JoinRoom("nosuch", "conn-b", "bob")

	require.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, 1, r.Len())
}

func TestJoinRoomPreservesOrderAndDrawerFlag(t *testing.T) {
	r := NewRegistry()
	created := r.CreateRoom("conn-a", "alice")

	_, err := r.JoinRoom(created.ID, "conn-b", "bob")
	require.NoError(t, err)
	room, err := r.JoinRoom(created.ID, "conn-c", "carol")
	require.NoError(t, err)

	require.Len(t, room.Members, 3)
	assert.Equal(t, []string{"conn-a", "conn-b", "conn-c"}, connIDs(room.Members))
	assert.True(t, room.Members[0].IsActiveDrawer)
	assert.False(t, room.Members[1].IsActiveDrawer)
	assert.False(t, room.Members[2].IsActiveDrawer)
}

func TestRemoveMemberKeepsOrder(t *testing.T) {
	r := NewRegistry()
	created := r.CreateRoom("conn-a", "alice")
	_, err := r.JoinRoom(created.ID, "conn-b", "bob")
	require.NoError(t, err)
	_, err = r.JoinRoom(created.ID, "conn-c", "carol")
	require.NoError(t, err)

	members, removed, deleted := r.RemoveMember(created.ID, "conn-b")

	assert.True(t, removed)
	assert.False(t, deleted)
	assert.Equal(t, []string{"conn-a", "conn-c"}, connIDs(members))
}

func TestRemoveLastMemberDeletesRoom(t *testing.T) {
	r := NewRegistry()
	created := r.CreateRoom("conn-a", "alice")

	_, removed, deleted := r.RemoveMember(created.ID, "conn-a")

	assert.True(t, removed)
	assert.True(t, deleted)
	_, exists := r.Room(created.ID)
	assert.False(t, exists)
	assert.Equal(t, 0, r.Len())
}

func TestRemoveMemberToleratesStaleReferences(t *testing.T) {
	r := NewRegistry()
	created := r.CreateRoom("conn-a", "alice")

	_, removed, deleted := r.RemoveMember("nosuch", "conn-a")
	assert.False(t, removed)
	assert.False(t, deleted)

	_, removed, deleted = r.RemoveMember(created.ID, "conn-gone")
	assert.False(t, removed)
	assert.False(t, deleted)

	room, exists := r.Room(created.ID)
	require.True(t, exists)
	assert.Len(t, room.Members, 1)
}

func TestUpdateSettingsReplacesWholesale(t *testing.T) {
	r := NewRegistry()
	created := r.CreateRoom("conn-a", "alice")

	next := RoomSettings{MaxPlayers: 12, Rounds: 8, DrawTimeSeconds: 30, Hints: 3}
	require.True(t, r.UpdateSettings(created.ID, next))
	assert.False(t, r.UpdateSettings("nosuch", next))

	room, exists := r.Room(created.ID)
	require.True(t, exists)
	assert.Equal(t, next, room.Settings)
}

func TestMarkStartedIsIdempotent(t *testing.T) {
	r := NewRegistry()
	created := r.CreateRoom("conn-a", "alice")

	require.True(t, r.MarkStarted(created.ID))
	require.True(t, r.MarkStarted(created.ID))
	assert.False(t, r.MarkStarted("nosuch"))

	room, exists := r.Room(created.ID)
	require.True(t, exists)
	assert.True(t, room.Started)
}

func TestFindRoomByConnection(t *testing.T) {
	r := NewRegistry()
	created := r.CreateRoom("conn-a", "alice")
	_, err := r.JoinRoom(created.ID, "conn-b", "bob")
	require.NoError(t, err)

	roomID, ok := r.FindRoomByConnection("conn-b")
	require.True(t, ok)
	assert.Equal(t, created.ID, roomID)

	_, ok = r.FindRoomByConnection("conn-gone")
	assert.False(t, ok)
}

func TestSnapshotsDoNotAliasRegistryState(t *testing.T) {
	r := NewRegistry()
	created := r.CreateRoom("conn-a", "alice")

	created.Members[0].DisplayName = "mallory"

	room, exists := r.Room(created.ID)
	require.True(t, exists)
	assert.Equal(t, "alice", room.Members[0].DisplayName)
}

func connIDs(members []Participant) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ConnectionID
	}
	return ids
}
