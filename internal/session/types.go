package session

// Participant is one connected player inside a room, identified by the
// opaque connection handle the transport assigned to it.
type Participant struct {
	ConnectionID   string `json:"connectionId"`
	DisplayName    string `json:"displayName"`
	IsActiveDrawer bool   `json:"isActiveDrawer"`
}

// RoomSettings holds the pre-game configuration for a room. Any member may
// replace the whole struct before the game starts.
type RoomSettings struct {
	MaxPlayers      int `json:"maxPlayers"`
	Rounds          int `json:"rounds"`
	DrawTimeSeconds int `json:"drawTimeSeconds"`
	Hints           int `json:"hints"`
}

// DefaultRoomSettings returns the settings a freshly created room starts with.
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		MaxPlayers:      6,
		Rounds:          4,
		DrawTimeSeconds: 60,
		Hints:           1,
	}
}

// Room is a snapshot of one live room. Members is ordered by join time; the
// creator is always first and starts as the active drawer.
type Room struct {
	ID       string        `json:"roomId"`
	Members  []Participant `json:"roomData"`
	Settings RoomSettings  `json:"roomSettings"`
	Started  bool          `json:"started"`
}
