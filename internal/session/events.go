package session

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// Event is the wire envelope for every inbound and outbound message: an
// event name plus a JSON payload. Relay events keep their payload as raw
// bytes end to end so they are rebroadcast verbatim.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound event names.
const (
	EventCreateRoom           = "createRoom"
	EventJoinRoom             = "joinRoom"
	EventGetUsers             = "getUsers"
	EventStartGame            = "startGame"
	EventCheckRoom            = "checkRoom"
	EventNewClient            = "newClient"
	EventDraw                 = "draw"
	EventStartCountdown       = "startCountdown"
	EventStopCountdown        = "stopCountdown"
	EventGetInitialCountdown  = "getInitialCountdown"
	EventRestoreDrawing       = "restoreDrawing"
	EventClearCanvas          = "clearCanvas"
	EventFillColor            = "fillColor"
	EventSetRoomSettings      = "setRoomSettings"
	EventGetRoomSettings      = "get-room-settings"
	EventCanvasState          = "canvas-state"
	EventSelectedWord         = "selectedWord"
	EventDisconnectedFromGame = "disconnected-from-game"
)

// Outbound event names.
const (
	EventRoomCreated           = "roomCreated"
	EventUserJoined            = "userJoined"
	EventUsersList             = "usersList"
	EventChangeStateToStarted  = "changeStateToStarted"
	EventCheckRoomStatus       = "check-room-status"
	EventGetCanvasState        = "get-canvas-state"
	EventDrawFromServer        = "drawFromServer"
	EventCountdown             = "countdown"
	EventBroadcastRoomSettings = "broadcastRoomSettings"
	EventRoomSettings          = "getRoomSettings"
	EventSelectedWordOut       = "getSelectedWord"
	EventChangeInUsers         = "changeInUsers"
	EventUserLeft              = "userLeft"
	EventRoomNotFound          = "roomNotFound"
)

// NewEvent builds an outbound envelope from a payload. The payloads in this
// package are all marshalable; a failure here is a programming error, logged
// and degraded to an empty payload rather than dropped.
func NewEvent(name string, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", name).Msg("failed to marshal event payload")
		return Event{Name: name}
	}
	return Event{Name: name, Data: data}
}

// Inbound payloads.

type createRoomPayload struct {
	DisplayName string `json:"displayName"`
}

type joinRoomPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

type roomIDPayload struct {
	RoomID string `json:"roomId"`
}

type startCountdownPayload struct {
	Seconds int `json:"seconds"`
}

type setRoomSettingsPayload struct {
	RoomSettings RoomSettings `json:"roomSettings"`
	RoomID       string       `json:"roomId"`
}

type canvasStatePayload struct {
	DataURL string `json:"dataURL"`
}

type selectedWordPayload struct {
	Word     string `json:"word"`
	RoomID   string `json:"roomId"`
	Position int    `json:"position"`
}

type disconnectedFromGamePayload struct {
	RoomID       string `json:"roomId"`
	ConnectionID string `json:"connectionId"`
}

// Outbound payloads.

type roomEventPayload struct {
	ConnectionID string        `json:"connectionId"`
	RoomID       string        `json:"roomId"`
	RoomData     []Participant `json:"roomData"`
}

type checkRoomStatusPayload struct {
	RoomExists bool  `json:"roomExists"`
	Room       *Room `json:"room,omitempty"`
}

type roomSettingsPayload struct {
	RoomSettings RoomSettings `json:"roomSettings"`
}

type selectedWordOutPayload struct {
	Word     string `json:"word"`
	Position int    `json:"position"`
}

type changeInUsersPayload struct {
	NewRoomData []Participant `json:"newRoomData"`
	PrevRoomID  string        `json:"prevRoomId"`
}

// restoreCommand is the restore instruction synthesized from a full canvas
// snapshot for a late joiner.
type restoreCommand struct {
	Type    string `json:"type"`
	DataURL string `json:"dataURL"`
}

type restoreDrawingPayload struct {
	Commands []restoreCommand `json:"commands"`
}

// RoomEventEnvelope is the shape mirrored to external consumers for every
// room-scoped broadcast.
type RoomEventEnvelope struct {
	RoomID    string          `json:"roomId"`
	Event     string          `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
