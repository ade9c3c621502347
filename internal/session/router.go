package session

import (
	"encoding/json"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Sender is the per-connection delivery surface the transport provides.
// Delivery is fire-and-forget, at most once.
type Sender interface {
	// Send delivers an event to a single connection.
	Send(connID string, evt Event)
	// SendAll delivers an event to every connection except the given one.
	SendAll(exceptConnID string, evt Event)
}

// Mirror receives a copy of every room-scoped broadcast for external
// consumers. Implementations must not block the caller.
type Mirror interface {
	Publish(roomID string, evt Event)
}

// Router maps inbound participant actions to registry and countdown
// mutations and decides the outbound fan-out: unicast to the actor,
// multicast to the room, or broadcast to everyone else. It holds no state
// of its own; every handler contains its own failures.
type Router struct {
	registry *Registry
	engine   *Engine
	sender   Sender
	mirror   Mirror
}

// RouterConfig wires a Router. Clock and Mirror are optional; a nil clock
// means the system clock.
type RouterConfig struct {
	Registry *Registry
	Sender   Sender
	Clock    clockwork.Clock
	Mirror   Mirror
}

// NewRouter creates a router owning its own countdown engine, whose ticks
// fan out to the owning room.
func NewRouter(cfg RouterConfig) *Router {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	r := &Router{
		registry: cfg.Registry,
		sender:   cfg.Sender,
		mirror:   cfg.Mirror,
	}
	r.engine = NewEngine(clock, r.broadcastCountdown)
	return r
}

// HandleConnect greets a new connection with the current countdown value.
// A connection that is not in a room yet always sees zero.
func (r *Router) HandleConnect(connID string) {
	r.sender.Send(connID, NewEvent(EventCountdown, r.remainingFor(connID)))
}

// HandleDisconnect removes the connection's participant from whichever room
// contains it, resets that room's countdown, and notifies the remaining
// members. A connection in no room is a silent no-op.
func (r *Router) HandleDisconnect(connID string) {
	roomID, ok := r.registry.FindRoomByConnection(connID)
	if !ok {
		return
	}

	r.engine.Reset(roomID)
	_, removed, deleted := r.registry.RemoveMember(roomID, connID)
	if removed && !deleted {
		r.multicastRoom(roomID, NewEvent(EventUserLeft, connID))
	}
}

// HandleEvent dispatches one inbound event. Unknown names and malformed
// payloads are dropped after logging; no inbound event can fault the
// coordinator.
func (r *Router) HandleEvent(connID string, evt Event) {
	switch evt.Name {
	case EventCreateRoom:
		r.handleCreateRoom(connID, evt)
	case EventJoinRoom:
		r.handleJoinRoom(connID, evt)
	case EventGetUsers:
		r.handleGetUsers(connID, evt)
	case EventStartGame:
		r.handleStartGame(connID, evt)
	case EventCheckRoom:
		r.handleCheckRoom(connID, evt)
	case EventNewClient:
		r.sender.SendAll(connID, Event{Name: EventGetCanvasState})
	case EventDraw:
		r.sender.SendAll(connID, Event{Name: EventDrawFromServer, Data: evt.Data})
	case EventRestoreDrawing, EventClearCanvas, EventFillColor:
		r.sender.SendAll(connID, evt)
	case EventCanvasState:
		r.handleCanvasState(connID, evt)
	case EventStartCountdown:
		r.handleStartCountdown(connID, evt)
	case EventStopCountdown:
		r.handleStopCountdown(connID)
	case EventGetInitialCountdown:
		r.sender.Send(connID, NewEvent(EventCountdown, r.remainingFor(connID)))
	case EventSetRoomSettings:
		r.handleSetRoomSettings(connID, evt)
	case EventGetRoomSettings:
		r.handleGetRoomSettings(connID, evt)
	case EventSelectedWord:
		r.handleSelectedWord(connID, evt)
	case EventDisconnectedFromGame:
		r.handleDisconnectedFromGame(connID, evt)
	default:
		log.Warn().Str("event", evt.Name).Str("connection_id", connID).Msg("unknown event dropped")
	}
}

func (r *Router) handleCreateRoom(connID string, evt Event) {
	p, ok := decode[createRoomPayload](evt)
	if !ok {
		return
	}
	room := r.registry.CreateRoom(connID, p.DisplayName)
	r.sender.Send(connID, NewEvent(EventRoomCreated, roomEventPayload{
		ConnectionID: connID,
		RoomID:       room.ID,
		RoomData:     room.Members,
	}))
}

func (r *Router) handleJoinRoom(connID string, evt Event) {
	p, ok := decode[joinRoomPayload](evt)
	if !ok {
		return
	}
	room, err := r.registry.JoinRoom(p.RoomID, connID, p.DisplayName)
	if err != nil {
		r.sender.Send(connID, Event{Name: EventRoomNotFound})
		return
	}
	r.multicastRoom(room.ID, NewEvent(EventUserJoined, roomEventPayload{
		ConnectionID: connID,
		RoomID:       room.ID,
		RoomData:     room.Members,
	}))
}

func (r *Router) handleGetUsers(connID string, evt Event) {
	p, ok := decode[roomIDPayload](evt)
	if !ok {
		return
	}
	var snapshot *Room
	if room, exists := r.registry.Room(p.RoomID); exists {
		snapshot = &room
	}
	r.sender.Send(connID, NewEvent(EventUsersList, snapshot))
}

func (r *Router) handleStartGame(connID string, evt Event) {
	p, ok := decode[roomIDPayload](evt)
	if !ok {
		return
	}
	if !r.registry.MarkStarted(p.RoomID) {
		log.Debug().Str("room_id", p.RoomID).Msg("startGame for missing room ignored")
		return
	}
	r.multicastRoom(p.RoomID, NewEvent(EventChangeStateToStarted, true))
}

func (r *Router) handleCheckRoom(connID string, evt Event) {
	p, ok := decode[roomIDPayload](evt)
	if !ok {
		return
	}
	var snapshot *Room
	room, exists := r.registry.Room(p.RoomID)
	if exists {
		snapshot = &room
	}
	r.sender.Send(connID, NewEvent(EventCheckRoomStatus, checkRoomStatusPayload{
		RoomExists: exists,
		Room:       snapshot,
	}))
}

func (r *Router) handleCanvasState(connID string, evt Event) {
	p, ok := decode[canvasStatePayload](evt)
	if !ok {
		return
	}
	r.sender.SendAll(connID, NewEvent(EventRestoreDrawing, restoreDrawingPayload{
		Commands: []restoreCommand{{Type: "draw", DataURL: p.DataURL}},
	}))
}

func (r *Router) handleStartCountdown(connID string, evt Event) {
	p, ok := decode[startCountdownPayload](evt)
	if !ok {
		return
	}
	roomID, inRoom := r.registry.FindRoomByConnection(connID)
	if inRoom {
		r.engine.Start(roomID, p.Seconds)
	} else {
		log.Debug().Str("connection_id", connID).Msg("startCountdown from connection outside any room")
	}
	r.sender.Send(connID, NewEvent(EventCountdown, r.remainingFor(connID)))
}

func (r *Router) handleStopCountdown(connID string) {
	if roomID, inRoom := r.registry.FindRoomByConnection(connID); inRoom {
		r.engine.Stop(roomID)
	}
}

func (r *Router) handleSetRoomSettings(connID string, evt Event) {
	p, ok := decode[setRoomSettingsPayload](evt)
	if !ok {
		return
	}
	if !r.registry.UpdateSettings(p.RoomID, p.RoomSettings) {
		return
	}
	r.multicastRoom(p.RoomID, NewEvent(EventBroadcastRoomSettings, roomSettingsPayload{
		RoomSettings: p.RoomSettings,
	}))
}

func (r *Router) handleGetRoomSettings(connID string, evt Event) {
	p, ok := decode[roomIDPayload](evt)
	if !ok {
		return
	}
	room, exists := r.registry.Room(p.RoomID)
	if !exists {
		return
	}
	r.multicastRoom(p.RoomID, NewEvent(EventRoomSettings, roomSettingsPayload{
		RoomSettings: room.Settings,
	}))
}

func (r *Router) handleSelectedWord(connID string, evt Event) {
	p, ok := decode[selectedWordPayload](evt)
	if !ok {
		return
	}
	r.multicastRoom(p.RoomID, NewEvent(EventSelectedWordOut, selectedWordOutPayload{
		Word:     p.Word,
		Position: p.Position,
	}))
}

func (r *Router) handleDisconnectedFromGame(connID string, evt Event) {
	p, ok := decode[disconnectedFromGamePayload](evt)
	if !ok || p.RoomID == "" {
		return
	}
	members, removed, deleted := r.registry.RemoveMember(p.RoomID, p.ConnectionID)
	if deleted {
		// Room is gone; nobody is left to notify, just drop its countdown.
		r.engine.Reset(p.RoomID)
		return
	}
	if removed {
		r.multicastRoom(p.RoomID, NewEvent(EventChangeInUsers, changeInUsersPayload{
			NewRoomData: members,
			PrevRoomID:  p.RoomID,
		}))
	}
}

// multicastRoom fans an event out to every current member of a room and
// mirrors it. A vanished room means nobody to notify.
func (r *Router) multicastRoom(roomID string, evt Event) {
	room, ok := r.registry.Room(roomID)
	if !ok {
		return
	}
	for _, m := range room.Members {
		r.sender.Send(m.ConnectionID, evt)
	}
	if r.mirror != nil {
		r.mirror.Publish(roomID, evt)
	}
}

// broadcastCountdown is the engine's tick sink.
func (r *Router) broadcastCountdown(roomID string, remaining int) {
	r.multicastRoom(roomID, NewEvent(EventCountdown, remaining))
}

// remainingFor resolves the countdown value visible to a connection: the
// remaining seconds of its room's countdown, or zero outside any room.
func (r *Router) remainingFor(connID string) int {
	roomID, ok := r.registry.FindRoomByConnection(connID)
	if !ok {
		return 0
	}
	return r.engine.Remaining(roomID)
}

func decode[T any](evt Event) (T, bool) {
	var p T
	if err := json.Unmarshal(evt.Data, &p); err != nil {
		log.Warn().Err(err).Str("event", evt.Name).Msg("malformed event payload dropped")
		return p, false
	}
	return p, true
}
