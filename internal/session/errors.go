package session

import "errors"

// ErrRoomNotFound is returned when an operation targets a room identifier
// that is not present in the registry. It is surfaced to the acting
// connection only, never broadcast. Stale references caused by disconnect
// races are absorbed as no-ops instead of errors.
var ErrRoomNotFound = errors.New("room not found")
