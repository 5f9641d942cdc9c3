package model

import "encoding/json"

// Collection names a remote table the engine mirrors.
type Collection string

const (
	CollectionRooms        Collection = "rooms"
	CollectionReservations Collection = "reservations"
)

// EventKind is the kind of row change pushed by the remote store.
type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
)

// ChangeEvent is one row change delivered by a realtime subscription. New is
// empty for deletes; Old may be empty for inserts.
type ChangeEvent struct {
	Collection Collection      `json:"table"`
	Kind       EventKind       `json:"type"`
	New        json.RawMessage `json:"record,omitempty"`
	Old        json.RawMessage `json:"old_record,omitempty"`
}
