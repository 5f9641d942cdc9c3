package sync

import (
	"maps"
	"time"

	"github.com/njoerd114/roomsync/internal/model"
)

// Mode selects where writes go.
type Mode string

const (
	// ModeRemote attempts every write against the remote store.
	ModeRemote Mode = "remote"
	// ModeLocal persists writes only to the local cache.
	ModeLocal Mode = "local"
)

// State is the canonical in-memory view owned by the engine. A State value
// is never mutated after it has been published; [Apply] copies the maps it
// changes, so readers holding an older snapshot stay consistent.
type State struct {
	Mode         Mode
	Rooms        map[int64]model.Room
	Reservations map[string]model.Reservation
	RevenueCents int64
	Loading      bool
	LastError    string

	// Version increases with every change to rooms, reservations or
	// revenue. Refreshes use it to detect that newer data has landed.
	Version uint64
}

// NewState returns an empty state in the given mode.
func NewState(mode Mode) State {
	return State{
		Mode:         mode,
		Rooms:        make(map[int64]model.Room),
		Reservations: make(map[string]model.Reservation),
	}
}

// Action is a state transition understood by [Apply].
type Action interface {
	isAction()
}

type (
	// SetRooms replaces every room.
	SetRooms struct{ Rooms []model.Room }
	// SetReservations replaces every reservation.
	SetReservations struct{ Reservations []model.Reservation }
	// SetLoading toggles the loading flag.
	SetLoading struct{ Loading bool }
	// SetError records the last error; an empty string clears it.
	SetError struct{ Err string }
	// SetMode switches between remote and local mode.
	SetMode struct{ Mode Mode }
	// UpdateRoomStatus changes one room's status.
	UpdateRoomStatus struct {
		RoomID int64
		Status model.RoomStatus
		At     time.Time
	}
	// UpsertRoom inserts or replaces a room row.
	UpsertRoom struct{ Room model.Room }
	// DeleteRoom removes a room row.
	DeleteRoom struct{ RoomID int64 }
	// AddReservation inserts a reservation, replacing one with the same id.
	AddReservation struct{ Reservation model.Reservation }
	// UpdateReservation patches an existing reservation. Unknown ids are ignored.
	UpdateReservation struct {
		ID    string
		Patch model.ReservationPatch
	}
	// DeleteReservation removes a reservation.
	DeleteReservation struct{ ID string }
	// AddRevenue adds Cents (which may be negative) to the ledger. The total
	// never drops below zero.
	AddRevenue struct{ Cents int64 }
	// SetRevenue replaces the ledger total.
	SetRevenue struct{ Cents int64 }
	// Batch applies its actions in order as one atomic step.
	Batch []Action
)

func (SetRooms) isAction()          {}
func (SetReservations) isAction()   {}
func (SetLoading) isAction()        {}
func (SetError) isAction()          {}
func (SetMode) isAction()           {}
func (UpdateRoomStatus) isAction()  {}
func (UpsertRoom) isAction()        {}
func (DeleteRoom) isAction()        {}
func (AddReservation) isAction()    {}
func (UpdateReservation) isAction() {}
func (DeleteReservation) isAction() {}
func (AddRevenue) isAction()        {}
func (SetRevenue) isAction()        {}
func (Batch) isAction()             {}

// Apply returns the state that results from applying a to s. It is pure: s
// and its maps are left untouched.
func Apply(s State, a Action) State {
	switch a := a.(type) {
	case SetRooms:
		rooms := make(map[int64]model.Room, len(a.Rooms))
		for _, r := range a.Rooms {
			rooms[r.ID] = r.Clone()
		}
		s.Rooms = rooms
		s.Version++

	case SetReservations:
		res := make(map[string]model.Reservation, len(a.Reservations))
		for _, r := range a.Reservations {
			res[r.ID] = r
		}
		s.Reservations = res
		s.Version++

	case SetLoading:
		s.Loading = a.Loading

	case SetError:
		s.LastError = a.Err

	case SetMode:
		s.Mode = a.Mode

	case UpdateRoomStatus:
		room, ok := s.Rooms[a.RoomID]
		if !ok {
			return s
		}
		room.Status = a.Status
		room.UpdatedAt = a.At
		s.Rooms = maps.Clone(s.Rooms)
		s.Rooms[a.RoomID] = room
		s.Version++

	case UpsertRoom:
		s.Rooms = cloneOrMake(s.Rooms)
		s.Rooms[a.Room.ID] = a.Room.Clone()
		s.Version++

	case DeleteRoom:
		if _, ok := s.Rooms[a.RoomID]; !ok {
			return s
		}
		s.Rooms = maps.Clone(s.Rooms)
		delete(s.Rooms, a.RoomID)
		s.Version++

	case AddReservation:
		s.Reservations = cloneOrMake(s.Reservations)
		s.Reservations[a.Reservation.ID] = a.Reservation
		s.Version++

	case UpdateReservation:
		r, ok := s.Reservations[a.ID]
		if !ok {
			return s
		}
		r = a.Patch.ApplyTo(r)
		s.Reservations = maps.Clone(s.Reservations)
		if r.ID != a.ID {
			delete(s.Reservations, a.ID)
		}
		s.Reservations[r.ID] = r
		s.Version++

	case DeleteReservation:
		if _, ok := s.Reservations[a.ID]; !ok {
			return s
		}
		s.Reservations = maps.Clone(s.Reservations)
		delete(s.Reservations, a.ID)
		s.Version++

	case AddRevenue:
		s.RevenueCents = max(s.RevenueCents+a.Cents, 0)
		s.Version++

	case SetRevenue:
		s.RevenueCents = a.Cents
		s.Version++

	case Batch:
		for _, sub := range a {
			s = Apply(s, sub)
		}
	}
	return s
}

// persistent reports whether a changes anything that belongs in the local
// cache. Loading and error flags are process-local.
func persistent(a Action) bool {
	switch a := a.(type) {
	case SetLoading, SetError:
		return false
	case Batch:
		for _, sub := range a {
			if persistent(sub) {
				return true
			}
		}
		return false
	case nil:
		return false
	}
	return true
}

func cloneOrMake[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return make(map[K]V)
	}
	return maps.Clone(m)
}
