// Package model defines the room and reservation types shared by the sync
// engine, the remote gateway, the realtime ingestor and the HTTP surface.
package model

import (
	"fmt"
	"time"
)

// RoomType is the commercial category of a room.
type RoomType string

const (
	RoomStandard     RoomType = "Standard"
	RoomDeluxe       RoomType = "Deluxe"
	RoomSuite        RoomType = "Suite"
	RoomExecutive    RoomType = "Executive"
	RoomPresidential RoomType = "Presidential"
)

// IsValid reports whether t is one of the known room types.
func (t RoomType) IsValid() bool {
	switch t {
	case RoomStandard, RoomDeluxe, RoomSuite, RoomExecutive, RoomPresidential:
		return true
	}
	return false
}

// RoomStatus is the occupancy state of a room.
type RoomStatus string

const (
	RoomAvailable   RoomStatus = "Available"
	RoomOccupied    RoomStatus = "Occupied"
	RoomReserved    RoomStatus = "Reserved"
	RoomMaintenance RoomStatus = "Maintenance"
)

// roomTransitions is the room status state machine. Any edge not listed here
// is rejected by the engine before state is touched.
var roomTransitions = map[RoomStatus][]RoomStatus{
	RoomAvailable:   {RoomOccupied, RoomReserved, RoomMaintenance},
	RoomReserved:    {RoomOccupied, RoomAvailable, RoomMaintenance},
	RoomOccupied:    {RoomAvailable, RoomMaintenance},
	RoomMaintenance: {RoomAvailable},
}

// IsValid returns true if the status is a recognized room status.
func (s RoomStatus) IsValid() bool {
	_, ok := roomTransitions[s]
	return ok
}

// CanTransitionTo returns true if a transition from s to target is allowed.
func (s RoomStatus) CanTransitionTo(target RoomStatus) bool {
	for _, t := range roomTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s RoomStatus) String() string { return string(s) }

// ParseRoomStatus converts a string to a RoomStatus, returning an error if invalid.
func ParseRoomStatus(s string) (RoomStatus, error) {
	status := RoomStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: invalid room status %q", ErrValidation, s)
	}
	return status, nil
}

// Room is a bookable hotel room. Rooms are provisioned once; afterwards only
// Status and UpdatedAt change under normal operation.
type Room struct {
	ID         int64      `json:"id"`
	RoomNumber string     `json:"room_number"`
	Type       RoomType   `json:"type"`
	PriceCents int64      `json:"price_cents"`
	Capacity   int        `json:"capacity"`
	Amenities  []string   `json:"amenities,omitempty"`
	Status     RoomStatus `json:"status"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Validate checks the provisioning invariants of a room.
func (r *Room) Validate() error {
	switch {
	case r.ID <= 0:
		return fmt.Errorf("%w: room id must be positive", ErrValidation)
	case r.RoomNumber == "":
		return fmt.Errorf("%w: room %d has no room number", ErrValidation, r.ID)
	case !r.Type.IsValid():
		return fmt.Errorf("%w: room %d has invalid type %q", ErrValidation, r.ID, r.Type)
	case r.PriceCents < 0:
		return fmt.Errorf("%w: room %d has negative price", ErrValidation, r.ID)
	case r.Capacity < 1:
		return fmt.Errorf("%w: room %d capacity must be at least 1", ErrValidation, r.ID)
	case !r.Status.IsValid():
		return fmt.Errorf("%w: room %d has invalid status %q", ErrValidation, r.ID, r.Status)
	}
	return nil
}

// Clone returns a deep copy of the room.
func (r Room) Clone() Room {
	if r.Amenities != nil {
		r.Amenities = append([]string(nil), r.Amenities...)
	}
	return r
}

// RoomFilter selects rooms for [Engine.Rooms]. Zero fields match everything.
type RoomFilter struct {
	Status      RoomStatus
	Type        RoomType
	MinCapacity int
}

// Match reports whether r satisfies the filter.
func (f RoomFilter) Match(r Room) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	return r.Capacity >= f.MinCapacity
}
