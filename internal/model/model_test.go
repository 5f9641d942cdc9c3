package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Room status state machine
// ---------------------------------------------------------------------------

func TestRoomStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to RoomStatus
		want     bool
	}{
		{RoomAvailable, RoomOccupied, true},
		{RoomAvailable, RoomReserved, true},
		{RoomReserved, RoomOccupied, true},
		{RoomReserved, RoomAvailable, true},
		{RoomOccupied, RoomAvailable, true},
		{RoomAvailable, RoomMaintenance, true},
		{RoomReserved, RoomMaintenance, true},
		{RoomOccupied, RoomMaintenance, true},
		{RoomMaintenance, RoomAvailable, true},
		{RoomMaintenance, RoomOccupied, false},
		{RoomMaintenance, RoomReserved, false},
		{RoomOccupied, RoomReserved, false},
		{RoomAvailable, RoomAvailable, false},
		{RoomMaintenance, RoomMaintenance, false},
		{RoomStatus("Haunted"), RoomAvailable, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestParseRoomStatus(t *testing.T) {
	s, err := ParseRoomStatus("Maintenance")
	if err != nil || s != RoomMaintenance {
		t.Fatalf("ParseRoomStatus(Maintenance) = %q, %v", s, err)
	}
	if _, err := ParseRoomStatus("maintenance"); !errors.Is(err, ErrValidation) {
		t.Errorf("lower-case status: err = %v, want ErrValidation", err)
	}
}

// ---------------------------------------------------------------------------
// Reservation status state machine
// ---------------------------------------------------------------------------

func TestReservationStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to ReservationStatus
		want     bool
	}{
		{ReservationReserved, ReservationCheckedIn, true},
		{ReservationConfirmed, ReservationCheckedIn, true},
		{ReservationReserved, ReservationCancelled, true},
		{ReservationConfirmed, ReservationCancelled, true},
		{ReservationCheckedIn, ReservationCheckedOut, true},
		{ReservationCheckedIn, ReservationCancelled, false},
		{ReservationCheckedOut, ReservationCheckedIn, false},
		{ReservationCancelled, ReservationReserved, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
	if !ReservationCheckedOut.IsTerminal() || !ReservationCancelled.IsTerminal() {
		t.Error("Checked Out and Cancelled must be terminal")
	}
}

func TestReservation_IsActive(t *testing.T) {
	for _, s := range []ReservationStatus{ReservationReserved, ReservationConfirmed, ReservationCheckedIn} {
		r := Reservation{Status: s}
		if !r.IsActive() {
			t.Errorf("%s should be active", s)
		}
	}
	for _, s := range []ReservationStatus{ReservationCheckedOut, ReservationCancelled, "", "Waitlisted"} {
		r := Reservation{Status: s}
		if r.IsActive() {
			t.Errorf("%s should not be active", s)
		}
	}
}

func TestNewTempID(t *testing.T) {
	a, b := NewTempID(), NewTempID()
	if a == b {
		t.Fatal("temp ids must be unique")
	}
	if !IsProvisionalID(a) {
		t.Errorf("%q should be provisional", a)
	}
	if IsProvisionalID("42") {
		t.Error("remote id should not be provisional")
	}
}

// ---------------------------------------------------------------------------
// GuestDetails validation
// ---------------------------------------------------------------------------

func TestGuestDetails_Validate(t *testing.T) {
	valid := GuestDetails{
		Name:         "A. Mensah",
		Email:        "a.mensah@example.com",
		CheckInDate:  MustParseDate("2024-01-10"),
		CheckOutDate: MustParseDate("2024-01-12"),
	}
	if err := valid.Validate(true); err != nil {
		t.Fatalf("valid details rejected: %v", err)
	}

	tests := map[string]func(g *GuestDetails){
		"missing name":      func(g *GuestDetails) { g.Name = "" },
		"bad email":         func(g *GuestDetails) { g.Email = "not-an-email" },
		"checkout before":   func(g *GuestDetails) { g.CheckOutDate = MustParseDate("2024-01-09") },
		"same day checkout": func(g *GuestDetails) { g.CheckOutDate = g.CheckInDate },
		"negative amount":   func(g *GuestDetails) { g.AmountCents = -1 },
		"bad payment":       func(g *GuestDetails) { g.PaymentStatus = "Owed" },
		"missing dates":     func(g *GuestDetails) { g.CheckInDate = Date{} },
	}
	for name, mutate := range tests {
		g := valid
		mutate(&g)
		if err := g.Validate(true); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", name, err)
		}
	}

	walkIn := GuestDetails{Name: "Walk In"}
	if err := walkIn.Validate(false); err != nil {
		t.Errorf("walk-in without dates rejected: %v", err)
	}
}

func TestNewReservation_DefaultsPaymentPending(t *testing.T) {
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	r := NewReservation("tmp-1", 101, GuestDetails{Name: "A"}, ReservationReserved, now)
	if r.PaymentStatus != PaymentPending {
		t.Errorf("PaymentStatus = %q, want Pending", r.PaymentStatus)
	}
	if !r.CreatedAt.Equal(now) || !r.UpdatedAt.Equal(now) {
		t.Error("timestamps not set from now")
	}
}

// ---------------------------------------------------------------------------
// Date
// ---------------------------------------------------------------------------

func TestDate_JSON(t *testing.T) {
	type wrap struct {
		D Date `json:"d"`
	}
	b, err := json.Marshal(wrap{D: MustParseDate("2024-01-10")})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"d":"2024-01-10"}` {
		t.Errorf("json = %s", b)
	}

	var w wrap
	if err := json.Unmarshal([]byte(`{"d":"2024-01-12T15:04:05Z"}`), &w); err != nil {
		t.Fatalf("Unmarshal timestamp: %v", err)
	}
	if w.D.String() != "2024-01-12" {
		t.Errorf("date = %s, want 2024-01-12", w.D)
	}

	if err := json.Unmarshal([]byte(`{"d":null}`), &w); err != nil || !w.D.IsZero() {
		t.Errorf("null date: %v, %v", w.D, err)
	}
	if err := json.Unmarshal([]byte(`{"d":"10/01/2024"}`), &w); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestDate_Scan(t *testing.T) {
	var d Date
	if err := d.Scan(time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Scan time: %v", err)
	}
	if d.String() != "2024-03-04" {
		t.Errorf("scanned %s", d)
	}
	if err := d.Scan([]byte("2024-03-05")); err != nil || d.String() != "2024-03-05" {
		t.Errorf("Scan bytes: %s, %v", d, err)
	}
	if err := d.Scan(42); err == nil || !strings.Contains(err.Error(), "int") {
		t.Errorf("Scan int: err = %v", err)
	}
}

// ---------------------------------------------------------------------------
// Room
// ---------------------------------------------------------------------------

func TestRoom_Validate(t *testing.T) {
	r := Room{ID: 101, RoomNumber: "101", Type: RoomDeluxe, PriceCents: 15000, Capacity: 2, Status: RoomAvailable}
	if err := r.Validate(); err != nil {
		t.Fatalf("valid room rejected: %v", err)
	}
	bad := r
	bad.Capacity = 0
	if err := bad.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("capacity 0: err = %v", err)
	}
	bad = r
	bad.Type = "Cabin"
	if err := bad.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("bad type: err = %v", err)
	}
}

func TestRoom_CloneIsDeep(t *testing.T) {
	r := Room{ID: 1, Amenities: []string{"wifi"}}
	c := r.Clone()
	c.Amenities[0] = "minibar"
	if r.Amenities[0] != "wifi" {
		t.Error("Clone shares the amenities slice")
	}
}

func TestRoomFilter_Match(t *testing.T) {
	r := Room{Status: RoomAvailable, Type: RoomSuite, Capacity: 4}
	if !(RoomFilter{}).Match(r) {
		t.Error("empty filter must match")
	}
	if !(RoomFilter{Status: RoomAvailable, Type: RoomSuite, MinCapacity: 3}).Match(r) {
		t.Error("matching filter rejected")
	}
	if (RoomFilter{Status: RoomOccupied}).Match(r) {
		t.Error("status filter ignored")
	}
	if (RoomFilter{MinCapacity: 5}).Match(r) {
		t.Error("capacity filter ignored")
	}
}
