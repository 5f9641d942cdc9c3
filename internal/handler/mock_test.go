package handler

import (
	"context"
	"sync"

	"github.com/njoerd114/roomsync/internal/model"
	syncp "github.com/njoerd114/roomsync/internal/sync"
)

// mockEngine records the last write call and returns a canned result.
type mockEngine struct {
	mu     sync.Mutex
	state  syncp.State
	result syncp.Result

	lastOp     string
	lastRoomID int64
	lastResID  string
	lastStatus string
	lastGuest  model.GuestDetails
	lastFilter model.RoomFilter
	lastCents  int64
	lastReset  bool
	lastRooms  []model.Room
}

func newMockEngine() *mockEngine {
	s := syncp.NewState(syncp.ModeRemote)
	s.Rooms[101] = model.Room{ID: 101, RoomNumber: "101", Type: model.RoomStandard, Capacity: 2, Status: model.RoomAvailable}
	s.Reservations["1001"] = model.Reservation{ID: "1001", RoomID: 101, GuestName: "A. Mensah", Status: model.ReservationReserved}
	s.RevenueCents = 12500
	return &mockEngine{state: s, result: syncp.Result{Outcome: syncp.Applied}}
}

func (m *mockEngine) record(op string) syncp.Result {
	m.lastOp = op
	return m.result
}

func (m *mockEngine) Snapshot() syncp.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockEngine) Rooms(filter model.RoomFilter) []model.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	var out []model.Room
	for _, r := range m.state.Rooms {
		if filter.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (m *mockEngine) Room(id int64) (model.Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.state.Rooms[id]
	return r, ok
}

func (m *mockEngine) Reservation(id string) (model.Reservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.state.Reservations[id]
	return r, ok
}

func (m *mockEngine) ReservationsForRoom(roomID int64) []model.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Reservation
	for _, r := range m.state.Reservations {
		if r.RoomID == roomID {
			out = append(out, r)
		}
	}
	return out
}

func (m *mockEngine) ActiveReservationForRoom(roomID int64) (model.Reservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.state.Reservations {
		if r.RoomID == roomID && r.IsActive() {
			return r, true
		}
	}
	return model.Reservation{}, false
}

func (m *mockEngine) ProvisionRooms(_ context.Context, rooms []model.Room) syncp.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRooms = rooms
	return m.record("provision")
}

func (m *mockEngine) UpdateRoomStatus(_ context.Context, roomID int64, status model.RoomStatus) syncp.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRoomID, m.lastStatus = roomID, string(status)
	return m.record("room_status")
}

func (m *mockEngine) CheckInGuest(_ context.Context, roomID int64, guest model.GuestDetails) syncp.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRoomID, m.lastGuest = roomID, guest
	return m.record("check_in")
}

func (m *mockEngine) CheckOutGuest(_ context.Context, roomID int64) syncp.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRoomID = roomID
	return m.record("check_out")
}

func (m *mockEngine) CreateReservation(_ context.Context, roomID int64, details model.GuestDetails) syncp.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRoomID, m.lastGuest = roomID, details
	return m.record("create_reservation")
}

func (m *mockEngine) CancelReservation(_ context.Context, id string) syncp.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastResID = id
	return m.record("cancel")
}

func (m *mockEngine) UpdatePaymentStatus(_ context.Context, id string, status model.PaymentStatus) syncp.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastResID, m.lastStatus = id, string(status)
	return m.record("payment")
}

func (m *mockEngine) UpdateRevenueStats(_ context.Context, cents int64, reset bool) syncp.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCents, m.lastReset = cents, reset
	return m.record("revenue")
}

func (m *mockEngine) ResyncRevenue(context.Context) syncp.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("resync")
}

func (m *mockEngine) RefreshData(context.Context) syncp.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("refresh")
}
