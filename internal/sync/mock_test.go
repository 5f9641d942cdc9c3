package sync

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/njoerd114/roomsync/internal/model"
)

// --- Mock Remote Gateway -----------------------------------------------------

type mockRemote struct {
	mu           sync.Mutex
	rooms        map[int64]model.Room
	reservations map[string]model.Reservation
	nextID       int
	calls        map[string]int
	errs         map[string][]error // method → errors returned by successive calls
	pingErr      error

	// beforeListReservations runs before ListReservations takes the lock.
	beforeListReservations func()
}

func newMockRemote(rooms ...model.Room) *mockRemote {
	m := &mockRemote{
		rooms:        make(map[int64]model.Room),
		reservations: make(map[string]model.Reservation),
		nextID:       1000,
		calls:        make(map[string]int),
		errs:         make(map[string][]error),
	}
	for _, r := range rooms {
		m.rooms[r.ID] = r
	}
	return m
}

// failWith queues errs for the next calls of method.
func (m *mockRemote) failWith(method string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[method] = append(m.errs[method], errs...)
}

// record counts a call and pops the next queued error. Caller holds mu.
func (m *mockRemote) record(method string) error {
	m.calls[method]++
	queue := m.errs[method]
	if len(queue) == 0 {
		return nil
	}
	m.errs[method] = queue[1:]
	return queue[0]
}

func (m *mockRemote) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Ping"]++
	return m.pingErr
}

func (m *mockRemote) ListRooms(_ context.Context) ([]model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListRooms"); err != nil {
		return nil, err
	}
	out := make([]model.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *mockRemote) CreateRoom(_ context.Context, room model.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CreateRoom"); err != nil {
		return err
	}
	m.rooms[room.ID] = room.Clone()
	return nil
}

func (m *mockRemote) UpdateRoomStatus(_ context.Context, id int64, status model.RoomStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("UpdateRoomStatus"); err != nil {
		return err
	}
	room, ok := m.rooms[id]
	if !ok {
		return fmt.Errorf("room %d: %w", id, model.ErrNotFound)
	}
	room.Status = status
	room.UpdatedAt = at
	m.rooms[id] = room
	return nil
}

func (m *mockRemote) ListReservations(_ context.Context) ([]model.Reservation, error) {
	if m.beforeListReservations != nil {
		m.beforeListReservations()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListReservations"); err != nil {
		return nil, err
	}
	out := make([]model.Reservation, 0, len(m.reservations))
	for _, r := range m.reservations {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRemote) CreateReservation(_ context.Context, r model.Reservation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CreateReservation"); err != nil {
		return "", err
	}
	m.nextID++
	r.ID = strconv.Itoa(m.nextID)
	m.reservations[r.ID] = r
	return r.ID, nil
}

func (m *mockRemote) UpdateReservation(_ context.Context, id string, patch model.ReservationPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("UpdateReservation"); err != nil {
		return err
	}
	r, ok := m.reservations[id]
	if !ok {
		return fmt.Errorf("reservation %s: %w", id, model.ErrNotFound)
	}
	m.reservations[id] = patch.ApplyTo(r)
	return nil
}

func (m *mockRemote) DeleteReservation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteReservation"); err != nil {
		return err
	}
	if _, ok := m.reservations[id]; !ok {
		return fmt.Errorf("reservation %s: %w", id, model.ErrNotFound)
	}
	delete(m.reservations, id)
	return nil
}

func (m *mockRemote) callCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// writeCalls counts every call except Ping.
func (m *mockRemote) writeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for method, c := range m.calls {
		if method != "Ping" {
			n += c
		}
	}
	return n
}

func (m *mockRemote) setRoomStatus(id int64, status model.RoomStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rooms[id]
	r.Status = status
	m.rooms[id] = r
}

func (m *mockRemote) room(id int64) model.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[id]
}

func (m *mockRemote) reservation(id string) (model.Reservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	return r, ok
}

// --- Mock Local Store --------------------------------------------------------

type mockLocal struct {
	mu      sync.Mutex
	data    map[string][]byte
	saveErr error
	saves   int
}

func newMockLocal() *mockLocal {
	return &mockLocal{data: make(map[string][]byte)}
}

func (m *mockLocal) Save(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *mockLocal) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *mockLocal) get(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key]
}

func (m *mockLocal) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// --- Mock Subscriber ---------------------------------------------------------

type mockSubscriber struct {
	events chan model.ChangeEvent
	// applied receives one value per handled event.
	applied chan struct{}

	mu          sync.Mutex
	active      bool
	subscribes  int
	collections []model.Collection
	kinds       []model.EventKind
}

func newMockSubscriber() *mockSubscriber {
	return &mockSubscriber{
		events:  make(chan model.ChangeEvent),
		applied: make(chan struct{}, 64),
	}
}

func (m *mockSubscriber) Subscribe(ctx context.Context, collections []model.Collection, kinds []model.EventKind, handle func(model.ChangeEvent)) error {
	m.mu.Lock()
	m.active = true
	m.subscribes++
	m.collections = collections
	m.kinds = kinds
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active = false
		m.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-m.events:
			handle(ev)
			m.applied <- struct{}{}
		}
	}
}

func (m *mockSubscriber) isActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *mockSubscriber) subscribedKinds() []model.EventKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kinds
}

func (m *mockSubscriber) subscribeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribes
}

// --- Mock Invoice Source -----------------------------------------------------

type mockInvoices struct {
	mu    sync.Mutex
	total int64
	err   error
	calls int
}

func (m *mockInvoices) PaidTotal(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.total, m.err
}

// push delivers ev to the running subscription and waits until the engine
// has handled it.
func (m *mockSubscriber) push(t *testing.T, ev model.ChangeEvent) {
	t.Helper()
	select {
	case m.events <- ev:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber is not listening")
	}
	select {
	case <-m.applied:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not handled")
	}
}

// --- Hanging Remote Gateway --------------------------------------------------

// hangingRemote is a mockRemote whose selected methods block until their
// context is done, like a database that accepts connections but never
// answers. The error is classified the way the real gateway does it.
type hangingRemote struct {
	*mockRemote

	hangMu sync.Mutex
	hang   map[string]bool
	hung   map[string]int
}

func newHangingRemote(rooms ...model.Room) *hangingRemote {
	return &hangingRemote{
		mockRemote: newMockRemote(rooms...),
		hang:       make(map[string]bool),
		hung:       make(map[string]int),
	}
}

func (h *hangingRemote) setHang(methods ...string) {
	h.hangMu.Lock()
	defer h.hangMu.Unlock()
	for _, m := range methods {
		h.hang[m] = true
	}
}

func (h *hangingRemote) hungCount(method string) int {
	h.hangMu.Lock()
	defer h.hangMu.Unlock()
	return h.hung[method]
}

// wait blocks if method is set to hang and returns the resulting error.
func (h *hangingRemote) wait(ctx context.Context, method string) error {
	h.hangMu.Lock()
	hang := h.hang[method]
	if hang {
		h.hung[method]++
	}
	h.hangMu.Unlock()
	if !hang {
		return nil
	}
	<-ctx.Done()
	return fmt.Errorf("%w: %w", model.ErrTransient, ctx.Err())
}

func (h *hangingRemote) ListRooms(ctx context.Context) ([]model.Room, error) {
	if err := h.wait(ctx, "ListRooms"); err != nil {
		return nil, err
	}
	return h.mockRemote.ListRooms(ctx)
}

func (h *hangingRemote) CreateRoom(ctx context.Context, room model.Room) error {
	if err := h.wait(ctx, "CreateRoom"); err != nil {
		return err
	}
	return h.mockRemote.CreateRoom(ctx, room)
}

func (h *hangingRemote) UpdateRoomStatus(ctx context.Context, id int64, status model.RoomStatus, at time.Time) error {
	if err := h.wait(ctx, "UpdateRoomStatus"); err != nil {
		return err
	}
	return h.mockRemote.UpdateRoomStatus(ctx, id, status, at)
}

func (h *hangingRemote) CreateReservation(ctx context.Context, r model.Reservation) (string, error) {
	if err := h.wait(ctx, "CreateReservation"); err != nil {
		return "", err
	}
	return h.mockRemote.CreateReservation(ctx, r)
}
