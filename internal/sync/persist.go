package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/njoerd114/roomsync/internal/model"
	"github.com/njoerd114/roomsync/internal/state"
)

// persist writes s to the local cache. Failures are logged and dropped: the
// in-memory state stays authoritative for the running process.
func (e *Engine) persist(s State) {
	ctx, cancel := context.WithTimeout(context.Background(), e.callTimeout)
	defer cancel()

	rooms := make([]model.Room, 0, len(s.Rooms))
	for _, r := range s.Rooms {
		rooms = append(rooms, r)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })

	res := make([]model.Reservation, 0, len(s.Reservations))
	for _, r := range s.Reservations {
		res = append(res, r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })

	e.save(ctx, state.KeyRooms, rooms)
	e.save(ctx, state.KeyReservations, res)
	e.save(ctx, state.KeyRevenue, s.RevenueCents)
	e.save(ctx, state.KeyMode, s.Mode)
}

func (e *Engine) save(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		e.log.Error("encoding snapshot", "key", key, "error", err)
		return
	}
	if err := e.local.Save(ctx, key, data); err != nil {
		e.log.Error("saving snapshot to local cache", "key", key, "error", err)
	}
}

// rehydrate loads the last persisted snapshot into state. Missing keys leave
// the corresponding part empty. The stored mode is not restored; the startup
// probe decides it.
func (e *Engine) rehydrate(ctx context.Context) error {
	var (
		rooms   []model.Room
		res     []model.Reservation
		revenue int64
	)
	if err := e.load(ctx, state.KeyRooms, &rooms); err != nil {
		return err
	}
	if err := e.load(ctx, state.KeyReservations, &res); err != nil {
		return err
	}
	if err := e.load(ctx, state.KeyRevenue, &revenue); err != nil {
		return err
	}

	var mode Mode
	if err := e.load(ctx, state.KeyMode, &mode); err != nil {
		return err
	}

	if _, err := e.dispatch(ctx, func(State) (Action, error) {
		return Batch{SetRooms{Rooms: rooms}, SetReservations{Reservations: res}, SetRevenue{Cents: revenue}}, nil
	}); err != nil {
		return fmt.Errorf("applying cached snapshot: %w", err)
	}

	e.log.Info("rehydrated local cache",
		"rooms", len(rooms),
		"reservations", len(res),
		"revenue_cents", revenue,
		"last_mode", mode,
	)
	return nil
}

func (e *Engine) load(ctx context.Context, key string, v any) error {
	data, err := e.local.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("loading %s: %w", key, err)
	}
	if data == nil {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}
