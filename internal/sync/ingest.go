package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/njoerd114/roomsync/internal/model"
)

var (
	ingestCollections = []model.Collection{model.CollectionRooms, model.CollectionReservations}
	ingestKinds       = []model.EventKind{model.EventInsert, model.EventUpdate, model.EventDelete}
)

// startIngest subscribes to realtime changes in the background. It does
// nothing without a subscriber or when ingestion already runs.
func (e *Engine) startIngest() {
	if e.sub == nil {
		return
	}
	e.ingestMu.Lock()
	defer e.ingestMu.Unlock()
	if e.ingestCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.ingestCancel, e.ingestDone = cancel, done

	go func() {
		defer close(done)
		e.log.Info("realtime ingestion started")
		err := e.sub.Subscribe(ctx, ingestCollections, ingestKinds, func(ev model.ChangeEvent) {
			e.ingest(ctx, ev)
		})
		if err != nil && ctx.Err() == nil {
			e.log.Error("realtime subscription ended", "error", err)
			return
		}
		e.log.Info("realtime ingestion stopped")
	}()
}

// stopIngest tears the subscription down and waits for it to finish.
func (e *Engine) stopIngest() {
	e.ingestMu.Lock()
	cancel, done := e.ingestCancel, e.ingestDone
	e.ingestCancel, e.ingestDone = nil, nil
	e.ingestMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// ingest feeds one change event into the mutation queue. Events are applied
// in delivery order with last-write-wins semantics against optimistic
// writes. Undecodable events are logged and dropped.
func (e *Engine) ingest(ctx context.Context, ev model.ChangeEvent) {
	txn, err := ingestTxn(ev)
	if err != nil {
		e.log.Warn("dropping realtime event", "table", ev.Collection, "type", ev.Kind, "error", err)
		return
	}
	if _, err := e.dispatch(ctx, func(s State) (Action, error) {
		if s.Mode != ModeRemote {
			return nil, nil
		}
		for token, log := range e.refreshLogs {
			e.refreshLogs[token] = append(log, txn)
		}
		return txn(s), nil
	}); err != nil {
		if !errors.Is(err, context.Canceled) {
			e.log.Warn("applying realtime event", "table", ev.Collection, "type", ev.Kind, "error", err)
		}
		return
	}
	e.cntEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("table", string(ev.Collection)),
		attribute.String("type", string(ev.Kind)),
	))
	e.log.Debug("realtime event applied", "table", ev.Collection, "type", ev.Kind)
}

// ingestTxn decodes ev and returns the state transition it stands for.
func ingestTxn(ev model.ChangeEvent) (func(State) Action, error) {
	switch ev.Collection {
	case model.CollectionRooms:
		return roomTxn(ev)
	case model.CollectionReservations:
		return reservationTxn(ev)
	}
	return nil, fmt.Errorf("unknown table %q", ev.Collection)
}

func roomTxn(ev model.ChangeEvent) (func(State) Action, error) {
	switch ev.Kind {
	case model.EventInsert, model.EventUpdate:
		var room model.Room
		if err := json.Unmarshal(ev.New, &room); err != nil {
			return nil, fmt.Errorf("decoding room row: %w", err)
		}
		if room.ID == 0 {
			return nil, errors.New("room row has no id")
		}
		return func(s State) Action {
			if cur, ok := s.Rooms[room.ID]; ok && onlyStatusDiffers(cur, room) {
				return UpdateRoomStatus{RoomID: room.ID, Status: room.Status, At: room.UpdatedAt}
			}
			return UpsertRoom{Room: room}
		}, nil

	case model.EventDelete:
		var old struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(ev.Old, &old); err != nil {
			return nil, fmt.Errorf("decoding deleted room: %w", err)
		}
		return func(State) Action { return DeleteRoom{RoomID: old.ID} }, nil
	}
	return nil, fmt.Errorf("unknown event type %q", ev.Kind)
}

func reservationTxn(ev model.ChangeEvent) (func(State) Action, error) {
	switch ev.Kind {
	case model.EventInsert, model.EventUpdate:
		r, err := decodeReservation(ev.New)
		if err != nil {
			return nil, err
		}
		return func(s State) Action {
			if _, ok := s.Reservations[r.ID]; ok {
				return UpdateReservation{ID: r.ID, Patch: model.PatchFrom(r)}
			}
			return AddReservation{Reservation: r}
		}, nil

	case model.EventDelete:
		id, err := decodeRowID(ev.Old)
		if err != nil {
			return nil, fmt.Errorf("decoding deleted reservation: %w", err)
		}
		return func(State) Action { return DeleteReservation{ID: id} }, nil
	}
	return nil, fmt.Errorf("unknown event type %q", ev.Kind)
}

// reservationRow accepts both numeric and string ids.
type reservationRow struct {
	model.Reservation
	ID json.RawMessage `json:"id"`
}

func decodeReservation(data []byte) (model.Reservation, error) {
	var row reservationRow
	if err := json.Unmarshal(data, &row); err != nil {
		return model.Reservation{}, fmt.Errorf("decoding reservation row: %w", err)
	}
	id, err := parseID(row.ID)
	if err != nil {
		return model.Reservation{}, err
	}
	r := row.Reservation
	r.ID = id
	return r, nil
}

func decodeRowID(data []byte) (string, error) {
	var row struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &row); err != nil {
		return "", err
	}
	return parseID(row.ID)
}

func parseID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("row has no id")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", errors.New("row has an empty id")
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("invalid id %s", raw)
	}
	return n.String(), nil
}

func onlyStatusDiffers(a, b model.Room) bool {
	return a.RoomNumber == b.RoomNumber &&
		a.Type == b.Type &&
		a.PriceCents == b.PriceCents &&
		a.Capacity == b.Capacity &&
		slices.Equal(a.Amenities, b.Amenities)
}
