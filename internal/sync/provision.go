package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/njoerd114/roomsync/internal/model"
)

// ErrAlreadyProvisioned is returned by [Engine.ProvisionRooms] when state
// already holds rooms.
var ErrAlreadyProvisioned = errors.New("rooms already provisioned")

// provision seeds the configured rooms when state has none yet.
func (e *Engine) provision(ctx context.Context) error {
	if len(e.rooms) == 0 {
		return nil
	}
	if len(e.Snapshot().Rooms) > 0 {
		e.log.Debug("rooms present, skipping provisioning")
		return nil
	}

	res := e.ProvisionRooms(ctx, e.rooms)
	switch {
	case errors.Is(res.Err, ErrAlreadyProvisioned):
		return nil
	case res.Outcome == Rejected:
		return res.Err
	case res.Warning:
		e.log.Warn("rooms provisioned locally only", "error", res.Err)
	default:
		e.log.Info("rooms provisioned", "count", len(e.rooms), "mode", e.Mode())
	}
	return nil
}

// ProvisionRooms creates the fixed room set. It is rejected when any room is
// invalid, when ids repeat, or when rooms already exist. Rooms without a
// status start Available. In remote mode each room is also inserted
// remotely, all inserts sharing one remote deadline.
func (e *Engine) ProvisionRooms(ctx context.Context, rooms []model.Room) Result {
	const op = "provision_rooms"
	ctx, span := e.begin(ctx, op)

	now := e.now()
	seeded := make([]model.Room, 0, len(rooms))
	seen := make(map[int64]bool, len(rooms))
	for _, r := range rooms {
		r = r.Clone()
		if r.Status == "" {
			r.Status = model.RoomAvailable
		}
		r.UpdatedAt = now
		if err := r.Validate(); err != nil {
			return e.finish(ctx, span, op, rejected(err))
		}
		if seen[r.ID] {
			return e.finish(ctx, span, op, rejected(fmt.Errorf("%w: room id %d listed twice", model.ErrValidation, r.ID)))
		}
		seen[r.ID] = true
		seeded = append(seeded, r)
	}

	s, err := e.dispatchLocal(ctx, func(s State) (Action, error) {
		if len(s.Rooms) > 0 {
			return nil, ErrAlreadyProvisioned
		}
		return SetRooms{Rooms: seeded}, nil
	})
	if err != nil {
		return e.finish(ctx, span, op, rejected(err))
	}
	if s.Mode != ModeRemote || e.remote == nil {
		return e.finish(ctx, span, op, Result{Outcome: AppliedLocalOnly})
	}

	rctx, cancel := e.remotePhase(ctx)
	defer cancel()

	var firstErr error
	for _, r := range seeded {
		err := e.callRemote(rctx, func(ctx context.Context) error {
			return e.remote.CreateRoom(ctx, r)
		})
		if err == nil {
			continue
		}
		if berr := e.budgetExceeded(rctx, err); berr != nil {
			e.log.Warn("provisioning out of time, remaining rooms kept local", "room_id", r.ID, "budget", e.opTimeout)
			if firstErr == nil {
				firstErr = berr
			}
			break
		}
		if errors.Is(err, model.ErrPermissionDenied) {
			e.degrade(ctx, op, err)
			firstErr = err
			break
		}
		e.log.Warn("provisioning room remotely", "room_id", r.ID, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return e.finish(ctx, span, op, Result{Outcome: AppliedLocalOnly, Warning: true, Err: firstErr})
	}
	return e.finish(ctx, span, op, Result{Outcome: Applied})
}
