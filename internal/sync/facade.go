package sync

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/njoerd114/roomsync/internal/model"
)

// change is one coupled room/reservation transition, planned against a
// state snapshot on the queue goroutine. The room and its reservations are
// always updated in the same Batch.
type change struct {
	roomID  int64
	roomTo  model.RoomStatus // empty leaves the room untouched
	created *model.Reservation
	updates []reservationUpdate
	deleted []string
	revenue int64
	at      time.Time
}

type reservationUpdate struct {
	id    string
	patch model.ReservationPatch
}

func (c *change) empty() bool {
	return c.roomTo == "" && c.created == nil && len(c.updates) == 0 && len(c.deleted) == 0 && c.revenue == 0
}

func (c *change) action() Action {
	if c.empty() {
		return nil
	}
	var b Batch
	if c.roomTo != "" {
		b = append(b, UpdateRoomStatus{RoomID: c.roomID, Status: c.roomTo, At: c.at})
	}
	if c.created != nil {
		b = append(b, AddReservation{Reservation: *c.created})
	}
	for _, u := range c.updates {
		b = append(b, UpdateReservation{ID: u.id, Patch: u.patch})
	}
	for _, id := range c.deleted {
		b = append(b, DeleteReservation{ID: id})
	}
	if c.revenue != 0 {
		b = append(b, AddRevenue{Cents: c.revenue})
	}
	return b
}

// setReservationStatus queues a status transition for r, reversing its
// payment when a paid booking is cancelled.
func (c *change) setReservationStatus(r model.Reservation, to model.ReservationStatus) {
	p := model.ReservationPatch{Status: &to, UpdatedAt: c.at}
	if to == model.ReservationCancelled && r.PaymentStatus == model.PaymentPaid {
		refunded := model.PaymentRefunded
		p.PaymentStatus = &refunded
		c.revenue += paymentDelta(r.PaymentStatus, refunded, r.AmountCents)
	}
	c.updates = append(c.updates, reservationUpdate{id: r.ID, patch: p})
}

type planFunc func(s State, c *change) error

// applyOptimistic validates and applies the change built by plan in one
// queue step. A plan error rejects the operation with state untouched. A
// payment reversal larger than the ledger total takes it to zero, not below.
func (e *Engine) applyOptimistic(ctx context.Context, plan planFunc) (State, *change, error) {
	c := &change{}
	s, err := e.dispatchLocal(ctx, func(s State) (Action, error) {
		*c = change{at: e.now()}
		if err := plan(s, c); err != nil {
			return nil, err
		}
		if floor := -s.RevenueCents; c.revenue < floor {
			e.log.Warn("revenue ledger would go negative, clamping at zero",
				"revenue_cents", s.RevenueCents, "delta_cents", c.revenue)
			c.revenue = floor
		}
		return c.action(), nil
	})
	return s, c, err
}

// reconcileOrDegrade mirrors an applied change to the remote store. It
// replaces a provisional reservation id with the remote-assigned one, degrades
// to local mode on a permission failure, and turns any other failure into a
// warning. All remote calls share one deadline of e.opTimeout; calls still
// pending when it passes are skipped. The local change is never rolled back.
func (e *Engine) reconcileOrDegrade(ctx context.Context, op string, mode Mode, c *change) Result {
	res := Result{Outcome: Applied}
	if c.created != nil {
		res.ReservationID = c.created.ID
	}
	if mode != ModeRemote || e.remote == nil {
		res.Outcome = AppliedLocalOnly
		return res
	}

	rctx, cancel := e.remotePhase(ctx)
	defer cancel()

	var firstErr error
	// fail records err and reports whether the remaining calls must be skipped.
	fail := func(err error) bool {
		if err == nil {
			return false
		}
		if errors.Is(err, model.ErrPermissionDenied) {
			e.degrade(ctx, op, err)
			firstErr = err
			return true
		}
		if berr := e.budgetExceeded(rctx, err); berr != nil {
			e.log.Warn("remote phase out of time, keeping local change", "op", op, "budget", e.opTimeout, "error", err)
			if firstErr == nil {
				firstErr = berr
			}
			return true
		}
		e.log.Warn("remote write failed, keeping local change", "op", op, "error", err)
		if firstErr == nil {
			firstErr = err
		}
		return false
	}

	stopped := false
	if c.roomTo != "" {
		stopped = fail(e.callRemote(rctx, func(ctx context.Context) error {
			return e.remote.UpdateRoomStatus(ctx, c.roomID, c.roomTo, c.at)
		}))
	}

	if !stopped && c.created != nil {
		var remoteID string
		err := e.callRemote(rctx, func(ctx context.Context) error {
			id, err := e.remote.CreateReservation(ctx, *c.created)
			remoteID = id
			return err
		})
		stopped = fail(err)
		if err == nil {
			res.ReservationID = e.reconcileID(ctx, c.created.ID, remoteID)
		}
	}

	for _, u := range c.updates {
		if stopped {
			break
		}
		if model.IsProvisionalID(u.id) {
			e.log.Debug("skipping remote update of provisional reservation", "reservation_id", u.id)
			continue
		}
		stopped = fail(e.callRemote(rctx, func(ctx context.Context) error {
			return e.remote.UpdateReservation(ctx, u.id, u.patch)
		}))
	}

	for _, id := range c.deleted {
		if stopped {
			break
		}
		if model.IsProvisionalID(id) {
			continue
		}
		stopped = fail(e.callRemote(rctx, func(ctx context.Context) error {
			return e.remote.DeleteReservation(ctx, id)
		}))
	}

	if firstErr == nil {
		return res
	}
	if !errors.Is(firstErr, model.ErrPermissionDenied) {
		_, _ = e.apply(context.WithoutCancel(ctx), SetError{Err: firstErr.Error()})
	}
	res.Outcome = AppliedLocalOnly
	res.Warning = true
	res.Err = firstErr
	return res
}

// reconcileID renames the provisional reservation tmp to the remote id. If a
// realtime event already delivered the remote row, the provisional copy is
// dropped instead. Nothing is applied once ctx is cancelled.
func (e *Engine) reconcileID(ctx context.Context, tmp, remoteID string) string {
	if remoteID == "" || remoteID == tmp {
		return tmp
	}
	_, err := e.dispatchLocal(ctx, func(s State) (Action, error) {
		if _, ok := s.Reservations[tmp]; !ok {
			return nil, nil
		}
		if _, ok := s.Reservations[remoteID]; ok {
			return DeleteReservation{ID: tmp}, nil
		}
		id := remoteID
		return UpdateReservation{ID: tmp, Patch: model.ReservationPatch{ID: &id}}, nil
	})
	if err != nil {
		e.log.Warn("reconciling reservation id", "provisional_id", tmp, "remote_id", remoteID, "error", err)
		return tmp
	}
	return remoteID
}

// execute runs the two phases of a write operation and records telemetry.
func (e *Engine) execute(ctx context.Context, op string, plan planFunc) Result {
	ctx, span := e.begin(ctx, op)
	s, c, err := e.applyOptimistic(ctx, plan)
	if err != nil {
		e.log.Debug("operation rejected", "op", op, "error", err)
		return e.finish(ctx, span, op, rejected(err))
	}
	if c.empty() {
		res := Result{Outcome: Applied}
		if s.Mode != ModeRemote {
			res.Outcome = AppliedLocalOnly
		}
		return e.finish(ctx, span, op, res)
	}
	return e.finish(ctx, span, op, e.reconcileOrDegrade(ctx, op, s.Mode, c))
}

// UpdateRoomStatus moves a room along the room state machine. The room's
// active reservation follows: leaving Occupied checks it out, releasing a
// Reserved room cancels it, occupying a Reserved room checks it in, and
// Maintenance closes whichever applies. Setting the current status is a
// no-op.
func (e *Engine) UpdateRoomStatus(ctx context.Context, roomID int64, status model.RoomStatus) Result {
	return e.execute(ctx, "update_room_status", func(s State, c *change) error {
		if !status.IsValid() {
			return fmt.Errorf("%w: invalid room status %q", model.ErrValidation, status)
		}
		room, ok := s.Rooms[roomID]
		if !ok {
			return fmt.Errorf("room %d: %w", roomID, model.ErrNotFound)
		}
		if room.Status == status {
			return nil
		}
		if !room.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: room %d cannot go from %s to %s", model.ErrValidation, roomID, room.Status, status)
		}
		c.roomID, c.roomTo = roomID, status

		active, ok := activeReservation(s, roomID)
		if !ok {
			return nil
		}
		switch {
		case active.Status == model.ReservationCheckedIn && status != model.RoomOccupied:
			c.setReservationStatus(active, model.ReservationCheckedOut)
		case active.Status != model.ReservationCheckedIn && status == model.RoomOccupied:
			c.setReservationStatus(active, model.ReservationCheckedIn)
		case active.Status != model.ReservationCheckedIn && status != model.RoomReserved:
			c.setReservationStatus(active, model.ReservationCancelled)
		}
		return nil
	})
}

// CheckInGuest occupies a room. A pending booking for the room is checked
// in; otherwise a new checked-in reservation is created from guest, with a
// one-night stay starting today when no dates are given.
func (e *Engine) CheckInGuest(ctx context.Context, roomID int64, guest model.GuestDetails) Result {
	return e.execute(ctx, "check_in_guest", func(s State, c *change) error {
		if err := guest.Validate(false); err != nil {
			return err
		}
		room, ok := s.Rooms[roomID]
		if !ok {
			return fmt.Errorf("room %d: %w", roomID, model.ErrNotFound)
		}
		if !room.Status.CanTransitionTo(model.RoomOccupied) {
			return fmt.Errorf("%w: room %d is %s", model.ErrValidation, roomID, room.Status)
		}
		c.roomID, c.roomTo = roomID, model.RoomOccupied

		if active, ok := activeReservation(s, roomID); ok && active.Status != model.ReservationCheckedIn {
			checkedIn := model.ReservationCheckedIn
			p := model.ReservationPatch{Status: &checkedIn, UpdatedAt: c.at}
			if guest.PaymentMethod != "" {
				p.PaymentMethod = &guest.PaymentMethod
			}
			amount := active.AmountCents
			if guest.AmountCents > 0 {
				amount = guest.AmountCents
				p.AmountCents = &amount
			}
			if guest.PaymentStatus != "" && guest.PaymentStatus != active.PaymentStatus {
				p.PaymentStatus = &guest.PaymentStatus
				c.revenue += paymentDelta(active.PaymentStatus, guest.PaymentStatus, amount)
			}
			c.updates = append(c.updates, reservationUpdate{id: active.ID, patch: p})
			return nil
		}

		if guest.CheckInDate.IsZero() {
			guest.CheckInDate = model.NewDate(c.at)
		}
		if guest.CheckOutDate.IsZero() {
			guest.CheckOutDate = guest.CheckInDate.AddDays(1)
		}
		if !guest.CheckOutDate.After(guest.CheckInDate.Time) {
			return fmt.Errorf("%w: check-out %s must be after check-in %s", model.ErrValidation, guest.CheckOutDate, guest.CheckInDate)
		}
		r := model.NewReservation(model.NewTempID(), roomID, guest, model.ReservationCheckedIn, c.at)
		c.created = &r
		c.revenue += paymentDelta(model.PaymentPending, r.PaymentStatus, r.AmountCents)
		return nil
	})
}

// CheckOutGuest frees an occupied room and checks out its guest, if any.
func (e *Engine) CheckOutGuest(ctx context.Context, roomID int64) Result {
	return e.execute(ctx, "check_out_guest", func(s State, c *change) error {
		room, ok := s.Rooms[roomID]
		if !ok {
			return fmt.Errorf("room %d: %w", roomID, model.ErrNotFound)
		}
		if room.Status != model.RoomOccupied {
			return fmt.Errorf("%w: room %d is %s, not %s", model.ErrValidation, roomID, room.Status, model.RoomOccupied)
		}
		c.roomID, c.roomTo = roomID, model.RoomAvailable
		if active, ok := activeReservation(s, roomID); ok && active.Status == model.ReservationCheckedIn {
			c.setReservationStatus(active, model.ReservationCheckedOut)
		}
		return nil
	})
}

// CreateReservation books an available room. The new reservation carries a
// provisional id until the remote store assigns one; Result.ReservationID
// holds whichever id is current when the call returns.
func (e *Engine) CreateReservation(ctx context.Context, roomID int64, details model.GuestDetails) Result {
	return e.execute(ctx, "create_reservation", func(s State, c *change) error {
		if err := details.Validate(true); err != nil {
			return err
		}
		room, ok := s.Rooms[roomID]
		if !ok {
			return fmt.Errorf("room %d: %w", roomID, model.ErrNotFound)
		}
		if room.Status != model.RoomAvailable {
			return fmt.Errorf("%w: room %d is %s", model.ErrValidation, roomID, room.Status)
		}
		c.roomID, c.roomTo = roomID, model.RoomReserved
		r := model.NewReservation(model.NewTempID(), roomID, details, model.ReservationReserved, c.at)
		c.created = &r
		c.revenue += paymentDelta(model.PaymentPending, r.PaymentStatus, r.AmountCents)
		return nil
	})
}

// CancelReservation removes a pending reservation and releases its room when
// no other booking holds it. A paid reservation is taken out of the ledger.
func (e *Engine) CancelReservation(ctx context.Context, reservationID string) Result {
	return e.execute(ctx, "cancel_reservation", func(s State, c *change) error {
		r, ok := s.Reservations[reservationID]
		if !ok {
			return fmt.Errorf("reservation %s: %w", reservationID, model.ErrNotFound)
		}
		if !r.Status.CanTransitionTo(model.ReservationCancelled) {
			return fmt.Errorf("%w: reservation %s is %s", model.ErrValidation, reservationID, r.Status)
		}
		c.roomID = r.RoomID
		c.deleted = []string{r.ID}
		c.revenue += paymentDelta(r.PaymentStatus, model.PaymentRefunded, r.AmountCents)

		if room, ok := s.Rooms[r.RoomID]; ok && room.Status == model.RoomReserved {
			if _, held := activeReservationExcept(s, r.RoomID, r.ID); !held {
				c.roomTo = model.RoomAvailable
			}
		}
		return nil
	})
}

// RefreshData replaces rooms and reservations with the remote store's rows.
// It is a no-op in local mode. Realtime events that arrive while the fetch
// is in flight are replayed on top of the fetched rows. The result is
// discarded when ctx is cancelled, when the remote phase runs out of time,
// or when one of the engine's own operations changed rooms or reservations
// in the meantime.
func (e *Engine) RefreshData(ctx context.Context) Result {
	const op = "refresh_data"
	ctx, span := e.begin(ctx, op)

	if e.Mode() != ModeRemote || e.remote == nil {
		return e.finish(ctx, span, op, Result{Outcome: AppliedLocalOnly})
	}

	var token, seq uint64
	if _, err := e.dispatch(ctx, func(State) (Action, error) {
		e.refreshSeq++
		token, seq = e.refreshSeq, e.localWrites
		e.refreshLogs[token] = nil
		return SetLoading{Loading: true}, nil
	}); err != nil {
		return e.finish(ctx, span, op, rejected(fmt.Errorf("refreshing data: %w", err)))
	}
	defer func() {
		_, _ = e.dispatch(context.WithoutCancel(ctx), func(State) (Action, error) {
			delete(e.refreshLogs, token)
			return SetLoading{Loading: false}, nil
		})
	}()

	rctx, cancel := e.remotePhase(ctx)
	defer cancel()

	var (
		rooms []model.Room
		res   []model.Reservation
	)
	err := e.callRemote(rctx, func(ctx context.Context) error {
		var err error
		rooms, err = e.remote.ListRooms(ctx)
		return err
	})
	if err == nil {
		err = e.callRemote(rctx, func(ctx context.Context) error {
			var err error
			res, err = e.remote.ListReservations(ctx)
			return err
		})
	}
	if berr := e.budgetExceeded(rctx, err); berr != nil {
		err = berr
	}
	if err != nil {
		if errors.Is(err, model.ErrPermissionDenied) {
			e.degrade(ctx, op, err)
		} else {
			_, _ = e.apply(context.WithoutCancel(ctx), SetError{Err: err.Error()})
		}
		return e.finish(ctx, span, op, Result{Outcome: AppliedLocalOnly, Warning: true, Err: fmt.Errorf("refreshing data: %w", err)})
	}

	stale := false
	_, err = e.dispatch(ctx, func(s State) (Action, error) {
		events := e.refreshLogs[token]
		delete(e.refreshLogs, token)
		if s.Mode != ModeRemote || e.localWrites != seq {
			stale = true
			return nil, nil
		}
		b := Batch{SetRooms{Rooms: rooms}, SetReservations{Reservations: res}}
		next := Apply(s, b)
		for _, txn := range events {
			a := txn(next)
			next = Apply(next, a)
			b = append(b, a)
		}
		return append(b, SetError{}), nil
	})
	if err != nil {
		return e.finish(ctx, span, op, rejected(fmt.Errorf("refreshing data: %w", err)))
	}
	if stale {
		e.log.Info("discarding stale refresh, state changed during fetch")
		return e.finish(ctx, span, op, Result{Outcome: AppliedLocalOnly, Warning: true, Err: errStaleRefresh})
	}
	e.log.Debug("refreshed from remote store", "rooms", len(rooms), "reservations", len(res))
	return e.finish(ctx, span, op, Result{Outcome: Applied})
}

var errStaleRefresh = errors.New("state changed during refresh, result discarded")

func activeReservationExcept(s State, roomID int64, exclude string) (model.Reservation, bool) {
	s.Reservations = maps.Clone(s.Reservations)
	delete(s.Reservations, exclude)
	return activeReservation(s, roomID)
}
