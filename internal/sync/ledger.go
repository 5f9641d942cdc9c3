package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/njoerd114/roomsync/internal/model"
)

// paymentDelta is the ledger adjustment for a payment status change of a
// reservation worth amount cents.
func paymentDelta(from, to model.PaymentStatus, amount int64) int64 {
	switch {
	case from != model.PaymentPaid && to == model.PaymentPaid:
		return amount
	case from == model.PaymentPaid && to != model.PaymentPaid:
		return -amount
	}
	return 0
}

// UpdateRevenueStats adds cents to the revenue ledger, or replaces the total
// when reset is set. The ledger lives only in local state and the cache, so
// the outcome does not depend on the mode. Changes that would leave the total
// negative are rejected.
func (e *Engine) UpdateRevenueStats(ctx context.Context, cents int64, reset bool) Result {
	const op = "update_revenue_stats"
	ctx, span := e.begin(ctx, op)
	_, err := e.dispatch(ctx, func(s State) (Action, error) {
		if reset {
			if cents < 0 {
				return nil, fmt.Errorf("%w: revenue cannot be reset to a negative total", model.ErrValidation)
			}
			return SetRevenue{Cents: cents}, nil
		}
		if s.RevenueCents+cents < 0 {
			return nil, fmt.Errorf("%w: adding %d cents would leave revenue negative", model.ErrValidation, cents)
		}
		if cents == 0 {
			return nil, nil
		}
		return AddRevenue{Cents: cents}, nil
	})
	if err != nil {
		return e.finish(ctx, span, op, rejected(err))
	}
	return e.finish(ctx, span, op, Result{Outcome: Applied})
}

// ResyncRevenue resets the ledger to the paid-invoice total reported by the
// invoice source. It is a no-op in local mode.
func (e *Engine) ResyncRevenue(ctx context.Context) Result {
	const op = "resync_revenue"
	ctx, span := e.begin(ctx, op)

	if e.invoices == nil {
		return e.finish(ctx, span, op, rejected(fmt.Errorf("%w: no invoice source configured", model.ErrValidation)))
	}
	if e.Mode() != ModeRemote {
		return e.finish(ctx, span, op, Result{Outcome: AppliedLocalOnly})
	}

	rctx, cancel := e.remotePhase(ctx)
	defer cancel()

	var total int64
	err := e.callRemote(rctx, func(ctx context.Context) error {
		var err error
		total, err = e.invoices.PaidTotal(ctx)
		return err
	})
	if berr := e.budgetExceeded(rctx, err); berr != nil {
		err = berr
	}
	if err != nil {
		if errors.Is(err, model.ErrPermissionDenied) {
			e.degrade(ctx, op, err)
		}
		return e.finish(ctx, span, op, Result{Outcome: AppliedLocalOnly, Warning: true, Err: fmt.Errorf("reading paid invoices: %w", err)})
	}

	if _, err := e.apply(ctx, SetRevenue{Cents: total}); err != nil {
		return e.finish(ctx, span, op, rejected(err))
	}
	e.log.Info("revenue resynchronized from invoices", "revenue_cents", total)
	return e.finish(ctx, span, op, Result{Outcome: Applied})
}

// UpdatePaymentStatus changes a reservation's payment status and moves its
// amount into or out of the ledger accordingly.
func (e *Engine) UpdatePaymentStatus(ctx context.Context, reservationID string, status model.PaymentStatus) Result {
	return e.execute(ctx, "update_payment_status", func(s State, c *change) error {
		if !status.IsValid() {
			return fmt.Errorf("%w: invalid payment status %q", model.ErrValidation, status)
		}
		r, ok := s.Reservations[reservationID]
		if !ok {
			return fmt.Errorf("reservation %s: %w", reservationID, model.ErrNotFound)
		}
		if r.PaymentStatus == status {
			return nil
		}
		c.roomID = r.RoomID
		c.updates = append(c.updates, reservationUpdate{
			id:    r.ID,
			patch: model.ReservationPatch{PaymentStatus: &status, UpdatedAt: c.at},
		})
		c.revenue = paymentDelta(r.PaymentStatus, status, r.AmountCents)
		return nil
	})
}
