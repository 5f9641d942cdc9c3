// Package sync implements the room/reservation state synchronization engine.
// It owns the canonical in-memory state, mirrors it to a local durable
// cache, pushes changes to the remote relational store, degrades to local
// mode when the remote store refuses access, and folds realtime change
// events into the same state.
//
// The package contains these main components:
//
//   - [Apply] is the pure reducer over [State] and [Action] values.
//   - [Engine] serializes every mutation through one queue goroutine and
//     exposes the business operations (check-in, booking, cancellation...).
//   - The realtime ingestor runs inside the engine while it is in remote
//     mode and feeds change events into the same queue.
package sync

import (
	"context"
	"time"

	"github.com/njoerd114/roomsync/internal/model"
)

// RemoteGateway performs CRUD against the authoritative remote store.
// Errors wrap [model.ErrPermissionDenied], [model.ErrTransient] or
// [model.ErrNotFound]. Implemented by [remote.Gateway].
type RemoteGateway interface {
	Ping(ctx context.Context) error
	ListRooms(ctx context.Context) ([]model.Room, error)
	CreateRoom(ctx context.Context, room model.Room) error
	UpdateRoomStatus(ctx context.Context, id int64, status model.RoomStatus, at time.Time) error
	ListReservations(ctx context.Context) ([]model.Reservation, error)
	CreateReservation(ctx context.Context, r model.Reservation) (id string, err error)
	UpdateReservation(ctx context.Context, id string, patch model.ReservationPatch) error
	DeleteReservation(ctx context.Context, id string) error
}

// LocalStore is the durable key/value cache. Load returns (nil, nil) for a
// key that was never saved. Implemented by [state.Store] and
// [state.RedisStore].
type LocalStore interface {
	Save(ctx context.Context, key string, value []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
}

// Subscriber delivers realtime row changes for the given collections and
// event kinds to handle, in delivery order. An empty kinds filter accepts
// every kind. Subscribe blocks until ctx is cancelled (which tears the
// subscription down) or the feed ends. Implemented by
// [realtime.KafkaSubscriber].
type Subscriber interface {
	Subscribe(ctx context.Context, collections []model.Collection, kinds []model.EventKind, handle func(model.ChangeEvent)) error
}

// InvoiceSource reports the total of paid invoices, in cents.
// Implemented by [invoice.Source].
type InvoiceSource interface {
	PaidTotal(ctx context.Context) (int64, error)
}
