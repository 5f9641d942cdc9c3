// Package remote implements the sync engine's remote gateway on top of a
// Postgres database accessed through GORM. Every error returned by
// [Gateway] wraps one of the error classes in the model package.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/njoerd114/roomsync/internal/model"
)

// Gateway performs CRUD against the rooms and reservations tables.
type Gateway struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open connects to the Postgres database at dsn. The connection is lazy:
// an unreachable server is reported by the first call, normally
// [Gateway.Ping].
func Open(dsn string, logger *slog.Logger) (*Gateway, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening remote store: %w", err)
	}
	return New(db, logger), nil
}

// New wraps an existing GORM handle.
func New(db *gorm.DB, logger *slog.Logger) *Gateway {
	return &Gateway{db: db, log: logger}
}

// DB returns the underlying handle so collaborators can share the pool.
func (g *Gateway) DB() *gorm.DB {
	return g.db
}

// Close releases the connection pool.
func (g *Gateway) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return fmt.Errorf("getting sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Migrate creates or updates the rooms and reservations tables.
func (g *Gateway) Migrate(ctx context.Context) error {
	if err := g.db.WithContext(ctx).AutoMigrate(&RoomRow{}, &ReservationRow{}); err != nil {
		return fmt.Errorf("migrating remote schema: %w", Classify(err))
	}
	return nil
}

// Ping reads at most one room id. It exercises both connectivity and read
// permission on the rooms table.
func (g *Gateway) Ping(ctx context.Context) error {
	var ids []int64
	if err := g.db.WithContext(ctx).Model(&RoomRow{}).Limit(1).Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("probing remote store: %w", Classify(err))
	}
	return nil
}

// ListRooms returns every room ordered by id.
func (g *Gateway) ListRooms(ctx context.Context) ([]model.Room, error) {
	var rows []RoomRow
	if err := g.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing rooms: %w", Classify(err))
	}
	rooms := make([]model.Room, len(rows))
	for i, row := range rows {
		rooms[i] = rowToRoom(row)
	}
	return rooms, nil
}

// CreateRoom inserts a room. An existing row with the same id is left as is.
func (g *Gateway) CreateRoom(ctx context.Context, room model.Room) error {
	row := roomToRow(room)
	err := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("creating room %d: %w", room.ID, Classify(err))
	}
	return nil
}

// UpdateRoomStatus sets the status of one room. A row hidden by row-level
// security looks the same as a missing one and yields ErrNotFound.
func (g *Gateway) UpdateRoomStatus(ctx context.Context, id int64, status model.RoomStatus, at time.Time) error {
	res := g.db.WithContext(ctx).Model(&RoomRow{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": string(status), "updated_at": at})
	if res.Error != nil {
		return fmt.Errorf("updating room %d: %w", id, Classify(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("updating room %d: %w", id, model.ErrNotFound)
	}
	g.log.Debug("remote room status updated", "room_id", id, "status", status)
	return nil
}

// ListReservations returns every reservation ordered by id.
func (g *Gateway) ListReservations(ctx context.Context) ([]model.Reservation, error) {
	var rows []ReservationRow
	if err := g.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing reservations: %w", Classify(err))
	}
	out := make([]model.Reservation, len(rows))
	for i, row := range rows {
		out[i] = rowToReservation(row)
	}
	return out, nil
}

// CreateReservation inserts r and returns the id assigned by the database.
func (g *Gateway) CreateReservation(ctx context.Context, r model.Reservation) (string, error) {
	row := reservationToRow(r)
	if err := g.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error; err != nil {
		return "", fmt.Errorf("creating reservation for room %d: %w", r.RoomID, Classify(err))
	}
	id := strconv.FormatInt(row.ID, 10)
	g.log.Debug("remote reservation created", "reservation_id", id, "room_id", r.RoomID)
	return id, nil
}

// UpdateReservation applies the non-nil fields of patch to one reservation.
func (g *Gateway) UpdateReservation(ctx context.Context, id string, patch model.ReservationPatch) error {
	key, err := parseReservationID(id)
	if err != nil {
		return err
	}
	cols := patchColumns(patch)
	if len(cols) == 0 {
		return nil
	}
	res := g.db.WithContext(ctx).Model(&ReservationRow{}).Where("id = ?", key).Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("updating reservation %s: %w", id, Classify(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("updating reservation %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// DeleteReservation removes one reservation.
func (g *Gateway) DeleteReservation(ctx context.Context, id string) error {
	key, err := parseReservationID(id)
	if err != nil {
		return err
	}
	res := g.db.WithContext(ctx).Delete(&ReservationRow{}, key)
	if res.Error != nil {
		return fmt.Errorf("deleting reservation %s: %w", id, Classify(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("deleting reservation %s: %w", id, model.ErrNotFound)
	}
	return nil
}
