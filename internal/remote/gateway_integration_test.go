//go:build integration

package remote

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/njoerd114/roomsync/internal/model"
)

// startPostgres runs a throwaway Postgres and returns a DSN builder for a
// given user and password.
func startPostgres(t *testing.T) func(user, password string) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "roomsync",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return func(user, password string) string {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=roomsync sslmode=disable", host, port.Port(), user, password)
	}
}

func openGateway(t *testing.T, dsn string) *Gateway {
	t.Helper()
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		return err == nil && sqlDB.Ping() == nil
	}, 30*time.Second, time.Second, "PostgreSQL not ready for connections")

	g := New(db, slog.Default())
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestGateway_Integration(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t)
	g := openGateway(t, dsn("test", "test"))
	require.NoError(t, g.Migrate(ctx))
	require.NoError(t, g.Ping(ctx))

	at := time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC)
	room := model.Room{ID: 101, RoomNumber: "101", Type: model.RoomStandard, PriceCents: 9900, Capacity: 2,
		Amenities: []string{"wifi"}, Status: model.RoomAvailable, UpdatedAt: at}
	require.NoError(t, g.CreateRoom(ctx, room))
	require.NoError(t, g.CreateRoom(ctx, room), "re-provisioning must be a no-op")

	rooms, err := g.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, []string{"wifi"}, rooms[0].Amenities)

	require.NoError(t, g.UpdateRoomStatus(ctx, 101, model.RoomReserved, at.Add(time.Minute)))
	assert.ErrorIs(t, g.UpdateRoomStatus(ctx, 999, model.RoomReserved, at), model.ErrNotFound)

	res := model.Reservation{
		ID: model.NewTempID(), RoomID: 101, GuestName: "A. Mensah",
		CheckInDate: model.MustParseDate("2024-01-10"), CheckOutDate: model.MustParseDate("2024-01-12"),
		Status: model.ReservationReserved, PaymentStatus: model.PaymentPending, AmountCents: 19800,
		CreatedAt: at, UpdatedAt: at,
	}
	id, err := g.CreateReservation(ctx, res)
	require.NoError(t, err)
	assert.NotContains(t, id, model.TempIDPrefix)

	checkedIn := model.ReservationCheckedIn
	require.NoError(t, g.UpdateReservation(ctx, id, model.ReservationPatch{Status: &checkedIn, UpdatedAt: at}))

	list, err := g.ListReservations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, model.ReservationCheckedIn, list[0].Status)
	assert.Equal(t, "2024-01-12", list[0].CheckOutDate.String())

	_, err = g.CreateReservation(ctx, model.Reservation{RoomID: 404, GuestName: "X", Status: model.ReservationReserved,
		PaymentStatus: model.PaymentPending, CreatedAt: at, UpdatedAt: at})
	assert.ErrorIs(t, err, model.ErrNotFound, "unknown room must surface as not found")

	require.NoError(t, g.DeleteReservation(ctx, id))
	assert.ErrorIs(t, g.DeleteReservation(ctx, id), model.ErrNotFound)
	assert.ErrorIs(t, g.DeleteReservation(ctx, "tmp-123"), model.ErrNotFound)
}

func TestGateway_PermissionDenied_Integration(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t)
	admin := openGateway(t, dsn("test", "test"))
	require.NoError(t, admin.Migrate(ctx))
	require.NoError(t, admin.DB().Exec(`CREATE ROLE frontdesk LOGIN PASSWORD 'frontdesk'`).Error)

	limited := openGateway(t, dsn("frontdesk", "frontdesk"))
	err := limited.Ping(ctx)
	assert.ErrorIs(t, err, model.ErrPermissionDenied)

	err = limited.UpdateRoomStatus(ctx, 101, model.RoomMaintenance, time.Now())
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
}
