package remote

import (
	"time"

	"gorm.io/datatypes"

	"github.com/njoerd114/roomsync/internal/model"
)

// RoomRow is the GORM model for the rooms table.
type RoomRow struct {
	ID         int64                       `gorm:"primaryKey;autoIncrement:false"`
	RoomNumber string                      `gorm:"uniqueIndex;not null;size:20"`
	Type       string                      `gorm:"not null;size:20"`
	PriceCents int64                       `gorm:"not null;default:0"`
	Capacity   int                         `gorm:"not null;default:1"`
	Amenities  datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Status     string                      `gorm:"not null;size:20;index"`
	UpdatedAt  time.Time                   `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (RoomRow) TableName() string {
	return "rooms"
}

// ReservationRow is the GORM model for the reservations table. Ids are
// assigned by the database.
type ReservationRow struct {
	ID            int64      `gorm:"primaryKey;autoIncrement"`
	RoomID        int64      `gorm:"not null;index"`
	GuestName     string     `gorm:"not null;size:200"`
	GuestEmail    string     `gorm:"size:254"`
	GuestPhone    string     `gorm:"size:40"`
	CheckInDate   model.Date `gorm:"type:date"`
	CheckOutDate  model.Date `gorm:"type:date"`
	Status        string     `gorm:"not null;size:20;index"`
	PaymentMethod string     `gorm:"size:40"`
	PaymentStatus string     `gorm:"not null;size:20;default:'Pending'"`
	AmountCents   int64      `gorm:"not null;default:0"`
	CreatedAt     time.Time  `gorm:"not null"`
	UpdatedAt     time.Time  `gorm:"not null"`

	Room RoomRow `gorm:"foreignKey:RoomID;constraint:OnDelete:RESTRICT"`
}

// TableName returns the table name for the GORM model.
func (ReservationRow) TableName() string {
	return "reservations"
}
