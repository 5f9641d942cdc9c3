package remote

import (
	"fmt"
	"strconv"

	"github.com/njoerd114/roomsync/internal/model"
)

func roomToRow(r model.Room) RoomRow {
	return RoomRow{
		ID:         r.ID,
		RoomNumber: r.RoomNumber,
		Type:       string(r.Type),
		PriceCents: r.PriceCents,
		Capacity:   r.Capacity,
		Amenities:  append([]string(nil), r.Amenities...),
		Status:     string(r.Status),
		UpdatedAt:  r.UpdatedAt,
	}
}

func rowToRoom(row RoomRow) model.Room {
	return model.Room{
		ID:         row.ID,
		RoomNumber: row.RoomNumber,
		Type:       model.RoomType(row.Type),
		PriceCents: row.PriceCents,
		Capacity:   row.Capacity,
		Amenities:  append([]string(nil), row.Amenities...),
		Status:     model.RoomStatus(row.Status),
		UpdatedAt:  row.UpdatedAt,
	}
}

// reservationToRow converts r for insertion. The id is left to the database.
func reservationToRow(r model.Reservation) ReservationRow {
	return ReservationRow{
		RoomID:        r.RoomID,
		GuestName:     r.GuestName,
		GuestEmail:    r.GuestEmail,
		GuestPhone:    r.GuestPhone,
		CheckInDate:   r.CheckInDate,
		CheckOutDate:  r.CheckOutDate,
		Status:        string(r.Status),
		PaymentMethod: r.PaymentMethod,
		PaymentStatus: string(r.PaymentStatus),
		AmountCents:   r.AmountCents,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func rowToReservation(row ReservationRow) model.Reservation {
	return model.Reservation{
		ID:            strconv.FormatInt(row.ID, 10),
		RoomID:        row.RoomID,
		GuestName:     row.GuestName,
		GuestEmail:    row.GuestEmail,
		GuestPhone:    row.GuestPhone,
		CheckInDate:   row.CheckInDate,
		CheckOutDate:  row.CheckOutDate,
		Status:        model.ReservationStatus(row.Status),
		PaymentMethod: row.PaymentMethod,
		PaymentStatus: model.PaymentStatus(row.PaymentStatus),
		AmountCents:   row.AmountCents,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

// patchColumns maps the non-nil fields of p to column updates. The id is
// never updated remotely.
func patchColumns(p model.ReservationPatch) map[string]any {
	cols := make(map[string]any)
	if p.RoomID != nil {
		cols["room_id"] = *p.RoomID
	}
	if p.GuestName != nil {
		cols["guest_name"] = *p.GuestName
	}
	if p.GuestEmail != nil {
		cols["guest_email"] = *p.GuestEmail
	}
	if p.GuestPhone != nil {
		cols["guest_phone"] = *p.GuestPhone
	}
	if p.CheckInDate != nil {
		cols["check_in_date"] = *p.CheckInDate
	}
	if p.CheckOutDate != nil {
		cols["check_out_date"] = *p.CheckOutDate
	}
	if p.Status != nil {
		cols["status"] = string(*p.Status)
	}
	if p.PaymentMethod != nil {
		cols["payment_method"] = *p.PaymentMethod
	}
	if p.PaymentStatus != nil {
		cols["payment_status"] = string(*p.PaymentStatus)
	}
	if p.AmountCents != nil {
		cols["amount_cents"] = *p.AmountCents
	}
	if !p.UpdatedAt.IsZero() {
		cols["updated_at"] = p.UpdatedAt
	}
	return cols
}

// parseReservationID converts an engine id to the table's integer key.
// Provisional or malformed ids cannot exist remotely.
func parseReservationID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("reservation %q: %w", id, model.ErrNotFound)
	}
	return n, nil
}
