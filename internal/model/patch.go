package model

import "time"

// ReservationPatch is a partial update of a reservation. Nil fields are left
// unchanged. A non-nil ID renames the reservation, which is how provisional
// ids are replaced with remote-assigned ones.
type ReservationPatch struct {
	ID            *string            `json:"id,omitempty"`
	RoomID        *int64             `json:"room_id,omitempty"`
	GuestName     *string            `json:"guest_name,omitempty"`
	GuestEmail    *string            `json:"guest_email,omitempty"`
	GuestPhone    *string            `json:"guest_phone,omitempty"`
	CheckInDate   *Date              `json:"check_in_date,omitempty"`
	CheckOutDate  *Date              `json:"check_out_date,omitempty"`
	Status        *ReservationStatus `json:"status,omitempty"`
	PaymentMethod *string            `json:"payment_method,omitempty"`
	PaymentStatus *PaymentStatus     `json:"payment_status,omitempty"`
	AmountCents   *int64             `json:"amount_cents,omitempty"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// ApplyTo returns r with the patch applied.
func (p ReservationPatch) ApplyTo(r Reservation) Reservation {
	if p.ID != nil {
		r.ID = *p.ID
	}
	if p.RoomID != nil {
		r.RoomID = *p.RoomID
	}
	if p.GuestName != nil {
		r.GuestName = *p.GuestName
	}
	if p.GuestEmail != nil {
		r.GuestEmail = *p.GuestEmail
	}
	if p.GuestPhone != nil {
		r.GuestPhone = *p.GuestPhone
	}
	if p.CheckInDate != nil {
		r.CheckInDate = *p.CheckInDate
	}
	if p.CheckOutDate != nil {
		r.CheckOutDate = *p.CheckOutDate
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.PaymentMethod != nil {
		r.PaymentMethod = *p.PaymentMethod
	}
	if p.PaymentStatus != nil {
		r.PaymentStatus = *p.PaymentStatus
	}
	if p.AmountCents != nil {
		r.AmountCents = *p.AmountCents
	}
	if !p.UpdatedAt.IsZero() {
		r.UpdatedAt = p.UpdatedAt
	}
	return r
}

// PatchFrom builds a patch carrying every mutable field of r. The ID is not
// included.
func PatchFrom(r Reservation) ReservationPatch {
	return ReservationPatch{
		RoomID:        &r.RoomID,
		GuestName:     &r.GuestName,
		GuestEmail:    &r.GuestEmail,
		GuestPhone:    &r.GuestPhone,
		CheckInDate:   &r.CheckInDate,
		CheckOutDate:  &r.CheckOutDate,
		Status:        &r.Status,
		PaymentMethod: &r.PaymentMethod,
		PaymentStatus: &r.PaymentStatus,
		AmountCents:   &r.AmountCents,
		UpdatedAt:     r.UpdatedAt,
	}
}
