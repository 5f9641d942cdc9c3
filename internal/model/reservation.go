package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationReserved   ReservationStatus = "Reserved"
	ReservationConfirmed  ReservationStatus = "Confirmed"
	ReservationCheckedIn  ReservationStatus = "Checked In"
	ReservationCheckedOut ReservationStatus = "Checked Out"
	ReservationCancelled  ReservationStatus = "Cancelled"
)

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationReserved:   {ReservationConfirmed, ReservationCheckedIn, ReservationCancelled},
	ReservationConfirmed:  {ReservationCheckedIn, ReservationCancelled},
	ReservationCheckedIn:  {ReservationCheckedOut},
	ReservationCheckedOut: {},
	ReservationCancelled:  {},
}

// IsValid returns true if the status is a recognized reservation status.
func (s ReservationStatus) IsValid() bool {
	_, ok := reservationTransitions[s]
	return ok
}

// CanTransitionTo returns true if a transition from s to target is allowed.
func (s ReservationStatus) CanTransitionTo(target ReservationStatus) bool {
	for _, t := range reservationTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible.
func (s ReservationStatus) IsTerminal() bool {
	return len(reservationTransitions[s]) == 0
}

// PaymentStatus tracks whether a reservation has been paid.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "Pending"
	PaymentPaid     PaymentStatus = "Paid"
	PaymentRefunded PaymentStatus = "Refunded"
)

// IsValid returns true if the status is a recognized payment status.
func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

// TempIDPrefix marks reservation ids generated locally before the remote
// store has assigned one.
const TempIDPrefix = "tmp-"

// NewTempID returns a fresh provisional reservation id.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsProvisionalID reports whether id was generated locally and has not been
// replaced by a remote id yet.
func IsProvisionalID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Reservation is a booking of one room by one guest.
type Reservation struct {
	ID            string            `json:"id"`
	RoomID        int64             `json:"room_id"`
	GuestName     string            `json:"guest_name"`
	GuestEmail    string            `json:"guest_email,omitempty"`
	GuestPhone    string            `json:"guest_phone,omitempty"`
	CheckInDate   Date              `json:"check_in_date"`
	CheckOutDate  Date              `json:"check_out_date"`
	Status        ReservationStatus `json:"status"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	AmountCents   int64             `json:"amount_cents"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// IsActive reports whether the reservation currently holds its room, which
// is the case in every status that still has a way forward.
func (r *Reservation) IsActive() bool {
	return r.Status.IsValid() && !r.Status.IsTerminal()
}

// GuestDetails is the caller-supplied input for check-in and booking.
type GuestDetails struct {
	Name          string        `json:"guest_name" validate:"required,max=200"`
	Email         string        `json:"guest_email" validate:"omitempty,email"`
	Phone         string        `json:"guest_phone" validate:"omitempty,max=40"`
	CheckInDate   Date          `json:"check_in_date"`
	CheckOutDate  Date          `json:"check_out_date"`
	PaymentMethod string        `json:"payment_method" validate:"omitempty,max=40"`
	PaymentStatus PaymentStatus `json:"payment_status" validate:"omitempty,oneof=Pending Paid Refunded"`
	AmountCents   int64         `json:"amount_cents" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints. When requireDates is set both stay
// dates must be present; otherwise missing dates are allowed and filled in
// by the caller.
func (g *GuestDetails) Validate(requireDates bool) error {
	if err := validate.Struct(g); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %s failed %q", ErrValidation, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if requireDates && (g.CheckInDate.IsZero() || g.CheckOutDate.IsZero()) {
		return fmt.Errorf("%w: check-in and check-out dates are required", ErrValidation)
	}
	if !g.CheckInDate.IsZero() && !g.CheckOutDate.IsZero() && !g.CheckOutDate.After(g.CheckInDate.Time) {
		return fmt.Errorf("%w: check-out %s must be after check-in %s", ErrValidation, g.CheckOutDate, g.CheckInDate)
	}
	return nil
}

// NewReservation builds a reservation for roomID from guest details.
func NewReservation(id string, roomID int64, g GuestDetails, status ReservationStatus, now time.Time) Reservation {
	pay := g.PaymentStatus
	if pay == "" {
		pay = PaymentPending
	}
	return Reservation{
		ID:            id,
		RoomID:        roomID,
		GuestName:     g.Name,
		GuestEmail:    g.Email,
		GuestPhone:    g.Phone,
		CheckInDate:   g.CheckInDate,
		CheckOutDate:  g.CheckOutDate,
		Status:        status,
		PaymentMethod: g.PaymentMethod,
		PaymentStatus: pay,
		AmountCents:   g.AmountCents,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
