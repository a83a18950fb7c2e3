package domain

import "time"

// Reservation is owned by the booking subsystem. This service only reads
// the hold amount and checkout time; everything else is carried for
// display and seeding.
type Reservation struct {
	ID              int64     `json:"id"`
	GuestName       string    `json:"guest_name"`
	PropertyName    string    `json:"property_name"`
	CheckInAt       time.Time `json:"check_in_at"`
	CheckOutAt      time.Time `json:"check_out_at"`
	HoldAmountCents int64     `json:"hold_amount_cents"`
	CreatedOn       time.Time `json:"created_on"`
}
