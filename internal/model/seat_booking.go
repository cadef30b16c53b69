package model

import "time"

// TotalSeats is the size of the fixed seat pool.  Seats are numbered
// 1..TotalSeats and the pool never grows or shrinks at runtime.
const TotalSeats = 100

// Booking lifecycle statuses.  A booking is never deleted; it only
// transitions from active to expired or completed and stays in the
// table for auditing.
const (
    BookingActive    = "active"
    BookingExpired   = "expired"
    BookingCompleted = "completed"
)

// Payment statuses mirror the payment provider's view of the order.
const (
    PaymentPending   = "pending"
    PaymentCompleted = "completed"
    PaymentFailed    = "failed"
    PaymentRefunded  = "refunded"
)

// SeatBooking is one hold on one seat.  A single order may own several
// bookings (one per seat).  The expires_at timestamp is the sole reclaim
// trigger: the sweeper flips any active booking whose expiry has passed
// to expired.
//
// Three flavours exist:
//  - confirmed:   payment_verified=true and payment_status=completed,
//                 created by the payment-first flow or by promoting a
//                 temporary reservation.  30 minute window.
//  - temporary:   is_temporary=true, taken before payment so another
//                 user cannot grab the seat mid-checkout.  5 minute window.
//  - cash/auto:   neither of the above; pending until cash is received or
//                 the parent order pays.  30 minute window.
type SeatBooking struct {
    ID                uint64    `json:"id"`                  // seat_bookings.id
    SeatNumber        int       `json:"seat_number"`         // 1..TotalSeats
    OrderID           string    `json:"order_id"`            // external order correlation id
    UserID            string    `json:"user_id,omitempty"`   // empty for guest/cash flows
    UserName          string    `json:"user_name,omitempty"` // display name of the holder
    Status            string    `json:"status"`              // active | expired | completed
    BookedAt          time.Time `json:"booked_at"`
    ExpiresAt         time.Time `json:"expires_at"`
    OrderDetails      string    `json:"order_details,omitempty"` // free-form snapshot for audit
    PaymentVerified   bool      `json:"payment_verified"`
    PaymentStatus     string    `json:"payment_status"` // pending | completed | failed | refunded
    RazorpayOrderID   string    `json:"razorpay_order_id,omitempty"`
    RazorpayPaymentID string    `json:"razorpay_payment_id,omitempty"`
    PaymentAmount     int64     `json:"payment_amount,omitempty"` // smallest currency unit
    PaymentCurrency   string    `json:"payment_currency,omitempty"`
    IsTemporary       bool      `json:"is_temporary"`
    CreatedAt         time.Time `json:"created_at"`
    UpdatedAt         time.Time `json:"updated_at"`
}

// Live reports whether the booking is active and not yet expired at the
// given instant.  Expired-but-unswept rows are not live.
func (b *SeatBooking) Live(now time.Time) bool {
    return b.Status == BookingActive && b.ExpiresAt.After(now)
}

// PaymentConfirmed reports whether an external payment has been verified
// and completed for this booking.
func (b *SeatBooking) PaymentConfirmed() bool {
    return b.PaymentVerified && b.PaymentStatus == PaymentCompleted
}

// TemporaryReservation reports whether this is a pre-payment soft hold.
func (b *SeatBooking) TemporaryReservation() bool {
    return b.IsTemporary && !b.PaymentVerified
}

// ValidSeatNumber reports whether n falls inside the fixed pool.
func ValidSeatNumber(n int) bool { return n >= 1 && n <= TotalSeats }
