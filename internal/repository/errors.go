// Package repository defines error types that are reused across multiple
// repositories. These values allow higher layers such as handlers to
// distinguish between different failure scenarios. SeatConflictError in
// particular carries the exact seat numbers that lost a race so the
// client can re-offer a selection without losing the rest of the cart.
package repository

import (
    "errors"
    "fmt"
    "sort"
)

// ErrNoActiveBookings is returned when a cancel, extend or force-expire
// targets an order with no active bookings. Handlers should translate
// this into an HTTP 404 response.
var ErrNoActiveBookings = errors.New("no active bookings found for this order")

// ErrNoReservationFound is returned when a confirmation is attempted for
// an order that has no active temporary reservations, typically because
// the 5 minute window lapsed before payment completed. The caller must
// restart the temporary-reserve flow.
var ErrNoReservationFound = errors.New("no temporary reservations found for this order")

// ErrBookingNotFound is returned when an order id has no bookings at all.
var ErrBookingNotFound = errors.New("no bookings found for this order")

// ErrOrderNotFound is returned by the order repository when the requested
// order does not exist.
var ErrOrderNotFound = errors.New("order not found")

// SeatConflictError reports that one or more requested seats were already
// occupied. It is the expected outcome of losing a booking race; callers
// retry with a different seat selection.
type SeatConflictError struct {
    Seats []int // the requested seats that were unavailable, sorted
}

func (e *SeatConflictError) Error() string {
    return fmt.Sprintf("seats unavailable: %v", e.Seats)
}

// NewSeatConflictError builds a SeatConflictError with a sorted copy of
// the conflicting seat numbers.
func NewSeatConflictError(seats []int) *SeatConflictError {
    out := make([]int, len(seats))
    copy(out, seats)
    sort.Ints(out)
    return &SeatConflictError{Seats: out}
}
