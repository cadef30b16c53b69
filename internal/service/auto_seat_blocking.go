package service

import (
    "context"
    "errors"
    "log"
    "time"

    "github.com/iliyamo/canteen-seat-booking/internal/repository"
)

// BlockResult is the side-channel outcome of auto seat blocking.  Order
// creation attaches it to its own response instead of failing: a seat
// conflict or a store fault here must never abort the parent order.
type BlockResult struct {
    Success          bool      `json:"success"`
    Message          string    `json:"message"`
    BlockedSeats     []int     `json:"blocked_seats,omitempty"`
    UnavailableSeats []int     `json:"unavailable_seats,omitempty"`
    ExpiresAt        time.Time `json:"expires_at,omitempty"`
}

// BlockSeatsForOrder parses seat numbers out of the order notes and
// blocks them for 30 minutes as unverified pending holds.  The whole
// batch is all-or-nothing: any conflicting seat aborts the block and
// nothing is inserted.  Notes without seat annotations are a no-op
// success.  Errors are captured in the result, never raised, so the
// caller's order creation cannot be rolled back from here.
func (e *ReservationEngine) BlockSeatsForOrder(ctx context.Context, orderID, userID, userName, notes string) BlockResult {
    seats := ParseSeatNumbers(notes)
    if len(seats) == 0 {
        return BlockResult{Success: true, Message: "no seats to block"}
    }
    seats, err := normalizeSeats(seats)
    if err != nil {
        return BlockResult{Success: false, Message: "invalid seat annotation: " + err.Error()}
    }

    now := e.now()
    expiresAt := now.Add(ConfirmedHoldTTL)
    req := BookingRequest{
        Seats:        seats,
        OrderID:      orderID,
        UserID:       userID,
        UserName:     userName,
        OrderDetails: "auto-blocked at order creation from notes: " + notes,
    }
    bookings := e.buildBookings(req, seats, now, expiresAt)
    if _, err := e.store.CreateBookings(ctx, now, repository.OccupancyAnyActive, bookings); err != nil {
        var conflict *repository.SeatConflictError
        if errors.As(err, &conflict) {
            log.Printf("auto-block: order %s lost seats %s", orderID, describeSeats(conflict.Seats))
            return BlockResult{
                Success:          false,
                Message:          "some seats are already blocked",
                UnavailableSeats: conflict.Seats,
            }
        }
        log.Printf("auto-block: order %s failed: %v", orderID, err)
        return BlockResult{Success: false, Message: "failed to block seats: " + err.Error()}
    }

    log.Printf("auto-block: order %s blocked seats %s until %s",
        orderID, describeSeats(seats), expiresAt.UTC().Format(time.RFC3339))
    return BlockResult{
        Success:      true,
        Message:      "seats blocked successfully",
        BlockedSeats: seats,
        ExpiresAt:    expiresAt,
    }
}

// UpdateOrderPaymentStatus marks every booking of the order as paid once
// the parent order's payment completes.  Used by the order collaborator
// after verifying a claim through the same gateway.
func (e *ReservationEngine) UpdateOrderPaymentStatus(ctx context.Context, orderID string, claim PaymentClaim) (int64, error) {
    p, err := e.verifyClaim(ctx, claim)
    if err != nil {
        return 0, err
    }
    return e.store.MarkOrderPaid(ctx, orderID, repository.TemporaryPromotion{
        RazorpayOrderID:   claim.RazorpayOrderID,
        RazorpayPaymentID: claim.RazorpayPaymentID,
        Amount:            p.Amount,
        Currency:          p.Currency,
    })
}
