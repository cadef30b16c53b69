package service

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/canteen-seat-booking/internal/model"
    "github.com/iliyamo/canteen-seat-booking/internal/payment"
    "github.com/iliyamo/canteen-seat-booking/internal/repository"
)

// fakeGateway approves or rejects claims without touching the network.
type fakeGateway struct {
    validSig bool
    payment  *payment.Payment
    err      error
}

func (f *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
    return f.validSig
}

func (f *fakeGateway) FetchPayment(ctx context.Context, paymentID string) (*payment.Payment, error) {
    if f.err != nil {
        return nil, f.err
    }
    return f.payment, nil
}

func capturedGateway(orderID string) *fakeGateway {
    return &fakeGateway{
        validSig: true,
        payment: &payment.Payment{
            ID:       "pay_test",
            Status:   payment.StatusCaptured,
            OrderID:  orderID,
            Amount:   25000,
            Currency: "INR",
        },
    }
}

// newTestEngine returns an engine over a fresh memory store with a
// controllable clock starting at a fixed instant.
func newTestEngine(gw payment.Gateway) (*ReservationEngine, *time.Time) {
    start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
    current := start
    e := NewReservationEngine(repository.NewMemoryStore(), gw)
    e.now = func() time.Time { return current }
    return e, &current
}

func validClaim() PaymentClaim {
    return PaymentClaim{
        RazorpayOrderID:   "order_rzp_1",
        RazorpayPaymentID: "pay_test",
        RazorpaySignature: "sig",
    }
}

func TestBookAfterPaymentCreatesConfirmedHolds(t *testing.T) {
    e, clock := newTestEngine(capturedGateway("order_rzp_1"))
    ctx := context.Background()

    bookings, err := e.BookAfterPayment(ctx, BookingRequest{
        Seats:   []int{5, 3, 3},
        OrderID: "ord-1",
        UserID:  "u1",
    }, validClaim())
    require.NoError(t, err)
    require.Len(t, bookings, 2)

    assert.Equal(t, 3, bookings[0].SeatNumber)
    assert.Equal(t, 5, bookings[1].SeatNumber)
    for _, b := range bookings {
        assert.True(t, b.PaymentVerified)
        assert.Equal(t, model.PaymentCompleted, b.PaymentStatus)
        assert.Equal(t, "Guest User", b.UserName)
        assert.Equal(t, int64(25000), b.PaymentAmount)
        assert.Equal(t, clock.Add(ConfirmedHoldTTL), b.ExpiresAt)
    }

    board, err := e.StatusBoard(ctx)
    require.NoError(t, err)
    assert.Equal(t, 2, board.OccupiedSeats)
    assert.Equal(t, 98, board.AvailableSeats)
    assert.Equal(t, "occupied", board.Seats[2].Status)
    assert.Equal(t, "occupied", board.Seats[4].Status)
}

func TestBookAfterPaymentRejectsInvalidClaims(t *testing.T) {
    ctx := context.Background()
    req := BookingRequest{Seats: []int{1}, OrderID: "ord-1"}

    t.Run("bad signature", func(t *testing.T) {
        e, _ := newTestEngine(&fakeGateway{validSig: false})
        _, err := e.BookAfterPayment(ctx, req, validClaim())
        assert.ErrorIs(t, err, ErrSignatureInvalid)
    })

    t.Run("payment not captured", func(t *testing.T) {
        gw := capturedGateway("order_rzp_1")
        gw.payment.Status = "authorized"
        e, _ := newTestEngine(gw)
        _, err := e.BookAfterPayment(ctx, req, validClaim())
        assert.ErrorIs(t, err, ErrPaymentNotCaptured)
    })

    t.Run("order id mismatch", func(t *testing.T) {
        e, _ := newTestEngine(capturedGateway("order_rzp_other"))
        _, err := e.BookAfterPayment(ctx, req, validClaim())
        assert.ErrorIs(t, err, ErrPaymentMismatch)
    })

    t.Run("gateway down leaves no state", func(t *testing.T) {
        e, _ := newTestEngine(&fakeGateway{validSig: true, err: payment.ErrGatewayUnavailable})
        _, err := e.BookAfterPayment(ctx, req, validClaim())
        assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)
        free, err := e.AvailableSeats(ctx)
        require.NoError(t, err)
        assert.Len(t, free, model.TotalSeats)
    })
}

func TestBookAfterPaymentConcurrentSingleWinner(t *testing.T) {
    e, _ := newTestEngine(capturedGateway("order_rzp_1"))
    ctx := context.Background()

    const attempts = 16
    var wg sync.WaitGroup
    errs := make([]error, attempts)
    for i := 0; i < attempts; i++ {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            _, errs[i] = e.BookAfterPayment(ctx, BookingRequest{
                Seats:   []int{5},
                OrderID: "ord-" + string(rune('a'+i)),
            }, validClaim())
        }(i)
    }
    wg.Wait()

    winners := 0
    for _, err := range errs {
        if err == nil {
            winners++
            continue
        }
        var conflict *repository.SeatConflictError
        require.ErrorAs(t, err, &conflict)
        assert.Equal(t, []int{5}, conflict.Seats)
    }
    assert.Equal(t, 1, winners)
}

func TestSeatNumberValidation(t *testing.T) {
    e, _ := newTestEngine(capturedGateway("order_rzp_1"))
    ctx := context.Background()

    _, err := e.BookCash(ctx, BookingRequest{Seats: []int{0}, OrderID: "ord-1"})
    assert.Error(t, err)
    _, err = e.BookCash(ctx, BookingRequest{Seats: []int{101}, OrderID: "ord-1"})
    assert.Error(t, err)
    _, err = e.BookCash(ctx, BookingRequest{Seats: nil, OrderID: "ord-1"})
    assert.Error(t, err)
}

func TestTemporaryReservationLifecycle(t *testing.T) {
    e, clock := newTestEngine(capturedGateway("order_rzp_1"))
    ctx := context.Background()

    reservations, err := e.ReserveTemporary(ctx, BookingRequest{
        Seats:    []int{10, 11},
        OrderID:  "ord-1",
        UserName: "Asha",
    })
    require.NoError(t, err)
    require.Len(t, reservations, 2)
    assert.Equal(t, clock.Add(TemporaryHoldTTL), reservations[0].ExpiresAt)
    assert.True(t, reservations[0].IsTemporary)

    // Another temporary reservation on the same seat conflicts.
    _, err = e.ReserveTemporary(ctx, BookingRequest{Seats: []int{10}, OrderID: "ord-2"})
    var conflict *repository.SeatConflictError
    require.ErrorAs(t, err, &conflict)
    assert.Equal(t, []int{10}, conflict.Seats)

    // The public board only counts confirmed occupancy.
    board, err := e.StatusBoard(ctx)
    require.NoError(t, err)
    assert.Equal(t, 0, board.OccupiedSeats)

    // The protection view labels the holds as temporary.
    prot, err := e.ProtectionStatus(ctx)
    require.NoError(t, err)
    assert.Equal(t, 2, prot.TemporaryReservations)
    assert.Equal(t, 0, prot.ConfirmedBookings)
    assert.Equal(t, "temporary", prot.Seats[9].ProtectionType)

    // Promote within the window: fresh 30 minute expiry from now.
    *clock = clock.Add(3 * time.Minute)
    res, err := e.ConfirmReservations(ctx, "ord-1", validClaim())
    require.NoError(t, err)
    assert.Equal(t, int64(2), res.ConfirmedCount)
    assert.Equal(t, clock.Add(ConfirmedHoldTTL), res.NewExpiresAt)

    bookings, err := e.BookingsByOrder(ctx, "ord-1")
    require.NoError(t, err)
    for _, b := range bookings {
        assert.True(t, b.PaymentVerified)
        assert.Equal(t, model.PaymentCompleted, b.PaymentStatus)
        assert.False(t, b.IsTemporary)
        assert.Equal(t, clock.Add(ConfirmedHoldTTL), b.ExpiresAt)
    }

    board, err = e.StatusBoard(ctx)
    require.NoError(t, err)
    assert.Equal(t, 2, board.OccupiedSeats)

    // A cash booking for an occupied seat reports exactly that seat.
    _, err = e.BookCash(ctx, BookingRequest{Seats: []int{10, 50}, OrderID: "ord-3"})
    require.ErrorAs(t, err, &conflict)
    assert.Equal(t, []int{10}, conflict.Seats)
}

func TestPaymentFirstBookingRespectsTemporaryHolds(t *testing.T) {
    e, _ := newTestEngine(capturedGateway("order_rzp_1"))
    ctx := context.Background()

    _, err := e.ReserveTemporary(ctx, BookingRequest{Seats: []int{5}, OrderID: "ord-temp"})
    require.NoError(t, err)

    // A payment-first booking cannot steal a seat under a live temporary
    // hold, and the conflict names only the held seat.
    _, err = e.BookAfterPayment(ctx, BookingRequest{Seats: []int{5, 6}, OrderID: "ord-pay"}, validClaim())
    var conflict *repository.SeatConflictError
    require.ErrorAs(t, err, &conflict)
    assert.Equal(t, []int{5}, conflict.Seats)

    // Seat 6 was not taken by the failed attempt.
    free, err := e.AvailableSeats(ctx)
    require.NoError(t, err)
    assert.Contains(t, free, 6)

    // The temp holder still confirms; exactly one confirmed hold exists.
    res, err := e.ConfirmReservations(ctx, "ord-temp", validClaim())
    require.NoError(t, err)
    assert.Equal(t, int64(1), res.ConfirmedCount)

    board, err := e.StatusBoard(ctx)
    require.NoError(t, err)
    assert.Equal(t, 1, board.OccupiedSeats)
    assert.Equal(t, "occupied", board.Seats[4].Status)
}

func TestConfirmAfterWindowLapses(t *testing.T) {
    e, clock := newTestEngine(capturedGateway("order_rzp_1"))
    ctx := context.Background()

    _, err := e.ReserveTemporary(ctx, BookingRequest{Seats: []int{20}, OrderID: "ord-1"})
    require.NoError(t, err)

    *clock = clock.Add(TemporaryHoldTTL + time.Second)
    _, err = e.ConfirmReservations(ctx, "ord-1", validClaim())
    assert.ErrorIs(t, err, repository.ErrNoReservationFound)

    // The seat is free again for anyone.
    _, err = e.ReserveTemporary(ctx, BookingRequest{Seats: []int{20}, OrderID: "ord-2"})
    assert.NoError(t, err)
}

func TestExpiryIsIdempotent(t *testing.T) {
    e, clock := newTestEngine(capturedGateway("order_rzp_1"))
    ctx := context.Background()

    _, err := e.BookCash(ctx, BookingRequest{Seats: []int{7}, OrderID: "ord-1"})
    require.NoError(t, err)

    *clock = clock.Add(ConfirmedHoldTTL + time.Minute)
    n, err := e.SweepOnce(ctx)
    require.NoError(t, err)
    assert.Equal(t, int64(1), n)

    n, err = e.SweepOnce(ctx)
    require.NoError(t, err)
    assert.Equal(t, int64(0), n)

    // Cancelling after expiry finds nothing active.
    _, err = e.Cancel(ctx, "ord-1")
    assert.ErrorIs(t, err, repository.ErrNoActiveBookings)
}

func TestCancel(t *testing.T) {
    e, _ := newTestEngine(capturedGateway("order_rzp_1"))
    ctx := context.Background()

    _, err := e.BookCash(ctx, BookingRequest{Seats: []int{1, 2, 3}, OrderID: "ord-1"})
    require.NoError(t, err)

    count, err := e.Cancel(ctx, "ord-1")
    require.NoError(t, err)
    assert.Equal(t, int64(3), count)

    // The bookings survive as expired rows, visible per order.
    bookings, err := e.BookingsByOrder(ctx, "ord-1")
    require.NoError(t, err)
    for _, b := range bookings {
        assert.Equal(t, model.BookingExpired, b.Status)
    }

    _, err = e.Cancel(ctx, "ord-1")
    assert.ErrorIs(t, err, repository.ErrNoActiveBookings)
}

func TestExtend(t *testing.T) {
    e, clock := newTestEngine(capturedGateway("order_rzp_1"))
    ctx := context.Background()

    _, err := e.BookCash(ctx, BookingRequest{Seats: []int{30}, OrderID: "ord-1"})
    require.NoError(t, err)

    newExpiry, err := e.Extend(ctx, "ord-1", 45)
    require.NoError(t, err)
    assert.Equal(t, clock.Add(45*time.Minute), newExpiry)

    // Zero falls back to the default extension.
    newExpiry, err = e.Extend(ctx, "ord-1", 0)
    require.NoError(t, err)
    assert.Equal(t, clock.Add(time.Duration(DefaultExtensionMin)*time.Minute), newExpiry)

    _, err = e.Extend(ctx, "missing", 10)
    assert.ErrorIs(t, err, repository.ErrNoActiveBookings)
}

func TestCashHoldsInvisibleOnPublicBoard(t *testing.T) {
    e, _ := newTestEngine(capturedGateway("order_rzp_1"))
    ctx := context.Background()

    _, err := e.BookCash(ctx, BookingRequest{Seats: []int{40}, OrderID: "ord-1"})
    require.NoError(t, err)

    free, err := e.AvailableSeats(ctx)
    require.NoError(t, err)
    assert.Len(t, free, model.TotalSeats)

    // But the hold still defends the seat against another cash booking.
    _, err = e.BookCash(ctx, BookingRequest{Seats: []int{40}, OrderID: "ord-2"})
    var conflict *repository.SeatConflictError
    assert.ErrorAs(t, err, &conflict)

    // And it shows on the protection view as a confirmed-type hold.
    prot, err := e.ProtectionStatus(ctx)
    require.NoError(t, err)
    assert.Equal(t, 1, prot.ProtectedSeats)
    assert.Equal(t, "confirmed", prot.Seats[39].ProtectionType)
}

func TestBlockSeatsForOrder(t *testing.T) {
    e, clock := newTestEngine(capturedGateway("order_rzp_1"))
    ctx := context.Background()

    t.Run("no annotation is a no-op success", func(t *testing.T) {
        res := e.BlockSeatsForOrder(ctx, "ord-1", "u1", "Asha", "no onions")
        assert.True(t, res.Success)
        assert.Empty(t, res.BlockedSeats)
    })

    t.Run("blocks annotated seats", func(t *testing.T) {
        res := e.BlockSeatsForOrder(ctx, "ord-2", "u1", "Asha", "Seats booked: 60, 61")
        assert.True(t, res.Success)
        assert.Equal(t, []int{60, 61}, res.BlockedSeats)
        assert.Equal(t, clock.Add(ConfirmedHoldTTL), res.ExpiresAt)

        bookings, err := e.BookingsByOrder(ctx, "ord-2")
        require.NoError(t, err)
        require.Len(t, bookings, 2)
        assert.False(t, bookings[0].PaymentVerified)
        assert.Equal(t, model.PaymentPending, bookings[0].PaymentStatus)
    })

    t.Run("conflict is all-or-nothing", func(t *testing.T) {
        res := e.BlockSeatsForOrder(ctx, "ord-3", "u2", "Ravi", "Seats booked: 61, 62")
        assert.False(t, res.Success)
        assert.Equal(t, []int{61}, res.UnavailableSeats)

        // Seat 62 was not taken by the failed block.
        _, err := e.BookingsByOrder(ctx, "ord-3")
        assert.ErrorIs(t, err, repository.ErrBookingNotFound)
    })

    t.Run("invalid seats in notes are dropped", func(t *testing.T) {
        res := e.BlockSeatsForOrder(ctx, "ord-4", "u3", "", "Seats booked: 0, 70, 999")
        assert.True(t, res.Success)
        assert.Equal(t, []int{70}, res.BlockedSeats)
    })

    t.Run("duplicate seats in notes collapse to one hold", func(t *testing.T) {
        res := e.BlockSeatsForOrder(ctx, "ord-5", "u4", "", "Seats booked: 90, 90, 91")
        assert.True(t, res.Success)
        assert.Equal(t, []int{90, 91}, res.BlockedSeats)

        bookings, err := e.BookingsByOrder(ctx, "ord-5")
        require.NoError(t, err)
        assert.Len(t, bookings, 2)
    })
}

func TestUpdateOrderPaymentStatus(t *testing.T) {
    e, _ := newTestEngine(capturedGateway("order_rzp_1"))
    ctx := context.Background()

    res := e.BlockSeatsForOrder(ctx, "ord-1", "u1", "Asha", "Seats booked: 80")
    require.True(t, res.Success)

    n, err := e.UpdateOrderPaymentStatus(ctx, "ord-1", validClaim())
    require.NoError(t, err)
    assert.Equal(t, int64(1), n)

    summary, err := e.PaymentStatus(ctx, "ord-1")
    require.NoError(t, err)
    assert.True(t, summary.PaymentVerified)
    assert.Equal(t, model.PaymentCompleted, summary.PaymentStatus)
    assert.Equal(t, []int{80}, summary.Seats)
}

func TestSweeperRunStopsOnContextCancel(t *testing.T) {
    e, _ := newTestEngine(capturedGateway("order_rzp_1"))
    s := NewSweeper(e, 10*time.Millisecond)

    ctx, cancel := context.WithCancel(context.Background())
    done := make(chan struct{})
    go func() {
        s.Run(ctx)
        close(done)
    }()
    time.Sleep(30 * time.Millisecond)
    cancel()
    select {
    case <-done:
    case <-time.After(time.Second):
        t.Fatal("sweeper did not stop after cancel")
    }
}

func TestPaymentStatusUnknownOrder(t *testing.T) {
    e, _ := newTestEngine(capturedGateway("order_rzp_1"))
    _, err := e.PaymentStatus(context.Background(), "missing")
    assert.True(t, errors.Is(err, repository.ErrBookingNotFound))
}
