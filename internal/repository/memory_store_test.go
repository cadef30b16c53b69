package repository

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/canteen-seat-booking/internal/model"
)

func testBooking(seat int, orderID string, expiresAt time.Time) model.SeatBooking {
    return model.SeatBooking{
        SeatNumber:    seat,
        OrderID:       orderID,
        Status:        model.BookingActive,
        BookedAt:      expiresAt.Add(-5 * time.Minute),
        ExpiresAt:     expiresAt,
        PaymentStatus: model.PaymentPending,
    }
}

func TestExpireStaleTemporaryScope(t *testing.T) {
    m := NewMemoryStore()
    ctx := context.Background()
    start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

    temp := testBooking(1, "ord-temp", start.Add(5*time.Minute))
    temp.IsTemporary = true
    cash := testBooking(2, "ord-cash", start.Add(5*time.Minute))

    _, err := m.CreateBookings(ctx, start, OccupancyProtected, []model.SeatBooking{temp})
    require.NoError(t, err)
    _, err = m.CreateBookings(ctx, start, OccupancyAnyActive, []model.SeatBooking{cash})
    require.NoError(t, err)

    // The scoped sweep only reclaims the lapsed temporary hold.
    later := start.Add(6 * time.Minute)
    n, err := m.ExpireStaleTemporary(ctx, later)
    require.NoError(t, err)
    assert.Equal(t, int64(1), n)

    tempRows, err := m.FindByOrder(ctx, "ord-temp")
    require.NoError(t, err)
    assert.Equal(t, model.BookingExpired, tempRows[0].Status)

    cashRows, err := m.FindByOrder(ctx, "ord-cash")
    require.NoError(t, err)
    assert.Equal(t, model.BookingActive, cashRows[0].Status)

    // The full sweep then catches the remaining cash hold.
    n, err = m.ExpireStale(ctx, later)
    require.NoError(t, err)
    assert.Equal(t, int64(1), n)
}

func TestCreateBookingsOccupyingInsertChecksProtectedSet(t *testing.T) {
    m := NewMemoryStore()
    ctx := context.Background()
    now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

    temp := testBooking(10, "ord-temp", now.Add(5*time.Minute))
    temp.IsTemporary = true
    _, err := m.CreateBookings(ctx, now, OccupancyProtected, []model.SeatBooking{temp})
    require.NoError(t, err)

    // A verified insert checked under confirmed-only mode must still
    // lose to the temporary hold: both live in one exclusivity slot.
    confirmed := testBooking(10, "ord-pay", now.Add(30*time.Minute))
    confirmed.PaymentVerified = true
    confirmed.PaymentStatus = model.PaymentCompleted
    _, err = m.CreateBookings(ctx, now, OccupancyConfirmed, []model.SeatBooking{confirmed})
    var conflict *SeatConflictError
    require.ErrorAs(t, err, &conflict)
    assert.Equal(t, []int{10}, conflict.Seats)

    // A plain cash insert on another seat is unaffected by the widening.
    cash := testBooking(11, "ord-cash", now.Add(30*time.Minute))
    _, err = m.CreateBookings(ctx, now, OccupancyAnyActive, []model.SeatBooking{cash})
    assert.NoError(t, err)
}
