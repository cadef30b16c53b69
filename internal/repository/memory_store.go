package repository

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/iliyamo/canteen-seat-booking/internal/model"
)

// MemoryStore is an in-memory implementation of the reservation store
// with the same semantics as SeatBookingRepo: all-or-nothing creation
// with an in-"transaction" sweep and availability re-check, bookings
// that are status-flipped rather than deleted, and occupancy predicates
// shared with the SQL store through the model helpers.  A single mutex
// serializes writers, which stands in for the database transaction plus
// unique key when running without MySQL (tests, local development).
type MemoryStore struct {
    mu       sync.Mutex
    seq      uint64
    bookings []*model.SeatBooking
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func occupies(b *model.SeatBooking, now time.Time, mode OccupancyMode) bool {
    if !b.Live(now) {
        return false
    }
    switch mode {
    case OccupancyConfirmed:
        return b.PaymentConfirmed()
    case OccupancyProtected:
        return b.PaymentConfirmed() || b.IsTemporary
    default:
        return true
    }
}

// sweepLocked flips lapsed active bookings to expired.  Callers hold mu.
func (m *MemoryStore) sweepLocked(now time.Time, temporaryOnly bool) int64 {
    var n int64
    for _, b := range m.bookings {
        if b.Status != model.BookingActive {
            continue
        }
        if temporaryOnly && !b.IsTemporary {
            continue
        }
        if !b.ExpiresAt.After(now) {
            b.Status = model.BookingExpired
            b.UpdatedAt = now
            n++
        }
    }
    return n
}

// ExpireStale flips all lapsed active bookings to expired.
func (m *MemoryStore) ExpireStale(_ context.Context, now time.Time) (int64, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    return m.sweepLocked(now, false), nil
}

// ExpireStaleTemporary is the variant scoped to temporary reservations.
func (m *MemoryStore) ExpireStaleTemporary(_ context.Context, now time.Time) (int64, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    return m.sweepLocked(now, true), nil
}

// FindOccupying returns copies of the live bookings under the given mode.
func (m *MemoryStore) FindOccupying(_ context.Context, now time.Time, mode OccupancyMode) ([]model.SeatBooking, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var out []model.SeatBooking
    for _, b := range m.bookings {
        if occupies(b, now, mode) {
            out = append(out, *b)
        }
    }
    sortBySeat(out)
    return out, nil
}

// CreateBookings mirrors the SQL store: sweep, re-check availability for
// the requested seats under the mode, then append all-or-nothing.
func (m *MemoryStore) CreateBookings(_ context.Context, now time.Time, mode OccupancyMode, bookings []model.SeatBooking) ([]model.SeatBooking, error) {
    if len(bookings) == 0 {
        return nil, nil
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    m.sweepLocked(now, false)

    requested := make(map[int]bool, len(bookings))
    for _, b := range bookings {
        requested[b.SeatNumber] = true
    }
    // An occupying insert (verified or temporary) must also beat every
    // protected hold, the same set the SQL store's unique key spans.
    checkMode := mode
    if mode == OccupancyConfirmed && (bookings[0].PaymentVerified || bookings[0].IsTemporary) {
        checkMode = OccupancyProtected
    }
    var conflicts []int
    for _, b := range m.bookings {
        if requested[b.SeatNumber] && occupies(b, now, checkMode) {
            conflicts = append(conflicts, b.SeatNumber)
        }
    }
    if len(conflicts) > 0 {
        return nil, NewSeatConflictError(conflicts)
    }

    created := make([]model.SeatBooking, 0, len(bookings))
    for _, b := range bookings {
        m.seq++
        b.ID = m.seq
        b.Status = model.BookingActive
        b.CreatedAt = now
        b.UpdatedAt = now
        stored := b
        m.bookings = append(m.bookings, &stored)
        created = append(created, b)
    }
    sortBySeat(created)
    return created, nil
}

// FindByOrder returns the order's bookings sorted by seat number.
func (m *MemoryStore) FindByOrder(_ context.Context, orderID string) ([]model.SeatBooking, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var out []model.SeatBooking
    for _, b := range m.bookings {
        if b.OrderID == orderID {
            out = append(out, *b)
        }
    }
    if len(out) == 0 {
        return nil, ErrBookingNotFound
    }
    sortBySeat(out)
    return out, nil
}

// PromoteTemporary confirms the order's active temporary reservations.
func (m *MemoryStore) PromoteTemporary(_ context.Context, orderID string, p TemporaryPromotion) (int64, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var n int64
    for _, b := range m.bookings {
        if b.OrderID != orderID || !b.IsTemporary || b.Status != model.BookingActive {
            continue
        }
        b.PaymentVerified = true
        b.PaymentStatus = model.PaymentCompleted
        b.IsTemporary = false
        b.RazorpayOrderID = p.RazorpayOrderID
        b.RazorpayPaymentID = p.RazorpayPaymentID
        b.PaymentAmount = p.Amount
        b.PaymentCurrency = p.Currency
        b.ExpiresAt = p.ExpiresAt
        n++
    }
    return n, nil
}

// MarkOrderPaid records payment identity on every booking of the order.
func (m *MemoryStore) MarkOrderPaid(_ context.Context, orderID string, p TemporaryPromotion) (int64, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var n int64
    for _, b := range m.bookings {
        if b.OrderID != orderID {
            continue
        }
        b.PaymentVerified = true
        b.PaymentStatus = model.PaymentCompleted
        b.RazorpayOrderID = p.RazorpayOrderID
        b.RazorpayPaymentID = p.RazorpayPaymentID
        b.PaymentAmount = p.Amount
        b.PaymentCurrency = p.Currency
        n++
    }
    return n, nil
}

// ExpireOrder immediately expires the order's active bookings.
func (m *MemoryStore) ExpireOrder(_ context.Context, orderID string) (int64, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var n int64
    for _, b := range m.bookings {
        if b.OrderID == orderID && b.Status == model.BookingActive {
            b.Status = model.BookingExpired
            n++
        }
    }
    return n, nil
}

// ExtendOrder rewrites the expiry of the order's active bookings.
func (m *MemoryStore) ExtendOrder(_ context.Context, orderID string, newExpiresAt time.Time) (int64, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var n int64
    for _, b := range m.bookings {
        if b.OrderID == orderID && b.Status == model.BookingActive {
            b.ExpiresAt = newExpiresAt
            n++
        }
    }
    return n, nil
}

func sortBySeat(bs []model.SeatBooking) {
    sort.Slice(bs, func(i, j int) bool { return bs[i].SeatNumber < bs[j].SeatNumber })
}
