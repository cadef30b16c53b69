// Package service holds the reservation engine, the expiry sweeper and
// the auto seat blocking service.  The engine owns every seat mutation:
// no other component writes to the seat pool.
package service

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/iliyamo/canteen-seat-booking/internal/model"
    "github.com/iliyamo/canteen-seat-booking/internal/payment"
    "github.com/iliyamo/canteen-seat-booking/internal/repository"
)

// Hold windows.  Temporary reservations give the customer five minutes
// to finish checkout; everything else protects the seats for thirty.
const (
    TemporaryHoldTTL    = 5 * time.Minute
    ConfirmedHoldTTL    = 30 * time.Minute
    DefaultExtensionMin = 15
)

// Payment claim rejections.  All three are terminal for the attempt and
// leave no partial state behind, because claim verification runs strictly
// before the seat transaction.
var (
    ErrSignatureInvalid   = errors.New("invalid payment signature")
    ErrPaymentNotCaptured = errors.New("payment not captured")
    ErrPaymentMismatch    = errors.New("payment order id mismatch")
)

// ReservationStore is the persistence contract the engine drives.
// *repository.SeatBookingRepo implements it against MySQL and
// *repository.MemoryStore implements it in memory.
type ReservationStore interface {
    ExpireStale(ctx context.Context, now time.Time) (int64, error)
    ExpireStaleTemporary(ctx context.Context, now time.Time) (int64, error)
    FindOccupying(ctx context.Context, now time.Time, mode repository.OccupancyMode) ([]model.SeatBooking, error)
    CreateBookings(ctx context.Context, now time.Time, mode repository.OccupancyMode, bookings []model.SeatBooking) ([]model.SeatBooking, error)
    FindByOrder(ctx context.Context, orderID string) ([]model.SeatBooking, error)
    PromoteTemporary(ctx context.Context, orderID string, p repository.TemporaryPromotion) (int64, error)
    MarkOrderPaid(ctx context.Context, orderID string, p repository.TemporaryPromotion) (int64, error)
    ExpireOrder(ctx context.Context, orderID string) (int64, error)
    ExtendOrder(ctx context.Context, orderID string, newExpiresAt time.Time) (int64, error)
}

// PaymentClaim is what the checkout callback hands back to the client:
// the provider's order id, the payment id and the HMAC signature over
// the pair.
type PaymentClaim struct {
    RazorpayOrderID   string `json:"razorpay_order_id"`
    RazorpayPaymentID string `json:"razorpay_payment_id"`
    RazorpaySignature string `json:"razorpay_signature"`
}

// BookingRequest describes one booking attempt for a set of seats.
type BookingRequest struct {
    Seats        []int
    OrderID      string
    UserID       string
    UserName     string
    OrderDetails string
}

// SeatInfo is one entry of the public status board.
type SeatInfo struct {
    SeatNumber       int        `json:"seat_number"`
    Status           string     `json:"status"` // available | occupied
    OrderID          string     `json:"order_id,omitempty"`
    UserName         string     `json:"user_name,omitempty"`
    BookedAt         *time.Time `json:"booked_at,omitempty"`
    ExpiresAt        *time.Time `json:"expires_at,omitempty"`
    RemainingMinutes int        `json:"remaining_minutes"`
    PaymentVerified  bool       `json:"payment_verified,omitempty"`
    PaymentStatus    string     `json:"payment_status,omitempty"`
}

// SeatBoard is the full 100-entry status view plus summary counters.
type SeatBoard struct {
    Seats          []SeatInfo `json:"seats"`
    TotalSeats     int        `json:"total_seats"`
    AvailableSeats int        `json:"available_seats"`
    OccupiedSeats  int        `json:"occupied_seats"`
}

// ProtectionInfo is one entry of the live protection view, which shows
// confirmed and temporary holds distinctly labeled.
type ProtectionInfo struct {
    SeatNumber       int        `json:"seat_number"`
    Status           string     `json:"status"` // available | protected
    Protected        bool       `json:"protected"`
    ProtectionType   string     `json:"protection_type,omitempty"` // temporary | confirmed
    RemainingMinutes int        `json:"remaining_minutes"`
    BookedBy         string     `json:"booked_by,omitempty"`
    OrderID          string     `json:"order_id,omitempty"`
    PaymentVerified  bool       `json:"payment_verified,omitempty"`
    PaymentStatus    string     `json:"payment_status,omitempty"`
    ExpiresAt        *time.Time `json:"expires_at,omitempty"`
    IsTemporary      bool       `json:"is_temporary,omitempty"`
}

// ProtectionBoard is the 100-entry protection view plus summary.
type ProtectionBoard struct {
    Seats                 []ProtectionInfo `json:"seats"`
    TotalSeats            int              `json:"total_seats"`
    ProtectedSeats        int              `json:"protected_seats"`
    AvailableSeats        int              `json:"available_seats"`
    ConfirmedBookings     int              `json:"confirmed_bookings"`
    TemporaryReservations int              `json:"temporary_reservations"`
}

// ConfirmResult reports a successful promotion of temporary reservations.
type ConfirmResult struct {
    ConfirmedCount int64     `json:"confirmed_count"`
    NewExpiresAt   time.Time `json:"new_expires_at"`
}

// PaymentStatusSummary is the per-order payment view.
type PaymentStatusSummary struct {
    OrderID           string `json:"order_id"`
    PaymentVerified   bool   `json:"payment_verified"`
    PaymentStatus     string `json:"payment_status"`
    RazorpayOrderID   string `json:"razorpay_order_id,omitempty"`
    RazorpayPaymentID string `json:"razorpay_payment_id,omitempty"`
    TotalSeats        int    `json:"total_seats"`
    Seats             []int  `json:"seats"`
    Status            string `json:"status"`
}

// ReservationEngine enforces seat exclusivity and drives the hold state
// machine.  Concurrency safety rests on the store's transactional
// guarantees, not on any lock held here: the engine may be called from
// any number of request goroutines.
type ReservationEngine struct {
    store   ReservationStore
    gateway payment.Gateway
    now     func() time.Time
}

// NewReservationEngine wires the engine to its collaborators.
func NewReservationEngine(store ReservationStore, gateway payment.Gateway) *ReservationEngine {
    if store == nil || gateway == nil {
        panic("nil collaborator passed to NewReservationEngine")
    }
    return &ReservationEngine{store: store, gateway: gateway, now: time.Now}
}

// normalizeSeats deduplicates and validates a requested seat list.
func normalizeSeats(seats []int) ([]int, error) {
    if len(seats) == 0 {
        return nil, errors.New("seats are required")
    }
    seen := make(map[int]struct{}, len(seats))
    out := make([]int, 0, len(seats))
    for _, n := range seats {
        if !model.ValidSeatNumber(n) {
            return nil, fmt.Errorf("seat number %d is out of range 1..%d", n, model.TotalSeats)
        }
        if _, ok := seen[n]; ok {
            continue
        }
        seen[n] = struct{}{}
        out = append(out, n)
    }
    return out, nil
}

// verifyClaim checks the claim's signature locally and then against the
// provider.  It runs strictly before any seat transaction so that a
// rejected claim leaves no partial state and the gateway round-trip
// never happens while a transaction is open.
func (e *ReservationEngine) verifyClaim(ctx context.Context, claim PaymentClaim) (*payment.Payment, error) {
    if claim.RazorpayOrderID == "" || claim.RazorpayPaymentID == "" || claim.RazorpaySignature == "" {
        return nil, ErrSignatureInvalid
    }
    if !e.gateway.VerifySignature(claim.RazorpayOrderID, claim.RazorpayPaymentID, claim.RazorpaySignature) {
        return nil, ErrSignatureInvalid
    }
    p, err := e.gateway.FetchPayment(ctx, claim.RazorpayPaymentID)
    if err != nil {
        return nil, err
    }
    if p.Status != payment.StatusCaptured {
        return nil, fmt.Errorf("%w: current status %q", ErrPaymentNotCaptured, p.Status)
    }
    if p.OrderID != claim.RazorpayOrderID {
        return nil, ErrPaymentMismatch
    }
    return p, nil
}

func (e *ReservationEngine) buildBookings(req BookingRequest, seats []int, now, expiresAt time.Time) []model.SeatBooking {
    userName := req.UserName
    if userName == "" {
        userName = "Guest User"
    }
    bookings := make([]model.SeatBooking, 0, len(seats))
    for _, n := range seats {
        bookings = append(bookings, model.SeatBooking{
            SeatNumber:    n,
            OrderID:       req.OrderID,
            UserID:        req.UserID,
            UserName:      userName,
            Status:        model.BookingActive,
            BookedAt:      now,
            ExpiresAt:     expiresAt,
            OrderDetails:  req.OrderDetails,
            PaymentStatus: model.PaymentPending,
        })
    }
    return bookings
}

// BookAfterPayment creates confirmed bookings for seats whose payment
// has already been captured.  The claim is verified first; only then
// does the store re-check occupancy inside its transaction and insert
// the holds with a fresh 30 minute window.  Because a confirmed hold
// occupies the same exclusivity slot as a temporary one, a live
// temporary reservation by another order conflicts here too.
func (e *ReservationEngine) BookAfterPayment(ctx context.Context, req BookingRequest, claim PaymentClaim) ([]model.SeatBooking, error) {
    seats, err := normalizeSeats(req.Seats)
    if err != nil {
        return nil, err
    }
    if req.OrderID == "" {
        return nil, errors.New("order id is required")
    }
    p, err := e.verifyClaim(ctx, claim)
    if err != nil {
        return nil, err
    }
    now := e.now()
    bookings := e.buildBookings(req, seats, now, now.Add(ConfirmedHoldTTL))
    for i := range bookings {
        bookings[i].PaymentVerified = true
        bookings[i].PaymentStatus = model.PaymentCompleted
        bookings[i].RazorpayOrderID = claim.RazorpayOrderID
        bookings[i].RazorpayPaymentID = claim.RazorpayPaymentID
        bookings[i].PaymentAmount = p.Amount
        bookings[i].PaymentCurrency = p.Currency
    }
    return e.store.CreateBookings(ctx, now, repository.OccupancyConfirmed, bookings)
}

// BookCash creates pending bookings for a cash order.  Any live hold on
// a requested seat conflicts, regardless of payment state.  The same
// transactional re-validate-then-insert path as the payment-first flow
// is used, so two simultaneous cash bookings for one seat cannot both
// commit.
func (e *ReservationEngine) BookCash(ctx context.Context, req BookingRequest) ([]model.SeatBooking, error) {
    seats, err := normalizeSeats(req.Seats)
    if err != nil {
        return nil, err
    }
    if req.OrderID == "" {
        return nil, errors.New("order id is required")
    }
    now := e.now()
    bookings := e.buildBookings(req, seats, now, now.Add(ConfirmedHoldTTL))
    return e.store.CreateBookings(ctx, now, repository.OccupancyAnyActive, bookings)
}

// ReserveTemporary takes 5 minute soft holds on the seats while the
// customer completes payment.  The availability check counts confirmed
// and temporary holds so a seat cannot be offered twice mid-checkout.
func (e *ReservationEngine) ReserveTemporary(ctx context.Context, req BookingRequest) ([]model.SeatBooking, error) {
    seats, err := normalizeSeats(req.Seats)
    if err != nil {
        return nil, err
    }
    if req.OrderID == "" {
        return nil, errors.New("order id is required")
    }
    now := e.now()
    bookings := e.buildBookings(req, seats, now, now.Add(TemporaryHoldTTL))
    for i := range bookings {
        bookings[i].IsTemporary = true
    }
    return e.store.CreateBookings(ctx, now, repository.OccupancyProtected, bookings)
}

// ConfirmReservations promotes the order's temporary reservations to
// confirmed bookings after verifying the payment claim.  The expiry is
// rewritten to a fresh 30 minute window counted from confirmation time,
// not from the original 5 minute deadline.  When no active temporary
// reservations remain (the window lapsed), ErrNoReservationFound is
// returned and the caller must restart the temporary-reserve flow.
func (e *ReservationEngine) ConfirmReservations(ctx context.Context, orderID string, claim PaymentClaim) (*ConfirmResult, error) {
    if orderID == "" {
        return nil, errors.New("order id is required")
    }
    p, err := e.verifyClaim(ctx, claim)
    if err != nil {
        return nil, err
    }
    now := e.now()
    // Lazy sweep scoped to temporary holds: a lapsed reservation must
    // not be promotable.
    if _, err := e.store.ExpireStaleTemporary(ctx, now); err != nil {
        return nil, err
    }
    newExpiry := now.Add(ConfirmedHoldTTL)
    count, err := e.store.PromoteTemporary(ctx, orderID, repository.TemporaryPromotion{
        RazorpayOrderID:   claim.RazorpayOrderID,
        RazorpayPaymentID: claim.RazorpayPaymentID,
        Amount:            p.Amount,
        Currency:          p.Currency,
        ExpiresAt:         newExpiry,
    })
    if err != nil {
        return nil, err
    }
    if count == 0 {
        return nil, repository.ErrNoReservationFound
    }
    return &ConfirmResult{ConfirmedCount: count, NewExpiresAt: newExpiry}, nil
}

// Cancel expires every active booking of the order immediately.
func (e *ReservationEngine) Cancel(ctx context.Context, orderID string) (int64, error) {
    count, err := e.store.ExpireOrder(ctx, orderID)
    if err != nil {
        return 0, err
    }
    if count == 0 {
        return 0, repository.ErrNoActiveBookings
    }
    return count, nil
}

// Extend gives the order's active bookings a new expiry of now plus the
// given number of minutes.  Zero or negative minutes fall back to the
// default extension.
func (e *ReservationEngine) Extend(ctx context.Context, orderID string, minutes int) (time.Time, error) {
    if minutes <= 0 {
        minutes = DefaultExtensionMin
    }
    now := e.now()
    if _, err := e.store.ExpireStale(ctx, now); err != nil {
        return time.Time{}, err
    }
    newExpiry := now.Add(time.Duration(minutes) * time.Minute)
    count, err := e.store.ExtendOrder(ctx, orderID, newExpiry)
    if err != nil {
        return time.Time{}, err
    }
    if count == 0 {
        return time.Time{}, repository.ErrNoActiveBookings
    }
    return newExpiry, nil
}

// OccupiedSeats returns the seat numbers occupied under the given mode.
func (e *ReservationEngine) OccupiedSeats(ctx context.Context, mode repository.OccupancyMode) ([]int, error) {
    now := e.now()
    if _, err := e.store.ExpireStale(ctx, now); err != nil {
        return nil, err
    }
    bookings, err := e.store.FindOccupying(ctx, now, mode)
    if err != nil {
        return nil, err
    }
    seats := make([]int, 0, len(bookings))
    for _, b := range bookings {
        seats = append(seats, b.SeatNumber)
    }
    return seats, nil
}

// AvailableSeats returns the free seat numbers under confirmed-only
// occupancy, the definition the public views use.
func (e *ReservationEngine) AvailableSeats(ctx context.Context) ([]int, error) {
    occupied, err := e.OccupiedSeats(ctx, repository.OccupancyConfirmed)
    if err != nil {
        return nil, err
    }
    taken := make(map[int]bool, len(occupied))
    for _, n := range occupied {
        taken[n] = true
    }
    free := make([]int, 0, model.TotalSeats)
    for n := 1; n <= model.TotalSeats; n++ {
        if !taken[n] {
            free = append(free, n)
        }
    }
    return free, nil
}

// StatusBoard computes the public 100-entry board against confirmed-only
// occupancy.  Stale holds are swept first so they never display as
// occupied.
func (e *ReservationEngine) StatusBoard(ctx context.Context) (*SeatBoard, error) {
    now := e.now()
    if _, err := e.store.ExpireStale(ctx, now); err != nil {
        return nil, err
    }
    bookings, err := e.store.FindOccupying(ctx, now, repository.OccupancyConfirmed)
    if err != nil {
        return nil, err
    }
    bySeat := make(map[int]model.SeatBooking, len(bookings))
    for _, b := range bookings {
        bySeat[b.SeatNumber] = b
    }
    board := &SeatBoard{Seats: make([]SeatInfo, 0, model.TotalSeats), TotalSeats: model.TotalSeats}
    for n := 1; n <= model.TotalSeats; n++ {
        info := SeatInfo{SeatNumber: n, Status: "available"}
        if b, ok := bySeat[n]; ok {
            bookedAt, expiresAt := b.BookedAt, b.ExpiresAt
            info.Status = "occupied"
            info.OrderID = b.OrderID
            info.UserName = b.UserName
            info.BookedAt = &bookedAt
            info.ExpiresAt = &expiresAt
            info.RemainingMinutes = remainingMinutes(now, b.ExpiresAt)
            info.PaymentVerified = b.PaymentVerified
            info.PaymentStatus = b.PaymentStatus
            board.OccupiedSeats++
        }
        board.Seats = append(board.Seats, info)
    }
    board.AvailableSeats = model.TotalSeats - board.OccupiedSeats
    return board, nil
}

// ProtectionStatus computes the live protection view over every active
// hold, labeling temporary reservations distinctly from confirmed ones.
func (e *ReservationEngine) ProtectionStatus(ctx context.Context) (*ProtectionBoard, error) {
    now := e.now()
    if _, err := e.store.ExpireStale(ctx, now); err != nil {
        return nil, err
    }
    bookings, err := e.store.FindOccupying(ctx, now, repository.OccupancyAnyActive)
    if err != nil {
        return nil, err
    }
    bySeat := make(map[int]model.SeatBooking, len(bookings))
    for _, b := range bookings {
        bySeat[b.SeatNumber] = b
    }
    board := &ProtectionBoard{Seats: make([]ProtectionInfo, 0, model.TotalSeats), TotalSeats: model.TotalSeats}
    for n := 1; n <= model.TotalSeats; n++ {
        info := ProtectionInfo{SeatNumber: n, Status: "available"}
        if b, ok := bySeat[n]; ok {
            expiresAt := b.ExpiresAt
            info.Status = "protected"
            info.Protected = true
            if b.IsTemporary {
                info.ProtectionType = "temporary"
                board.TemporaryReservations++
            } else {
                info.ProtectionType = "confirmed"
                board.ConfirmedBookings++
            }
            info.RemainingMinutes = remainingMinutes(now, b.ExpiresAt)
            info.BookedBy = b.UserName
            info.OrderID = b.OrderID
            info.PaymentVerified = b.PaymentVerified
            info.PaymentStatus = b.PaymentStatus
            info.ExpiresAt = &expiresAt
            info.IsTemporary = b.IsTemporary
            board.ProtectedSeats++
        }
        board.Seats = append(board.Seats, info)
    }
    board.AvailableSeats = model.TotalSeats - board.ProtectedSeats
    return board, nil
}

// BookingsByOrder returns the order's bookings for the lookup endpoint.
func (e *ReservationEngine) BookingsByOrder(ctx context.Context, orderID string) ([]model.SeatBooking, error) {
    return e.store.FindByOrder(ctx, orderID)
}

// PaymentStatus summarizes the payment state of an order's bookings.
func (e *ReservationEngine) PaymentStatus(ctx context.Context, orderID string) (*PaymentStatusSummary, error) {
    bookings, err := e.store.FindByOrder(ctx, orderID)
    if err != nil {
        return nil, err
    }
    first := bookings[0]
    out := &PaymentStatusSummary{
        OrderID:           orderID,
        PaymentVerified:   first.PaymentVerified,
        PaymentStatus:     first.PaymentStatus,
        RazorpayOrderID:   first.RazorpayOrderID,
        RazorpayPaymentID: first.RazorpayPaymentID,
        TotalSeats:        len(bookings),
        Status:            first.Status,
    }
    for _, b := range bookings {
        out.Seats = append(out.Seats, b.SeatNumber)
    }
    return out, nil
}

// SweepOnce runs one expiry pass; used by the background sweeper and by
// anything that wants bounded staleness without a full read.
func (e *ReservationEngine) SweepOnce(ctx context.Context) (int64, error) {
    return e.store.ExpireStale(ctx, e.now())
}

func remainingMinutes(now, expiresAt time.Time) int {
    mins := int(expiresAt.Sub(now).Minutes())
    if mins < 0 {
        return 0
    }
    return mins
}

// describeSeats renders a seat list for log lines.
func describeSeats(seats []int) string {
    parts := make([]string, 0, len(seats))
    for _, n := range seats {
        parts = append(parts, fmt.Sprint(n))
    }
    return strings.Join(parts, ",")
}
