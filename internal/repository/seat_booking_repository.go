package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/canteen-seat-booking/internal/model"
)

// OccupancyMode selects which bookings count as occupying a seat.  The
// two read paths of the API use different definitions and they must not
// be conflated: the public status board only counts verified payments,
// while the temporary-reservation flow must also respect soft holds
// taken during checkout.
type OccupancyMode int

const (
    // OccupancyConfirmed counts only bookings whose payment has been
    // verified and completed.  Used by the status board, the available
    // list and the payment-first booking path.
    OccupancyConfirmed OccupancyMode = iota
    // OccupancyProtected counts confirmed bookings plus temporary
    // reservations.  Used while a concurrent payment is in flight so a
    // seat is not offered twice mid-checkout.
    OccupancyProtected
    // OccupancyAnyActive counts every live booking regardless of payment
    // state.  Used by the cash and auto-block paths and by the
    // protection-status view.
    OccupancyAnyActive
)

// TemporaryPromotion carries the payment identity applied to an order's
// temporary reservations when they are confirmed.
type TemporaryPromotion struct {
    RazorpayOrderID   string
    RazorpayPaymentID string
    Amount            int64
    Currency          string
    ExpiresAt         time.Time // fresh 30 minute window, not the old 5 minute one
}

// mysqlDupEntry is the MySQL error number for a unique key violation.
// The seat_bookings table carries a functional unique key over occupying
// seats, so a duplicate entry on insert means another transaction won
// the seat race.
const mysqlDupEntry = 1062

// SeatBookingRepo provides data access to the seat_bookings table.  It
// is the ground truth for seat holds: bookings are inserted and
// status-flipped here, never deleted.  All timestamps are compared in
// UTC; callers supply the current instant explicitly so the same
// predicates can be exercised against a simulated clock elsewhere.
type SeatBookingRepo struct {
    db *sql.DB
}

// NewSeatBookingRepo returns a SeatBookingRepo bound to the provided database.
func NewSeatBookingRepo(db *sql.DB) *SeatBookingRepo { return &SeatBookingRepo{db: db} }

// DB exposes the underlying handle for callers that need to coordinate
// transactions across repositories.
func (r *SeatBookingRepo) DB() *sql.DB { return r.db }

const seatBookingColumns = `id, seat_number, order_id, user_id, user_name, status,
    booked_at, expires_at, order_details, payment_verified, payment_status,
    razorpay_order_id, razorpay_payment_id, payment_amount, payment_currency,
    is_temporary, created_at, updated_at`

// occupancyPredicate returns the WHERE fragment selecting live bookings
// under the given mode.  The caller binds `now` for the expiry check.
func occupancyPredicate(mode OccupancyMode) string {
    base := `status = 'active' AND expires_at > ?`
    switch mode {
    case OccupancyConfirmed:
        return base + ` AND payment_verified = 1 AND payment_status = 'completed'`
    case OccupancyProtected:
        return base + ` AND (payment_verified = 1 AND payment_status = 'completed' OR is_temporary = 1)`
    default:
        return base
    }
}

func scanSeatBooking(sc interface{ Scan(...any) error }) (model.SeatBooking, error) {
    var (
        b                          model.SeatBooking
        userID, userName, details  sql.NullString
        rzpOrder, rzpPayment, curr sql.NullString
        amount                     sql.NullInt64
    )
    err := sc.Scan(&b.ID, &b.SeatNumber, &b.OrderID, &userID, &userName, &b.Status,
        &b.BookedAt, &b.ExpiresAt, &details, &b.PaymentVerified, &b.PaymentStatus,
        &rzpOrder, &rzpPayment, &amount, &curr, &b.IsTemporary, &b.CreatedAt, &b.UpdatedAt)
    if err != nil {
        return b, err
    }
    b.UserID = userID.String
    b.UserName = userName.String
    b.OrderDetails = details.String
    b.RazorpayOrderID = rzpOrder.String
    b.RazorpayPaymentID = rzpPayment.String
    b.PaymentAmount = amount.Int64
    b.PaymentCurrency = curr.String
    return b, nil
}

// ExpireStale flips every active booking whose expiry has passed to
// expired and returns the number of rows modified.  The operation is a
// single conditional update: it is idempotent and safe to run
// concurrently with bookings, because it only ever moves active rows to
// expired and never touches rows that already left the active state.
func (r *SeatBookingRepo) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE seat_bookings SET status = 'expired' WHERE status = 'active' AND expires_at <= ?`,
        now.UTC())
    if err != nil {
        return 0, fmt.Errorf("expire stale bookings: %w", err)
    }
    return res.RowsAffected()
}

// ExpireStaleTemporary is the variant scoped to temporary reservations only.
func (r *SeatBookingRepo) ExpireStaleTemporary(ctx context.Context, now time.Time) (int64, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE seat_bookings SET status = 'expired'
         WHERE is_temporary = 1 AND status = 'active' AND expires_at <= ?`,
        now.UTC())
    if err != nil {
        return 0, fmt.Errorf("expire stale temporary reservations: %w", err)
    }
    return res.RowsAffected()
}

// FindOccupying returns the live bookings occupying seats under the given
// mode, ordered by seat number.
func (r *SeatBookingRepo) FindOccupying(ctx context.Context, now time.Time, mode OccupancyMode) ([]model.SeatBooking, error) {
    q := `SELECT ` + seatBookingColumns + ` FROM seat_bookings WHERE ` +
        occupancyPredicate(mode) + ` ORDER BY seat_number`
    rows, err := r.db.QueryContext(ctx, q, now.UTC())
    if err != nil {
        return nil, fmt.Errorf("query occupying bookings: %w", err)
    }
    defer rows.Close()
    var out []model.SeatBooking
    for rows.Next() {
        b, err := scanSeatBooking(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, b)
    }
    return out, rows.Err()
}

// CreateBookings inserts the given bookings all-or-nothing.  Inside a
// single transaction it first sweeps stale holds, then re-validates that
// none of the requested seats is occupied under the given mode, and only
// then performs the bulk insert.  The in-transaction re-check closes the
// window between an application-level availability check and the insert;
// the functional unique key on occupying seats remains the final arbiter
// when two transactions race past the check, and a duplicate-entry error
// is reported as a SeatConflictError exactly like a failed re-check.
func (r *SeatBookingRepo) CreateBookings(ctx context.Context, now time.Time, mode OccupancyMode, bookings []model.SeatBooking) ([]model.SeatBooking, error) {
    if len(bookings) == 0 {
        return nil, nil
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, fmt.Errorf("begin booking transaction: %w", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    // Reclaim lapsed holds first so an expired row never blocks the
    // re-check or holds the unique key slot.
    if _, err := tx.ExecContext(ctx,
        `UPDATE seat_bookings SET status = 'expired' WHERE status = 'active' AND expires_at <= ?`,
        now.UTC()); err != nil {
        return nil, fmt.Errorf("sweep inside booking transaction: %w", err)
    }

    requested := make([]int, 0, len(bookings))
    for _, b := range bookings {
        requested = append(requested, b.SeatNumber)
    }

    // An occupying insert (verified or temporary) must also beat every
    // protected hold, the same set the unique key spans; otherwise the
    // key would reject the insert after the re-check passed and the
    // conflict could not be enumerated per seat.
    checkMode := mode
    if mode == OccupancyConfirmed && (bookings[0].PaymentVerified || bookings[0].IsTemporary) {
        checkMode = OccupancyProtected
    }

    // Re-validate availability within the same transaction snapshot.
    // FOR UPDATE serializes racing bookers on the matching rows.
    placeholders := strings.TrimRight(strings.Repeat("?,", len(requested)), ",")
    q := `SELECT seat_number FROM seat_bookings WHERE ` + occupancyPredicate(checkMode) +
        ` AND seat_number IN (` + placeholders + `) FOR UPDATE`
    args := make([]any, 0, len(requested)+1)
    args = append(args, now.UTC())
    for _, n := range requested {
        args = append(args, n)
    }
    rows, err := tx.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, fmt.Errorf("re-check availability: %w", err)
    }
    var conflicts []int
    for rows.Next() {
        var n int
        if scanErr := rows.Scan(&n); scanErr != nil {
            rows.Close()
            return nil, scanErr
        }
        conflicts = append(conflicts, n)
    }
    if err := rows.Close(); err != nil {
        return nil, err
    }
    if len(conflicts) > 0 {
        return nil, NewSeatConflictError(conflicts)
    }

    insert := `INSERT INTO seat_bookings (seat_number, order_id, user_id, user_name, status,
        booked_at, expires_at, order_details, payment_verified, payment_status,
        razorpay_order_id, razorpay_payment_id, payment_amount, payment_currency, is_temporary) VALUES `
    vals := make([]any, 0, len(bookings)*15)
    for i, b := range bookings {
        if i > 0 {
            insert += ","
        }
        insert += "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
        vals = append(vals, b.SeatNumber, b.OrderID, nullStr(b.UserID), nullStr(b.UserName),
            model.BookingActive, b.BookedAt.UTC(), b.ExpiresAt.UTC(), nullStr(b.OrderDetails),
            b.PaymentVerified, b.PaymentStatus, nullStr(b.RazorpayOrderID),
            nullStr(b.RazorpayPaymentID), nullInt(b.PaymentAmount), nullStr(b.PaymentCurrency),
            b.IsTemporary)
    }
    if _, err := tx.ExecContext(ctx, insert, vals...); err != nil {
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == mysqlDupEntry {
            // Another transaction committed an occupying hold between our
            // re-check and insert; the unique key decided the race.
            // Enumerate the actual losers instead of blaming the batch.
            if losers, qerr := r.occupyingAmong(ctx, now, requested); qerr == nil && len(losers) > 0 {
                return nil, NewSeatConflictError(losers)
            }
            return nil, NewSeatConflictError(requested)
        }
        return nil, fmt.Errorf("insert bookings: %w", err)
    }
    if err := tx.Commit(); err != nil {
        return nil, fmt.Errorf("commit booking transaction: %w", err)
    }
    committed = true
    return r.FindByOrder(ctx, bookings[0].OrderID)
}

// occupyingAmong returns which of the given seats currently carry a
// live confirmed or temporary hold.  Used to name exact conflicts after
// the unique key rejects an insert.
func (r *SeatBookingRepo) occupyingAmong(ctx context.Context, now time.Time, seats []int) ([]int, error) {
    placeholders := strings.TrimRight(strings.Repeat("?,", len(seats)), ",")
    q := `SELECT seat_number FROM seat_bookings WHERE ` + occupancyPredicate(OccupancyProtected) +
        ` AND seat_number IN (` + placeholders + `)`
    args := make([]any, 0, len(seats)+1)
    args = append(args, now.UTC())
    for _, n := range seats {
        args = append(args, n)
    }
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, fmt.Errorf("query occupying seats: %w", err)
    }
    defer rows.Close()
    var out []int
    for rows.Next() {
        var n int
        if err := rows.Scan(&n); err != nil {
            return nil, err
        }
        out = append(out, n)
    }
    return out, rows.Err()
}

// FindByOrder returns every booking for the order ordered by seat number.
// An order with no bookings yields ErrBookingNotFound.
func (r *SeatBookingRepo) FindByOrder(ctx context.Context, orderID string) ([]model.SeatBooking, error) {
    q := `SELECT ` + seatBookingColumns + ` FROM seat_bookings WHERE order_id = ? ORDER BY seat_number`
    rows, err := r.db.QueryContext(ctx, q, orderID)
    if err != nil {
        return nil, fmt.Errorf("query bookings by order: %w", err)
    }
    defer rows.Close()
    var out []model.SeatBooking
    for rows.Next() {
        b, err := scanSeatBooking(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if len(out) == 0 {
        return nil, ErrBookingNotFound
    }
    return out, nil
}

// PromoteTemporary converts the order's active temporary reservations
// into confirmed bookings: payment identity is recorded and the expiry
// is rewritten to the fresh window in p.ExpiresAt.  Returns the number
// of promoted rows; zero rows means the reservations expired (or never
// existed) and the caller should report ErrNoReservationFound.
func (r *SeatBookingRepo) PromoteTemporary(ctx context.Context, orderID string, p TemporaryPromotion) (int64, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE seat_bookings
         SET payment_verified = 1, payment_status = 'completed', is_temporary = 0,
             razorpay_order_id = ?, razorpay_payment_id = ?, payment_amount = ?,
             payment_currency = ?, expires_at = ?
         WHERE order_id = ? AND is_temporary = 1 AND status = 'active'`,
        p.RazorpayOrderID, p.RazorpayPaymentID, nullInt(p.Amount), nullStr(p.Currency),
        p.ExpiresAt.UTC(), orderID)
    if err != nil {
        return 0, fmt.Errorf("promote temporary reservations: %w", err)
    }
    return res.RowsAffected()
}

// MarkOrderPaid records payment identity on every booking of the order,
// regardless of flavour.  Used when a parent order completes payment and
// its auto-blocked seats should stop counting as pending.
func (r *SeatBookingRepo) MarkOrderPaid(ctx context.Context, orderID string, p TemporaryPromotion) (int64, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE seat_bookings
         SET payment_verified = 1, payment_status = 'completed',
             razorpay_order_id = ?, razorpay_payment_id = ?, payment_amount = ?, payment_currency = ?
         WHERE order_id = ?`,
        p.RazorpayOrderID, p.RazorpayPaymentID, nullInt(p.Amount), nullStr(p.Currency), orderID)
    if err != nil {
        return 0, fmt.Errorf("mark order paid: %w", err)
    }
    return res.RowsAffected()
}

// ExpireOrder flips every active booking of the order to expired
// immediately, independent of expires_at.  Used by cancellation and the
// admin force-expire endpoint.
func (r *SeatBookingRepo) ExpireOrder(ctx context.Context, orderID string) (int64, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE seat_bookings SET status = 'expired' WHERE order_id = ? AND status = 'active'`,
        orderID)
    if err != nil {
        return 0, fmt.Errorf("expire order bookings: %w", err)
    }
    return res.RowsAffected()
}

// ExtendOrder rewrites the expiry of every active booking of the order.
func (r *SeatBookingRepo) ExtendOrder(ctx context.Context, orderID string, newExpiresAt time.Time) (int64, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE seat_bookings SET expires_at = ? WHERE order_id = ? AND status = 'active'`,
        newExpiresAt.UTC(), orderID)
    if err != nil {
        return 0, fmt.Errorf("extend order bookings: %w", err)
    }
    return res.RowsAffected()
}

// AdminFilter narrows the admin listing.  Zero value lists everything.
type AdminFilter struct {
    Status          string // raw status value, e.g. "active"
    PaymentVerified bool   // verified & completed payments only
    PendingPayment  bool   // unverified active bookings
    Temporary       bool   // active temporary reservations
}

// ListAdmin returns a page of bookings newest first plus the total count
// matching the filter.
func (r *SeatBookingRepo) ListAdmin(ctx context.Context, f AdminFilter, limit, offset int) ([]model.SeatBooking, int64, error) {
    where := "1=1"
    var args []any
    switch {
    case f.PaymentVerified:
        where = `payment_verified = 1 AND payment_status = 'completed'`
    case f.PendingPayment:
        where = `payment_verified = 0 AND status = 'active'`
    case f.Temporary:
        where = `is_temporary = 1 AND status = 'active'`
    case f.Status != "":
        where = `status = ?`
        args = append(args, f.Status)
    }
    var total int64
    if err := r.db.QueryRowContext(ctx,
        `SELECT COUNT(*) FROM seat_bookings WHERE `+where, args...).Scan(&total); err != nil {
        return nil, 0, fmt.Errorf("count admin bookings: %w", err)
    }
    q := `SELECT ` + seatBookingColumns + ` FROM seat_bookings WHERE ` + where +
        ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
    rows, err := r.db.QueryContext(ctx, q, append(args, limit, offset)...)
    if err != nil {
        return nil, 0, fmt.Errorf("list admin bookings: %w", err)
    }
    defer rows.Close()
    var out []model.SeatBooking
    for rows.Next() {
        b, err := scanSeatBooking(rows)
        if err != nil {
            return nil, 0, err
        }
        out = append(out, b)
    }
    return out, total, rows.Err()
}

// BookingStats aggregates counters for the admin dashboard.
type BookingStats struct {
    Total                 int64 `json:"total"`
    Active                int64 `json:"active"`
    Expired               int64 `json:"expired"`
    Completed             int64 `json:"completed"`
    PaymentVerified       int64 `json:"payment_verified"`
    PendingPayment        int64 `json:"pending_payment"`
    TemporaryReservations int64 `json:"temporary_reservations"`
    Recent24h             int64 `json:"recent_24h"`
}

// Stats computes the dashboard counters in one query per counter group.
func (r *SeatBookingRepo) Stats(ctx context.Context, now time.Time) (BookingStats, error) {
    var s BookingStats
    counts := []struct {
        dst   *int64
        where string
        args  []any
    }{
        {&s.Total, "1=1", nil},
        {&s.Active, "status = 'active'", nil},
        {&s.Expired, "status = 'expired'", nil},
        {&s.Completed, "status = 'completed'", nil},
        {&s.PaymentVerified, "payment_verified = 1 AND payment_status = 'completed'", nil},
        {&s.PendingPayment, "payment_verified = 0 AND status = 'active' AND payment_status = 'pending'", nil},
        {&s.TemporaryReservations, "is_temporary = 1 AND status = 'active'", nil},
        {&s.Recent24h, "created_at >= ?", []any{now.UTC().Add(-24 * time.Hour)}},
    }
    for _, c := range counts {
        if err := r.db.QueryRowContext(ctx,
            `SELECT COUNT(*) FROM seat_bookings WHERE `+c.where, c.args...).Scan(c.dst); err != nil {
            return s, fmt.Errorf("booking stats: %w", err)
        }
    }
    return s, nil
}

func nullStr(s string) any {
    if s == "" {
        return nil
    }
    return s
}

func nullInt(n int64) any {
    if n == 0 {
        return nil
    }
    return n
}
