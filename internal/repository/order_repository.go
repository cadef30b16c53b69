package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/iliyamo/canteen-seat-booking/internal/model"
)

// OrderRepo provides data access to the orders table.  Orders are the
// parent records that seat bookings correlate to; the seat subsystem
// only ever reads the id, holder identity and notes from here.
type OrderRepo struct {
    db *sql.DB
}

// NewOrderRepo returns an OrderRepo bound to the provided database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// Create inserts a new order.  The caller assigns the id.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
    _, err := r.db.ExecContext(ctx,
        `INSERT INTO orders (id, user_id, user_name, items, notes, total_cents, status)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
        o.ID, nullStr(o.UserID), nullStr(o.UserName), nullStr(o.Items), nullStr(o.Notes),
        o.TotalCents, o.Status)
    if err != nil {
        return fmt.Errorf("insert order: %w", err)
    }
    return nil
}

// GetByID loads one order.  Missing rows yield ErrOrderNotFound.
func (r *OrderRepo) GetByID(ctx context.Context, id string) (*model.Order, error) {
    var (
        o                               model.Order
        userID, userName, items, notes sql.NullString
    )
    err := r.db.QueryRowContext(ctx,
        `SELECT id, user_id, user_name, items, notes, total_cents, status, created_at
         FROM orders WHERE id = ?`, id).
        Scan(&o.ID, &userID, &userName, &items, &notes, &o.TotalCents, &o.Status, &o.CreatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrOrderNotFound
    }
    if err != nil {
        return nil, fmt.Errorf("query order: %w", err)
    }
    o.UserID = userID.String
    o.UserName = userName.String
    o.Items = items.String
    o.Notes = notes.String
    return &o, nil
}

// UpdateStatus moves an order to a new status.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id, status string) error {
    res, err := r.db.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, status, id)
    if err != nil {
        return fmt.Errorf("update order status: %w", err)
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrOrderNotFound
    }
    return nil
}
