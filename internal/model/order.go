package model

import "time"

// Order statuses.
const (
    OrderPending   = "pending"
    OrderPaid      = "paid"
    OrderCancelled = "cancelled"
)

// Order is the parent record a seat booking correlates to.  The seat
// subsystem only needs the id, the holder identity and the free-text
// notes; everything else is kept for the order endpoints themselves.
//
// Fields:
//  ID         – uuid assigned at creation.
//  UserID     – customer identity (email), empty for guests.
//  UserName   – display name, empty for guests.
//  Items      – JSON snapshot of the cart at creation time.
//  Notes      – free-text annotations; may carry a "Seats booked: ..."
//               line that the auto seat blocking service parses.
//  TotalCents – order total in the smallest currency unit.
//  Status     – pending | paid | cancelled.
//  CreatedAt  – creation timestamp.
type Order struct {
    ID         string    `json:"id"`
    UserID     string    `json:"user_id,omitempty"`
    UserName   string    `json:"user_name,omitempty"`
    Items      string    `json:"items,omitempty"`
    Notes      string    `json:"notes,omitempty"`
    TotalCents int64     `json:"total_cents"`
    Status     string    `json:"status"`
    CreatedAt  time.Time `json:"created_at"`
}
