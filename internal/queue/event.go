// Package queue defines message payloads exchanged over the message broker.
package queue

// SeatsConfirmedEvent is published whenever seats reach the confirmed
// state, either through the payment-first booking flow or by promoting
// temporary reservations.  It carries enough for downstream consumers to
// log or notify without querying the primary database.
type SeatsConfirmedEvent struct {
    OrderID           string `json:"order_id"`
    Seats             []int  `json:"seats"`
    UserName          string `json:"user_name,omitempty"`
    RazorpayOrderID   string `json:"razorpay_order_id"`
    RazorpayPaymentID string `json:"razorpay_payment_id"`
    AmountPaise       int64  `json:"amount_paise,omitempty"`
    ExpiresAt         string `json:"expires_at"`
    ConfirmedAt       string `json:"confirmed_at"`
}
