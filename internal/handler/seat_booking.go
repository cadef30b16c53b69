package handler

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/canteen-seat-booking/internal/model"
    "github.com/iliyamo/canteen-seat-booking/internal/payment"
    "github.com/iliyamo/canteen-seat-booking/internal/queue"
    "github.com/iliyamo/canteen-seat-booking/internal/repository"
    "github.com/iliyamo/canteen-seat-booking/internal/service"
)

// SeatBookingHandler exposes the seat reservation API.  All seat
// mutations go through the reservation engine; the handler only binds
// requests, maps domain errors to HTTP statuses and publishes
// confirmation events after the store has committed.
type SeatBookingHandler struct {
    Engine *service.ReservationEngine
}

// NewSeatBookingHandler constructs the handler.  The engine must be non-nil.
func NewSeatBookingHandler(engine *service.ReservationEngine) *SeatBookingHandler {
    if engine == nil {
        panic("nil engine passed to NewSeatBookingHandler")
    }
    return &SeatBookingHandler{Engine: engine}
}

// bookingBody is the shared request shape of the booking endpoints.  The
// payment claim fields are only read by the payment-first flow.
type bookingBody struct {
    Seats        []int  `json:"seats"`
    OrderID      string `json:"order_id"`
    UserID       string `json:"user_id"`
    UserName     string `json:"user_name"`
    OrderDetails string `json:"order_details"`
    service.PaymentClaim
}

// respondEngineError translates engine/repository errors into HTTP
// responses.  Conflict responses enumerate exactly which seats are
// unavailable so the client can re-offer selection without losing the
// rest of the cart.
func respondEngineError(c echo.Context, err error) error {
    var conflict *repository.SeatConflictError
    switch {
    case errors.As(err, &conflict):
        return c.JSON(http.StatusConflict, echo.Map{
            "error":             "some seats are no longer available, please refresh and try again",
            "error_code":        "SEATS_TAKEN",
            "unavailable_seats": conflict.Seats,
        })
    case errors.Is(err, service.ErrSignatureInvalid):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment signature, payment verification failed"})
    case errors.Is(err, service.ErrPaymentNotCaptured):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrPaymentMismatch):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment order id mismatch"})
    case errors.Is(err, payment.ErrPaymentNotFound):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to verify payment with provider"})
    case errors.Is(err, payment.ErrGatewayUnavailable):
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway unavailable, retry the booking"})
    case errors.Is(err, repository.ErrNoReservationFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "no temporary reservations found for this order"})
    case errors.Is(err, repository.ErrNoActiveBookings):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "no active bookings found for this order"})
    case errors.Is(err, repository.ErrBookingNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "no bookings found for this order"})
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "seat booking failed"})
    }
}

// Status handles GET /v1/seats/status.  It returns the 100-entry board
// computed against confirmed-only occupancy; only verified and completed
// payments block seats here.
func (h *SeatBookingHandler) Status(c echo.Context) error {
    board, err := h.Engine.StatusBoard(c.Request().Context())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to get seat status"})
    }
    return c.JSON(http.StatusOK, board)
}

// Available handles GET /v1/seats/available and lists free seat numbers
// under confirmed-only occupancy.
func (h *SeatBookingHandler) Available(c echo.Context) error {
    seats, err := h.Engine.AvailableSeats(c.Request().Context())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to get available seats"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "available_seats": seats,
        "count":           len(seats),
    })
}

// ProtectionStatus handles GET /v1/seats/protection-status.  Unlike the
// public board it shows every live hold, with temporary reservations and
// confirmed bookings distinctly labeled for the live UI.
func (h *SeatBookingHandler) ProtectionStatus(c echo.Context) error {
    board, err := h.Engine.ProtectionStatus(c.Request().Context())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to get seat protection status"})
    }
    return c.JSON(http.StatusOK, board)
}

// BookAfterPayment handles POST /v1/seats/book-after-payment.  The
// payment claim is verified before any seat is touched; on success the
// seats are confirmed with a 30 minute window and an event is published.
func (h *SeatBookingHandler) BookAfterPayment(c echo.Context) error {
    var body bookingBody
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if len(body.Seats) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats array is required"})
    }
    if body.OrderID == "" || body.RazorpayOrderID == "" || body.RazorpayPaymentID == "" || body.RazorpaySignature == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "order id, razorpay order id, payment id and signature are required"})
    }
    bookings, err := h.Engine.BookAfterPayment(c.Request().Context(), service.BookingRequest{
        Seats:        body.Seats,
        OrderID:      body.OrderID,
        UserID:       body.UserID,
        UserName:     body.UserName,
        OrderDetails: body.OrderDetails,
    }, body.PaymentClaim)
    if err != nil {
        return respondEngineError(c, err)
    }
    h.publishConfirmed(bookings, body.PaymentClaim)
    return c.JSON(http.StatusCreated, echo.Map{
        "message":          "seats booked successfully after payment verification",
        "bookings":         bookings,
        "expires_at":       bookings[0].ExpiresAt.Format(time.RFC3339),
        "time_remaining":   int(service.ConfirmedHoldTTL.Minutes()),
        "payment_verified": true,
    })
}

// BookCash handles POST /v1/seats/book-cash.  No payment verification is
// required; the holds stay pending until cash is received.  Any live
// hold conflicts with a cash booking, including temporary reservations.
func (h *SeatBookingHandler) BookCash(c echo.Context) error {
    var body bookingBody
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if len(body.Seats) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats array is required"})
    }
    if body.OrderID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "order id is required"})
    }
    bookings, err := h.Engine.BookCash(c.Request().Context(), service.BookingRequest{
        Seats:        body.Seats,
        OrderID:      body.OrderID,
        UserID:       body.UserID,
        UserName:     body.UserName,
        OrderDetails: body.OrderDetails,
    })
    if err != nil {
        return respondEngineError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "message":          "seats booked successfully for cash payment",
        "bookings":         bookings,
        "expires_at":       bookings[0].ExpiresAt.Format(time.RFC3339),
        "time_remaining":   int(service.ConfirmedHoldTTL.Minutes()),
        "payment_verified": false,
        "payment_status":   model.PaymentPending,
    })
}

// ReserveTemp handles POST /v1/seats/reserve-temp.  It takes 5 minute
// soft holds so nobody else can grab the seats while payment is in
// flight.  Confirmed and temporary holds both count as occupied here.
func (h *SeatBookingHandler) ReserveTemp(c echo.Context) error {
    var body bookingBody
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if len(body.Seats) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats array is required"})
    }
    if body.OrderID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "order id is required"})
    }
    reservations, err := h.Engine.ReserveTemporary(c.Request().Context(), service.BookingRequest{
        Seats:        body.Seats,
        OrderID:      body.OrderID,
        UserID:       body.UserID,
        UserName:     body.UserName,
        OrderDetails: body.OrderDetails,
    })
    if err != nil {
        return respondEngineError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "message":        "temporary seat reservations created, complete payment within 5 minutes to confirm",
        "reservations":   reservations,
        "expires_at":     reservations[0].ExpiresAt.Format(time.RFC3339),
        "time_remaining": int(service.TemporaryHoldTTL.Minutes()),
        "is_temporary":   true,
    })
}

// ConfirmReservations handles POST /v1/seats/confirm-reservations.  It
// promotes the order's temporary reservations to confirmed bookings
// after the payment claim verifies, rewriting the expiry to a fresh 30
// minute window.
func (h *SeatBookingHandler) ConfirmReservations(c echo.Context) error {
    var body struct {
        OrderID string `json:"order_id"`
        service.PaymentClaim
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.OrderID == "" || body.RazorpayOrderID == "" || body.RazorpayPaymentID == "" || body.RazorpaySignature == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "order id, razorpay order id, payment id and signature are required"})
    }
    res, err := h.Engine.ConfirmReservations(c.Request().Context(), body.OrderID, body.PaymentClaim)
    if err != nil {
        return respondEngineError(c, err)
    }
    if bookings, lookupErr := h.Engine.BookingsByOrder(c.Request().Context(), body.OrderID); lookupErr == nil {
        h.publishConfirmed(bookings, body.PaymentClaim)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "message":          "temporary reservations confirmed successfully after payment",
        "confirmed_count":  res.ConfirmedCount,
        "new_expires_at":   res.NewExpiresAt.Format(time.RFC3339),
        "payment_verified": true,
    })
}

// Cancel handles DELETE /v1/seats/cancel/:orderId and expires every
// active booking of the order immediately.
func (h *SeatBookingHandler) Cancel(c echo.Context) error {
    orderID := c.Param("orderId")
    if orderID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "order id is required"})
    }
    count, err := h.Engine.Cancel(c.Request().Context(), orderID)
    if err != nil {
        return respondEngineError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "message":         "seat bookings cancelled successfully",
        "cancelled_count": count,
    })
}

// Extend handles PATCH /v1/seats/extend/:orderId.  It gives all active
// bookings of the order a new expiry counted from now.
func (h *SeatBookingHandler) Extend(c echo.Context) error {
    orderID := c.Param("orderId")
    if orderID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "order id is required"})
    }
    var body struct {
        AdditionalMinutes int `json:"additional_minutes"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    newExpiry, err := h.Engine.Extend(c.Request().Context(), orderID, body.AdditionalMinutes)
    if err != nil {
        return respondEngineError(c, err)
    }
    minutes := body.AdditionalMinutes
    if minutes <= 0 {
        minutes = service.DefaultExtensionMin
    }
    return c.JSON(http.StatusOK, echo.Map{
        "message":          "booking time extended successfully",
        "new_expires_at":   newExpiry.Format(time.RFC3339),
        "extended_minutes": minutes,
    })
}

// GetByOrder handles GET /v1/seats/order/:orderId and returns every
// booking of the order.
func (h *SeatBookingHandler) GetByOrder(c echo.Context) error {
    orderID := c.Param("orderId")
    if orderID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "order id is required"})
    }
    bookings, err := h.Engine.BookingsByOrder(c.Request().Context(), orderID)
    if err != nil {
        return respondEngineError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "order_id":    orderID,
        "bookings":    bookings,
        "total_seats": len(bookings),
        "status":      bookings[0].Status,
    })
}

// PaymentStatus handles GET /v1/seats/payment-status/:orderId.
func (h *SeatBookingHandler) PaymentStatus(c echo.Context) error {
    orderID := c.Param("orderId")
    if orderID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "order id is required"})
    }
    summary, err := h.Engine.PaymentStatus(c.Request().Context(), orderID)
    if err != nil {
        return respondEngineError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"payment_status": summary})
}

// publishConfirmed fires a seats.confirmed event without blocking the
// response; publish failures are logged inside the queue package and
// deliberately dropped.
func (h *SeatBookingHandler) publishConfirmed(bookings []model.SeatBooking, claim service.PaymentClaim) {
    if len(bookings) == 0 {
        return
    }
    seats := make([]int, 0, len(bookings))
    for _, b := range bookings {
        seats = append(seats, b.SeatNumber)
    }
    first := bookings[0]
    ev := queue.SeatsConfirmedEvent{
        OrderID:           first.OrderID,
        Seats:             seats,
        UserName:          first.UserName,
        RazorpayOrderID:   claim.RazorpayOrderID,
        RazorpayPaymentID: claim.RazorpayPaymentID,
        AmountPaise:       first.PaymentAmount,
        ExpiresAt:         first.ExpiresAt.UTC().Format(time.RFC3339),
        ConfirmedAt:       time.Now().UTC().Format(time.RFC3339),
    }
    go func() {
        ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        _ = queue.PublishSeatsConfirmed(ctx, ev)
    }()
}
