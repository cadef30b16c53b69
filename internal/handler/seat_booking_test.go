package handler

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/canteen-seat-booking/internal/payment"
    "github.com/iliyamo/canteen-seat-booking/internal/repository"
    "github.com/iliyamo/canteen-seat-booking/internal/service"
)

// stubGateway approves every claim against a fixed captured payment.
type stubGateway struct{ valid bool }

func (s stubGateway) VerifySignature(orderID, paymentID, signature string) bool { return s.valid }

func (s stubGateway) FetchPayment(ctx context.Context, paymentID string) (*payment.Payment, error) {
    return &payment.Payment{
        ID: paymentID, Status: payment.StatusCaptured,
        OrderID: "order_rzp_1", Amount: 15000, Currency: "INR",
    }, nil
}

func newTestHandler(valid bool) *SeatBookingHandler {
    engine := service.NewReservationEngine(repository.NewMemoryStore(), stubGateway{valid: valid})
    return NewSeatBookingHandler(engine)
}

func doJSON(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
    req := httptest.NewRequest(method, target, strings.NewReader(body))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    rec := httptest.NewRecorder()
    return e.NewContext(req, rec), rec
}

func TestStatusEndpoint(t *testing.T) {
    e := echo.New()
    h := newTestHandler(true)

    c, rec := doJSON(e, http.MethodGet, "/v1/seats/status", "")
    require.NoError(t, h.Status(c))
    assert.Equal(t, http.StatusOK, rec.Code)

    var board service.SeatBoard
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
    assert.Equal(t, 100, board.TotalSeats)
    assert.Equal(t, 100, board.AvailableSeats)
    assert.Len(t, board.Seats, 100)
}

func TestBookCashEndpoint(t *testing.T) {
    e := echo.New()
    h := newTestHandler(true)

    body := `{"seats":[12,13],"order_id":"ord-1","user_name":"Asha"}`
    c, rec := doJSON(e, http.MethodPost, "/v1/seats/book-cash", body)
    require.NoError(t, h.BookCash(c))
    require.Equal(t, http.StatusCreated, rec.Code)

    var resp map[string]any
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
    assert.Equal(t, false, resp["payment_verified"])
    assert.Equal(t, "pending", resp["payment_status"])

    // A second cash booking for an overlapping seat conflicts.
    c, rec = doJSON(e, http.MethodPost, "/v1/seats/book-cash", `{"seats":[13,14],"order_id":"ord-2"}`)
    require.NoError(t, h.BookCash(c))
    require.Equal(t, http.StatusConflict, rec.Code)

    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
    assert.Equal(t, "SEATS_TAKEN", resp["error_code"])
    assert.Equal(t, []any{float64(13)}, resp["unavailable_seats"])
}

func TestBookAfterPaymentEndpoint(t *testing.T) {
    e := echo.New()

    t.Run("verified claim books seats", func(t *testing.T) {
        h := newTestHandler(true)
        body := `{"seats":[1],"order_id":"ord-1","razorpay_order_id":"order_rzp_1",` +
            `"razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`
        c, rec := doJSON(e, http.MethodPost, "/v1/seats/book-after-payment", body)
        require.NoError(t, h.BookAfterPayment(c))
        assert.Equal(t, http.StatusCreated, rec.Code)

        var resp map[string]any
        require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
        assert.Equal(t, true, resp["payment_verified"])
    })

    t.Run("invalid signature is rejected", func(t *testing.T) {
        h := newTestHandler(false)
        body := `{"seats":[1],"order_id":"ord-1","razorpay_order_id":"order_rzp_1",` +
            `"razorpay_payment_id":"pay_1","razorpay_signature":"forged"}`
        c, rec := doJSON(e, http.MethodPost, "/v1/seats/book-after-payment", body)
        require.NoError(t, h.BookAfterPayment(c))
        assert.Equal(t, http.StatusBadRequest, rec.Code)
    })

    t.Run("missing claim fields are rejected", func(t *testing.T) {
        h := newTestHandler(true)
        c, rec := doJSON(e, http.MethodPost, "/v1/seats/book-after-payment",
            `{"seats":[1],"order_id":"ord-1"}`)
        require.NoError(t, h.BookAfterPayment(c))
        assert.Equal(t, http.StatusBadRequest, rec.Code)
    })
}

func TestConfirmReservationsEndpoint(t *testing.T) {
    e := echo.New()
    h := newTestHandler(true)

    // No temporary reservations exist for the order.
    body := `{"order_id":"ord-404","razorpay_order_id":"order_rzp_1",` +
        `"razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`
    c, rec := doJSON(e, http.MethodPost, "/v1/seats/confirm-reservations", body)
    require.NoError(t, h.ConfirmReservations(c))
    assert.Equal(t, http.StatusNotFound, rec.Code)

    // Reserve then confirm.
    c, rec = doJSON(e, http.MethodPost, "/v1/seats/reserve-temp",
        `{"seats":[21,22],"order_id":"ord-1"}`)
    require.NoError(t, h.ReserveTemp(c))
    require.Equal(t, http.StatusCreated, rec.Code)

    body = `{"order_id":"ord-1","razorpay_order_id":"order_rzp_1",` +
        `"razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`
    c, rec = doJSON(e, http.MethodPost, "/v1/seats/confirm-reservations", body)
    require.NoError(t, h.ConfirmReservations(c))
    require.Equal(t, http.StatusOK, rec.Code)

    var resp map[string]any
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
    assert.Equal(t, float64(2), resp["confirmed_count"])
}

func TestCancelEndpoint(t *testing.T) {
    e := echo.New()
    h := newTestHandler(true)

    c, rec := doJSON(e, http.MethodDelete, "/v1/seats/cancel/ord-404", "")
    c.SetParamNames("orderId")
    c.SetParamValues("ord-404")
    require.NoError(t, h.Cancel(c))
    assert.Equal(t, http.StatusNotFound, rec.Code)

    c, _ = doJSON(e, http.MethodPost, "/v1/seats/book-cash",
        `{"seats":[33],"order_id":"ord-1"}`)
    require.NoError(t, h.BookCash(c))

    c, rec = doJSON(e, http.MethodDelete, "/v1/seats/cancel/ord-1", "")
    c.SetParamNames("orderId")
    c.SetParamValues("ord-1")
    require.NoError(t, h.Cancel(c))
    require.Equal(t, http.StatusOK, rec.Code)

    var resp map[string]any
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
    assert.Equal(t, float64(1), resp["cancelled_count"])
}

func TestGetByOrderEndpoint(t *testing.T) {
    e := echo.New()
    h := newTestHandler(true)

    c, _ := doJSON(e, http.MethodPost, "/v1/seats/book-cash",
        `{"seats":[44,45],"order_id":"ord-1"}`)
    require.NoError(t, h.BookCash(c))

    c, rec := doJSON(e, http.MethodGet, "/v1/seats/order/ord-1", "")
    c.SetParamNames("orderId")
    c.SetParamValues("ord-1")
    require.NoError(t, h.GetByOrder(c))
    require.Equal(t, http.StatusOK, rec.Code)

    var resp map[string]any
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
    assert.Equal(t, float64(2), resp["total_seats"])
    assert.Equal(t, "active", resp["status"])
}
