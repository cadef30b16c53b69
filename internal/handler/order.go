package handler

import (
    "errors"
    "net/http"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/canteen-seat-booking/internal/model"
    "github.com/iliyamo/canteen-seat-booking/internal/repository"
    "github.com/iliyamo/canteen-seat-booking/internal/service"
)

// OrderHandler exposes the order collaborator the seat subsystem hangs
// off of.  Order creation triggers auto seat blocking as a side effect:
// the block outcome rides along in the response and never fails the
// order itself.
type OrderHandler struct {
    Orders *repository.OrderRepo
    Engine *service.ReservationEngine
}

// NewOrderHandler constructs the handler.  Both dependencies must be non-nil.
func NewOrderHandler(orders *repository.OrderRepo, engine *service.ReservationEngine) *OrderHandler {
    if orders == nil || engine == nil {
        panic("nil dependency passed to NewOrderHandler")
    }
    return &OrderHandler{Orders: orders, Engine: engine}
}

// Create handles POST /v1/orders.  After the order row commits, the
// notes are handed to the auto seat blocking service; its two-phase
// result is attached under "seat_blocking" so a seat conflict shows up
// without aborting the created order.
func (h *OrderHandler) Create(c echo.Context) error {
    var body struct {
        UserID     string `json:"user_id"`
        UserName   string `json:"user_name"`
        Items      string `json:"items"`
        Notes      string `json:"notes"`
        TotalCents int64  `json:"total_cents"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.TotalCents < 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "total must not be negative"})
    }
    order := &model.Order{
        ID:         uuid.NewString(),
        UserID:     body.UserID,
        UserName:   body.UserName,
        Items:      body.Items,
        Notes:      body.Notes,
        TotalCents: body.TotalCents,
        Status:     model.OrderPending,
    }
    ctx := c.Request().Context()
    if err := h.Orders.Create(ctx, order); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create order"})
    }
    // Side effect, not part of the order transaction: a block failure is
    // reported in the result, the order stays created.
    blockResult := h.Engine.BlockSeatsForOrder(ctx, order.ID, order.UserID, order.UserName, order.Notes)
    return c.JSON(http.StatusCreated, echo.Map{
        "order":         order,
        "seat_blocking": blockResult,
    })
}

// Get handles GET /v1/orders/:id.
func (h *OrderHandler) Get(c echo.Context) error {
    id := c.Param("id")
    if id == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "order id is required"})
    }
    order, err := h.Orders.GetByID(c.Request().Context(), id)
    if err != nil {
        if errors.Is(err, repository.ErrOrderNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch order"})
    }
    return c.JSON(http.StatusOK, echo.Map{"order": order})
}

// MarkPaid handles POST /v1/orders/:id/payment.  It verifies the claim
// through the same gateway as the seat endpoints, flips the order to
// paid and marks the order's blocked seats as payment-complete.
func (h *OrderHandler) MarkPaid(c echo.Context) error {
    id := c.Param("id")
    if id == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "order id is required"})
    }
    var claim service.PaymentClaim
    if err := c.Bind(&claim); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    ctx := c.Request().Context()
    if _, err := h.Orders.GetByID(ctx, id); err != nil {
        if errors.Is(err, repository.ErrOrderNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch order"})
    }
    updated, err := h.Engine.UpdateOrderPaymentStatus(ctx, id, claim)
    if err != nil {
        return respondEngineError(c, err)
    }
    if err := h.Orders.UpdateStatus(ctx, id, model.OrderPaid); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update order status"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "message":       "payment recorded",
        "updated_seats": updated,
    })
}
