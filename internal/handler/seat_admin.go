package handler

import (
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/canteen-seat-booking/internal/repository"
    "github.com/iliyamo/canteen-seat-booking/internal/service"
)

// SeatAdminHandler exposes the dashboard endpoints.  Routes using it are
// registered behind JWT authentication with the ADMIN role.
type SeatAdminHandler struct {
    Repo   *repository.SeatBookingRepo
    Engine *service.ReservationEngine
}

// NewSeatAdminHandler constructs the admin handler.
func NewSeatAdminHandler(repo *repository.SeatBookingRepo, engine *service.ReservationEngine) *SeatAdminHandler {
    if repo == nil || engine == nil {
        panic("nil dependency passed to NewSeatAdminHandler")
    }
    return &SeatAdminHandler{Repo: repo, Engine: engine}
}

// All handles GET /v1/seats/admin/all.  Supports paging via ?page and
// ?limit and the status filters the dashboard offers: payment-verified,
// pending-payment, cash-bookings, temporary, or a raw status value.
func (h *SeatAdminHandler) All(c echo.Context) error {
    page, _ := strconv.Atoi(c.QueryParam("page"))
    if page < 1 {
        page = 1
    }
    limit, _ := strconv.Atoi(c.QueryParam("limit"))
    if limit < 1 || limit > 100 {
        limit = 20
    }
    var f repository.AdminFilter
    switch status := c.QueryParam("status"); status {
    case "payment-verified":
        f.PaymentVerified = true
    case "pending-payment", "cash-bookings":
        f.PendingPayment = true
    case "temporary":
        f.Temporary = true
    default:
        f.Status = status
    }
    bookings, total, err := h.Repo.ListAdmin(c.Request().Context(), f, limit, (page-1)*limit)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to get bookings"})
    }
    totalPages := total / int64(limit)
    if total%int64(limit) != 0 {
        totalPages++
    }
    return c.JSON(http.StatusOK, echo.Map{
        "bookings": bookings,
        "pagination": echo.Map{
            "current_page":   page,
            "total_pages":    totalPages,
            "total_items":    total,
            "items_per_page": limit,
        },
    })
}

// Stats handles GET /v1/seats/admin/stats and returns the counters for
// the dashboard, including payment verification and temporary
// reservation breakdowns.
func (h *SeatAdminHandler) Stats(c echo.Context) error {
    stats, err := h.Repo.Stats(c.Request().Context(), time.Now())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to get booking statistics"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "stats":     stats,
        "timestamp": time.Now().UTC().Format(time.RFC3339),
    })
}

// ForceExpire handles POST /v1/seats/admin/expire/:orderId.  It expires
// the order's active bookings right away, same as a cancellation but
// under the admin's authority.
func (h *SeatAdminHandler) ForceExpire(c echo.Context) error {
    orderID := c.Param("orderId")
    if orderID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "order id is required"})
    }
    count, err := h.Engine.Cancel(c.Request().Context(), orderID)
    if err != nil {
        return respondEngineError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "message":       "bookings expired successfully",
        "expired_count": count,
    })
}
