// Package router defines how HTTP routes are registered for the API.
package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/canteen-seat-booking/internal/handler"
    "github.com/iliyamo/canteen-seat-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
}

// RegisterSeats registers the seat reservation API.  The public group
// carries the booking and status endpoints; cacheware, when non-nil, is
// applied to the two read-heavy board endpoints only, so booking
// responses are never served stale.  Admin endpoints live under
// /v1/seats/admin behind JWT authentication with the ADMIN role.
func RegisterSeats(e *echo.Echo, h *handler.SeatBookingHandler, a *handler.SeatAdminHandler, jwtSecret string, cacheware echo.MiddlewareFunc) {
    g := e.Group("/v1/seats")

    if cacheware != nil {
        g.GET("/status", h.Status, cacheware)
        g.GET("/protection-status", h.ProtectionStatus, cacheware)
    } else {
        g.GET("/status", h.Status)
        g.GET("/protection-status", h.ProtectionStatus)
    }
    g.GET("/available", h.Available)
    g.POST("/book-after-payment", h.BookAfterPayment)
    g.POST("/book-cash", h.BookCash)
    g.POST("/reserve-temp", h.ReserveTemp)
    g.POST("/confirm-reservations", h.ConfirmReservations)
    g.DELETE("/cancel/:orderId", h.Cancel)
    g.PATCH("/extend/:orderId", h.Extend)
    g.GET("/order/:orderId", h.GetByOrder)
    g.GET("/payment-status/:orderId", h.PaymentStatus)

    admin := g.Group("/admin")
    admin.Use(middleware.JWTAuth(jwtSecret))
    admin.Use(middleware.RequireRole("ADMIN"))
    admin.GET("/all", a.All)
    admin.GET("/stats", a.Stats)
    admin.POST("/expire/:orderId", a.ForceExpire)
}

// RegisterOrders registers the order collaborator endpoints.  Creating
// an order triggers auto seat blocking as a non-fatal side effect.
func RegisterOrders(e *echo.Echo, o *handler.OrderHandler) {
    g := e.Group("/v1/orders")
    g.POST("", o.Create)
    g.GET("/:id", o.Get)
    g.POST("/:id/payment", o.MarkPaid)
}
