package main

import (
    "context"
    "log"
    "os/signal"
    "syscall"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/canteen-seat-booking/internal/config"
    "github.com/iliyamo/canteen-seat-booking/internal/database"
    "github.com/iliyamo/canteen-seat-booking/internal/handler"
    "github.com/iliyamo/canteen-seat-booking/internal/middleware"
    "github.com/iliyamo/canteen-seat-booking/internal/payment"
    "github.com/iliyamo/canteen-seat-booking/internal/queue"
    "github.com/iliyamo/canteen-seat-booking/internal/repository"
    "github.com/iliyamo/canteen-seat-booking/internal/router"
    "github.com/iliyamo/canteen-seat-booking/internal/service"
)

func main() {
    // .env is optional; real deployments set the environment directly.
    _ = godotenv.Load()
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()
    if err := database.Migrate(db, cfg.MigrationsDir); err != nil {
        log.Fatalf("migrations: %v", err)
    }

    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Println("redis unavailable, rate limiting and board cache disabled")
    }

    gateway := payment.NewRazorpayClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
    seatRepo := repository.NewSeatBookingRepo(db)
    orderRepo := repository.NewOrderRepo(db)
    engine := service.NewReservationEngine(seatRepo, gateway)

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    sweeper := service.NewSweeper(engine, cfg.SweepInterval)
    go sweeper.Run(ctx)

    go func() {
        if err := queue.StartSeatsConsumer(); err != nil {
            log.Printf("seats consumer stopped: %v", err)
        }
    }()

    e := echo.New()
    e.HideBanner = true
    e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
    cacheware := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

    router.RegisterRoutes(e)
    router.RegisterSeats(e, handler.NewSeatBookingHandler(engine),
        handler.NewSeatAdminHandler(seatRepo, engine), cfg.JWTSecret, cacheware)
    router.RegisterOrders(e, handler.NewOrderHandler(orderRepo, engine))

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)

    go func() {
        <-ctx.Done()
        if err := e.Shutdown(context.Background()); err != nil {
            log.Printf("shutdown: %v", err)
        }
    }()
    if err := e.Start(addr); err != nil {
        log.Printf("server stopped: %v", err)
    }
}
