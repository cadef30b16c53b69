// Command migrate applies or rolls back the database schema outside of
// server startup, for deployments that migrate as a separate step.
package main

import (
    "errors"
    "flag"
    "log"

    "github.com/golang-migrate/migrate/v4"
    migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
    _ "github.com/golang-migrate/migrate/v4/source/file"
    "github.com/joho/godotenv"

    "github.com/iliyamo/canteen-seat-booking/internal/config"
    "github.com/iliyamo/canteen-seat-booking/internal/database"
)

func main() {
    var (
        down  = flag.Bool("down", false, "roll back one migration instead of applying all")
        steps = flag.Int("steps", 0, "apply exactly n migrations (negative rolls back)")
    )
    flag.Parse()

    _ = godotenv.Load()
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    driver, err := migratemysql.WithInstance(db, &migratemysql.Config{})
    if err != nil {
        log.Fatalf("migrate driver: %v", err)
    }
    m, err := migrate.NewWithDatabaseInstance("file://"+cfg.MigrationsDir, "mysql", driver)
    if err != nil {
        log.Fatalf("migrate init: %v", err)
    }

    switch {
    case *steps != 0:
        err = m.Steps(*steps)
    case *down:
        err = m.Steps(-1)
    default:
        err = m.Up()
    }
    if err != nil && !errors.Is(err, migrate.ErrNoChange) {
        log.Fatalf("migrate: %v", err)
    }

    version, dirty, verr := m.Version()
    if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
        log.Fatalf("version: %v", verr)
    }
    log.Printf("schema at version %d (dirty=%v)", version, dirty)
}
