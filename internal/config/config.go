// Package config loads application configuration from environment variables.
package config

import (
    "log"
    "os"
    "strconv"
    "time"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Required values are enforced by must();
// missing ones abort startup with a fatal log message.
type Config struct {
    Env               string        // application environment (e.g. "dev", "prod")
    Port              string        // HTTP port to listen on
    DBUser            string        // database username
    DBPass            string        // database password (optional)
    DBHost            string        // database host address
    DBPort            string        // database port number
    DBName            string        // database name
    MigrationsDir     string        // directory holding SQL migration files
    JWTSecret         string        // secret verifying admin bearer tokens
    RazorpayKeyID     string        // payment provider API key id
    RazorpayKeySecret string        // payment provider key secret, also verifies checkout HMACs
    SweepInterval     time.Duration // cadence of the background hold sweeper
}

// Load reads configuration values from environment variables and returns
// a Config.
func Load() Config {
    return Config{
        Env:               must("APP_ENV"),
        Port:              must("APP_PORT"),
        DBUser:            must("DB_USER"),
        DBPass:            os.Getenv("DB_PASS"), // empty allowed
        DBHost:            must("DB_HOST"),
        DBPort:            must("DB_PORT"),
        DBName:            must("DB_NAME"),
        MigrationsDir:     envStr("MIGRATIONS_DIR", "migrations"),
        JWTSecret:         must("JWT_SECRET"),
        RazorpayKeyID:     must("RAZORPAY_KEY_ID"),
        RazorpayKeySecret: must("RAZORPAY_KEY_SECRET"),
        SweepInterval:     envDur("SEAT_SWEEP_INTERVAL", time.Minute),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    switch os.Getenv(k) {
    case "1", "true", "TRUE", "True", "yes", "on":
        return true
    case "0", "false", "FALSE", "False", "no", "off":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    if v := os.Getenv(k); v != "" {
        if n, err := strconv.Atoi(v); err == nil {
            return n
        }
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    if v := os.Getenv(k); v != "" {
        if dur, err := time.ParseDuration(v); err == nil {
            return dur
        }
    }
    return d
}
