package database

import (
    "context"
    "fmt"
    "net/url"
    "time"

    _ "github.com/go-sql-driver/mysql"
    "github.com/jmoiron/sqlx"
    _ "github.com/lib/pq"

    "github.com/iliyamo/turf-slot-booking/internal/config"
)

// Open connects to MySQL or PostgreSQL and verifies the connection.
func Open(driver string, cfg config.DBConfig) (*sqlx.DB, error) {
    dsn, err := DSN(driver, cfg)
    if err != nil {
        return nil, err
    }
    db, err := sqlx.Open(driver, dsn)
    if err != nil {
        return nil, err
    }

    // Pool settings
    db.SetMaxOpenConns(25)
    db.SetMaxIdleConns(25)
    db.SetConnMaxLifetime(30 * time.Minute)

    // Ping with timeout
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := db.PingContext(ctx); err != nil {
        db.Close()
        return nil, err
    }
    return db, nil
}

// DSN builds the driver-specific connection string.
func DSN(driver string, cfg config.DBConfig) (string, error) {
    switch driver {
    case "mysql":
        auth := cfg.User
        if cfg.Pass != "" {
            auth = fmt.Sprintf("%s:%s", cfg.User, cfg.Pass)
        }
        // parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
        return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
            auth, cfg.Host, cfg.Port, cfg.Name), nil
    case "postgres":
        u := url.URL{
            Scheme:   "postgres",
            User:     url.UserPassword(cfg.User, cfg.Pass),
            Host:     cfg.Host + ":" + cfg.Port,
            Path:     "/" + cfg.Name,
            RawQuery: "sslmode=disable&timezone=UTC",
        }
        return u.String(), nil
    default:
        return "", fmt.Errorf("database: unsupported driver %q", driver)
    }
}
