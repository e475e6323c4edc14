package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
    t.Setenv("APP_PORT", "8080")
    t.Setenv("JWT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
    setRequired(t)
    cfg, err := Load()
    require.NoError(t, err)

    assert.Equal(t, "mysql", cfg.StoreDriver)
    assert.Equal(t, "3306", cfg.DB.Port)
    assert.Equal(t, 300*time.Second, cfg.HoldTTL)
    assert.Equal(t, 6*time.Hour, cfg.CancelLeadTime)
    assert.Equal(t, "secret", cfg.TicketSecret)
    assert.Equal(t, "Asia/Kolkata", cfg.Location().String())
    assert.Equal(t, "booking.exchange", cfg.NotifyExchange)
    assert.Equal(t, 60, cfg.RateLimit.Capacity)
    assert.Equal(t, map[string]bool{"GET": true}, cfg.Cache.MethodSet())
    assert.Equal(t, "localhost:6379", cfg.Redis.Address())
}

func TestLoadOverrides(t *testing.T) {
    setRequired(t)
    t.Setenv("STORE_DRIVER", "Postgres")
    t.Setenv("HOLD_TTL", "90s")
    t.Setenv("DB_HOST", "db.internal")
    t.Setenv("REDIS_HOST", "cache")
    t.Setenv("REDIS_PORT", "6380")
    t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1m")
    t.Setenv("RATE_LIMIT_TTL", "1m")
    t.Setenv("CACHE_METHODS", "get,head")
    t.Setenv("VENUE_TIMEZONE", "UTC")

    cfg, err := Load()
    require.NoError(t, err)
    assert.Equal(t, "postgres", cfg.StoreDriver)
    assert.Equal(t, "5432", cfg.DB.Port)
    assert.Equal(t, "db.internal", cfg.DB.Host)
    assert.Equal(t, 90*time.Second, cfg.HoldTTL)
    assert.Equal(t, "cache:6380", cfg.Redis.Address())
    assert.Equal(t, 5*time.Minute, cfg.RateLimit.TTL, "ttl is at least five refill intervals")
    assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Cache.MethodSet())
}

func TestLoadRejectsBadValues(t *testing.T) {
    setRequired(t)
    t.Setenv("STORE_DRIVER", "sqlite")
    _, err := Load()
    assert.Error(t, err)

    t.Setenv("STORE_DRIVER", "memory")
    t.Setenv("VENUE_TIMEZONE", "Mars/Olympus")
    _, err = Load()
    assert.Error(t, err)
}

func TestLoadRequiresSecret(t *testing.T) {
    t.Setenv("APP_PORT", "8080")
    t.Setenv("JWT_SECRET", "")
    _, err := Load()
    assert.Error(t, err)
}

func TestLoadNotifierNeedsNoSecrets(t *testing.T) {
    t.Setenv("NOTIFY_QUEUE", "owners")
    cfg, err := LoadNotifier()
    require.NoError(t, err)
    assert.Equal(t, "owners", cfg.NotifyQueue)
    assert.Equal(t, "booking.exchange", cfg.NotifyExchange)
    assert.Equal(t, "logs/booking.log", cfg.NotifyLogPath)
}
