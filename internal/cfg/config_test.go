package cfg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("CACHE_TTL", "")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", c.HTTPPort)
	assert.Equal(t, "9091", c.GRPCPort)
	assert.Equal(t, "postgres", c.DBDriver)
	assert.Equal(t, time.Minute, c.CacheTTL)
	assert.Nil(t, c.KafkaBrokers)
	assert.Equal(t, int64(1<<20), c.MaxBodyBytes)
	assert.Equal(t, "permissive", c.CancelPolicy)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("RATE_LIMIT_REQUESTS", "5")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("SHUTDOWN_GRACE_PERIOD", "not-a-duration")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
	assert.Equal(t, 5, c.RateLimitRequests)
	assert.Equal(t, 30*time.Second, c.RateLimitWindow)
	assert.Equal(t, 10*time.Second, c.ShutdownGracePeriod)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("DB_DRIVER", "mysql")
	_, err = Load()
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	c := Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "m"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=m sslmode=disable", c.PostgresDSN())
}
