package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return v
}

func TestDefaults(t *testing.T) {
	cfg := fromViper(newTestViper())

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, NotifyDriverLog, cfg.Notifications.Driver)
	assert.Equal(t, 5, cfg.Notifications.MaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.History.CacheTTL)
	assert.Equal(t, time.Hour, cfg.Delivery.SignedURLTTL)
	assert.False(t, cfg.Stream.Enabled)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLITE3")
	t.Setenv("SQLITE_PATH", ":memory:")
	t.Setenv("NOTIFY_DRIVER", "kafka")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("HISTORY_CACHE_TTL", "not-a-duration")
	t.Setenv("DELIVERY_BASE_URL", "https://exchange.example.org/api/v1/")

	cfg := fromViper(newTestViper())

	require.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, ":memory:", cfg.Database.SQLitePath)
	assert.Equal(t, NotifyDriverKafka, cfg.Notifications.Driver)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Notifications.KafkaBrokers)
	assert.Equal(t, 5*time.Minute, cfg.History.CacheTTL)
	assert.Equal(t, "https://exchange.example.org/api/v1", cfg.Delivery.BaseURL)
}
