package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 60*time.Second, cfg.Dispatch.AcceptWindow)
	require.Equal(t, 0.5, cfg.Dispatch.PickupRadiusKM)
	require.Equal(t, "orders.confirmed", cfg.Kafka.Topic)
	require.Empty(t, cfg.Kafka.Brokers)
}

func TestDSN(t *testing.T) {
	db := DB{Host: "h", Port: "5432", User: "u", Pass: "p", Name: "n"}
	require.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", db.DSN())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("DISPATCH_ACCEPT_WINDOW", "90s")
	t.Setenv("DISPATCH_PICKUP_RADIUS_KM", "1.5")

	cfg := defaults()
	cfg.DB.Host = envStr("DB_HOST", cfg.DB.Host)
	cfg.Kafka.Brokers = splitList(envStr("KAFKA_BROKERS", ""))
	cfg.Dispatch.AcceptWindow = envDuration("DISPATCH_ACCEPT_WINDOW", cfg.Dispatch.AcceptWindow)
	cfg.Dispatch.PickupRadiusKM = envFloat("DISPATCH_PICKUP_RADIUS_KM", cfg.Dispatch.PickupRadiusKM)

	require.Equal(t, "db.internal", cfg.DB.Host)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, 90*time.Second, cfg.Dispatch.AcceptWindow)
	require.Equal(t, 1.5, cfg.Dispatch.PickupRadiusKM)
}

func TestEnvHelpers_BadValuesFallBack(t *testing.T) {
	t.Setenv("X_INT", "not-a-number")
	t.Setenv("X_DUR", "not-a-duration")
	t.Setenv("X_FLOAT", "nope")

	require.Equal(t, 7, envInt("X_INT", 7))
	require.Equal(t, time.Minute, envDuration("X_DUR", time.Minute))
	require.Equal(t, 0.5, envFloat("X_FLOAT", 0.5))
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	require.NoError(t, cfg.validate())

	bad := defaults()
	bad.Port = -1
	require.Error(t, bad.validate())

	bad = defaults()
	bad.Dispatch.AcceptWindow = 0
	require.Error(t, bad.validate())

	bad = defaults()
	bad.Dispatch.PickupRadiusKM = 0
	require.Error(t, bad.validate())
}
