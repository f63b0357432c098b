package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// DB stores database connection settings.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN builds a pgx connection string.
func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User, d.Pass, d.Host, d.Port, d.Name)
}

// Kafka stores order-event consumer settings. Empty brokers disable the consumer.
type Kafka struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Dispatch stores allocation-policy settings.
type Dispatch struct {
	// AcceptWindow is how long a courier has to accept an offer before the
	// expiry watcher auto-rejects it.
	AcceptWindow time.Duration
	// PickupRadiusKM bounds how far from the pickup point a courier may be
	// when completing the stop.
	PickupRadiusKM float64
	// SweepInterval is how often expired offers are swept.
	SweepInterval time.Duration
}

// Routing stores distance-service client settings. Empty BaseURL selects the
// deterministic stub.
type Routing struct {
	BaseURL string
	Timeout time.Duration
}

// Push stores push-provider endpoints. Empty URLs disable the provider.
type Push struct {
	PrimaryURL   string
	PrimaryKey   string
	SecondaryURL string
	SecondaryKey string
	Timeout      time.Duration
}

// RateLimit stores per-client limiter settings for the location stream.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	TTL        time.Duration
	MaxBuckets int
}

// Pprof stores pprof server credentials.
type Pprof struct {
	Port int
	User string
	Pass string
}

// Config stores all service settings.
type Config struct {
	Port      int
	DB        DB
	Kafka     Kafka
	Dispatch  Dispatch
	Routing   Routing
	Push      Push
	RateLimit RateLimit
	Pprof     Pprof
}

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := defaults()

	cfg.Port = envInt("PORT", cfg.Port)
	cfg.DB.Host = envStr("DB_HOST", cfg.DB.Host)
	cfg.DB.Port = envStr("DB_PORT", cfg.DB.Port)
	cfg.DB.User = envStr("DB_USER", cfg.DB.User)
	cfg.DB.Pass = envStr("DB_PASS", cfg.DB.Pass)
	cfg.DB.Name = envStr("DB_NAME", cfg.DB.Name)

	if v := envStr("KAFKA_BROKERS", ""); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	cfg.Kafka.Topic = envStr("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Kafka.GroupID = envStr("KAFKA_GROUP_ID", cfg.Kafka.GroupID)

	cfg.Dispatch.AcceptWindow = envDuration("DISPATCH_ACCEPT_WINDOW", cfg.Dispatch.AcceptWindow)
	cfg.Dispatch.PickupRadiusKM = envFloat("DISPATCH_PICKUP_RADIUS_KM", cfg.Dispatch.PickupRadiusKM)
	cfg.Dispatch.SweepInterval = envDuration("DISPATCH_SWEEP_INTERVAL", cfg.Dispatch.SweepInterval)

	cfg.Routing.BaseURL = envStr("ROUTING_BASE_URL", cfg.Routing.BaseURL)
	cfg.Routing.Timeout = envDuration("ROUTING_TIMEOUT", cfg.Routing.Timeout)

	cfg.Push.PrimaryURL = envStr("PUSH_PRIMARY_URL", cfg.Push.PrimaryURL)
	cfg.Push.PrimaryKey = envStr("PUSH_PRIMARY_KEY", cfg.Push.PrimaryKey)
	cfg.Push.SecondaryURL = envStr("PUSH_SECONDARY_URL", cfg.Push.SecondaryURL)
	cfg.Push.SecondaryKey = envStr("PUSH_SECONDARY_KEY", cfg.Push.SecondaryKey)
	cfg.Push.Timeout = envDuration("PUSH_TIMEOUT", cfg.Push.Timeout)

	if v := envStr("RATE_LIMIT_ENABLED", ""); v != "" {
		cfg.RateLimit.Enabled = v == "true" || v == "1"
	}
	cfg.RateLimit.Rate = envFloat("RATE_LIMIT_RATE", cfg.RateLimit.Rate)
	cfg.RateLimit.Burst = envInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst)
	cfg.RateLimit.TTL = envDuration("RATE_LIMIT_TTL", cfg.RateLimit.TTL)
	cfg.RateLimit.MaxBuckets = envInt("RATE_LIMIT_MAX_BUCKETS", cfg.RateLimit.MaxBuckets)

	cfg.Pprof.Port = envInt("PPROF_PORT", cfg.Pprof.Port)
	cfg.Pprof.User = envStr("PPROF_USER", cfg.Pprof.User)
	cfg.Pprof.Pass = envStr("PPROF_PASS", cfg.Pprof.Pass)

	pflag.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	pflag.Parse()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Dispatch.AcceptWindow <= 0 {
		return fmt.Errorf("invalid accept window: %s", c.Dispatch.AcceptWindow)
	}
	if c.Dispatch.PickupRadiusKM <= 0 {
		return fmt.Errorf("invalid pickup radius: %f", c.Dispatch.PickupRadiusKM)
	}
	return nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
