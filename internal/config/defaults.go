package config

import "time"

func defaults() *Config {
	return &Config{
		Port: 8080,
		DB: DB{
			Host: "127.0.0.1",
			Port: "5432",
			User: "dispatch",
			Pass: "dispatch",
			Name: "dispatch_db",
		},
		Kafka: Kafka{
			Topic:   "orders.confirmed",
			GroupID: "service-dispatch",
		},
		Dispatch: Dispatch{
			AcceptWindow:   60 * time.Second,
			PickupRadiusKM: 0.5,
			SweepInterval:  5 * time.Second,
		},
		Routing: Routing{
			Timeout: 2 * time.Second,
		},
		Push: Push{
			Timeout: 3 * time.Second,
		},
		RateLimit: RateLimit{
			Enabled:    true,
			Rate:       5,
			Burst:      10,
			TTL:        10 * time.Minute,
			MaxBuckets: 100000,
		},
		Pprof: Pprof{
			Port: 6060,
		},
	}
}
