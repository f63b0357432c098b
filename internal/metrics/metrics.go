package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewOffersExpiredTotal returns a Prometheus counter for offers auto-rejected by the expiry watcher
func NewOffersExpiredTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_expired_total",
		Help: "Total number of assignment offers auto-rejected on expiry",
	})
}

// NewPushFallbackTotal returns a Prometheus counter for deliveries that fell back to the secondary push provider
func NewPushFallbackTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "push_fallback_total",
		Help: "Total number of push deliveries retried on the secondary provider",
	})
}

// NewPushFailedTotal returns a Prometheus counter for deliveries where every provider failed
func NewPushFailedTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "push_failed_total",
		Help: "Total number of push deliveries where all providers failed",
	})
}

// NewRoutingRetriesTotal returns a Prometheus counter for the number of retry attempts performed by the routing gateway
func NewRoutingRetriesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "routing_retries_total",
		Help: "Total number of retry attempts performed by the routing gateway",
	})
}

// NewRateLimitExceededTotal returns a Prometheus counter for the number of rejected HTTP requests due to rate limiting
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total number of rejected HTTP requests due to rate limiting",
	})
}
