package app

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"service-dispatch/internal/config"
	"service-dispatch/internal/http/handlers"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/service/dispatch"
	"service-dispatch/internal/service/expiry"
	"service-dispatch/internal/service/tasks"
	"service-dispatch/internal/transport/kafka"
)

func testConfig() *config.Config {
	return &config.Config{
		Port: 8080,
		DB: config.DB{
			Host: "localhost",
			Port: "5432",
			User: "user",
			Pass: "pass",
			Name: "db",
		},
		Dispatch: config.Dispatch{
			AcceptWindow:   time.Minute,
			PickupRadiusKM: 0.5,
			SweepInterval:  5 * time.Second,
		},
	}
}

func setupTestContainer(t *testing.T) *dig.Container {
	t.Helper()

	c := dig.New()

	providers := []struct {
		name     string
		provider any
	}{
		{"context", func() context.Context { return context.Background() }},
		{"logger", func() logx.Logger { return logx.Nop() }},
		{"config", testConfig},
		{"pgxpool", func() *pgxpool.Pool { return &pgxpool.Pool{} }},
	}

	for _, p := range providers {
		err := c.Provide(p.provider)
		require.NoErrorf(t, err, "provide %s", p.name)
	}

	require.NoError(t, registerMetrics(c))
	require.NoError(t, registerService(c))

	return c
}

func verifyServer(t *testing.T, srv *http.Server) {
	t.Helper()

	require.NotNil(t, srv, "http.Server is nil")
	require.Equal(t, ":8080", srv.Addr)
	require.Greater(t, srv.ReadHeaderTimeout, time.Duration(0))
	require.Greater(t, srv.ReadTimeout, time.Duration(0))
	require.Greater(t, srv.WriteTimeout, time.Duration(0))
	require.Greater(t, srv.IdleTimeout, time.Duration(0))
}

func TestRegisterServiceAndHTTP_ProvidesHttpServerAndHandlers(t *testing.T) {
	t.Parallel()

	c := setupTestContainer(t)
	require.NoError(t, registerHTTP(c))

	err := c.Invoke(func(
		srv *http.Server,
		base *handlers.Handlers,
		dispatchHandler *handlers.DispatchHandler,
		taskHandler *handlers.TaskHandler,
		courierHandler *handlers.CourierHandler,
		engine *dispatch.Engine,
		taskService *tasks.Service,
	) {
		verifyServer(t, srv)
		require.NotNil(t, base)
		require.NotNil(t, dispatchHandler)
		require.NotNil(t, taskHandler)
		require.NotNil(t, courierHandler)
		require.NotNil(t, engine)
		require.NotNil(t, taskService)
	})
	require.NoError(t, err)
}

func TestRegisterHTTP_PprofDisabledWithoutPort(t *testing.T) {
	t.Parallel()

	c := setupTestContainer(t)
	require.NoError(t, registerHTTP(c))

	err := c.Invoke(func(pprof pprofServer) {
		require.Nil(t, pprof.Server)
	})
	require.NoError(t, err)
}

func TestRegisterWorker_ProvidesWatcherAndNilConsumer(t *testing.T) {
	t.Parallel()

	c := setupTestContainer(t)
	require.NoError(t, registerWorker(c))

	err := c.Invoke(func(watcher *expiry.Watcher, consumer *kafka.Consumer) {
		require.NotNil(t, watcher)
		// testConfig carries no brokers, the consumer degrades to a no-op.
		require.Nil(t, consumer)
	})
	require.NoError(t, err)
}

func TestRegisterMetrics_ProvidesNamedCounters(t *testing.T) {
	t.Parallel()

	c := dig.New()
	require.NoError(t, registerMetrics(c))

	type countersIn struct {
		dig.In
		Expired   prometheus.Counter `name:"offers_expired_total"`
		Fallbacks prometheus.Counter `name:"push_fallback_total"`
		Failures  prometheus.Counter `name:"push_failed_total"`
		Retries   prometheus.Counter `name:"routing_retries_total"`
		Limited   prometheus.Counter `name:"rate_limit_exceeded_total"`
	}

	err := c.Invoke(func(in countersIn) {
		require.NotNil(t, in.Expired)
		require.NotNil(t, in.Fallbacks)
		require.NotNil(t, in.Failures)
		require.NotNil(t, in.Retries)
		require.NotNil(t, in.Limited)
	})
	require.NoError(t, err)
}

func TestRegisterMetrics_RebuildReusesCollectors(t *testing.T) {
	t.Parallel()

	for i := 0; i < 2; i++ {
		c := dig.New()
		require.NoError(t, registerMetrics(c))

		type countersIn struct {
			dig.In
			Expired prometheus.Counter `name:"offers_expired_total"`
		}
		require.NoError(t, c.Invoke(func(in countersIn) {
			require.NotNil(t, in.Expired)
		}))
	}
}

func TestProvideAll_Success(t *testing.T) {
	t.Parallel()

	c := dig.New()

	err := provideAll(c,
		func() context.Context { return context.Background() },
		func() time.Duration { return 3 * time.Second },
	)
	require.NoError(t, err)

	err = c.Invoke(func(ctx context.Context, d time.Duration) {
		require.NotNil(t, ctx)
		require.Equal(t, 3*time.Second, d)
	})
	require.NoError(t, err)
}

func TestProvideAll_InvalidProvider(t *testing.T) {
	t.Parallel()

	c := dig.New()

	type bad struct{}
	err := provideAll(c, bad{})
	require.Error(t, err)
}

func TestRegisterDb_UsesDbConnectAndProvidesPool(t *testing.T) {
	t.Parallel()

	c := dig.New()
	ctx := context.Background()
	cfg := testConfig()

	require.NoError(t, c.Provide(func() context.Context { return ctx }))
	require.NoError(t, c.Provide(func() *config.Config { return cfg }))

	stubPool := &pgxpool.Pool{}

	stubConnect := func(
		gotCtx context.Context,
		dsn string,
		retries int,
		delay time.Duration,
	) (*pgxpool.Pool, error) {
		require.Equal(t, ctx, gotCtx)
		require.Equal(t, cfg.DB.DSN(), dsn)
		require.Equal(t, 10, retries)
		require.Equal(t, time.Second, delay)
		return stubPool, nil
	}

	err := registerDb(c, stubConnect)
	require.NoError(t, err)

	err = c.Invoke(func(pool *pgxpool.Pool) {
		require.Equal(t, stubPool, pool)
	})
	require.NoError(t, err)
}

func TestContainerBuilder_Defaults(t *testing.T) {
	t.Parallel()

	b := NewContainerBuilder()
	require.NotNil(t, b.dbConnect)
	require.NotNil(t, b.logFatalf)

	b.WithDBConnect(nil).WithLogFatalf(nil)
	require.NotNil(t, b.dbConnect)
	require.NotNil(t, b.logFatalf)
}

func TestNewRateLimiter_DisabledYieldsNop(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RateLimit.Enabled = false

	limiter := newRateLimiter(cfg, newRateLimitClock())
	require.True(t, limiter.Allow("any"))
	require.True(t, limiter.Allow("any"))
}

func TestNewRateLimiter_EnabledBounds(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RateLimit = config.RateLimit{
		Enabled:    true,
		Rate:       1,
		Burst:      1,
		TTL:        time.Minute,
		MaxBuckets: 10,
	}

	limiter := newRateLimiter(cfg, newRateLimitClock())
	require.True(t, limiter.Allow("ip"))
	require.False(t, limiter.Allow("ip"))
}
