package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"service-dispatch/internal/config"
	"service-dispatch/internal/gateway/push"
	"service-dispatch/internal/gateway/routing"
	"service-dispatch/internal/http/handlers"
	"service-dispatch/internal/http/pprofserver"
	"service-dispatch/internal/http/router"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/metrics"
	"service-dispatch/internal/presence"
	"service-dispatch/internal/repository"
	"service-dispatch/internal/service/dispatch"
	"service-dispatch/internal/service/expiry"
	"service-dispatch/internal/service/fanout"
	"service-dispatch/internal/service/tasks"
)

const operationTimeout = 3 * time.Second

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	dbConnect func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error)
	logFatalf func(string, ...interface{})
}

// NewContainerBuilder returns a new dig container builder
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		dbConnect: connectDbWithRetry,
		logFatalf: log.Fatalf,
	}
}

// WithDBConnect sets the database connection function
func (b *ContainerBuilder) WithDBConnect(
	fn func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error),
) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds and returns the API-server container
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

// MustBuildWorker builds and returns the worker container
func (b *ContainerBuilder) MustBuildWorker(ctx context.Context) *dig.Container {
	container, err := b.buildWorker(ctx)
	if err != nil {
		b.logFatalf("failed to build worker container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := b.registerShared(container, ctx); err != nil {
		return nil, err
	}
	if err := registerHTTP(container); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return container, nil
}

func (b *ContainerBuilder) buildWorker(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := b.registerShared(container, ctx); err != nil {
		return nil, err
	}
	if err := registerWorker(container); err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}
	return container, nil
}

func (b *ContainerBuilder) registerShared(container *dig.Container, ctx context.Context) error {
	if err := registerCore(container, ctx); err != nil {
		return fmt.Errorf("core: %w", err)
	}
	if err := registerMetrics(container); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := registerDb(container, b.dbConnect); err != nil {
		return fmt.Errorf("DB: %w", err)
	}
	if err := registerService(container); err != nil {
		return fmt.Errorf("service: %w", err)
	}
	return nil
}

// MustBuildContainer builds the API-server container
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

// MustBuildWorkerContainer builds the worker container
func MustBuildWorkerContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuildWorker(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context) error {
	return provideAll(container,
		func() context.Context { return ctx },
		config.Load,
		NewLogger,
	)
}

func registerMetrics(container *dig.Container) error {
	named := []struct {
		name     string
		provider func() prometheus.Counter
	}{
		{"offers_expired_total", metrics.NewOffersExpiredTotal},
		{"push_fallback_total", metrics.NewPushFallbackTotal},
		{"push_failed_total", metrics.NewPushFailedTotal},
		{"routing_retries_total", metrics.NewRoutingRetriesTotal},
		{"rate_limit_exceeded_total", metrics.NewRateLimitExceededTotal},
	}
	for _, m := range named {
		provider := m.provider
		registered := func() prometheus.Counter { return registerCounter(provider()) }
		if err := container.Provide(registered, dig.Name(m.name)); err != nil {
			return fmt.Errorf("register %s: %w", m.name, err)
		}
	}
	return nil
}

// registerCounter puts the counter on the default registry. Rebuilding the
// container must not panic, so an already registered collector is reused.
func registerCounter(c prometheus.Counter) prometheus.Counter {
	err := prometheus.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
			return existing
		}
	}
	return c
}

func registerDb(
	container *dig.Container,
	dbConnect func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error),
) error {
	providerDB := func(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
		return dbConnect(ctx, cfg.DB.DSN(), 10, time.Second)
	}
	return provideAll(container, providerDB)
}

func registerService(container *dig.Container) error {
	return provideAll(container,
		repository.NewTaskRepo,
		repository.NewCourierRepo,
		repository.NewOfferRepo,
		repository.NewNotificationLogRepo,
		repository.NewGeofenceRepo,
		presence.NewDirectory,
		newRoutingGateway,
		newPushSender,
		newFanout,
		newTaskService,
		newDispatchEngine,
		newExpiryWatcher,
	)
}

type routingIn struct {
	dig.In
	Cfg     *config.Config
	Logger  logx.Logger
	Retries prometheus.Counter `name:"routing_retries_total"`
}

func newRoutingGateway(in routingIn) routing.Gateway {
	var next routing.Gateway
	if in.Cfg.Routing.BaseURL != "" {
		next = routing.NewHTTPGateway(in.Cfg.Routing.BaseURL, in.Cfg.Routing.Timeout)
	} else {
		next = routing.NewStubGateway()
	}
	return routing.NewRetryingGateway(next, in.Logger, in.Retries, routing.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
	})
}

type pushIn struct {
	dig.In
	Cfg       *config.Config
	Logger    logx.Logger
	Fallbacks prometheus.Counter `name:"push_fallback_total"`
	Failures  prometheus.Counter `name:"push_failed_total"`
}

func newPushSender(in pushIn) *push.Sender {
	p := in.Cfg.Push
	// NewHTTPProvider returns a typed nil for an empty URL. Assign through a
	// check so the Sender sees a nil interface, not a non-nil wrapper.
	var primary, secondary push.Provider
	if prov := push.NewHTTPProvider("primary", p.PrimaryURL, p.PrimaryKey, p.Timeout); prov != nil {
		primary = prov
	}
	if prov := push.NewHTTPProvider("secondary", p.SecondaryURL, p.SecondaryKey, p.Timeout); prov != nil {
		secondary = prov
	}
	return push.NewSender(primary, secondary, in.Logger, in.Fallbacks, in.Failures)
}

func newFanout(dir *presence.Directory, sender *push.Sender,
	store *repository.NotificationLogRepo, logger logx.Logger) *fanout.Service {
	return fanout.NewService(fanout.NewStaticSettings(), dir, sender, store, logger)
}

func newTaskService(cfg *config.Config, taskRepo *repository.TaskRepo,
	courierRepo *repository.CourierRepo, offerRepo *repository.OfferRepo,
	gw routing.Gateway, events *fanout.Service, dir *presence.Directory,
	logger logx.Logger) *tasks.Service {

	return tasks.NewService(taskRepo, courierRepo, offerRepo, gw, events, dir,
		cfg.Dispatch.PickupRadiusKM, operationTimeout, logger)
}

func newDispatchEngine(cfg *config.Config, taskRepo *repository.TaskRepo,
	courierRepo *repository.CourierRepo, offerRepo *repository.OfferRepo,
	svc *tasks.Service, geofences *repository.GeofenceRepo, dir *presence.Directory,
	gw routing.Gateway, events *fanout.Service, logger logx.Logger) *dispatch.Engine {

	return dispatch.NewEngine(taskRepo, courierRepo, offerRepo, svc, geofences, dir,
		gw, events, cfg.Dispatch.AcceptWindow, operationTimeout, logger)
}

type expiryIn struct {
	dig.In
	Cfg      *config.Config
	Offers   *repository.OfferRepo
	Couriers *repository.CourierRepo
	Events   *fanout.Service
	Expired  prometheus.Counter `name:"offers_expired_total"`
	Logger   logx.Logger
}

func newExpiryWatcher(in expiryIn) *expiry.Watcher {
	return expiry.NewWatcher(in.Offers, in.Couriers, in.Events, in.Expired,
		in.Cfg.Dispatch.SweepInterval, operationTimeout, in.Logger)
}

// pprofServer is the diagnostics listener, kept distinct from the API server
// so both can live in one container. A zero value means pprof is disabled.
type pprofServer struct{ *http.Server }

func newPprofServer(cfg *config.Config) pprofServer {
	if cfg.Pprof.Port <= 0 {
		return pprofServer{}
	}
	return pprofServer{&http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Pprof.Port),
		Handler:           pprofserver.Handler(pprofserver.Config{User: cfg.Pprof.User, Pass: cfg.Pprof.Pass}),
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

func registerHTTP(container *dig.Container) error {
	serverProvider := func(cfg *config.Config, mux http.Handler) *http.Server {
		return &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	return provideAll(container,
		handlers.New,
		handlers.NewDispatchUsecase,
		handlers.NewTaskUsecase,
		handlers.NewPresencePort,
		handlers.NewLocationStore,
		handlers.NewNotificationStore,
		handlers.NewDispatchHandler,
		handlers.NewTaskHandler,
		handlers.NewCourierHandler,
		newRateLimitClock,
		newRateLimiter,
		newRateLimitMiddleware,
		router.New,
		newPprofServer,
		serverProvider,
	)
}

func registerWorker(container *dig.Container) error {
	return provideAll(container,
		makeOrderHandler,
		newOrderConsumer,
	)
}
