package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"service-dispatch/internal/http/handlers"
	"service-dispatch/internal/http/middleware"
	"service-dispatch/internal/http/middleware/ratelimit"
	"service-dispatch/internal/logx"
)

// New constructs a chi-based http.Handler with base middleware and routes.
// locationLimiter applies only to the high-frequency location stream. The
// request timeout is applied per group because the courier event stream
// keeps its request open for the lifetime of the connection.
func New(logger logx.Logger, base *handlers.Handlers, disp *handlers.DispatchHandler,
	task *handlers.TaskHandler, courier *handlers.CourierHandler,
	locationLimiter *ratelimit.Middleware) http.Handler {

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Observability(logger))
	r.Use(chimw.Recoverer)

	timeout := chimw.Timeout(5 * time.Second)

	r.With(timeout).Get("/ping", base.Ping)
	r.With(timeout).Method(http.MethodHead, "/healthcheck", http.HandlerFunc(base.HealthcheckHead))
	r.With(timeout).Handle("/metrics", promhttp.Handler())

	r.Route("/tasks", func(r chi.Router) {
		r.Use(timeout)
		r.Post("/batch", disp.Batch)
		r.Get("/{id}/candidates", disp.Candidates)
		r.Post("/{id}/assign", disp.Assign)
		r.Post("/{id}/cancel", task.Cancel)
		r.Post("/{id}/pickup/{idx}/start", task.StartPickup)
		r.Post("/{id}/pickup/{idx}/reach", task.ReachPickup)
		r.Post("/{id}/drop/{idx}/start", task.StartDelivery)
		r.Post("/{id}/drop/{idx}/reach", task.ReachDelivery)
	})

	r.Route("/batches", func(r chi.Router) {
		r.Use(timeout)
		r.Post("/{id}/cancel", task.CancelBatch)
		r.Post("/{id}/pickup/start", task.StartBatchPickup)
		r.Post("/{id}/pickup/reach", task.ReachBatchPickup)
		r.Post("/{id}/drop/{idx}/start", task.StartBatchDrop)
		r.Post("/{id}/drop/{idx}/reach", task.ReachBatchDrop)
	})

	r.Route("/offers", func(r chi.Router) {
		r.Use(timeout)
		r.Post("/{id}/accept", disp.AcceptOffer)
		r.Post("/{id}/reject", disp.RejectOffer)
	})

	r.Route("/couriers", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(timeout)
			r.Get("/{id}/offers", disp.PendingOffers)
			r.Get("/{id}/notifications", courier.Notifications)
			r.Post("/{id}/push-token", courier.RegisterPushToken)

			r.Group(func(r chi.Router) {
				if locationLimiter != nil {
					r.Use(locationLimiter.Handler())
				}
				r.Post("/{id}/location", courier.UpdateLocation)
			})
		})

		// long-lived stream, no request timeout
		r.Get("/{id}/events", courier.Events)
	})

	r.NotFound(http.HandlerFunc(base.NotFound))

	return r
}
