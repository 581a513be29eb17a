package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/inkwell/courier/internal/api/handler"
	apimw "github.com/inkwell/courier/internal/api/middleware"
	"github.com/inkwell/courier/internal/repository"
	"github.com/inkwell/courier/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	publisher *service.PublisherService,
	subscriptions *service.SubscriptionService,
	queue repository.QueueRepository,
	subscribers repository.SubscriberRepository,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	nh := handler.NewNewsletterHandler(publisher, logger)
	sh := handler.NewSubscriptionHandler(subscriptions, logger)
	st := handler.NewStatsHandler(queue, subscribers)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Public subscription flow; links in confirmation emails hit these.
	r.Post("/subscriptions", sh.Subscribe)
	r.Get("/subscriptions/confirm", sh.Confirm)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/newsletters", nh.Publish)
		r.Get("/newsletters/{id}", nh.GetByID)

		// JSON queue snapshot
		r.Get("/metrics", st.GetStats)
	})

	return r
}
