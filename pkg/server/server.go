// pkg/server/server.go

// Package server exposes the borg gauges over HTTP. Every scrape of the
// metrics path triggers a collection pass unless the minimum scrape interval
// has not elapsed or the circuit breaker is open, in which case the values
// of the last pass are served.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/metrics"
	cerr "github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options configures a Server.
type Options struct {
	ListenAddress string
	MetricsPath   string
	// MinInterval is the minimum time between two collection passes. Zero
	// collects on every scrape.
	MinInterval     time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Server serves /metrics, /healthz and a landing page.
type Server struct {
	opts      Options
	collector *metrics.Collector
	configs   func() []string
	gatherer  prometheus.Gatherer
	self      *selfMetrics
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker

	// one collection pass at a time
	mu sync.Mutex
}

// New builds a server. registry is the registry collector writes to; configs
// is called on every pass so watched config lists take effect immediately.
func New(collector *metrics.Collector, registry prometheus.Gatherer, configs func() []string, opts Options) *Server {
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}

	s := &Server{
		opts:      opts,
		collector: collector,
		configs:   configs,
		self:      newSelfMetrics(),
	}
	s.gatherer = prometheus.Gatherers{registry, s.self.registry}

	if opts.MinInterval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}

	failures := opts.BreakerFailures
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "borgmatic",
		Timeout: opts.BreakerCooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		// per-repository output problems do not trip the breaker
		IsSuccessful: func(err error) bool {
			return err == nil || isOutputProblem(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return s
}

// Refresh runs a collection pass if the rate limit and breaker allow it.
// It returns nil when the pass was skipped; stale values are then served.
func (s *Server) Refresh(ctx context.Context) error {
	log := otelzap.Ctx(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limiter != nil && !s.limiter.Allow() {
		log.Debug("Serving cached metrics, minimum scrape interval not reached",
			zap.Duration("min_interval", s.opts.MinInterval))
		return nil
	}

	start := time.Now()
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return s.collector.Collect(ctx, s.configs())
	})

	switch {
	case err == nil:
		s.self.duration.Observe(time.Since(start).Seconds())
		s.self.lastSuccess.Set(1)
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		s.self.errors.WithLabelValues(ReasonBreakerOpen).Inc()
		log.Warn("Serving cached metrics, borgmatic circuit breaker is open", zap.Error(err))
		return nil
	case isOutputProblem(err):
		s.self.duration.Observe(time.Since(start).Seconds())
		s.self.errors.WithLabelValues(ReasonOutput).Inc()
		s.self.lastSuccess.Set(0)
		return err
	default:
		s.self.duration.Observe(time.Since(start).Seconds())
		s.self.errors.WithLabelValues(ReasonCommand).Inc()
		s.self.lastSuccess.Set(0)
		return err
	}
}

// BreakerState reports the circuit breaker state.
func (s *Server) BreakerState() gobreaker.State {
	return s.breaker.State()
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle(s.opts.MetricsPath, s.metricsHandler()).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	return r
}

func (s *Server) metricsHandler() http.Handler {
	exposition := promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.Refresh(r.Context()); err != nil {
			otelzap.Ctx(r.Context()).Error("Collection pass failed, serving previous values", zap.Error(err))
		}
		exposition.ServeHTTP(w, r)
	})
}

type health struct {
	Status  string   `json:"status"`
	Breaker string   `json:"breaker"`
	Configs []string `json:"configs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := health{Status: "ok", Breaker: s.breaker.State().String(), Configs: s.configs()}
	code := http.StatusOK
	if s.breaker.State() == gobreaker.StateOpen {
		h.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(h); err != nil {
		otelzap.Ctx(r.Context()).Debug("Writing health response", zap.Error(err))
	}
}

var indexTemplate = template.Must(template.New("index").Parse(`<html>
<head><title>borgmatic exporter</title></head>
<body>
<h1>borgmatic exporter</h1>
<p><a href="{{.}}">Metrics</a></p>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, s.opts.MetricsPath); err != nil {
		otelzap.Ctx(r.Context()).Debug("Writing index page", zap.Error(err))
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		otelzap.Ctx(ctx).Info("Serving metrics",
			zap.String("address", s.opts.ListenAddress),
			zap.String("path", s.opts.MetricsPath))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return cerr.Wrapf(err, "listen on %s", s.opts.ListenAddress)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return cerr.Wrap(err, "shutdown")
		}
		return nil
	}
}

func isOutputProblem(err error) bool {
	var merr *multierror.Error
	return errors.As(err, &merr)
}
