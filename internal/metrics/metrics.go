// Package metrics exposes session statistics in the Prometheus format.
//
// A [Collector] is a session observer: register it with the controller and
// it keeps counters of finished sessions, bytes received and session
// durations. [Serve] publishes a registry over HTTP.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Yumeka433/igdl/internal/session"
)

const namespace = "igdl"

// Collector turns session state changes into Prometheus metrics.
type Collector struct {
	sessionsTotal   *prometheus.CounterVec
	receivedBytes   prometheus.Counter
	active          prometheus.Gauge
	progressPercent prometheus.Gauge
	durationSeconds *prometheus.HistogramVec
	artifactBytes   prometheus.Histogram

	mu       sync.Mutex
	started  map[string]time.Time
	received map[string]int64
	now      func() time.Time
}

// New creates a collector and registers its metrics with reg.
//
// Registered metrics:
//   - igdl_sessions_total{status}: sessions that reached done, aborted or error
//   - igdl_received_bytes_total: body bytes buffered across all sessions
//   - igdl_sessions_active: sessions currently starting or downloading
//   - igdl_session_progress_percent: progress of the latest session
//   - igdl_session_duration_seconds{status}: time from starting to a terminal state
//   - igdl_artifact_size_bytes: size of completed artifacts
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		sessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Download sessions by terminal status.",
			},
			[]string{"status"},
		),
		receivedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_bytes_total",
			Help:      "Response body bytes received.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently starting or downloading.",
		}),
		progressPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_progress_percent",
			Help:      "Progress of the most recent session.",
		}),
		durationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_duration_seconds",
				Help:      "Session duration from start to terminal state.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"status"},
		),
		artifactBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "artifact_size_bytes",
			Help:      "Size of completed artifacts.",
			// 64KiB .. 4GiB
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 9),
		}),
		started:  make(map[string]time.Time),
		received: make(map[string]int64),
		now:      time.Now,
	}

	for _, col := range []prometheus.Collector{
		c.sessionsTotal,
		c.receivedBytes,
		c.active,
		c.progressPercent,
		c.durationSeconds,
		c.artifactBytes,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Observe implements session.Observer.
func (c *Collector) Observe(s session.State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch s.Status {
	case session.StatusIdle:
		c.progressPercent.Set(0)
		return
	case session.StatusStarting:
		if _, ok := c.started[s.ID]; !ok {
			c.started[s.ID] = c.now()
			c.active.Inc()
		}
	}

	if delta := s.Received - c.received[s.ID]; delta > 0 {
		c.receivedBytes.Add(float64(delta))
		c.received[s.ID] = s.Received
	}
	c.progressPercent.Set(float64(s.Progress))

	if !s.Status.Terminal() {
		return
	}

	status := string(s.Status)
	c.sessionsTotal.WithLabelValues(status).Inc()
	if start, ok := c.started[s.ID]; ok {
		c.durationSeconds.WithLabelValues(status).Observe(c.now().Sub(start).Seconds())
		c.active.Dec()
	}
	if s.Status == session.StatusDone {
		c.artifactBytes.Observe(float64(s.Received))
	}
	delete(c.started, s.ID)
	delete(c.received, s.ID)
}

// Handler returns an HTTP handler serving the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("failed to shut down metrics server")
		}
	}()

	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
