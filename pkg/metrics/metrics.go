// Package metrics exposes node reducer state as Prometheus gauges and
// counters over a small HTTP server. It never participates in the reducer
// loop: it polls Node.Snapshot on an interval and counts events the caller
// reports to it, so Step stays free of telemetry side effects (see
// DESIGN.md).
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/atvirokodosprendimai/gossipmesh/pkg/node"
)

// PollInterval is how often the gauges are refreshed from Node.Snapshot.
const PollInterval = 2 * time.Second

// Metrics holds the Prometheus collectors for one node instance.
type Metrics struct {
	NeighborsKnown      prometheus.Gauge
	NeighborsOnline     prometheus.Gauge
	NeighborsSuspect    prometheus.Gauge
	AwaitingReply       prometheus.Gauge
	MessagesReceived    *prometheus.CounterVec
	MessagesSent        *prometheus.CounterVec
	StrikesIssued       *prometheus.CounterVec
	RegistrationsAdded  prometheus.Counter
	ConnectionsRejected prometheus.Gauge
}

var (
	once       sync.Once
	registered *Metrics
)

// New creates and registers the gossip node metrics (singleton: a process
// runs exactly one node, so one registration is all that's ever needed).
func New() *Metrics {
	once.Do(func() {
		registered = &Metrics{
			NeighborsKnown: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: "gossipmesh",
				Name:      "neighbors_known",
				Help:      "Number of peers currently registered in the neighborhood.",
			}),
			NeighborsOnline: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: "gossipmesh",
				Name:      "neighbors_online",
				Help:      "Number of registered peers currently marked online.",
			}),
			NeighborsSuspect: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: "gossipmesh",
				Name:      "neighbors_suspect",
				Help:      "Number of registered peers past the suspicion threshold.",
			}),
			AwaitingReply: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: "gossipmesh",
				Name:      "awaiting_reply",
				Help:      "Number of sent messages with no reply received yet.",
			}),
			MessagesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gossipmesh",
				Name:      "messages_received_total",
				Help:      "Messages received, by payload kind.",
			}, []string{"kind"}),
			MessagesSent: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gossipmesh",
				Name:      "messages_sent_total",
				Help:      "Messages sent, by payload kind.",
			}, []string{"kind"}),
			StrikesIssued: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gossipmesh",
				Name:      "strikes_issued_total",
				Help:      "Suspicion strikes issued against peers, by charge.",
			}, []string{"charge"}),
			RegistrationsAdded: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "gossipmesh",
				Name:      "registrations_total",
				Help:      "Register triggers processed (explicit registrations such as the bootstrap contact); peers learned from inbound Register or RegisterOk messages are not counted.",
			}),
			ConnectionsRejected: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: "gossipmesh",
				Name:      "ratelimit_rejections",
				Help:      "Cumulative inbound connections turned away by the per-IP rate limiter.",
			}),
		}
	})
	return registered
}

// Poll refreshes the gauges from n's current snapshot until ctx is
// canceled. It is the only part of this package that reads reducer state;
// everything else is pushed to it by the caller as events occur.
func (m *Metrics) Poll(ctx context.Context, n *node.Node) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			snap := n.Snapshot()
			m.NeighborsKnown.Set(float64(snap.NeighborCount))
			m.NeighborsOnline.Set(float64(snap.OnlineCount))
			m.NeighborsSuspect.Set(float64(snap.SuspectCount))
			m.AwaitingReply.Set(float64(snap.AwaitingReplyCount))
		case <-ctx.Done():
			return
		}
	}
}

// PollRateLimiter refreshes ConnectionsRejected from rejected (typically
// (*transport.Receiver).Rejected) on the same interval as Poll, until ctx is
// canceled. Kept separate from Poll since the rejection count lives on the
// receiver, not the reducer's Snapshot.
func (m *Metrics) PollRateLimiter(ctx context.Context, rejected func() uint64) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.ConnectionsRejected.Set(float64(rejected()))
		case <-ctx.Done():
			return
		}
	}
}

// Server exposes the registered collectors over HTTP at /metrics.
type Server struct {
	srv *http.Server
}

// NewServer builds a metrics server bound to addr. It returns nil when addr
// is empty, so callers can unconditionally Start/Stop a possibly-disabled
// server.
func NewServer(addr string) *Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		srv: &http.Server{
			Addr:    addr,
			Handler: otelhttp.NewHandler(mux, "metrics"),
		},
	}
}

// Start serves metrics until the server is stopped; nil when disabled.
func (s *Server) Start() error {
	if s == nil {
		return nil
	}
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down; no-op when disabled.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
