// Package observability holds the process-wide Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "datememo",
		Name:      "sync_total",
		Help:      "Full reconciliations by outcome (ok, fetch, delete, reinsert, no_user)",
	}, []string{"result"})

	SyncConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "datememo",
		Name:      "sync_conflicts_total",
		Help:      "Records present on both sides with differing versions",
	})

	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "datememo",
		Name:      "sync_duration_seconds",
		Help:      "Duration of full reconciliations",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "datememo",
		Name:      "refresh_total",
		Help:      "Background refreshes by trigger and outcome",
	}, []string{"trigger", "result"})

	MirrorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "datememo",
		Name:      "mirror_failures_total",
		Help:      "Remote mirror writes that failed after a local write succeeded",
	}, []string{"op"})

	PendingMirrors = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "datememo",
		Name:      "pending_mirrors",
		Help:      "Local records whose latest write has not reached the remote",
	})

	LocalPersons = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "datememo",
		Name:      "local_persons",
		Help:      "Number of persons in the local store",
	})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "datememo",
		Name:      "ws_connections",
		Help:      "Number of active dashboard WebSocket connections",
	})
)
