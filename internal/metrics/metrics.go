// Package metrics exposes Prometheus counters describing normalization work.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nfcwatch"

const (
	ReloadUnchanged = "unchanged"
	ReloadChanged   = "changed"
	ReloadFailed    = "failed"
)

//nolint:gochecknoglobals // registered once with the default registry
var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of filesystem events handled",
		},
		[]string{"kind"},
	)

	renamesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renames_total",
			Help:      "Total number of entries renamed to their canonical form",
		},
	)

	renameFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rename_failures_total",
			Help:      "Total number of failed normalization renames",
		},
	)

	reloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Total number of configuration reloads by result",
		},
		[]string{"result"},
	)

	watchedRoots = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watched_roots",
			Help:      "Number of folders currently watched",
		},
	)
)

func RecordEvent(kind string) {
	eventsTotal.WithLabelValues(kind).Inc()
}

func RecordRename() {
	renamesTotal.Inc()
}

func RecordRenameFailure() {
	renameFailuresTotal.Inc()
}

func RecordReload(result string) {
	reloadsTotal.WithLabelValues(result).Inc()
}

func SetWatchedRoots(n int) {
	watchedRoots.Set(float64(n))
}
