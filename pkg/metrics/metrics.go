// Package metrics exposes the outcome of a run in the Prometheus text format,
// for the node_exporter textfile collector on the host running the cron job.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mm2_move_devel_to_release"

var (
	RepositoriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repositories_total",
			Help:      "Repositories touched by the last run, by action",
		},
		[]string{"category", "version", "action"},
	)

	LastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		},
	)

	LastRunDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last run",
		},
	)

	LastRunSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run committed or rolled back cleanly, 0 otherwise",
		},
	)

	Registry = prometheus.NewRegistry()
)

func init() {
	Registry.MustRegister(RepositoriesTotal, LastRunTimestamp, LastRunDuration, LastRunSuccess)
}

// Actions recorded in RepositoriesTotal.
const (
	ActionMigrated   = "migrated"
	ActionDeleted    = "deleted"
	ActionRepointed  = "repointed"
	ActionSkipped    = "skipped"
	ActionRedirected = "redirected"
)

// Run is the outcome of one invocation.
type Run struct {
	Category string
	Version  string
	// Counts per action.
	Counts   map[string]int
	Started  time.Time
	Finished time.Time
	Err      error
}

// Observe records run in the registry, replacing any earlier run.
func Observe(run Run) {
	RepositoriesTotal.Reset()
	for action, n := range run.Counts {
		RepositoriesTotal.WithLabelValues(run.Category, run.Version, action).Add(float64(n))
	}
	LastRunTimestamp.Set(float64(run.Finished.Unix()))
	LastRunDuration.Set(run.Finished.Sub(run.Started).Seconds())
	if run.Err != nil {
		LastRunSuccess.Set(0)
	} else {
		LastRunSuccess.Set(1)
	}
}

// WriteTextfile writes the registry to path atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
