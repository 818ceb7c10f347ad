// Package metrics exports run statistics in Prometheus format.
//
// Each Recorder owns a private registry so that tests and long-running
// watch sessions never collide with the global default registry. After a
// run the registry can be written to a node-exporter textfile.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dshills/ptags/pkg/types"
)

const namespace = "ptags"

// Phase label values
const (
	PhaseDiscovery = "discovery"
	PhaseDispatch  = "dispatch"
	PhaseMerge     = "merge"
	PhaseTotal     = "total"
)

// Recorder collects metrics for completed runs
type Recorder struct {
	registry *prometheus.Registry

	// runsTotal counts runs by status (complete, partial, failed).
	runsTotal *prometheus.CounterVec
	// chunkDuration measures tagger wall time per chunk.
	// Labels: result (success, failure)
	chunkDuration *prometheus.HistogramVec
	// chunkFailures counts chunks omitted from the output.
	chunkFailures prometheus.Counter
	// phaseDuration measures each pipeline phase.
	// Labels: phase (discovery, dispatch, merge, total)
	phaseDuration *prometheus.HistogramVec
	// duplicatesTotal counts lines collapsed during merges.
	duplicatesTotal prometheus.Counter

	filesScanned  prometheus.Gauge
	entries       prometheus.Gauge
	outputBytes   prometheus.Gauge
	workers       prometheus.Gauge
	lastRunTime   prometheus.Gauge
	lastRunStatus *prometheus.GaugeVec
}

// New creates a Recorder with its own registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total tag generation runs by final status",
		}, []string{"status"}),
		chunkDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chunk",
			Name:      "duration_seconds",
			Help:      "Tagger wall time per chunk in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"result"}),
		chunkFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chunk",
			Name:      "failures_total",
			Help:      "Chunks whose tagger failed and were omitted from the output",
		}),
		phaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Pipeline phase duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"phase"}),
		duplicatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_collapsed_total",
			Help:      "Tag lines collapsed during merge",
		}),
		filesScanned: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "files_scanned",
			Help:      "Files discovered by the last run",
		}),
		entries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries_written",
			Help:      "Tag entries written by the last run",
		}),
		outputBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "output_bytes",
			Help:      "Size of the tag file written by the last run",
		}),
		workers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers",
			Help:      "Parallel tagger processes used by the last run",
		}),
		lastRunTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run started",
		}),
		lastRunStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_status",
			Help:      "1 for the status of the last run, 0 otherwise",
		}, []string{"status"}),
	}
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRun records a finished run
func (r *Recorder) ObserveRun(s *types.RunSummary) {
	r.runsTotal.WithLabelValues(string(s.Status)).Inc()
	r.setStatus(s.Status)

	for _, c := range s.Chunks {
		if c.Files == 0 {
			continue
		}
		result := "success"
		if c.Failed() {
			result = "failure"
			r.chunkFailures.Inc()
		}
		r.chunkDuration.WithLabelValues(result).Observe(c.Elapsed.Seconds())
	}

	r.phaseDuration.WithLabelValues(PhaseDiscovery).Observe(s.DiscoveryElapsed.Seconds())
	r.phaseDuration.WithLabelValues(PhaseDispatch).Observe(s.DispatchElapsed.Seconds())
	r.phaseDuration.WithLabelValues(PhaseMerge).Observe(s.MergeElapsed.Seconds())
	r.phaseDuration.WithLabelValues(PhaseTotal).Observe(s.TotalElapsed.Seconds())

	r.duplicatesTotal.Add(float64(s.Duplicates))
	r.filesScanned.Set(float64(s.FilesScanned))
	r.entries.Set(float64(s.Entries))
	r.outputBytes.Set(float64(s.OutputBytes))
	r.workers.Set(float64(s.Workers))
	if !s.StartedAt.IsZero() {
		r.lastRunTime.Set(float64(s.StartedAt.Unix()))
	}
}

// ObserveFailure records a run that ended with a fatal error
func (r *Recorder) ObserveFailure() {
	r.runsTotal.WithLabelValues(string(types.StatusFailed)).Inc()
	r.setStatus(types.StatusFailed)
}

func (r *Recorder) setStatus(status types.RunStatus) {
	for _, s := range []types.RunStatus{types.StatusComplete, types.StatusPartial, types.StatusFailed} {
		v := 0.0
		if s == status {
			v = 1
		}
		r.lastRunStatus.WithLabelValues(string(s)).Set(v)
	}
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
