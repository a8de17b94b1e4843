// Package prometheus exports gbcore runtime metrics to Prometheus.
//
//	c, err := prometheus.NewCollector(prom.DefaultRegisterer, "gbcore")
//	rt, err := gbcore.Init(gbcore.WithMetricsCollector(c))
package prometheus

import (
	"time"

	"github.com/hupe1980/gbcore"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements gbcore.MetricsCollector with Prometheus metrics.
type Collector struct {
	ops             *prometheus.CounterVec
	deletes         *prometheus.CounterVec
	finalizeLatency *prometheus.HistogramVec
	finalizeMerged  *prometheus.CounterVec
	sweeps          prometheus.Counter
	sweepMatrices   *prometheus.CounterVec
	sweepLatency    prometheus.Histogram
	retries         prometheus.Counter
}

var _ gbcore.MetricsCollector = (*Collector)(nil)

// NewCollector creates the metrics under namespace and registers them with
// reg. A nil reg leaves them unregistered.
func NewCollector(reg prometheus.Registerer, namespace string) (*Collector, error) {
	c := &Collector{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Update operations by kind and status.",
		}, []string{"op", "status"}),
		deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delete_outcomes_total",
			Help:      "Successful deletes by what they found.",
		}, []string{"outcome"}),
		finalizeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "finalize_duration_seconds",
			Help:      "Latency of finalize passes that had work to do.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		finalizeMerged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalize_merged_total",
			Help:      "Pending tuples assembled and zombies removed by finalize.",
		}, []string{"kind"}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "FinalizeAll sweeps of the outstanding-work queue.",
		}),
		sweepMatrices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_matrices_total",
			Help:      "Matrices visited by FinalizeAll sweeps.",
		}, []string{"status"}),
		sweepLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Latency of FinalizeAll sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalize_retries_total",
			Help:      "Finalize retries after running out of memory.",
		}),
	}

	if reg != nil {
		for _, col := range []prometheus.Collector{
			c.ops, c.deletes, c.finalizeLatency, c.finalizeMerged,
			c.sweeps, c.sweepMatrices, c.sweepLatency, c.retries,
		} {
			if err := reg.Register(col); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordInsert implements gbcore.MetricsCollector.
func (c *Collector) RecordInsert(err error) {
	c.ops.WithLabelValues("insert", status(err)).Inc()
}

// RecordDelete implements gbcore.MetricsCollector.
func (c *Collector) RecordDelete(outcome gbcore.DeleteOutcome, err error) {
	c.ops.WithLabelValues("delete", status(err)).Inc()
	if err == nil {
		c.deletes.WithLabelValues(outcome.String()).Inc()
	}
}

// RecordFinalize implements gbcore.MetricsCollector.
func (c *Collector) RecordFinalize(pending, zombies int, d time.Duration, err error) {
	c.ops.WithLabelValues("finalize", status(err)).Inc()
	c.finalizeLatency.WithLabelValues(status(err)).Observe(d.Seconds())
	if err == nil {
		c.finalizeMerged.WithLabelValues("pending").Add(float64(pending))
		c.finalizeMerged.WithLabelValues("zombie").Add(float64(zombies))
	}
}

// RecordFinalizeAll implements gbcore.MetricsCollector.
func (c *Collector) RecordFinalizeAll(count, failed int, d time.Duration) {
	c.sweeps.Inc()
	c.sweepMatrices.WithLabelValues("success").Add(float64(count - failed))
	c.sweepMatrices.WithLabelValues("error").Add(float64(failed))
	c.sweepLatency.Observe(d.Seconds())
}

// RecordRetry implements gbcore.MetricsCollector.
func (c *Collector) RecordRetry() {
	c.retries.Inc()
}
