package gbcore

import (
	"sync/atomic"
	"time"
)

// DeleteOutcome says what a Delete found at the coordinate.
type DeleteOutcome uint8

const (
	// DeleteAbsent means no entry existed.
	DeleteAbsent DeleteOutcome = iota
	// DeletePending means pending tuples were dropped.
	DeletePending
	// DeleteZombie means a compressed entry was tombstoned.
	DeleteZombie
)

func (o DeleteOutcome) String() string {
	switch o {
	case DeletePending:
		return "pending"
	case DeleteZombie:
		return "zombie"
	default:
		return "absent"
	}
}

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; see the
// metrics/prometheus package for a Prometheus adapter.
type MetricsCollector interface {
	// RecordInsert is called after each insert.
	RecordInsert(err error)

	// RecordDelete is called after each delete.
	RecordDelete(outcome DeleteOutcome, err error)

	// RecordFinalize is called after each finalize that had work to do.
	// pending and zombies describe the work merged.
	RecordFinalize(pending, zombies int, duration time.Duration, err error)

	// RecordFinalizeAll is called after each sweep of the outstanding-work queue.
	RecordFinalizeAll(count, failed int, duration time.Duration)

	// RecordRetry is called when a finalize is retried after running out of memory.
	RecordRetry()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(error)                            {}
func (NoopMetricsCollector) RecordDelete(DeleteOutcome, error)             {}
func (NoopMetricsCollector) RecordFinalize(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordFinalizeAll(int, int, time.Duration)     {}
func (NoopMetricsCollector) RecordRetry()                                  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	InsertCount        atomic.Int64
	InsertErrors       atomic.Int64
	DeleteCount        atomic.Int64
	DeleteErrors       atomic.Int64
	DeletePendingCount atomic.Int64
	DeleteZombieCount  atomic.Int64
	FinalizeCount      atomic.Int64
	FinalizeErrors     atomic.Int64
	FinalizeTotalNanos atomic.Int64
	FinalizePending    atomic.Int64
	FinalizeZombies    atomic.Int64
	SweepCount         atomic.Int64
	SweepMatrices      atomic.Int64
	SweepFailed        atomic.Int64
	RetryCount         atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(err error) {
	b.InsertCount.Add(1)
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(outcome DeleteOutcome, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
		return
	}
	switch outcome {
	case DeletePending:
		b.DeletePendingCount.Add(1)
	case DeleteZombie:
		b.DeleteZombieCount.Add(1)
	}
}

// RecordFinalize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFinalize(pending, zombies int, duration time.Duration, err error) {
	b.FinalizeCount.Add(1)
	b.FinalizeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FinalizeErrors.Add(1)
		return
	}
	b.FinalizePending.Add(int64(pending))
	b.FinalizeZombies.Add(int64(zombies))
}

// RecordFinalizeAll implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFinalizeAll(count, failed int, _ time.Duration) {
	b.SweepCount.Add(1)
	b.SweepMatrices.Add(int64(count))
	b.SweepFailed.Add(int64(failed))
}

// RecordRetry implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRetry() {
	b.RetryCount.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:        b.InsertCount.Load(),
		InsertErrors:       b.InsertErrors.Load(),
		DeleteCount:        b.DeleteCount.Load(),
		DeleteErrors:       b.DeleteErrors.Load(),
		DeletePendingCount: b.DeletePendingCount.Load(),
		DeleteZombieCount:  b.DeleteZombieCount.Load(),
		FinalizeCount:      b.FinalizeCount.Load(),
		FinalizeErrors:     b.FinalizeErrors.Load(),
		FinalizeAvgNanos:   b.getAvgFinalizeNanos(),
		FinalizePending:    b.FinalizePending.Load(),
		FinalizeZombies:    b.FinalizeZombies.Load(),
		SweepCount:         b.SweepCount.Load(),
		SweepMatrices:      b.SweepMatrices.Load(),
		SweepFailed:        b.SweepFailed.Load(),
		RetryCount:         b.RetryCount.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgFinalizeNanos() int64 {
	count := b.FinalizeCount.Load()
	if count == 0 {
		return 0
	}
	return b.FinalizeTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount        int64
	InsertErrors       int64
	DeleteCount        int64
	DeleteErrors       int64
	DeletePendingCount int64
	DeleteZombieCount  int64
	FinalizeCount      int64
	FinalizeErrors     int64
	FinalizeAvgNanos   int64
	FinalizePending    int64
	FinalizeZombies    int64
	SweepCount         int64
	SweepMatrices      int64
	SweepFailed        int64
	RetryCount         int64
}
