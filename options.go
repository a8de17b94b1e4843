package gbcore

import (
	"log/slog"
	"runtime"
	"time"
)

const (
	// DefaultParallelThreshold is the merge size (existing plus pending
	// entries) above which Finalize splits work across goroutines.
	DefaultParallelThreshold = 1 << 16

	// DefaultHyperRatio selects the hypersparse format when fewer than
	// ncols/DefaultHyperRatio columns are non-empty.
	DefaultHyperRatio = 16

	// DefaultRetryMaxElapsed bounds how long FinalizeAll retries a matrix
	// that keeps running out of memory.
	DefaultRetryMaxElapsed = time.Second
)

type options struct {
	logger            *Logger
	metricsCollector  MetricsCollector
	memoryLimit       int64
	workers           int64
	ioLimit           int64
	accel             *bool
	poolClassLimit    int
	parallelism       int
	parallelThreshold int
	hyperRatio        uint64
	retryInitial      time.Duration
	retryMaxElapsed   time.Duration
}

// Option configures a Runtime.
type Option func(*options)

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	rt, _ := gbcore.Init(gbcore.WithLogger(gbcore.NewJSONLogger(slog.LevelDebug)))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector.
// Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithMemoryLimit caps the bytes of matrix storage the runtime may hold.
// Allocations past the limit fail with ErrOutOfMemory. 0 means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithMaxBackgroundWorkers bounds how many matrices FinalizeAll finalizes
// at once.
func WithMaxBackgroundWorkers(n int) Option {
	return func(o *options) {
		o.workers = int64(n)
	}
}

// WithIOLimit throttles snapshot IO to bytesPerSec. 0 means unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithAccelerator flips the process-wide accelerator switch at Init.
// Without this option the switch keeps its current (environment) value.
func WithAccelerator(on bool) Option {
	return func(o *options) {
		o.accel = &on
	}
}

// WithPoolClassLimit bounds the freed blocks cached per size class.
func WithPoolClassLimit(n int) Option {
	return func(o *options) {
		o.poolClassLimit = n
	}
}

// WithParallelism sets how many goroutines one Finalize may use.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithParallelThreshold sets the merge size above which Finalize runs in
// parallel.
func WithParallelThreshold(n int) Option {
	return func(o *options) {
		o.parallelThreshold = n
	}
}

// WithHyperRatio tunes the sparse/hypersparse switch; see DefaultHyperRatio.
func WithHyperRatio(r uint64) Option {
	return func(o *options) {
		o.hyperRatio = r
	}
}

// WithRetry configures the backoff FinalizeAll uses for out-of-memory
// failures.
func WithRetry(initial, maxElapsed time.Duration) Option {
	return func(o *options) {
		o.retryInitial = initial
		o.retryMaxElapsed = maxElapsed
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector:  NoopMetricsCollector{},
		logger:            NoopLogger(),
		workers:           int64(runtime.GOMAXPROCS(0)),
		parallelism:       runtime.GOMAXPROCS(0),
		parallelThreshold: DefaultParallelThreshold,
		hyperRatio:        DefaultHyperRatio,
		retryInitial:      10 * time.Millisecond,
		retryMaxElapsed:   DefaultRetryMaxElapsed,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.parallelism < 1 {
		o.parallelism = 1
	}
	if o.hyperRatio == 0 {
		o.hyperRatio = DefaultHyperRatio
	}
	return o
}
