package gbcore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hupe1980/gbcore/accel"
	"github.com/hupe1980/gbcore/internal/conv"
	"github.com/hupe1980/gbcore/internal/mem"
	"github.com/hupe1980/gbcore/internal/queue"
	"github.com/hupe1980/gbcore/internal/resource"
	"github.com/hupe1980/gbcore/internal/workspace"
	"github.com/hupe1980/gbcore/types"
)

// Runtime owns the state shared by its matrices: the allocator and free
// pool, the outstanding-work queue, the worker workspaces and resource
// limits. Matrices from different runtimes must not be mixed.
type Runtime struct {
	opts       options
	rc         *resource.Controller
	alloc      *mem.Allocator
	queue      *queue.Queue[*Matrix]
	workspaces *workspace.Pool
	logger     *Logger
	metrics    MetricsCollector

	nextID atomic.Uint64
	live   atomic.Int64

	closeOnce sync.Once
	closed    atomic.Bool
}

// Init creates a runtime.
func Init(optFns ...Option) (*Runtime, error) {
	o := applyOptions(optFns)
	if o.memoryLimit < 0 || o.ioLimit < 0 {
		return nil, fmt.Errorf("%w: negative resource limit", ErrInvalidArgument)
	}
	if o.accel != nil {
		accel.SetEnabled(*o.accel)
	}

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:   o.memoryLimit,
		MaxWorkers:         o.workers,
		IOLimitBytesPerSec: o.ioLimit,
	})

	rt := &Runtime{
		opts:       o,
		rc:         rc,
		alloc:      mem.NewAllocator(mem.NewPool(o.poolClassLimit), rc, accel.Enabled),
		queue:      queue.New[*Matrix](),
		workspaces: workspace.NewPool(),
		logger:     o.logger,
		metrics:    o.metricsCollector,
	}

	rt.logger.Info("runtime initialized",
		"memory_limit", o.memoryLimit,
		"workers", rc.MaxWorkers(),
		"parallelism", o.parallelism,
		"accel", accel.Enabled(),
		"isa", accel.ActiveISA().String(),
	)
	return rt, nil
}

// Close drains the free pool. Matrices still alive keep working, but the
// runtime hands out no new ones. Close is idempotent.
func (rt *Runtime) Close() error {
	rt.closeOnce.Do(func() {
		rt.closed.Store(true)
		if n := rt.queue.Len(); n > 0 {
			rt.logger.Warn("runtime closed with outstanding work", "matrices", n, "ids", rt.queue.IDs())
		}
		cached := rt.alloc.Pool().CachedBytes()
		rt.alloc.Close()
		rt.logger.Info("runtime closed",
			"released_bytes", cached,
			"live_matrices", rt.live.Load(),
		)
	})
	return nil
}

// NewMatrix creates an empty nrows x ncols matrix of type t.
func (rt *Runtime) NewMatrix(t *types.Type, nrows, ncols uint64) (*Matrix, error) {
	if rt.closed.Load() {
		return nil, ErrClosed
	}
	if t == nil {
		return nil, fmt.Errorf("%w: matrix requires a type", ErrInvalidArgument)
	}
	if nrows == 0 || ncols == 0 || nrows > conv.MaxIndex || ncols > conv.MaxIndex {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidArgument, nrows, ncols)
	}
	m := rt.newHandle(t, nrows, ncols)
	return m, nil
}

func (rt *Runtime) newHandle(t *types.Type, nrows, ncols uint64) *Matrix {
	rt.live.Add(1)
	return &Matrix{
		rt:     rt,
		id:     rt.nextID.Add(1),
		typ:    t,
		nrows:  nrows,
		ncols:  ncols,
		format: FormatHypersparse,
	}
}

// Outstanding returns the number of matrices with unfinished work.
func (rt *Runtime) Outstanding() int {
	return rt.queue.Len()
}

// FinalizeAll finalizes every matrix on the outstanding-work queue,
// several at a time. Matrices are popped one by one in enqueue order, so a
// cancelled sweep leaves the untouched tail queued. Matrices that run out of
// memory are retried with exponential backoff and requeued if they still
// fail. The caller must not mutate queued matrices while the sweep runs.
// ctx is checked between matrices; a matrix whose finalize has started
// always runs to completion.
func (rt *Runtime) FinalizeAll(ctx context.Context) error {
	start := time.Now()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		errs   []error
		failed int
		swept  int
	)
	fail := func(m *Matrix, err error) {
		m.enqueue()
		mu.Lock()
		errs = append(errs, fmt.Errorf("matrix %d: %w", m.id, err))
		failed++
		mu.Unlock()
	}

	// Failed matrices requeue at the tail; bounding the sweep by the
	// starting length keeps them out of this pass.
	for n := rt.queue.Len(); swept < n; swept++ {
		err := ctx.Err()
		if err == nil {
			err = rt.rc.AcquireWorker(ctx)
		}
		if err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
		_, m, ok := rt.queue.Pop()
		if !ok {
			rt.rc.ReleaseWorker()
			break
		}
		m.enqueued = false

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer rt.rc.ReleaseWorker()
			if err := rt.finalizeWithRetry(ctx, m); err != nil {
				fail(m, err)
			}
		}()
	}
	wg.Wait()

	d := time.Since(start)
	rt.metrics.RecordFinalizeAll(swept, failed, d)
	rt.logger.LogFinalizeAll(ctx, swept, failed, d)
	return errors.Join(errs...)
}

func (rt *Runtime) finalizeWithRetry(ctx context.Context, m *Matrix) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = rt.opts.retryInitial
	policy.MaxElapsedTime = rt.opts.retryMaxElapsed

	attempt := 1
	return backoff.Retry(func() error {
		err := m.Finalize()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrOutOfMemory) {
			rt.metrics.RecordRetry()
			rt.logger.LogRetry(ctx, m.id, attempt, err)
			attempt++
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(policy, ctx))
}

// RuntimeStats is a point-in-time view of a runtime's resources.
type RuntimeStats struct {
	MemoryInUse    int64
	PeakMemory     int64
	DeniedAllocs   int64
	PoolCached     int64
	Allocs         int64
	PoolHits       int64
	Outstanding    int
	LiveMatrices   int64
	WorkspacesMade int64
}

// Stats returns current resource usage.
func (rt *Runtime) Stats() RuntimeStats {
	allocs, hits := rt.alloc.Stats()
	return RuntimeStats{
		MemoryInUse:    rt.rc.MemoryUsage(),
		PeakMemory:     rt.rc.PeakMemoryUsage(),
		DeniedAllocs:   rt.rc.DeniedReservations(),
		PoolCached:     rt.alloc.Pool().CachedBytes(),
		Allocs:         allocs,
		PoolHits:       hits,
		Outstanding:    rt.queue.Len(),
		LiveMatrices:   rt.live.Load(),
		WorkspacesMade: rt.workspaces.Created(),
	}
}

// ThrottledWriter wraps w with the runtime's IO limit.
func (rt *Runtime) ThrottledWriter(ctx context.Context, w io.Writer) io.Writer {
	return resource.NewRateLimitedWriter(ctx, w, rt.rc)
}

// ThrottledReader wraps r with the runtime's IO limit.
func (rt *Runtime) ThrottledReader(ctx context.Context, r io.Reader) io.Reader {
	return resource.NewRateLimitedReader(ctx, r, rt.rc)
}

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() *Logger { return rt.logger }
