package workspace

import (
	"sync"
	"sync/atomic"

	"github.com/hupe1980/gbcore/internal/status"
)

// MaxRetainedWork is the largest Work buffer kept when a workspace is pooled.
const MaxRetainedWork = 1 << 20

// Workspace holds one worker's scratch arrays.
type Workspace struct {
	Mark Mark
	Flag Flag
	work []byte
}

// Work returns a scratch buffer of size bytes. Contents are unspecified.
func (w *Workspace) Work(size int) []byte {
	if cap(w.work) < size {
		w.work = make([]byte, size)
	}
	return w.work[:size]
}

// FreeWork drops the Work buffer.
func (w *Workspace) FreeWork() {
	w.work = nil
}

// check verifies Mark and Flag are clear. The Mark scan is O(n) and only
// runs in debug builds.
func (w *Workspace) check() error {
	if err := w.Flag.AssertClear(); err != nil {
		return err
	}
	if status.Debug && !w.Mark.Clear() {
		return status.Corrupt("workspace mark not clear at flag %d", w.Mark.Flag())
	}
	return nil
}

// Pool hands out workspaces, one per concurrent worker.
type Pool struct {
	pool    sync.Pool
	created atomic.Int64
}

// NewPool creates an empty pool. Workspaces are allocated lazily.
func NewPool() *Pool {
	p := &Pool{}
	p.pool.New = func() any {
		p.created.Add(1)
		return &Workspace{}
	}
	return p
}

// Get retrieves a workspace and checks it is clear.
func (p *Pool) Get() (*Workspace, error) {
	ws := p.pool.Get().(*Workspace)
	if err := ws.check(); err != nil {
		return nil, err
	}
	return ws, nil
}

// Put returns a workspace. A workspace left dirty is reported and dropped.
func (p *Pool) Put(ws *Workspace) error {
	if ws == nil {
		return nil
	}
	if err := ws.check(); err != nil {
		return err
	}
	if cap(ws.work) > MaxRetainedWork {
		ws.FreeWork()
	}
	p.pool.Put(ws)
	return nil
}

// Created returns how many workspaces the pool has allocated.
func (p *Pool) Created() int64 { return p.created.Load() }
