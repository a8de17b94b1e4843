package workspace

import (
	"sync"
	"testing"

	"github.com/hupe1980/gbcore/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlag_Alloc(t *testing.T) {
	var f Flag
	assert.Zero(t, f.Len())
	assert.False(t, f.Test(3))
	assert.NoError(t, f.AssertClear())

	f.Alloc(10)
	assert.GreaterOrEqual(t, f.Len(), uint(10))
	f.Set(3)
	assert.True(t, f.Test(3))
	assert.Equal(t, uint(1), f.Count())

	f.Alloc(5)
	assert.True(t, f.Test(3), "no realloc when capacity suffices")

	f.Unset(3)
	assert.NoError(t, f.AssertClear())
}

func TestFlag_AssertClear(t *testing.T) {
	if status.Debug {
		t.Skip("corruption panics in debug builds")
	}
	var f Flag
	f.Alloc(4)
	f.Set(1)
	assert.ErrorIs(t, f.AssertClear(), status.ErrCorruption)
}

func TestWorkspace_Work(t *testing.T) {
	var w Workspace
	b := w.Work(32)
	assert.Len(t, b, 32)

	c := w.Work(16)
	assert.Same(t, &b[0], &c[0])

	w.FreeWork()
	assert.Len(t, w.Work(8), 8)
}

func TestPool_GetPut(t *testing.T) {
	p := NewPool()

	ws, err := p.Get()
	require.NoError(t, err)
	ws.Flag.Alloc(64)
	ws.Flag.Set(5)
	ws.Flag.Unset(5)
	require.NoError(t, ws.Mark.Ensure(10))
	ws.Work(MaxRetainedWork + 1)
	require.NoError(t, p.Put(ws))
	assert.Nil(t, ws.work, "oversized work buffer dropped")

	assert.NoError(t, p.Put(nil))
	assert.GreaterOrEqual(t, p.Created(), int64(1))
}

func TestPool_PutDirty(t *testing.T) {
	if status.Debug {
		t.Skip("corruption panics in debug builds")
	}
	p := NewPool()
	ws, err := p.Get()
	require.NoError(t, err)
	ws.Flag.Alloc(8)
	ws.Flag.Set(2)
	assert.ErrorIs(t, p.Put(ws), status.ErrCorruption)
}

func TestPool_Concurrent(t *testing.T) {
	p := NewPool()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				ws, err := p.Get()
				if !assert.NoError(t, err) {
					return
				}
				ws.Flag.Alloc(128)
				ws.Flag.Set(uint(i))
				ws.Flag.Unset(uint(i))
				assert.NoError(t, p.Put(ws))
			}
		}()
	}
	wg.Wait()
}
