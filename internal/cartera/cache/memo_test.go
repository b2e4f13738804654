package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoHitAndReplace(t *testing.T) {
	var m Memo[*[]int]
	calls := 0
	build := func() (*[]int, error) {
		calls++
		v := []int{calls}
		return &v, nil
	}

	a, hit, err := m.Get("k1", build)
	require.NoError(t, err)
	assert.False(t, hit)

	b, hit, err := m.Get("k1", build)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Same(t, a, b)

	c, hit, err := m.Get("k2", build)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []int{2}, *c)

	// only one slot: going back to k1 recomputes
	_, hit, _ = m.Get("k1", build)
	assert.False(t, hit)
	assert.Equal(t, 3, calls)
}

func TestMemoErrorNotCached(t *testing.T) {
	var m Memo[int]
	_, _, err := m.Get("k", func() (int, error) { return 0, errors.New("boom") })
	require.Error(t, err)

	v, hit, err := m.Get("k", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, v)
}

func TestMemoConcurrentMissesShareBuild(t *testing.T) {
	var m Memo[int]
	var builds atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = m.Get("same", func() (int, error) {
				builds.Add(1)
				<-release
				return 1, nil
			})
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
}
