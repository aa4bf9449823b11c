package periodic

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskRunsOnInterval(t *testing.T) {
	var runs int32
	task := Start(10*time.Millisecond, func() {
		atomic.AddInt32(&runs, 1)
	})
	defer task.Stop()

	time.Sleep(55 * time.Millisecond)
	got := atomic.LoadInt32(&runs)
	assert.GreaterOrEqual(t, got, int32(3))
	assert.LessOrEqual(t, got, int32(8))
}

func TestStopWaitsForInFlightRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished int32

	task := Start(5*time.Millisecond, func() {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		atomic.StoreInt32(&finished, 1)
	})

	<-started
	stopped := make(chan struct{})
	go func() {
		task.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight run released")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-stopped
	assert.Equal(t, int32(1), atomic.LoadInt32(&finished))
}

func TestTaskDoesNotOverlap(t *testing.T) {
	var concurrent int32
	var maxConcurrent int32

	task := Start(5*time.Millisecond, func() {
		n := atomic.AddInt32(&concurrent, 1)
		for {
			old := atomic.LoadInt32(&maxConcurrent)
			if n <= old || atomic.CompareAndSwapInt32(&maxConcurrent, old, n) {
				break
			}
		}
		time.Sleep(15 * time.Millisecond)
		atomic.AddInt32(&concurrent, -1)
	})
	defer task.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxConcurrent))
}
