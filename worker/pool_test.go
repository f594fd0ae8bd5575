package worker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kvshard/kvshard/store"
)

func TestSpawnOnRunsOnOwningWorker(t *testing.T) {
	p := NewPool(4, 8)
	defer p.Close()

	var mu sync.Mutex
	seen := map[int]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		id := i
		p.SpawnOn(id, func(ks *store.Keyspace) {
			defer wg.Done()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		})
	}
	wg.Wait()
	require.Len(t, seen, 4)
}

func TestKeyspaceIsolationPerWorker(t *testing.T) {
	p := NewPool(2, 8)
	defer p.Close()

	done := make(chan struct{})
	p.SpawnOn(0, func(ks *store.Keyspace) {
		ks.Insert("k", store.NewIntegerValue(1))
		close(done)
	})
	<-done

	checked := make(chan bool, 1)
	p.SpawnOn(1, func(ks *store.Keyspace) {
		checked <- ks.Contains("k")
	})
	select {
	case present := <-checked:
		require.False(t, present, "worker 1 must not see worker 0's keys")
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

// TestKeyspaceIsLazilyInitialized confirms a worker's Keyspace isn't
// built until its first task runs, per the pool's documented contract.
func TestKeyspaceIsLazilyInitialized(t *testing.T) {
	p := NewPool(1, 4)
	defer p.Close()
	require.Nil(t, p.workers[0].ks)

	done := make(chan struct{})
	p.SpawnOn(0, func(ks *store.Keyspace) { close(done) })
	<-done

	require.NotNil(t, p.workers[0].ks)
}

func TestWorkerOfStableModulus(t *testing.T) {
	p := NewPool(3, 1)
	defer p.Close()
	require.Equal(t, int(7%3), p.WorkerOf(7))
}

func TestCloseDrainsQueuedTasks(t *testing.T) {
	p := NewPool(1, 4)
	ran := make(chan struct{}, 1)
	p.SpawnOn(0, func(ks *store.Keyspace) {
		ran <- struct{}{}
	})
	p.Close()
	select {
	case <-ran:
	default:
		t.Fatal("queued task did not run before Close returned")
	}
}
