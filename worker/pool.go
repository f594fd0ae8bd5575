// Package worker implements the fixed-size pool of single-threaded
// workers that own disjoint slices of the keyspace. It is the Go
// analogue of the original implementation's tokio_io_pool::Handle: a
// spawn_on(worker, task)/worker_of(shard) contract that lets the
// connection loop run a command on whichever worker owns its key without
// taking a lock.
package worker

import (
	"sync"

	"github.com/kvshard/kvshard/shard"
	"github.com/kvshard/kvshard/store"
)

// Task is a unit of work submitted to a specific worker. It is always run
// on that worker's own goroutine, in submission order relative to other
// tasks submitted to the same worker.
type Task func(ks *store.Keyspace)

type workerLoop struct {
	tasks chan Task
	ks    *store.Keyspace
}

// Pool is a fixed set of workers, each single-threaded and each owning
// its own lazily-initialized Keyspace. Worker count is fixed for the
// lifetime of the pool; WorkerOf's mapping is therefore stable for the
// process's whole run, matching the shard-routing invariant the rest of
// the server depends on.
type Pool struct {
	workers []*workerLoop
	wg      sync.WaitGroup
}

// NewPool starts n workers, each with a buffered task queue of the given
// depth. queueDepth of 0 means unbuffered (each submit blocks until the
// worker is ready to receive it).
func NewPool(n int, queueDepth int) *Pool {
	if n <= 0 {
		n = 1
	}
	p := &Pool{workers: make([]*workerLoop, n)}
	for i := 0; i < n; i++ {
		w := &workerLoop{
			tasks: make(chan Task, queueDepth),
		}
		p.workers[i] = w
		p.wg.Add(1)
		go func(w *workerLoop) {
			defer p.wg.Done()
			for task := range w.tasks {
				if w.ks == nil {
					w.ks = store.NewKeyspace()
				}
				task(w.ks)
			}
		}(w)
	}
	return p
}

// WorkerCount reports how many workers the pool runs.
func (p *Pool) WorkerCount() int { return len(p.workers) }

// WorkerOf maps a shard number to the worker ID that owns it.
func (p *Pool) WorkerOf(s uint64) int {
	return shard.WorkerOf(s, len(p.workers))
}

// SpawnOn submits task to run on the given worker. It returns once the
// task has been enqueued, not once it has run; callers that need the
// result use a reply channel (see Server.dispatch in the server package).
func (p *Pool) SpawnOn(workerID int, task Task) {
	p.workers[workerID].tasks <- task
}

// Close stops accepting new work and waits for every worker to drain its
// queue and exit.
func (p *Pool) Close() {
	for _, w := range p.workers {
		close(w.tasks)
	}
	p.wg.Wait()
}
