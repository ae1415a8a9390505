// Package workerpool runs submitted jobs on a fixed set of goroutines.
//
// Every worker owns a FIFO queue. Jobs submitted with the same key land on
// the same worker and run in submission order whatever the pool size; keyless
// jobs go to the shortest queue. Queues are unbounded so submitting never
// blocks, and callers holding locks or running inside collaborator callbacks
// can submit safely.
package workerpool

import (
	"errors"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// ErrClosed is returned by Submit after Close
var ErrClosed = errors.New("worker pool is closed")

// Job is a unit of work
type Job func()

// Pool is a sharded job pool
type Pool struct {
	logger *zap.Logger

	mu      sync.Mutex
	pending *sync.Cond
	queues  [][]Job
	closed  bool
	wg      sync.WaitGroup
}

// New starts a pool with the given number of workers (at least one)
func New(workers int, logger *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{logger: logger, queues: make([][]Job, workers)}
	p.pending = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work(i)
	}
	return p
}

// Workers returns the pool size
func (p *Pool) Workers() int {
	return len(p.queues)
}

// Submit queues a job on the least loaded worker
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	shortest := 0
	for i := range p.queues {
		if len(p.queues[i]) < len(p.queues[shortest]) {
			shortest = i
		}
	}
	return p.enqueueLocked(shortest, job)
}

// SubmitKeyed queues a job behind every earlier job with the same key
func (p *Pool) SubmitKeyed(key string, job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enqueueLocked(p.shard(key), job)
}

func (p *Pool) shard(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(p.queues)))
}

func (p *Pool) enqueueLocked(i int, job Job) error {
	if p.closed {
		return ErrClosed
	}
	p.queues[i] = append(p.queues[i], job)
	p.pending.Broadcast()
	return nil
}

// Pending returns the number of queued jobs
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for _, q := range p.queues {
		total += len(q)
	}
	return total
}

// Close stops accepting jobs, runs what is queued and waits for the workers
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.pending.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) work(i int) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queues[i]) == 0 && !p.closed {
			p.pending.Wait()
		}
		if len(p.queues[i]) == 0 {
			p.mu.Unlock()
			return
		}
		job := p.queues[i][0]
		p.queues[i][0] = nil
		p.queues[i] = p.queues[i][1:]
		p.mu.Unlock()

		p.run(job)
	}
}

func (p *Pool) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	job()
}
