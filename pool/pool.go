// Package pool implements a bounded FIFO resource pool: a semaphore of N
// slots guarding a waiter queue, used for scarce external connections
// (streaming STT primarily; the same type is reused for TTS and webhook
// admission).
package pool

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/callwave/callwave/errs"
	"github.com/callwave/callwave/o11y"
)

// Defaults per spec.md §4.1.
const (
	DefaultCapacity       = 20
	DefaultMaxQueueDepth  = 50
	DefaultAcquireTimeout = 30 * time.Second
)

// Option configures a Pool at construction.
type Option func(*Pool)

// WithCapacity sets the number of concurrently held leases.
func WithCapacity(n int) Option {
	return func(p *Pool) { p.capacity = n }
}

// WithMaxQueueDepth sets the maximum number of waiters queued past capacity.
func WithMaxQueueDepth(n int) Option {
	return func(p *Pool) { p.maxQueueDepth = n }
}

// WithAcquireTimeout sets how long a waiter waits before AcquireTimeout.
func WithAcquireTimeout(d time.Duration) Option {
	return func(p *Pool) { p.acquireTimeout = d }
}

// waiter is one entry in the FIFO waiter queue.
type waiter struct {
	ownerID string
	ch      chan error // receives nil on grant, an error otherwise
}

// Pool is a bounded, strictly-FIFO resource pool. The zero value is not
// usable; construct with New.
type Pool struct {
	name           string
	capacity       int
	maxQueueDepth  int
	acquireTimeout time.Duration

	mu          sync.Mutex
	active      map[string]*Lease // ownerID -> lease, rejects double-acquire
	waiters     *list.List        // of *waiter, strict FIFO
	shutdown    bool

	totalAcquired int64
	totalReleased int64
	totalTimedOut int64
	totalFailed   int64
}

// New constructs a Pool with the spec defaults, overridden by opts.
func New(name string, opts ...Option) *Pool {
	p := &Pool{
		name:           name,
		capacity:       DefaultCapacity,
		maxQueueDepth:  DefaultMaxQueueDepth,
		acquireTimeout: DefaultAcquireTimeout,
		active:         make(map[string]*Lease),
		waiters:        list.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Lease is a held pool slot. It must be released exactly once via
// Pool.Release (a second release is a no-op).
type Lease struct {
	id      string
	ownerID string
	pool    *Pool
	mu      sync.Mutex
	released bool
}

// OwnerID returns the owner that holds this lease.
func (l *Lease) OwnerID() string { return l.ownerID }

// Acquire blocks until a slot is available, the pool's acquire timeout
// elapses, ctx is cancelled, or the pool is shutting down.
func (p *Pool) Acquire(ctx context.Context, ownerID string) (*Lease, error) {
	ctx, span := o11y.StartSpan(ctx, "pool.Acquire", o11y.Attrs{"pool.name": p.name})
	defer span.End()

	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return nil, errs.New("pool.Acquire", errs.ResourceExhausted, "pool is shutting down").WithCode(errs.CodeShuttingDown)
	}
	if _, exists := p.active[ownerID]; exists {
		p.mu.Unlock()
		return nil, errs.New("pool.Acquire", errs.Conflict, "owner already holds a lease").WithCode(errs.CodeDoubleAcquire)
	}

	if len(p.active) < p.capacity {
		lease := p.grantLocked(ownerID)
		p.mu.Unlock()
		return lease, nil
	}

	if p.waiters.Len() >= p.maxQueueDepth {
		p.totalFailed++
		p.mu.Unlock()
		return nil, errs.New("pool.Acquire", errs.ResourceExhausted, "pool queue is full").WithCode(errs.CodePoolExhausted)
	}

	w := &waiter{ownerID: ownerID, ch: make(chan error, 1)}
	elem := p.waiters.PushBack(w)
	p.mu.Unlock()

	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case err := <-w.ch:
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		p.mu.Lock()
		lease := p.active[ownerID]
		p.mu.Unlock()
		return lease, nil
	case <-timer.C:
		p.mu.Lock()
		p.removeWaiterLocked(elem)
		p.totalTimedOut++
		p.mu.Unlock()
		err := errs.New("pool.Acquire", errs.ResourceExhausted, "acquire timed out").WithCode(errs.CodeAcquireTimeout)
		span.RecordError(err)
		return nil, err
	case <-ctx.Done():
		p.mu.Lock()
		p.removeWaiterLocked(elem)
		p.mu.Unlock()
		return nil, ctx.Err()
	}
}

// removeWaiterLocked removes elem from the waiter list if still present.
// Safe to call even if elem was already dequeued by grantNextLocked.
func (p *Pool) removeWaiterLocked(elem *list.Element) {
	for e := p.waiters.Front(); e != nil; e = e.Next() {
		if e == elem {
			p.waiters.Remove(e)
			return
		}
	}
}

// grantLocked creates and records a lease for ownerID. Caller holds p.mu.
func (p *Pool) grantLocked(ownerID string) *Lease {
	lease := &Lease{id: ownerID + ":" + time.Now().Format(time.RFC3339Nano), ownerID: ownerID, pool: p}
	p.active[ownerID] = lease
	p.totalAcquired++
	return lease
}

// Release returns a lease's slot to the pool, granting it to the next FIFO
// waiter if any. Releasing an already-released (or unknown) lease is a
// no-op.
func (p *Pool) Release(lease *Lease) {
	if lease == nil {
		return
	}
	lease.mu.Lock()
	if lease.released {
		lease.mu.Unlock()
		return
	}
	lease.released = true
	lease.mu.Unlock()

	p.mu.Lock()
	if p.active[lease.ownerID] == lease {
		delete(p.active, lease.ownerID)
		p.totalReleased++
	}
	p.grantNextLocked()
	p.mu.Unlock()
}

// grantNextLocked pops the head of the FIFO waiter queue, if any, and
// grants it a slot. Caller holds p.mu.
func (p *Pool) grantNextLocked() {
	for p.waiters.Len() > 0 && len(p.active) < p.capacity {
		elem := p.waiters.Front()
		p.waiters.Remove(elem)
		w := elem.Value.(*waiter)
		if _, exists := p.active[w.ownerID]; exists {
			// Owner re-acquired through another path; skip, don't double-grant.
			w.ch <- errs.New("pool.Acquire", errs.Conflict, "owner already holds a lease").WithCode(errs.CodeDoubleAcquire)
			continue
		}
		p.grantLocked(w.ownerID)
		w.ch <- nil
	}
}

// Shutdown rejects new acquires, wakes all waiters with ShuttingDown, and
// blocks until all outstanding leases are released or deadline elapses.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.shutdown = true
	for e := p.waiters.Front(); e != nil; e = e.Next() {
		w := e.Value.(*waiter)
		w.ch <- errs.New("pool.Acquire", errs.ResourceExhausted, "pool is shutting down").WithCode(errs.CodeShuttingDown)
	}
	p.waiters.Init()
	p.mu.Unlock()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		p.mu.Lock()
		remaining := len(p.active)
		p.mu.Unlock()
		if remaining == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stats is the observable state of a Pool.
type Stats struct {
	Active        int
	QueueDepth    int
	Capacity      int
	TotalAcquired int64
	TotalReleased int64
	TotalTimedOut int64
	TotalFailed   int64
	Utilization   float64
}

// Stats returns a snapshot of the pool's observable state and reports it to
// the pool-utilization gauge.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{
		Active:        len(p.active),
		QueueDepth:    p.waiters.Len(),
		Capacity:      p.capacity,
		TotalAcquired: p.totalAcquired,
		TotalReleased: p.totalReleased,
		TotalTimedOut: p.totalTimedOut,
		TotalFailed:   p.totalFailed,
	}
	if p.capacity > 0 {
		s.Utilization = float64(s.Active) / float64(p.capacity)
	}
	o11y.PoolUtilization(context.Background(), p.name, s.Active, s.QueueDepth)
	return s
}
