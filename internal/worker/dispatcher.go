package worker

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrDispatcherBusy    = errors.New("analysis queue is full")
	ErrDispatcherStopped = errors.New("dispatcher stopped")
)

// Job is one unit of background work owned by a workspace.
type Job struct {
	WorkspaceID string
	Name        string
	Run         func()

	stop bool
}

// Config sizes the dispatcher.
type Config struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

type workspaceQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher fans jobs out to an elastic worker pool. Workspaces are served
// round-robin so one browser cannot starve the others.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job
	logger   *zap.Logger

	mu        sync.Mutex
	queues    map[string]*workspaceQueue
	ready     *list.List
	positions map[string]*list.Element

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDispatcher(cfg Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		pool:      newJobChannelPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.IdleTimeout, logger),
		JobQueue:  make(chan Job, cfg.QueueSize),
		logger:    logger,
		queues:    make(map[string]*workspaceQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for i := 0; i < cfg.MinWorkers; i++ {
		d.pool.spawnWorker()
	}
	go d.pool.purgeStaleWorkers(ctx)
	go d.run()
	return d
}

// Submit queues job without blocking.
func (d *Dispatcher) Submit(job Job) error {
	if job.Run == nil {
		return errors.New("job has no work")
	}
	if d.ctx.Err() != nil {
		return ErrDispatcherStopped
	}
	select {
	case d.JobQueue <- job:
		return nil
	default:
		return ErrDispatcherBusy
	}
}

// CancelWorkspace drops jobs of id that have not started yet.
func (d *Dispatcher) CancelWorkspace(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.queues, id)
	if elem, ok := d.positions[id]; ok {
		d.ready.Remove(elem)
		delete(d.positions, id)
	}
}

// Pending reports queued jobs that have not reached a worker.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.JobQueue)
	for _, q := range d.queues {
		n += len(q.jobs)
	}
	return n
}

// Stop ends dispatching and retires all workers. Running jobs finish on
// their own.
func (d *Dispatcher) Stop() {
	d.cancel()
	<-d.done
	d.pool.shutdown()
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		if !d.dispatchOne() {
			select {
			case job := <-d.JobQueue:
				d.enqueueJob(job)
			case <-d.ctx.Done():
				return
			}
			continue
		}
		select {
		case job := <-d.JobQueue:
			d.enqueueJob(job)
		case <-d.ctx.Done():
			return
		default:
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.WorkspaceID]
	if q == nil {
		q = &workspaceQueue{}
		d.queues[job.WorkspaceID] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	d.positions[job.WorkspaceID] = d.ready.PushBack(job.WorkspaceID)
}

// dispatchOne waits for a free worker and hands it the next job of the
// front workspace. Jobs stay cancellable until a worker is available.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	empty := d.ready.Len() == 0
	d.mu.Unlock()
	if empty {
		return false
	}

	ch, ok := d.pool.acquire(d.ctx)
	if !ok {
		return false
	}

	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		d.pool.Release(ch)
		return false
	}
	id := elem.Value.(string)
	q := d.queues[id]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, id)
		delete(d.queues, id)
	} else {
		d.ready.MoveToBack(elem)
	}
	d.mu.Unlock()

	d.logger.Debug("dispatch job",
		zap.String("job", job.Name),
		zap.String("workspace", job.WorkspaceID),
		zap.Int("worker", d.pool.workerID(ch)))
	ch <- job
	return true
}
