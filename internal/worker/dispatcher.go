package worker

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrSessionCancelled = errors.New("session ended before the job ran")

type sessionQueue struct {
	jobs     []Job
	enqueued bool // session is in the ready list
	running  bool // a job of this session is on a worker
}

// Dispatcher rotates fairly over sessions and keeps at most one job per
// session on a worker at any time.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job
	logger   *zap.Logger

	mu        sync.Mutex
	queues    map[string]*sessionQueue
	ready     *list.List // session IDs with a runnable job, oldest first
	positions map[string]*list.Element

	wake chan struct{}
	quit chan struct{}
	once sync.Once
}

func NewDispatcher(minWorkers, maxWorkers, queueSize int, idleTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	d := &Dispatcher{
		JobQueue:  make(chan Job, queueSize),
		logger:    logger,
		queues:    make(map[string]*sessionQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
	}
	d.pool = newJobChannelPool(minWorkers, maxWorkers, idleTimeout, d)

	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

func (d *Dispatcher) run() {
	for {
		if d.dispatchOne() {
			select {
			case job := <-d.JobQueue:
				d.enqueueJob(job)
			case <-d.quit:
				return
			default:
			}
			continue
		}
		select {
		case job := <-d.JobQueue:
			d.enqueueJob(job)
		case <-d.wake:
		case <-d.quit:
			return
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	if d.stopped() {
		job.finish(ErrManagerStopped)
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.session]
	if q == nil {
		q = &sessionQueue{}
		d.queues[job.session] = q
	}
	q.jobs = append(q.jobs, job)
	d.markReadyLocked(job.session, q)
}

func (d *Dispatcher) markReadyLocked(session string, q *sessionQueue) {
	if q.enqueued || q.running || len(q.jobs) == 0 {
		return
	}
	q.enqueued = true
	d.positions[session] = d.ready.PushBack(session)
}

// dispatchOne hands the front session's next job to a worker.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	session := elem.Value.(string)
	q := d.queues[session]
	d.ready.Remove(elem)
	delete(d.positions, session)
	q.enqueued = false
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.running = true
	d.mu.Unlock()

	workerChan := d.pool.acquire()
	if workerChan == nil {
		job.finish(ErrManagerStopped)
		d.finish(session)
		return false
	}
	d.logger.Debug("dispatch",
		zap.String("kind", job.kind),
		zap.Int("worker", d.pool.workerID(workerChan)),
	)
	workerChan <- job
	return true
}

// finish is called by a worker once a session's job is done.
func (d *Dispatcher) finish(session string) {
	d.mu.Lock()
	if q, ok := d.queues[session]; ok {
		q.running = false
		if len(q.jobs) == 0 {
			delete(d.queues, session)
		} else {
			d.markReadyLocked(session, q)
		}
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// CancelSession drops the session's queued jobs. A running job is left to finish.
func (d *Dispatcher) CancelSession(session string) int {
	d.mu.Lock()
	q, ok := d.queues[session]
	if !ok {
		d.mu.Unlock()
		return 0
	}
	dropped := q.jobs
	q.jobs = nil
	if elem, ok := d.positions[session]; ok {
		d.ready.Remove(elem)
		delete(d.positions, session)
		q.enqueued = false
	}
	if !q.running {
		delete(d.queues, session)
	}
	d.mu.Unlock()

	for _, job := range dropped {
		job.finish(ErrSessionCancelled)
	}
	return len(dropped)
}

func (d *Dispatcher) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, q := range d.queues {
		n += len(q.jobs)
	}
	return n + len(d.JobQueue)
}

func (d *Dispatcher) stopped() bool {
	select {
	case <-d.quit:
		return true
	default:
		return false
	}
}

// Stop fails every queued job with ErrManagerStopped and winds the pool down.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		close(d.quit)
		d.pool.close()

		var dropped []Job
		d.mu.Lock()
		for session, q := range d.queues {
			dropped = append(dropped, q.jobs...)
			q.jobs = nil
			if !q.running {
				delete(d.queues, session)
			}
		}
		d.ready.Init()
		d.positions = make(map[string]*list.Element)
		d.mu.Unlock()
		for {
			select {
			case job := <-d.JobQueue:
				dropped = append(dropped, job)
				continue
			default:
			}
			break
		}
		for _, job := range dropped {
			job.finish(ErrManagerStopped)
		}
	})
}
