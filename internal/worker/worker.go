package worker

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var ErrTaskPanicked = errors.New("task panicked")

type Worker struct {
	id         int
	pool       *jobChannelPool
	dispatcher *Dispatcher
	jobChannel chan Job
}

func NewWorker(id int, pool *jobChannelPool, d *Dispatcher) *Worker {
	return &Worker{
		id:         id,
		pool:       pool,
		dispatcher: d,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	go func() {
		for job := range w.jobChannel {
			switch job.Type {
			case Stop:
				w.pool.retire(w.jobChannel)
				return
			case Run:
				w.run(job)
				w.dispatcher.finish(job.session)
				if !w.pool.Release(w.jobChannel) {
					w.pool.retire(w.jobChannel)
					return
				}
			}
		}
	}()
}

func (w *Worker) run(job Job) {
	logger := w.dispatcher.logger.With(
		zap.Int("worker", w.id),
		zap.String("kind", job.kind),
	)
	// the caller may have given up while the job waited in the queue
	if err := job.ctx.Err(); err != nil {
		job.finish(err)
		return
	}
	start := time.Now()
	err := w.call(job)
	logger.Debug("job finished",
		zap.Duration("queued", start.Sub(job.enqueued)),
		zap.Duration("took", time.Since(start)),
		zap.Error(err),
	)
	job.finish(err)
}

func (w *Worker) call(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.dispatcher.logger.Error("task panic", zap.String("kind", job.kind), zap.Any("panic", r))
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return job.fn(job.ctx)
}
