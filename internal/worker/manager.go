package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

var (
	ErrDispatcherBusy = errors.New("too many pending jobs, try again later")
	ErrManagerStopped = errors.New("worker manager stopped")
)

type DispatcherConfig struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Workers int `json:"workers"`
	Idle    int `json:"idle"`
	Pending int `json:"pending"`
}

// Manager runs engine calls for sessions, one at a time per session.
type Manager struct {
	dispatcher *Dispatcher
	logger     *zap.Logger
}

func NewManager(cfg DispatcherConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("worker")
	return &Manager{
		dispatcher: NewDispatcher(cfg.MinWorkers, cfg.MaxWorkers, cfg.QueueSize, cfg.IdleTimeout, logger),
		logger:     logger,
	}
}

// Submit queues fn for sessionID and waits for its result. It returns
// ErrDispatcherBusy without queueing when the submission queue is full, and
// ctx.Err() if the caller gives up first.
func (m *Manager) Submit(ctx context.Context, sessionID, kind string, fn Task) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}
	if fn == nil {
		return errors.New("task is required")
	}
	if m.dispatcher.stopped() {
		return ErrManagerStopped
	}
	if ctx == nil {
		ctx = context.Background()
	}

	job := Job{
		Type:     Run,
		session:  sessionID,
		kind:     kind,
		ctx:      ctx,
		fn:       fn,
		done:     make(chan error, 1),
		enqueued: time.Now(),
	}
	select {
	case m.dispatcher.JobQueue <- job:
	default:
		m.logger.Warn("submission rejected", zap.String("kind", kind))
		return ErrDispatcherBusy
	}

	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelSession drops the session's queued jobs, used when a session ends.
func (m *Manager) CancelSession(sessionID string) {
	if n := m.dispatcher.CancelSession(sessionID); n > 0 {
		m.logger.Info("dropped queued jobs", zap.Int("jobs", n))
	}
}

func (m *Manager) Stats() Stats {
	running, idle := m.dispatcher.pool.size()
	return Stats{Workers: running, Idle: idle, Pending: m.dispatcher.pending()}
}

func (m *Manager) Stop() {
	m.dispatcher.Stop()
}
