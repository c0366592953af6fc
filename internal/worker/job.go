package worker

import (
	"context"
	"time"
)

type JobType int

const (
	Run JobType = iota
	Stop
)

func (t JobType) String() string {
	switch t {
	case Run:
		return "run"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Task is one pass against an external engine.
type Task func(ctx context.Context) error

type Job struct {
	Type JobType

	session  string
	kind     string
	ctx      context.Context
	fn       Task
	done     chan error
	enqueued time.Time
}

func (job Job) finish(err error) {
	if job.done != nil {
		job.done <- err
	}
}
