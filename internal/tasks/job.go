package tasks

import (
	"context"
	"sync"
)

// Job is a handle on one orchestrated operation running in the background.
type Job struct {
	ID  uint64
	URL string

	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

func newJob(parent context.Context, id uint64, url string) *Job {
	ctx, cancel := context.WithCancelCause(parent)
	return &Job{ID: id, URL: url, ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// Done is closed once the job has finished.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Err is the job outcome. It is only meaningful after [Job.Done] is closed.
func (j *Job) Err() error {
	select {
	case <-j.done:
		return j.err
	default:
		return nil
	}
}

// Wait blocks until the job finishes or ctx ends.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Job) finish(err error) {
	j.once.Do(func() {
		j.err = err
		j.cancel(nil)
		close(j.done)
	})
}
