package agent

import "context"

// Job is one schedulable unit of agent work.
type Job interface {
	// Name returns the job identifier used in logs.
	Name() string
	// Run performs one cycle of the job.
	Run(ctx context.Context) error
}

type jobFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// NewJob wraps a function as a named Job.
func NewJob(name string, fn func(ctx context.Context) error) Job {
	return jobFunc{name: name, fn: fn}
}

func (j jobFunc) Name() string                  { return j.name }
func (j jobFunc) Run(ctx context.Context) error { return j.fn(ctx) }
