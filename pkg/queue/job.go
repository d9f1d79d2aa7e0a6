package queue

import "context"

// Job consumes messages of a single type from the queue.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type this job is dispatched for.
	Type() string

	// Handle runs the job. A returned error schedules a retry until the
	// retry limit is reached, after which the message is dead lettered.
	Handle(ctx context.Context, payload interface{}) error
}
