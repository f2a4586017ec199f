package queue

import "context"

// Job is one unit of queue work, keyed by the message type it consumes.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type this job handles.
	Type() string

	// Handle processes one payload. A returned error schedules a retry
	// until the retry limit moves the message to the dead-letter list.
	Handle(ctx context.Context, payload interface{}) error
}
