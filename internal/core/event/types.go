package event

import "time"

type Type string

const (
	JobCreated   Type = "job.created"
	JobStarted   Type = "job.started"
	JobProgress  Type = "job.progress"
	JobCompleted Type = "job.completed"
	JobFailed    Type = "job.failed"
	JobCancelled Type = "job.cancelled"
)

type Event struct {
	Type      Type
	Timestamp time.Time
	Job       JobEvent
}

// JobEvent is the payload for all job lifecycle events. It carries plain data
// only — subscribers never see live process or registry internals.
type JobEvent struct {
	ID       string
	URL      string
	State    string
	Progress int
	Message  string
	Error    string
	Files    []string
}
