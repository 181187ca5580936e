package job

import "time"

// State is the lifecycle state of a download job.
type State string

const (
	StateStarting  State = "starting"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transition is permitted from s.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Record is one tracked download. The registry hands out copies; the live
// record is mutated only through Registry.MutateIfNotTerminal so a terminal
// state is never overwritten.
type Record struct {
	ID             string     `json:"id"`
	URL            string     `json:"url"`
	State          State      `json:"status"`
	Progress       int        `json:"progress"`
	CompletedUnits int        `json:"completed_tracks"`
	TotalUnits     int        `json:"total_tracks"` // 0 until first reported by the tool
	Message        string     `json:"message"`
	ErrorText      string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	OutputFiles    []string   `json:"downloaded_files,omitempty"`
}

// snapshot returns a deep copy safe to hand to callers.
func (rec Record) snapshot() Record {
	cp := rec
	if rec.OutputFiles != nil {
		cp.OutputFiles = append([]string(nil), rec.OutputFiles...)
	}
	if rec.CompletedAt != nil {
		t := *rec.CompletedAt
		cp.CompletedAt = &t
	}
	return cp
}
