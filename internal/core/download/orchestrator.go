// Package download is the job supervision engine: it accepts submissions,
// runs one worker per job around a spotdl process, and applies parsed output
// to the job registry under the lifecycle state machine.
package download

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/FoxRefire/SpiceDL/internal/core/event"
	"github.com/FoxRefire/SpiceDL/internal/core/job"
	"github.com/FoxRefire/SpiceDL/internal/core/spotdl"
)

// ErrInvalidURL rejects submissions that are not Spotify links. Returned
// synchronously; no job is created.
var ErrInvalidURL = errors.New("invalid Spotify URL: expected https://open.spotify.com/...")

// LocateFunc resolves the spotdl invocation for a worker.
type LocateFunc func(ctx context.Context) (*spotdl.Tool, error)

// Orchestrator accepts submissions and supervises one worker per job. All
// shared state lives in the injected registry; Submit, Status and Cancel
// return promptly and never touch process I/O.
type Orchestrator struct {
	registry *job.Registry
	bus      event.Bus
	locate   LocateFunc

	mu  sync.Mutex
	dir string

	settle time.Duration
	format string
}

type Option func(*Orchestrator)

// WithLocator overrides spotdl discovery.
func WithLocator(fn LocateFunc) Option {
	return func(o *Orchestrator) { o.locate = fn }
}

// WithSettleDelay overrides the pause between process exit and the output
// snapshot, which gives the filesystem time to sync.
func WithSettleDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.settle = d }
}

// WithFormat overrides the audio format passed to spotdl.
func WithFormat(format string) Option {
	return func(o *Orchestrator) { o.format = format }
}

func New(registry *job.Registry, bus event.Bus, downloadDir string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		bus:      bus,
		locate:   spotdl.Locate,
		dir:      downloadDir,
		settle:   time.Second,
		format:   "mp3",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetDownloadDir retargets the destination directory for subsequent jobs.
// Jobs already running keep the directory they started with.
func (o *Orchestrator) SetDownloadDir(dir string) {
	o.mu.Lock()
	o.dir = dir
	o.mu.Unlock()
	log.Info().Str("folder", dir).Msg("download folder updated")
}

func (o *Orchestrator) downloadDir() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dir
}

// Submit validates the URL, registers a job in the starting state and
// launches its worker. It returns the job id without waiting for the worker.
func (o *Orchestrator) Submit(rawURL string) (string, error) {
	if !validSourceURL(rawURL) {
		return "", ErrInvalidURL
	}

	id := newJobID()
	rec := o.registry.Create(id, rawURL)
	o.bus.Publish(event.Event{Type: event.JobCreated, Job: jobEventOf(rec)})
	log.Info().Str("job_id", id).Str("url", rawURL).Msg("download submitted")

	go o.runWorker(id, rawURL)
	return id, nil
}

// Status returns a snapshot of one job.
func (o *Orchestrator) Status(id string) (job.Record, bool) {
	return o.registry.Get(id)
}

// StatusAll returns snapshots of every job, oldest first.
func (o *Orchestrator) StatusAll() []job.Record {
	return o.registry.All()
}

// Cancel stops a starting or running job. It returns false when the job is
// absent or already terminal; a second call on the same job is a no-op.
// Because the terminal write happens here, before the process is signalled,
// cancellation always wins a race with the worker's own finalization.
func (o *Orchestrator) Cancel(id string) bool {
	cancelled := o.registry.MutateIfNotTerminal(id, func(rec *job.Record) {
		rec.State = job.StateCancelled
		rec.Message = "Download cancelled"
	})
	if !cancelled {
		return false
	}
	if terminate := o.registry.Terminator(id); terminate != nil {
		terminate()
	}
	if rec, ok := o.registry.Get(id); ok {
		o.bus.Publish(event.Event{Type: event.JobCancelled, Job: jobEventOf(rec)})
	}
	return true
}

// CancelActive cancels every non-terminal job and returns how many were
// cancelled. Used on shutdown so no spotdl process outlives the server.
func (o *Orchestrator) CancelActive() int {
	n := 0
	for _, rec := range o.registry.All() {
		if !rec.State.Terminal() && o.Cancel(rec.ID) {
			n++
		}
	}
	return n
}

func validSourceURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host == "open.spotify.com"
}

func newJobID() string {
	return fmt.Sprintf("dl_%s_%s", time.Now().Format("20060102_150405"), uuid.NewString()[:8])
}

func jobEventOf(rec job.Record) event.JobEvent {
	return event.JobEvent{
		ID:       rec.ID,
		URL:      rec.URL,
		State:    string(rec.State),
		Progress: rec.Progress,
		Message:  rec.Message,
		Error:    rec.ErrorText,
		Files:    rec.OutputFiles,
	}
}
