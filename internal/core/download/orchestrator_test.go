package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FoxRefire/SpiceDL/internal/core/event"
	"github.com/FoxRefire/SpiceDL/internal/core/job"
	"github.com/FoxRefire/SpiceDL/internal/core/spotdl"
)

const trackURL = "https://open.spotify.com/track/abc123"

// stubLocator resolves to a shell script standing in for spotdl. The script
// receives the real spotdl arguments and ignores them.
func stubLocator(t *testing.T, script string) LocateFunc {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spotdl-stub")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return func(ctx context.Context) (*spotdl.Tool, error) {
		return spotdl.NewTool(path), nil
	}
}

func newTestOrchestrator(t *testing.T, script string) (*Orchestrator, string) {
	t.Helper()
	dir := t.TempDir()
	orch := New(job.NewRegistry(), event.NewBus(), dir,
		WithLocator(stubLocator(t, script)),
		WithSettleDelay(0),
	)
	return orch, dir
}

func waitTerminal(t *testing.T, orch *Orchestrator, id string) job.Record {
	t.Helper()
	require.Eventually(t, func() bool {
		rec, ok := orch.Status(id)
		return ok && rec.State.Terminal()
	}, 10*time.Second, 10*time.Millisecond)
	rec, _ := orch.Status(id)
	return rec
}

func waitState(t *testing.T, orch *Orchestrator, id string, state job.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec, ok := orch.Status(id)
		return ok && rec.State == state
	}, 10*time.Second, 10*time.Millisecond)
}

func TestSubmitInvalidURL(t *testing.T) {
	orch, _ := newTestOrchestrator(t, "exit 0")

	for _, raw := range []string{
		"https://example.com/track/abc",
		"not a url at all",
		"ftp://open.spotify.com/track/abc",
		"",
	} {
		_, err := orch.Submit(raw)
		assert.ErrorIs(t, err, ErrInvalidURL, "url %q", raw)
	}
	assert.Empty(t, orch.StatusAll(), "no job is created for a rejected URL")
}

func TestSubmitReturnsStartingBeforeWorkerOutput(t *testing.T) {
	gate := make(chan struct{})
	dir := t.TempDir()
	stub := stubLocator(t, "exit 0")
	orch := New(job.NewRegistry(), event.NewBus(), dir,
		WithSettleDelay(0),
		WithLocator(func(ctx context.Context) (*spotdl.Tool, error) {
			<-gate
			return stub(ctx)
		}),
	)

	id, err := orch.Submit(trackURL)
	require.NoError(t, err)

	rec, ok := orch.Status(id)
	require.True(t, ok)
	assert.Equal(t, job.StateStarting, rec.State)
	assert.Nil(t, rec.CompletedAt)

	close(gate)
	waitTerminal(t, orch, id)
}

func TestStatusAndCancelUnknownID(t *testing.T) {
	orch, _ := newTestOrchestrator(t, "exit 0")

	_, ok := orch.Status("dl_missing")
	assert.False(t, ok)
	assert.False(t, orch.Cancel("dl_missing"))
}

func TestEndToEndCompleted(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "Artist - Title.mp3")
	script := fmt.Sprintf("echo \"1/1\"\n: > %q\nexit 0", out)
	orch := New(job.NewRegistry(), event.NewBus(), dir,
		WithLocator(stubLocator(t, script)),
		WithSettleDelay(0),
	)

	id, err := orch.Submit(trackURL)
	require.NoError(t, err)

	rec := waitTerminal(t, orch, id)
	assert.Equal(t, job.StateCompleted, rec.State)
	assert.Equal(t, 100, rec.Progress)
	assert.Equal(t, 1, rec.CompletedUnits)
	assert.Equal(t, 1, rec.TotalUnits)
	require.Len(t, rec.OutputFiles, 1)
	assert.Equal(t, "Artist - Title.mp3", rec.OutputFiles[0])
	assert.Contains(t, rec.Message, "Artist - Title.mp3")
	require.NotNil(t, rec.CompletedAt)
}

func TestProgressFoldFromCounters(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "a.mp3")
	script := fmt.Sprintf("echo foo\necho \"3/10 downloading\"\necho bar\n: > %q\nexit 0", out)
	orch := New(job.NewRegistry(), event.NewBus(), dir,
		WithLocator(stubLocator(t, script)),
		WithSettleDelay(0),
	)

	var mu sync.Mutex
	var seen []int
	orchBusProgress(orch, func(p int) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})

	id, err := orch.Submit(trackURL)
	require.NoError(t, err)
	rec := waitTerminal(t, orch, id)

	assert.Equal(t, job.StateCompleted, rec.State)
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, 30, seen[0], "3/10 folds to 30 percent")
}

// orchBusProgress subscribes to progress events on the orchestrator's bus.
func orchBusProgress(orch *Orchestrator, fn func(int)) {
	orch.bus.Subscribe(event.JobProgress, func(ev event.Event) {
		fn(ev.Job.Progress)
	})
}

func TestErrorLineDeduplicated(t *testing.T) {
	// The same error twice in a row is recorded once. The stub then sleeps so
	// the accumulated error text can be observed while the job is running.
	script := "echo \"ERROR: boom\"\necho \"ERROR: boom\"\nsleep 30"
	orch, _ := newTestOrchestrator(t, script)

	id, err := orch.Submit(trackURL)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		rec, ok := orch.Status(id)
		return ok && rec.ErrorText != ""
	}, 10*time.Second, 10*time.Millisecond)

	// Both lines are emitted before the stub sleeps; let the second fold.
	time.Sleep(100 * time.Millisecond)
	rec, _ := orch.Status(id)
	assert.Equal(t, 1, strings.Count(rec.ErrorText, "ERROR: boom"))

	require.True(t, orch.Cancel(id))
	waitTerminal(t, orch, id)
}

func TestPercentNeverLowersProgress(t *testing.T) {
	script := "echo \"progress 45% done\"\necho \"progress 30% done\"\nsleep 30"
	orch, _ := newTestOrchestrator(t, script)

	id, err := orch.Submit(trackURL)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		rec, ok := orch.Status(id)
		return ok && rec.Progress == 45
	}, 10*time.Second, 10*time.Millisecond)

	// The lower percent must not have won, now or later.
	time.Sleep(100 * time.Millisecond)
	rec, _ := orch.Status(id)
	assert.Equal(t, 45, rec.Progress)

	require.True(t, orch.Cancel(id))
	waitTerminal(t, orch, id)
}

func TestZeroExitNoFilesIsFailure(t *testing.T) {
	// Best-effort heuristic: a clean exit with an empty snapshot diff is
	// treated as failure, even though a legitimately empty result set would
	// be misclassified the same way.
	orch, _ := newTestOrchestrator(t, "echo \"Processing query\"\nexit 0")

	id, err := orch.Submit(trackURL)
	require.NoError(t, err)

	rec := waitTerminal(t, orch, id)
	assert.Equal(t, job.StateFailed, rec.State)
	assert.Equal(t, "Download completed but no files were created", rec.Message)
	assert.Contains(t, rec.ErrorText, "Processing query")
	assert.Empty(t, rec.OutputFiles)
}

func TestNonZeroExitIsFailure(t *testing.T) {
	orch, _ := newTestOrchestrator(t, "echo \"ERROR: could not match any results\"\nexit 2")

	id, err := orch.Submit(trackURL)
	require.NoError(t, err)

	rec := waitTerminal(t, orch, id)
	assert.Equal(t, job.StateFailed, rec.State)
	assert.Equal(t, "Download failed with code 2", rec.Message)
	assert.Contains(t, rec.ErrorText, "could not match any results")
}

func TestNonZeroExitNoOutput(t *testing.T) {
	orch, _ := newTestOrchestrator(t, "exit 7")

	id, err := orch.Submit(trackURL)
	require.NoError(t, err)

	rec := waitTerminal(t, orch, id)
	assert.Equal(t, job.StateFailed, rec.State)
	assert.Contains(t, rec.ErrorText, "exited with code 7")
}

func TestOverlongOutputLineStillReachesTerminalState(t *testing.T) {
	// A single line past the scanner limit stops line folding; the stream is
	// drained regardless, so the process exits and the job still finalizes
	// instead of sitting in running forever.
	script := `head -c 2097152 /dev/zero | tr '\0' x; echo; exit 0`
	orch, _ := newTestOrchestrator(t, script)

	id, err := orch.Submit(trackURL)
	require.NoError(t, err)

	rec := waitTerminal(t, orch, id)
	assert.Equal(t, job.StateFailed, rec.State)
	assert.Equal(t, "Download completed but no files were created", rec.Message)
}

func TestCapturedOutputKeepsLastLines(t *testing.T) {
	// 600 lines through a failing run; only the newest 500 survive as the
	// failure diagnostics.
	script := "i=0\nwhile [ $i -lt 600 ]; do echo \"line $i\"; i=$((i+1)); done\nexit 1"
	orch, _ := newTestOrchestrator(t, script)

	id, err := orch.Submit(trackURL)
	require.NoError(t, err)

	rec := waitTerminal(t, orch, id)
	require.Equal(t, job.StateFailed, rec.State)

	lines := strings.Split(rec.ErrorText, "\n")
	require.Len(t, lines, 500)
	assert.Equal(t, "line 100", lines[0])
	assert.Equal(t, "line 599", lines[499])
}

func TestToolNotFoundFailsJob(t *testing.T) {
	orch := New(job.NewRegistry(), event.NewBus(), t.TempDir(),
		WithSettleDelay(0),
		WithLocator(func(ctx context.Context) (*spotdl.Tool, error) {
			return nil, spotdl.ErrToolNotFound
		}),
	)

	id, err := orch.Submit(trackURL)
	require.NoError(t, err, "a missing tool surfaces as a failed job, not a submit error")

	rec := waitTerminal(t, orch, id)
	assert.Equal(t, job.StateFailed, rec.State)
	assert.Contains(t, rec.Message, "spotdl")
}

func TestCancelRunningJob(t *testing.T) {
	orch, _ := newTestOrchestrator(t, "echo started\nsleep 30")

	id, err := orch.Submit(trackURL)
	require.NoError(t, err)
	waitState(t, orch, id, job.StateRunning)

	assert.True(t, orch.Cancel(id))
	assert.False(t, orch.Cancel(id), "second cancel is a no-op")

	rec := waitTerminal(t, orch, id)
	assert.Equal(t, job.StateCancelled, rec.State)
	assert.Equal(t, "Download cancelled", rec.Message)
	require.NotNil(t, rec.CompletedAt)
	completedAt := *rec.CompletedAt

	// Let the worker's finalization run; it must not overwrite cancellation.
	time.Sleep(200 * time.Millisecond)
	rec, _ = orch.Status(id)
	assert.Equal(t, job.StateCancelled, rec.State)
	assert.Equal(t, completedAt, *rec.CompletedAt)
}

func TestCancelBeforeRunningReapsProcess(t *testing.T) {
	// Cancelled while the locator is still resolving: the worker must still
	// spawn-terminate-drain the process without ever leaving starting, even
	// when the process ignores the interrupt and writes heavily.
	gate := make(chan struct{})
	script := "trap '' INT\nhead -c 1048576 /dev/zero | tr '\\0' x\necho\nexit 0"
	stub := stubLocator(t, script)
	orch := New(job.NewRegistry(), event.NewBus(), t.TempDir(),
		WithSettleDelay(0),
		WithLocator(func(ctx context.Context) (*spotdl.Tool, error) {
			<-gate
			return stub(ctx)
		}),
	)

	id, err := orch.Submit(trackURL)
	require.NoError(t, err)
	require.True(t, orch.Cancel(id))
	close(gate)

	rec, _ := orch.Status(id)
	assert.Equal(t, job.StateCancelled, rec.State)

	// The worker's reap path must not flip the record afterwards.
	time.Sleep(300 * time.Millisecond)
	rec, _ = orch.Status(id)
	assert.Equal(t, job.StateCancelled, rec.State)
	assert.Equal(t, "Download cancelled", rec.Message)
}

func TestCancelWinsRaceWithCompletion(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "late.mp3")
	// The stub produces a file and exits cleanly; the job is cancelled while
	// it is still running, so the final state must be cancelled regardless.
	script := fmt.Sprintf(": > %q\necho started\nsleep 30", out)
	orch := New(job.NewRegistry(), event.NewBus(), dir,
		WithLocator(stubLocator(t, script)),
		WithSettleDelay(0),
	)

	id, err := orch.Submit(trackURL)
	require.NoError(t, err)
	waitState(t, orch, id, job.StateRunning)

	require.True(t, orch.Cancel(id))
	rec := waitTerminal(t, orch, id)
	assert.Equal(t, job.StateCancelled, rec.State)

	time.Sleep(200 * time.Millisecond)
	rec, _ = orch.Status(id)
	assert.Equal(t, job.StateCancelled, rec.State, "cancellation always wins")
	assert.Empty(t, rec.OutputFiles)
}

func TestSetDownloadDirAppliesToNextJob(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	out := filepath.Join(second, "song.mp3")
	script := fmt.Sprintf(": > %q\nexit 0", out)
	orch := New(job.NewRegistry(), event.NewBus(), first,
		WithLocator(stubLocator(t, script)),
		WithSettleDelay(0),
	)

	orch.SetDownloadDir(second)

	id, err := orch.Submit(trackURL)
	require.NoError(t, err)
	rec := waitTerminal(t, orch, id)

	assert.Equal(t, job.StateCompleted, rec.State)
	require.Len(t, rec.OutputFiles, 1)
	assert.Equal(t, "song.mp3", rec.OutputFiles[0])
}

func TestCancelActive(t *testing.T) {
	orch, _ := newTestOrchestrator(t, "sleep 30")

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := orch.Submit(trackURL)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for _, id := range ids {
		waitState(t, orch, id, job.StateRunning)
	}

	assert.Equal(t, 3, orch.CancelActive())
	for _, id := range ids {
		rec := waitTerminal(t, orch, id)
		assert.Equal(t, job.StateCancelled, rec.State)
	}
	assert.Equal(t, 0, orch.CancelActive())
}

func TestBuildArgsTemplates(t *testing.T) {
	args := buildArgs("https://open.spotify.com/album/xyz", "/dl", "mp3")
	assert.Contains(t, strings.Join(args, " "), "{album-artist} - {album}")

	args = buildArgs("https://open.spotify.com/playlist/xyz", "/dl", "mp3")
	assert.Contains(t, strings.Join(args, " "), "{track-number} - {title}.{output-ext}")

	args = buildArgs(trackURL, "/dl", "mp3")
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "{artist} - {title}.{output-ext}")
	assert.NotContains(t, joined, "{album-artist}")
	assert.Contains(t, joined, "--simple-tui")
}

func TestURLKind(t *testing.T) {
	assert.Equal(t, "track", urlKind(trackURL))
	assert.Equal(t, "album", urlKind("https://open.spotify.com/album/x"))
	assert.Equal(t, "playlist", urlKind("https://open.spotify.com/playlist/x"))
	assert.Equal(t, "artist", urlKind("https://open.spotify.com/artist/x"))
	assert.Equal(t, "unknown", urlKind("https://open.spotify.com/show/x"))
}

func TestSummarizeFiles(t *testing.T) {
	files := []string{"a", "b", "c", "d", "e", "f", "g"}
	assert.Equal(t, "a, b, c, d, e and 2 more", summarizeFiles(files))
	assert.Equal(t, "a, b", summarizeFiles(files[:2]))
}
