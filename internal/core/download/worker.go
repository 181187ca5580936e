package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/FoxRefire/SpiceDL/internal/core/event"
	"github.com/FoxRefire/SpiceDL/internal/core/job"
	"github.com/FoxRefire/SpiceDL/internal/core/progress"
	"github.com/FoxRefire/SpiceDL/internal/core/spotdl"
)

// capturedOutputLimit bounds how many output lines are retained for failure
// diagnostics.
const capturedOutputLimit = 500

// runWorker drives one job from starting to a terminal state. Every failure
// is converted into a terminal failed record here at the worker boundary;
// nothing propagates out, and no job is left running indefinitely.
func (o *Orchestrator) runWorker(id, rawURL string) {
	if err := o.download(id, rawURL); err != nil {
		o.fail(id, err.Error(), err.Error())
	}
}

func (o *Orchestrator) download(id, rawURL string) error {
	ctx := context.Background()

	tool, err := o.locate(ctx)
	if err != nil {
		return err
	}

	dir := o.downloadDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create download folder: %w", err)
	}

	// Snapshot existing files so completion can be verified by diff: a zero
	// exit code alone does not prove spotdl produced anything.
	before := snapshotFiles(dir)

	name, args := tool.Command(buildArgs(rawURL, dir, o.format)...)
	log.Info().Str("job_id", id).Str("bin", name).Strs("args", args).Msg("starting spotdl")

	h, err := spotdl.Start(name, args...)
	if err != nil {
		return fmt.Errorf("spawn spotdl: %w", err)
	}
	o.registry.SetTerminator(id, h.Terminate)

	if !o.registry.MutateIfNotTerminal(id, func(rec *job.Record) {
		rec.State = job.StateRunning
		rec.Message = "Starting spotDL..."
	}) {
		// Cancelled before the process was registered; reap it and stop. The
		// stream must still be drained or a chatty process can block on a
		// full pipe and outlive the grace period.
		h.Terminate()
		h.Drain()
		h.Wait()
		return nil
	}
	if rec, ok := o.registry.Get(id); ok {
		o.bus.Publish(event.Event{Type: event.JobStarted, Job: jobEventOf(rec)})
	}

	captured := make([]string, 0, 64)
	lastAppended := ""
	for h.Scan() {
		line := h.Text()
		log.Debug().Str("job_id", id).Str("spotdl", line).Msg("spotdl output")
		if len(captured) < capturedOutputLimit {
			captured = append(captured, line)
		} else {
			copy(captured, captured[1:])
			captured[len(captured)-1] = line
		}
		o.foldLine(id, line, &lastAppended)
	}
	if err := h.Err(); err != nil {
		log.Warn().Str("job_id", id).Err(err).Msg("spotdl output scan stopped early")
	}

	// Scan stops on EOF but also on an over-long line; drain whatever is left
	// so the process is never wedged writing to a full pipe.
	h.Drain()
	exitCode := h.Wait()

	// Give the filesystem a moment to settle before diffing.
	if o.settle > 0 {
		time.Sleep(o.settle)
	}

	after := snapshotFiles(dir)
	o.finalize(id, exitCode, diffFiles(before, after), strings.Join(captured, "\n"))
	return nil
}

// foldLine applies one classified output line to the record. Updates are
// dropped once the job is terminal, so a cancelled job never moves again.
func (o *Orchestrator) foldLine(id, line string, lastAppended *string) {
	ev := progress.Classify(line)
	if ev.Kind == progress.KindNoise && !ev.Error {
		return
	}

	var progressed bool
	o.registry.MutateIfNotTerminal(id, func(rec *job.Record) {
		switch ev.Kind {
		case progress.KindProgress:
			rec.CompletedUnits = ev.Completed
			rec.TotalUnits = ev.Total
			if ev.Total > 0 {
				rec.Progress = clampPercent(ev.Completed * 100 / ev.Total)
			}
			rec.Message = fmt.Sprintf("Downloading %d/%d tracks", ev.Completed, ev.Total)
			progressed = true
		case progress.KindInfo:
			rec.Message = ev.Text
		case progress.KindPercent:
			// A bare percent never lowers progress; fresh counter data is the
			// only thing allowed to recompute it.
			if p := clampPercent(ev.Percent); p > rec.Progress {
				rec.Progress = p
			}
		}
		if ev.Error && ev.Text != *lastAppended {
			if rec.ErrorText == "" {
				rec.ErrorText = ev.Text
			} else {
				rec.ErrorText += "\n" + ev.Text
			}
			*lastAppended = ev.Text
		}
	})

	if progressed {
		if rec, ok := o.registry.Get(id); ok {
			o.bus.Publish(event.Event{Type: event.JobProgress, Job: jobEventOf(rec)})
		}
	}
}

// finalize writes the terminal state after process exit. It goes through
// MutateIfNotTerminal, so a cancellation that raced the exit always wins.
func (o *Orchestrator) finalize(id string, exitCode int, newFiles []string, output string) {
	if exitCode == 0 && len(newFiles) > 0 {
		if o.registry.MutateIfNotTerminal(id, func(rec *job.Record) {
			rec.State = job.StateCompleted
			rec.Progress = 100
			rec.OutputFiles = newFiles
			rec.Message = "Download completed successfully. Files: " + summarizeFiles(newFiles)
		}) {
			if rec, ok := o.registry.Get(id); ok {
				o.bus.Publish(event.Event{Type: event.JobCompleted, Job: jobEventOf(rec)})
			}
			log.Info().Str("job_id", id).Int("files", len(newFiles)).Msg("download complete")
		}
		return
	}

	message := fmt.Sprintf("Download failed with code %d", exitCode)
	errText := output
	if exitCode == 0 {
		// spotdl exited cleanly without producing files; treat as failure.
		message = "Download completed but no files were created"
		if errText == "" {
			errText = "No output from spotDL. Check if spotDL is properly installed and configured."
		}
		log.Warn().Str("job_id", id).Str("folder", o.downloadDir()).Msg("spotdl returned 0 but no files were created")
	} else if errText == "" {
		errText = fmt.Sprintf("Process exited with code %d", exitCode)
	}
	o.fail(id, message, errText)
}

// fail moves the job to failed with diagnostic text, unless it is already
// terminal (e.g. cancelled while we were deciding).
func (o *Orchestrator) fail(id, message, errText string) {
	if o.registry.MutateIfNotTerminal(id, func(rec *job.Record) {
		rec.State = job.StateFailed
		rec.Message = message
		if errText != "" {
			rec.ErrorText = errText
		}
	}) {
		if rec, ok := o.registry.Get(id); ok {
			o.bus.Publish(event.Event{Type: event.JobFailed, Job: jobEventOf(rec)})
		}
	}
}

// buildArgs assembles the spotdl command line. Album and playlist URLs group
// output into per-album folders; the {...} placeholders are template tokens
// expanded by spotdl itself, never by us.
func buildArgs(rawURL, dir, format string) []string {
	var template string
	switch urlKind(rawURL) {
	case "album", "playlist":
		template = filepath.Join(dir, "{album-artist} - {album}", "{track-number} - {title}.{output-ext}")
	default:
		template = filepath.Join(dir, "{artist} - {title}.{output-ext}")
	}
	return []string{
		"download", rawURL,
		"--output", template,
		"--format", format,
		"--simple-tui",
		"--playlist-retain-track-cover",
	}
}

// urlKind extracts the item type from a Spotify URL path.
func urlKind(rawURL string) string {
	for _, kind := range []string{"track", "album", "playlist", "artist"} {
		if strings.Contains(rawURL, "/"+kind+"/") {
			return kind
		}
	}
	return "unknown"
}

// summarizeFiles names up to five files plus a count of the remainder.
func summarizeFiles(files []string) string {
	if len(files) <= 5 {
		return strings.Join(files, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(files[:5], ", "), len(files)-5)
}

func clampPercent(p int) int {
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}
