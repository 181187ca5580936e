// Package spotdl locates and supervises the external spotDL process. The tool
// is an opaque subprocess: its textual output is a parsing contract handled
// elsewhere, this package only deals in processes and lines.
package spotdl

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrToolNotFound means no runnable spotdl invocation could be discovered.
var ErrToolNotFound = errors.New("spotdl not found; install it with `pip install spotdl`")

const probeTimeout = 5 * time.Second

// Tool is a resolved spotdl invocation: either the binary itself or a
// `python -m spotdl` module call.
type Tool struct {
	argv []string
}

// NewTool wraps an explicit argv as a resolved tool. Used when the invocation
// is known up front (tests, custom configuration).
func NewTool(argv ...string) *Tool {
	return &Tool{argv: argv}
}

// Command returns the binary and full argument list for running the tool with
// the given extra arguments.
func (t *Tool) Command(args ...string) (string, []string) {
	full := append(append([]string(nil), t.argv[1:]...), args...)
	return t.argv[0], full
}

func (t *Tool) String() string { return strings.Join(t.argv, " ") }

// Locate resolves a runnable spotdl command using the default binary name.
func Locate(ctx context.Context) (*Tool, error) {
	return LocateBinary(ctx, "spotdl")
}

// LocateBinary resolves a runnable spotdl command. Discovery order: the named
// binary on PATH, then `python -m spotdl` and `python3 -m spotdl`, each
// verified with a bounded --version probe.
func LocateBinary(ctx context.Context, binary string) (*Tool, error) {
	if binary == "" {
		binary = "spotdl"
	}
	if path, err := exec.LookPath(binary); err == nil {
		return &Tool{argv: []string{path}}, nil
	}
	for _, interp := range []string{"python", "python3"} {
		path, err := exec.LookPath(interp)
		if err != nil {
			continue
		}
		if probe(ctx, path, "-m", "spotdl", "--version") {
			return &Tool{argv: []string{path, "-m", "spotdl"}}, nil
		}
	}
	return nil, ErrToolNotFound
}

func probe(ctx context.Context, name string, args ...string) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	err := exec.CommandContext(ctx, name, args...).Run()
	if err != nil {
		log.Debug().Str("bin", name).Err(err).Msg("spotdl probe failed")
	}
	return err == nil
}

// Version runs the tool's --version probe with a bounded timeout.
func (t *Tool) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	name, args := t.Command("--version")
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("spotdl version: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Dependency is the availability report for one external requirement.
type Dependency struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
}

// Dependencies reports which external tools are installed. ffmpeg is required
// by spotdl for audio conversion, so it is surfaced alongside spotdl itself.
func Dependencies(ctx context.Context) []Dependency {
	deps := []Dependency{{Name: "spotdl"}, {Name: "ffmpeg"}}
	if tool, err := Locate(ctx); err == nil {
		deps[0].Available = true
		deps[0].Path = tool.String()
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		deps[1].Available = true
		deps[1].Path = path
	}
	return deps
}
