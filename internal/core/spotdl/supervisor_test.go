package spotdl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartMergedOutputAndExitCode(t *testing.T) {
	h, err := Start("/bin/sh", "-c", `echo out-line; echo err-line >&2; exit 3`)
	require.NoError(t, err)

	var lines []string
	for h.Scan() {
		lines = append(lines, h.Text())
	}
	assert.Contains(t, lines, "out-line")
	assert.Contains(t, lines, "err-line")

	assert.Equal(t, 3, h.Wait())
}

func TestStartMissingBinary(t *testing.T) {
	_, err := Start("/nonexistent/spicedl-no-such-binary")
	require.Error(t, err)
}

func TestWaitZeroExit(t *testing.T) {
	h, err := Start("/bin/sh", "-c", "exit 0")
	require.NoError(t, err)
	for h.Scan() {
	}
	assert.Equal(t, 0, h.Wait())
}

func TestScanReadsLongLines(t *testing.T) {
	// 200KB in one line, well past bufio's 64KB default.
	h, err := Start("/bin/sh", "-c", `head -c 200000 /dev/zero | tr '\0' x; echo`)
	require.NoError(t, err)

	require.True(t, h.Scan())
	assert.Len(t, h.Text(), 200000)
	for h.Scan() {
	}
	require.NoError(t, h.Err())
	h.Drain()
	assert.Equal(t, 0, h.Wait())
}

func TestOverlongLineStopsScanButNotWait(t *testing.T) {
	// A line past maxLineSize aborts scanning; draining the rest must let
	// the process finish writing so Wait can reap it.
	h, err := Start("/bin/sh", "-c", `head -c 2097152 /dev/zero | tr '\0' x; echo; echo done; exit 0`)
	require.NoError(t, err)

	var lines int
	for h.Scan() {
		lines++
	}
	require.Error(t, h.Err())
	assert.Equal(t, 0, lines)

	start := time.Now()
	h.Drain()
	assert.Equal(t, 0, h.Wait())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDrainUnblocksTerminatedWriter(t *testing.T) {
	// The writer ignores the interrupt and is mid-write on a full pipe; the
	// drain must let it finish and exit on its own, before the kill escalation.
	script := `trap '' INT
head -c 1048576 /dev/zero | tr '\0' x
echo
exit 0`
	h, err := Start("/bin/sh", "-c", script)
	require.NoError(t, err)

	start := time.Now()
	h.Terminate()
	h.Drain()
	assert.Equal(t, 0, h.Wait())
	assert.Less(t, time.Since(start), terminateGrace)
}

func TestTerminateStopsProcess(t *testing.T) {
	h, err := Start("/bin/sh", "-c", "sleep 30")
	require.NoError(t, err)

	start := time.Now()
	go func() {
		time.Sleep(50 * time.Millisecond)
		h.Terminate()
	}()

	for h.Scan() {
	}
	code := h.Wait()
	assert.NotEqual(t, 0, code)
	assert.Less(t, time.Since(start), 10*time.Second)

	// Safe to call again after exit.
	h.Terminate()
}
