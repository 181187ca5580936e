// Package progress classifies spotdl's free-text output lines. The format is
// unversioned, so the heuristics live behind a pure function that can be
// tested against captured fixture lines without any process plumbing.
package progress

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind says what a line of tool output contributes to job state.
type Kind int

const (
	KindNoise Kind = iota
	KindProgress
	KindInfo
	KindPercent
)

// Event is the classification of one output line. Error is carried
// independently of Kind so a line can signal a failure and still be folded
// for whatever else it says.
type Event struct {
	Kind      Kind
	Completed int
	Total     int
	Percent   int
	Text      string
	Error     bool
}

var counterRe = regexp.MustCompile(`(\d+)/(\d+)`)

var (
	infoKeywords  = []string{"downloading", "fetching", "converting"}
	errorKeywords = []string{"error", "failed", "exception"}
)

// Classify maps one line of spotdl output to an Event. It never fails:
// anything unrecognized is KindNoise. A completed/total counter match
// suppresses the weaker keyword and percent heuristics so one line is never
// counted twice.
func Classify(line string) Event {
	text := strings.TrimSpace(line)
	lower := strings.ToLower(text)

	ev := Event{Kind: KindNoise, Text: text}
	for _, kw := range errorKeywords {
		if strings.Contains(lower, kw) {
			ev.Error = true
			break
		}
	}

	if m := counterRe.FindStringSubmatch(text); m != nil {
		completed, err1 := strconv.Atoi(m[1])
		total, err2 := strconv.Atoi(m[2])
		if err1 == nil && err2 == nil {
			ev.Kind = KindProgress
			ev.Completed = completed
			ev.Total = total
			return ev
		}
	}

	for _, kw := range infoKeywords {
		if strings.Contains(lower, kw) {
			ev.Kind = KindInfo
			return ev
		}
	}

	if i := strings.IndexByte(text, '%'); i >= 0 {
		fields := strings.Fields(text[:i])
		if len(fields) > 0 {
			// The percent is the integer token right before the % sign;
			// a malformed token is ignored rather than reported.
			if pct, err := strconv.Atoi(fields[len(fields)-1]); err == nil {
				ev.Kind = KindPercent
				ev.Percent = pct
				return ev
			}
		}
	}

	return ev
}
