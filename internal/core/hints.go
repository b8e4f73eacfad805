package core

import (
	"regexp"

	"lava-submitter/internal/console"
	"lava-submitter/internal/metrics"
)

// DefaultR8152Threshold is how many consecutive r8152 transmit errors must be
// seen before an NFS stall is blamed on the adapter.
const DefaultR8152Threshold = 10

var (
	r8152TxError   = regexp.MustCompile(`r8152 \S+ eth0: Tx status -71`)
	nfsNotResponse = regexp.MustCompile(`nfs: server \d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3} not responding, still trying`)
)

// Hints watches the live log for known environmental failures.
// It is scoped to one attempt.
type Hints struct {
	threshold int
	r8152     int
}

func NewHints(threshold int) *Hints {
	if threshold <= 0 {
		threshold = DefaultR8152Threshold
	}
	return &Hints{threshold: threshold}
}

// Observe checks one line seen while the job was in phase. Any line that does
// not continue the pattern resets the counter, whatever its channel.
func (h *Hints) Observe(phase SectionType, line LogLine) error {
	if phase == SectionTestCase && line.Level == LevelTarget && !line.IsDump() {
		if r8152TxError.MatchString(line.Text) {
			h.r8152++
			return nil
		}
		if h.r8152 >= h.threshold && nfsNotResponse.MatchString(line.Text) {
			h.r8152 = 0
			metrics.IncKnownIssue("r8152")
			return &KnownIssueError{
				Issue: "r8152",
				Msg:   console.FgMagenta + "Probable network issue failure encountered, retrying the job" + console.Reset,
			}
		}
	}
	h.r8152 = 0
	return nil
}
