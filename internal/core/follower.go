package core

import (
	"fmt"

	"lava-submitter/internal/metrics"

	"github.com/rs/zerolog"
)

// Follower turns batches of log records into job log lines, keeping track of
// the section the job is currently in. At most one section is open at a time.
type Follower struct {
	current  *Section
	timeouts Timeouts
	hints    *Hints
	clock    Clock
	buffer   []string
	verdict  Status
	log      *zerolog.Logger
}

// NewFollower opens start and queues its marker.
func NewFollower(start *Section, timeouts Timeouts, hints *Hints, clock Clock, log *zerolog.Logger) *Follower {
	if clock == nil {
		clock = RealClock{}
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	f := &Follower{timeouts: timeouts, hints: hints, clock: clock, log: log}
	if start != nil {
		f.current = start
		f.buffer = append(f.buffer, start.Open(clock.Now()))
	}
	return f
}

// Current returns the open section, nil when none is.
func (f *Follower) Current() *Section { return f.current }

// Phase is the type of the open section.
func (f *Follower) Phase() SectionType {
	if f.current == nil {
		return SectionUnknown
	}
	return f.current.Type
}

// Watchdog fails when the open section ran past its budget.
func (f *Follower) Watchdog() error {
	if f.current == nil {
		return nil
	}
	budget := f.timeouts.For(f.current.Type)
	if f.current.HasTimedOut(f.clock.Now(), budget) {
		metrics.IncSectionTimeout(f.current.Type.String())
		return &TimeoutError{
			Msg:      fmt.Sprintf("Gitlab Section %s has timed out", f.current),
			Duration: budget,
		}
	}
	return nil
}

// Verdict is the harness result seen so far, empty until then.
func (f *Follower) Verdict() Status { return f.verdict }

// Feed processes a new batch. alive is true when the batch had at least one
// record other than a kernel dump, which is taken as proof the device runs.
// Records after the harness verdict are dropped without touching sections.
func (f *Follower) Feed(lines []LogLine) (alive bool, err error) {
	if f.verdict != "" {
		return false, nil
	}
	if err := f.Watchdog(); err != nil {
		return false, err
	}

	for _, line := range lines {
		if !line.Level.Valid() {
			f.log.Debug().Str("lvl", string(line.Level)).Msg("record on unknown log level kept verbatim")
		}
		if line.IsDump() {
			f.log.Debug().Str("lvl", string(line.Level)).Int("lines", len(line.Dump)).Msg("structured payload skipped section matching")
		} else {
			alive = true
			f.updateSection(line)
		}

		if out, ok := NormalizeLine(line); ok {
			f.buffer = append(f.buffer, out)
			if status, ok := MatchVerdict(out); ok {
				f.verdict = status
				return alive, nil
			}
		}

		if f.hints != nil {
			if err := f.hints.Observe(f.Phase(), line); err != nil {
				return alive, err
			}
		}
	}
	return alive, nil
}

func (f *Follower) updateSection(line LogLine) {
	next := MatchSection(line)
	if next == nil {
		return
	}
	// the same marker may show up on several interleaved channels
	if f.current != nil && f.current.ID == next.ID {
		return
	}
	f.closeCurrent()
	f.current = next
	f.buffer = append(f.buffer, next.Open(f.clock.Now()))
	f.log.Debug().Str("section", next.ID).Str("type", next.Type.String()).Msg("section started")
}

func (f *Follower) closeCurrent() {
	if f.current == nil {
		return
	}
	if f.current.IsOpen() {
		f.buffer = append(f.buffer, f.current.Close(f.clock.Now()))
	}
	f.current = nil
}

// Flush hands over the lines produced so far.
func (f *Follower) Flush() []string {
	out := f.buffer
	f.buffer = nil
	return out
}

// Close ends the open section and returns everything not flushed yet.
// It is safe to call more than once.
func (f *Follower) Close() []string {
	f.closeCurrent()
	return f.Flush()
}
