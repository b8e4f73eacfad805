package core

import (
	"context"
	"fmt"
	"time"

	"lava-submitter/internal/console"

	"github.com/rs/zerolog"
)

// Settings holds the polling policy of one attempt.
type Settings struct {
	// HangTimeout is how long the device may stay silent before the attempt
	// is considered hung.
	HangTimeout time.Duration
	// WaitPoll is the delay between job state queries while queued.
	WaitPoll time.Duration
	// LogPoll is the delay between log fetches.
	LogPoll time.Duration
	// ParseRetries bounds consecutive corrupted log payloads.
	ParseRetries int
	Timeouts     Timeouts
	// KnownIssueThreshold is the consecutive r8152 error count that arms the
	// NFS stall detector.
	KnownIssueThreshold int
}

func DefaultSettings() Settings {
	return Settings{
		HangTimeout:         5 * time.Minute,
		WaitPoll:            10 * time.Second,
		LogPoll:             5 * time.Second,
		ParseRetries:        5,
		Timeouts:            DefaultTimeouts(),
		KnownIssueThreshold: DefaultR8152Threshold,
	}
}

// Executor runs a single attempt: submit, wait for the device, follow the log
// until the job finishes.
type Executor struct {
	settings Settings
	clock    Clock
	log      *zerolog.Logger
}

func NewExecutor(settings Settings, clock Clock, log *zerolog.Logger) *Executor {
	if clock == nil {
		clock = RealClock{}
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	if settings.ParseRetries <= 0 {
		settings.ParseRetries = 1
	}
	return &Executor{settings: settings, clock: clock, log: log}
}

// Follow drives job to completion, printing its log to out. report is called
// on every lifecycle change.
func (e *Executor) Follow(ctx context.Context, job *Job, out *console.Printer, report func(job *Job, section string)) error {
	if report == nil {
		report = func(*Job, string) {}
	}
	if err := job.Submit(ctx); err != nil {
		return err
	}
	report(job, "")

	out.Logf("Waiting for job %s to start.", job.ID)
	for {
		started, err := job.IsStarted(ctx)
		if err != nil {
			return err
		}
		if started {
			break
		}
		if err := e.clock.Sleep(ctx, e.settings.WaitPoll); err != nil {
			return err
		}
	}
	out.Logf("Job %s started.", job.ID)

	boot := NewSection("lava_boot", "LAVA boot", SectionBoot, true)
	follower := NewFollower(boot, e.settings.Timeouts, NewHints(e.settings.KnownIssueThreshold), e.clock, e.log)
	err := e.followLogs(ctx, job, follower, out, report)
	for _, line := range follower.Close() {
		out.Println(line)
	}
	if err != nil {
		return err
	}

	// a job that ended without the harness verdict most likely hit an
	// infrastructure problem
	if !job.HasVerdict() {
		return job.FindError(ctx)
	}
	return nil
}

func (e *Executor) followLogs(ctx context.Context, job *Job, f *Follower, out *console.Printer, report func(*Job, string)) error {
	job.Heartbeat()
	report(job, f.Current().ID)

	section := f.Current()
	for !job.IsFinished() {
		if err := e.fetchLogs(ctx, job, f, out); err != nil {
			return err
		}
		if cur := f.Current(); cur != section {
			section = cur
			if cur != nil {
				report(job, cur.ID)
			}
		}
	}
	return nil
}

// fetchLogs is one polling iteration.
func (e *Executor) fetchLogs(ctx context.Context, job *Job, f *Follower, out *console.Printer) error {
	// a long silence means the device died
	if idle := job.Idle(); idle > e.settings.HangTimeout {
		return &TimeoutError{
			Msg: fmt.Sprintf("%s%sLAVA job %s does not respond for %v minutes. Retry.%s",
				console.Bold, console.FgYellow, job.ID, e.settings.HangTimeout.Minutes(), console.Reset),
			Duration: e.settings.HangTimeout,
		}
	}

	if err := e.clock.Sleep(ctx, e.settings.LogPoll); err != nil {
		return err
	}

	// the binary payload is sometimes corrupted in transit
	var (
		lines []LogLine
		err   error
	)
	for i := 0; i < e.settings.ParseRetries; i++ {
		lines, err = job.FetchLogs(ctx)
		if err == nil || !isParseError(err) || ctx.Err() != nil {
			break
		}
		e.log.Warn().Err(err).Str("job_id", job.ID).Int("try", i+1).Msg("could not parse job logs")
	}
	if err != nil {
		return err
	}

	alive, err := f.Feed(lines)
	if alive {
		job.Heartbeat()
	}
	if err != nil {
		return err
	}

	if status := f.Verdict(); status != "" {
		job.SetVerdict(status)
	}
	for _, line := range f.Flush() {
		out.Println(line)
	}
	return nil
}
