package core

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"lava-submitter/internal/console"
	"lava-submitter/internal/metrics"

	"github.com/rs/zerolog"
)

// LogArchive stores the console output of each attempt.
type LogArchive interface {
	Create(name string, attempt int) (w io.WriteCloser, path string, err error)
}

// AttemptRecord is the outcome of one attempt.
type AttemptRecord struct {
	RunID    string
	Name     string
	Attempt  int
	JobID    string
	Status   Status
	Cause    Cause
	Error    string
	LogPath  string
	Started  time.Time
	Finished time.Time
}

// AttemptRecorder keeps a history of attempts.
type AttemptRecorder interface {
	Record(rec AttemptRecord) error
}

var statusColours = map[Status]string{
	StatusPass:     console.FgGreen,
	StatusHung:     console.FgYellow,
	StatusFail:     console.FgRed,
	StatusCanceled: console.FgMagenta,
}

// detachedTimeout bounds remote cleanup done after the run context is gone.
const detachedTimeout = 2 * time.Minute

// Runner retries whole job submissions until one reaches a pass/fail verdict
// or the retry budget is spent.
type Runner struct {
	RunID    string
	Name     string
	Retries  int
	Sink     StatusSink
	Archive  LogArchive
	Recorder AttemptRecorder

	sched Scheduler
	exec  *Executor
	clock Clock
	out   *console.Printer
	log   *zerolog.Logger
}

func NewRunner(sched Scheduler, exec *Executor, retries int, clock Clock, out *console.Printer, log *zerolog.Logger) *Runner {
	if clock == nil {
		clock = RealClock{}
	}
	if out == nil {
		out = console.NewPrinter(nil)
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	if retries < 0 {
		retries = 0
	}
	return &Runner{Retries: retries, sched: sched, exec: exec, clock: clock, out: out, log: log}
}

// Run submits definition up to Retries+1 times. It returns the job of the
// first attempt that reached a verdict, or a *RetryError. ErrInterrupted and
// fatal RPC errors end the run at once.
func (r *Runner) Run(ctx context.Context, definition string) (*Job, error) {
	causes := map[Cause]int{}
	maxAttempts := r.Retries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		job, err := r.attempt(ctx, definition, attempt, causes)
		if err != nil {
			return job, err
		}
		if job.HasVerdict() {
			return job, nil
		}
	}

	return nil, &RetryError{Attempts: maxAttempts, Retries: r.Retries, Causes: causes}
}

// attempt runs one submission. The returned error is set only when the whole
// run must stop.
func (r *Runner) attempt(ctx context.Context, definition string, n int, causes map[Cause]int) (*Job, error) {
	log := r.log.With().Int("attempt", n).Logger()
	out := r.out
	var (
		logPath string
		archive io.WriteCloser
	)
	if r.Archive != nil {
		w, path, err := r.Archive.Create(r.Name, n)
		if err != nil {
			log.Warn().Err(err).Msg("could not create attempt log archive")
		} else {
			archive = w
			out = r.out.Tee(w)
			logPath = path
		}
	}

	job := NewJob(r.sched, definition, r.clock)
	started := r.clock.Now()
	report := func(j *Job, section string) {
		r.publish(ctx, n, j, section, "")
	}

	err := r.exec.Follow(ctx, job, out, report)

	var (
		stop  error
		cause Cause
		fatal bool
	)
	cleanup := context.WithoutCancel(ctx)
	if err == nil {
		metrics.IncAttempt("verdict")
	} else {
		var disp Disposition
		disp, cause = Classify(err)
		log = log.With().Str("job_id", job.ID).Logger()
		switch disp {
		case Fatal:
			metrics.IncAttempt("fatal")
			log.Error().Err(err).Msg("fatal scheduler error")
			out.Log(err.Error())
			stop = err
			fatal = true
		case Interrupt:
			metrics.IncAttempt("interrupted")
			out.Log("LAVA job submitter was interrupted. Cancelling the job.")
			r.cancel(cleanup, job, &log)
			stop = ErrInterrupted
		case RetryKnownIssue:
			metrics.IncAttempt("known_issue")
			out.Log(err.Error())
			r.cancel(cleanup, job, &log)
			job.Status = StatusCanceled
		default:
			metrics.IncAttempt("retry")
			log.Warn().Err(err).Str("cause", string(cause)).Msg("attempt failed")
			out.Log(err.Error())
			r.cancel(cleanup, job, &log)
		}
		if cause != "" {
			causes[cause]++
		}
	}

	out.Log(fmt.Sprintf("%sFinished executing LAVA job in the attempt #%d%s", console.Bold, n, console.Reset))
	r.printFinalStatus(cleanup, job, out, !fatal, &log)
	r.publish(cleanup, n, job, "", errString(err))
	if archive != nil {
		if cerr := archive.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("could not close attempt log archive")
		}
	}
	r.record(AttemptRecord{
		RunID:    r.RunID,
		Name:     r.Name,
		Attempt:  n,
		JobID:    job.ID,
		Status:   job.Status,
		Cause:    cause,
		Error:    errString(err),
		LogPath:  logPath,
		Started:  started,
		Finished: r.clock.Now(),
	}, &log)

	return job, stop
}

func (r *Runner) cancel(ctx context.Context, job *Job, log *zerolog.Logger) {
	ctx, done := context.WithTimeout(ctx, detachedTimeout)
	defer done()
	if err := job.Cancel(ctx); err != nil {
		log.Warn().Err(err).Msg("could not cancel job")
	}
}

// printFinalStatus prints the status line and, when the scheduler is still
// reachable, the job metadata.
func (r *Runner) printFinalStatus(ctx context.Context, job *Job, out *console.Printer, showData bool, log *zerolog.Logger) {
	if job.Status == StatusRunning {
		job.Status = StatusHung
	}
	metrics.IncFinalStatus(string(job.Status))

	colour, ok := statusColours[job.Status]
	if !ok {
		colour = console.FgRed
	}
	out.Log(fmt.Sprintf("%sLAVA Job finished with status: %s%s", colour, job.Status, console.Reset))

	if !showData || job.ID == "" {
		return
	}
	ctx, done := context.WithTimeout(ctx, detachedTimeout)
	defer done()
	r.showJobData(ctx, job, out, console.Bold+colour, log)
}

func (r *Runner) showJobData(ctx context.Context, job *Job, out *console.Printer, colour string, log *zerolog.Logger) {
	section := NewSection("job_data", "LAVA job info", SectionPostProcessing, true)
	section.Colour = colour
	out.Println(section.Open(r.clock.Now()))
	defer func() { out.Println(section.Close(r.clock.Now())) }()

	info, err := r.sched.Show(ctx, job.ID)
	if err != nil {
		log.Warn().Err(err).Msg("could not fetch job info")
		return
	}
	fields := make([]string, 0, len(info))
	for k := range info {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, k := range fields {
		out.Println(fmt.Sprintf("%-15s: %v", k, info[k]))
	}
}

func (r *Runner) publish(ctx context.Context, attempt int, job *Job, section, msg string) {
	if r.Sink == nil {
		return
	}
	snap := Snapshot{
		RunID:   r.RunID,
		Name:    r.Name,
		Attempt: attempt,
		JobID:   job.ID,
		Status:  job.Status,
		Section: section,
		Message: msg,
		Time:    r.clock.Now(),
	}
	if err := r.Sink.Publish(ctx, snap); err != nil {
		r.log.Warn().Err(err).Msg("could not publish job status")
	}
}

func (r *Runner) record(rec AttemptRecord, log *zerolog.Logger) {
	if r.Recorder == nil {
		return
	}
	if err := r.Recorder.Record(rec); err != nil {
		log.Warn().Err(err).Msg("could not record attempt")
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
