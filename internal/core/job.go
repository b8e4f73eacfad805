package core

import (
	"context"
	"errors"
	"regexp"
	"time"

	"lava-submitter/internal/rpc"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusCreated   Status = "created"
	StatusSubmitted Status = "submitted"
	StatusWaiting   Status = "waiting"
	StatusRunning   Status = "running"
	StatusPass      Status = "pass"
	StatusFail      Status = "fail"
	StatusHung      Status = "hung"
	StatusCanceled  Status = "canceled"
)

// remote states meaning the job is still queued
var waitingStates = map[string]bool{
	"Submitted":  true,
	"Scheduling": true,
	"Scheduled":  true,
}

// verdictPattern is printed by the test harness once it is done.
var verdictPattern = regexp.MustCompile(`hwci: mesa: (pass|fail)`)

// Job is one remote test execution. A Job belongs to a single attempt and is
// never reused by the next one.
type Job struct {
	ID          string
	Definition  string
	Status      Status
	LastLogTime time.Time

	finished  bool
	logOffset int
	sched     Scheduler
	clock     Clock
}

func NewJob(sched Scheduler, definition string, clock Clock) *Job {
	if clock == nil {
		clock = RealClock{}
	}
	return &Job{
		Definition: definition,
		Status:     StatusCreated,
		sched:      sched,
		clock:      clock,
	}
}

// Submit sends the definition and records the remote id.
func (j *Job) Submit(ctx context.Context) error {
	id, err := j.sched.Submit(ctx, j.Definition)
	if err != nil {
		return &SubmitError{Err: err}
	}
	j.ID = id
	j.Status = StatusSubmitted
	return nil
}

// Cancel stops the remote job, if it was ever submitted.
func (j *Job) Cancel(ctx context.Context) error {
	if j.ID == "" {
		return nil
	}
	return j.sched.Cancel(ctx, j.ID)
}

// IsStarted reports whether the remote job left the queue.
func (j *Job) IsStarted(ctx context.Context) (bool, error) {
	state, err := j.sched.JobState(ctx, j.ID)
	if err != nil {
		return false, err
	}
	if waitingStates[state] {
		j.Status = StatusWaiting
		return false, nil
	}
	return true, nil
}

// Heartbeat records that the device under test is alive.
func (j *Job) Heartbeat() {
	j.LastLogTime = j.clock.Now()
	j.Status = StatusRunning
}

// Idle is the time since the last heartbeat.
func (j *Job) Idle() time.Duration {
	return j.clock.Now().Sub(j.LastLogTime)
}

func (j *Job) IsFinished() bool { return j.finished }

// HasVerdict reports whether the job reached pass or fail.
func (j *Job) HasVerdict() bool {
	return j.Status == StatusPass || j.Status == StatusFail
}

// FetchLogs pulls the records not consumed yet. The offset only moves forward
// when the payload decodes, so a corrupted chunk is asked for again.
func (j *Job) FetchLogs(ctx context.Context) ([]LogLine, error) {
	finished, data, err := j.sched.Logs(ctx, j.ID, j.logOffset)
	if err != nil {
		if rpc.IsFatal(err) {
			return nil, err
		}
		return nil, &ParseError{Err: err}
	}
	lines, err := DecodeLogChunk(data)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	j.logOffset += len(lines)
	j.finished = finished
	return lines, nil
}

// MatchVerdict reports the harness verdict carried by a rendered log line.
func MatchVerdict(line string) (Status, bool) {
	m := verdictPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return Status(m[1]), true
}

// SetVerdict records the harness result. The job is finished from then on.
func (j *Job) SetVerdict(status Status) {
	j.finished = true
	j.Status = status
}

func isParseError(err error) bool {
	var parse *ParseError
	return errors.As(err, &parse)
}
