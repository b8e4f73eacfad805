package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"lava-submitter/internal/rpc"
)

// ErrInterrupted is returned when the run was cancelled from outside (SIGINT).
// No further attempts are made after it.
var ErrInterrupted = errors.New("lava job submitter was interrupted")

// SubmitError wraps any failure while submitting a job. Always retryable.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("could not submit LAVA job. Reason: %v", e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// TimeoutError is raised when the device stops talking or a section overruns.
type TimeoutError struct {
	Msg      string
	Duration time.Duration
}

func (e *TimeoutError) Error() string { return e.Msg }

// ParseError means the log payload stayed corrupted after the parse retries.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "could not get LAVA job logs"
	}
	return fmt.Sprintf("could not get LAVA job logs. Reason: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// KnownIssueError flags a recognised environmental flake. The attempt is
// reported as canceled rather than failed.
type KnownIssueError struct {
	Issue string
	Msg   string
}

func (e *KnownIssueError) Error() string { return e.Msg }

// InfraError comes from the scheduler's structured results when the job ended
// without a harness verdict because of an infrastructure or job error.
type InfraError struct {
	JobID string
	Msg   string
}

func (e *InfraError) Error() string { return e.Msg }

// RetryError is returned once every attempt was used without a pass/fail verdict.
type RetryError struct {
	Attempts int
	Retries  int
	Causes   map[Cause]int
}

func (e *RetryError) Error() string {
	msg := fmt.Sprintf("job failed after it exceeded the number of %d retries", e.Retries)
	if len(e.Causes) == 0 {
		return msg
	}
	causes := make([]string, 0, len(e.Causes))
	for c, n := range e.Causes {
		causes = append(causes, fmt.Sprintf("%s=%d", c, n))
	}
	sort.Strings(causes)
	return msg + " (" + strings.Join(causes, ", ") + ")"
}

// Cause names why an attempt ended without a verdict.
type Cause string

const (
	CauseSubmit     Cause = "submit"
	CauseTimeout    Cause = "timeout"
	CauseParse      Cause = "parse"
	CauseKnownIssue Cause = "known_issue"
	CauseInfra      Cause = "infrastructure"
	CauseOther      Cause = "other"
)

// Disposition is what the runner does with an attempt error.
type Disposition int

const (
	Retry Disposition = iota
	RetryKnownIssue
	Interrupt
	Fatal
)

// Classify decides how the runner treats err.
func Classify(err error) (Disposition, Cause) {
	if rpc.IsFatal(err) {
		return Fatal, ""
	}
	if errors.Is(err, ErrInterrupted) || errors.Is(err, context.Canceled) {
		return Interrupt, ""
	}

	var (
		known   *KnownIssueError
		submit  *SubmitError
		timeout *TimeoutError
		parse   *ParseError
		infra   *InfraError
	)
	switch {
	case errors.As(err, &known):
		return RetryKnownIssue, CauseKnownIssue
	case errors.As(err, &submit):
		return Retry, CauseSubmit
	case errors.As(err, &timeout):
		return Retry, CauseTimeout
	case errors.As(err, &parse):
		return Retry, CauseParse
	case errors.As(err, &infra):
		return Retry, CauseInfra
	default:
		return Retry, CauseOther
	}
}
