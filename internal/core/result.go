package core

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ResultMetadata is the part of a structured test result used to tell an
// infrastructure problem from a real failure.
type ResultMetadata struct {
	Result    string `yaml:"result"`
	ErrorType string `yaml:"error_type"`
	Case      string `yaml:"case"`
}

type TestResult struct {
	Name     string         `yaml:"name"`
	Metadata ResultMetadata `yaml:"metadata"`
}

func ParseResults(data []byte) ([]TestResult, error) {
	var results []TestResult
	if err := yaml.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decode job results: %w", err)
	}
	return results, nil
}

// CheckMetadata returns an InfraError when md describes a failure the job
// itself is not responsible for.
func CheckMetadata(jobID string, md ResultMetadata) error {
	if md.Result != "fail" {
		return nil
	}
	switch md.ErrorType {
	case "Infrastructure":
		return &InfraError{JobID: jobID, Msg: fmt.Sprintf("LAVA job %s failed with Infrastructure Error. Retry.", jobID)}
	case "Job":
		// the scheduler gave up on the job, usually an action timing out more
		// often than the definition allows
		return &InfraError{JobID: jobID, Msg: fmt.Sprintf("LAVA job %s failed with JobError (possible LAVA timeout misconfiguration/bug). Retry.", jobID)}
	}
	if md.Case == "validate" {
		return &InfraError{JobID: jobID, Msg: fmt.Sprintf("LAVA job %s failed validation (possible download error). Retry.", jobID)}
	}
	return nil
}

// FindError is used when the job ended without a harness verdict. It looks
// for infrastructure errors in the structured results and otherwise marks the
// job failed.
func (j *Job) FindError(ctx context.Context) error {
	data, err := j.sched.Results(ctx, j.ID)
	if err != nil {
		return err
	}
	results, err := ParseResults(data)
	if err != nil {
		return &ParseError{Err: err}
	}
	for _, res := range results {
		if err := CheckMetadata(j.ID, res.Metadata); err != nil {
			return err
		}
	}
	j.Status = StatusFail
	return nil
}
