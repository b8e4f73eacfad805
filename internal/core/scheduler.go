package core

import "context"

// Scheduler is the remote test-lab scheduler. Implementations carry no per-job
// state: the job id is passed on every call.
type Scheduler interface {
	Submit(ctx context.Context, definition string) (string, error)
	Cancel(ctx context.Context, jobID string) error
	JobState(ctx context.Context, jobID string) (string, error)
	// Logs returns the records after offset. data is empty when nothing new
	// was written.
	Logs(ctx context.Context, jobID string, offset int) (finished bool, data []byte, err error)
	// Results returns the structured test results as YAML.
	Results(ctx context.Context, jobID string) ([]byte, error)
	Show(ctx context.Context, jobID string) (map[string]interface{}, error)
	Validate(ctx context.Context, definition string) (map[string]interface{}, error)
}
