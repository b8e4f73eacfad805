package core

import (
	"context"
	"errors"
	"time"
)

// Snapshot is the externally visible state of a run at one point in time.
type Snapshot struct {
	RunID   string    `json:"run_id"`
	Name    string    `json:"name,omitempty"`
	Attempt int       `json:"attempt"`
	JobID   string    `json:"job_id,omitempty"`
	Status  Status    `json:"status"`
	Section string    `json:"section,omitempty"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// StatusSink receives snapshots as the run progresses.
type StatusSink interface {
	Publish(ctx context.Context, s Snapshot) error
}

// Sinks fans a snapshot out to several sinks.
type Sinks []StatusSink

func (s Sinks) Publish(ctx context.Context, snap Snapshot) error {
	var errs []error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
