package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"lava-submitter/internal/config"
	"lava-submitter/internal/core"
	"lava-submitter/internal/logging"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var cancelWorkers int

func init() {
	cancelCmd := &cobra.Command{
		Use:   "cancel ID [ID...]",
		Short: "Cancel remote jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, ids []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log := logging.New(cfg.Log)
			sched, closeSched, err := newScheduler(cfg, log)
			if err != nil {
				return err
			}
			defer closeSched()

			return cancelJobs(cmd.Context(), sched, ids, cancelWorkers, log)
		},
	}
	cancelCmd.Flags().IntVar(&cancelWorkers, "workers", 4, "Number of concurrent cancel requests")
	rootCmd.AddCommand(cancelCmd)
}

// cancelJobs cancels every id with at most workers requests in flight. One
// failure does not stop the others.
func cancelJobs(ctx context.Context, sched core.Scheduler, ids []string, workers int, log *zerolog.Logger) error {
	if workers <= 0 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)

	var failed atomic.Int32
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := sched.Cancel(ctx, id); err != nil {
				failed.Add(1)
				log.Error().Err(err).Str("job_id", id).Msg("cancel failed")
				return nil
			}
			log.Info().Str("job_id", id).Msg("job canceled")
			return nil
		})
	}
	g.Wait()

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d jobs could not be canceled", n, len(ids))
	}
	return nil
}
