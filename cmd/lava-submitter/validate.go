package main

import (
	"context"

	"lava-submitter/internal/config"
	"lava-submitter/internal/console"
	"lava-submitter/internal/core"
	"lava-submitter/internal/logging"

	"github.com/spf13/cobra"
)

var validateDefinition string

func init() {
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Ask the scheduler to validate a job definition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log := logging.New(cfg.Log)

			definition, err := core.LoadDefinition(validateDefinition)
			if err != nil {
				return err
			}
			sched, closeSched, err := newScheduler(cfg, log)
			if err != nil {
				return err
			}
			defer closeSched()

			return checkDefinition(cmd.Context(), sched, definition, console.NewPrinter(cmd.OutOrStdout()))
		},
	}
	validateCmd.Flags().StringVar(&validateDefinition, "job-definition", "", "Path to the LAVA job definition (YAML)")
	validateCmd.MarkFlagRequired("job-definition")
	rootCmd.AddCommand(validateCmd)
}

// checkDefinition validates definition remotely and reports success on out.
func checkDefinition(ctx context.Context, sched core.Scheduler, definition string, out *console.Printer) error {
	if err := core.ValidateDefinition(ctx, sched, definition); err != nil {
		return err
	}
	out.Log("LAVA job definition validated successfully")
	return nil
}
