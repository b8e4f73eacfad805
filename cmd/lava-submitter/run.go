package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lava-submitter/internal/config"
	"lava-submitter/internal/console"
	"lava-submitter/internal/core"
	"lava-submitter/internal/ledger"
	"lava-submitter/internal/logging"
	"lava-submitter/internal/metrics"
	"lava-submitter/internal/monitor"
	"lava-submitter/internal/security"
	"lava-submitter/internal/status"
	"lava-submitter/internal/storage"
	"lava-submitter/pkg/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	runDefinition   string
	runJobTimeout   int
	runDumpYAML     bool
	runValidateOnly bool
	runSkipValidate bool
	runName         string
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Submit the job definition and follow it, retrying on infrastructure failures",
		Args:  cobra.NoArgs,
		RunE:  runSubmit,
	}
	runCmd.Flags().StringVar(&runDefinition, "job-definition", "", "Path to the LAVA job definition (YAML)")
	runCmd.Flags().IntVar(&runJobTimeout, "job-timeout", 0, "Test case section budget in minutes (0 keeps the configured one)")
	runCmd.Flags().BoolVar(&runDumpYAML, "dump-yaml", false, "Print the job definition with sensitive lines removed")
	runCmd.Flags().BoolVar(&runValidateOnly, "validate-only", false, "Validate the job definition and exit")
	runCmd.Flags().BoolVar(&runSkipValidate, "skip-validate", false, "Do not ask the scheduler to validate the definition first")
	runCmd.Flags().StringVar(&runName, "name", "lava_job", "Name used for archived logs and status records")
	runCmd.MarkFlagRequired("job-definition")
	rootCmd.AddCommand(runCmd)
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	log := logging.WithRun(logging.New(cfg.Log), runID)
	metrics.MustRegister(nil)

	definition, err := core.LoadDefinition(runDefinition)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := console.NewPrinter(cmd.OutOrStdout())
	if runDumpYAML {
		dumpDefinition(out, definition, cfg.HideTag)
	}

	sched, closeSched, err := newScheduler(cfg, log)
	if err != nil {
		return err
	}
	defer closeSched()

	if !runSkipValidate || runValidateOnly {
		if err := checkDefinition(ctx, sched, definition, out); err != nil {
			return err
		}
		if runValidateOnly {
			return nil
		}
	}

	exec := core.NewExecutor(cfg.Settings(runJobTimeout), core.RealClock{}, log)
	runner := core.NewRunner(sched, exec, cfg.Retries(), core.RealClock{}, out, log)
	runner.RunID = runID
	runner.Name = runName

	var sinks core.Sinks

	var chain *ledger.Ledger
	if cfg.Ledger.Path != "" {
		rec, l, err := openRecorder(cfg.Ledger)
		if err != nil {
			return err
		}
		rec.DefinitionHash = utils.HashString(definition)
		runner.Recorder = rec
		chain = l
	}

	if cfg.Archive.Dir != "" {
		runner.Archive = storage.NewArchive(cfg.Archive.Dir)
	}

	if cfg.Monitor.Listen != "" {
		var verifier monitor.ChainVerifier
		if chain != nil {
			verifier = chain
		}
		mon := monitor.NewServer(verifier, nil, log)
		sinks = append(sinks, mon)
		go func() {
			if err := mon.Start(cfg.Monitor.Listen); err != nil {
				log.Error().Err(err).Msg("monitor stopped")
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mon.Shutdown(sctx)
		}()
	}

	if cfg.Redis.URL != "" {
		pub, err := status.NewRedisPublisher(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("status publishing disabled")
		} else {
			defer pub.Close()
			sinks = append(sinks, pub)
		}
	}
	if len(sinks) > 0 {
		runner.Sink = sinks
	}

	job, err := runner.Run(ctx, definition)
	return finish(job, err, log)
}

// finish maps the run outcome to the process result.
func finish(job *core.Job, err error, log *zerolog.Logger) error {
	var retry *core.RetryError
	switch {
	case err == nil:
	case errors.As(err, &retry):
		log.Error().Err(err).Msg("retries exhausted")
		return fmt.Errorf("%w: %v", errNotPassed, err)
	case errors.Is(err, core.ErrInterrupted):
		return fmt.Errorf("%w: interrupted", errNotPassed)
	default:
		return err
	}

	if job == nil || job.Status != core.StatusPass {
		return errNotPassed
	}
	return nil
}

func dumpDefinition(out *console.Printer, definition, tag string) {
	now := time.Now().Unix()
	out.Println(console.SectionStart(now, "yaml_dump", "LAVA job definition (YAML)", console.DefaultHeaderColour, true))
	out.Println(console.HideSensitiveData(definition, tag))
	out.Println(console.SectionEnd(time.Now().Unix(), "yaml_dump"))
}

func openRecorder(cfg config.LedgerConfig) (*ledger.Recorder, *ledger.Ledger, error) {
	l, err := ledger.Open(cfg.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}
	if cfg.PrivateKey == "" {
		return ledger.NewRecorder(l, nil, nil), l, nil
	}
	pub, priv, err := security.LoadKeyPair(cfg.PublicKey, cfg.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("load ledger keys: %w", err)
	}
	return ledger.NewRecorder(l, priv, pub), l, nil
}
