package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errNotPassed ends the process with status 1 after the job log already said
// why.
var errNotPassed = errors.New("job did not pass")

var configPath string

var rootCmd = &cobra.Command{
	Use:           "lava-submitter",
	Short:         "Submit a job to a LAVA lab and follow it to a verdict",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errNotPassed) {
			fmt.Fprintln(os.Stderr, "lava-submitter:", err)
		}
		os.Exit(1)
	}
}
