package main

import (
	"fmt"
	"path/filepath"

	"lava-submitter/internal/ledger"
	"lava-submitter/internal/security"

	"github.com/spf13/cobra"
)

func init() {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the attempt ledger",
	}

	ledgerCmd.AddCommand(&cobra.Command{
		Use:   "inspect PATH",
		Short: "List the recorded attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := ledger.Open(args[0])
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			w := cmd.OutOrStdout()
			for _, b := range l.Blocks() {
				fmt.Fprintf(w, "Index=%d Run=%s Attempt=%d Job=%s Status=%s Cause=%s Hash=%s\n",
					b.Index, b.RunID, b.Attempt, b.JobID, b.Status, b.Cause, shortHash(b.Hash))
			}
			return nil
		},
	})

	ledgerCmd.AddCommand(&cobra.Command{
		Use:   "verify PATH",
		Short: "Check hashes, links and signatures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := ledger.Open(args[0])
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			if err := l.VerifyChain(); err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Ledger verification OK")
			return nil
		},
	})

	ledgerCmd.AddCommand(&cobra.Command{
		Use:   "keygen DIR",
		Short: "Generate the ed25519 key pair used to sign blocks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := security.GenerateKeyPair()
			if err != nil {
				return err
			}
			pubPath := filepath.Join(args[0], "ledger.pub")
			privPath := filepath.Join(args[0], "ledger.priv")
			if err := security.SaveKeyPair(pub, priv, pubPath, privPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Keys written to %s and %s\n", pubPath, privPath)
			return nil
		},
	})

	rootCmd.AddCommand(ledgerCmd)
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}
