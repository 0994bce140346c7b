// Command doprf-cli is an operator tool for the DOPRF committee: generate
// a keyshare committee, run a simulated batch end to end against it, and
// verify a standalone screening proof.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	outputFile string
	inputFile  string
	verbose    bool

	// Keygen flags
	threshold int
	parties   int

	// Simulate flags
	windowsFlag []string
	quorumFlag  []string

	// Verify flags
	payloadFile string

	rootCmd = &cobra.Command{
		Use:   "doprf-cli",
		Short: "Operator CLI for the DOPRF committee",
		Long:  `Generate keyshare committees, run simulated screening batches, and verify standalone proofs.`,
	}

	keygenCmd = &cobra.Command{
		Use:   "keygen",
		Short: "Generate a threshold keyshare committee",
		Long:  `Generate a committee secret, its Shamir shares, and the active-security key derived from them.`,
		RunE:  runKeygen,
	}

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulated screening batch end to end",
		Long:  `Blind, hash, incorporate, and verify a batch of windows against a committee file, printing the reconstructed screening result.`,
		RunE:  runSimulate,
	}

	verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Verify a standalone verification-proof",
		Long:  `Load a sealed verification-proof and its payload, and report whether the HDB would accept it.`,
		RunE:  runVerify,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	keygenCmd.Flags().IntVarP(&threshold, "threshold", "t", 0, "required keyholders (required)")
	keygenCmd.Flags().IntVarP(&parties, "parties", "n", 0, "total keyholders (required)")
	keygenCmd.Flags().StringVarP(&outputFile, "output", "o", "", "committee output file (required)")
	mustMarkRequired(keygenCmd, "threshold", "parties", "output")

	simulateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "committee file from keygen (required)")
	simulateCmd.Flags().StringSliceVarP(&windowsFlag, "window", "w", nil, "window message to screen (repeatable)")
	simulateCmd.Flags().StringSliceVarP(&quorumFlag, "quorum", "q", nil, "keyserver ids answering the batch (repeatable, required)")
	mustMarkRequired(simulateCmd, "input", "quorum")

	verifyCmd.Flags().StringVarP(&inputFile, "proof", "p", "", "sealed verification-proof file (required)")
	verifyCmd.Flags().StringVarP(&payloadFile, "payload", "d", "", "packed tagged-hash payload file (required)")
	mustMarkRequired(verifyCmd, "proof", "payload")

	rootCmd.AddCommand(keygenCmd, simulateCmd, verifyCmd)
}

func mustMarkRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
