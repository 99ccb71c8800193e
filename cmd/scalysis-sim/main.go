// Package main provides scalysis-sim, an offline cutoff simulator over a CSV
// export of scored orders.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "scalysis-sim",
	Short:         "Simulate COD risk cutoffs from a CSV of scored orders",
	Long:          "scalysis-sim builds the cutoff curve from delivered and returned orders in a CSV export and projects profit, return rate and flagged orders at a chosen cutoff.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	csvPath      string
	outputFormat string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&csvPath, "csv", "c", "", "Path to the orders CSV (required)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")

	if err := rootCmd.MarkPersistentFlagRequired("csv"); err != nil {
		panic(fmt.Sprintf("failed to mark csv flag as required: %v", err))
	}
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
