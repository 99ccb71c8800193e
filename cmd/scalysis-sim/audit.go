package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
	"github.com/500lbbicepcurl/Scalysis-public/internal/threshold"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show what the ranking removes at every cutoff",
	Long:  "Prints one row per cutoff 0..100 with the delivered and returned orders removed, their ratio and the share of removals that were true returns.",
	RunE:  runAudit,
}

var auditStep int

func init() {
	auditCmd.Flags().IntVar(&auditStep, "step", 1, "Print every n-th cutoff in text output")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, err := loadSession(ctx, csvPath, domain.SimulationConfig{})
	if err != nil {
		return err
	}
	defer s.Close()

	rows, err := s.sim.Audit(ctx, csvStoreID)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), rows)
	}
	return printAudit(cmd.OutOrStdout(), rows, auditStep)
}

func printAudit(out io.Writer, rows []threshold.AuditRow, step int) error {
	if step < 1 {
		step = 1
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "cutoff\tdelivered\treturned\tdelivery %\tdel. removed\tret. removed\tratio\taccuracy %\t")
	for i, r := range rows {
		if i%step != 0 && i != len(rows)-1 {
			continue
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%.2f\t%d\t%d\t%s\t%.2f\t\n",
			r.CutoffPercent, r.Delivered, r.Returned, r.DeliveryRate,
			r.DeliveredRemoved, r.ReturnedRemoved, r.RemovalRatio, r.Accuracy)
	}
	return w.Flush()
}
