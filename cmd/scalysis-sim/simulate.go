package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
	"github.com/500lbbicepcurl/Scalysis-public/internal/simulation"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Project profit and returns at a cutoff",
	Long:  "Builds the cutoff curve from the CSV's delivered and returned orders, evaluates it at --cutoff against the unshipped orders and reports the recommended profit-preserving cutoff.",
	RunE:  runSimulate,
}

var (
	simCutoff      int
	simSearchLimit int
	simEconomics   = domain.DefaultUnitEconomics()
	simPreset      string
	simFrom        string
	simTo          string
	simSegment     string
)

func init() {
	f := simulateCmd.Flags()
	f.IntVar(&simCutoff, "cutoff", domain.DefaultCutoffPercent, "Cutoff percent to evaluate (0-100)")
	f.IntVar(&simSearchLimit, "search-limit", 50, "Largest cutoff considered for the recommendation")
	f.Float64Var(&simEconomics.ProfitPerDelivery, "profit-per-delivery", simEconomics.ProfitPerDelivery, "Profit per delivered order")
	f.Float64Var(&simEconomics.LossPerReturn, "loss-per-return", simEconomics.LossPerReturn, "Loss per returned order")
	f.Float64Var(&simEconomics.CostPerAcquisition, "cost-per-acquisition", simEconomics.CostPerAcquisition, "Acquisition cost per order")
	f.Float64Var(&simEconomics.ShippingCostPerOrder, "shipping-cost", simEconomics.ShippingCostPerOrder, "Shipping cost per order")
	f.Float64Var(&simEconomics.TolerancePercent, "tolerance", simEconomics.TolerancePercent, "Profit-preservation tolerance percent")
	f.StringVar(&simPreset, "preset", "", "IST date preset: today, yesterday, this_week, this_month, this_year, lifetime")
	f.StringVar(&simFrom, "from", "", "First IST order date (YYYY-MM-DD)")
	f.StringVar(&simTo, "to", "", "Last IST order date (YYYY-MM-DD)")
	f.StringVar(&simSegment, "segment", "", "CEL filter over unshipped orders, e.g. 'amount > 1000.0'")

	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	if err := validator.New().Struct(simEconomics); err != nil {
		return fmt.Errorf("invalid economics: %w", err)
	}

	ctx := cmd.Context()
	cfg := domain.SimulationConfig{
		Economics:     simEconomics,
		DefaultCutoff: simCutoff,
		SearchLimit:   simSearchLimit,
	}
	s, err := loadSession(ctx, csvPath, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	econ := simEconomics
	res, err := s.sim.Simulate(ctx, csvStoreID, simulation.Params{
		Cutoff:    &simCutoff,
		Economics: &econ,
		Preset:    simPreset,
		From:      simFrom,
		To:        simTo,
		Segment:   simSegment,
	})
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	return printSimulation(cmd.OutOrStdout(), res)
}

func printSimulation(out io.Writer, res *simulation.Result) error {
	sel := res.Selection
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Curve orders\t%d\n", res.CurveOrders)
	fmt.Fprintf(w, "Unshipped orders\t%d\n", res.DisplayedOrders)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "\tBaseline\tCutoff %d%%\n", sel.Selected.CutoffPercent)
	fmt.Fprintf(w, "Orders to ship\t%d\t%d\n", sel.Baseline.OrdersToShip, sel.Selected.OrdersToShip)
	fmt.Fprintf(w, "Projected delivered\t%d\t%d\n", sel.Baseline.ProjectedDelivered, sel.Selected.ProjectedDelivered)
	fmt.Fprintf(w, "Projected returned\t%d\t%d\n", sel.Baseline.ProjectedReturned, sel.Selected.ProjectedReturned)
	fmt.Fprintf(w, "RTO ratio\t%.2f%%\t%.2f%%\n", sel.BaselineRTORatio*100, sel.SelectedRTORatio*100)
	fmt.Fprintf(w, "Profit impact\t%.2f\t%.2f\n", sel.Baseline.ProfitImpact, sel.Selected.ProfitImpact)
	fmt.Fprintf(w, "Profit per shipped order\t%.2f\t%.2f\n", sel.Baseline.ProfitPerShippedOrder, sel.Selected.ProfitPerShippedOrder)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Profit change\t%.2f%%\n", sel.ProfitImpactPercentChange)
	fmt.Fprintf(w, "RTO drop\t%s%%\n", sel.RTODropPercent)
	fmt.Fprintf(w, "Model accuracy\t%.2f%%\n", sel.ModelAccuracy)
	fmt.Fprintf(w, "Breakeven accuracy\t%d%%\n", sel.BreakevenAccuracy)
	fmt.Fprintf(w, "Orders flagged\t%d\n", sel.FlaggedCount)
	fmt.Fprintf(w, "Shipping savings\t%.2f\n", sel.ShippingSavings)
	fmt.Fprintln(w)

	if rec := sel.Recommended; rec != nil {
		fmt.Fprintf(w, "Recommended cutoff\t%d%%\n", rec.CutoffPercent)
		fmt.Fprintf(w, "  profit change\t%.2f%%\n", rec.ProfitImpactPercentChange)
		fmt.Fprintf(w, "  inventory freed\t%d\n", rec.InventoryFreed)
		fmt.Fprintf(w, "  capital freed\t%.2f\n", rec.CapitalFreed)
	} else {
		fmt.Fprintf(w, "Recommended cutoff\tnone within %.2f%% tolerance\n", sel.Economics.TolerancePercent)
	}

	if len(res.Flaggable) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Flag candidates\t%v\n", res.Flaggable)
	}
	return w.Flush()
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
