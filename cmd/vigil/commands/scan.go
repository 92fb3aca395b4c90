package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/vigil/internal/contracts"
	"github.com/wonny/vigil/internal/universe"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan cycle immediately",
	Long: `Runs a single full scan cycle outside the calendar.

The cycle passes normal admission: it is skipped outside budget windows,
when every symbol is cooling down, or without source headroom.

Example:
  go run ./cmd/vigil scan
  go run ./cmd/vigil scan --symbols NVDA,AMD`,
	RunE: runScan,
}

var scanSymbols string

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanSymbols, "symbols", "", "comma-separated symbol override")
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Vigil One-Shot Scan ===")

	rt, err := initRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	symbols := rt.symbols
	if scanSymbols != "" {
		symbols = universe.Build(scanSymbols)
	}

	def := contracts.ScanJob{
		Type:            contracts.JobFullScan,
		Symbols:         symbols,
		RequiredSources: []contracts.Source{contracts.SourcePolygon, contracts.SourceUW, contracts.SourceQuiver, contracts.SourceEarnings},
		CallsPerSymbol: map[contracts.Source]int{
			contracts.SourcePolygon: 3,
			contracts.SourceUW:      4,
			contracts.SourceQuiver:  2,
		},
		AllowDegraded: true,
	}

	ctx := context.Background()
	plan, skip := rt.sched.Admit(ctx, def, time.Now())
	if plan == nil {
		fmt.Printf("Scan skipped: %s\n", skip)
		return nil
	}
	if plan.Degraded {
		fmt.Printf("Running degraded with sources: %v\n", plan.Sources)
	}

	result, err := rt.orch.RunCycle(ctx, def, *plan)
	if err != nil {
		return fmt.Errorf("run cycle: %w", err)
	}

	printCycle(result)
	return nil
}

func printCycle(result *contracts.CycleResult) {
	fmt.Printf("\nCycle %s\n", result.Cycle.Format("2006-01-02 15:04:05 MST"))

	if !result.Verdict.Allowed {
		fmt.Printf("Regime gate: BLOCKED %v\n", result.Verdict.BlockReasons)
	} else {
		fmt.Printf("Regime gate: allowed (size x%.2f)\n", result.Verdict.SizeMultiplier)
	}

	if len(result.ResultsByEngine) == 0 {
		fmt.Println("No engine fired")
		return
	}

	for engine, results := range result.ResultsByEngine {
		fmt.Printf("\n[%s]\n", engine)
		for _, r := range results {
			line := fmt.Sprintf("  %-6s score=%.3f", r.Symbol, r.FinalScore)
			if r.Actionable {
				line += fmt.Sprintf("  BUY PUT strike=%.1f", r.Strike)
				if r.Expiry != nil {
					line += fmt.Sprintf(" exp=%s", r.Expiry.Format("2006-01-02"))
				}
			}
			fmt.Println(line)
		}
	}
}
