package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/vigil/internal/contracts"
	"github.com/wonny/vigil/internal/scheduler"
	"github.com/wonny/vigil/pkg/config"
	"github.com/wonny/vigil/pkg/httputil"
	"github.com/wonny/vigil/pkg/logger"
)

// statusCmd queries a running scanner over its API.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Liveness and job status of a running scanner",
	Long: `Queries the running API process for liveness and job statistics.

Example:
  go run ./cmd/vigil status
  go run ./cmd/vigil status --addr http://localhost:8099`,
	RunE: runStatus,
}

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Per-source budget counters of a running scanner",
	Long: `Queries the running API process for live budget counters.

With --ledger the persisted checkpoint trail is read from the database
instead, which works without a running scanner.`,
	RunE: runBudget,
}

var convictionCmd = &cobra.Command{
	Use:   "conviction",
	Short: "Live early-warning alert set of a running scanner",
	RunE:  runConviction,
}

var (
	apiAddr      string
	budgetLedger bool
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(budgetCmd)
	rootCmd.AddCommand(convictionCmd)

	for _, cmd := range []*cobra.Command{statusCmd, budgetCmd, convictionCmd} {
		cmd.Flags().StringVar(&apiAddr, "addr", "", "API address (default http://localhost:$PORT)")
	}
	budgetCmd.Flags().BoolVar(&budgetLedger, "ledger", false, "read today's persisted ledger checkpoints instead of the live API")
}

// apiClient builds a one-shot client against the local API.
func apiClient() (*httputil.Client, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}

	addr := apiAddr
	if addr == "" {
		addr = "http://localhost:" + cfg.Port
	}

	log := logger.New(cfg)
	client := httputil.NewWithTimeout(log, 5*time.Second).DisableRetry()
	return client, addr, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, addr, err := apiClient()
	if err != nil {
		return err
	}
	ctx := context.Background()

	// /healthz answers 503 when stale, so decode the body regardless of status.
	resp, err := client.Get(ctx, addr+"/healthz")
	if err != nil {
		return fmt.Errorf("scanner unreachable at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	var health struct {
		Status        string    `json:"status"`
		LastCycle     time.Time `json:"last_cycle"`
		SinceLastScan string    `json:"since_last_scan"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode health: %w", err)
	}

	fmt.Printf("Status: %s\n", health.Status)
	if !health.LastCycle.IsZero() {
		fmt.Printf("Last cycle: %s (%s ago)\n",
			health.LastCycle.Format("2006-01-02 15:04:05"), health.SinceLastScan)
	}

	var jobs map[string]scheduler.JobStats
	if err := client.GetJSON(ctx, addr+"/api/jobs", &jobs); err != nil {
		return fmt.Errorf("fetch jobs: %w", err)
	}

	fmt.Println("\nJobs:")
	for name, stat := range jobs {
		fmt.Printf("  %-24s %s  runs=%d  success=%.0f%%\n",
			name, stat.Schedule, stat.TotalRuns, stat.SuccessRate*100)
	}

	return nil
}

func runBudget(cmd *cobra.Command, args []string) error {
	if budgetLedger {
		return runBudgetLedger()
	}

	client, addr, err := apiClient()
	if err != nil {
		return err
	}

	var body struct {
		Windows []contracts.ApiBudgetWindow `json:"windows"`
	}
	if err := client.GetJSON(context.Background(), addr+"/api/budget", &body); err != nil {
		return fmt.Errorf("fetch budget: %w", err)
	}

	if len(body.Windows) == 0 {
		fmt.Println("No budget window open")
		return nil
	}

	fmt.Println("Budget windows:")
	for _, w := range body.Windows {
		fmt.Printf("  %-10s %-13s %4d / %-4d (remaining %d)\n",
			w.Source, w.Window, w.Used, w.Limit, w.Remaining())
	}

	return nil
}

// runBudgetLedger prints the latest persisted checkpoint per source/window
// since midnight exchange time.
func runBudgetLedger() error {
	rt, err := initRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.store == nil {
		return fmt.Errorf("budget --ledger requires DATABASE_URL")
	}

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return err
	}
	now := time.Now().In(loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	checkpoints, err := rt.store.Ledger.GetUsage(context.Background(), midnight)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	if len(checkpoints) == 0 {
		fmt.Println("No ledger checkpoints today")
		return nil
	}

	fmt.Printf("Ledger checkpoints since %s:\n", midnight.Format("2006-01-02 15:04 MST"))
	for _, cp := range checkpoints {
		fmt.Printf("  %-10s %-13s %4d / %-4d at %s\n",
			cp.Source, cp.Window, cp.CumulativeUsed, cp.WindowLimit,
			cp.Timestamp.In(loc).Format("15:04:05"))
	}

	return nil
}

func runConviction(cmd *cobra.Command, args []string) error {
	client, addr, err := apiClient()
	if err != nil {
		return err
	}

	var body struct {
		Count  int                          `json:"count"`
		Alerts []contracts.ConvictionRecord `json:"alerts"`
	}
	if err := client.GetJSON(context.Background(), addr+"/api/alerts", &body); err != nil {
		return fmt.Errorf("fetch alerts: %w", err)
	}

	if body.Count == 0 {
		fmt.Println("No symbols tracked")
		return nil
	}

	fmt.Printf("Tracked symbols (%d):\n", body.Count)
	for _, rec := range body.Alerts {
		fmt.Printf("  %-6s %-8s score=%.3f appearances=%d engines=%v\n",
			rec.Symbol, rec.Level, rec.Score, len(rec.Appearances), rec.EnginesSeen)
	}

	return nil
}
