package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/vigil/internal/api"
	"github.com/wonny/vigil/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the scanner with the API server",
	Long: `Starts the scan scheduler and the REST API server in one process.

Endpoints:
  GET /healthz                      - Liveness (time since last completed cycle)
  GET /api/alerts                   - Live early-warning alert set
  GET /api/alerts/{symbol}          - One symbol's conviction record
  GET /api/alerts/{symbol}/history  - Persisted scored results, trailing week
  GET /api/budget                   - Per-source budget counters
  GET /api/cycles/latest            - Most recent persisted cycle
  GET /api/jobs                     - Scheduler job statistics
  GET /ws/alerts                    - WebSocket alert stream

Example:
  go run ./cmd/vigil api
  go run ./cmd/vigil api --port 8099`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Vigil API Server ===")

	rt, err := initRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if apiPort != "" {
		rt.cfg.Port = apiPort
	}

	var history handlers.HistoryStore
	if rt.store != nil {
		history = rt.store
	}
	scanHandler := handlers.NewScanHandler(rt.agg, rt.budget, rt.sched, history, rt.log)
	router := api.NewRouter(scanHandler, rt.hub, rt.log)
	server := api.New(rt.cfg, rt.log, router)

	rt.sched.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("Listening on :%s, %d symbols on the watchlist\n", rt.cfg.Port, len(rt.symbols))
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		rt.sched.Stop()
		return err
	case <-quit:
	}

	fmt.Println("\nShutting down...")
	rt.sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
