package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/vigil/internal/weights"
	"github.com/wonny/vigil/pkg/config"
)

// weightsCmd represents the weights command
var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Inspect the scoring weight table",
}

var weightsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the weight table and print its provenance hash",
	Long: `Loads the configured weight table (SCAN_WEIGHTS_PATH, or the built-in
defaults), validates it and prints the version plus the content hash that
every scored result will carry.

Example:
  go run ./cmd/vigil weights check`,
	RunE: runWeightsCheck,
}

func init() {
	rootCmd.AddCommand(weightsCmd)
	weightsCmd.AddCommand(weightsCheckCmd)
}

func runWeightsCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	wcfg, err := weights.LoadOrDefault(cfg.Scan.WeightsPath)
	if err != nil {
		return fmt.Errorf("load weights: %w", err)
	}

	hash, err := weights.Hash(wcfg)
	if err != nil {
		return fmt.Errorf("hash weights: %w", err)
	}

	source := cfg.Scan.WeightsPath
	if source == "" {
		source = "(built-in defaults)"
	}

	fmt.Printf("Source:    %s\n", source)
	fmt.Printf("Version:   %s\n", wcfg.Meta.Version)
	fmt.Printf("Hash:      %s\n", hash)
	fmt.Printf("Threshold: %.2f\n", wcfg.Scoring.ActionableThreshold)

	return nil
}
