package cli

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"palmbudget/internal/app"
)

var (
	simulateUser      string
	simulateSpendable string
	simulateMinimum   string
	simulateAt        string
	simulateYields    map[string]int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Dry-run a sweep evaluation against an in-memory ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		spendable, err := decimal.NewFromString(simulateSpendable)
		if err != nil {
			return fmt.Errorf("invalid --spendable value: %w", err)
		}

		opts := app.SimulateOptions{
			User:      simulateUser,
			Spendable: spendable,
			At:        time.Now().UTC(),
			YieldBps:  simulateYields,
		}

		if simulateMinimum != "" {
			minimum, err := decimal.NewFromString(simulateMinimum)
			if err != nil {
				return fmt.Errorf("invalid --minimum value: %w", err)
			}
			opts.Minimum = minimum
		}

		if simulateAt != "" {
			at, err := time.Parse(time.RFC3339, simulateAt)
			if err != nil {
				return fmt.Errorf("invalid --at value: %w", err)
			}
			opts.At = at
		}

		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateUser, "user", "", "User address to evaluate")
	simulateCmd.Flags().StringVar(&simulateSpendable, "spendable", "0", "Spendable bucket balance")
	simulateCmd.Flags().StringVar(&simulateMinimum, "minimum", "", "Minimum balance override (defaults to config)")
	simulateCmd.Flags().StringVar(&simulateAt, "at", "", "Evaluation time (RFC3339, defaults to now)")
	simulateCmd.Flags().StringToInt64Var(&simulateYields, "yield", nil, "Bucket yield in bps, e.g. savings=820")
	_ = simulateCmd.MarkFlagRequired("user")
}
