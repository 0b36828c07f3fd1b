package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"palmbudget/internal/policy"
)

var (
	ratioBills     uint
	ratioSavings   uint
	ratioGrowth    uint
	ratioSpendable uint
)

var authorizeCmd = &cobra.Command{
	Use:   "authorize <user>",
	Short: "Enable month-end sweeps for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Authorize(cmd.Context(), args[0])
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <user>",
	Short: "Disable month-end sweeps for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Revoke(cmd.Context(), args[0])
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List authorized users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListUsers(cmd.Context())
	},
}

var setMinBalanceCmd = &cobra.Command{
	Use:   "set-min-balance <user> <amount>",
	Short: "Override the protected spendable floor for a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := decimal.NewFromString(args[1])
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
		return getApp().SetMinimumBalance(cmd.Context(), args[0], amount)
	},
}

var setRatioCmd = &cobra.Command{
	Use:   "set-ratio <user>",
	Short: "Override the allocation split for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ratio := policy.SplitRatio{
			Bills:     ratioBills,
			Savings:   ratioSavings,
			Growth:    ratioGrowth,
			Spendable: ratioSpendable,
		}
		return getApp().SetRatio(cmd.Context(), args[0], ratio)
	},
}

func init() {
	setRatioCmd.Flags().UintVar(&ratioBills, "bills", 50, "Bills bucket percentage")
	setRatioCmd.Flags().UintVar(&ratioSavings, "savings", 20, "Savings bucket percentage")
	setRatioCmd.Flags().UintVar(&ratioGrowth, "growth", 20, "Growth bucket percentage")
	setRatioCmd.Flags().UintVar(&ratioSpendable, "spendable", 10, "Spendable bucket percentage")
}
