package main

import (
	"github.com/spf13/cobra"

	"mercator-hq/metering/pkg/cli"
)

var checkFlags struct {
	who       actorFlags
	usageType string
	quantity  float64
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether estimated usage fits an actor's allowance",
	Long: `Price an estimated quantity and check it against what remains of the
actor's allowances for the current period. Nothing is recorded.

The command exits with status 2 when the estimate does not fit.

Examples:
  metering check --actor u1 --usage-type openai:gpt-4o:prompt-tokens --quantity 4000
  metering check --actor t-42 --kind temporary -u filesystem:storage:byte -q 1048576`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkFlags.who.register(checkCmd)
	checkCmd.Flags().StringVarP(&checkFlags.usageType, "usage-type", "u", "", "usage type provider:resource:unit (required)")
	checkCmd.Flags().Float64VarP(&checkFlags.quantity, "quantity", "q", 0, "estimated quantity in units of the usage type")
	_ = checkCmd.MarkFlagRequired("usage-type")
}

func runCheck(cmd *cobra.Command, args []string) error {
	who, err := checkFlags.who.actor()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	quote, err := eng.Quote(ctx, checkFlags.usageType, checkFlags.quantity)
	if err != nil {
		return cli.NewCommandError("check", err)
	}
	fits, err := eng.HasEnoughFor(ctx, who, checkFlags.usageType, checkFlags.quantity)
	if err != nil {
		return cli.NewCommandError("check", err)
	}
	remaining, err := eng.Remaining(ctx, who)
	if err != nil {
		return cli.NewCommandError("check", err)
	}

	view := checkView{
		Actor:     who.String(),
		UsageType: quote.UsageType,
		Quantity:  quote.Quantity,
		Cost:      quote.MicroUnits,
		Unpriced:  quote.Unpriced,
		Remaining: remaining,
		Fits:      fits,
	}
	if err := printResult(cmd, view); err != nil {
		return err
	}
	if !fits {
		return &cli.DeniedError{Actor: who.String(), Reason: "estimated usage exceeds the remaining allowance"}
	}
	return nil
}
