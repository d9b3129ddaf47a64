package main

import (
	"github.com/spf13/cobra"

	"mercator-hq/metering/pkg/cli"
)

var evaluateFlags struct {
	who    actorFlags
	period string
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate an actor's quota",
	Long: `Evaluate an actor's aggregates against its subscription policy.

The command exits with status 2 when the cost or storage allowance is
exceeded, so it can gate scripts.

Examples:
  metering evaluate --actor u1
  metering evaluate --actor t-42 --kind temporary
  metering evaluate --actor u1 --period 2025-01 --output json`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateFlags.who.register(evaluateCmd)
	evaluateCmd.Flags().StringVarP(&evaluateFlags.period, "period", "p", "", "period label YYYY-MM (defaults to the current period)")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	who, err := evaluateFlags.who.actor()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	label := evaluateFlags.period
	if label == "" {
		label = eng.Period()
	}

	d, err := eng.EvaluateAt(ctx, who, label)
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}
	if err := printResult(cmd, newDecisionView(d)); err != nil {
		return err
	}
	if !d.Allowed() {
		return &cli.DeniedError{Actor: who.String(), Reason: d.Reason()}
	}
	return nil
}
