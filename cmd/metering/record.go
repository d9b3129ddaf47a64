package main

import (
	"github.com/spf13/cobra"

	"mercator-hq/metering/pkg/cli"
	"mercator-hq/metering/pkg/metering/usage"
)

var recordFlags struct {
	who       actorFlags
	app       string
	usageType string
	quantity  float64
	cost      int64
	evaluate  bool
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a usage event",
	Long: `Record one usage event against an actor's current-period aggregates.

The quantity is priced with the registered cost map for the usage type.
Usage types without a price are recorded as unpriced with zero cost.

Examples:
  # Record prompt tokens for an application
  metering record --actor u1 --app chat --usage-type openai:gpt-4o:prompt-tokens --quantity 1200

  # Record stored bytes and report the resulting decision
  metering record --actor u1 --usage-type filesystem:storage:byte --quantity 4096 --evaluate

  # Record with an explicit cost in micro-units
  metering record --actor u1 --usage-type acme:ocr:pages --quantity 3 --cost 450`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordFlags.who.register(recordCmd)
	recordCmd.Flags().StringVar(&recordFlags.app, "app", "", "application key (defaults to the platform)")
	recordCmd.Flags().StringVarP(&recordFlags.usageType, "usage-type", "u", "", "usage type provider:resource:unit (required)")
	recordCmd.Flags().Float64VarP(&recordFlags.quantity, "quantity", "q", 0, "quantity in units of the usage type")
	recordCmd.Flags().Int64Var(&recordFlags.cost, "cost", 0, "explicit cost in micro-units, bypassing the price registry")
	recordCmd.Flags().BoolVarP(&recordFlags.evaluate, "evaluate", "e", false, "evaluate the actor's quota after recording")
	_ = recordCmd.MarkFlagRequired("usage-type")
}

func runRecord(cmd *cobra.Command, args []string) error {
	who, err := recordFlags.who.actor()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	ev := usage.Event{
		Actor:     who,
		AppKey:    recordFlags.app,
		UsageType: recordFlags.usageType,
		Quantity:  recordFlags.quantity,
	}
	if cmd.Flags().Changed("cost") {
		cost := recordFlags.cost
		ev.CostOverride = &cost
	}

	if !recordFlags.evaluate {
		res, err := eng.Record(ctx, ev)
		if err != nil {
			return cli.NewCommandError("record", err)
		}
		return printResult(cmd, newRecordView(who.String(), res))
	}

	res, d, err := eng.RecordAndEvaluate(ctx, ev)
	if err != nil {
		return cli.NewCommandError("record", err)
	}
	view := newRecordView(who.String(), res)
	dv := newDecisionView(d)
	view.Decision = &dv
	if err := printResult(cmd, view); err != nil {
		return err
	}
	if !d.Allowed() {
		return &cli.DeniedError{Actor: who.String(), Reason: d.Reason()}
	}
	return nil
}
