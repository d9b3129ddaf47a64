package main

import (
	"github.com/spf13/cobra"

	"mercator-hq/metering/pkg/cli"
)

var usageFlags struct {
	who    actorFlags
	app    string
	period string
	types  []string
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show an actor's aggregates for a period",
	Long: `Show an actor's total cost and storage with a breakdown per registered
usage type. With --app the application's cost and event count are included.
Unpriced usage types are not registered; name them with --type to see them.

Examples:
  metering usage --actor u1
  metering usage --actor u1 --app chat --output json
  metering usage --actor os-global --period 2025-01 --output csv
  metering usage --actor u1 --type acme:ocr:page --type acme:tts:char`,
	RunE: runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)

	usageFlags.who.register(usageCmd)
	usageCmd.Flags().StringVar(&usageFlags.app, "app", "", "application key")
	usageCmd.Flags().StringVarP(&usageFlags.period, "period", "p", "", "period label YYYY-MM (defaults to the current period)")
	usageCmd.Flags().StringSliceVarP(&usageFlags.types, "type", "t", nil, "additional usage type to break down (repeatable)")
}

func runUsage(cmd *cobra.Command, args []string) error {
	who, err := usageFlags.who.actor()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	label := usageFlags.period
	if label == "" {
		label = eng.Period()
	}

	s, err := eng.SummaryFor(ctx, who, usageFlags.app, label, usageFlags.types...)
	if err != nil {
		return cli.NewCommandError("usage", err)
	}
	return printResult(cmd, newSummaryView(s))
}
