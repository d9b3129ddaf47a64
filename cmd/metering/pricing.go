package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/metering/pkg/cli"
)

var pricingCmd = &cobra.Command{
	Use:   "pricing",
	Short: "Inspect the cost registry",
}

var pricingListCmd = &cobra.Command{
	Use:   "list [provider]",
	Short: "List registered usage types and their prices",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.Close()

		var view pricesView
		for _, ut := range eng.UsageTypes() {
			entry, ok := eng.Lookup(ut)
			if !ok {
				continue
			}
			if len(args) == 1 && !strings.HasPrefix(ut, args[0]+":") {
				continue
			}
			view = append(view, newPriceView(ut, entry))
		}
		return printResult(cmd, view)
	},
}

var pricingQuoteCmd = &cobra.Command{
	Use:   "quote <usage-type> <quantity>",
	Short: "Price a quantity without recording it",
	Long: `Price a quantity of a usage type with the registered cost map. Nothing
is recorded.

Examples:
  metering pricing quote openai:gpt-4o:prompt-tokens 1200`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid quantity %q: %w", args[1], err)
		}

		eng, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.Close()

		q, err := eng.Quote(cmd.Context(), args[0], qty)
		if err != nil {
			return cli.NewCommandError("pricing quote", err)
		}

		view := priceView{UsageType: q.UsageType, Provider: q.Provider, Quantity: args[1]}
		if entry, ok := eng.Lookup(q.UsageType); ok {
			view = newPriceView(q.UsageType, entry)
			view.Quantity = args[1]
		}
		if !q.Unpriced {
			cost := q.MicroUnits
			view.Cost = &cost
		}
		return printResult(cmd, pricesView{view})
	},
}

func init() {
	rootCmd.AddCommand(pricingCmd)
	pricingCmd.AddCommand(pricingListCmd)
	pricingCmd.AddCommand(pricingQuoteCmd)
}
