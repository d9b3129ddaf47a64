package main

import (
	"github.com/spf13/cobra"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect subscription policies",
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the policy catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.Close()
		return printResult(cmd, newPoliciesView(eng.Policies()))
	},
}

var policyResolveFlags actorFlags

var policyResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show the policy governing an actor",
	Long: `Show the policy governing an actor and how it was reached: assigned,
default for the actor kind, or fallback after a directory failure.

Examples:
  metering policy resolve --actor u-pro
  metering policy resolve --actor t-42 --kind temporary`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		who, err := policyResolveFlags.actor()
		if err != nil {
			return err
		}
		eng, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.Close()

		res := eng.Resolve(cmd.Context(), who)
		view := policiesView{{
			ID:                      res.Policy.ID,
			Kind:                    string(res.Policy.Kind),
			MonthlyUsageAllowance:   res.Policy.MonthlyUsageAllowance,
			MonthlyStorageAllowance: res.Policy.MonthlyStorageAllowance,
			Source:                  string(res.Source),
		}}
		return printResult(cmd, view)
	},
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd)
	policyCmd.AddCommand(policyResolveCmd)

	policyResolveFlags.register(policyResolveCmd)
}
