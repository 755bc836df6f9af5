package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"refbind/internal/deduce"
)

var deduceCmd = &cobra.Command{
	Use:   "deduce EXPR",
	Short: "Deduce a generic or auto reference form against an expression",
	Long: `Deduce resolves a deduced or auto form to the concrete type it stands for
and validates the resulting binding through the resolver.

  refbind deduce --form deduced-expiring --policy split 'name:Widget'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := readQuery(cmd, args[0])
		if err != nil {
			return err
		}
		if q.Form.IsConcrete() {
			return fmt.Errorf("%s is a concrete form; use refbind resolve", q.Form)
		}
		policyFlag, err := cmd.Flags().GetString("policy")
		if err != nil {
			return fmt.Errorf("failed to get policy flag: %w", err)
		}
		policy, err := deduce.ParsePolicy(policyFlag)
		if err != nil {
			return err
		}
		res := deduce.New(policy).Deduce(q)
		return printVerdict(cmd, q, verdictReport{Verdict: res.Verdict, Deduced: &res})
	},
}

func init() {
	addQueryFlags(deduceCmd)
	deduceCmd.Flags().String("policy", "universal", "deduction policy for the forwarding form (universal|split)")
}
