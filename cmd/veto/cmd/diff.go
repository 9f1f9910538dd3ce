package cmd

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/vetoguard/veto/internal/domain/rule"
)

var diffCmd = &cobra.Command{
	Use:   "diff <rules-root-a> <rules-root-b>",
	Short: "Compare two rule sets by id",
	Long:  `Load two rules roots and report rules added, removed, and changed (by id), matching spec §6's diff subcommand.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadRuleSet(args[0])
		if err != nil {
			return err
		}
		b, err := loadRuleSet(args[1])
		if err != nil {
			return err
		}

		result := diffRuleSets(a, b)
		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		for _, id := range result.Added {
			fmt.Fprintf(cmd.OutOrStdout(), "+ %s\n", id)
		}
		for _, id := range result.Removed {
			fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", id)
		}
		for _, id := range result.Changed {
			fmt.Fprintf(cmd.OutOrStdout(), "~ %s\n", id)
		}
		if len(result.Added)+len(result.Removed)+len(result.Changed) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no differences")
		}
		return nil
	},
}

// RuleSetDiff is added/removed/changed rule ids between two rule sets.
type RuleSetDiff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Changed []string `json:"changed"`
}

func diffRuleSets(a, b *rule.RuleSet) RuleSetDiff {
	byID := func(rs *rule.RuleSet) map[string]rule.Rule {
		m := make(map[string]rule.Rule, len(rs.Rules))
		for _, r := range rs.Rules {
			m[r.ID] = r
		}
		return m
	}
	am, bm := byID(a), byID(b)

	var diff RuleSetDiff
	for id := range bm {
		if _, ok := am[id]; !ok {
			diff.Added = append(diff.Added, id)
		}
	}
	for id, ar := range am {
		br, ok := bm[id]
		if !ok {
			diff.Removed = append(diff.Removed, id)
			continue
		}
		if !rulesEqual(ar, br) {
			diff.Changed = append(diff.Changed, id)
		}
	}
	return diff
}

func rulesEqual(a, b rule.Rule) bool {
	return reflect.DeepEqual(a.ToRawRule(), b.ToRawRule())
}

func init() {
	rootCmd.AddCommand(diffCmd)
}
