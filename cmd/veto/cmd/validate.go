package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vetoguard/veto/internal/domain/rule"
)

var validateRulesRoot string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and normalize rule files without deciding",
	Long:  `Walk the rules root, parse every *.yaml/*.yml file, and report schema errors without evaluating any decision.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rs, err := loadRuleSet(validateRulesRoot)
		if err != nil {
			if errs, ok := err.(rule.SchemaErrors); ok {
				return reportSchemaErrors(errs)
			}
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"valid": true, "ruleCount": len(rs.Rules), "hash": rs.Hash})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %d rules loaded (hash %s)\n", len(rs.Rules), rs.Hash)
		return nil
	},
}

func reportSchemaErrors(errs rule.SchemaErrors) error {
	if jsonOutput {
		enc := json.NewEncoder(rootCmd.ErrOrStderr())
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{"valid": false, "errors": errs})
	} else {
		for _, e := range errs {
			fmt.Fprintln(rootCmd.ErrOrStderr(), e.Error())
		}
	}
	return fmt.Errorf("%d schema error(s)", len(errs))
}

func init() {
	validateCmd.Flags().StringVar(&validateRulesRoot, "rules", "", "rules root directory (default: ./rules)")
	rootCmd.AddCommand(validateCmd)
}
