package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vetoguard/veto/internal/adapter/outbound/cache"
	"github.com/vetoguard/veto/internal/config"
	"github.com/vetoguard/veto/internal/service"
)

var (
	testRulesRoot string
	testCasesFile string
)

// testCase is one entry in a test-cases YAML file: a tool call plus the
// decision it's expected to render.
type testCase struct {
	Name      string         `yaml:"name"`
	Tool      string         `yaml:"tool"`
	Arguments map[string]any `yaml:"arguments"`
	Expect    string         `yaml:"expect"` // allow | deny | modify
}

type testCaseFile struct {
	Cases []testCase `yaml:"cases"`
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run test cases against policies",
	Long:  `Load the rules root and a test-cases file, then assert each case's expected decision (spec §6's test subcommand).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return wrapConfigErr(err)
		}
		rs, err := loadRuleSet(testRulesRoot)
		if err != nil {
			return err
		}
		if testCasesFile == "" {
			return fmt.Errorf("--cases is required")
		}
		data, err := os.ReadFile(testCasesFile)
		if err != nil {
			return fmt.Errorf("read test cases file %q: %w", testCasesFile, err)
		}
		var tcf testCaseFile
		if err := yaml.Unmarshal(data, &tcf); err != nil {
			return fmt.Errorf("parse test cases file %q: %w", testCasesFile, err)
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		c := cache.New(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLMs)*time.Millisecond, time.Now)
		ruleValidator := service.NewRuleValidator(1, rs, c, logger)
		engine := service.NewEngine(service.Decision(cfg.DefaultDecision), logger, ruleValidator)

		results, allPassed := runTestCases(cmd, engine, tcf.Cases)

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.Encode(results)
		}
		if !allPassed {
			return fmt.Errorf("one or more test cases failed")
		}
		return nil
	},
}

type testCaseResult struct {
	Name     string `json:"name"`
	Expected string `json:"expected"`
	Got      string `json:"got"`
	Passed   bool   `json:"passed"`
}

func runTestCases(cmd *cobra.Command, engine *service.Engine, cases []testCase) ([]testCaseResult, bool) {
	results := make([]testCaseResult, 0, len(cases))
	allPassed := true

	for _, tc := range cases {
		input := service.DecisionInput{ToolName: tc.Tool, Arguments: tc.Arguments, Timestamp: time.Now()}
		agg := engine.Decide(cmd.Context(), input, nil)
		got := string(agg.FinalResult.Decision)
		passed := got == tc.Expect
		allPassed = allPassed && passed
		results = append(results, testCaseResult{Name: tc.Name, Expected: tc.Expect, Got: got, Passed: passed})

		if !jsonOutput {
			status := "PASS"
			if !passed {
				status = "FAIL"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: expected %s, got %s\n", status, tc.Name, tc.Expect, got)
		}
	}
	return results, allPassed
}

func init() {
	testCmd.Flags().StringVar(&testRulesRoot, "rules", "", "rules root directory (default: ./rules)")
	testCmd.Flags().StringVar(&testCasesFile, "cases", "", "path to a test-cases YAML file")
	rootCmd.AddCommand(testCmd)
}
