package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vetoguard/veto/internal/adapter/outbound/cache"
	"github.com/vetoguard/veto/internal/config"
	"github.com/vetoguard/veto/internal/domain/audit"
	"github.com/vetoguard/veto/internal/service"
)

var (
	simulateRulesRoot string
	simulateToolName  string
	simulateArgsJSON  string
	simulateTrace     bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Decide a single input",
	Long:  `Load the rules root, build an in-process engine, and render one decision for --tool/--args (or a DecisionInput JSON read from stdin if --tool is omitted).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return wrapConfigErr(err)
		}

		rs, err := loadRuleSet(simulateRulesRoot)
		if err != nil {
			return err
		}

		input, err := buildSimulateInput(cmd.InOrStdin())
		if err != nil {
			return err
		}

		logger := slog.Default()
		c := cache.New(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLMs)*time.Millisecond, time.Now)
		ruleValidator := service.NewRuleValidator(1, rs, c, logger)
		engine := service.NewEngine(service.Decision(cfg.DefaultDecision), logger, ruleValidator)

		ctx := cmd.Context()
		var trail *audit.Trail
		if simulateTrace {
			tracer, shutdown, err := setupTracing(ctx)
			if err != nil {
				return fmt.Errorf("set up tracing: %w", err)
			}
			defer shutdown(ctx)

			trail = audit.NewTrail(audit.ParseVerbosity(cfg.Explanation.Verbosity), cfg.Explanation.RedactPaths)
			spanCtx, span := tracer.StartDecision(ctx, input.ToolName, input.ID)
			ctx = spanCtx
			defer span.End()
			defer func() { tracer.RecordEntries(ctx, trail.Entries()) }()
		}

		agg := engine.Decide(ctx, input, trail)

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(agg)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "decision: %s\nreason: %s\ntotal: %dms\n", agg.FinalResult.Decision, agg.FinalResult.Reason, agg.TotalDurationMs)
		return nil
	},
}

func buildSimulateInput(stdin io.Reader) (service.DecisionInput, error) {
	if simulateToolName != "" {
		var arguments map[string]any
		if simulateArgsJSON != "" {
			if err := json.Unmarshal([]byte(simulateArgsJSON), &arguments); err != nil {
				return service.DecisionInput{}, fmt.Errorf("parse --args: %w", err)
			}
		}
		return service.DecisionInput{ID: uuid.NewString(), ToolName: simulateToolName, Arguments: arguments, Timestamp: time.Now()}, nil
	}

	var input service.DecisionInput
	if err := json.NewDecoder(stdin).Decode(&input); err != nil {
		return service.DecisionInput{}, fmt.Errorf("decode DecisionInput from stdin: %w", err)
	}
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.Timestamp.IsZero() {
		input.Timestamp = time.Now()
	}
	return input, nil
}

func init() {
	simulateCmd.Flags().StringVar(&simulateRulesRoot, "rules", "", "rules root directory (default: ./rules)")
	simulateCmd.Flags().StringVar(&simulateToolName, "tool", "", "tool name to simulate a call against")
	simulateCmd.Flags().StringVar(&simulateArgsJSON, "args", "", "JSON-encoded arguments for --tool")
	simulateCmd.Flags().BoolVar(&simulateTrace, "trace", false, "emit an OTel span per decision, with a child span per audit-trail entry, to stderr")
	rootCmd.AddCommand(simulateCmd)
}
