package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"agentflow/internal/config"
	"agentflow/internal/flow"
	"agentflow/internal/llm"
	"agentflow/internal/logging"
	"agentflow/internal/model"
	"agentflow/internal/runstore"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// errAborted signals a persisted-but-aborted run; main exits 1 without
// printing a usage error.
var errAborted = errors.New("run aborted")

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentflow [flags] \"your prompt\"",
		Short: "Run one prompt through a draft/evaluate/revise agent pipeline",
		Long: `agentflow sends one prompt through a fixed multi-role pipeline:
the prompt is normalized into a task, four worker personas draft answers in
parallel, three evaluators judge every draft, flagged drafts get one
revision, and a final judge picks the winner. The full trace is saved as a
JSON run log.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, args[0])
		},
	}

	cmd.Flags().StringP("model", "m", "", "Model name")
	cmd.Flags().Float64P("temperature", "t", 0.7, "Sampling temperature")
	cmd.Flags().Int64("seed", 0, "Sampling seed for reproducible runs")
	cmd.Flags().Int("max-tokens", 0, "Completion token cap (0 = provider default)")
	cmd.Flags().String("base-url", "", "OpenAI-compatible endpoint base URL")
	cmd.Flags().Int("quorum", 2, "Minimum drafts required to continue")
	cmd.Flags().Int("max-retries", 2, "Extra attempts after a malformed role response")
	cmd.Flags().Duration("phase-timeout", 0, "Per-phase timeout")
	cmd.Flags().StringP("out-dir", "o", "", "Directory for run logs")
	cmd.Flags().BoolP("verbose", "v", false, "Debug logging")

	return cmd
}

func runPipeline(cmd *cobra.Command, userPrompt string) error {
	if strings.TrimSpace(userPrompt) == "" {
		return fmt.Errorf("prompt must not be empty")
	}

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Verbose {
		logging.SetLevel(logging.LevelDebug)
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("no API key configured (set AGENTFLOW_API_KEY or api_key in agentflow.yaml)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := llm.NewOpenAIClient(cfg.Model, llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.RequestTimeout,
	})

	fmt.Printf("%s %s\n", cyan("▶"), bold("running pipeline with "+cfg.Model))
	log, runErr := flow.Run(ctx, userPrompt, cfg, client)

	if path, saveErr := runstore.Save(log, cfg.OutDir); saveErr != nil {
		fmt.Fprintf(os.Stderr, "%s failed to save run log: %v\n", red("✗"), saveErr)
	} else {
		fmt.Printf("%s trace: %s\n", cyan("▶"), path)
	}

	printSummary(log)
	if runErr != nil {
		return errAborted
	}
	return nil
}

func printSummary(log *model.RunLog) {
	for _, s := range log.PhaseStatus {
		mark := green("✓")
		switch s.Outcome {
		case model.OutcomeDegraded:
			mark = yellow("~")
		case model.OutcomeAborted:
			mark = red("✗")
		}
		line := fmt.Sprintf("%s %s", mark, s.Phase)
		if s.Detail != "" {
			line += " (" + s.Detail + ")"
		}
		fmt.Println(line)
	}

	if log.Status == model.RunAborted {
		fmt.Printf("\n%s run %s aborted\n", red("✗"), log.RunID)
		return
	}

	d := log.FinalDecision
	fmt.Printf("\n%s winner: %s\n", green("✓"), bold(d.Winner.String()))
	if d.Rationale != "" {
		fmt.Printf("%s %s\n", cyan("rationale:"), d.Rationale)
	}
	fmt.Printf("\n%s\n", d.Content)
}
