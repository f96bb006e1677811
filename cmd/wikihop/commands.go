package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/eval"
	"github.com/ncolesummers/wikihop/pkg/memory"
	"github.com/ncolesummers/wikihop/pkg/state"
)

func newSolveCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "solve [question]",
		Short: "Answer a single question",
		Long:  "Answer a single question. Without an argument the question is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				var err error
				question, err = readQuestion(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.shutdown(ctx)

			result, err := a.engine.Solve(ctx, question)
			if err != nil && result == nil {
				return fmt.Errorf("solve failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(result); encErr != nil {
					return encErr
				}
			} else {
				printResult(out, result)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full session result as JSON")
	return cmd
}

func readQuestion(in io.Reader, prompt io.Writer) (string, error) {
	fmt.Fprint(prompt, "Enter your question: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read question from stdin: %w", err)
	}
	question := strings.TrimSpace(line)
	if question == "" {
		return "", fmt.Errorf("no question provided")
	}
	return question, nil
}

func printResult(w io.Writer, result *domain.SessionResult) {
	fmt.Fprintln(w, "=== Result ===")
	if result.Answered() {
		fmt.Fprintf(w, "Answer: %s\n", result.Answer())
	} else {
		fmt.Fprintln(w, "Answer: (none)")
	}
	fmt.Fprintf(w, "State:  %s\n", result.State)
	fmt.Fprintf(w, "Steps:  %d\n", result.Steps)

	fmt.Fprintln(w, "\n=== Trace ===")
	for _, step := range result.Trace {
		marker := ""
		if step.Intercepted {
			marker = " [intercepted]"
		}
		fmt.Fprintf(w, "%2d. %s%s: %s\n", step.Step, step.Tool, marker, strings.Join(strings.Fields(step.Thought), " "))
	}

	fmt.Fprintln(w, "\n=== Plan ===")
	fmt.Fprintln(w, result.PlanState)

	if len(result.TreeState) > 0 {
		if tree, err := memory.Load(result.TreeState); err == nil {
			fmt.Fprintln(w, "\n=== Knowledge Tree ===")
			fmt.Fprintln(w, tree.View(true))
		}
	}
}

func newEvalCmd() *cobra.Command {
	var (
		sampleSize  int
		seed        int64
		runName     string
		concurrency int
		benchmark   string
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate the agent on a sample of benchmark questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.shutdown(ctx)

			ev := a.cfg.Evaluation
			if cmd.Flags().Changed("sample-size") {
				ev.SampleSize = sampleSize
			}
			if cmd.Flags().Changed("seed") {
				ev.Seed = seed
			}
			if cmd.Flags().Changed("concurrency") {
				ev.Concurrency = concurrency
			}
			if benchmark != "" {
				ev.BenchmarkFile = benchmark
			}
			runID := runName
			if runID == "" {
				runID = "run_" + ulid.Make().String()
			}

			questions, err := eval.LoadBenchmark(ev.BenchmarkFile)
			if err != nil {
				return err
			}
			sample := eval.Sample(questions, ev.SampleSize, ev.Seed)

			store, err := state.NewFileStore(ev.ResultsDir, runID)
			if err != nil {
				return err
			}

			runner, err := eval.NewRunner(a.engine, store, eval.RunnerConfig{
				Concurrency: ev.Concurrency,
				Metadata: domain.RunMetadata{
					RunID:        runID,
					Model:        a.cfg.LLM.Model,
					Provider:     a.cfg.LLM.Provider,
					Seed:         ev.Seed,
					MaxSteps:     a.cfg.Agent.MaxSteps,
					ResultsDir:   store.RunDir(),
					BenchmarkSrc: ev.BenchmarkFile,
				},
			}, eval.WithRunnerMetrics(a.metrics))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Evaluating %d of %d questions (run %s)\n", len(sample), len(questions), runID)
			records, runErr := runner.Run(ctx, sample)

			s := eval.Analyze(records)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:         %s\n", runID)
			fmt.Fprintf(out, "Results:     %s\n", store.RunDir())
			fmt.Fprintf(out, "Total:       %d\n", s.Total)
			fmt.Fprintf(out, "Successful:  %d\n", s.Successful)
			fmt.Fprintf(out, "Answered:    %d (%.1f%%)\n", s.Answered, s.Completion*100)
			fmt.Fprintf(out, "Likely correct: %d\n", s.LikelyCorrect)
			return runErr
		},
	}

	cmd.Flags().IntVarP(&sampleSize, "sample-size", "n", 10, "Number of questions to sample")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Sampling seed")
	cmd.Flags().StringVar(&runName, "run-name", "", "Run directory name (default: generated)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "Questions evaluated in parallel")
	cmd.Flags().StringVar(&benchmark, "benchmark", "", "Benchmark file (default: from config)")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <run-dir|responses.json>",
		Short: "Summarize the results of an evaluation run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := loadRecords(cmd, args[0])
			if err != nil {
				return err
			}
			return eval.WriteReport(cmd.OutOrStdout(), records)
		},
	}
}

func loadRecords(cmd *cobra.Command, path string) ([]domain.EvalRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if info.IsDir() {
		return state.OpenFileStore(path).LoadResponses(cmd.Context())
	}
	return state.LoadResponsesFile(path)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wikihop\nVersion: %s\nBuild Time: %s\n", Version, BuildTime)
		},
	}
}
