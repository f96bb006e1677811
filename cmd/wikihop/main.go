package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"

	configPath string
)

var rootCmd = &cobra.Command{
	Use:           "wikihop",
	Short:         "Multi-hop question answering over Wikipedia",
	Long:          "wikihop answers multi-hop questions by searching and reading Wikipedia, recording what it learns in a knowledge tree.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/default.yaml", "Path to configuration file")

	rootCmd.AddCommand(newSolveCmd(), newEvalCmd(), newAnalyzeCmd(), newVersionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
