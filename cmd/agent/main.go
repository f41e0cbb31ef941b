package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"taskpilot/internal/di"
	"taskpilot/internal/infrastructure/env"

	"github.com/spf13/cobra"
)

var envDir string

var rootCmd = &cobra.Command{
	Use:           "taskpilot",
	Short:         "Browser agent that works through a queue of web tasks and learns from them.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envDir, "env-dir", ".", "directory holding .env and .env.<APP_ENV>")
	rootCmd.AddCommand(newServeCmd(), newRunCmd(), newMemoryCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() di.Config {
	return di.LoadConfig(env.NewEnvService(envDir))
}
