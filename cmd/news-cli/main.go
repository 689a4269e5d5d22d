// News CLI — инструмент командной строки для постановки jobs,
// наблюдения за их прогрессом и чтения результатов синхронизации
// через HTTP API.
//
// Использование:
//
//	news [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	job    Управление jobs (sync, audio, show, watch, cancel)
//	queue  Очереди (stats, process-one)
//	news   Результаты синхронизации (latest, items)
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jrjgit/news/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "news",
		Short:         "News CLI — daily news sync and audio digest tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewJobCmd(clientFn, outputFn),
		cli.NewQueueCmd(clientFn, outputFn),
		cli.NewNewsCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
