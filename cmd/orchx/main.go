// Command orchx is the CLI and interactive console for the orchx
// workstation agent: a multi-repo filesystem watcher, local SQLite store,
// and Supabase sync client. It exposes one subcommand per command-surface
// operation plus an interactive `orchx console` built on a readline-driven
// REPL loop.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anthropics/orchx/internal/app"
	"github.com/anthropics/orchx/internal/orchxlog"
)

var (
	flagDBPath    string
	flagLogLevel  string
	flagLogJSON   bool
	flagConfigDir string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "orchx",
	Short: "Multi-repository filesystem watcher and dev-activity sync daemon",
	Long: `orchx watches a set of local git repositories for file and commit
activity, tracks it in a local SQLite store, and relays it to a Supabase
backend. It can be driven as a one-shot CLI or as a long-running
interactive console.`,
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "path to the local SQLite store (default: ~/.orchestrator/local.db)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "emit ND-JSON logs instead of the pretty console writer")
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "directory to read .env/.env.local Supabase config from (default: cwd)")

	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(offlineCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(oauthCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(statusCmd)
}

func initLogging() {
	orchxlog.Init(flagLogLevel, !flagLogJSON)
}

// newApp constructs the process-wide App from the bound persistent flags.
func newApp() (*app.App, error) {
	return app.New(app.Options{
		DBPath:    flagDBPath,
		ConfigDir: flagConfigDir,
	})
}
