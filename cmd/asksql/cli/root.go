package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/asksql/asksql/internal/metrics"
)

var (
	cfgFile    string
	appVersion string // set in Execute, reported by serve, mcp and openapi
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.ExecuteContext(context.Background())
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asksql",
		Short: "Ask questions about the company database in plain language",
		Long: `asksql: a chat assistant that answers questions about a company database.

Questions are turned into SQL by a language model, run against a local SQLite
database, and the results are summarized back in the language of the question.
Use it as an interactive chat, an HTTP API, or an MCP server for AI agents.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./asksql.yaml or ~/.asksql/asksql.yaml)")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newSQLCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newOpenAPICmd())
	cmd.AddCommand(newKeyCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}
