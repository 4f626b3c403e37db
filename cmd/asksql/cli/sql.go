package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/asksql/asksql/internal/synth"
)

func newSQLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Run the SQL tools directly",
		Long:  "Generate SQL for a question or execute a statement, exactly as the assistant's tools do.",
	}

	cmd.AddCommand(newSQLGenerateCmd())
	cmd.AddCommand(newSQLExecCmd())

	return cmd
}

// ---------- sql generate ----------

func newSQLGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "generate <question>",
		Aliases: []string{"gen"},
		Short:   "Generate a SQL query for a question",
		Example: `  asksql sql generate "Top 5 customers by number of orders"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), os.Stderr)
			if err != nil {
				return err
			}
			sql, err := synth.New(a.provider, a.logger).Synthesize(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sql)
			return nil
		},
	}
	return cmd
}

// ---------- sql exec ----------

func newSQLExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <statement | ->",
		Short: "Execute a SQL statement and print the JSON result",
		Long: `Execute one statement against the configured database and print the same
JSON the assistant sees: an array of records, or {"error": "..."}. Pass "-" to
read the statement from stdin.`,
		Example: `  asksql sql exec "SELECT COUNT(*) FROM Customers;"
  echo "SELECT * FROM Shippers;" | asksql sql exec -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newBaseApp(os.Stderr)
			if err != nil {
				return err
			}
			stmt, err := statementArg(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			res := a.executor.Run(cmd.Context(), stmt)
			fmt.Fprintln(cmd.OutOrStdout(), res.JSON())
			if !res.OK() {
				return fmt.Errorf("query failed (%s)", res.Kind)
			}
			return nil
		},
	}
	return cmd
}

// statementArg joins args into one statement, or reads stdin for "-".
func statementArg(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read statement: %w", err)
		}
		args = []string{string(data)}
	}
	stmt := strings.TrimSpace(strings.Join(args, " "))
	if stmt == "" {
		return "", fmt.Errorf("empty statement")
	}
	return stmt, nil
}
