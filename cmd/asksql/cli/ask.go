package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var showTools bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question and print the answer",
		Example: `  asksql ask "How many customers are from Germany?"
  asksql ask --tools "Which product is the most expensive?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), os.Stderr)
			if err != nil {
				return err
			}
			sess, err := a.newSession()
			if err != nil {
				return err
			}
			reply, err := sess.Send(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
			if showTools && len(reply.ToolsUsed) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "tools: %s\n", strings.Join(reply.ToolsUsed, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showTools, "tools", false, "Print the tools the assistant used to stderr")

	return cmd
}
