package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/asksql/asksql/internal/agent"
	"github.com/asksql/asksql/internal/schema"
)

const chatHelp = `Commands:
  /help      show this help
  /examples  list example questions
  /history   show this conversation
  /reset     start a new conversation
  /quit      leave (also /exit or Ctrl-D)`

func newChatCmd() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the company database",
		Long: `Start an interactive conversation. Each line you type is one message; the
assistant may generate and run SQL before answering. Piped input is read line
by line with plain output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), os.Stderr)
			if err != nil {
				return err
			}
			a.checkDatabase(cmd.Context())

			r := &repl{
				in:          cmd.InOrStdin(),
				out:         cmd.OutOrStdout(),
				interactive: !plain && term.IsTerminal(int(os.Stdin.Fd())),
				newSession: func() (chatter, error) {
					return a.newSession()
				},
			}
			return r.run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Disable colors, boxes and the spinner")

	return cmd
}

// chatter is the part of agent.Session the REPL uses.
type chatter interface {
	Send(ctx context.Context, message string) (*agent.Reply, error)
	Summary() string
}

// repl reads messages line by line and prints the replies.
type repl struct {
	in          io.Reader
	out         io.Writer
	interactive bool
	newSession  func() (chatter, error)

	sess chatter
}

func (r *repl) run(ctx context.Context) error {
	sess, err := r.newSession()
	if err != nil {
		return err
	}
	r.sess = sess

	if r.interactive {
		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("asksql")).
			WithPadding(1).
			Println("Ask anything about customers, orders, products and more.\nType /help for commands.")
		pterm.Println()
	}

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		r.prompt()
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			done, err := r.command(line)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			continue
		}
		r.turn(ctx, line)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if r.interactive {
		fmt.Fprintln(r.out)
	}
	return scanner.Err()
}

func (r *repl) prompt() {
	if r.interactive {
		fmt.Fprint(r.out, pterm.NewStyle(pterm.FgLightCyan, pterm.Bold).Sprint("you › "))
	}
}

// command handles a slash command and reports whether to quit.
func (r *repl) command(line string) (bool, error) {
	switch strings.ToLower(strings.Fields(line)[0]) {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(r.out, chatHelp)
	case "/examples":
		for _, ex := range schema.Examples {
			fmt.Fprintf(r.out, "  • %s\n", ex)
		}
	case "/history":
		summary := r.sess.Summary()
		if summary == "" {
			summary = "(no messages yet)\n"
		}
		fmt.Fprint(r.out, summary)
	case "/reset":
		sess, err := r.newSession()
		if err != nil {
			return false, err
		}
		r.sess = sess
		fmt.Fprintln(r.out, "Started a new conversation.")
	default:
		fmt.Fprintf(r.out, "Unknown command %s. Type /help for commands.\n", line)
	}
	return false, nil
}

// turn sends one message. Failures are printed and the conversation goes on.
func (r *repl) turn(ctx context.Context, message string) {
	var spinner *pterm.SpinnerPrinter
	if r.interactive {
		spinner, _ = pterm.DefaultSpinner.WithRemoveWhenDone(true).Start("Thinking...")
	}
	reply, err := r.sess.Send(ctx, message)
	if spinner != nil {
		spinner.Stop()
	}

	if err != nil {
		if r.interactive {
			pterm.Error.Println(err.Error())
		} else {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
		return
	}

	if !r.interactive {
		fmt.Fprintln(r.out, reply.Text)
		return
	}
	pterm.Println(pterm.NewStyle(pterm.FgGreen, pterm.Bold).Sprint("asksql › ") + reply.Text)
	if len(reply.ToolsUsed) > 0 {
		pterm.Println(pterm.NewStyle(pterm.FgGray).Sprint("  tools: " + strings.Join(reply.ToolsUsed, ", ")))
	}
	pterm.Println()
}
