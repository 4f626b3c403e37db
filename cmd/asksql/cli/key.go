package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/asksql/asksql/internal/config"
	"github.com/asksql/asksql/internal/keychain"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage LLM provider API keys",
		Long: `Store, inspect, and delete the API keys asksql uses to call the language model.
Keys live in the operating system's credential store. A key set in the config
file or in ASKSQL_LLM_API_KEY always takes precedence.`,
	}

	cmd.AddCommand(newKeySetCmd())
	cmd.AddCommand(newKeyStatusCmd())
	cmd.AddCommand(newKeyDeleteCmd())

	return cmd
}

// providerArg returns the provider named on the command line, or the
// configured one.
func providerArg(args []string) (string, error) {
	if len(args) > 0 {
		return strings.ToLower(args[0]), nil
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return "", err
	}
	return strings.ToLower(cfg.LLM.Provider), nil
}

func checkProvider(provider string) error {
	switch provider {
	case "gemini", "anthropic":
		return nil
	default:
		return fmt.Errorf("unsupported provider %q; use 'gemini' or 'anthropic'", provider)
	}
}

// ---------- key set ----------

func newKeySetCmd() *cobra.Command {
	var value string

	cmd := &cobra.Command{
		Use:   "set [provider]",
		Short: "Store an API key in the OS keychain",
		Example: `  asksql key set gemini
  echo "$KEY" | asksql key set anthropic`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := providerArg(args)
			if err != nil {
				return err
			}
			if err := checkProvider(provider); err != nil {
				return err
			}

			key := value
			if key == "" {
				key, err = readSecret(cmd, fmt.Sprintf("API key for %s: ", provider))
				if err != nil {
					return err
				}
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("api key must not be empty")
			}

			ring, err := keychain.Open()
			if err != nil {
				return err
			}
			if err := ring.SetAPIKey(provider, key); err != nil {
				return fmt.Errorf("store api key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s API key %s in the keychain.\n", provider, keychain.Mask(key))
			return nil
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "API key value (prompted for when omitted)")

	return cmd
}

// readSecret prompts without echo on a terminal and reads one line from
// piped input otherwise.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read api key: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read api key: %w", err)
	}
	return line, nil
}

// ---------- key status ----------

func newKeyStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [provider]",
		Short: "Show which API key asksql would use",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			provider := strings.ToLower(cfg.LLM.Provider)
			if len(args) > 0 {
				provider = strings.ToLower(args[0])
			}
			if err := checkProvider(provider); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cfg.LLM.APIKey != "" && provider == strings.ToLower(cfg.LLM.Provider) {
				fmt.Fprintf(out, "%s: %s (config or %s_LLM_API_KEY)\n", provider, keychain.Mask(cfg.LLM.APIKey), config.EnvPrefix)
				return nil
			}

			ring, err := keychain.Open()
			if err != nil {
				fmt.Fprintf(out, "%s: not set (keychain unavailable: %v)\n", provider, err)
				return nil
			}
			key, err := ring.APIKey(provider)
			switch {
			case errors.Is(err, keychain.ErrNotFound):
				fmt.Fprintf(out, "%s: not set\n", provider)
			case err != nil:
				return fmt.Errorf("read api key: %w", err)
			default:
				fmt.Fprintf(out, "%s: %s (keychain)\n", provider, keychain.Mask(key))
			}
			return nil
		},
	}

	return cmd
}

// ---------- key delete ----------

func newKeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete [provider]",
		Aliases: []string{"rm"},
		Short:   "Remove an API key from the OS keychain",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := providerArg(args)
			if err != nil {
				return err
			}
			if err := checkProvider(provider); err != nil {
				return err
			}
			ring, err := keychain.Open()
			if err != nil {
				return err
			}
			if err := ring.DeleteAPIKey(provider); err != nil {
				if errors.Is(err, keychain.ErrNotFound) {
					return fmt.Errorf("no %s API key stored", provider)
				}
				return fmt.Errorf("delete api key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s API key.\n", provider)
			return nil
		},
	}

	return cmd
}
