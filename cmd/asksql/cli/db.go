package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/asksql/asksql/internal/schema"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "db",
		Aliases: []string{"database"},
		Short:   "Inspect the company database",
		Long:    "Check the configured database against the schema description, or print that description.",
	}

	cmd.AddCommand(newDBCheckCmd())
	cmd.AddCommand(newDBSchemaCmd())

	return cmd
}

// ---------- db check ----------

func newDBCheckCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify that the database has every described table and column",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newBaseApp(os.Stderr)
			if err != nil {
				return err
			}
			path := a.cfg.Database.Path
			report, err := schema.VerifyFile(cmd.Context(), path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else if report.OK() {
				fmt.Fprintf(out, "%s: all %d tables present\n", path, len(schema.Tables))
			} else {
				fmt.Fprintf(out, "%s: schema mismatch\n", path)
				for _, p := range report.Problems() {
					fmt.Fprintf(out, "  - %s\n", p)
				}
			}
			if !report.OK() {
				return fmt.Errorf("database %s does not match the schema description", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")

	return cmd
}

// ---------- db schema ----------

func newDBSchemaCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the schema description given to the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(schema.Tables)
			}
			fmt.Fprint(cmd.OutOrStdout(), schema.Describe(""))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output tables and columns as JSON")

	return cmd
}
