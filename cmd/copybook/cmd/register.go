// File path: cmd/copybook/cmd/register.go
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nicodishanthj/Katral_copybook/internal/registry"
)

func newRegisterCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "register <name> <copybook-file>",
		Short: "Compile a copybook and store it in the catalog",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read copybook: %w", err)
			}
			orch, err := g.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer orch.Close()
			entry, err := orch.Registry().Register(cmd.Context(), args[0], source)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s: %d bytes, %d fields, fingerprint %s\n",
				entry.Copybook.Name, entry.Copybook.RecordLength, entry.Copybook.FieldCount, entry.Copybook.Fingerprint[:12])
			return nil
		},
	}
}

func newListCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered copybooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := g.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer orch.Close()
			copybooks, err := orch.Registry().List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tLENGTH\tFIELDS\tUPDATED")
			for _, cb := range copybooks {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", cb.Name, cb.RecordLength, cb.FieldCount, cb.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
}

func newRunsCmd(g *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs [copybook]",
		Short: "Show recent decode runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := g.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer orch.Close()
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			runs, err := orch.Catalog().ListRuns(cmd.Context(), registry.NormalizeName(name), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tCOPYBOOK\tSTATUS\tRECORDS\tFAILURES\tDURATION\tINPUT")
			for _, run := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n", run.ID, run.Copybook, run.Status, run.Records, run.Failures, run.Duration(), run.Input)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show (0 for all)")
	return cmd
}
