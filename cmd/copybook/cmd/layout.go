// File path: cmd/copybook/cmd/layout.go
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nicodishanthj/Katral_copybook/internal/orchestrator"
)

type layoutRow struct {
	Path      string `json:"path"`
	Level     int    `json:"level"`
	Offset    int    `json:"offset"`
	Length    int    `json:"length"`
	Occurs    int    `json:"occurs,omitempty"`
	Type      string `json:"type"`
	Redefines string `json:"redefines,omitempty"`
}

func newLayoutCmd(g *globalOptions) *cobra.Command {
	var (
		syntheticRoot string
		asJSON        bool
	)
	cmd := &cobra.Command{
		Use:   "layout <copybook-file>",
		Short: "Print the resolved byte layout of a copybook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read copybook: %w", err)
			}
			orch, release, err := g.openScratch(cmd.Context(), func(cfg *orchestrator.Config) {
				if syntheticRoot != "" {
					cfg.SyntheticRoot = syntheticRoot
				}
			})
			if err != nil {
				return err
			}
			defer release()
			compiled, err := orch.Registry().Compile(cmd.Context(), source)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !asJSON {
				return compiled.Layout.Describe(out)
			}
			rows := make([]layoutRow, 0, compiled.Layout.Len())
			for _, f := range compiled.Layout.Fields() {
				row := layoutRow{
					Path:      f.Path,
					Level:     f.Definition.Level(),
					Offset:    f.Offset,
					Length:    f.Length,
					Type:      f.Definition.DataType().String(),
					Redefines: f.Definition.Redefines(),
				}
				if f.Definition.HasOccurs() {
					row.Occurs = f.Occurs
				}
				rows = append(rows, row)
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"record_length": compiled.Layout.Length(),
				"fingerprint":   compiled.Fingerprint,
				"fields":        rows,
			})
		},
	}
	cmd.Flags().StringVar(&syntheticRoot, "synthetic-root", "", "wrap several 01 records in a group with this label")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the layout as JSON")
	return cmd
}
