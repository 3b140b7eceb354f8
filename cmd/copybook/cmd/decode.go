// File path: cmd/copybook/cmd/decode.go
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nicodishanthj/Katral_copybook/internal/batch"
	"github.com/nicodishanthj/Katral_copybook/internal/common"
	"github.com/nicodishanthj/Katral_copybook/internal/copybook"
	"github.com/nicodishanthj/Katral_copybook/internal/framer"
	"github.com/nicodishanthj/Katral_copybook/internal/orchestrator"
)

type decodeFlags struct {
	format    string
	encoding  string
	byteOrder string
	workers   int
	failFast  bool
	register  string
	archive   bool
	output    string
}

func newDecodeCmd(g *globalOptions) *cobra.Command {
	f := &decodeFlags{}
	cmd := &cobra.Command{
		Use:   "decode <copybook> <data-file|->",
		Short: "Decode a data file into JSON lines",
		Long: `Decode every record of a data file against a copybook and write one JSON
object per record, in input order. <copybook> is either a copybook source
file or the name of a registered copybook. Runs of registered copybooks are
recorded in the catalog. Compressed inputs (.gz, .zst) are read directly.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd, g, f, args[0], args[1])
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.format, "format", "fixed", "record framing: fixed, line or rdw")
	flags.StringVar(&f.encoding, "encoding", "", "character encoding: ascii or ebcdic (default from config)")
	flags.StringVar(&f.byteOrder, "comp5-byte-order", "", "COMP-5 byte order: big or little (default from config)")
	flags.IntVar(&f.workers, "workers", 0, "decoding goroutines (default from config)")
	flags.BoolVar(&f.failFast, "fail-fast", false, "stop at the first record that fails")
	flags.StringVar(&f.register, "register", "", "register the copybook file under this name before decoding")
	flags.BoolVar(&f.archive, "archive", false, "append decoded records to the archive")
	flags.StringVarP(&f.output, "output", "o", "", "write JSON lines to this file instead of stdout")
	return cmd
}

func runDecode(cmd *cobra.Command, g *globalOptions, f *decodeFlags, copybookArg, dataArg string) error {
	ctx := cmd.Context()
	logger := common.Logger()
	format, err := framer.ParseFormat(f.format)
	if err != nil {
		return err
	}
	orch, err := g.open(ctx, func(cfg *orchestrator.Config) {
		if f.encoding != "" {
			cfg.Encoding = f.encoding
		}
		if f.byteOrder != "" {
			cfg.NativeByteOrder = f.byteOrder
		}
	})
	if err != nil {
		return err
	}
	defer orch.Close()

	var (
		runner *batch.Runner
		layout *copybook.Layout
		input  = dataArg
	)
	if input == "-" {
		input = "stdin"
	}
	source, readErr := os.ReadFile(copybookArg)
	switch {
	case readErr == nil && f.register == "":
		if f.archive {
			return errors.New("--archive needs a registered copybook; pass --register")
		}
		compiled, err := orch.Registry().Compile(ctx, source)
		if err != nil {
			return err
		}
		layout = compiled.Layout
		runner, err = batch.New(orch.NewDecoder(layout),
			batch.WithWorkers(workersOr(f.workers, orch.Config().Workers)),
			batch.WithFailFast(f.failFast),
		)
		if err != nil {
			return err
		}
	default:
		name := copybookArg
		if readErr == nil {
			entry, err := orch.Registry().Register(ctx, f.register, source)
			if err != nil {
				return err
			}
			name = entry.Copybook.Name
		} else if !errors.Is(readErr, os.ErrNotExist) {
			return fmt.Errorf("read copybook: %w", readErr)
		}
		r, entry, err := orch.NewRunner(ctx, orchestrator.RunRequest{
			Copybook: name,
			Input:    input,
			Archive:  f.archive,
			FailFast: f.failFast,
			Workers:  f.workers,
		})
		if err != nil {
			return err
		}
		runner, layout = r, entry.Layout
	}

	var src *framer.Reader
	if dataArg == "-" {
		src, err = framer.NewReader(cmd.InOrStdin(), format, layout.Length())
	} else {
		src, err = framer.Open(dataArg, format, layout.Length())
	}
	if err != nil {
		return err
	}
	defer src.Close()

	var out io.Writer = cmd.OutOrStdout()
	if f.output != "" {
		file, err := os.Create(f.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		out = file
	}

	summary, err := runner.Run(ctx, src, out)
	fmt.Fprintf(cmd.ErrOrStderr(), "run %s: %d records, %d failed, %s in %s\n",
		summary.RunID, summary.Records, summary.Failures, summary.Status, summary.Duration.Round(1e6))
	if err != nil {
		logger.Error("copybook: decode stopped", "run", summary.RunID, "error", err)
		return err
	}
	return nil
}

func workersOr(n, fallback int) int {
	if n > 0 {
		return n
	}
	return fallback
}
